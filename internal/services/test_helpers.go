package services

import (
	"github.com/stretchr/testify/mock"

	"sbpcli/pkg/contracts/events"
)

// MockBroadcaster is a mock for the ProgressBroadcaster interface
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(messageType events.MessageType, data any) {
	m.Called(messageType, data)
}
