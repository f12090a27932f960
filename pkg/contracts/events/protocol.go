// Package events contains event contract definitions for WebSocket
// communication in the SBP Lens system. The hub broadcasts these
// envelopes to every connected client while a pipeline run progresses.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message.
type MessageType string

const (
	// Pipeline run lifecycle - the primary event family
	MessageTypePipelineSnapshot MessageType = "pipeline:snapshot"
	MessageTypePipelineComplete MessageType = "pipeline:complete"
	MessageTypePipelineError    MessageType = "pipeline:error"

	// System messages
	MessageTypeSystemStatus MessageType = "system:status"

	// Connection messages
	MessageTypeConnect    MessageType = "connect"
	MessageTypeDisconnect MessageType = "disconnect"
	MessageTypeError      MessageType = "error"
)

// BaseMessage is the common header of every WebSocket message.
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage is the complete broadcast envelope.
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// Run and stage status values carried in snapshots.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// PipelineSnapshot is the primary payload for pipeline run updates.
// One snapshot describes the whole run; clients render it as-is rather
// than accumulating deltas.
type PipelineSnapshot struct {
	RunID        string          `json:"run_id"`
	Status       string          `json:"status"` // pending|running|completed|failed
	Progress     int             `json:"progress"`
	CurrentStage string          `json:"current_stage"`
	Stages       []StageSnapshot `json:"stages"`
	StartedAt    time.Time       `json:"started_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Error        string          `json:"error,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// StageSnapshot is the state of a single pipeline stage.
type StageSnapshot struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Status   string                 `json:"status"`
	Progress int                    `json:"progress"`
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ErrorMessage is broadcast when something fails outside a run context.
type ErrorMessage struct {
	BaseMessage
	Data struct {
		Code    string      `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
		Fatal   bool        `json:"fatal"`
	} `json:"data"`
}

// SystemStatusEvent reports server health to connected clients.
type SystemStatusEvent struct {
	BaseMessage
	Data struct {
		Status     string            `json:"status"` // healthy|degraded|unhealthy
		Components map[string]string `json:"components"`
		Uptime     string            `json:"uptime"`
		Version    string            `json:"version"`
	} `json:"data"`
}
