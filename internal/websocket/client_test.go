package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbpcli/pkg/contracts/events"
)

// dialTestHub spins up an httptest server that upgrades requests into
// hub clients and returns a connected peer.
func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		ServeWS(hub, conn, "trace-test", testLogger())
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) events.WebSocketMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg events.WebSocketMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestServeWS_WelcomeAndBroadcast(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	conn := dialTestHub(t, hub)

	welcome := readEnvelope(t, conn)
	assert.Equal(t, events.MessageTypeConnect, welcome.Type)
	assert.Equal(t, "trace-test", welcome.TraceID)

	waitForClients(t, hub, 1)
	hub.Broadcast(events.MessageTypePipelineComplete, map[string]any{"run_id": "r9"})

	msg := readEnvelope(t, conn)
	assert.Equal(t, events.MessageTypePipelineComplete, msg.Type)
	data := msg.Data.(map[string]any)
	assert.Equal(t, "r9", data["run_id"])
}

func TestServeWS_HeartbeatKeepsConnection(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	conn := dialTestHub(t, hub)
	readEnvelope(t, conn) // welcome
	waitForClients(t, hub, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount(), "heartbeat must not disconnect the client")
}

func TestServeWS_PeerCloseUnregisters(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	conn := dialTestHub(t, hub)
	readEnvelope(t, conn) // welcome
	waitForClients(t, hub, 1)

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitForClients(t, hub, 0)
}

func TestNewClientWithTrace(t *testing.T) {
	hub := NewHub(testLogger())
	client := NewClientWithTrace(hub, nil, "trace-42", testLogger())

	assert.Equal(t, "trace-42", client.traceID)
	assert.NotEmpty(t, client.id)
	assert.NotNil(t, client.send)
	assert.Equal(t, sendBufferSize, cap(client.send))
}
