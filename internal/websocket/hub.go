// Package websocket broadcasts pipeline run events to connected
// dashboard clients. One Hub fans each envelope out to every client;
// clients that stop draining their buffered send channel are evicted
// so a stalled browser cannot back-pressure a run.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"sbpcli/internal/infrastructure"
	"sbpcli/pkg/contracts/events"
)

// Hub maintains the set of active clients and fans broadcast messages
// out to them. The client set is owned by the Run goroutine; every
// send-channel close happens there.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	running bool
	quit    chan struct{}

	totalConnections int64
	messagesSent     int64
	evictions        int64
}

// NewHub creates a hub. A nil logger falls back to the shared
// application logger.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		quit:       make(chan struct{}),
	}
}

// Start launches the hub loop. Starting twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.totalConnections++
	count := len(h.clients)
	h.mu.Unlock()

	ctx := context.Background()
	if client.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, client.traceID)
	}
	h.logger.InfoContext(ctx, "client registered",
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr),
		slog.Int("total_clients", count))

	// Greet the new client so the frontend can show connection state.
	welcome := events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			Type:      events.MessageTypeConnect,
			Timestamp: time.Now().UTC(),
			TraceID:   client.traceID,
		},
		Data: map[string]any{
			"status":    "connected",
			"client_id": client.id,
		},
	}
	if payload, err := json.Marshal(welcome); err == nil {
		select {
		case client.send <- payload:
		default:
			h.logger.WarnContext(ctx, "connect message dropped, client buffer full",
				slog.String("client_id", client.id))
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	close(client.send)

	h.logger.Info("client unregistered",
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", time.Since(client.connectedAt)),
		slog.Int("total_clients", count))
}

// fanOut delivers one payload to every client, evicting clients whose
// send buffer is full.
func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent := int64(0)
	var evicted []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			sent++
		default:
			evicted = append(evicted, client)
		}
	}

	h.mu.Lock()
	h.messagesSent += sent
	for _, client := range evicted {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			h.evictions++
		}
	}
	h.mu.Unlock()

	for _, client := range evicted {
		close(client.send)
		h.logger.Warn("client send buffer full, evicting",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		close(client.send)
	}
}

// Broadcast wraps data in the standard envelope and queues it for
// delivery to every client. Safe to call from any goroutine; messages
// sent after Stop are dropped.
func (h *Hub) Broadcast(messageType events.MessageType, data any) {
	envelope := events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			Type:      messageType,
			Timestamp: time.Now().UTC(),
		},
		Data: data,
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Error("failed to marshal broadcast envelope",
			slog.String("message_type", string(messageType)),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- payload:
	case <-h.quit:
	}
}

// Register queues a client for registration with the hub loop.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats reports hub counters for the health endpoint.
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]any{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"evictions":         h.evictions,
	}
}

// Stop shuts the hub down. The Run loop closes every client connection
// before exiting. Stopping twice is a no-op.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
}
