package server

import (
	"context"
	"encoding/json"
	"sync"

	"snapshoot-sync/internal/outbox"
	"snapshoot-sync/pkg/logger"

	"go.uber.org/zap"
)

const maxClients = 32

// Event is one frame pushed to websocket clients.
type Event struct {
	Type   string         `json:"type"`
	Report *outbox.Report `json:"report,omitempty"`
	Online *bool          `json:"online,omitempty"`
}

// Hub fans sync events out to every connected websocket client.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	logger     *logger.Logger

	mu      sync.RWMutex
	stopped chan struct{}
}

func NewHub(l *logger.Logger) *Hub {
	if l == nil {
		l = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan []byte, 64),
		logger:     l,
		stopped:    make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case data := <-h.broadcast:
			h.handleBroadcast(data)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// PublishReport queues a pass report for every client. It never blocks; a
// report is dropped when the hub is backed up.
func (h *Hub) PublishReport(rep outbox.Report) {
	h.publish(Event{Type: "sync", Report: &rep})
}

func (h *Hub) PublishConnectivity(online bool) {
	h.publish(Event{Type: "connectivity", Online: &online})
}

func (h *Hub) publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warnf("encoding %s event: %s", ev.Type, err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warnf("event hub backed up, dropping %s event", ev.Type)
	}
}

// Len is the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) >= maxClients {
		h.logger.Warn(context.Background(), "max websocket clients reached", zap.String("client_id", client.id))
		h.removeClient(client)
		return
	}
	h.clients[client.id] = client
	h.logger.Info(context.Background(), "client connected", zap.String("client_id", client.id))

	go client.writePump()
	go client.readPump()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		h.removeClient(client)
		h.logger.Info(context.Background(), "client disconnected", zap.String("client_id", client.id))
	}
}

func (h *Hub) handleBroadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn(context.Background(), "client send buffer full", zap.String("client_id", client.id))
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		h.removeClient(client)
		delete(h.clients, id)
	}
}

func (h *Hub) removeClient(client *Client) {
	close(client.send)
	client.conn.Close()
}

// join hands a client to the hub, or closes it when the hub has stopped.
func (h *Hub) join(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopped:
		client.conn.Close()
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}
