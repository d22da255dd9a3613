// internal/videodating/hub.go

package videodating

import (
	"context"
	"encoding/json"
	"log"
	"sync"
)

// DisconnectHandler is invoked when a client's socket goes away without
// an explicit end. The hub treats that as an implicit leave/end.
type DisconnectHandler interface {
	HandleDisconnect(userID string)
}

// Hub maintains active websocket connections, one per user
type Hub struct {
	// Registered clients
	clients    map[string]*Client
	clientsMux sync.RWMutex

	// Register/unregister clients
	register   chan *Client
	unregister chan *Client

	// Notified on implicit disconnects
	disconnects DisconnectHandler

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc

	// WaitGroup for pending operations
	wg sync.WaitGroup
}

// NewHub creates a hub; SetDisconnectHandler must be called before Run
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetDisconnectHandler wires the disconnect/requeue handler (resolves
// the hub <-> service circular dependency)
func (h *Hub) SetDisconnectHandler(d DisconnectHandler) {
	h.disconnects = d
}

func (h *Hub) Run() {
	defer h.cleanup()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMux.Lock()

	// Replace an old connection for the same user; replacement is not a
	// disconnect, so no session teardown happens here
	if oldClient, exists := h.clients[client.userID]; exists {
		oldClient.Close()
	}
	h.clients[client.userID] = client

	total := len(h.clients)
	h.clientsMux.Unlock()

	activeConnections.Set(float64(total))
	log.Printf("User %s connected. Total clients: %d", client.userID, total)
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMux.Lock()

	current, exists := h.clients[client.userID]
	if !exists || current != client {
		// Already replaced by a newer connection
		h.clientsMux.Unlock()
		return
	}

	client.Close()
	delete(h.clients, client.userID)
	total := len(h.clients)
	h.clientsMux.Unlock()

	activeConnections.Set(float64(total))
	log.Printf("User %s disconnected. Total clients: %d", client.userID, total)

	// A dropped socket is an implicit leave/end
	if h.disconnects != nil {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.disconnects.HandleDisconnect(client.userID)
		}()
	}
}

// requestUnregister hands a client to the Run loop, giving up once the
// hub has stopped so read pumps cannot hang on shutdown
func (h *Hub) requestUnregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// SendToUser delivers one event to one user. Delivery is best-effort:
// an offline user or a blocked send channel drops the event.
func (h *Hub) SendToUser(userID string, event ServerEvent) {
	h.clientsMux.RLock()
	client, exists := h.clients[userID]
	h.clientsMux.RUnlock()

	if !exists {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling event %s: %v", event.Type, err)
		return
	}

	select {
	case client.send <- data:
		eventsSent.WithLabelValues(event.Type).Inc()
	default:
		// Unregister if channel is blocked
		go h.requestUnregister(client)
	}
}

// Broadcast delivers one event to every connected user
func (h *Hub) Broadcast(event ServerEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling broadcast %s: %v", event.Type, err)
		return
	}

	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Slow client, skip; the read pump will reap it
		}
	}
}

// IsUserOnline reports whether the user has a live connection
func (h *Hub) IsUserOnline(userID string) bool {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	_, exists := h.clients[userID]
	return exists
}

// GetActiveConnections returns the number of connected clients
func (h *Hub) GetActiveConnections() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

// Shutdown stops the hub and waits for pending work
func (h *Hub) Shutdown() {
	h.cancel()
	h.wg.Wait()
}

func (h *Hub) cleanup() {
	h.clientsMux.Lock()
	for _, client := range h.clients {
		client.Close()
	}
	h.clients = make(map[string]*Client)
	h.clientsMux.Unlock()

	h.wg.Wait()
}
