package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"call-assist-service/metrics"
	"call-assist-service/models"
)

// Hub manages WebSocket connections and broadcasting of call updates
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages to clients
	broadcast chan []byte

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Mutex for thread-safe operations
	mutex sync.RWMutex

	// Statistics
	lastBroadcastCallID string
	connectedClients    int
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mutex.Lock()
			h.clients[client] = true
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
			metrics.ConnectedWebsocketClients.Set(float64(h.connectedClients))
			log.Printf("Client connected. Total clients: %d", h.connectedClients)

		case client := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connectedClients = len(h.clients)
			}
			h.mutex.Unlock()
			metrics.ConnectedWebsocketClients.Set(float64(h.connectedClients))
			log.Printf("Client disconnected. Total clients: %d", h.connectedClients)

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.connectedClients = len(h.clients)
			h.mutex.RUnlock()
		}
	}
}

// BroadcastCallUpdate broadcasts a call update to all connected clients
func (h *Hub) BroadcastCallUpdate(update models.CallUpdate) {
	h.mutex.Lock()
	h.lastBroadcastCallID = update.Call.ID
	h.mutex.Unlock()

	message := models.BroadcastMessage{
		Type:      "call_update",
		Data:      update,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}

	h.broadcast <- data
	log.Printf("Broadcasted update for call %s to %d clients",
		update.Call.ID, h.connectedClients)
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() (int, string) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.connectedClients, h.lastBroadcastCallID
}
