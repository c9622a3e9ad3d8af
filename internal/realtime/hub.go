// internal/realtime/hub.go
package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Client is one websocket subscriber. A client watches one offer; external
// changes to that offer are pushed so the console can re-fetch instead of
// silently overwriting in-flight local edits.
type Client struct {
	ID      string
	UserID  uuid.UUID
	OfferID uint
	Conn    *WebSocketConn
	Send    chan []byte
}

type Hub struct {
	clients    map[string]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// OfferEvent is the payload pushed to watchers of an offer.
type OfferEvent struct {
	Type    string         `json:"type"` // section_saved | save_failed | status_changed | publish_progress
	OfferID uint           `json:"offer_id"`
	Data    map[string]any `json:"data,omitempty"`
}

// SendToOffer pushes an event to every client watching the given offer.
func (h *Hub) SendToOffer(offerID uint, event OfferEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling offer event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.OfferID == offerID {
			select {
			case client.Send <- payload:
			default:
				// full buffer: skip rather than block the hub
			}
		}
	}
}

// SendToUser pushes an event to every connection of one user.
func (h *Hub) SendToUser(userID uuid.UUID, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.UserID == userID {
			select {
			case client.Send <- payload:
			default:
			}
		}
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("Client registered: %s (UserID: %s, OfferID: %d)", client.ID, client.UserID, client.OfferID)

		case client := <-h.unregister:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(old.Send)
				log.Printf("Client unregistered: %s", client.ID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}
