package ws

import (
	"encoding/json"
	"sync"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// groupEvent is an internal struct for routing events to group rooms
type groupEvent struct {
	GroupID string
	Event   Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by group ID
	rooms map[string]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *groupEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *groupEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.groupID] == nil {
				h.rooms[client.groupID] = make(map[*Client]bool)
			}
			h.rooms[client.groupID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.groupID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty rooms
					if len(clients) == 0 {
						delete(h.rooms, client.groupID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.GroupID]

			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			// Send to all clients in this group's room
			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.rooms[event.GroupID], client)
					if len(h.rooms[event.GroupID]) == 0 {
						delete(h.rooms, event.GroupID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToGroup sends an event to all clients subscribed to a group
func (h *Hub) BroadcastToGroup(groupID string, event Event) {
	h.broadcast <- &groupEvent{
		GroupID: groupID,
		Event:   event,
	}
}

// orderChangePayload is the body of an order change event.
type orderChangePayload struct {
	PostID  string `json:"post_id,omitempty"`
	OrderID string `json:"order_id"`
}

// NotifyOrderChange broadcasts an order mutation to the group's room so
// open admin screens can refresh the affected post.
func (h *Hub) NotifyOrderChange(groupID, postID, orderID, action string) {
	payload, err := json.Marshal(orderChangePayload{PostID: postID, OrderID: orderID})
	if err != nil {
		return
	}
	h.BroadcastToGroup(groupID, Event{
		Type:    "order." + action,
		Payload: payload,
	})
}
