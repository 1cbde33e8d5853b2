package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"geowatch/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	done       chan struct{}
	mutex      sync.Mutex
	logger     *logger.Logger
}

type Message struct {
	Type      string             `json:"type"`
	RoomID    string             `json:"room_id,omitempty"`
	SessionID primitive.ObjectID `json:"session_id"`
	Timestamp int64              `json:"timestamp"`
	Data      interface{}        `json:"data,omitempty"`
}

func SessionRoom(sessionID primitive.ObjectID) string {
	return "session_" + sessionID.Hex()
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
		logger:     log.WithComponent("websocket_hub"),
	}
}

// Run processes registrations until ctx is cancelled, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return
		}
	}
}

// Register returns false when the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	h.joinRoom(client, SessionRoom(client.SessionID))

	h.logger.WithSessionID(client.SessionID).WithUserID(client.UserID).Debug("Client registered")

	h.sendToClient(client, Message{
		Type:      "welcome",
		RoomID:    SessionRoom(client.SessionID),
		SessionID: client.SessionID,
		Timestamp: getCurrentTimestamp(),
		Data: map[string]interface{}{
			"message": "Connected successfully",
		},
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.removeClient(client) {
		h.logger.WithSessionID(client.SessionID).WithUserID(client.UserID).Debug("Client unregistered")
	}
}

// removeClient must be called with the mutex held.
func (h *Hub) removeClient(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	close(client.send)

	for roomID := range client.rooms {
		if room, exists := h.rooms[roomID]; exists {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	return true
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		h.removeClient(client)
	}
}

// BroadcastToSession delivers a message to every client watching the session.
// Clients whose buffers are full are disconnected.
func (h *Hub) BroadcastToSession(sessionID primitive.ObjectID, messageType string, data interface{}) error {
	message := Message{
		Type:      messageType,
		RoomID:    SessionRoom(sessionID),
		SessionID: sessionID,
		Timestamp: getCurrentTimestamp(),
		Data:      data,
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode websocket message: %w", err)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.rooms[message.RoomID] {
		select {
		case client.send <- payload:
		default:
			h.removeClient(client)
		}
	}
	return nil
}

// sendToClient must be called with the mutex held.
func (h *Hub) sendToClient(client *Client, message Message) {
	data, _ := json.Marshal(message)
	select {
	case client.send <- data:
	default:
		h.removeClient(client)
	}
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
