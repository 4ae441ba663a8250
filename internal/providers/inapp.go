package providers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"notification-engine/internal/models"
)

// maxConnectionsPerUser caps how many live sockets a single user may hold.
const maxConnectionsPerUser = 10

// Hub tracks live WebSocket connections per user.
type Hub struct {
	mu          sync.Mutex
	connections map[int64]map[*websocket.Conn]bool
	logger      *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		connections: make(map[int64]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// AddConnection registers a live socket for a user.
func (h *Hub) AddConnection(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.connections[userID]; !exists {
		h.connections[userID] = make(map[*websocket.Conn]bool)
	}
	if len(h.connections[userID]) >= maxConnectionsPerUser {
		h.logger.Warnf("Max connections reached for user %d", userID)
		return
	}
	h.connections[userID][conn] = true
}

// RemoveConnection drops a socket for a user.
func (h *Hub) RemoveConnection(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, exists := h.connections[userID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, userID)
		}
	}
}

// SendToUser pushes a message to every live socket of a user. Write failures
// evict the broken socket.
func (h *Hub) SendToUser(userID int64, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, exists := h.connections[userID]
	if !exists {
		return
	}
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Errorf("Failed to push to user %d: %v", userID, err)
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(h.connections, userID)
	}
}

// InAppSender delivers in-app notifications. The persisted record is the
// delivery itself; pushing to live sockets is a best-effort extra, so Send
// succeeds even with zero connections.
type InAppSender struct {
	hub *Hub
}

func NewInAppSender(hub *Hub) *InAppSender {
	return &InAppSender{hub: hub}
}

func (s *InAppSender) Send(ctx context.Context, n models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]string{
		"id":      n.ID,
		"subject": n.Subject,
		"body":    n.Body,
	})
	if err != nil {
		return err
	}
	s.hub.SendToUser(n.UserID, payload)
	return nil
}
