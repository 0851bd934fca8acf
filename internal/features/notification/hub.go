package notification

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Hub fans persisted notifications out to connected websocket clients. A user
// may hold several connections (multiple tabs); all of them get the push.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[*websocket.Conn]bool // keyed tenant/user
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]map[*websocket.Conn]bool),
		logger: logger,
	}
}

func connKey(tenantID, userID string) string {
	return tenantID + "/" + userID
}

func (h *Hub) Register(tenantID, userID string, conn *websocket.Conn) {
	key := connKey(tenantID, userID)
	h.mu.Lock()
	if h.conns[key] == nil {
		h.conns[key] = make(map[*websocket.Conn]bool)
	}
	h.conns[key][conn] = true
	h.mu.Unlock()
}

func (h *Hub) Unregister(tenantID, userID string, conn *websocket.Conn) {
	key := connKey(tenantID, userID)
	h.mu.Lock()
	if set, ok := h.conns[key]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, key)
		}
	}
	h.mu.Unlock()
}

// Push sends the notification to every open connection of the user. A write
// failure only drops that connection's delivery; the notification is already
// persisted and will show up on the next list call.
func (h *Hub) Push(tenantID, userID string, n *Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("failed to encode notification push", zap.Error(err))
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns[connKey(tenantID, userID)]))
	for conn := range h.conns[connKey(tenantID, userID)] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("websocket push failed", zap.Error(err), zap.String("user_id", userID))
		}
	}
}
