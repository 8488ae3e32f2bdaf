// Package realtime pushes fresh notifications to the websocket connections of signed-in users.
package realtime

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"partnerhub/internal/models"
)

const EventNotification = "notification"

// Event is the frame written to clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Hub struct {
	mu       sync.RWMutex
	users    map[int64]map[*Client]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub accepts upgrades from the given origins; an empty list or "*" allows any.
func NewHub(origins []string, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		users: make(map[int64]map[*Client]struct{}),
		log:   log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := map[string]struct{}{}
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// не браузер
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// Accept upgrades the request. On failure the upgrader has already answered the client.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request) (*Client, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newClient(conn), nil
}

func (h *Hub) Register(userID int64, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[*Client]struct{})
	}
	h.users[userID][c] = struct{}{}
}

func (h *Hub) Unregister(userID int64, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[userID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.users, userID)
		}
	}
}

// Online reports how many connections userID has open.
func (h *Hub) Online(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Publish hands the notification to every connection of its recipient.
// Slow connections lose the event instead of blocking the caller; the row is still in the database.
func (h *Hub) Publish(n *models.Notification) {
	if n == nil {
		return
	}
	ev := Event{Type: EventNotification, Data: n}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[n.UserID] {
		if !c.enqueue(ev) {
			h.log.Warn("[realtime] send buffer full, event dropped",
				zap.Int64("user_id", n.UserID), zap.Int64("notification_id", n.ID))
		}
	}
}

// Close disconnects every client; used on shutdown since hijacked connections outlive http.Server.Shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.users {
		for c := range conns {
			c.Close()
		}
		delete(h.users, userID)
	}
}
