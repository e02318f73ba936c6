// Package events fans duel state changes out to websocket subscribers.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
)

const (
	TypeDuelUpdated   = "duel_updated"
	TypeRoundResolved = "round_resolved"
	TypeActionTaken   = "action_submitted"
	TypeDuelFinished  = "duel_finished"
)

const (
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	pongWait     = 2 * pingInterval
)

// Event is what subscribers receive. Clients re-read the duel on receipt.
type Event struct {
	Type        string `json:"type"`
	DuelID      string `json:"duelId"`
	RoundNumber int    `json:"roundNumber,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Publisher is the side of the hub the engine depends on.
type Publisher interface {
	Publish(ev Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(Event) {}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	duelID string
}

// Hub keeps subscribers grouped by duel.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Publish never blocks. A subscriber whose buffer is full is dropped.
func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logging.Error("failed to marshal duel event", err, logging.Fields{constants.LogFieldDuelID: ev.DuelID})
		return
	}
	var slow []*client
	h.mu.RLock()
	for c := range h.subs[ev.DuelID] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.remove(c)
	}
}

// Subscribers returns the number of open connections for a duel.
func (h *Hub) Subscribers(duelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[duelID])
}

// Serve upgrades the request and streams events for duelID until the
// peer goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, duelID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), duelID: duelID}
	h.mu.Lock()
	if h.subs[duelID] == nil {
		h.subs[duelID] = make(map[*client]struct{})
	}
	h.subs[duelID][c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	set, ok := h.subs[c.duelID]
	if ok {
		if _, present := set[c]; present {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.subs, c.duelID)
		}
	}
	h.mu.Unlock()
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
