// Package feed pushes round snapshots to websocket subscribers of the same
// account.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"blackjack-backend/server/game"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

type client struct {
	address string
	conn    *websocket.Conn
	send    chan []byte
	once    sync.Once
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger: logger.WithPrefix("feed"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[string]map[*client]struct{}),
	}
}

// Publish fans snap out to the address's subscribers. Slow subscribers
// miss messages rather than block the game.
func (h *Hub) Publish(address string, snap *game.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := h.subs[address]
	if len(clients) == 0 {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("marshal snapshot", "address", address, "err", err)
		return
	}
	for c := range clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("subscriber lagging, dropping snapshot", "address", address)
		}
	}
}

// Subscribers reports how many connections follow address.
func (h *Hub) Subscribers(address string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[address])
}

// ServeWS upgrades the request and streams snapshots for address until the
// client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, address string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "err", err)
		return
	}
	c := &client{address: address, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	h.logger.Debug("subscribed", "address", address)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[c.address]
	if !ok {
		set = make(map[*client]struct{})
		h.subs[c.address] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[c.address]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, c.address)
		}
	}
	c.once.Do(func() { close(c.send) })
}

// readPump only services control frames; clients do not send data.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("unexpected close", "address", c.address, "err", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
