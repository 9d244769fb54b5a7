package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/meltforce/fretlog/internal/metronome"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 16
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSMessage is sent to metronome stream clients.
type WSMessage struct {
	Type      string           `json:"type"`
	Beat      int              `json:"beat,omitempty"`
	Volume    float64          `json:"volume,omitempty"`
	State     *metronome.State `json:"state,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// Compile-time check: *Hub satisfies metronome.Sink.
var _ metronome.Sink = (*Hub)(nil)

// Hub fans metronome beats out to websocket clients, which play the click.
// It implements metronome.Sink.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	log     *slog.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{clients: make(map[*wsClient]struct{}), log: log}
}

// Click implements metronome.Sink.
func (h *Hub) Click(beat int, volume float64) {
	h.broadcast(WSMessage{Type: "click", Beat: beat, Volume: volume})
}

// State announces a metronome state change.
func (h *Hub) State(st metronome.State) {
	h.broadcast(WSMessage{Type: "state", State: &st})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// broadcast never blocks; a client too slow to drain its buffer misses beats.
func (h *Hub) broadcast(msg WSMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encoding websocket message", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ServeWS upgrades the request and streams beats until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, initial metronome.State) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	if data, err := json.Marshal(WSMessage{Type: "state", State: &initial, Timestamp: time.Now().UnixMilli()}); err == nil {
		c.send <- data
	}
	h.register(c)

	go c.writePump()
	c.readPump(h)
}

// readPump only watches for close and pong frames; clients send nothing.
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", "error", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
