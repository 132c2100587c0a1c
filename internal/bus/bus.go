// Package bus is the websocket fan-out between the daemon and companion
// clients. Outbound it broadcasts announcements and session state; inbound
// it accepts position fixes and control commands.
package bus

import (
	"encoding/json"
	"net/http"
	"sync"

	log "log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const sendQueueLen = 16

// Event is one outbound frame.
type Event struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`
}

// Inbound is one frame from a companion client.
type Inbound struct {
	Type    string  `json:"type"` // "position" or "command"
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
	Heading float64 `json:"heading,omitempty"`
	Speed   float64 `json:"speed,omitempty"`
	Cmd     string  `json:"cmd,omitempty"`
	Arg     string  `json:"arg,omitempty"`
}

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client

	onPosition func(lat, lon, heading, speed float64)
	onCommand  func(cmd, arg string)
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func NewHub(onPosition func(lat, lon, heading, speed float64), onCommand func(cmd, arg string)) *Hub {
	return &Hub{
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:    map[string]*client{},
		onPosition: onPosition,
		onCommand:  onCommand,
	}
}

// ServeHTTP upgrades the connection and keeps it until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendQueueLen),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	log.Info("bus client connected", "id", c.id, "clients", n)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in Inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			log.Warn("bad bus frame", "id", c.id, "err", err)
			continue
		}
		switch in.Type {
		case "position":
			if h.onPosition != nil {
				h.onPosition(in.Lat, in.Lon, in.Heading, in.Speed)
			}
		case "command":
			if h.onCommand != nil {
				h.onCommand(in.Cmd, in.Arg)
			}
		default:
			log.Warn("unknown bus frame type", "type", in.Type)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
	log.Info("bus client disconnected", "id", c.id)
}

// Broadcast sends an event to every connected client. Slow clients are
// disconnected rather than allowed to stall the session.
func (h *Hub) Broadcast(kind string, payload any) {
	data, err := json.Marshal(Event{Kind: kind, Payload: payload})
	if err != nil {
		log.Error("marshal bus event", "kind", kind, "err", err)
		return
	}

	h.mu.Lock()
	var stalled []*client
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.Unlock()

	for _, c := range stalled {
		log.Warn("dropping stalled bus client", "id", c.id)
		h.drop(c)
	}
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
