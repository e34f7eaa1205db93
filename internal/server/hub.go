package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"netsim/internal/logging"
	"netsim/internal/traffic"
)

// Controller is the subset of the engine the websocket layer drives.
type Controller interface {
	Play()
	Pause()
	SetSpeed(level string) bool
	SetMode(mode string) bool
	ResetStats(ctx context.Context)
}

// controlMessage is the only inbound message shape. Anything else is
// ignored so a misbehaving viewer cannot disturb the stream.
type controlMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Level  string `json:"level,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

// client is one connected viewer. Send is buffered; the hub drops
// messages for clients that cannot keep up instead of blocking the
// broadcast path.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans the event stream out to every connected viewer and feeds
// inbound control messages to the engine. It implements
// sim.EventWriter so the engine treats it like any other sink.
type Hub struct {
	controller Controller

	// ctx is the hub's run context, used for connection pump
	// lifetimes. The per-request context dies when the upgrade
	// handler returns, so it cannot serve that role.
	ctx context.Context

	mu         sync.RWMutex
	clients    map[string]*client
	register   chan *client
	unregister chan string
	broadcast  chan []byte
}

// NewHub creates a hub driving the given controller.
func NewHub(controller Controller) *Hub {
	return &Hub{
		controller: controller,
		clients:    make(map[string]*client),
		register:   make(chan *client),
		unregister: make(chan string),
		broadcast:  make(chan []byte, 256),
	}
}

// Run manages the client set until ctx is done. Must be running before
// connections are attached.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()
	log := logging.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			total := len(h.clients)
			h.mu.Unlock()
			log.Info("viewer connected", "client", c.id, "total", total)

		case id := <-h.unregister:
			h.mu.Lock()
			if c, ok := h.clients[id]; ok {
				delete(h.clients, id)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Info("viewer disconnected", "client", id, "total", total)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow viewer, drop rather than stall the stream.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ClientCount reports the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	default:
		// Broadcast queue full. Viewers are best-effort consumers.
	}
	return nil
}

// WriteTransfer implements sim.EventWriter.
func (h *Hub) WriteTransfer(ev traffic.TransferEvent) error {
	return h.broadcastJSON(ev)
}

// WriteAlert implements sim.EventWriter.
func (h *Hub) WriteAlert(ev traffic.AlertEvent) error {
	return h.broadcastJSON(ev)
}

// WriteReset implements sim.EventWriter.
func (h *Hub) WriteReset() error {
	return h.broadcastJSON(traffic.NewResetEvent())
}

// attach registers conn as a new viewer, queues the on-connect device
// list, and starts the read and write pumps.
func (h *Hub) attach(conn *websocket.Conn, onConnect any) {
	h.mu.RLock()
	ctx := h.ctx
	h.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 256),
	}
	if data, err := json.Marshal(onConnect); err == nil {
		c.send <- data
	}
	h.register <- c

	go h.readPump(ctx, c)
	go writePump(c)
}

// readPump consumes control messages until the connection drops.
// Unknown actions and invalid parameters are logged and ignored; they
// never terminate the connection.
func (h *Hub) readPump(ctx context.Context, c *client) {
	log := logging.FromContext(ctx)
	defer func() {
		select {
		case h.unregister <- c.id:
		case <-ctx.Done():
		}
		c.conn.Close()
	}()

	for {
		var msg controlMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error("viewer read failed", "client", c.id, "err", err)
			}
			return
		}

		if msg.Type != "control" {
			log.Warn("ignoring unknown message type", "client", c.id, "msg_type", msg.Type)
			continue
		}

		switch msg.Action {
		case "play":
			h.controller.Play()
		case "pause":
			h.controller.Pause()
		case "set_speed":
			if !h.controller.SetSpeed(msg.Level) {
				log.Warn("ignoring invalid speed", "client", c.id, "level", msg.Level)
			}
		case "set_mode":
			if !h.controller.SetMode(msg.Mode) {
				log.Warn("ignoring invalid mode", "client", c.id, "mode", msg.Mode)
			}
		case "reset_stats":
			h.controller.ResetStats(ctx)
		default:
			log.Warn("ignoring unknown control action", "client", c.id, "action", msg.Action)
		}
	}
}

// writePump drains the client's send queue onto the wire.
func writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
