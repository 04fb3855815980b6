// Package stream pushes market events to websocket clients.
package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efreitasn/marketsim/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512

	DefaultSendBuffer = 64
)

// Envelope is the frame every server message is wrapped in.
type Envelope struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ClientMessage is what clients send to manage their subscriptions.
type ClientMessage struct {
	Action string `json:"action"`
	Symbol string `json:"symbol"`
}

// Hub fans published events out to connected clients. Market-wide events
// (empty symbol) reach every client; symbol events reach the clients
// subscribed to that symbol. A client whose buffer is full misses the
// event rather than slowing the publisher.
type Hub struct {
	known      func(symbol string) bool
	sendBuffer int
	upgrader   websocket.Upgrader
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub. known reports whether a symbol may be subscribed
// to; nil accepts every symbol.
func NewHub(known func(string) bool, logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		known:      known,
		sendBuffer: DefaultSendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		metrics: m,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Publish implements the market's broadcaster.
func (h *Hub) Publish(topic, symbol string, payload any) {
	msg, err := json.Marshal(Envelope{Type: topic, Symbol: symbol, Data: payload})
	if err != nil {
		h.logger.Error("encode stream event", slog.String("topic", topic), slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if symbol != "" && !c.subscribed(symbol) {
			continue
		}
		if !c.trySend(msg) {
			h.metrics.BroadcastDropped()
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, h.sendBuffer),
		symbols: make(map[string]bool),
	}
	if !h.register(c) {
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
	h.metrics.StreamClients(0)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.StreamClients(len(h.clients))
	h.logger.Debug("stream client connected", slog.String("remote", c.conn.RemoteAddr().String()))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.metrics.StreamClients(n)
		h.logger.Debug("stream client disconnected", slog.String("remote", c.conn.RemoteAddr().String()))
	}
	c.close()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.Mutex
	symbols map[string]bool
	done    bool
}

func (c *client) subscribed(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.symbols[symbol]
}

// trySend reports false if the client buffer is full. Sends after close
// are ignored.
func (c *client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.done = true
	close(c.send)
}

func (c *client) readPump() {
	defer c.hub.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("stream read failed", slog.String("error", err.Error()))
			}
			return
		}
		c.handle(msg)
	}
}

func (c *client) handle(msg ClientMessage) {
	reply := func(env Envelope) {
		data, err := json.Marshal(env)
		if err == nil {
			c.trySend(data)
		}
	}

	if msg.Symbol == "" || (c.hub.known != nil && !c.hub.known(msg.Symbol)) {
		reply(Envelope{Type: "error", Symbol: msg.Symbol, Data: "unknown symbol"})
		return
	}

	switch msg.Action {
	case "subscribe":
		c.mu.Lock()
		c.symbols[msg.Symbol] = true
		c.mu.Unlock()
		reply(Envelope{Type: "subscribed", Symbol: msg.Symbol})
	case "unsubscribe":
		c.mu.Lock()
		delete(c.symbols, msg.Symbol)
		c.mu.Unlock()
		reply(Envelope{Type: "unsubscribed", Symbol: msg.Symbol})
	default:
		reply(Envelope{Type: "error", Symbol: msg.Symbol, Data: "unknown action"})
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
