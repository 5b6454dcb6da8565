// Package broadcast fans status snapshots out to connected WebSocket clients.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/nrep-ug/mysql-monitor/internal/metrics"
	"github.com/nrep-ug/mysql-monitor/pkg/logging"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Frames queued per client before it is considered too slow and pruned
	sendBuffer = 16
)

// Upgrader is shared by the HTTP layer. Authentication happens before the
// upgrade, so every origin is accepted.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope of every frame pushed to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of active clients. It is safe for concurrent use.
type Hub struct {
	clients map[*Client]struct{}
	logger  logging.Logger
	metrics *metrics.Metrics
	mutex   sync.RWMutex
}

// Client is one admitted WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger logging.Entry
}

// NewHub creates an empty hub. m may be nil.
func NewHub(logger logging.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
		metrics: m,
	}
}

// Admit registers conn and queues initial as its first frame, then starts the
// connection's pumps. Frames pushed after Admit returns are delivered after
// initial, in push order.
func (h *Hub) Admit(conn *websocket.Conn, initial Message) (*Client, error) {
	payload, err := json.Marshal(initial)
	if err != nil {
		return nil, err
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		logger: h.logger.WithField("remote_addr", conn.RemoteAddr().String()),
	}
	client.send <- payload

	h.register(client)

	go client.writePump()
	go client.readPump()
	return client, nil
}

func (h *Hub) register(client *Client) {
	h.mutex.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.setConnections(n)
	h.mutex.Unlock()
	h.logger.WithFields(logging.Fields{
		"client_count": n,
	}).Info("Client connected")
}

// Broadcast sends one frame to every admitted client. A client whose queue is
// full is pruned. It returns the number of clients the frame was queued for.
func (h *Hub) Broadcast(msgType string, data any) int {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal broadcast message")
		return 0
	}
	n := h.push(payload)
	if h.metrics != nil {
		h.metrics.HubMessages.WithLabelValues(msgType).Add(float64(n))
	}
	return n
}

func (h *Hub) push(payload []byte) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	delivered := 0
	for client := range h.clients {
		select {
		case client.send <- payload:
			delivered++
		default:
			close(client.send)
			delete(h.clients, client)
			client.logger.Warn("Client send queue full, dropping client")
		}
	}
	h.setConnections(len(h.clients))
	return delivered
}

// Count returns the number of admitted clients.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.setConnections(0)
}

// unregister is idempotent; pruning and read errors may race to remove the same client.
func (h *Hub) unregister(client *Client) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.setConnections(n)
	h.mutex.Unlock()
	if ok {
		h.logger.WithFields(logging.Fields{
			"client_count": n,
		}).Info("Client disconnected")
	}
}

func (h *Hub) setConnections(n int) {
	if h.metrics != nil {
		h.metrics.HubConnections.WithLabelValues().Set(float64(n))
	}
}

// readPump drains the connection so control frames are processed. Inbound
// data frames are ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Warn("WebSocket connection error")
			}
			return
		}
	}
}

// writePump writes queued frames one per WebSocket message and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
