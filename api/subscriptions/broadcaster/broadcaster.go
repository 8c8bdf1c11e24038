// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package broadcaster

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/inconshreveable/log15"
	"github.com/pagewallet/pagewallet/metrics"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
)

var log = log15.New("pkg", "broadcaster")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 64
)

var (
	ErrClientClosed  = errors.New("client closed")
	ErrSlowClient    = errors.New("client send buffer full")
	ErrUnknownClient = errors.New("unknown client")
)

// MessageHandler answers a message read from a client. A nil reply sends
// nothing.
type MessageHandler func(c *Client, data []byte) interface{}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	metrics.WSClients.Inc()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	delete(h.clients, c.ID)
	h.mu.Unlock()
	if ok {
		metrics.WSClients.Dec()
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ByOrigin returns the ids of the clients connected from origin, sorted.
func (h *Hub) ByOrigin(origin string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var ids []string
	for id, c := range h.clients {
		if c.Origin == origin {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Send writes msg to one client.
func (h *Hub) Send(id string, msg interface{}) error {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return errors.Wrap(ErrUnknownClient, id)
	}
	return c.WriteJSON(msg)
}

// Broadcast writes msg to every client. Slow clients are dropped.
func (h *Hub) Broadcast(msg interface{}) {
	h.BroadcastFunc(msg, nil)
}

// BroadcastFunc writes msg to the clients accepted by filter. A nil filter
// accepts every client.
func (h *Hub) BroadcastFunc(msg interface{}, filter func(*Client) bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to encode broadcast", "err", err)
		return
	}
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if filter == nil || filter(c) {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			log.Debug("broadcast skipped client", "id", c.ID, "err", err)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.Close()
	}
}

// Client is one websocket connection.
type Client struct {
	ID     string
	Origin string

	hub     *Hub
	conn    *websocket.Conn
	handler MessageHandler
	send    chan []byte
	done    chan struct{}
	once    sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, origin string, handler MessageHandler) *Client {
	return &Client{
		ID:      uuid.New(),
		Origin:  origin,
		hub:     hub,
		conn:    conn,
		handler: handler,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

// Start registers the client with its hub and starts serving it.
func (c *Client) Start() {
	c.hub.add(c)
	go c.writePump()
	go c.readPump()
}

// Close removes the client from its hub and closes the connection.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.remove(c)
	})
}

// WriteJSON queues v for the client.
func (c *Client) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(data)
}

func (c *Client) write(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.Close()
		return ErrSlowClient
	}
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("client read failed", "id", c.ID, "err", err)
			}
			return
		}
		if c.handler == nil {
			continue
		}
		if reply := c.handler(c, data); reply != nil {
			if err := c.WriteJSON(reply); err != nil {
				return
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
