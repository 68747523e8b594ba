package web

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 256
)

// Message is one page event pushed to websocket clients.
type Message struct {
	Type   string      `json:"type"`
	PageID string      `json:"page_id"`
	Data   interface{} `json:"data,omitempty"`
	Time   int64       `json:"time"`
}

// Client is a websocket connection following one page.
type Client struct {
	ID     string
	PageID string
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *PageHub
	mu     sync.Mutex
	closed bool
}

// PageHub fans page events out to the websocket clients following each page.
type PageHub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	logger     *zap.Logger
	mu         sync.RWMutex
}

func NewPageHub(logger *zap.Logger) *PageHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageHub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		broadcast:  make(chan Message, 1000),
		logger:     logger.Named("hub"),
	}
}

// Run processes registrations and broadcasts until ctx is done.
func (h *PageHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

func (h *PageHub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.logger.Debug("client connected",
		zap.String("client_id", client.ID),
		zap.String("page_id", client.PageID),
		zap.Int("total", len(h.clients)))

	go client.writePump()
}

func (h *PageHub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
		h.logger.Debug("client disconnected",
			zap.String("client_id", client.ID),
			zap.Int("total", len(h.clients)))
	}
}

func (h *PageHub) broadcastMessage(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal page event", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	for _, client := range h.clients {
		if client.PageID != msg.PageID {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("client send buffer full", zap.String("client_id", client.ID))
		}
	}
}

func (h *PageHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
}

// Publish queues an event for the clients of pageID. Events are dropped
// when the hub is saturated.
func (h *PageHub) Publish(pageID, msgType string, data interface{}) {
	msg := Message{Type: msgType, PageID: pageID, Data: data, Time: time.Now().Unix()}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping event", zap.String("type", msgType))
	}
}

// DisconnectPage drops every client following pageID.
func (h *PageHub) DisconnectPage(pageID string) {
	h.mu.RLock()
	var clients []*Client
	for _, client := range h.clients {
		if client.PageID == pageID {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.unregister <- client
	}
}

// ClientCount returns the number of connected clients, optionally for one page.
func (h *PageHub) ClientCount(pageID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if pageID == "" {
		return len(h.clients)
	}
	n := 0
	for _, client := range h.clients {
		if client.PageID == pageID {
			n++
		}
	}
	return n
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.mu.Lock()
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				c.closed = true
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				c.mu.Unlock()
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("write failed", zap.String("client_id", c.ID), zap.Error(err))
				c.closed = true
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()

		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Hub.logger.Debug("ping failed", zap.String("client_id", c.ID), zap.Error(err))
				c.closed = true
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
		}
	}
}

// Close closes the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.Conn.Close()
}

// readPump drains the connection so pongs and close frames are processed.
// Clients never send page commands over the socket.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Debug("unexpected close", zap.String("client_id", c.ID), zap.Error(err))
			}
			break
		}
	}
}
