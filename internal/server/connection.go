package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
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
	maxMessageSize = 4096

	sendBuffer = 256
)

// ErrConnectionClosed is returned when sending to a closed connection.
var ErrConnectionClosed = errors.New("server: connection closed")

// Connection is one websocket client. Clients only watch: they subscribe to
// tables and receive snapshots and events.
type Connection struct {
	conn   *websocket.Conn
	hub    *Hub
	send   chan *Message
	logger *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu     sync.RWMutex
	tables map[string]struct{}
}

// NewConnection wraps conn.
func NewConnection(conn *websocket.Conn, hub *Hub, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:   conn,
		hub:    hub,
		send:   make(chan *Message, sendBuffer),
		logger: logger.WithPrefix("conn").With("remote", conn.RemoteAddr().String()),
		ctx:    ctx,
		cancel: cancel,
		tables: make(map[string]struct{}),
	}
}

// Start begins handling the connection.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection has shut down.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

// Close closes the connection.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues msg. A client that cannot keep up is disconnected.
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// Subscribed reports whether the client watches tableID.
func (c *Connection) Subscribed(tableID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.tables[AllTables]; ok {
		return true
	}
	_, ok := c.tables[tableID]
	return ok
}

func (c *Connection) subscribe(tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[tableID] = struct{}{}
}

func (c *Connection) unsubscribe(tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, tableID)
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type)

	switch msg.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe:
		var data SubscribeData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.TableID == "" {
			c.sendError(msg.RequestID, "invalid_message", "subscribe needs a table_id")
			return
		}
		if msg.Type == MessageTypeUnsubscribe {
			c.unsubscribe(data.TableID)
			return
		}

		snaps, err := c.hub.snapshots(data.TableID)
		if err != nil {
			c.sendError(msg.RequestID, codeFor(err), err.Error())
			return
		}
		c.subscribe(data.TableID)
		for _, snap := range snaps {
			c.reply(MessageTypeSnapshot, msg.RequestID, snap)
		}

	case MessageTypePing:
		c.reply(MessageTypePong, msg.RequestID, nil)

	default:
		c.sendError(msg.RequestID, "unknown_message", "unknown message type "+string(msg.Type))
	}
}

func (c *Connection) reply(t MessageType, requestID string, data any) {
	msg, err := NewMessage(t, data, c.hub.clock.Now())
	if err != nil {
		c.logger.Error("Failed to encode reply", "type", t, "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}

func (c *Connection) sendError(requestID, code, message string) {
	c.reply(MessageTypeError, requestID, ErrorData{Code: code, Message: message})
}
