package server

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/dicepoker/internal/game"
	"github.com/lox/dicepoker/internal/table"
)

// SnapshotLookup returns the current snapshots for a table ID, or for every
// table when given AllTables.
type SnapshotLookup func(tableID string) ([]game.Snapshot, error)

// Hub tracks websocket connections and pushes table activity to the ones
// subscribed. It is a table.Observer.
type Hub struct {
	clock  quartz.Clock
	logger *log.Logger

	mu     sync.RWMutex
	conns  map[*Connection]struct{}
	lookup SnapshotLookup
	closed bool
}

var _ table.Observer = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(clock quartz.Clock, logger *log.Logger) *Hub {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		clock:  clock,
		logger: logger.WithPrefix("hub"),
		conns:  make(map[*Connection]struct{}),
	}
}

func (h *Hub) setLookup(fn SnapshotLookup) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lookup = fn
}

func (h *Hub) snapshots(tableID string) ([]game.Snapshot, error) {
	h.mu.RLock()
	fn := h.lookup
	h.mu.RUnlock()
	if fn == nil {
		return nil, nil
	}
	return fn(tableID)
}

func (h *Hub) register(c *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	h.logger.Info("Client connected", "total", len(h.conns))
	return true
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)
	h.logger.Info("Client disconnected", "total", len(h.conns))
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) OnEvent(tableID string, e game.GameEvent) {
	msg, err := NewMessage(MessageTypeEvent, EventData{
		TableID: tableID,
		Type:    e.EventType(),
		At:      e.Timestamp(),
		Event:   e,
	}, h.clock.Now())
	if err != nil {
		h.logger.Error("Failed to encode event", "table", tableID, "event", e.EventType(), "error", err)
		return
	}
	h.broadcast(tableID, msg)
}

func (h *Hub) OnSnapshot(snap game.Snapshot) {
	msg, err := NewMessage(MessageTypeSnapshot, snap, h.clock.Now())
	if err != nil {
		h.logger.Error("Failed to encode snapshot", "table", snap.TableID, "error", err)
		return
	}
	h.broadcast(snap.TableID, msg)
}

func (h *Hub) broadcast(tableID string, msg *Message) {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.conns))
	for c := range h.conns {
		if c.Subscribed(tableID) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		_ = c.SendMessage(msg)
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Connection, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
