package table

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/dicepoker/internal/game"
)

// ErrExists is returned when creating a table whose ID is taken.
var ErrExists = errors.New("table: already exists")

// Manager tracks running tables by ID.
type Manager struct {
	opts   Options
	logger *log.Logger

	mu     sync.RWMutex
	tables map[string]*Table
}

// NewManager creates an empty manager. Every table it creates shares opts.
func NewManager(opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		opts:   opts,
		logger: opts.Logger.WithPrefix("tables"),
		tables: make(map[string]*Table),
	}
}

// Create starts a new table. IDs must be unique.
func (m *Manager) Create(cfg Config) (*Table, error) {
	if strings.TrimSpace(cfg.ID) == "" {
		return nil, fmt.Errorf("table: id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[cfg.ID]; ok {
		return nil, fmt.Errorf("%w: %q", ErrExists, cfg.ID)
	}
	t := New(cfg, m.opts)
	m.tables[cfg.ID] = t

	m.logger.Info("Table created",
		"table", cfg.ID,
		"tie_policy", cfg.TiePolicy,
		"fulfill_timeout", cfg.FulfillTimeout)
	return t, nil
}

// Get returns the table with the given ID.
func (m *Manager) Get(id string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[id]
	if !ok {
		return nil, game.NewError(game.UnknownTable, "lookup", "no table %q", id)
	}
	return t, nil
}

// Remove stops and forgets a table.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	t, ok := m.tables[id]
	delete(m.tables, id)
	m.mu.Unlock()

	if !ok {
		return game.NewError(game.UnknownTable, "remove", "no table %q", id)
	}
	t.Close()
	return nil
}

// IDs lists table IDs in order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.tables))
	for id := range m.tables {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Snapshots returns the current state of every table, ordered by ID.
func (m *Manager) Snapshots() []game.Snapshot {
	ids := m.IDs()
	out := make([]game.Snapshot, 0, len(ids))
	for _, id := range ids {
		if t, err := m.Get(id); err == nil {
			out = append(out, t.Snapshot())
		}
	}
	return out
}

// Fulfill routes oracle numbers to the table that issued the request.
func (m *Manager) Fulfill(ctx context.Context, tableID, requestID string, numbers []uint64) error {
	t, err := m.Get(tableID)
	if err != nil {
		return err
	}
	return t.Fulfill(ctx, requestID, numbers)
}

// Close stops every table.
func (m *Manager) Close() {
	m.mu.Lock()
	tables := m.tables
	m.tables = make(map[string]*Table)
	m.mu.Unlock()

	for _, t := range tables {
		t.Close()
	}
}
