package table

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/dicepoker/internal/game"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	ledger := newLedgerStub(map[game.Identity]uint64{})
	m := NewManager(Options{
		Payout: ledger,
		Clock:  quartz.NewMock(t),
		Logger: log.NewWithOptions(io.Discard, log.Options{}),
	})
	t.Cleanup(m.Close)
	return m
}

func TestManagerTablesAreIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	a, err := m.Create(Config{ID: "high-stakes"})
	require.NoError(t, err)
	b, err := m.Create(Config{ID: "casual", TiePolicy: game.TieSplit})
	require.NoError(t, err)

	require.NoError(t, a.Join(ctx, "alice"))
	require.NoError(t, b.Join(ctx, "alice"), "the same player may sit at two tables")

	assert.Equal(t, []string{"casual", "high-stakes"}, m.IDs())
	snaps := m.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, game.TieSplit, snaps[0].TiePolicy)
	assert.Equal(t, game.TieHalt, snaps[1].TiePolicy)
}

func TestManagerRejectsDuplicatesAndBlankIDs(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	_, err := m.Create(Config{ID: "t1"})
	require.NoError(t, err)
	_, err = m.Create(Config{ID: "t1"})
	assert.ErrorIs(t, err, ErrExists)
	_, err = m.Create(Config{ID: "  "})
	assert.Error(t, err)
}

func TestManagerUnknownTable(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	_, err := m.Get("missing")
	assert.ErrorIs(t, err, game.ErrUnknownTable)
	assert.ErrorIs(t, m.Remove("missing"), game.ErrUnknownTable)
	assert.ErrorIs(t, m.Fulfill(context.Background(), "missing", "req", nil), game.ErrUnknownTable)
}

func TestManagerRoutesFulfillment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	tbl, err := m.Create(Config{ID: "t1"})
	require.NoError(t, err)
	require.NoError(t, tbl.Join(ctx, "A"))
	require.NoError(t, tbl.Join(ctx, "B"))
	require.NoError(t, tbl.RequestRandomness(ctx, "B"))

	pending := tbl.PendingRequests()
	require.Len(t, pending, 1)
	assert.Equal(t, "t1", pending[0].TableID)

	require.NoError(t, m.Fulfill(ctx, "t1", pending[0].ID, []uint64{1, 2, 3, 4, 5}))
	assert.Empty(t, tbl.PendingRequests())
}

func TestManagerRemove(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	tbl, err := m.Create(Config{ID: "t1"})
	require.NoError(t, err)
	require.NoError(t, m.Remove("t1"))

	assert.ErrorIs(t, tbl.Join(context.Background(), "A"), ErrClosed)
	assert.Empty(t, m.IDs())
}
