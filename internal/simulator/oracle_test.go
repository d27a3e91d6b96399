package simulator

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/dicepoker/dice"
	"github.com/lox/dicepoker/internal/game"
	"github.com/lox/dicepoker/internal/oracle"
	"github.com/lox/dicepoker/internal/table"
	"github.com/lox/dicepoker/internal/wallet"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

type fulfillment struct {
	tableID   string
	requestID string
	numbers   []uint64
}

type fakeFulfiller struct {
	mu    sync.Mutex
	calls []fulfillment
}

func (f *fakeFulfiller) Fulfill(_ context.Context, tableID, requestID string, numbers []uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fulfillment{tableID, requestID, numbers})
	return nil
}

func (f *fakeFulfiller) snapshot() []fulfillment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fulfillment(nil), f.calls...)
}

func TestOracleRequiresBinding(t *testing.T) {
	t.Parallel()
	o := NewOracle(OracleConfig{Clock: quartz.NewMock(t), Logger: testLogger()})
	t.Cleanup(o.Close)

	err := o.Dispatch(context.Background(), oracle.Request{ID: "r1", Count: 5})
	assert.ErrorIs(t, err, ErrNotBound)
}

func TestOracleAnswersAfterDelay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := quartz.NewMock(t)
	o := NewOracle(OracleConfig{Delay: 200 * time.Millisecond, Seed: 7, Clock: clock, Logger: testLogger()})
	t.Cleanup(o.Close)
	f := &fakeFulfiller{}
	o.Bind(f)

	require.NoError(t, o.Dispatch(ctx, oracle.Request{ID: "r1", TableID: "t1", Count: 5}))
	clock.Advance(100 * time.Millisecond).MustWait(ctx)
	assert.Empty(t, f.snapshot())

	clock.Advance(100 * time.Millisecond).MustWait(ctx)
	require.Eventually(t, func() bool { return len(f.snapshot()) == 1 }, time.Second, time.Millisecond)

	got := f.snapshot()[0]
	assert.Equal(t, "t1", got.tableID)
	assert.Equal(t, "r1", got.requestID)
	assert.Len(t, got.numbers, 5)

	dispatched, dropped := o.Stats()
	assert.EqualValues(t, 1, dispatched)
	assert.EqualValues(t, 0, dropped)
}

func TestOracleIsReproducible(t *testing.T) {
	t.Parallel()
	a := NewOracle(OracleConfig{Seed: 42, Logger: testLogger()})
	b := NewOracle(OracleConfig{Seed: 42, Logger: testLogger()})
	c := NewOracle(OracleConfig{Seed: 43, Logger: testLogger()})

	first := a.Numbers(5)
	assert.Equal(t, first, b.Numbers(5))
	assert.NotEqual(t, first, c.Numbers(5))
}

func TestOracleDropsAnswers(t *testing.T) {
	t.Parallel()
	o := NewOracle(OracleConfig{Seed: 1, DropRate: 1, Logger: testLogger()})

	for range 3 {
		assert.Nil(t, o.Numbers(5))
	}
	_, dropped := o.Stats()
	assert.EqualValues(t, 3, dropped)
}

func TestOracleCloseCancelsScheduledAnswers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := quartz.NewMock(t)
	o := NewOracle(OracleConfig{Delay: time.Second, Clock: clock, Logger: testLogger()})
	f := &fakeFulfiller{}
	o.Bind(f)

	require.NoError(t, o.Dispatch(ctx, oracle.Request{ID: "r1", TableID: "t1", Count: 5}))
	o.Close()

	clock.Advance(time.Second).MustWait(ctx)
	assert.Empty(t, f.snapshot())
	assert.ErrorIs(t, o.Dispatch(ctx, oracle.Request{ID: "r2", Count: 5}), ErrClosed)
}

func TestOracleDrivesTableRolls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	o := NewOracle(OracleConfig{Delay: 100 * time.Millisecond, Seed: 3, Clock: clock, Logger: testLogger()})
	t.Cleanup(o.Close)

	escrow := wallet.NewEscrow(clock)
	escrow.Deposit("alice", 100)
	escrow.Deposit("bob", 100)

	mgr := table.NewManager(table.Options{
		Payout:  escrow,
		Funds:   escrow,
		Network: o,
		Clock:   clock,
		Logger:  testLogger(),
	})
	t.Cleanup(mgr.Close)
	o.Bind(mgr)

	tbl, err := mgr.Create(table.Config{ID: "t1"})
	require.NoError(t, err)

	require.NoError(t, tbl.Join(ctx, "alice"))
	require.NoError(t, tbl.Join(ctx, "bob"))
	require.NoError(t, tbl.Bet(ctx, "alice", 10, 10))
	require.NoError(t, tbl.Call(ctx, "bob", 10))

	allRandom := dice.Hand{1, 1, 1, 1, 1}
	err = tbl.RollDice(ctx, "alice", allRandom)
	require.ErrorIs(t, err, game.ErrRandomnessNotReady)

	require.Eventually(t, func() bool {
		dispatched, _ := o.Stats()
		return dispatched == 1
	}, time.Second, time.Millisecond)
	clock.Advance(100 * time.Millisecond).MustWait(ctx)
	require.Eventually(t, func() bool { return len(tbl.PendingRequests()) == 0 }, time.Second, time.Millisecond)

	require.NoError(t, tbl.RollDice(ctx, "alice", allRandom))
	snap := tbl.Snapshot()
	assert.Equal(t, game.Player2RollDice, snap.Stage)
	assert.True(t, snap.PlayerDice[0].Valid())
}
