package table

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lox/dicepoker/dice"
	"github.com/lox/dicepoker/internal/game"
	"github.com/lox/dicepoker/internal/oracle"
)

// ErrClosed is returned for commands sent to a stopped table.
var ErrClosed = errors.New("table: closed")

const tracerName = "github.com/lox/dicepoker/internal/table"

// Funds moves the value attached to betting actions. Debit takes it from the
// player when the action arrives; Transfer returns it when the action is
// rejected. It is usually the same account book as the session's payout.
type Funds interface {
	Debit(ctx context.Context, from game.Identity, amount uint64) error
	Transfer(ctx context.Context, to game.Identity, amount uint64) error
}

// Config describes one table.
type Config struct {
	ID             string
	TiePolicy      game.TiePolicy
	FulfillTimeout time.Duration
}

// Options holds the collaborators shared by tables.
type Options struct {
	Payout   game.Payout
	Funds    Funds
	Network  oracle.Network
	Observer Observer
	Clock    quartz.Clock
	Logger   *log.Logger
	Tracer   trace.Tracer
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = quartz.NewReal()
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
	o.Observer = NewMultiObserver(o.Observer)
	return o
}

type command struct {
	ctx   context.Context
	name  string
	fn    func(ctx context.Context) error
	reply chan error
	query bool // read-only; skips publishing a snapshot
}

// Table runs one game session on its own goroutine. Every command, oracle
// fulfillment and expiry is applied there in arrival order.
type Table struct {
	id       string
	session  *game.Session
	oracle   *oracle.Client
	funds    Funds
	observer Observer
	clock    quartz.Clock
	tracer   trace.Tracer
	logger   *log.Logger

	inbox    chan command
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	snapshot atomic.Pointer[game.Snapshot]
}

// New creates a table and starts its goroutine.
func New(cfg Config, opts Options) *Table {
	if opts.Payout == nil {
		panic("payout is required")
	}
	opts = opts.withDefaults()

	t := &Table{
		id:       cfg.ID,
		funds:    opts.Funds,
		observer: opts.Observer,
		clock:    opts.Clock,
		tracer:   opts.Tracer,
		logger:   opts.Logger.WithPrefix("table").With("table", cfg.ID),
		inbox:    make(chan command, 64),
		stopCh:   make(chan struct{}),
	}

	t.oracle = oracle.NewClient(oracle.Config{
		TableID:        cfg.ID,
		FulfillTimeout: cfg.FulfillTimeout,
		Network:        opts.Network,
		Clock:          opts.Clock,
		Logger:         opts.Logger,
		OnExpire:       t.enqueueExpiry,
		OnFulfilled:    t.onFulfilled,
	})

	t.session = game.NewSession(t.oracle, opts.Payout,
		game.WithClock(opts.Clock),
		game.WithLogger(t.logger),
		game.WithTiePolicy(cfg.TiePolicy),
		game.WithListener(game.ListenerFunc(t.onEvent)),
	)
	t.publish()

	t.wg.Add(1)
	go t.run()
	return t
}

// ID returns the table ID.
func (t *Table) ID() string { return t.id }

func (t *Table) run() {
	defer t.wg.Done()
	for {
		select {
		case <-t.stopCh:
			return
		case cmd := <-t.inbox:
			cmd.reply <- t.exec(cmd)
		}
	}
}

func (t *Table) exec(cmd command) error {
	ctx, span := t.tracer.Start(cmd.ctx, "table."+cmd.name,
		trace.WithAttributes(
			attribute.String("table.id", t.id),
			attribute.String("table.stage", t.session.Stage.String()),
		))
	defer span.End()

	err := cmd.fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.logger.Debug("Command rejected", "command", cmd.name, "error", err)
	}
	if !cmd.query {
		t.publish()
	}
	return err
}

// do runs fn on the table goroutine and waits for its result.
func (t *Table) do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return t.send(ctx, command{name: name, fn: fn})
}

// query is do for read-only commands.
func (t *Table) query(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return t.send(ctx, command{name: name, fn: fn, query: true})
}

func (t *Table) send(ctx context.Context, cmd command) error {
	// Once queued a command runs to completion even if the caller gives up.
	cmd.ctx = context.WithoutCancel(ctx)
	cmd.reply = make(chan error, 1)
	select {
	case t.inbox <- cmd:
	case <-t.stopCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-t.stopCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Table) publish() {
	snap := t.session.Snapshot()
	snap.TableID = t.id
	t.snapshot.Store(&snap)
	t.observer.OnSnapshot(snap)
}

func (t *Table) onEvent(e game.GameEvent) {
	if e.EventType() == game.EventTypeWinnerDeclared {
		// Draws requested during the hand must not leak into the next one.
		t.oracle.Reset()
		if w, ok := e.(game.WinnerDeclaredEvent); ok {
			t.logger.Info("Hand settled",
				"hand", w.Settlement.HandID,
				"reason", w.Settlement.Reason,
				"winner", w.Settlement.Winner,
				"pot", w.Settlement.Pot)
		}
	}
	t.observer.OnEvent(t.id, e)
}

func (t *Table) onFulfilled(req oracle.Request) {
	t.onEvent(game.NewRandomnessFulfilledEvent(req.FulfilledAt, req.Requester, req.ID, req.Fallback))
}

// enqueueExpiry runs on the clock's timer goroutine.
func (t *Table) enqueueExpiry(id string) {
	cmd := command{ctx: context.Background(), name: "expire", reply: make(chan error, 1), fn: func(context.Context) error {
		t.oracle.Expire(id)
		return nil
	}}
	select {
	case t.inbox <- cmd:
	case <-t.stopCh:
	}
}

// withFunds debits attached from id, runs fn and refunds when fn fails.
func (t *Table) withFunds(ctx context.Context, id game.Identity, attached uint64, fn func() error) error {
	if t.funds == nil || attached == 0 {
		return fn()
	}
	if err := t.funds.Debit(ctx, id, attached); err != nil {
		return fmt.Errorf("debit %d from %q: %w", attached, id, err)
	}
	if err := fn(); err != nil {
		if rerr := t.funds.Transfer(ctx, id, attached); rerr != nil {
			t.logger.Error("Refund failed", "player", id, "amount", attached, "error", rerr)
		}
		return err
	}
	return nil
}

// Join seats a player.
func (t *Table) Join(ctx context.Context, id game.Identity) error {
	return t.do(ctx, "join", func(context.Context) error {
		return t.session.Join(id)
	})
}

// Bet places or answers a bet with attached funds.
func (t *Table) Bet(ctx context.Context, id game.Identity, amount, attached uint64) error {
	return t.do(ctx, "bet", func(ctx context.Context) error {
		return t.withFunds(ctx, id, attached, func() error {
			return t.session.Bet(id, amount, attached)
		})
	})
}

// Raise raises by amount with attached funds.
func (t *Table) Raise(ctx context.Context, id game.Identity, amount, attached uint64) error {
	return t.do(ctx, "raise", func(ctx context.Context) error {
		return t.withFunds(ctx, id, attached, func() error {
			return t.session.Raise(id, amount, attached)
		})
	})
}

// Call matches the current bet with attached funds.
func (t *Table) Call(ctx context.Context, id game.Identity, attached uint64) error {
	return t.do(ctx, "call", func(ctx context.Context) error {
		return t.withFunds(ctx, id, attached, func() error {
			return t.session.Call(id, attached)
		})
	})
}

// Fold concedes the hand.
func (t *Table) Fold(ctx context.Context, id game.Identity) error {
	return t.do(ctx, "fold", func(ctx context.Context) error {
		return t.session.Fold(ctx, id)
	})
}

// RollDice fixes the player's dice.
func (t *Table) RollDice(ctx context.Context, id game.Identity, faces dice.Hand) error {
	return t.do(ctx, "roll_dice", func(ctx context.Context) error {
		return t.session.RollDice(ctx, id, faces)
	})
}

// RequestRandomness asks the oracle for a fresh draw for the player.
func (t *Table) RequestRandomness(ctx context.Context, id game.Identity) error {
	return t.do(ctx, "request_randomness", func(context.Context) error {
		return t.session.RequestRandomness(id)
	})
}

// RetrySettlement re-attempts a failed payout.
func (t *Table) RetrySettlement(ctx context.Context) error {
	return t.do(ctx, "retry_settlement", func(ctx context.Context) error {
		return t.session.RetrySettlement(ctx)
	})
}

// Fulfill delivers oracle numbers for a request.
func (t *Table) Fulfill(ctx context.Context, requestID string, numbers []uint64) error {
	return t.do(ctx, "fulfill", func(context.Context) error {
		return t.oracle.Fulfill(requestID, numbers)
	})
}

// CallAmount returns what the player must attach to call.
func (t *Table) CallAmount(ctx context.Context, id game.Identity) (uint64, error) {
	var amount uint64
	err := t.query(ctx, "call_amount", func(context.Context) error {
		var err error
		amount, err = t.session.GetCallAmount(id)
		return err
	})
	return amount, err
}

// PendingRequests lists unanswered oracle requests.
func (t *Table) PendingRequests() []oracle.Request {
	return t.oracle.Pending()
}

// Snapshot returns the state after the most recent command.
func (t *Table) Snapshot() game.Snapshot {
	return *t.snapshot.Load()
}

// LastSettlement returns the most recent completed settlement.
func (t *Table) LastSettlement(ctx context.Context) (game.Settlement, bool, error) {
	var (
		st game.Settlement
		ok bool
	)
	err := t.query(ctx, "last_settlement", func(context.Context) error {
		st, ok = t.session.LastSettlement()
		return nil
	})
	return st, ok, err
}

// Close stops the table goroutine and the oracle client.
func (t *Table) Close() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.wg.Wait()
		t.oracle.Close()
	})
}
