package simulator

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/dicepoker/internal/oracle"
	"github.com/lox/dicepoker/internal/randutil"
)

// ErrNotBound is returned by Dispatch before Bind has been called.
var ErrNotBound = errors.New("simulator: no fulfiller bound")

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("simulator: closed")

// Fulfiller delivers numbers to the table that asked for them.
// table.Manager implements it.
type Fulfiller interface {
	Fulfill(ctx context.Context, tableID, requestID string, numbers []uint64) error
}

// OracleConfig configures the development oracle.
type OracleConfig struct {
	// Delay before each answer is delivered.
	Delay time.Duration
	Seed  int64
	// DropRate is the probability that an answer carries no numbers, which
	// makes the client fall back to its local generator.
	DropRate float64
	Clock    quartz.Clock
	Logger   *log.Logger
}

// Oracle is a development oracle.Network. It answers every request after a
// fixed delay with numbers from a seeded generator. Its output is
// reproducible and must never settle real wagers.
type Oracle struct {
	cfg    OracleConfig
	clock  quartz.Clock
	logger *log.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	target Fulfiller
	timers map[string]*quartz.Timer
	closed bool
	wg     sync.WaitGroup

	dispatched atomic.Int64
	dropped    atomic.Int64
}

var _ oracle.Network = (*Oracle)(nil)

// NewOracle creates an unbound oracle.
func NewOracle(cfg OracleConfig) *Oracle {
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Oracle{
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: cfg.Logger.WithPrefix("simulator"),
		rng:    randutil.New(cfg.Seed),
		timers: make(map[string]*quartz.Timer),
	}
}

// Bind sets where answers are delivered. Tables need the oracle before the
// fulfiller exists, so binding happens after construction.
func (o *Oracle) Bind(f Fulfiller) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.target = f
}

// Dispatch schedules an answer for req.
func (o *Oracle) Dispatch(_ context.Context, req oracle.Request) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.target == nil {
		return ErrNotBound
	}

	target := o.target
	numbers := o.drawLocked(req.Count)
	o.dispatched.Add(1)
	if numbers == nil {
		o.dropped.Add(1)
	}

	o.wg.Add(1)
	o.timers[req.ID] = o.clock.AfterFunc(o.cfg.Delay, func() {
		defer o.wg.Done()

		o.mu.Lock()
		delete(o.timers, req.ID)
		o.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := target.Fulfill(ctx, req.TableID, req.ID, numbers); err != nil {
			o.logger.Warn("Fulfillment rejected", "table", req.TableID, "request", req.ID, "error", err)
			return
		}
		o.logger.Debug("Fulfilled", "table", req.TableID, "request", req.ID, "numbers", len(numbers))
	})
	return nil
}

// Numbers draws count numbers from the generator, applying the drop rate.
// A nil result is a dropped answer.
func (o *Oracle) Numbers(count int) []uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	numbers := o.drawLocked(count)
	if numbers == nil {
		o.dropped.Add(1)
	}
	return numbers
}

// drawLocked must be called with o.mu held.
func (o *Oracle) drawLocked(count int) []uint64 {
	if o.cfg.DropRate > 0 && o.rng.Float64() < o.cfg.DropRate {
		return nil
	}
	numbers := make([]uint64, count)
	for i := range numbers {
		numbers[i] = o.rng.Uint64()
	}
	return numbers
}

// Stats returns how many requests were dispatched and how many of all
// answers were dropped.
func (o *Oracle) Stats() (dispatched, dropped int64) {
	return o.dispatched.Load(), o.dropped.Load()
}

// Close cancels scheduled answers and waits for running ones.
func (o *Oracle) Close() {
	o.mu.Lock()
	o.closed = true
	for id, t := range o.timers {
		if t.Stop() {
			o.wg.Done()
		}
		delete(o.timers, id)
	}
	o.mu.Unlock()

	o.wg.Wait()
}
