package oracle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/dicepoker/internal/game"
)

// ErrUnknownRequest is returned when fulfilling or expiring an ID the client
// never issued or has already discarded.
var ErrUnknownRequest = errors.New("oracle: unknown request")

// DefaultFulfillTimeout is used when Config.FulfillTimeout is zero.
const DefaultFulfillTimeout = 30 * time.Second

// Request is one outstanding or fulfilled ask for random numbers.
type Request struct {
	ID          string        `json:"id"`
	TableID     string        `json:"table_id,omitempty"`
	Requester   game.Identity `json:"requester"`
	Count       int           `json:"count"`
	Fulfilled   bool          `json:"fulfilled"`
	Fallback    bool          `json:"fallback"`
	Numbers     []uint64      `json:"numbers,omitempty"`
	RequestedAt time.Time     `json:"requested_at"`
	FulfilledAt time.Time     `json:"fulfilled_at,omitzero"`
}

// Network carries requests to whatever produces the randomness.
type Network interface {
	Dispatch(ctx context.Context, req Request) error
}

// Config configures a Client.
type Config struct {
	TableID string
	// FulfillTimeout is how long a request may stay unanswered before it is
	// completed from the fallback generator. Negative disables expiry.
	FulfillTimeout time.Duration
	// Network receives every new request. Nil means fulfillments arrive
	// through Fulfill only.
	Network Network
	Clock   quartz.Clock
	Logger  *log.Logger
	// OnExpire is called from the timer goroutine when a request times out.
	// The owner is expected to call Expire(id) from its own goroutine. When
	// nil, Expire is called directly.
	OnExpire func(id string)
	// OnFulfilled is called, without the client lock held, each time a
	// request becomes fulfilled.
	OnFulfilled func(Request)
}

// Client tracks randomness requests for one table. It implements
// game.RandomnessSource.
type Client struct {
	cfg    Config
	clock  quartz.Clock
	logger *log.Logger

	mu          sync.Mutex
	requests    map[string]*Request
	byRequester map[game.Identity]string
	timers      map[string]*quartz.Timer

	dispatchWG sync.WaitGroup
}

var _ game.RandomnessSource = (*Client)(nil)

// NewClient creates a client.
func NewClient(cfg Config) *Client {
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.FulfillTimeout == 0 {
		cfg.FulfillTimeout = DefaultFulfillTimeout
	}
	return &Client{
		cfg:         cfg,
		clock:       cfg.Clock,
		logger:      cfg.Logger.WithPrefix("oracle"),
		requests:    make(map[string]*Request),
		byRequester: make(map[game.Identity]string),
		timers:      make(map[string]*quartz.Timer),
	}
}

// Request registers a request for count numbers and dispatches it to the
// network. It does not wait for the answer.
//
// A requester holds at most one request until its numbers are consumed, so a
// fulfilled draw cannot be thrown away for a fresh one.
func (c *Client) Request(requester game.Identity, count int) (string, error) {
	if count <= 0 {
		return "", fmt.Errorf("oracle: count must be positive, got %d", count)
	}

	c.mu.Lock()
	if id, ok := c.byRequester[requester]; ok {
		state := "unfulfilled"
		if c.requests[id].Fulfilled {
			state = "unconsumed"
		}
		c.mu.Unlock()
		return "", game.NewError(game.RequestAlreadyPending, "request randomness", "%q already holds %s request %s", requester, state, id)
	}
	req := &Request{
		ID:          uuid.NewString(),
		TableID:     c.cfg.TableID,
		Requester:   requester,
		Count:       count,
		RequestedAt: c.clock.Now(),
	}
	c.requests[req.ID] = req
	c.byRequester[requester] = req.ID
	if c.cfg.FulfillTimeout > 0 {
		id := req.ID
		c.timers[id] = c.clock.AfterFunc(c.cfg.FulfillTimeout, func() {
			if c.cfg.OnExpire != nil {
				c.cfg.OnExpire(id)
				return
			}
			c.Expire(id)
		})
	}
	snapshot := req.clone()
	c.mu.Unlock()

	c.logger.Debug("Randomness requested", "request", snapshot.ID, "requester", requester, "count", count)

	if c.cfg.Network != nil {
		c.dispatchWG.Add(1)
		go func() {
			defer c.dispatchWG.Done()
			if err := c.cfg.Network.Dispatch(context.Background(), snapshot); err != nil {
				c.logger.Warn("Dispatch failed; request will expire to fallback", "request", snapshot.ID, "error", err)
			}
		}()
	}
	return snapshot.ID, nil
}

// Fulfill completes request id with numbers. Empty numbers are replaced by
// the fallback generator and short ones padded from it. Fulfilling an
// already fulfilled request is a no-op.
func (c *Client) Fulfill(id string, numbers []uint64) error {
	c.mu.Lock()
	req, ok := c.requests[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	if req.Fulfilled {
		c.mu.Unlock()
		c.logger.Debug("Ignoring repeated fulfillment", "request", id)
		return nil
	}

	reason := ""
	switch {
	case len(numbers) == 0:
		reason = "empty result"
	case len(numbers) < req.Count:
		reason = "short result"
	}
	got := min(len(numbers), req.Count)
	filled := make([]uint64, req.Count)
	copy(filled, numbers[:got])
	if got < req.Count {
		copy(filled[got:], FallbackNumbers(c.clock.Now(), req.Requester, got, req.Count-got))
	}
	done := c.complete(req, filled, reason != "")
	c.mu.Unlock()

	if reason != "" {
		c.warnFallback(done, reason)
	}
	c.notify(done)
	return nil
}

// Expire completes request id from the fallback generator if it is still
// unanswered. It reports whether anything changed.
func (c *Client) Expire(id string) bool {
	c.mu.Lock()
	req, ok := c.requests[id]
	if !ok || req.Fulfilled {
		c.mu.Unlock()
		return false
	}
	done := c.complete(req, FallbackNumbers(c.clock.Now(), req.Requester, 0, req.Count), true)
	c.mu.Unlock()

	c.warnFallback(done, "timed out")
	c.notify(done)
	return true
}

// complete must be called with c.mu held.
func (c *Client) complete(req *Request, numbers []uint64, fallback bool) Request {
	req.Numbers = numbers
	req.Fallback = fallback
	req.Fulfilled = true
	req.FulfilledAt = c.clock.Now()
	if t, ok := c.timers[req.ID]; ok {
		t.Stop()
		delete(c.timers, req.ID)
	}
	return req.clone()
}

func (c *Client) warnFallback(req Request, reason string) {
	c.logger.Warn("Using weak fallback randomness",
		"request", req.ID,
		"requester", req.Requester,
		"reason", reason)
}

func (c *Client) notify(req Request) {
	if c.cfg.OnFulfilled != nil {
		c.cfg.OnFulfilled(req)
	}
}

// Ready returns the fulfilled draw for requester without consuming it.
func (c *Client) Ready(requester game.Identity) (game.Draw, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := c.fulfilledFor(requester)
	if req == nil {
		return game.Draw{}, false
	}
	return req.draw(), true
}

// Consume returns the fulfilled draw for requester and discards the request.
func (c *Client) Consume(requester game.Identity) (game.Draw, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := c.fulfilledFor(requester)
	if req == nil {
		return game.Draw{}, false
	}
	c.discard(req.ID)
	return req.draw(), true
}

func (c *Client) fulfilledFor(requester game.Identity) *Request {
	id, ok := c.byRequester[requester]
	if !ok {
		return nil
	}
	req := c.requests[id]
	if !req.Fulfilled {
		return nil
	}
	return req
}

// Get returns a copy of request id.
func (c *Client) Get(id string) (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.requests[id]
	if !ok {
		return Request{}, false
	}
	return req.clone(), true
}

// Pending lists unanswered requests, oldest first.
func (c *Client) Pending() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Request
	for _, req := range c.requests {
		if !req.Fulfilled {
			out = append(out, req.clone())
		}
	}
	slices.SortFunc(out, func(a, b Request) int {
		return a.RequestedAt.Compare(b.RequestedAt)
	})
	return out
}

// Reset discards every request, fulfilled or not. Tables call it when a
// hand ends so no draw carries over into the next hand.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.requests {
		c.discard(id)
	}
}

// discard must be called with c.mu held.
func (c *Client) discard(id string) {
	req, ok := c.requests[id]
	if !ok {
		return
	}
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	delete(c.byRequester, req.Requester)
	delete(c.requests, id)
}

// Close stops all timers and waits for in-flight dispatches.
func (c *Client) Close() {
	c.Reset()
	c.dispatchWG.Wait()
}

func (r *Request) clone() Request {
	out := *r
	out.Numbers = slices.Clone(r.Numbers)
	return out
}

func (r *Request) draw() game.Draw {
	return game.Draw{
		RequestID: r.ID,
		Numbers:   slices.Clone(r.Numbers),
		Fallback:  r.Fallback,
	}
}
