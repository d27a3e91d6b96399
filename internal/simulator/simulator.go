// Package simulator plays bot-vs-bot dice poker against an in-process table
// and provides a development oracle that answers randomness requests.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/dicepoker/dice"
	"github.com/lox/dicepoker/internal/game"
	"github.com/lox/dicepoker/internal/randutil"
	"github.com/lox/dicepoker/internal/statistics"
	"github.com/lox/dicepoker/internal/table"
	"github.com/lox/dicepoker/internal/wallet"
)

// Style is a bot's betting behaviour.
type Style string

const (
	StylePassive    Style = "passive"    // opens small, always calls
	StyleAggressive Style = "aggressive" // over-bets and raises up to the cap
	StyleRandom     Style = "random"     // mixes calls, raises and folds
	StyleTimid      Style = "timid"      // folds whenever raised
)

// Styles lists the known styles.
var Styles = []Style{StylePassive, StyleAggressive, StyleRandom, StyleTimid}

// ParseStyle validates s.
func ParseStyle(s string) (Style, error) {
	if slices.Contains(Styles, Style(s)) {
		return Style(s), nil
	}
	return "", fmt.Errorf("unknown style %q", s)
}

const (
	heroID     game.Identity = "hero"
	villainID  game.Identity = "villain"
	maxActions               = 64
)

// Config holds configuration for running simulations.
type Config struct {
	Hands     int
	Seed      int64
	Hero      Style
	Villain   Style
	TiePolicy game.TiePolicy
	// Stake is the opening bet and the raise increment.
	Stake     uint64
	MaxRaises int
	// DropRate is passed to the oracle to exercise the fallback path.
	DropRate float64
	Timeout  time.Duration
	Logger   *log.Logger
}

func (c Config) withDefaults() Config {
	if c.Hero == "" {
		c.Hero = StylePassive
	}
	if c.Villain == "" {
		c.Villain = StylePassive
	}
	if c.Stake == 0 {
		c.Stake = 10
	}
	if c.MaxRaises == 0 {
		c.MaxRaises = 3
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

// Simulator runs dice poker hand simulations.
type Simulator struct {
	config Config
}

// New creates a simulator.
func New(config Config) *Simulator {
	return &Simulator{config: config.withDefaults()}
}

// Run plays the configured number of hands and returns the hero's results.
// Seats alternate every hand so neither bot keeps the first-to-act slot.
func (s *Simulator) Run(ctx context.Context) (*statistics.Statistics, error) {
	cfg := s.config
	if cfg.Hands <= 0 {
		return nil, fmt.Errorf("hands must be positive, got %d", cfg.Hands)
	}
	if _, err := ParseStyle(string(cfg.Hero)); err != nil {
		return nil, fmt.Errorf("hero: %w", err)
	}
	if _, err := ParseStyle(string(cfg.Villain)); err != nil {
		return nil, fmt.Errorf("villain: %w", err)
	}

	clock := quartz.NewReal()
	escrow := wallet.NewEscrow(clock)
	bankroll := cfg.Stake * uint64(cfg.MaxRaises+2) * uint64(cfg.Hands) * 4
	escrow.Deposit(heroID, bankroll)
	escrow.Deposit(villainID, bankroll)

	rec := &handRecorder{}
	tbl := table.New(table.Config{
		ID:             "simulation",
		TiePolicy:      cfg.TiePolicy,
		FulfillTimeout: -1,
	}, table.Options{
		Payout:   escrow,
		Funds:    escrow,
		Observer: rec,
		Clock:    clock,
		Logger:   cfg.Logger,
	})
	defer tbl.Close()

	source := NewOracle(OracleConfig{Seed: cfg.Seed, DropRate: cfg.DropRate, Logger: cfg.Logger})
	stats := &statistics.Statistics{}

	for hand := range cfg.Hands {
		handSeed := cfg.Seed + int64(hand)
		heroSeat := hand % 2

		p := &play{
			cfg:      cfg,
			table:    tbl,
			source:   source,
			rng:      randutil.New(handSeed),
			heroSeat: heroSeat,
		}

		before := escrow.Balance(heroID)
		rec.reset()

		handCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		settlement, err := p.playHand(handCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("hand %d (seed %d): %w", hand+1, handSeed, err)
		}

		stats.Add(statistics.HandResult{
			Net:      int64(escrow.Balance(heroID)) - int64(before),
			Seed:     handSeed,
			Seat:     heroSeat,
			Outcome:  outcomeOf(settlement.Reason),
			Pot:      settlement.Pot,
			Raises:   p.raises,
			Fallback: rec.fallback(),
		})
	}

	if held := escrow.Held(); held != 0 {
		return nil, fmt.Errorf("escrow still holds %d after all hands settled", held)
	}
	if err := stats.Validate(); err != nil {
		return nil, fmt.Errorf("statistics validation failed: %w", err)
	}
	return stats, nil
}

func outcomeOf(reason game.SettlementReason) statistics.Outcome {
	switch reason {
	case game.ReasonFold:
		return statistics.OutcomeFold
	case game.ReasonSplit:
		return statistics.OutcomeSplit
	default:
		return statistics.OutcomeShowdown
	}
}

// play is the state of one hand in progress.
type play struct {
	cfg      Config
	table    *table.Table
	source   *Oracle
	rng      *rand.Rand
	heroSeat int
	raises   int
}

func (p *play) identity(slot int) game.Identity {
	if slot == p.heroSeat {
		return heroID
	}
	return villainID
}

func (p *play) style(slot int) Style {
	if slot == p.heroSeat {
		return p.cfg.Hero
	}
	return p.cfg.Villain
}

func (p *play) playHand(ctx context.Context) (game.Settlement, error) {
	for slot := range 2 {
		if err := p.table.Join(ctx, p.identity(slot)); err != nil {
			return game.Settlement{}, fmt.Errorf("join: %w", err)
		}
	}
	handID := p.table.Snapshot().HandID

	for range maxActions {
		snap := p.table.Snapshot()
		if snap.Stage == game.Joining {
			last, ok, err := p.table.LastSettlement(ctx)
			if err != nil {
				return game.Settlement{}, err
			}
			if !ok || last.HandID != handID {
				return game.Settlement{}, errors.New("hand ended without a settlement")
			}
			return last, nil
		}
		if err := p.step(ctx, snap); err != nil {
			return game.Settlement{}, fmt.Errorf("%s: %w", snap.Stage, err)
		}
	}
	return game.Settlement{}, fmt.Errorf("hand did not finish within %d actions", maxActions)
}

func (p *play) step(ctx context.Context, snap game.Snapshot) error {
	slot := snap.CurrentBettor
	id := p.identity(slot)
	call := snap.CurrentBet - snap.Bets[slot]

	switch snap.Stage {
	case game.Player1Bet:
		return p.table.Bet(ctx, id, p.cfg.Stake, p.cfg.Stake)

	case game.Player2BetOrCall:
		if p.wantsRaise(slot) {
			p.raises++
			amount := call + p.cfg.Stake
			return p.table.Bet(ctx, id, amount, amount)
		}
		return p.table.Call(ctx, id, call)

	case game.Player1RaiseOrCall, game.Player2RaiseOrCall:
		if p.wantsFold(slot) {
			return p.table.Fold(ctx, id)
		}
		if p.wantsRaise(slot) {
			p.raises++
			return p.table.Raise(ctx, id, p.cfg.Stake, p.cfg.Stake)
		}
		return p.table.Call(ctx, id, call)

	case game.Player1RollDice, game.Player2RollDice:
		roller := 0
		if snap.Stage == game.Player2RollDice {
			roller = 1
		}
		return p.roll(ctx, p.identity(roller))

	default:
		return fmt.Errorf("no move for stage %s", snap.Stage)
	}
}

func (p *play) wantsRaise(slot int) bool {
	if p.raises >= p.cfg.MaxRaises {
		return false
	}
	switch p.style(slot) {
	case StyleAggressive:
		return true
	case StyleRandom:
		return p.rng.IntN(3) == 0
	default:
		return false
	}
}

func (p *play) wantsFold(slot int) bool {
	switch p.style(slot) {
	case StyleTimid:
		return true
	case StyleRandom:
		return p.rng.IntN(10) == 0
	default:
		return false
	}
}

// roll answers the roller's outstanding request and rolls every die at
// random. When the halt policy rejects a tying final roll the bot keeps a
// single die instead, trying each face until the tie is broken.
func (p *play) roll(ctx context.Context, id game.Identity) error {
	if err := p.answer(ctx, id); err != nil {
		return err
	}

	faces := dice.Hand{dice.AcceptRandom, dice.AcceptRandom, dice.AcceptRandom, dice.AcceptRandom, dice.AcceptRandom}
	err := p.table.RollDice(ctx, id, faces)
	for face := dice.Face(2); errors.Is(err, game.ErrTie) && face <= dice.MaxFace; face++ {
		faces[0] = face
		err = p.table.RollDice(ctx, id, faces)
	}
	return err
}

func (p *play) answer(ctx context.Context, id game.Identity) error {
	for _, req := range p.table.PendingRequests() {
		if req.Requester == id {
			return p.table.Fulfill(ctx, req.ID, p.source.Numbers(req.Count))
		}
	}
	// Nothing outstanding: ask, then answer. An answered but unused draw
	// shows up as an already pending request.
	err := p.table.RequestRandomness(ctx, id)
	if errors.Is(err, game.ErrRequestAlreadyPending) {
		return nil
	}
	if err != nil {
		return err
	}
	return p.answer(ctx, id)
}

// handRecorder notes whether fallback randomness was used in the current hand.
type handRecorder struct {
	mu   sync.Mutex
	used bool
}

func (r *handRecorder) OnEvent(_ string, e game.GameEvent) {
	if f, ok := e.(game.RandomnessFulfilledEvent); ok && f.Fallback {
		r.mu.Lock()
		r.used = true
		r.mu.Unlock()
	}
}

func (r *handRecorder) OnSnapshot(game.Snapshot) {}

func (r *handRecorder) reset() {
	r.mu.Lock()
	r.used = false
	r.mu.Unlock()
}

func (r *handRecorder) fallback() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used
}
