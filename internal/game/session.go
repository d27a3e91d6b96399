package game

import (
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/dicepoker/dice"
	"github.com/lox/dicepoker/internal/handid"
)

// Identity names a player. The empty identity marks a free slot.
type Identity string

// Session is the state of one two-player table.
type Session struct {
	HandID        string
	Stage         Stage
	Players       [2]Identity
	Ledger                     // Bets and CurrentBet
	CurrentBettor int          // slot expected to bet next
	PlayerDice    [2]dice.Hand // per slot
	HasRolled     [2]bool
	HasRerolled   [2]bool
	RoundNumber   int
	Winner        Identity

	source    RandomnessSource
	payout    Payout
	listener  Listener
	clock     quartz.Clock
	logger    *log.Logger
	tiePolicy TiePolicy
	newHandID func() string

	pending      *Settlement
	last         *Settlement
	transferring bool
}

// SessionOption configures a Session during creation.
type SessionOption func(*Session)

// WithListener sets the event listener.
func WithListener(l Listener) SessionOption {
	return func(s *Session) {
		s.listener = NewMultiListener(l)
	}
}

// WithLogger sets the logger for problems that do not fail an action.
func WithLogger(l *log.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithClock sets the clock used for event and settlement timestamps.
func WithClock(c quartz.Clock) SessionOption {
	return func(s *Session) {
		s.clock = c
	}
}

// WithTiePolicy sets how equal showdown scores are handled.
func WithTiePolicy(p TiePolicy) SessionOption {
	return func(s *Session) {
		s.tiePolicy = p
	}
}

// WithHandIDs overrides hand ID generation.
func WithHandIDs(next func() string) SessionOption {
	return func(s *Session) {
		s.newHandID = next
	}
}

// NewSession creates an empty session in the Joining stage. The randomness
// source and payout are required.
func NewSession(source RandomnessSource, payout Payout, opts ...SessionOption) *Session {
	if source == nil {
		panic("randomness source is required")
	}
	if payout == nil {
		panic("payout is required")
	}

	s := &Session{
		source:    source,
		payout:    payout,
		listener:  NullListener{},
		clock:     quartz.NewReal(),
		logger:    log.Default(),
		tiePolicy: TieHalt,
		newHandID: handid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seat returns the slot held by id, or -1.
func (s *Session) Seat(id Identity) int {
	if id == "" {
		return -1
	}
	for i, p := range s.Players {
		if p == id {
			return i
		}
	}
	return -1
}

// GetCallAmount is what id must attach to match the current bet.
func (s *Session) GetCallAmount(id Identity) (uint64, error) {
	slot := s.Seat(id)
	if slot < 0 {
		return 0, newError(NotYourTurn, "call amount", "%q is not seated", id)
	}
	return s.CallAmount(slot), nil
}

// AllDice returns both players' dice.
func (s *Session) AllDice() [2]dice.Hand {
	return s.PlayerDice
}

// TiePolicy returns the configured tie policy.
func (s *Session) TiePolicy() TiePolicy {
	return s.tiePolicy
}

// PendingSettlement returns the settlement waiting on a payout retry.
func (s *Session) PendingSettlement() (Settlement, bool) {
	if s.pending == nil {
		return Settlement{}, false
	}
	return *s.pending, true
}

// LastSettlement returns the most recent completed settlement.
func (s *Session) LastSettlement() (Settlement, bool) {
	if s.last == nil {
		return Settlement{}, false
	}
	return *s.last, true
}

// Snapshot is a read-only copy of the session for queries.
type Snapshot struct {
	TableID       string       `json:"table_id,omitempty"`
	HandID        string       `json:"hand_id,omitempty"`
	Stage         Stage        `json:"stage"`
	Players       [2]Identity  `json:"players"`
	Bets          [2]uint64    `json:"bets"`
	CurrentBet    uint64       `json:"current_bet"`
	CurrentBettor int          `json:"current_bettor"`
	PlayerDice    [2]dice.Hand `json:"player_dice"`
	HasRolled     [2]bool      `json:"has_rolled"`
	RoundNumber   int          `json:"round_number"`
	Winner        Identity     `json:"winner,omitempty"`
	Pot           uint64       `json:"pot"`
	TiePolicy     TiePolicy    `json:"tie_policy"`
	Pending       *Settlement  `json:"pending_settlement,omitempty"`
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		HandID:        s.HandID,
		Stage:         s.Stage,
		Players:       s.Players,
		Bets:          s.Bets,
		CurrentBet:    s.CurrentBet,
		CurrentBettor: s.CurrentBettor,
		PlayerDice:    s.PlayerDice,
		HasRolled:     s.HasRolled,
		RoundNumber:   s.RoundNumber,
		Winner:        s.Winner,
		Pot:           s.Pot(),
		TiePolicy:     s.tiePolicy,
	}
	if s.pending != nil {
		p := *s.pending
		snap.Pending = &p
	}
	return snap
}

// reset clears everything about the hand, including the seats.
func (s *Session) reset() {
	s.HandID = ""
	s.Stage = Joining
	s.Players = [2]Identity{}
	s.Ledger.Reset()
	s.CurrentBettor = 0
	s.PlayerDice = [2]dice.Hand{}
	s.HasRolled = [2]bool{}
	s.HasRerolled = [2]bool{}
	s.RoundNumber = 0
	s.Winner = ""
	s.pending = nil
}

func (s *Session) emit(e GameEvent) {
	s.listener.OnEvent(e)
}
