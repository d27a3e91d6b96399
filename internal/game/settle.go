package game

import (
	"context"
	"fmt"
	"time"

	"github.com/lox/dicepoker/dice"
)

// Payout moves funds out of the pot.
type Payout interface {
	Transfer(ctx context.Context, to Identity, amount uint64) error
}

// PayoutFunc adapts a function to a Payout.
type PayoutFunc func(ctx context.Context, to Identity, amount uint64) error

func (f PayoutFunc) Transfer(ctx context.Context, to Identity, amount uint64) error {
	return f(ctx, to, amount)
}

// TiePolicy decides what happens when both showdown hands score the same.
type TiePolicy int

const (
	// TieHalt rejects the roll that would produce the tie. Nothing changes
	// and the roller may submit different dice.
	TieHalt TiePolicy = iota
	// TieSplit pays each player half the pot. An odd unit goes to player 1.
	TieSplit
)

func (p TiePolicy) String() string {
	switch p {
	case TieHalt:
		return "halt"
	case TieSplit:
		return "split"
	default:
		return "unknown"
	}
}

// MarshalText encodes the policy by name.
func (p TiePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a policy name.
func (p *TiePolicy) UnmarshalText(text []byte) error {
	v, err := ParseTiePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParseTiePolicy parses "halt" or "split". The empty string means halt.
func ParseTiePolicy(s string) (TiePolicy, error) {
	switch s {
	case "", "halt":
		return TieHalt, nil
	case "split":
		return TieSplit, nil
	default:
		return 0, fmt.Errorf("game: unknown tie policy %q", s)
	}
}

// SettlementReason says how a hand ended.
type SettlementReason string

const (
	ReasonFold     SettlementReason = "fold"
	ReasonShowdown SettlementReason = "showdown"
	ReasonSplit    SettlementReason = "split"
)

// Settlement records the payout of one hand.
type Settlement struct {
	HandID    string           `json:"hand_id"`
	Reason    SettlementReason `json:"reason"`
	Winner    Identity         `json:"winner,omitempty"`
	Players   [2]Identity      `json:"players"`
	Bets      [2]uint64        `json:"bets"`
	Pot       uint64           `json:"pot"`
	Payouts   [2]uint64        `json:"payouts"`
	Paid      [2]bool          `json:"paid"`
	Scores    [2]int           `json:"scores"`
	Dice      [2]dice.Hand     `json:"dice"`
	SettledAt time.Time        `json:"settled_at"`
}

// compute works out who is paid what. It does not mutate the session.
func (s *Session) compute() (Settlement, error) {
	st := Settlement{
		HandID:  s.HandID,
		Players: s.Players,
		Bets:    s.Bets,
		Pot:     s.Pot(),
		Dice:    s.PlayerDice,
	}

	winner := -1
	switch s.Stage {
	case Player1Fold:
		st.Reason, winner = ReasonFold, 1
	case Player2Fold:
		st.Reason, winner = ReasonFold, 0
	case DetermineWinner:
		st.Scores = [2]int{dice.ScoreHand(s.PlayerDice[0]), dice.ScoreHand(s.PlayerDice[1])}
		switch dice.Compare(st.Scores[0], st.Scores[1]) {
		case dice.AWins:
			st.Reason, winner = ReasonShowdown, 0
		case dice.BWins:
			st.Reason, winner = ReasonShowdown, 1
		default:
			if s.tiePolicy != TieSplit {
				return Settlement{}, newError(Tie, "settle", "both hands score %d", st.Scores[0])
			}
			st.Reason = ReasonSplit
			half := st.Pot / 2
			st.Payouts = [2]uint64{st.Pot - half, half}
			return st, nil
		}
	default:
		return Settlement{}, newError(InvalidStage, "settle", "cannot settle during %s", s.Stage)
	}

	st.Winner = s.Players[winner]
	st.Payouts[winner] = st.Pot
	return st, nil
}

// settle computes the payout, parks the session in GameEnded and then
// transfers. Any action arriving while the transfer runs sees GameEnded and
// fails with InvalidStage.
//
// The reset runs only after every transfer succeeds. A failed transfer leaves
// the pot and winner in GameEnded for RetrySettlement rather than resetting
// unconditionally and stranding the pot.
func (s *Session) settle(ctx context.Context) error {
	st, err := s.compute()
	if err != nil {
		return err
	}
	s.Winner = st.Winner
	s.Stage = GameEnded
	s.pending = &st
	return s.transfer(ctx)
}

// RetrySettlement re-attempts a payout that failed. Transfers that already
// succeeded are not repeated.
func (s *Session) RetrySettlement(ctx context.Context) error {
	if s.Stage != GameEnded || s.pending == nil || s.transferring {
		return newError(InvalidStage, "retry settlement", "no failed settlement during %s", s.Stage)
	}
	return s.transfer(ctx)
}

func (s *Session) transfer(ctx context.Context) error {
	s.transferring = true
	defer func() { s.transferring = false }()

	st := s.pending
	for slot := range st.Payouts {
		if st.Paid[slot] || st.Payouts[slot] == 0 {
			continue
		}
		if err := s.payout.Transfer(ctx, st.Players[slot], st.Payouts[slot]); err != nil {
			s.emit(SettlementFailedEvent{Settlement: *st, Error: err.Error(), timestamp: s.clock.Now()})
			return &Error{
				Kind: PayoutFailed,
				Op:   "settle",
				Msg:  fmt.Sprintf("paying %d to %q", st.Payouts[slot], st.Players[slot]),
				Err:  err,
			}
		}
		st.Paid[slot] = true
	}

	st.SettledAt = s.clock.Now()
	done := *st
	s.last = &done
	s.emit(WinnerDeclaredEvent{Settlement: done, timestamp: st.SettledAt})
	s.reset()
	return nil
}
