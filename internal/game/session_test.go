package game

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/lox/dicepoker/dice"
)

func TestErrorsMatchByKind(t *testing.T) {
	t.Parallel()

	err := newError(NotYourTurn, "bet", "%q cannot bet", "B")
	if !errors.Is(err, ErrNotYourTurn) {
		t.Error("errors.Is should match the sentinel")
	}
	if errors.Is(err, ErrInvalidStage) {
		t.Error("errors.Is should not match another kind")
	}
	if got := err.Error(); got != `game: bet: not your turn: "B" cannot bet` {
		t.Errorf("Error() = %q", got)
	}

	wrapped := &Error{Kind: PayoutFailed, Op: "settle", Err: context.DeadlineExceeded}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Error("cause should be reachable through Unwrap")
	}
}

func TestStageText(t *testing.T) {
	t.Parallel()

	for st := Joining; st <= GameEnded; st++ {
		b, err := st.MarshalText()
		mustDo(t, err)
		var back Stage
		mustDo(t, back.UnmarshalText(b))
		if back != st {
			t.Errorf("round trip of %s gave %s", st, back)
		}
	}
	if Stage(99).String() != "unknown" {
		t.Error("out-of-range stage should print unknown")
	}
}

func TestSnapshotJSON(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSession(t)
	seat(t, s)
	mustDo(t, s.Bet("A", 7, 7))

	b, err := json.Marshal(s.Snapshot())
	mustDo(t, err)

	var m map[string]any
	mustDo(t, json.Unmarshal(b, &m))
	if m["stage"] != "player2_bet_or_call" || m["pot"] != float64(7) || m["tie_policy"] != "halt" {
		t.Errorf("snapshot json = %s", b)
	}
}

func TestGetCallAmountUnseated(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSession(t)
	_, err := s.GetCallAmount("nobody")
	wantKind(t, err, NotYourTurn)
}

// TestRandomPlay drives sessions with random actions and checks the
// invariants that must hold after every step.
func TestRandomPlay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ids := []Identity{"A", "B", "C"}

	for seed := uint64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		s, src, pay := newTestSession(t, WithTiePolicy(TiePolicy(seed%2)))

		var lastBet uint64
		var lastHand string
		for step := 0; step < 300; step++ {
			id := ids[rng.IntN(len(ids))]
			amount := uint64(rng.IntN(4)) * 25
			potBefore := s.Pot()
			paidBefore := len(pay.transfers)

			if _, ok := src.pending[id]; ok && rng.IntN(2) == 0 {
				var h dice.Hand
				for i := range h {
					h[i] = dice.Face(rng.IntN(6) + 1)
				}
				src.fulfill(t, id, h)
			}

			var err error
			switch rng.IntN(7) {
			case 0:
				err = s.Join(id)
			case 1:
				err = s.Bet(id, amount, amount)
			case 2:
				err = s.Raise(id, amount, amount)
			case 3:
				call, _ := s.GetCallAmount(id)
				err = s.Call(id, call)
			case 4:
				err = s.Fold(ctx, id)
			case 5:
				var faces dice.Hand
				for i := range faces {
					faces[i] = dice.Face(rng.IntN(7))
				}
				err = s.RollDice(ctx, id, faces)
			case 6:
				err = s.RequestRandomness(id)
			}
			if err != nil && KindOf(err) == 0 {
				t.Fatalf("seed %d: untyped error %v", seed, err)
			}

			if s.Players[0] != "" && s.Players[0] == s.Players[1] {
				t.Fatalf("seed %d: %q holds both slots", seed, s.Players[0])
			}
			for slot, h := range s.PlayerDice {
				if s.HasRolled[slot] && !h.Valid() {
					t.Fatalf("seed %d: invalid dice %v", seed, h)
				}
			}

			if len(pay.transfers) > paidBefore {
				var total uint64
				for _, tr := range pay.transfers[paidBefore:] {
					total += tr.amount
				}
				if total != potBefore {
					t.Fatalf("seed %d: paid %d from a pot of %d", seed, total, potBefore)
				}
				if s.Stage != Joining || s.CurrentBet != 0 {
					t.Fatalf("seed %d: not reset after payout", seed)
				}
				lastBet = 0
				continue
			}
			if s.HandID == lastHand && s.CurrentBet < lastBet {
				t.Fatalf("seed %d: current bet fell from %d to %d", seed, lastBet, s.CurrentBet)
			}
			lastHand, lastBet = s.HandID, s.CurrentBet
		}
	}
}
