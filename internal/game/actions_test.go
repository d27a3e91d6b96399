package game

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/lox/dicepoker/dice"
)

func TestJoinStartsHand(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSession(t)

	mustDo(t, s.Join("A"))
	if s.Stage != Joining {
		t.Fatalf("stage after one join = %s, want joining", s.Stage)
	}
	mustDo(t, s.Join("B"))

	if s.Stage != Player1Bet {
		t.Errorf("stage = %s, want player1_bet", s.Stage)
	}
	if s.CurrentBettor != 0 || s.Players[0] != "A" || s.Players[1] != "B" {
		t.Errorf("unexpected seats %v bettor %d", s.Players, s.CurrentBettor)
	}
	if s.HandID != "hand-1" {
		t.Errorf("HandID = %q, want hand-1", s.HandID)
	}
}

func TestJoinRejections(t *testing.T) {
	t.Parallel()

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()
		s, _, _ := newTestSession(t)
		mustDo(t, s.Join("A"))
		wantKind(t, s.Join("A"), DuplicatePlayer)
		if s.Players[1] != "" {
			t.Error("duplicate join must not fill a slot")
		}
	})

	t.Run("slots full", func(t *testing.T) {
		t.Parallel()
		s, _, _ := newTestSession(t)
		s.Players = [2]Identity{"A", "B"}
		wantKind(t, s.Join("C"), PlayerSlotFull)
	})

	t.Run("hand running", func(t *testing.T) {
		t.Parallel()
		s, _, _ := newTestSession(t)
		seat(t, s)
		wantKind(t, s.Join("C"), InvalidStage)
	})

	t.Run("empty identity", func(t *testing.T) {
		t.Parallel()
		s, _, _ := newTestSession(t)
		if err := s.Join(""); err == nil {
			t.Fatal("expected error for empty identity")
		}
	})
}

func TestOpeningBet(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSession(t)
	seat(t, s)

	mustDo(t, s.Bet("A", 100, 100))

	if s.Bets != [2]uint64{100, 0} || s.CurrentBet != 100 {
		t.Errorf("bets = %v current = %d", s.Bets, s.CurrentBet)
	}
	if s.Stage != Player2BetOrCall || s.CurrentBettor != 1 {
		t.Errorf("stage = %s bettor = %d", s.Stage, s.CurrentBettor)
	}
}

func TestCallFromBetOrCallMovesToRolling(t *testing.T) {
	t.Parallel()
	s, src, _ := newTestSession(t)
	seat(t, s)
	mustDo(t, s.Bet("A", 100, 100))

	mustDo(t, s.Call("B", 100))

	if s.Bets != [2]uint64{100, 100} {
		t.Errorf("bets = %v, want [100 100]", s.Bets)
	}
	if s.Stage != Player1RollDice {
		t.Errorf("stage = %s, want player1_roll_dice", s.Stage)
	}
	if len(src.requests) != 1 || src.requests[0] != "A" {
		t.Errorf("entering the roll stage should request randomness for A, got %v", src.requests)
	}
}

func TestMatchingBetMovesToRolling(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSession(t)
	seat(t, s)
	mustDo(t, s.Bet("A", 100, 100))

	mustDo(t, s.Bet("B", 100, 100))

	if s.Stage != Player1RollDice {
		t.Errorf("stage = %s, want player1_roll_dice", s.Stage)
	}
}

func TestOverBetHandsDecisionBack(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSession(t)
	seat(t, s)
	mustDo(t, s.Bet("A", 100, 100))

	mustDo(t, s.Bet("B", 150, 150))
	if s.Stage != Player1RaiseOrCall || s.CurrentBet != 150 || s.CurrentBettor != 0 {
		t.Fatalf("stage = %s current = %d bettor = %d", s.Stage, s.CurrentBet, s.CurrentBettor)
	}

	amt, err := s.GetCallAmount("A")
	mustDo(t, err)
	if amt != 50 {
		t.Errorf("call amount = %d, want 50", amt)
	}

	mustDo(t, s.Call("A", 50))
	if s.Stage != Player1RollDice || s.Bets != [2]uint64{150, 150} {
		t.Errorf("stage = %s bets = %v", s.Stage, s.Bets)
	}
}

func TestUnderBetRejected(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSession(t)
	seat(t, s)
	mustDo(t, s.Bet("A", 100, 100))

	before := s.Snapshot()
	wantKind(t, s.Bet("B", 40, 40), AmountMismatch)
	if s.Snapshot() != before {
		t.Error("rejected bet mutated the session")
	}
}

func TestRaiseExchange(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSession(t)
	seat(t, s)
	mustDo(t, s.Bet("A", 100, 100))
	mustDo(t, s.Bet("B", 150, 150))

	// The raise lands on both the stake and the bet to match.
	mustDo(t, s.Raise("A", 100, 100))
	if s.Bets != [2]uint64{200, 150} || s.CurrentBet != 250 {
		t.Fatalf("bets = %v current = %d", s.Bets, s.CurrentBet)
	}
	if s.Stage != Player2RaiseOrCall || s.CurrentBettor != 1 {
		t.Fatalf("stage = %s bettor = %d", s.Stage, s.CurrentBettor)
	}

	wantKind(t, s.Raise("B", 80, 70), AmountMismatch)

	// B owes 100; a raise smaller than that is still a raise.
	mustDo(t, s.Raise("B", 20, 20))
	if s.Bets != [2]uint64{200, 170} || s.CurrentBet != 270 {
		t.Fatalf("bets = %v current = %d", s.Bets, s.CurrentBet)
	}
	if s.Stage != Player1RaiseOrCall || s.CurrentBettor != 0 {
		t.Fatalf("stage = %s bettor = %d", s.Stage, s.CurrentBettor)
	}

	mustDo(t, s.Call("A", 70))
	if s.Stage != Player1RollDice || s.Pot() != 440 {
		t.Errorf("stage = %s pot = %d", s.Stage, s.Pot())
	}
}

func TestAttachedMustMatch(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSession(t)
	seat(t, s)

	before := s.Snapshot()
	wantKind(t, s.Bet("A", 100, 99), AmountMismatch)
	if s.Snapshot() != before {
		t.Error("rejected bet mutated the session")
	}

	mustDo(t, s.Bet("A", 100, 100))
	wantKind(t, s.Call("B", 90), AmountMismatch)
}

func TestActionsOutsideTheirStage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	actions := map[string]func(s *Session, id Identity) error{
		"bet":   func(s *Session, id Identity) error { return s.Bet(id, 10, 10) },
		"raise": func(s *Session, id Identity) error { return s.Raise(id, 10, 10) },
		"call":  func(s *Session, id Identity) error { return s.Call(id, 0) },
		"fold":  func(s *Session, id Identity) error { return s.Fold(ctx, id) },
		"roll":  func(s *Session, id Identity) error { return s.RollDice(ctx, id, allRandom) },
	}

	for name, act := range actions {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s, _, _ := newTestSession(t)
			mustDo(t, s.Join("A"))
			wantKind(t, act(s, "A"), InvalidStage)
		})
	}
}

func TestWrongSeat(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSession(t)
	seat(t, s)

	wantKind(t, s.Bet("B", 10, 10), NotYourTurn)
	wantKind(t, s.Bet("C", 10, 10), NotYourTurn)

	mustDo(t, s.Bet("A", 10, 10))
	wantKind(t, s.Call("A", 0), NotYourTurn)
	wantKind(t, s.Fold(context.Background(), "B"), InvalidStage)
}

func TestRollDice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, src, pay := newTestSession(t)
	toRoll(t, s)

	wantKind(t, s.RollDice(ctx, "B", allRandom), NotYourTurn)
	wantKind(t, s.RollDice(ctx, "A", allRandom), RandomnessNotReady)
	wantKind(t, s.RollDice(ctx, "A", dice.Hand{1, 1, 7, 1, 1}), DiceOutOfRange)
	wantKind(t, s.RollDice(ctx, "A", dice.Hand{1, 1, 0, 1, 1}), DiceOutOfRange)

	src.fulfill(t, "A", dice.Hand{1, 1, 1, 1, 1})
	mustDo(t, s.RollDice(ctx, "A", allRandom))

	if s.PlayerDice[0] != (dice.Hand{1, 1, 1, 1, 1}) || !s.HasRolled[0] || s.RoundNumber != 1 {
		t.Fatalf("dice = %v rolled = %v round = %d", s.PlayerDice[0], s.HasRolled, s.RoundNumber)
	}
	if s.Stage != Player2RollDice || s.CurrentBettor != 0 {
		t.Fatalf("stage = %s bettor = %d", s.Stage, s.CurrentBettor)
	}
	if _, ok := src.Ready("A"); ok {
		t.Error("rolling should consume the draw")
	}

	// B keeps 2..6 as chosen; randomness must still be fulfilled.
	src.fulfill(t, "B", dice.Hand{6, 6, 6, 6, 6})
	mustDo(t, s.RollDice(ctx, "B", dice.Hand{2, 3, 4, 5, 6}))

	last, ok := s.LastSettlement()
	if !ok {
		t.Fatal("expected a settlement")
	}
	if last.Winner != "A" || last.Reason != ReasonShowdown {
		t.Errorf("winner = %q reason = %s, want A by showdown", last.Winner, last.Reason)
	}
	if last.Scores != [2]int{5000, 500} {
		t.Errorf("scores = %v, want [5000 500]", last.Scores)
	}
	if len(pay.transfers) != 1 || pay.transfers[0] != (transfer{to: "A", amount: 200}) {
		t.Errorf("transfers = %v, want one of 200 to A", pay.transfers)
	}
	if s.Stage != Joining || s.Players != [2]Identity{} || s.Pot() != 0 || s.CurrentBet != 0 {
		t.Errorf("session not reset: %+v", s.Snapshot())
	}
}

func TestRollKeepsChosenFaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, src, _ := newTestSession(t)
	toRoll(t, s)

	src.fulfill(t, "A", dice.Hand{4, 4, 4, 4, 4})
	mustDo(t, s.RollDice(ctx, "A", dice.Hand{6, 1, 6, 1, 6}))

	if want := (dice.Hand{6, 4, 6, 4, 6}); s.PlayerDice[0] != want {
		t.Errorf("dice = %s, want %s", s.PlayerDice[0], want)
	}
}

func TestRaiseCallLetsPlayerTwoRollFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, src, _ := newTestSession(t)
	seat(t, s)
	mustDo(t, s.Bet("A", 10, 10))
	mustDo(t, s.Bet("B", 20, 20))
	mustDo(t, s.Raise("A", 20, 20))
	mustDo(t, s.Call("B", 20))

	if s.Stage != Player2RollDice {
		t.Fatalf("stage = %s, want player2_roll_dice", s.Stage)
	}
	src.fulfill(t, "B", dice.Hand{2, 2, 3, 3, 3})
	mustDo(t, s.RollDice(ctx, "B", allRandom))
	if s.Stage != Player1RollDice {
		t.Fatalf("stage = %s, want player1_roll_dice", s.Stage)
	}
	wantKind(t, s.RollDice(ctx, "B", allRandom), NotYourTurn)
}

func TestRequestRandomness(t *testing.T) {
	t.Parallel()
	s, src, _ := newTestSession(t)

	wantKind(t, s.RequestRandomness("A"), InvalidStage)
	seat(t, s)
	wantKind(t, s.RequestRandomness("C"), NotYourTurn)

	mustDo(t, s.RequestRandomness("B"))
	wantKind(t, s.RequestRandomness("B"), RequestAlreadyPending)
	if len(src.requests) != 1 {
		t.Errorf("requests = %v", src.requests)
	}
}

func TestEventsFollowTheHand(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &recorder{}
	s, src, _ := newTestSession(t, WithListener(rec))
	toRoll(t, s)
	src.fulfill(t, "A", dice.Hand{1, 1, 1, 1, 1})
	mustDo(t, s.RollDice(ctx, "A", allRandom))
	src.fulfill(t, "B", dice.Hand{1, 2, 3, 4, 6})
	mustDo(t, s.RollDice(ctx, "B", allRandom))

	want := []EventType{
		EventTypePlayerJoined,
		EventTypePlayerJoined,
		EventTypeBetPlaced,
		EventTypeBetPlaced,
		EventTypeRandomnessRequested,
		EventTypeDiceRolled,
		EventTypeRandomnessRequested,
		EventTypeDiceRolled,
		EventTypeWinnerDeclared,
	}
	got := rec.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestEnterRollLogsFailedRequests(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s, src, _ := newTestSession(t, WithLogger(log.NewWithOptions(&buf, log.Options{})))
	seat(t, s)
	src.failWith = errors.New("oracle: count must be positive, got 0")

	mustDo(t, s.Bet("A", 10, 10))
	mustDo(t, s.Call("B", 10))
	if s.Stage != Player1RollDice {
		t.Fatalf("stage = %s, want player1_roll_dice", s.Stage)
	}
	if !strings.Contains(buf.String(), "count must be positive") {
		t.Errorf("failed request was not logged: %q", buf.String())
	}
}

func TestEnterRollIgnoresOutstandingRequest(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s, src, _ := newTestSession(t, WithLogger(log.NewWithOptions(&buf, log.Options{})))
	seat(t, s)
	mustDo(t, s.RequestRandomness("A"))

	mustDo(t, s.Bet("A", 10, 10))
	mustDo(t, s.Call("B", 10))
	if s.Stage != Player1RollDice {
		t.Fatalf("stage = %s, want player1_roll_dice", s.Stage)
	}
	if len(src.requests) != 1 {
		t.Errorf("requests = %v, want one", src.requests)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %q", buf.String())
	}
}
