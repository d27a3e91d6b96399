package game

import (
	"context"

	"github.com/lox/dicepoker/dice"
)

// turn resolves the caller's slot for an action that table allows.
// A stage where nobody may take the action is InvalidStage; a stage where
// only the other seat may act, or an unseated caller, is NotYourTurn.
func (s *Session) turn(op string, id Identity, table turnTable) (int, error) {
	if !table.allows(0, s.Stage) && !table.allows(1, s.Stage) {
		return -1, newError(InvalidStage, op, "cannot %s during %s", op, s.Stage)
	}
	slot := s.Seat(id)
	if slot < 0 {
		return -1, newError(NotYourTurn, op, "%q is not seated", id)
	}
	if !table.allows(slot, s.Stage) {
		return -1, newError(NotYourTurn, op, "%q cannot %s during %s", id, op, s.Stage)
	}
	return slot, nil
}

// Join seats id in the first free slot. The hand starts once both slots are
// taken.
func (s *Session) Join(id Identity) error {
	const op = "join"
	if s.Stage != Joining {
		return newError(InvalidStage, op, "cannot join during %s", s.Stage)
	}
	if id == "" {
		return newError(NotYourTurn, op, "empty identity")
	}
	if s.Seat(id) >= 0 {
		return newError(DuplicatePlayer, op, "%q is already seated", id)
	}
	slot := -1
	for i, p := range s.Players {
		if p == "" {
			slot = i
			break
		}
	}
	if slot < 0 {
		return newError(PlayerSlotFull, op, "both seats are taken")
	}

	s.Players[slot] = id
	s.emit(PlayerJoinedEvent{Player: id, Slot: slot, timestamp: s.clock.Now()})

	if s.Players[0] != "" && s.Players[1] != "" {
		s.HandID = s.newHandID()
		s.Stage = Player1Bet
		s.CurrentBettor = 0
	}
	return nil
}

// Bet places an opening bet (player 1) or answers it (player 2). attached is
// the value sent with the action and must equal amount. Player 2 must at
// least match; matching exactly moves to rolling, betting more hands the
// decision back to player 1.
func (s *Session) Bet(id Identity, amount, attached uint64) error {
	const op = "bet"
	slot, err := s.turn(op, id, betTurns)
	if err != nil {
		return err
	}
	if attached != amount {
		return newError(AmountMismatch, op, "attached %d does not match bet %d", attached, amount)
	}
	if slot == 1 && s.Bets[1]+amount < s.CurrentBet {
		return newError(AmountMismatch, op, "bet %d is below the call amount %d", amount, s.CallAmount(1))
	}

	matched := slot == 1 && s.Bets[1]+amount == s.CurrentBet
	s.Place(slot, amount)
	s.emitBet(id, slot, BetKindBet, amount)

	switch {
	case slot == 0:
		s.Stage = Player2BetOrCall
		s.CurrentBettor = 1
	case matched:
		s.CurrentBettor = 0
		s.enterRoll(0)
	default:
		s.Stage = Player1RaiseOrCall
		s.CurrentBettor = 0
	}
	return nil
}

// Raise adds amount to the caller's stake and to the current bet, then
// hands the decision to the other player.
func (s *Session) Raise(id Identity, amount, attached uint64) error {
	const op = "raise"
	slot, err := s.turn(op, id, raiseTurns)
	if err != nil {
		return err
	}
	if attached != amount {
		return newError(AmountMismatch, op, "attached %d does not match raise %d", attached, amount)
	}

	s.Ledger.Raise(slot, amount)
	s.emitBet(id, slot, BetKindRaise, amount)
	s.Stage = raiseStage(1 - slot)
	s.CurrentBettor = 1 - slot
	return nil
}

// Call matches the current bet and moves to rolling.
func (s *Session) Call(id Identity, attached uint64) error {
	const op = "call"
	slot, err := s.turn(op, id, callTurns)
	if err != nil {
		return err
	}
	if attached+s.Bets[slot] != s.CurrentBet {
		return newError(AmountMismatch, op, "attached %d does not match the call amount %d", attached, s.CallAmount(slot))
	}

	from := s.Stage
	s.Match(slot, attached)
	s.emitBet(id, slot, BetKindCall, attached)

	if from == Player2BetOrCall {
		s.CurrentBettor = 0
		s.enterRoll(0)
		return nil
	}
	s.enterRoll(slot)
	return nil
}

// Fold concedes the hand; the other player is paid the pot at once.
func (s *Session) Fold(ctx context.Context, id Identity) error {
	const op = "fold"
	slot, err := s.turn(op, id, foldTurns)
	if err != nil {
		return err
	}

	s.Stage = foldStage(slot)
	s.emit(FoldedEvent{Player: id, Slot: slot, timestamp: s.clock.Now()})
	return s.settle(ctx)
}

// RequestRandomness asks the randomness source for a fresh batch for id.
func (s *Session) RequestRandomness(id Identity) error {
	const op = "request randomness"
	if s.Stage < Player1Bet || s.Stage > Player2RollDice || s.Stage.Settling() {
		return newError(InvalidStage, op, "no hand in progress during %s", s.Stage)
	}
	slot := s.Seat(id)
	if slot < 0 {
		return newError(NotYourTurn, op, "%q is not seated", id)
	}
	if s.HasRolled[slot] {
		return newError(AlreadyRolled, op, "%q has already rolled this hand", id)
	}

	reqID, err := s.source.Request(id, dice.HandSize)
	if err != nil {
		return err
	}
	s.emit(RandomnessRequestedEvent{Player: id, RequestID: reqID, timestamp: s.clock.Now()})
	return nil
}

// RollDice fixes the caller's hand. Every position set to dice.AcceptRandom
// takes the next fulfilled random number; any other face is kept as given.
// The second roll of a hand moves to settlement.
func (s *Session) RollDice(ctx context.Context, id Identity, faces dice.Hand) error {
	const op = "roll dice"
	slot, err := s.turn(op, id, rollTurns)
	if err != nil {
		return err
	}
	if s.HasRolled[slot] {
		return newError(AlreadyRolled, op, "%q has already rolled this hand", id)
	}
	for i, f := range faces {
		if !f.Valid() {
			return newError(DiceOutOfRange, op, "die %d has face %d", i, f)
		}
	}
	draw, ok := s.source.Ready(id)
	if !ok {
		return newError(RandomnessNotReady, op, "no fulfilled randomness for %q", id)
	}
	if len(draw.Numbers) < dice.HandSize {
		return newError(RandomnessNotReady, op, "request %s holds %d numbers, need %d", draw.RequestID, len(draw.Numbers), dice.HandSize)
	}

	hand := applyDraw(faces, draw.Numbers)
	final := s.RoundNumber+1 >= 2
	if final && s.tiePolicy == TieHalt {
		mine, theirs := dice.ScoreHand(hand), dice.ScoreHand(s.PlayerDice[1-slot])
		if mine == theirs {
			return newError(Tie, op, "both hands score %d", mine)
		}
	}

	s.source.Consume(id)
	s.PlayerDice[slot] = hand
	s.HasRolled[slot] = true
	s.RoundNumber++
	s.emit(DiceRolledEvent{
		Player:    id,
		Slot:      slot,
		Dice:      hand,
		Score:     dice.ScoreHand(hand),
		Round:     s.RoundNumber,
		Fallback:  draw.Fallback,
		timestamp: s.clock.Now(),
	})

	if final {
		s.Stage = DetermineWinner
		return s.settle(ctx)
	}
	s.CurrentBettor = 0
	s.enterRoll(1 - slot)
	return nil
}

func applyDraw(faces dice.Hand, numbers []uint64) dice.Hand {
	var hand dice.Hand
	for i, f := range faces {
		if f == dice.AcceptRandom {
			hand[i] = dice.FromNumber(numbers[i])
		} else {
			hand[i] = f
		}
	}
	return hand
}

// enterRoll moves to slot's roll stage and requests randomness for that
// player unless a request is already outstanding.
func (s *Session) enterRoll(slot int) {
	s.Stage = rollStage(slot)
	if s.HasRolled[slot] {
		return
	}
	id := s.Players[slot]
	if _, ok := s.source.Ready(id); ok {
		return
	}
	reqID, err := s.source.Request(id, dice.HandSize)
	if KindOf(err) == RequestAlreadyPending {
		// The player can still roll once the outstanding one lands.
		return
	}
	if err != nil {
		s.logger.Error("Randomness request failed; player must request manually",
			"hand", s.HandID, "player", id, "error", err)
		return
	}
	s.emit(RandomnessRequestedEvent{Player: id, RequestID: reqID, timestamp: s.clock.Now()})
}

func (s *Session) emitBet(id Identity, slot int, kind BetKind, amount uint64) {
	s.emit(BetPlacedEvent{
		Player:     id,
		Slot:       slot,
		Kind:       kind,
		Amount:     amount,
		CurrentBet: s.CurrentBet,
		Pot:        s.Pot(),
		timestamp:  s.clock.Now(),
	})
}
