package game

// Stage is the position of a session in the hand lifecycle.
type Stage int

const (
	Joining Stage = iota
	Player1Bet
	Player2BetOrCall
	Player1RaiseOrCall
	Player2RaiseOrCall
	Player1Fold
	Player2Fold
	Player1RollDice
	Player2RollDice
	DetermineWinner
	GameEnded
)

var stageNames = [...]string{
	"joining",
	"player1_bet",
	"player2_bet_or_call",
	"player1_raise_or_call",
	"player2_raise_or_call",
	"player1_fold",
	"player2_fold",
	"player1_roll_dice",
	"player2_roll_dice",
	"determine_winner",
	"game_ended",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a stage name.
func (s *Stage) UnmarshalText(text []byte) error {
	for i, name := range stageNames {
		if name == string(text) {
			*s = Stage(i)
			return nil
		}
	}
	return newError(InvalidStage, "parse stage", "unknown stage %q", string(text))
}

// Settling reports whether the stage hands control to settlement.
func (s Stage) Settling() bool {
	return s == Player1Fold || s == Player2Fold || s == DetermineWinner
}

func raiseStage(slot int) Stage {
	if slot == 0 {
		return Player1RaiseOrCall
	}
	return Player2RaiseOrCall
}

func rollStage(slot int) Stage {
	if slot == 0 {
		return Player1RollDice
	}
	return Player2RollDice
}

func foldStage(slot int) Stage {
	if slot == 0 {
		return Player1Fold
	}
	return Player2Fold
}

// turnTable lists, per slot, the stages in which that slot may act.
type turnTable [2][]Stage

func (t turnTable) allows(slot int, stage Stage) bool {
	for _, s := range t[slot] {
		if s == stage {
			return true
		}
	}
	return false
}

var (
	betTurns   = turnTable{{Player1Bet}, {Player2BetOrCall}}
	raiseTurns = turnTable{{Player1RaiseOrCall}, {Player2RaiseOrCall}}
	callTurns  = turnTable{{Player1RaiseOrCall}, {Player2BetOrCall, Player2RaiseOrCall}}
	foldTurns  = raiseTurns
	rollTurns  = turnTable{{Player1RollDice}, {Player2RollDice}}
)
