package dice

import "fmt"

// Frequencies counts how many dice show each face; index 0 holds the ones.
type Frequencies [MaxFace]int

// Score bonuses. See the package documentation for how they stack.
const (
	PairScore        = 200
	ThreeScore       = 300
	FourScore        = 400
	FullHouseScore   = 600
	StraightScore    = 500
	FiveOfAKindScore = 5000
)

// Count builds the frequency table for a hand. Unset dice are ignored.
func Count(h Hand) Frequencies {
	var freq Frequencies
	for _, f := range h {
		if f.Valid() {
			freq[f-MinFace]++
		}
	}
	return freq
}

// Score computes the stacking score for a frequency table.
func Score(freq Frequencies) int {
	score := 0
	hasPair := false
	hasThree := false
	run, longestRun := 0, 0

	for _, n := range freq {
		switch n {
		case 2:
			hasPair = true
			score += PairScore
		case 3:
			hasThree = true
			score += ThreeScore
		case 4:
			score += FourScore
		case 5:
			return FiveOfAKindScore
		}

		if n > 0 {
			run++
			longestRun = max(longestRun, run)
		} else {
			run = 0
		}
	}

	if hasPair && hasThree {
		score += FullHouseScore
	}
	if longestRun >= HandSize {
		score += StraightScore
	}
	return score
}

// ScoreHand is Score(Count(h)).
func ScoreHand(h Hand) int {
	return Score(Count(h))
}

// Outcome is the result of comparing two scores.
type Outcome int

const (
	Tie Outcome = iota
	AWins
	BWins
)

var outcomeNames = [...]string{"tie", "a", "b"}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Compare decides between two scores. Only a strictly greater score wins;
// equal scores are a tie.
func Compare(a, b int) Outcome {
	switch {
	case a > b:
		return AWins
	case b > a:
		return BWins
	default:
		return Tie
	}
}

// CompareHands scores both hands and compares them.
func CompareHands(a, b Hand) Outcome {
	return Compare(ScoreHand(a), ScoreHand(b))
}

// Category names the strongest combination in a hand, for display only.
type Category uint8

const (
	Nothing Category = iota
	Pair
	TwoPair
	ThreeOfAKind
	FourOfAKind
	Straight
	FullHouse
	FiveOfAKind
)

var categoryNames = [...]string{
	"Nothing",
	"Pair",
	"Two Pair",
	"Three of a Kind",
	"Four of a Kind",
	"Straight",
	"Full House",
	"Five of a Kind",
}

func (c Category) String() string {
	if int(c) >= len(categoryNames) {
		return "Unknown"
	}
	return categoryNames[c]
}

// Categorize returns the display category of a hand.
func Categorize(h Hand) Category {
	freq := Count(h)
	pairs, three, four := 0, false, false
	for _, n := range freq {
		switch n {
		case 5:
			return FiveOfAKind
		case 4:
			four = true
		case 3:
			three = true
		case 2:
			pairs++
		}
	}

	switch {
	case three && pairs == 1:
		return FullHouse
	case Score(freq) == StraightScore:
		return Straight
	case four:
		return FourOfAKind
	case three:
		return ThreeOfAKind
	case pairs == 2:
		return TwoPair
	case pairs == 1:
		return Pair
	}
	return Nothing
}

// Describe labels a hand with its category and score, e.g. "full house (1100)".
func Describe(h Hand) string {
	return fmt.Sprintf("%s (%d)", Categorize(h), ScoreHand(h))
}
