package dice

import "testing"

func TestCount(t *testing.T) {
	t.Parallel()

	got := Count(Hand{1, 1, 3, 6, 6})
	want := Frequencies{2, 0, 1, 0, 0, 2}
	if got != want {
		t.Fatalf("Count = %v, want %v", got, want)
	}

	if got := Count(Hand{}); got != (Frequencies{}) {
		t.Errorf("unset dice should not be counted, got %v", got)
	}
}

func TestScoreHand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hand Hand
		want int
	}{
		{"five of a kind", Hand{1, 1, 1, 1, 1}, 5000},
		{"five sixes", Hand{6, 6, 6, 6, 6}, 5000},
		{"high straight", Hand{2, 3, 4, 5, 6}, 500},
		{"low straight unordered", Hand{5, 3, 1, 4, 2}, 500},
		{"full house stacks pair and three", Hand{2, 2, 5, 5, 5}, 200 + 300 + 600},
		{"four of a kind", Hand{4, 4, 4, 4, 1}, 400},
		{"three of a kind", Hand{3, 3, 3, 1, 6}, 300},
		{"two pair", Hand{1, 1, 2, 2, 6}, 400},
		{"one pair", Hand{1, 1, 2, 4, 6}, 200},
		{"nothing", Hand{1, 2, 3, 4, 6}, 0},
		{"broken run", Hand{1, 2, 4, 5, 6}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ScoreHand(tc.hand); got != tc.want {
				t.Errorf("ScoreHand(%s) = %d, want %d", tc.hand, got, tc.want)
			}
		})
	}
}

// Two pair outscoring three of a kind is part of the stacking table.
func TestScoreStackingQuirks(t *testing.T) {
	t.Parallel()

	twoPair := ScoreHand(Hand{1, 1, 2, 2, 6})
	three := ScoreHand(Hand{3, 3, 3, 1, 6})
	four := ScoreHand(Hand{4, 4, 4, 4, 1})

	if twoPair <= three {
		t.Errorf("two pair (%d) should outscore three of a kind (%d)", twoPair, three)
	}
	if twoPair != four {
		t.Errorf("two pair (%d) should tie four of a kind (%d)", twoPair, four)
	}
}

func TestFiveOfAKindOutranksEverything(t *testing.T) {
	t.Parallel()

	five := ScoreHand(Hand{2, 2, 2, 2, 2})
	var h Hand
	var walk func(pos int)
	walk = func(pos int) {
		if pos == HandSize {
			if Categorize(h) == FiveOfAKind {
				return
			}
			if s := ScoreHand(h); s >= five {
				t.Fatalf("%s scored %d, not below five of a kind (%d)", h, s, five)
			}
			return
		}
		for f := MinFace; f <= MaxFace; f++ {
			h[pos] = f
			walk(pos + 1)
		}
	}
	walk(0)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	if got := Compare(500, 200); got != AWins {
		t.Errorf("Compare(500, 200) = %v, want a", got)
	}
	if got := Compare(200, 500); got != BWins {
		t.Errorf("Compare(200, 500) = %v, want b", got)
	}
	if got := Compare(300, 300); got != Tie {
		t.Errorf("Compare(300, 300) = %v, want tie", got)
	}

	if got := CompareHands(Hand{1, 1, 1, 1, 1}, Hand{2, 3, 4, 5, 6}); got != AWins {
		t.Errorf("five of a kind against a straight = %v, want a", got)
	}
}

func TestCategorize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hand Hand
		want Category
	}{
		{Hand{5, 5, 5, 5, 5}, FiveOfAKind},
		{Hand{2, 2, 5, 5, 5}, FullHouse},
		{Hand{1, 2, 3, 4, 5}, Straight},
		{Hand{4, 4, 4, 4, 1}, FourOfAKind},
		{Hand{3, 3, 3, 1, 6}, ThreeOfAKind},
		{Hand{1, 1, 2, 2, 6}, TwoPair},
		{Hand{1, 1, 2, 4, 6}, Pair},
		{Hand{1, 2, 3, 4, 6}, Nothing},
	}

	for _, tc := range tests {
		if got := Categorize(tc.hand); got != tc.want {
			t.Errorf("Categorize(%s) = %v, want %v", tc.hand, got, tc.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	if got := Describe(Hand{2, 2, 5, 5, 5}); got != "Full House (1100)" {
		t.Errorf("Describe = %q", got)
	}
}

func TestStringOutOfRange(t *testing.T) {
	t.Parallel()

	if got := Outcome(7).String(); got != "unknown" {
		t.Errorf("Outcome(7) = %q", got)
	}
	if got := Outcome(-1).String(); got != "unknown" {
		t.Errorf("Outcome(-1) = %q", got)
	}
	if got := Category(42).String(); got != "Unknown" {
		t.Errorf("Category(42) = %q", got)
	}
	if got := FiveOfAKind.String(); got != "Five of a Kind" {
		t.Errorf("FiveOfAKind = %q", got)
	}
}
