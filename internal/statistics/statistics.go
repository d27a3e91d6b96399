// Package statistics accumulates per-hand results from simulated dice poker
// sessions, always from the point of view of one player (the hero).
package statistics

import (
	"fmt"
	"math"
	"slices"
)

// Outcome is how a hand ended.
type Outcome string

const (
	OutcomeShowdown Outcome = "showdown"
	OutcomeFold     Outcome = "fold"
	OutcomeSplit    Outcome = "split"
)

// HandResult is the outcome of a single hand for the hero.
type HandResult struct {
	Net      int64   // units won (positive) or lost (negative)
	Seed     int64   // seed the hand's randomness was drawn from
	Seat     int     // hero's slot, 0 or 1
	Outcome  Outcome // how the hand ended
	Pot      uint64  // final pot
	Raises   int     // raises made by either player
	Fallback bool    // a roll used fallback randomness
}

// SeatStats tracks results for one slot.
type SeatStats struct {
	Hands int
	Sum   float64
	Sum2  float64
}

// Statistics tracks simulation results.
type Statistics struct {
	Hands  int
	Sum    float64
	Sum2   float64   // sum of squares for variance
	Values []float64 // every result, for median and percentiles

	ShowdownWins int
	FoldWins     int
	Splits       int
	ShowdownNet  float64
	FoldNet      float64
	SplitNet     float64
	AllNet       float64

	FallbackHands int

	SeatResults [2]SeatStats

	MaxPot uint64
	Raises int
}

// Mean returns the mean net result per hand.
func (s *Statistics) Mean() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.Sum / float64(s.Hands)
}

// Variance returns the sample variance.
func (s *Statistics) Variance() float64 {
	if s.Hands < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.Sum2 - float64(s.Hands)*mean*mean) / float64(s.Hands-1)
}

// StdDev returns the sample standard deviation.
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean.
func (s *Statistics) StdError() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Hands))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean.
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Add incorporates a hand result.
func (s *Statistics) Add(result HandResult) {
	net := float64(result.Net)
	s.Hands++
	s.Sum += net
	s.Sum2 += net * net
	s.Values = append(s.Values, net)

	switch result.Outcome {
	case OutcomeShowdown:
		if net > 0 {
			s.ShowdownWins++
		}
		s.ShowdownNet += net
	case OutcomeFold:
		if net > 0 {
			s.FoldWins++
		}
		s.FoldNet += net
	case OutcomeSplit:
		s.Splits++
		s.SplitNet += net
	}
	s.AllNet += net

	if result.Seat == 0 || result.Seat == 1 {
		s.SeatResults[result.Seat].Hands++
		s.SeatResults[result.Seat].Sum += net
		s.SeatResults[result.Seat].Sum2 += net * net
	}

	if result.Fallback {
		s.FallbackHands++
	}
	s.Raises += result.Raises
	s.MaxPot = max(s.MaxPot, result.Pot)
}

// WinRate returns the share of hands the hero won outright.
func (s *Statistics) WinRate() float64 {
	if s.Hands == 0 {
		return 0
	}
	return float64(s.ShowdownWins+s.FoldWins) / float64(s.Hands)
}

// Median returns the median result.
func (s *Statistics) Median() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := slices.Clone(s.Values)
	slices.Sort(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Percentile returns the value at percentile p in [0, 1].
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := slices.Clone(s.Values)
	slices.Sort(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// SeatMean returns the mean result when the hero sat in seat.
func (s *Statistics) SeatMean(seat int) float64 {
	if seat < 0 || seat > 1 {
		return 0
	}
	ss := s.SeatResults[seat]
	if ss.Hands == 0 {
		return 0
	}
	return ss.Sum / float64(ss.Hands)
}

// IsLedgerBalanced reports whether the per-outcome totals add up.
func (s *Statistics) IsLedgerBalanced() bool {
	return math.Abs(s.AllNet-s.ShowdownNet-s.FoldNet-s.SplitNet) <= 1e-6
}

// Validate checks the accumulated data for internal consistency.
func (s *Statistics) Validate() error {
	if !s.IsLedgerBalanced() {
		return fmt.Errorf("ledger mismatch: all=%.2f showdown=%.2f fold=%.2f split=%.2f",
			s.AllNet, s.ShowdownNet, s.FoldNet, s.SplitNet)
	}
	if s.Hands <= 0 {
		return fmt.Errorf("invalid hands count: %d", s.Hands)
	}
	if len(s.Values) != s.Hands {
		return fmt.Errorf("values array length (%d) does not match hands count (%d)", len(s.Values), s.Hands)
	}
	if wins := s.ShowdownWins + s.FoldWins + s.Splits; wins > s.Hands {
		return fmt.Errorf("wins and splits (%d) exceed total hands (%d)", wins, s.Hands)
	}
	if seats := s.SeatResults[0].Hands + s.SeatResults[1].Hands; seats != s.Hands {
		return fmt.Errorf("seat hands total (%d) does not match total hands (%d)", seats, s.Hands)
	}
	return nil
}
