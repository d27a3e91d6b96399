package dice

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/lox/dicepoker/internal/randutil"
)

// EquityOptions controls a Monte Carlo equity run.
type EquityOptions struct {
	Iterations int
	Workers    int // defaults to NumCPU, capped at 8
	Seed       int64
}

// EquityResult holds the raw outcome counts of a run.
type EquityResult struct {
	Wins    int
	Ties    int
	Losses  int
	Samples int
}

// Equity is the share of the pot the hand expects to take, counting ties as half.
func (r EquityResult) Equity() float64 {
	if r.Samples == 0 {
		return 0
	}
	return (float64(r.Wins) + float64(r.Ties)/2) / float64(r.Samples)
}

// WinRate is the fraction of samples won outright.
func (r EquityResult) WinRate() float64 {
	if r.Samples == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Samples)
}

// TieRate is the fraction of samples that tied.
func (r EquityResult) TieRate() float64 {
	if r.Samples == 0 {
		return 0
	}
	return float64(r.Ties) / float64(r.Samples)
}

// Equity estimates how often hand beats opponent when the positions flagged in
// reroll are rolled again. A zero opponent hand is rolled fresh every sample.
func Equity(ctx context.Context, hand Hand, reroll [HandSize]bool, opponent Hand, opts EquityOptions) (EquityResult, error) {
	if opts.Iterations <= 0 {
		return EquityResult{}, errors.New("dice: iterations must be > 0")
	}
	for i, f := range hand {
		if !reroll[i] && !f.Valid() {
			return EquityResult{}, fmt.Errorf("%w: kept die %d is %d", ErrInvalidHand, i+1, f)
		}
	}
	if !opponent.IsZero() && !opponent.Valid() {
		return EquityResult{}, fmt.Errorf("%w: opponent %s", ErrInvalidHand, opponent)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = min(runtime.NumCPU(), 8)
	}
	workers = min(workers, opts.Iterations)

	perWorker := opts.Iterations / workers
	remainder := opts.Iterations % workers

	g, ctx := errgroup.WithContext(ctx)
	results := make([]EquityResult, workers)

	for w := range workers {
		samples := perWorker
		if w < remainder {
			samples++
		}
		g.Go(func() error {
			rng := randutil.Derive(opts.Seed, w)
			res, err := runEquityWorker(ctx, hand, reroll, opponent, samples, rng)
			results[w] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return EquityResult{}, err
	}

	var total EquityResult
	for _, r := range results {
		total.Wins += r.Wins
		total.Ties += r.Ties
		total.Losses += r.Losses
		total.Samples += r.Samples
	}
	return total, nil
}

func runEquityWorker(ctx context.Context, hand Hand, reroll [HandSize]bool, opponent Hand, samples int, rng *rand.Rand) (EquityResult, error) {
	var res EquityResult
	freshOpponent := opponent.IsZero()

	for i := range samples {
		// Poll for cancellation every 1024 samples.
		if i&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}

		mine := hand
		for j := range mine {
			if reroll[j] {
				mine[j] = roll(rng)
			}
		}
		theirs := opponent
		if freshOpponent {
			for j := range theirs {
				theirs[j] = roll(rng)
			}
		}

		switch CompareHands(mine, theirs) {
		case AWins:
			res.Wins++
		case BWins:
			res.Losses++
		default:
			res.Ties++
		}
		res.Samples++
	}
	return res, nil
}

func roll(rng *rand.Rand) Face {
	return Face(rng.IntN(int(MaxFace))) + MinFace
}
