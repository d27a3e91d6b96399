package main

import (
	"fmt"
	"time"

	"github.com/lox/dicepoker/internal/fileutil"
	"github.com/lox/dicepoker/internal/game"
	"github.com/lox/dicepoker/internal/simulator"
	"github.com/lox/dicepoker/internal/statistics"
)

// SimulateCmd plays one bot style against another.
type SimulateCmd struct {
	Hands     int     `short:"n" default:"1000" help:"Number of hands to play"`
	Hero      string  `default:"passive" enum:"passive,aggressive,random,timid" help:"Hero style"`
	Villain   string  `default:"random" enum:"passive,aggressive,random,timid" help:"Villain style"`
	Seed      *int64  `help:"Seed for reproducible results"`
	TiePolicy string  `default:"halt" enum:"halt,split" help:"How tied showdowns are resolved"`
	Stake     uint64  `default:"10" help:"Opening bet and raise size"`
	MaxRaises int     `default:"3" help:"Raise cap per hand"`
	DropRate  float64 `default:"0" help:"Fraction of oracle answers dropped to force fallback randomness"`
	Output    string  `short:"o" type:"path" help:"Also write a JSON summary to this file"`
}

// summary is the JSON form of a simulation run.
type summary struct {
	Hero         string  `json:"hero"`
	Villain      string  `json:"villain"`
	Seed         int64   `json:"seed"`
	TiePolicy    string  `json:"tie_policy"`
	Hands        int     `json:"hands"`
	Mean         float64 `json:"mean"`
	StdError     float64 `json:"std_error"`
	CILow        float64 `json:"ci95_low"`
	CIHigh       float64 `json:"ci95_high"`
	WinRate      float64 `json:"win_rate"`
	ShowdownWins int     `json:"showdown_wins"`
	FoldWins     int     `json:"fold_wins"`
	Splits       int     `json:"splits"`
	Fallback     int     `json:"fallback_hands"`
	MaxPot       uint64  `json:"max_pot"`
	Raises       int     `json:"raises"`
	ElapsedMS    int64   `json:"elapsed_ms"`
}

func (c *SimulateCmd) Run(cli *CLI) error {
	logger, closeLog, err := setupLogger("warn", cli.Debug, "")
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext(logger)
	defer cancel()

	policy, err := game.ParseTiePolicy(c.TiePolicy)
	if err != nil {
		return err
	}
	seed, err := resolveSeed(c.Seed)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Simulating %d hands: %s vs %s (seed %d)", c.Hands, c.Hero, c.Villain, seed)))

	start := time.Now()
	stats, err := simulator.New(simulator.Config{
		Hands:     c.Hands,
		Seed:      seed,
		Hero:      simulator.Style(c.Hero),
		Villain:   simulator.Style(c.Villain),
		TiePolicy: policy,
		Stake:     c.Stake,
		MaxRaises: c.MaxRaises,
		DropRate:  c.DropRate,
		Logger:    logger,
	}).Run(ctx)
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	printStatistics(stats, elapsed)

	if c.Output == "" {
		return nil
	}
	low, high := stats.ConfidenceInterval95()
	return fileutil.WriteJSON(c.Output, summary{
		Hero:         c.Hero,
		Villain:      c.Villain,
		Seed:         seed,
		TiePolicy:    policy.String(),
		Hands:        stats.Hands,
		Mean:         stats.Mean(),
		StdError:     stats.StdError(),
		CILow:        low,
		CIHigh:       high,
		WinRate:      stats.WinRate(),
		ShowdownWins: stats.ShowdownWins,
		FoldWins:     stats.FoldWins,
		Splits:       stats.Splits,
		Fallback:     stats.FallbackHands,
		MaxPot:       stats.MaxPot,
		Raises:       stats.Raises,
		ElapsedMS:    elapsed.Milliseconds(),
	})
}

func printStatistics(s *statistics.Statistics, elapsed time.Duration) {
	low, high := s.ConfidenceInterval95()

	fmt.Println()
	fmt.Println(row("Hands", fmt.Sprintf("%d in %s", s.Hands, elapsed.Round(time.Millisecond))))
	fmt.Println(row("Net per hand", signed(s.Mean(), "%+.3f")+fmt.Sprintf(" ± %.3f SE", s.StdError())))
	fmt.Println(row("95% CI", fmt.Sprintf("[%.3f, %.3f]", low, high)))
	fmt.Println(row("Win rate", fmt.Sprintf("%.1f%%", s.WinRate()*100)))
	fmt.Println(row("Median", signed(s.Median(), "%+.1f")))
	fmt.Println(row("Showdowns won", fmt.Sprintf("%d (net %s)", s.ShowdownWins, signed(float64(s.ShowdownNet), "%+.0f"))))
	fmt.Println(row("Folds won", fmt.Sprintf("%d (net %s)", s.FoldWins, signed(float64(s.FoldNet), "%+.0f"))))
	fmt.Println(row("Splits", tieStyle.Render(fmt.Sprintf("%d", s.Splits))))
	fmt.Println(row("Seat 1 / Seat 2", fmt.Sprintf("%s / %s", signed(s.SeatMean(0), "%+.3f"), signed(s.SeatMean(1), "%+.3f"))))
	fmt.Println(row("Largest pot", fmt.Sprintf("%d", s.MaxPot)))
	fmt.Println(row("Raises", fmt.Sprintf("%d", s.Raises)))
	if s.FallbackHands > 0 {
		fmt.Println(row("Fallback hands", tieStyle.Render(fmt.Sprintf("%d", s.FallbackHands))))
	}
}
