package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lox/dicepoker/dice"
)

// OddsCmd estimates hand equity by Monte Carlo.
type OddsCmd struct {
	Hand       string `arg:"" help:"Current hand, e.g. '11234' or '1,1,2,3,4'"`
	Reroll     string `short:"r" help:"Dice positions (1-5) to roll again, e.g. '3,4,5'"`
	Opponent   string `short:"o" help:"Opponent's final hand; rolled fresh each sample when empty"`
	Iterations int    `short:"i" default:"100000" help:"Number of Monte Carlo iterations"`
	Seed       *int64 `help:"Random seed for reproducible results"`
}

func (c *OddsCmd) Run() error {
	hand, err := dice.Parse(c.Hand)
	if err != nil {
		return fmt.Errorf("hand: %w", err)
	}
	reroll, err := parseReroll(c.Reroll)
	if err != nil {
		return err
	}
	var opponent dice.Hand
	if c.Opponent != "" {
		if opponent, err = dice.Parse(c.Opponent); err != nil {
			return fmt.Errorf("opponent: %w", err)
		}
	}
	seed, err := resolveSeed(c.Seed)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := dice.Equity(context.Background(), hand, reroll, opponent, dice.EquityOptions{
		Iterations: c.Iterations,
		Seed:       seed,
	})
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Dice poker equity"))
	fmt.Println(row("Hand", handStyle.Render(hand.String())+" "+dice.Describe(hand)))
	fmt.Println(row("Rerolling", describeReroll(reroll)))
	if opponent.IsZero() {
		fmt.Println(row("Opponent", "random roll"))
	} else {
		fmt.Println(row("Opponent", handStyle.Render(opponent.String())+" "+dice.Describe(opponent)))
	}
	fmt.Println()
	fmt.Println(row("Win", winStyle.Render(fmt.Sprintf("%.2f%%", res.WinRate()*100))))
	fmt.Println(row("Tie", tieStyle.Render(fmt.Sprintf("%.2f%%", res.TieRate()*100))))
	fmt.Println(row("Equity", fmt.Sprintf("%.2f%%", res.Equity()*100)))
	fmt.Println(row("Samples", fmt.Sprintf("%d in %s", res.Samples, time.Since(start).Round(time.Millisecond))))
	return nil
}

func parseReroll(s string) ([dice.HandSize]bool, error) {
	var mask [dice.HandSize]bool
	for field := range strings.FieldsFuncSeq(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		pos, err := strconv.Atoi(field)
		if err != nil || pos < 1 || pos > dice.HandSize {
			return mask, fmt.Errorf("reroll: position %q must be between 1 and %d", field, dice.HandSize)
		}
		mask[pos-1] = true
	}
	return mask, nil
}

func describeReroll(mask [dice.HandSize]bool) string {
	var positions []string
	for i, r := range mask {
		if r {
			positions = append(positions, strconv.Itoa(i+1))
		}
	}
	if len(positions) == 0 {
		return "nothing"
	}
	return strings.Join(positions, ", ")
}
