package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lox/dicepoker/internal/game"
	"github.com/lox/dicepoker/internal/store"
)

// HistoryCmd lists settlements from the ledger database.
type HistoryCmd struct {
	DB     string `default:"dicepoker.db" help:"Path to the SQLite ledger"`
	Table  string `short:"t" help:"Only show this table"`
	Player string `short:"p" help:"Only show hands this player sat in"`
	Limit  int    `short:"n" default:"20" help:"Maximum settlements to show"`
	JSON   bool   `help:"Print JSON lines instead of a table"`
}

func (c *HistoryCmd) Run() error {
	if _, err := os.Stat(c.DB); err != nil {
		return fmt.Errorf("ledger %s: %w", c.DB, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Open(ctx, c.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.ListSettlements(ctx, store.Filter{
		TableID: c.Table,
		Player:  game.Identity(c.Player),
		Limit:   c.Limit,
	})
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}

	if len(records) == 0 {
		fmt.Println("No settlements recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, headerStyle.Render("SETTLED\tTABLE\tHAND\tREASON\tWINNER\tPOT\tDICE"))
	for _, r := range records {
		winner := string(r.Winner)
		if winner == "" {
			winner = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s v %s\n",
			r.SettledAt.Local().Format(time.DateTime),
			r.TableID,
			r.HandID,
			r.Reason,
			winner,
			r.Pot,
			r.Dice[0], r.Dice[1])
	}
	return w.Flush()
}
