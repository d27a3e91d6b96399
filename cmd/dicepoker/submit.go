package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lox/dicepoker/internal/game"
	"github.com/lox/dicepoker/internal/wallet"
)

// SubmitCmd sends one action to a server as a wallet intent.
type SubmitCmd struct {
	Server  string        `default:"http://localhost:8080" env:"DICEPOKER_SERVER" help:"Server base URL"`
	Table   string        `short:"t" default:"main" help:"Table ID"`
	From    string        `short:"f" required:"" help:"Acting player identity"`
	Method  string        `arg:"" enum:"join,bet,raise,call,fold,roll_dice,request_randomness" help:"Action to perform"`
	Amount  uint64        `short:"a" help:"Bet, raise or call amount"`
	Value   uint64        `help:"Funds sent with the action (defaults to the amount)"`
	Dice    string        `short:"d" help:"Dice to keep for roll_dice; 1 means roll that die"`
	Timeout time.Duration `default:"10s" help:"Request timeout"`
}

func (c *SubmitCmd) Run() error {
	in := wallet.NewIntent(c.Table, game.Identity(c.From), wallet.Method(c.Method))
	in.Args.Amount = c.Amount
	in.Args.Dice = c.Dice
	in.Options.Value = c.Value
	if in.Options.Value == 0 && (in.Method == wallet.MethodBet || in.Method == wallet.MethodRaise || in.Method == wallet.MethodCall) {
		in.Options.Value = c.Amount
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	receipt, err := wallet.NewHTTPSubmitter(c.Server).Submit(ctx, in)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, winStyle.Render(fmt.Sprintf("%s accepted (%s)", c.Method, receipt.ID)))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(receipt.Snapshot)
}
