package main

import (
	"github.com/alecthomas/kong"
)

var version = "dev"

// CLI defines the command-line interface.
type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Debug   bool             `help:"Enable debug logging"`

	Serve    ServeCmd    `cmd:"" help:"Run the dice poker server"`
	Simulate SimulateCmd `cmd:"" help:"Play bots against each other and report results"`
	Odds     OddsCmd     `cmd:"" help:"Estimate the equity of a hand before a reroll"`
	History  HistoryCmd  `cmd:"" help:"List recorded settlements"`
	Submit   SubmitCmd   `cmd:"" help:"Submit a game action to a running server"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("dicepoker"),
		kong.Description("Two-player dice poker with escrowed stakes and oracle randomness"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
		kong.Bind(&cli),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
