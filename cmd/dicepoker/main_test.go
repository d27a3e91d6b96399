package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("dicepoker"), kong.Vars{"version": "test"}, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, ctx
}

func TestParseCommands(t *testing.T) {
	cli, ctx := parse(t, "simulate", "-n", "50", "--hero", "aggressive", "--seed", "7")
	assert.Equal(t, "simulate", ctx.Command())
	assert.Equal(t, 50, cli.Simulate.Hands)
	assert.Equal(t, "aggressive", cli.Simulate.Hero)
	require.NotNil(t, cli.Simulate.Seed)
	assert.Equal(t, int64(7), *cli.Simulate.Seed)

	cli, ctx = parse(t, "odds", "66612", "-r", "4,5")
	assert.Equal(t, "odds <hand>", ctx.Command())
	assert.Equal(t, "66612", cli.Odds.Hand)

	cli, _ = parse(t, "submit", "bet", "-f", "alice", "-a", "10")
	assert.Equal(t, "bet", cli.Submit.Method)
	assert.Equal(t, uint64(10), cli.Submit.Amount)
}

func TestParseRejectsUnknownStyle(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)
	_, err = parser.Parse([]string{"simulate", "--hero", "reckless"})
	assert.Error(t, err)
}

func TestParseReroll(t *testing.T) {
	mask, err := parseReroll("1, 3,5")
	require.NoError(t, err)
	assert.Equal(t, [5]bool{true, false, true, false, true}, mask)
	assert.Equal(t, "1, 3, 5", describeReroll(mask))

	mask, err = parseReroll("")
	require.NoError(t, err)
	assert.Equal(t, "nothing", describeReroll(mask))

	_, err = parseReroll("6")
	assert.Error(t, err)
	_, err = parseReroll("x")
	assert.Error(t, err)
}

func TestSplitAddr(t *testing.T) {
	host, port, err := splitAddr("0.0.0.0:9000")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", host)
	assert.Equal(t, 9000, port)

	_, _, err = splitAddr("nope")
	assert.Error(t, err)
}

func TestServeLoadAppliesFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dicepoker.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
oracle {
  simulate = true
}

table "one" {}
table "two" {
  tie_policy = "split"
}
`), 0o600))

	cmd := &ServeCmd{Config: path, EnvFile: filepath.Join(dir, "missing.env"), Addr: "127.0.0.1:0"}
	_, err := cmd.load()
	require.Error(t, err, "port 0 is rejected")

	cmd.Addr = "127.0.0.1:9191"
	cfg, err := cmd.load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9191", cfg.ServerAddress())
	assert.True(t, cfg.Oracle.Simulate)
	assert.Len(t, cfg.TableConfigs(), 2)
}

func TestSetupLoggerRejectsBadLevel(t *testing.T) {
	_, _, err := setupLogger("chatty", false, "")
	assert.Error(t, err)

	logger, closeLog, err := setupLogger("info", true, filepath.Join(t.TempDir(), "dicepoker.log"))
	require.NoError(t, err)
	logger.Debug("hello")
	assert.NoError(t, closeLog())
}

func TestSimulateWritesSummary(t *testing.T) {
	seed := int64(3)
	path := filepath.Join(t.TempDir(), "summary.json")
	cmd := &SimulateCmd{
		Hands:     4,
		Hero:      "passive",
		Villain:   "passive",
		Seed:      &seed,
		TiePolicy: "halt",
		Stake:     10,
		MaxRaises: 3,
		Output:    path,
	}
	require.NoError(t, cmd.Run(&CLI{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got summary
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 4, got.Hands)
	assert.Equal(t, int64(3), got.Seed)
	assert.Equal(t, "halt", got.TiePolicy)
}

func TestOddsRun(t *testing.T) {
	seed := int64(1)
	cmd := &OddsCmd{Hand: "66666", Opponent: "12345", Iterations: 100, Seed: &seed}
	assert.NoError(t, cmd.Run())

	cmd = &OddsCmd{Hand: "66666", Reroll: "9", Iterations: 100}
	assert.Error(t, cmd.Run())
}
