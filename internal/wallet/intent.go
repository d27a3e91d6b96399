package wallet

import (
	"context"
	"fmt"

	"github.com/lox/dicepoker/dice"
	"github.com/lox/dicepoker/internal/game"
)

// DefaultChainID identifies the network intents are built for when none is
// configured.
const DefaultChainID = "1891"

// Method names a game action carried by an Intent.
type Method string

const (
	MethodJoin              Method = "join"
	MethodBet               Method = "bet"
	MethodRaise             Method = "raise"
	MethodCall              Method = "call"
	MethodFold              Method = "fold"
	MethodRollDice          Method = "roll_dice"
	MethodRequestRandomness Method = "request_randomness"
)

// Options are the transaction options attached to an intent. Value is the
// amount of funds sent with the action; the rest is passed through to the
// signer untouched.
type Options struct {
	Value    uint64 `json:"value"`
	GasPrice uint64 `json:"gas_price,omitempty"`
	Gas      uint64 `json:"gas,omitempty"`
	Nonce    uint64 `json:"nonce,omitempty"`
	ChainID  string `json:"chain_id,omitempty"`
}

// Args are the method arguments.
type Args struct {
	Amount uint64 `json:"amount,omitempty"`
	Dice   string `json:"dice,omitempty"`
}

// Intent is an unsigned request to perform a game action.
type Intent struct {
	TableID string        `json:"table_id"`
	From    game.Identity `json:"from"`
	Method  Method        `json:"method"`
	Args    Args          `json:"args"`
	Options Options       `json:"options"`
}

// Receipt is what the game returns for a submitted intent.
type Receipt struct {
	ID       string        `json:"id"`
	Intent   Intent        `json:"intent"`
	Snapshot game.Snapshot `json:"snapshot"`
}

// Submitter hands intents to whatever signs and executes them.
type Submitter interface {
	Submit(ctx context.Context, in Intent) (Receipt, error)
}

// Validate checks the intent is well formed. It does not check game rules.
func (in Intent) Validate() error {
	if in.TableID == "" {
		return fmt.Errorf("wallet: intent has no table")
	}
	if in.From == "" {
		return fmt.Errorf("wallet: intent has no sender")
	}
	switch in.Method {
	case MethodJoin, MethodFold, MethodRequestRandomness, MethodCall:
	case MethodBet, MethodRaise:
		if in.Args.Amount != in.Options.Value {
			return fmt.Errorf("wallet: %s of %d sends value %d", in.Method, in.Args.Amount, in.Options.Value)
		}
	case MethodRollDice:
		if _, err := dice.Parse(in.Args.Dice); err != nil {
			return fmt.Errorf("wallet: %w", err)
		}
	default:
		return fmt.Errorf("wallet: unknown method %q", in.Method)
	}
	return nil
}

// NewIntent builds an intent with the default chain ID.
func NewIntent(tableID string, from game.Identity, method Method) Intent {
	return Intent{
		TableID: tableID,
		From:    from,
		Method:  method,
		Options: Options{ChainID: DefaultChainID},
	}
}
