package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/dicepoker/internal/game"
)

var (
	// ErrInsufficientFunds is returned when a player cannot cover a debit.
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	// ErrEscrowShort is returned when a payout exceeds what escrow holds.
	ErrEscrowShort = errors.New("wallet: escrow holds less than the payout")
)

// TransactionType classifies escrow movements.
type TransactionType string

const (
	TransactionDeposit TransactionType = "deposit"
	TransactionStake   TransactionType = "stake"
	TransactionPayout  TransactionType = "payout"
)

// Transaction is one recorded balance movement.
type Transaction struct {
	ID            string          `json:"id"`
	Player        game.Identity   `json:"player"`
	Type          TransactionType `json:"type"`
	Amount        uint64          `json:"amount"`
	BalanceBefore uint64          `json:"balance_before"`
	BalanceAfter  uint64          `json:"balance_after"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Escrow is an in-process account book. Stakes move from player balances
// into escrow when actions are accepted, and back out to the winner at
// settlement. It implements game.Payout and table.Funds.
type Escrow struct {
	clock quartz.Clock

	mu       sync.Mutex
	balances map[game.Identity]uint64
	held     uint64
	history  []Transaction
}

// NewEscrow creates an empty escrow.
func NewEscrow(clock quartz.Clock) *Escrow {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Escrow{
		clock:    clock,
		balances: make(map[game.Identity]uint64),
	}
}

// Deposit credits a player from outside the game.
func (e *Escrow) Deposit(id game.Identity, amount uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.balances[id]
	e.balances[id] = before + amount
	e.record(id, TransactionDeposit, amount, before)
}

// Balance returns a player's free balance.
func (e *Escrow) Balance(id game.Identity) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[id]
}

// Held returns the total currently staked across all tables.
func (e *Escrow) Held() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.held
}

// Debit moves amount from a player's balance into escrow.
func (e *Escrow) Debit(_ context.Context, from game.Identity, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.balances[from]
	if before < amount {
		return fmt.Errorf("%w: %q has %d, needs %d", ErrInsufficientFunds, from, before, amount)
	}
	e.balances[from] = before - amount
	e.held += amount
	e.record(from, TransactionStake, amount, before)
	return nil
}

// Transfer pays amount out of escrow to a player.
func (e *Escrow) Transfer(ctx context.Context, to game.Identity, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.held < amount {
		return fmt.Errorf("%w: holds %d, paying %d", ErrEscrowShort, e.held, amount)
	}
	before := e.balances[to]
	e.held -= amount
	e.balances[to] = before + amount
	e.record(to, TransactionPayout, amount, before)
	return nil
}

// Transactions returns a copy of the movement history, oldest first.
func (e *Escrow) Transactions() []Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Transaction(nil), e.history...)
}

// record must be called with e.mu held.
func (e *Escrow) record(id game.Identity, kind TransactionType, amount, before uint64) {
	e.history = append(e.history, Transaction{
		ID:            uuid.NewString(),
		Player:        id,
		Type:          kind,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  e.balances[id],
		CreatedAt:     e.clock.Now(),
	})
}
