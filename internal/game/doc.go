// Package game implements the two-player dice poker state machine.
//
// The main type is Session, which owns one table's seats, stakes, dice and
// stage. Every action is validated completely before anything is mutated, so
// a rejected action leaves the session exactly as it was.
//
// # Basic Usage
//
//	s := game.NewSession(oracleClient, escrow)
//	_ = s.Join("alice")
//	_ = s.Join("bob")
//	_ = s.Bet("alice", 10, 10)
//	_ = s.Call("bob", 10)
//	// Both players roll once randomness has been fulfilled.
//	_ = s.RollDice(ctx, "alice", dice.Hand{1, 1, 1, 1, 1})
//
// # Architecture
//
// Session delegates responsibilities to specialized components:
//   - Ledger: per-slot stakes and the amount to match
//   - RandomnessSource: asynchronous random numbers for rolls
//   - Payout: moves the pot to the winner during settlement
//   - Listener: receives game events
//
// A Session is not safe for concurrent use. The table package serialises
// access to it through a single goroutine.
package game
