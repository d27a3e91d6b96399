package game

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why an operation was rejected.
type Kind int

const (
	InvalidStage Kind = iota + 1
	NotYourTurn
	AmountMismatch
	PlayerSlotFull
	DuplicatePlayer
	RandomnessNotReady
	RequestAlreadyPending
	DiceOutOfRange
	AlreadyRolled
	Tie
	PayoutFailed
	UnknownTable
)

var kindNames = [...]string{
	"unknown",
	"invalid stage",
	"not your turn",
	"amount mismatch",
	"player slot full",
	"duplicate player",
	"randomness not ready",
	"request already pending",
	"dice out of range",
	"already rolled",
	"tie",
	"payout failed",
	"unknown table",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[0]
	}
	return kindNames[k]
}

// Code is the machine-readable form of the kind, as used on the wire.
func (k Kind) Code() string {
	return strings.ReplaceAll(k.String(), " ", "_")
}

// Error is returned by every fallible session, oracle and table operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "game: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the sentinels below work with
// errors.Is regardless of Op and Msg.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidStage          = &Error{Kind: InvalidStage}
	ErrNotYourTurn           = &Error{Kind: NotYourTurn}
	ErrAmountMismatch        = &Error{Kind: AmountMismatch}
	ErrPlayerSlotFull        = &Error{Kind: PlayerSlotFull}
	ErrDuplicatePlayer       = &Error{Kind: DuplicatePlayer}
	ErrRandomnessNotReady    = &Error{Kind: RandomnessNotReady}
	ErrRequestAlreadyPending = &Error{Kind: RequestAlreadyPending}
	ErrDiceOutOfRange        = &Error{Kind: DiceOutOfRange}
	ErrAlreadyRolled         = &Error{Kind: AlreadyRolled}
	ErrTie                   = &Error{Kind: Tie}
	ErrPayoutFailed          = &Error{Kind: PayoutFailed}
	ErrUnknownTable          = &Error{Kind: UnknownTable}
)

// NewError builds an *Error. Packages outside game use it to report the
// shared kinds.
func NewError(kind Kind, op, format string, args ...any) *Error {
	return newError(kind, op, format, args...)
}

func newError(kind Kind, op, format string, args ...any) *Error {
	e := &Error{Kind: kind, Op: op}
	if format != "" {
		e.Msg = fmt.Sprintf(format, args...)
	}
	return e
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
