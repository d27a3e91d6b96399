package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lox/dicepoker/internal/game"
	"github.com/lox/dicepoker/internal/oracle"
	"github.com/lox/dicepoker/internal/table"
	"github.com/lox/dicepoker/internal/wallet"
)

// errBadRequest marks request decoding and validation failures.
var errBadRequest = errors.New("bad request")

type badRequest struct{ msg string }

func (e badRequest) Error() string        { return e.msg }
func (e badRequest) Is(target error) bool { return target == errBadRequest }

func statusFor(err error) int {
	switch game.KindOf(err) {
	case game.UnknownTable:
		return http.StatusNotFound
	case game.AmountMismatch, game.DiceOutOfRange:
		return http.StatusUnprocessableEntity
	case game.PayoutFailed:
		return http.StatusBadGateway
	case game.InvalidStage, game.NotYourTurn, game.PlayerSlotFull, game.DuplicatePlayer,
		game.RandomnessNotReady, game.RequestAlreadyPending, game.AlreadyRolled, game.Tie:
		return http.StatusConflict
	}

	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, table.ErrExists):
		return http.StatusConflict
	case errors.Is(err, oracle.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, table.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(err error) string {
	if k := game.KindOf(err); k != 0 {
		return k.Code()
	}
	switch {
	case errors.Is(err, errBadRequest):
		return "bad_request"
	case errors.Is(err, table.ErrExists):
		return "table_exists"
	case errors.Is(err, oracle.ErrUnknownRequest):
		return "unknown_request"
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, table.ErrClosed):
		return "table_closed"
	default:
		return "internal"
	}
}

// abort writes err as {"error", "kind"} with the matching status.
func abort(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "kind": codeFor(err)})
}
