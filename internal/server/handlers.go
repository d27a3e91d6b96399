package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lox/dicepoker/dice"
	"github.com/lox/dicepoker/internal/cache"
	"github.com/lox/dicepoker/internal/game"
	"github.com/lox/dicepoker/internal/store"
	"github.com/lox/dicepoker/internal/table"
	"github.com/lox/dicepoker/internal/wallet"
)

// SnapshotSourceHeader is set to "cache" when a snapshot was served from the
// cache rather than a running table.
const SnapshotSourceHeader = "X-Snapshot-Source"

type createTableRequest struct {
	ID             string `json:"id"`
	TiePolicy      string `json:"tie_policy"`
	FulfillTimeout string `json:"fulfill_timeout"`
}

type fulfillRequest struct {
	TableID   string   `json:"table_id"`
	RequestID string   `json:"request_id"`
	Numbers   []uint64 `json:"numbers"`
}

type depositRequest struct {
	Amount uint64 `json:"amount"`
}

func bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return badRequest{msg: "invalid request body: " + err.Error()}
	}
	return nil
}

func (s *Server) table(c *gin.Context) (*table.Table, bool) {
	t, err := s.manager.Get(c.Param("id"))
	if err != nil {
		abort(c, err)
		return nil, false
	}
	return t, true
}

func (s *Server) handleListTables(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tables": s.manager.Snapshots()})
}

func (s *Server) handleCreateTable(c *gin.Context) {
	var req createTableRequest
	if err := bind(c, &req); err != nil {
		abort(c, err)
		return
	}

	policy, err := game.ParseTiePolicy(req.TiePolicy)
	if err != nil {
		abort(c, badRequest{msg: err.Error()})
		return
	}
	timeout := s.timeout
	if req.FulfillTimeout != "" {
		timeout, err = time.ParseDuration(req.FulfillTimeout)
		if err != nil {
			abort(c, badRequest{msg: "invalid fulfill_timeout: " + err.Error()})
			return
		}
	}

	t, err := s.manager.Create(table.Config{ID: req.ID, TiePolicy: policy, FulfillTimeout: timeout})
	if errors.Is(err, table.ErrExists) {
		abort(c, err)
		return
	}
	if err != nil {
		abort(c, badRequest{msg: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t.Snapshot())
}

func (s *Server) handleGetTable(c *gin.Context) {
	id := c.Param("id")
	t, err := s.manager.Get(id)
	if err == nil {
		c.JSON(http.StatusOK, t.Snapshot())
		return
	}

	if s.cache != nil {
		snap, cerr := s.cache.Get(c.Request.Context(), id)
		if cerr == nil {
			c.Header(SnapshotSourceHeader, "cache")
			c.JSON(http.StatusOK, snap)
			return
		}
		if !errors.Is(cerr, cache.ErrMiss) {
			s.logger.Warn("Snapshot cache lookup failed", "table", id, "error", cerr)
		}
	}
	abort(c, err)
}

func (s *Server) handleDeleteTable(c *gin.Context) {
	id := c.Param("id")
	if err := s.manager.Remove(id); err != nil {
		abort(c, err)
		return
	}
	if s.cache != nil {
		if err := s.cache.Forget(c.Request.Context(), id); err != nil {
			s.logger.Warn("Failed to forget cached snapshot", "table", id, "error", err)
		}
	}
	c.Status(http.StatusNoContent)
}

// handleAction executes a wallet intent against the table named in the path.
func (s *Server) handleAction(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}

	var in wallet.Intent
	if err := bind(c, &in); err != nil {
		abort(c, err)
		return
	}
	if in.TableID == "" {
		in.TableID = t.ID()
	}
	if in.TableID != t.ID() {
		abort(c, badRequest{msg: fmt.Sprintf("intent is for table %q, not %q", in.TableID, t.ID())})
		return
	}
	if err := in.Validate(); err != nil {
		abort(c, badRequest{msg: err.Error()})
		return
	}

	ctx := c.Request.Context()
	var err error
	switch in.Method {
	case wallet.MethodJoin:
		err = t.Join(ctx, in.From)
	case wallet.MethodBet:
		err = t.Bet(ctx, in.From, in.Args.Amount, in.Options.Value)
	case wallet.MethodRaise:
		err = t.Raise(ctx, in.From, in.Args.Amount, in.Options.Value)
	case wallet.MethodCall:
		err = t.Call(ctx, in.From, in.Options.Value)
	case wallet.MethodFold:
		err = t.Fold(ctx, in.From)
	case wallet.MethodRequestRandomness:
		err = t.RequestRandomness(ctx, in.From)
	case wallet.MethodRollDice:
		var faces dice.Hand
		faces, err = dice.Parse(in.Args.Dice)
		if err == nil {
			err = t.RollDice(ctx, in.From, faces)
		}
	}
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, wallet.Receipt{
		ID:       uuid.NewString(),
		Intent:   in,
		Snapshot: t.Snapshot(),
	})
}

func (s *Server) handleCallAmount(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	player := game.Identity(c.Query("player"))
	amount, err := t.CallAmount(c.Request.Context(), player)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": player, "amount": amount})
}

func (s *Server) handleLastSettlement(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	if snap := t.Snapshot(); snap.Pending != nil {
		c.JSON(http.StatusOK, gin.H{"settlement": snap.Pending, "paid": false})
		return
	}
	st, found, err := t.LastSettlement(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no hand has settled at this table", "kind": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settlement": st, "paid": true})
}

func (s *Server) handleRetrySettlement(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	if err := t.RetrySettlement(c.Request.Context()); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t.Snapshot())
}

func (s *Server) handleSettlements(c *gin.Context) {
	if s.history == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "settlement history is not enabled", "kind": "not_enabled"})
		return
	}

	f := store.Filter{
		TableID: c.Param("id"),
		Player:  game.Identity(c.Query("player")),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			abort(c, badRequest{msg: "limit must be a non-negative integer"})
			return
		}
		f.Limit = n
	}

	records, err := s.history.ListSettlements(c.Request.Context(), f)
	if err != nil {
		abort(c, err)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"settlements": records})
}

func (s *Server) handlePendingRequests(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": t.PendingRequests()})
}

// handleFulfill is the oracle network's callback.
func (s *Server) handleFulfill(c *gin.Context) {
	var req fulfillRequest
	if err := bind(c, &req); err != nil {
		abort(c, err)
		return
	}
	if req.TableID == "" || req.RequestID == "" {
		abort(c, badRequest{msg: "table_id and request_id are required"})
		return
	}
	if err := s.manager.Fulfill(c.Request.Context(), req.TableID, req.RequestID, req.Numbers); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBalance(c *gin.Context) {
	if s.bank == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "no bank configured", "kind": "not_enabled"})
		return
	}
	id := game.Identity(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"player": id, "balance": s.bank.Balance(id)})
}

func (s *Server) handleDeposit(c *gin.Context) {
	if s.bank == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "no bank configured", "kind": "not_enabled"})
		return
	}
	var req depositRequest
	if err := bind(c, &req); err != nil {
		abort(c, err)
		return
	}
	if req.Amount == 0 {
		abort(c, badRequest{msg: "amount must be positive"})
		return
	}
	id := game.Identity(c.Param("id"))
	s.bank.Deposit(id, req.Amount)
	c.JSON(http.StatusOK, gin.H{"player": id, "balance": s.bank.Balance(id)})
}
