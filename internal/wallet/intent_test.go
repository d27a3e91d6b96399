package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/dicepoker/internal/game"
)

func TestIntentValidate(t *testing.T) {
	t.Parallel()

	bet := NewIntent("t1", "alice", MethodBet)
	bet.Args.Amount = 10
	bet.Options.Value = 10
	assert.NoError(t, bet.Validate())
	assert.Equal(t, DefaultChainID, bet.Options.ChainID)

	bad := bet
	bad.Options.Value = 9
	assert.Error(t, bad.Validate(), "value must equal the bet")

	roll := NewIntent("t1", "alice", MethodRollDice)
	roll.Args.Dice = "11111"
	assert.NoError(t, roll.Validate())
	roll.Args.Dice = "1111"
	assert.Error(t, roll.Validate())

	assert.Error(t, NewIntent("", "alice", MethodJoin).Validate())
	assert.Error(t, NewIntent("t1", "", MethodJoin).Validate())
	assert.Error(t, NewIntent("t1", "alice", "shuffle").Validate())
}

func TestHTTPSubmitter(t *testing.T) {
	t.Parallel()

	var got Intent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/tables/t1/actions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Receipt{
			ID:       "r-1",
			Intent:   got,
			Snapshot: game.Snapshot{TableID: "t1", Stage: game.Player1Bet},
		})
	}))
	defer srv.Close()

	in := NewIntent("t1", "bob", MethodJoin)
	receipt, err := NewHTTPSubmitter(srv.URL+"/").Submit(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, in, got)
	assert.Equal(t, "r-1", receipt.ID)
	assert.Equal(t, game.Player1Bet, receipt.Snapshot.Stage)
}

func TestHTTPSubmitterRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"game: bet: not your turn","kind":"not your turn"}`))
	}))
	defer srv.Close()

	in := NewIntent("t1", "bob", MethodBet)
	_, err := NewHTTPSubmitter(srv.URL).Submit(context.Background(), in)

	var se *SubmitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusConflict, se.Status)
	assert.Equal(t, "not your turn", se.Kind)
}
