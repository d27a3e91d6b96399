// Package store persists settlements and randomness draws in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/lox/dicepoker/dice"
	"github.com/lox/dicepoker/internal/game"
	"github.com/lox/dicepoker/internal/store/migrations"
)

// ErrDuplicate is returned when a hand or draw has already been recorded.
var ErrDuplicate = errors.New("store: already recorded")

// Store persists settlements in SQLite.
type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens the database at path and applies embedded migrations. The
// path ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store: path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS, time.Now); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record is a settlement together with the table it happened at.
type Record struct {
	TableID string `json:"table_id"`
	game.Settlement
}

// RecordSettlement stores one settled hand. Recording the same hand twice
// fails with ErrDuplicate.
func (s *Store) RecordSettlement(ctx context.Context, tableID string, st game.Settlement) error {
	if st.HandID == "" {
		return fmt.Errorf("store: settlement has no hand id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settlements (
		   hand_id, table_id, reason, winner,
		   player1, player2, bet1, bet2, pot,
		   payout1, payout2, score1, score2,
		   dice1, dice2, settled_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.HandID, tableID, string(st.Reason), string(st.Winner),
		string(st.Players[0]), string(st.Players[1]), int64(st.Bets[0]), int64(st.Bets[1]), int64(st.Pot),
		int64(st.Payouts[0]), int64(st.Payouts[1]), st.Scores[0], st.Scores[1],
		st.Dice[0].String(), st.Dice[1].String(), toMillis(st.SettledAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: hand %s", ErrDuplicate, st.HandID)
	}
	if err != nil {
		return fmt.Errorf("store: insert settlement: %w", err)
	}
	return nil
}

// Filter narrows ListSettlements. Zero fields match everything.
type Filter struct {
	TableID string
	Player  game.Identity
	Limit   int
}

// ListSettlements returns matching settlements, newest first.
func (s *Store) ListSettlements(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT hand_id, table_id, reason, winner,
	            player1, player2, bet1, bet2, pot,
	            payout1, payout2, score1, score2,
	            dice1, dice2, settled_at
	          FROM settlements WHERE 1=1`
	var args []any
	if f.TableID != "" {
		query += " AND table_id = ?"
		args = append(args, f.TableID)
	}
	if f.Player != "" {
		query += " AND (player1 = ? OR player2 = ?)"
		args = append(args, string(f.Player), string(f.Player))
	}
	query += " ORDER BY settled_at DESC, hand_id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list settlements: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list settlements: %w", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec                            Record
		reason, winner, p1, p2, d1, d2 string
		bet1, bet2, pot, pay1, pay2    int64
		settledAt                      int64
	)
	if err := rows.Scan(
		&rec.HandID, &rec.TableID, &reason, &winner,
		&p1, &p2, &bet1, &bet2, &pot,
		&pay1, &pay2, &rec.Scores[0], &rec.Scores[1],
		&d1, &d2, &settledAt,
	); err != nil {
		return Record{}, fmt.Errorf("store: scan settlement: %w", err)
	}

	rec.Reason = game.SettlementReason(reason)
	rec.Winner = game.Identity(winner)
	rec.Players = [2]game.Identity{game.Identity(p1), game.Identity(p2)}
	rec.Bets = [2]uint64{uint64(bet1), uint64(bet2)}
	rec.Pot = uint64(pot)
	rec.Payouts = [2]uint64{uint64(pay1), uint64(pay2)}
	rec.Paid = [2]bool{pay1 > 0, pay2 > 0}
	rec.SettledAt = fromMillis(settledAt)
	unrolled := (dice.Hand{}).String()
	for i, txt := range []string{d1, d2} {
		if txt == unrolled {
			continue
		}
		h, err := dice.Parse(txt)
		if err != nil {
			return Record{}, fmt.Errorf("store: hand %s: %w", rec.HandID, err)
		}
		rec.Dice[i] = h
	}
	return rec, nil
}

// Draw is the audit record of one fulfilled randomness request.
type Draw struct {
	RequestID   string        `json:"request_id"`
	TableID     string        `json:"table_id"`
	Player      game.Identity `json:"player"`
	Fallback    bool          `json:"fallback"`
	FulfilledAt time.Time     `json:"fulfilled_at"`
}

// RecordDraw stores a fulfilled request.
func (s *Store) RecordDraw(ctx context.Context, d Draw) error {
	fallback := 0
	if d.Fallback {
		fallback = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO draws (request_id, table_id, player, fallback, fulfilled_at) VALUES (?, ?, ?, ?, ?)`,
		d.RequestID, d.TableID, string(d.Player), fallback, toMillis(d.FulfilledAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: request %s", ErrDuplicate, d.RequestID)
	}
	if err != nil {
		return fmt.Errorf("store: insert draw: %w", err)
	}
	return nil
}

// DrawStats counts fulfilled requests for a table, and how many of them used
// the fallback generator. An empty tableID counts every table.
func (s *Store) DrawStats(ctx context.Context, tableID string) (total, fallback int, err error) {
	query := `SELECT COUNT(*), COALESCE(SUM(fallback), 0) FROM draws`
	var args []any
	if tableID != "" {
		query += " WHERE table_id = ?"
		args = append(args, tableID)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total, &fallback); err != nil {
		return 0, 0, fmt.Errorf("store: draw stats: %w", err)
	}
	return total, fallback, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// Recorder writes settlements and draws as tables publish them. It
// implements table.Observer.
type Recorder struct {
	store   *Store
	logger  *log.Logger
	timeout time.Duration
}

// NewRecorder creates a recorder writing to s.
func NewRecorder(s *Store, logger *log.Logger) *Recorder {
	return &Recorder{store: s, logger: logger.WithPrefix("store"), timeout: 5 * time.Second}
}

func (r *Recorder) OnEvent(tableID string, e game.GameEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	switch ev := e.(type) {
	case game.WinnerDeclaredEvent:
		if err := r.store.RecordSettlement(ctx, tableID, ev.Settlement); err != nil {
			r.logger.Error("Failed to record settlement", "table", tableID, "hand", ev.Settlement.HandID, "error", err)
		}
	case game.RandomnessFulfilledEvent:
		err := r.store.RecordDraw(ctx, Draw{
			RequestID:   ev.RequestID,
			TableID:     tableID,
			Player:      ev.Player,
			Fallback:    ev.Fallback,
			FulfilledAt: ev.Timestamp(),
		})
		if err != nil {
			r.logger.Error("Failed to record draw", "table", tableID, "request", ev.RequestID, "error", err)
		}
	}
}

func (r *Recorder) OnSnapshot(game.Snapshot) {}
