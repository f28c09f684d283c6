package store

import (
	"context"
	"errors"
	"time"

	"example.com/numguess/internal/game"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrStatsNotFound = errors.New("no stats for client")

type PlayerStats struct {
	ClientID    string    `json:"clientId"`
	Wins        int       `json:"wins"`
	TotalRefund int       `json:"totalRefund"`
	BestScore   int       `json:"bestScore"`
	LastWinAt   time.Time `json:"lastWinAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StatsStore keeps per-client win totals in Postgres. Accounts themselves
// live in memory; this table only accumulates wins.
type StatsStore struct {
	db *pgxpool.Pool
}

func NewStatsStore(db *pgxpool.Pool) *StatsStore {
	return &StatsStore{db: db}
}

// RecordWin implements game.WinRecorder.
func (s *StatsStore) RecordWin(ctx context.Context, ev game.WinEvent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO player_stats (client_id, wins, total_refund, best_score, last_win_at, updated_at)
		VALUES ($1, 1, $2, $3, $4, now())
		ON CONFLICT (client_id) DO UPDATE SET
			wins = player_stats.wins + 1,
			total_refund = player_stats.total_refund + EXCLUDED.total_refund,
			best_score = GREATEST(player_stats.best_score, EXCLUDED.best_score),
			last_win_at = EXCLUDED.last_win_at,
			updated_at = now()
	`, ev.Winner, ev.Refund, ev.Score, ev.At)
	return err
}

func (s *StatsStore) Get(ctx context.Context, clientID string) (PlayerStats, error) {
	var st PlayerStats
	err := s.db.QueryRow(ctx, `
		SELECT client_id, wins, total_refund, best_score, last_win_at, updated_at
		FROM player_stats
		WHERE client_id=$1
	`, clientID).Scan(&st.ClientID, &st.Wins, &st.TotalRefund, &st.BestScore, &st.LastWinAt, &st.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return PlayerStats{}, ErrStatsNotFound
	}
	if err != nil {
		return PlayerStats{}, err
	}
	return st, nil
}

// Top returns clients ordered by wins, then by most recent win.
func (s *StatsStore) Top(ctx context.Context, limit int) ([]PlayerStats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT client_id, wins, total_refund, best_score, last_win_at, updated_at
		FROM player_stats
		ORDER BY wins DESC, last_win_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PlayerStats, error) {
		var st PlayerStats
		err := row.Scan(&st.ClientID, &st.Wins, &st.TotalRefund, &st.BestScore, &st.LastWinAt, &st.UpdatedAt)
		return st, err
	})
}
