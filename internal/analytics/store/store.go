// Package store persists periodic snapshots of the analytics dashboard to
// PostgreSQL so counters survive a restart.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/echomindr/echomindr/internal/analytics"
	"github.com/echomindr/echomindr/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// DefaultRetain is how many snapshots are kept when none is configured.
const DefaultRetain = 288

type Store struct {
	db     *postgres.Client
	retain int
	logger *slog.Logger
}

// New returns a store keeping at most retain snapshots.
func New(db *postgres.Client, retain int) *Store {
	if retain <= 0 {
		retain = DefaultRetain
	}
	return &Store{
		db:     db,
		retain: retain,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating analytics_snapshots: %w", err)
	}
	return nil
}

// SaveSnapshot inserts stats and prunes everything older than the
// retention window in the same transaction.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
			data, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("saving analytics snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM analytics_snapshots WHERE id NOT IN (
				SELECT id FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1)`,
			s.retain,
		); err != nil {
			return fmt.Errorf("pruning analytics snapshots: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("analytics snapshot saved", "total_queries", stats.TotalQueries)
	return nil
}

// LatestSnapshot returns nil, nil when nothing has been saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	stats, err := decode(data)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListSnapshots returns the last limit snapshots, newest first. Corrupt rows
// are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.AggregatedStats
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		stats, err := decode(data)
		if err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}
	return snapshots, rows.Err()
}

// Restore seeds agg with the latest snapshot, if any.
func (s *Store) Restore(ctx context.Context, agg *analytics.Aggregator) error {
	latest, err := s.LatestSnapshot(ctx)
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}
	agg.Restore(*latest)
	s.logger.Info("analytics restored", "total_queries", latest.TotalQueries, "since", latest.Since)
	return nil
}

// StartPeriodicSave snapshots agg every interval until ctx is done, then
// writes a final snapshot. The returned channel closes once the loop exits.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
	return done
}

func decode(data []byte) (analytics.AggregatedStats, error) {
	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return stats, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return stats, nil
}
