package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/agentpulse/engine/internal/domain"
)

// StrategyRepo handles persistence for versioned Strategy rows and their
// adaptation history. Strategy rows are append-only; the live strategy is
// the row with the highest version.
type StrategyRepo struct{}

// Current returns the live strategy, or ErrStrategyMissing when none is persisted.
func (r *StrategyRepo) Current(ctx context.Context, db *sql.DB) (*domain.Strategy, error) {
	const q = `SELECT version, posting_tone, insight_focus, min_quality, max_daily, optimal_hour, last_adapted_at
FROM strategies ORDER BY version DESC LIMIT 1`

	var s domain.Strategy
	err := db.QueryRowContext(ctx, q).Scan(&s.Version, &s.Params.PostingTone, &s.Params.InsightFocus,
		&s.Params.MinQualityScore, &s.Params.MaxDailyActions, &s.Params.OptimalHour, &s.LastAdaptedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrStrategyMissing
		}
		return nil, fmt.Errorf("get current strategy: %w", err)
	}
	return &s, nil
}

// SaveTx appends a new strategy version within a transaction. The primary key
// on version rejects a concurrent writer that produced the same version.
func (r *StrategyRepo) SaveTx(ctx context.Context, tx *sql.Tx, s domain.Strategy) error {
	const q = `INSERT INTO strategies (version, posting_tone, insight_focus, min_quality, max_daily, optimal_hour, last_adapted_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		s.Version,
		s.Params.PostingTone,
		s.Params.InsightFocus,
		s.Params.MinQualityScore,
		s.Params.MaxDailyActions,
		s.Params.OptimalHour,
		s.LastAdaptedAt,
	)
	if err != nil {
		return domain.WrapAgentError(domain.ErrVersionConflict.Code, "save strategy", err)
	}
	return nil
}

// Seed persists the version-1 strategy if the table is empty.
func (r *StrategyRepo) Seed(ctx context.Context, db *sql.DB, params domain.StrategyParams, nowUnix int64) error {
	const q = `INSERT INTO strategies (version, posting_tone, insight_focus, min_quality, max_daily, optimal_hour, last_adapted_at)
SELECT 1, ?, ?, ?, ?, ?, ?
WHERE NOT EXISTS (SELECT 1 FROM strategies)`
	_, err := db.ExecContext(ctx, q,
		params.PostingTone,
		params.InsightFocus,
		params.MinQualityScore,
		params.MaxDailyActions,
		params.OptimalHour,
		nowUnix,
	)
	if err != nil {
		return fmt.Errorf("seed strategy: %w", err)
	}
	return nil
}

// AppendAdaptationTx inserts an adaptation record within a transaction.
func (r *StrategyRepo) AppendAdaptationTx(ctx context.Context, tx *sql.Tx, rec domain.AdaptationRecord) error {
	changes, err := json.Marshal(rec.Changes)
	if err != nil {
		return fmt.Errorf("marshal adaptation changes: %w", err)
	}

	const q = `INSERT INTO adaptation_records (id, from_version, to_version, changes_json, metrics_json, performance_score, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		rec.ID,
		rec.FromVersion,
		rec.ToVersion,
		string(changes),
		rec.MetricsJSON,
		rec.PerformanceScore,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append adaptation record: %w", err)
	}
	return nil
}

// ListAdaptations returns the most recent adaptation records, newest first.
func (r *StrategyRepo) ListAdaptations(ctx context.Context, db *sql.DB, limit int) ([]domain.AdaptationRecord, error) {
	const q = `SELECT id, from_version, to_version, changes_json, metrics_json, performance_score, created_at
FROM adaptation_records ORDER BY created_at DESC LIMIT ?`
	rows, err := db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list adaptation records: %w", err)
	}
	defer rows.Close()

	var records []domain.AdaptationRecord
	for rows.Next() {
		var rec domain.AdaptationRecord
		var changesJSON string
		if err := rows.Scan(&rec.ID, &rec.FromVersion, &rec.ToVersion, &changesJSON,
			&rec.MetricsJSON, &rec.PerformanceScore, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan adaptation record: %w", err)
		}
		if err := json.Unmarshal([]byte(changesJSON), &rec.Changes); err != nil {
			return nil, fmt.Errorf("unmarshal adaptation changes: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
