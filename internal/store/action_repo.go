package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentpulse/engine/internal/domain"
)

// ActionRepo handles persistence for ActionRecord entries.
// Records are append-only: only ledger_tx_ref and outcome may change after
// insert, each at most once.
type ActionRepo struct{}

// Create inserts a new action record. A second action of the same type
// against the same subject violates the uniqueness index and returns
// ErrDuplicateAction.
func (r *ActionRepo) Create(ctx context.Context, db *sql.DB, rec domain.ActionRecord) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal action metadata: %w", err)
	}

	const q = `INSERT INTO action_records (id, action_type, subject_id, summary, metadata_json, content_hash, ledger_tx_ref, outcome, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, q,
		rec.ID,
		string(rec.Type),
		rec.SubjectID,
		rec.Summary,
		string(meta),
		rec.ContentHash,
		rec.LedgerTxRef,
		string(rec.Outcome),
		rec.Error,
		rec.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrDuplicateAction
		}
		return fmt.Errorf("create action record: %w", err)
	}
	return nil
}

// SetLedgerRef records the confirmed ledger transaction signature for an
// action. The reference transitions unset -> set exactly once; a second call
// returns ErrTxRefAlreadySet.
func (r *ActionRepo) SetLedgerRef(ctx context.Context, db *sql.DB, actionID, txRef string) error {
	const q = `UPDATE action_records SET ledger_tx_ref = ? WHERE id = ? AND ledger_tx_ref = ''`
	res, err := db.ExecContext(ctx, q, txRef, actionID)
	if err != nil {
		return fmt.Errorf("set ledger ref: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		existing, err := r.GetByID(ctx, db, actionID)
		if err != nil {
			return err
		}
		if existing.LedgerTxRef != "" {
			return domain.ErrTxRefAlreadySet
		}
		return domain.ErrActionNotFound
	}
	return nil
}

// SetOutcome finalizes a pending action's outcome. The outcome transitions
// PENDING -> SUCCESS or PENDING -> FAILED exactly once.
func (r *ActionRepo) SetOutcome(ctx context.Context, db *sql.DB, actionID string, outcome domain.Outcome, errMsg string) error {
	const q = `UPDATE action_records SET outcome = ?, error = ? WHERE id = ? AND outcome = 'PENDING'`
	res, err := db.ExecContext(ctx, q, string(outcome), errMsg, actionID)
	if err != nil {
		return fmt.Errorf("set outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, db, actionID); err != nil {
			return err
		}
		return domain.ErrOutcomeFinal
	}
	return nil
}

// GetByID retrieves an action record by id.
func (r *ActionRepo) GetByID(ctx context.Context, db *sql.DB, id string) (*domain.ActionRecord, error) {
	const q = selectActions + ` WHERE id = ?`
	return r.scanOne(db.QueryRowContext(ctx, q, id))
}

// GetByHashPrefix returns the action record whose content hash starts with
// the given prefix, or ErrActionNotFound.
func (r *ActionRepo) GetByHashPrefix(ctx context.Context, db *sql.DB, prefix string) (*domain.ActionRecord, error) {
	const q = selectActions + ` WHERE content_hash LIKE ? || '%' LIMIT 1`
	return r.scanOne(db.QueryRowContext(ctx, q, prefix))
}

// GetBySubject returns the action record for one (type, subject) pair, or
// ErrActionNotFound.
func (r *ActionRepo) GetBySubject(ctx context.Context, db *sql.DB, t domain.ActionType, subjectID string) (*domain.ActionRecord, error) {
	const q = selectActions + ` WHERE action_type = ? AND subject_id = ? LIMIT 1`
	return r.scanOne(db.QueryRowContext(ctx, q, string(t), subjectID))
}

// Delete removes an action record, freeing its (type, subject) slot so a
// failed attempt can be retried. Returns ErrActionNotFound for unknown ids.
func (r *ActionRepo) Delete(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM action_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete action record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete action record: %w", err)
	}
	if n == 0 {
		return domain.ErrActionNotFound
	}
	return nil
}

// ListRecent returns the most recent action records, newest first.
func (r *ActionRepo) ListRecent(ctx context.Context, db *sql.DB, limit int) ([]domain.ActionRecord, error) {
	const q = selectActions + ` ORDER BY created_at DESC LIMIT ?`
	rows, err := db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent actions: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// CountExternalSince counts successful externally-consequential actions
// (posts and votes) created at or after the given unix time. Internal
// bookkeeping records do not count against the daily budget.
func (r *ActionRepo) CountExternalSince(ctx context.Context, db *sql.DB, sinceUnix int64) (int, error) {
	const q = `SELECT COUNT(*) FROM action_records WHERE created_at >= ? AND outcome = 'SUCCESS' AND action_type IN (?, ?)`
	var n int
	if err := db.QueryRowContext(ctx, q, sinceUnix,
		string(domain.ActionInsightPost), string(domain.ActionProjectVote)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count external actions since: %w", err)
	}
	return n, nil
}

// CountByTypeSince counts actions of one type since the given unix time,
// broken out by outcome.
func (r *ActionRepo) CountByTypeSince(ctx context.Context, db *sql.DB, t domain.ActionType, sinceUnix int64) (succeeded, failed int, err error) {
	const q = `SELECT outcome, COUNT(*) FROM action_records WHERE action_type = ? AND created_at >= ? GROUP BY outcome`
	rows, err := db.QueryContext(ctx, q, string(t), sinceUnix)
	if err != nil {
		return 0, 0, fmt.Errorf("count actions by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return 0, 0, fmt.Errorf("scan action count: %w", err)
		}
		switch domain.Outcome(outcome) {
		case domain.OutcomeSuccess:
			succeeded = n
		case domain.OutcomeFailed:
			failed = n
		}
	}
	return succeeded, failed, rows.Err()
}

// CountLedgerCommitsSince counts actions holding a confirmed ledger reference.
func (r *ActionRepo) CountLedgerCommitsSince(ctx context.Context, db *sql.DB, sinceUnix int64) (int, error) {
	const q = `SELECT COUNT(*) FROM action_records WHERE created_at >= ? AND ledger_tx_ref != ''`
	var n int
	if err := db.QueryRowContext(ctx, q, sinceUnix).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger commits: %w", err)
	}
	return n, nil
}

// RecentSummaries returns summaries of successful actions of one type within
// the window, newest first. Used for novelty checks against recent posts.
func (r *ActionRepo) RecentSummaries(ctx context.Context, db *sql.DB, t domain.ActionType, sinceUnix int64) ([]string, error) {
	const q = `SELECT summary FROM action_records
WHERE action_type = ? AND created_at >= ? AND outcome = 'SUCCESS'
ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, q, string(t), sinceUnix)
	if err != nil {
		return nil, fmt.Errorf("list recent summaries: %w", err)
	}
	defer rows.Close()

	var summaries []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// LastActionAt returns the created_at of the most recent successful action of
// the given type, or zero when none exists.
func (r *ActionRepo) LastActionAt(ctx context.Context, db *sql.DB, t domain.ActionType) (int64, error) {
	const q = `SELECT COALESCE(MAX(created_at), 0) FROM action_records WHERE action_type = ? AND outcome = 'SUCCESS'`
	var at int64
	if err := db.QueryRowContext(ctx, q, string(t)).Scan(&at); err != nil {
		return 0, fmt.Errorf("last action at: %w", err)
	}
	return at, nil
}

const selectActions = `SELECT id, action_type, subject_id, summary, metadata_json, content_hash, ledger_tx_ref, outcome, error, created_at
FROM action_records`

func (r *ActionRepo) scanOne(row *sql.Row) (*domain.ActionRecord, error) {
	var rec domain.ActionRecord
	var actionType, outcome, metaJSON string
	err := row.Scan(&rec.ID, &actionType, &rec.SubjectID, &rec.Summary, &metaJSON,
		&rec.ContentHash, &rec.LedgerTxRef, &outcome, &rec.Error, &rec.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrActionNotFound
		}
		return nil, fmt.Errorf("get action record: %w", err)
	}
	rec.Type = domain.ActionType(actionType)
	rec.Outcome = domain.Outcome(outcome)
	if err := json.Unmarshal([]byte(metaJSON), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal action metadata: %w", err)
	}
	return &rec, nil
}

func (r *ActionRepo) scanAll(rows *sql.Rows) ([]domain.ActionRecord, error) {
	var records []domain.ActionRecord
	for rows.Next() {
		var rec domain.ActionRecord
		var actionType, outcome, metaJSON string
		if err := rows.Scan(&rec.ID, &actionType, &rec.SubjectID, &rec.Summary, &metaJSON,
			&rec.ContentHash, &rec.LedgerTxRef, &outcome, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action record: %w", err)
		}
		rec.Type = domain.ActionType(actionType)
		rec.Outcome = domain.Outcome(outcome)
		if err := json.Unmarshal([]byte(metaJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal action metadata: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
