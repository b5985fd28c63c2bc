package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agentpulse/engine/internal/domain"
)

// EvaluationRepo handles persistence for Evaluation entries.
// Evaluations are keyed by subject id: re-evaluating a subject overwrites
// its prior row rather than accumulating duplicates.
type EvaluationRepo struct{}

// Upsert inserts or replaces the evaluation for a subject. A subject already
// in the acted state is never downgraded; the upsert preserves acted.
func (r *EvaluationRepo) Upsert(ctx context.Context, db *sql.DB, ev domain.Evaluation) error {
	const q = `INSERT INTO evaluations (subject_id, subject_name, objective_score, model_score, final_score, innovation, effort, potential, ecosystem_fit, reasoning, decision, state, evaluated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(subject_id) DO UPDATE SET
	subject_name    = excluded.subject_name,
	objective_score = excluded.objective_score,
	model_score     = excluded.model_score,
	final_score     = excluded.final_score,
	innovation      = excluded.innovation,
	effort          = excluded.effort,
	potential       = excluded.potential,
	ecosystem_fit   = excluded.ecosystem_fit,
	reasoning       = excluded.reasoning,
	decision        = excluded.decision,
	state           = CASE WHEN evaluations.state = 'acted' THEN 'acted' ELSE excluded.state END,
	evaluated_at    = excluded.evaluated_at`
	_, err := db.ExecContext(ctx, q,
		ev.SubjectID,
		ev.SubjectName,
		ev.ObjectiveScore,
		ev.ModelScore,
		ev.FinalScore,
		ev.Breakdown.Innovation,
		ev.Breakdown.Effort,
		ev.Breakdown.Potential,
		ev.Breakdown.EcosystemFit,
		ev.Reasoning,
		string(ev.Decision),
		string(ev.State),
		ev.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert evaluation: %w", err)
	}
	return nil
}

// MarkActed transitions a subject to the acted state. Subjects in acted are
// permanently excluded from future evaluation passes.
func (r *EvaluationRepo) MarkActed(ctx context.Context, db *sql.DB, subjectID string) error {
	const q = `UPDATE evaluations SET state = 'acted' WHERE subject_id = ?`
	res, err := db.ExecContext(ctx, q, subjectID)
	if err != nil {
		return fmt.Errorf("mark acted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrEvaluationMissing
	}
	return nil
}

// GetBySubject retrieves the evaluation for a subject.
func (r *EvaluationRepo) GetBySubject(ctx context.Context, db *sql.DB, subjectID string) (*domain.Evaluation, error) {
	const q = selectEvaluations + ` WHERE subject_id = ?`
	row := db.QueryRowContext(ctx, q, subjectID)

	ev, err := scanEvaluation(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrEvaluationMissing
		}
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	return ev, nil
}

// State returns the lifecycle state for a subject, or unevaluated when no
// evaluation exists.
func (r *EvaluationRepo) State(ctx context.Context, db *sql.DB, subjectID string) (domain.SubjectState, error) {
	const q = `SELECT state FROM evaluations WHERE subject_id = ?`
	var state string
	err := db.QueryRowContext(ctx, q, subjectID).Scan(&state)
	if err == sql.ErrNoRows {
		return domain.SubjectUnevaluated, nil
	}
	if err != nil {
		return "", fmt.Errorf("get subject state: %w", err)
	}
	return domain.SubjectState(state), nil
}

// ListDecided returns evaluations with the given decision, newest first.
func (r *EvaluationRepo) ListDecided(ctx context.Context, db *sql.DB, decision domain.Decision, limit int) ([]domain.Evaluation, error) {
	const q = selectEvaluations + ` WHERE decision = ? ORDER BY evaluated_at DESC LIMIT ?`
	rows, err := db.QueryContext(ctx, q, string(decision), limit)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var evals []domain.Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		evals = append(evals, *ev)
	}
	return evals, rows.Err()
}

// AvgFinalScoreSince returns the mean final score over evaluations in the window.
func (r *EvaluationRepo) AvgFinalScoreSince(ctx context.Context, db *sql.DB, sinceUnix int64) (float64, error) {
	const q = `SELECT COALESCE(AVG(final_score), 0) FROM evaluations WHERE evaluated_at >= ?`
	var avg float64
	if err := db.QueryRowContext(ctx, q, sinceUnix).Scan(&avg); err != nil {
		return 0, fmt.Errorf("avg final score: %w", err)
	}
	return avg, nil
}

const selectEvaluations = `SELECT subject_id, subject_name, objective_score, model_score, final_score, innovation, effort, potential, ecosystem_fit, reasoning, decision, state, evaluated_at
FROM evaluations`

func scanEvaluation(scan func(dest ...any) error) (*domain.Evaluation, error) {
	var ev domain.Evaluation
	var decision, state string
	err := scan(&ev.SubjectID, &ev.SubjectName, &ev.ObjectiveScore, &ev.ModelScore, &ev.FinalScore,
		&ev.Breakdown.Innovation, &ev.Breakdown.Effort, &ev.Breakdown.Potential, &ev.Breakdown.EcosystemFit,
		&ev.Reasoning, &decision, &state, &ev.EvaluatedAt)
	if err != nil {
		return nil, err
	}
	ev.Decision = domain.Decision(decision)
	ev.State = domain.SubjectState(state)
	return &ev, nil
}
