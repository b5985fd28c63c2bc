package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentpulse/engine/internal/domain"
)

// RunVoteCycle scores every unacted project against the live threshold and
// casts votes for those the scorer accepts. Subjects already acted on are
// permanently excluded; the daily budget is re-checked before each vote.
func (a *Agent) RunVoteCycle(ctx context.Context) error {
	projects, err := a.cachedProjects(ctx)
	if err != nil {
		a.recordFailure(ctx, domain.ActionProjectVote, "fetch projects for vote cycle", err)
		return fmt.Errorf("vote cycle projects: %w", err)
	}

	var firstErr error
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, err := a.Evals.State(ctx, a.DB, p.ID)
		if err != nil {
			a.Logger.Error("read subject state", "project", p.ID, "error", err)
			continue
		}
		if state == domain.SubjectActed {
			continue
		}

		// The threshold is read fresh for every subject so an adaptation
		// applied mid-cycle governs the next decision, not a stale copy.
		params := a.Strategy.Current().Params
		eval := a.Scorer.Score(ctx, p, float64(params.MinQualityScore))
		if err := a.Evals.Upsert(ctx, a.DB, eval); err != nil {
			a.Logger.Error("persist evaluation", "project", p.ID, "error", err)
			continue
		}

		if eval.Decision != domain.DecisionAct {
			a.Logger.Info("project below threshold",
				"project", p.ID,
				"final", eval.FinalScore,
				"threshold", params.MinQualityScore)
			continue
		}

		if err := a.Governor.Admit(ctx, a.now(), params.MaxDailyActions); err != nil {
			if errors.Is(err, domain.ErrDailyCapReached) {
				a.Logger.Info("vote cycle halted", "reason", err)
				return nil
			}
			return err
		}

		if err := a.castVote(ctx, p, eval); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// castVote executes one vote end to end: audit record, external call,
// acted-state transition, ledger proof.
func (a *Agent) castVote(ctx context.Context, p domain.Project, eval domain.Evaluation) error {
	summary := fmt.Sprintf("vote %s for %s (score %s)", eval.Decision, p.Name, formatScore(eval.FinalScore))
	meta := map[string]string{
		"score":      formatScore(eval.FinalScore),
		"objective":  formatScore(eval.ObjectiveScore),
		"model":      formatScore(eval.ModelScore),
		"reasoning":  eval.Reasoning,
		"vote_type":  "quality",
		"confidence": formatScore(eval.ModelScore / 10),
	}

	rec, err := a.newRecord(ctx, domain.ActionProjectVote, p.ID, summary, meta)
	if errors.Is(err, domain.ErrDuplicateAction) {
		prior, getErr := a.Actions.GetBySubject(ctx, a.DB, domain.ActionProjectVote, p.ID)
		if getErr != nil {
			return fmt.Errorf("inspect prior vote record for %s: %w", p.ID, getErr)
		}
		if prior.Outcome == domain.OutcomeSuccess {
			// A concurrent or retried iteration already voted; make the
			// exclusion durable and move on.
			a.Logger.Warn("duplicate vote suppressed", "project", p.ID)
			return a.Evals.MarkActed(ctx, a.DB, p.ID)
		}
		// The earlier attempt never went through. Clear its record so
		// this cycle can vote.
		if delErr := a.Actions.Delete(ctx, a.DB, prior.ID); delErr != nil {
			return fmt.Errorf("clear failed vote record for %s: %w", p.ID, delErr)
		}
		a.Logger.Info("retrying vote after earlier failure", "project", p.ID)
		rec, err = a.newRecord(ctx, domain.ActionProjectVote, p.ID, summary, meta)
	}
	if err != nil {
		return fmt.Errorf("record vote action: %w", err)
	}

	if err := a.Eco.CastVote(ctx, p.ID, eval.FinalScore, eval.Reasoning); err != nil {
		a.finishFailed(ctx, rec, err)
		return fmt.Errorf("cast vote for %s: %w", p.ID, err)
	}

	if err := a.Evals.MarkActed(ctx, a.DB, p.ID); err != nil {
		a.Logger.Error("mark subject acted", "project", p.ID, "error", err)
	}
	a.Logger.Info("vote cast", "project", p.ID, "score", eval.FinalScore)
	a.finishSuccess(ctx, rec)
	return nil
}
