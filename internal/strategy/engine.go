package strategy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentpulse/engine/internal/domain"
	"github.com/agentpulse/engine/internal/reasoning"
	"github.com/agentpulse/engine/internal/store"
)

// metricsWindow is the trailing window over which outcomes are aggregated.
const metricsWindow = 7 * 24 * time.Hour

// historyCap bounds the in-memory adaptation history returned to callers.
const historyCap = 20

// Completer is the external reasoning capability used for recommendations.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// CycleResult reports one adaptation cycle.
type CycleResult struct {
	Snapshot    domain.MetricsSnapshot
	Summary     string
	Applied     bool
	FromVersion int
	ToVersion   int
	Changes     []domain.ParameterChange
	Dropped     int
}

// Engine closes the loop between observed outcomes and the parameters the
// decision gates consume.
type Engine struct {
	Store     *Store
	Completer Completer
	DB        *sql.DB
	Actions   *store.ActionRepo
	Evals     *store.EvaluationRepo
	Logger    *slog.Logger
}

// recommendation is the structured shape expected from the reasoning
// capability. suggested_value stays untyped until validated.
type recommendation struct {
	Summary string `json:"summary"`
	Changes []struct {
		Parameter      string `json:"parameter"`
		SuggestedValue any    `json:"suggested_value"`
		Reason         string `json:"reason"`
	} `json:"changes"`
}

const recommendSystem = `You tune the decision parameters of an autonomous ecosystem agent.
Respond with a JSON object: {"summary": "...", "changes": [{"parameter": "...", "suggested_value": ..., "reason": "..."}]}.
Mutable parameters: postingTone, insightFocus, minQualityScore, maxDailyActions, optimalHour.
Suggest no change when the metrics do not justify one.`

// RunCycle gathers a metrics snapshot, requests a tuning recommendation,
// validates every tuple against the parameter allow-list and domains, and
// applies the survivors atomically. Invalid tuples are dropped and logged,
// never applied. A cycle with zero surviving tuples leaves the strategy
// untouched.
func (e *Engine) RunCycle(ctx context.Context) (*CycleResult, error) {
	now := time.Now()
	snapshot, err := e.gatherMetrics(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	current := e.Store.Current()
	result := &CycleResult{
		Snapshot:    snapshot,
		FromVersion: current.Version,
		ToVersion:   current.Version,
	}

	rec, err := e.recommend(ctx, current, snapshot)
	if err != nil {
		// A failed or unparseable recommendation means no change this
		// cycle, not a failed cycle.
		e.Logger.Warn("recommendation unavailable", "error", err)
		result.Summary = "recommendation unavailable; strategy unchanged"
		return result, nil
	}
	result.Summary = rec.Summary

	params := current.Params
	var changes []domain.ParameterChange
	for _, c := range rec.Changes {
		change, next, err := ValidateChange(params, c.Parameter, c.SuggestedValue)
		if err != nil {
			result.Dropped++
			e.Logger.Warn("dropped recommendation tuple",
				"parameter", c.Parameter,
				"value", fmt.Sprintf("%v", c.SuggestedValue),
				"domain", describeDomain(c.Parameter),
				"error", err)
			continue
		}
		if change.OldValue == change.NewValue {
			continue
		}
		change.Reason = c.Reason
		changes = append(changes, change)
		params = next
	}

	if len(changes) == 0 {
		return result, nil
	}

	metricsJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal metrics snapshot: %w", err)
	}

	next := domain.Strategy{
		Version:       current.Version + 1,
		Params:        params,
		LastAdaptedAt: now.Unix(),
	}
	adaptRec := domain.AdaptationRecord{
		ID:               uuid.NewString(),
		FromVersion:      current.Version,
		ToVersion:        next.Version,
		Changes:          changes,
		MetricsJSON:      string(metricsJSON),
		PerformanceScore: performanceScore(snapshot),
		CreatedAt:        now.Unix(),
	}

	if err := e.Store.apply(ctx, next, adaptRec); err != nil {
		return nil, fmt.Errorf("apply strategy: %w", err)
	}

	result.Applied = true
	result.ToVersion = next.Version
	result.Changes = changes
	e.Logger.Info("strategy adapted",
		"from_version", current.Version,
		"to_version", next.Version,
		"changes", len(changes),
		"dropped", result.Dropped)
	return result, nil
}

// History returns the capped in-memory view of recent adaptations.
func (e *Engine) History(ctx context.Context) ([]domain.AdaptationRecord, error) {
	return e.Store.History(ctx, historyCap)
}

// Metrics returns the trailing-window outcome snapshot. The snapshot loop
// reads the same aggregation the adaptation cycle feeds to the recommender.
func (e *Engine) Metrics(ctx context.Context, now time.Time) (domain.MetricsSnapshot, error) {
	return e.gatherMetrics(ctx, now)
}

func (e *Engine) gatherMetrics(ctx context.Context, now time.Time) (domain.MetricsSnapshot, error) {
	since := now.Add(-metricsWindow).Unix()
	snap := domain.MetricsSnapshot{WindowStart: since, WindowEnd: now.Unix()}

	posts, postsFailed, err := e.Actions.CountByTypeSince(ctx, e.DB, domain.ActionInsightPost, since)
	if err != nil {
		return snap, err
	}
	votes, votesFailed, err := e.Actions.CountByTypeSince(ctx, e.DB, domain.ActionProjectVote, since)
	if err != nil {
		return snap, err
	}
	commits, err := e.Actions.CountLedgerCommitsSince(ctx, e.DB, since)
	if err != nil {
		return snap, err
	}
	avgScore, err := e.Evals.AvgFinalScoreSince(ctx, e.DB, since)
	if err != nil {
		return snap, err
	}

	snap.PostsPublished = posts
	snap.VotesCast = votes
	snap.ActionsFailed = postsFailed + votesFailed
	snap.LedgerCommits = commits
	snap.AvgFinalScore = avgScore
	return snap, nil
}

func (e *Engine) recommend(ctx context.Context, current domain.Strategy, snap domain.MetricsSnapshot) (*recommendation, error) {
	prompt := fmt.Sprintf(`Current strategy (version %d):
  postingTone: %s
  insightFocus: %s
  minQualityScore: %d (valid 4-8)
  maxDailyActions: %d (valid 2-8)
  optimalHour: %d (valid 0-23)

Outcomes over the trailing 7 days:
  insight posts published: %d
  project votes cast: %d
  actions failed: %d
  ledger commitments: %d
  average evaluation score: %.2f`,
		current.Version,
		current.Params.PostingTone,
		current.Params.InsightFocus,
		current.Params.MinQualityScore,
		current.Params.MaxDailyActions,
		current.Params.OptimalHour,
		snap.PostsPublished,
		snap.VotesCast,
		snap.ActionsFailed,
		snap.LedgerCommits,
		snap.AvgFinalScore)

	text, err := e.Completer.Complete(ctx, recommendSystem, prompt)
	if err != nil {
		return nil, err
	}

	var rec recommendation
	if err := reasoning.ExtractJSON(text, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// performanceScore condenses a snapshot into a 0-1 health signal stored
// with the adaptation record.
func performanceScore(snap domain.MetricsSnapshot) float64 {
	attempted := snap.PostsPublished + snap.VotesCast + snap.ActionsFailed
	if attempted == 0 {
		return 0
	}
	successRatio := float64(snap.PostsPublished+snap.VotesCast) / float64(attempted)
	return 0.7*successRatio + 0.3*(snap.AvgFinalScore/10)
}
