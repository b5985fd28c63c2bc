// Package agent contains the loop bodies: data refresh, insight publication,
// project voting, strategy adaptation, and the periodic metrics snapshot.
// Every consequential action flows through the same path: decide, execute,
// persist an action record, then best-effort commit a proof to the ledger.
package agent

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/agentpulse/engine/internal/domain"
	"github.com/agentpulse/engine/internal/ecosystem"
	"github.com/agentpulse/engine/internal/gate"
	"github.com/agentpulse/engine/internal/ledger"
	"github.com/agentpulse/engine/internal/store"
	"github.com/agentpulse/engine/internal/strategy"
)

// noveltyWindow bounds how far back recent post titles are considered when
// judging a candidate insight for duplication.
const noveltyWindow = 7 * 24 * time.Hour

// maxSummaryChars caps the persisted action summary.
const maxSummaryChars = 500

// Ecosystem is the slice of the ecosystem client the loops use.
type Ecosystem interface {
	ListProjects(ctx context.Context, pageSize int) ([]domain.Project, error)
	RecentPosts(ctx context.Context, limit int) ([]ecosystem.Post, error)
	PublishPost(ctx context.Context, title, body string) (string, error)
	CastVote(ctx context.Context, projectID string, score float64, rationale string) error
}

// Ledger is the write half of the ledger client. A nil Ledger disables
// proof commitment without touching any other behavior.
type Ledger interface {
	SendMemo(ctx context.Context, memo string) (string, error)
}

// Completer produces text from the reasoning capability.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Config carries the gate tunables the agent reads each cycle.
type Config struct {
	Namespace     string
	NoveltyCutoff float64
	MinPostGapSec int
}

// Agent wires the decision gates, the strategy store, the local audit
// store, and the external collaborators into the five loop bodies.
type Agent struct {
	DB        *sql.DB
	Actions   *store.ActionRepo
	Evals     *store.EvaluationRepo
	Strategy  *strategy.Store
	Adapter   *strategy.Engine
	Gate      *gate.InsightGate
	Scorer    *gate.ProjectScorer
	Governor  *gate.ActionGovernor
	Eco       Ecosystem
	Ledger    Ledger
	Completer Completer
	Config    Config
	Logger    *slog.Logger

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time

	mu       sync.RWMutex
	projects []domain.Project
	posts    []ecosystem.Post
}

func (a *Agent) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// RefreshData pulls the current project listing and the recent public feed
// into the in-memory cache the decision loops read.
func (a *Agent) RefreshData(ctx context.Context) error {
	projects, err := a.Eco.ListProjects(ctx, 50)
	if err != nil {
		return fmt.Errorf("refresh projects: %w", err)
	}
	posts, err := a.Eco.RecentPosts(ctx, 50)
	if err != nil {
		return fmt.Errorf("refresh posts: %w", err)
	}

	a.mu.Lock()
	a.projects = projects
	a.posts = posts
	a.mu.Unlock()

	a.Logger.Info("ecosystem data refreshed", "projects", len(projects), "posts", len(posts))
	return nil
}

// cachedProjects falls back to a direct fetch when the refresh loop has not
// populated the cache yet.
func (a *Agent) cachedProjects(ctx context.Context) ([]domain.Project, error) {
	a.mu.RLock()
	cached := a.projects
	a.mu.RUnlock()
	if len(cached) > 0 {
		return cached, nil
	}
	return a.Eco.ListProjects(ctx, 50)
}

func (a *Agent) cachedPosts() []ecosystem.Post {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.posts
}

// commitLedger writes the action's proof payload to the ledger and records
// the transaction reference. Every failure is logged and swallowed: ledger
// commitment is an auditability enhancement, never a precondition.
func (a *Agent) commitLedger(ctx context.Context, rec domain.ActionRecord) {
	if a.Ledger == nil {
		return
	}
	memo, err := ledger.EncodePayload(a.Config.Namespace, rec)
	if err != nil {
		a.Logger.Warn("ledger payload rejected", "action", rec.ID, "error", err)
		return
	}
	sig, err := a.Ledger.SendMemo(ctx, memo)
	if err != nil {
		a.Logger.Warn("ledger commit failed, action stands without proof", "action", rec.ID, "error", err)
		return
	}
	if err := a.Actions.SetLedgerRef(ctx, a.DB, rec.ID, sig); err != nil {
		a.Logger.Warn("record ledger ref", "action", rec.ID, "tx", sig, "error", err)
		return
	}
	a.Logger.Info("action committed to ledger", "action", rec.ID, "tx", sig)
}

// newRecord builds an action record with its content hash, persists it as
// PENDING, and returns it.
func (a *Agent) newRecord(ctx context.Context, t domain.ActionType, subjectID, summary string, meta map[string]string) (domain.ActionRecord, error) {
	rec := domain.ActionRecord{
		ID:        uuid.NewString(),
		Type:      t,
		SubjectID: subjectID,
		Summary:   truncate(summary, maxSummaryChars),
		Metadata:  meta,
		Outcome:   domain.OutcomePending,
		CreatedAt: a.now().Unix(),
	}
	rec.ContentHash = ledger.HashAction(rec)
	if err := a.Actions.Create(ctx, a.DB, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// finishSuccess finalizes the record and commits its proof.
func (a *Agent) finishSuccess(ctx context.Context, rec domain.ActionRecord) {
	if err := a.Actions.SetOutcome(ctx, a.DB, rec.ID, domain.OutcomeSuccess, ""); err != nil {
		a.Logger.Error("finalize action", "action", rec.ID, "error", err)
		return
	}
	rec.Outcome = domain.OutcomeSuccess
	a.commitLedger(ctx, rec)
}

// finishFailed finalizes the record as FAILED with the cause.
func (a *Agent) finishFailed(ctx context.Context, rec domain.ActionRecord, cause error) {
	if err := a.Actions.SetOutcome(ctx, a.DB, rec.ID, domain.OutcomeFailed, cause.Error()); err != nil {
		a.Logger.Error("finalize failed action", "action", rec.ID, "error", err)
	}
}

// recordFailure persists a FAILED record for a cycle that broke before any
// action record existed, so operator-visible failures live in the audit
// trail rather than only in logs.
func (a *Agent) recordFailure(ctx context.Context, t domain.ActionType, summary string, cause error) {
	rec := domain.ActionRecord{
		ID:        uuid.NewString(),
		Type:      t,
		Summary:   truncate(summary, maxSummaryChars),
		Outcome:   domain.OutcomeFailed,
		Error:     cause.Error(),
		CreatedAt: a.now().Unix(),
	}
	rec.ContentHash = ledger.HashAction(rec)
	if err := a.Actions.Create(ctx, a.DB, rec); err != nil {
		a.Logger.Error("record cycle failure", "type", t, "error", err)
	}
}

// truncate shortens s to at most n bytes without splitting a UTF-8 rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
