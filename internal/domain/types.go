// Package domain defines the core types for the AgentPulse engine.
package domain

import "time"

// ActionType classifies an autonomous action.
type ActionType string

const (
	ActionInsightPost        ActionType = "insight_post"
	ActionProjectVote        ActionType = "project_vote"
	ActionStrategyAdaptation ActionType = "strategy_adaptation"
	ActionSnapshot           ActionType = "snapshot"
)

// Outcome is the terminal status of an action.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
	OutcomePending Outcome = "PENDING"
)

// ActionRecord is the persisted audit entry for one autonomous action.
// Immutable once created except LedgerTxRef and Outcome, which each
// transition at most once from unset to set.
type ActionRecord struct {
	ID          string
	Type        ActionType
	SubjectID   string // candidate/project id the action was taken against; empty for snapshots
	Summary     string // capped at 500 chars
	Metadata    map[string]string
	ContentHash string
	LedgerTxRef string // transaction signature; empty until a ledger write confirms
	Outcome     Outcome
	Error       string // set when Outcome is FAILED
	CreatedAt   int64
}

// Decision is the verdict of a Decision Gate pass.
type Decision string

const (
	DecisionAct  Decision = "ACT"
	DecisionSkip Decision = "SKIP"
)

// SubjectState tracks where a subject sits in the evaluation lifecycle.
type SubjectState string

const (
	SubjectUnevaluated SubjectState = "unevaluated"
	SubjectEvaluated   SubjectState = "evaluated"
	SubjectActed       SubjectState = "acted"
)

// ScoreBreakdown holds the four model-derived sub-dimension scores (1-10 each).
type ScoreBreakdown struct {
	Innovation   int
	Effort       int
	Potential    int
	EcosystemFit int
}

// Evaluation is one scoring pass over a subject. Keyed by SubjectID;
// re-evaluating a subject replaces its prior Evaluation.
type Evaluation struct {
	SubjectID      string
	SubjectName    string
	ObjectiveScore float64 // 0-10, structural completeness
	ModelScore     float64 // 0-10, averaged sub-dimensions
	FinalScore     float64 // 0.4*objective + 0.6*model by default
	Breakdown      ScoreBreakdown
	Reasoning      string
	Decision       Decision
	State          SubjectState
	EvaluatedAt    int64
}

// StrategyParams are the adaptive decision parameters read by the gates.
type StrategyParams struct {
	PostingTone     string
	InsightFocus    string
	MinQualityScore int // vote threshold, valid range [4, 8]
	MaxDailyActions int // valid range [2, 8]
	OptimalHour     int // UTC hour for insight posts, valid range [0, 23]
}

// Strategy is the versioned live parameter set. Exactly one live Strategy
// exists per process; version strictly increases with each adaptation.
type Strategy struct {
	Version       int
	Params        StrategyParams
	LastAdaptedAt int64
}

// ParameterChange records one validated parameter mutation.
type ParameterChange struct {
	Name     string
	OldValue string
	NewValue string
	Reason   string
}

// AdaptationRecord captures one adaptation cycle that applied at least one change.
type AdaptationRecord struct {
	ID               string
	FromVersion      int
	ToVersion        int
	Changes          []ParameterChange
	MetricsJSON      string
	PerformanceScore float64
	CreatedAt        int64
}

// MetricsSnapshot aggregates observed outcomes over a trailing window.
type MetricsSnapshot struct {
	WindowStart     int64
	WindowEnd       int64
	PostsPublished  int
	VotesCast       int
	ActionsFailed   int
	LedgerCommits   int
	AvgFinalScore   float64
	EngagementTotal int
}

// Proof is a read-only reconstruction of an on-ledger action commitment.
// Verified is true iff a matching ledger transaction exists.
type Proof struct {
	TxSignature   string
	HashPrefix    string
	DeclaredType  ActionType
	DeclaredText  string
	Timestamp     int64
	FullReasoning string // joined from the local ActionRecord by hash prefix
	ActionID      string
	Verified      bool
}

// Project is a candidate subject fetched from the ecosystem API.
type Project struct {
	ID          string
	Name        string
	Description string
	RepoLink    string
	DemoLink    string
	VideoLink   string
	UpdatedAt   time.Time
}

// InsightCandidate is a draft insight considered for publication.
type InsightCandidate struct {
	Title          string
	Body           string
	Topic          string
	RelevanceScore float64 // 0-1, topical relevance
	SourceCount    int     // number of data points backing the insight
	Actionable     bool    // carries a concrete recommendation
}

// ChecklistSize is the number of checks the publication checklist runs.
// The pass threshold configured for the gate is bounded by this.
const ChecklistSize = 8

// CheckResult is one named predicate outcome within a gating checklist.
type CheckResult struct {
	Name      string
	Passed    bool
	Rationale string
}

// GateDecision is the aggregate outcome of a checklist pass.
type GateDecision struct {
	Decision   Decision
	Passed     int
	Required   int
	Checks     []CheckResult
	Confidence float64
}
