package gate

import (
	"testing"
	"time"

	"github.com/agentpulse/engine/internal/domain"
)

func passingContext() InsightContext {
	return InsightContext{
		Candidate: domain.InsightCandidate{
			Title:          "Validator economics are shifting toward restaking",
			Body:           makeBody(300),
			Topic:          "ecosystem_growth",
			RelevanceScore: 0.85,
			SourceCount:    5,
			Actionable:     true,
		},
		RecentTitles: []string{"Fee markets under congestion"},
		LastPostAt:   time.Now().Add(-2 * time.Hour).Unix(),
		ActionsToday: 1,
		Strategy: domain.StrategyParams{
			PostingTone:     "analytical",
			InsightFocus:    "ecosystem_growth",
			MinQualityScore: 6,
			MaxDailyActions: 5,
			OptimalHour:     14,
		},
		NoveltyCutoff: 0.8,
		MinPostGapSec: 3600,
		Now:           time.Now(),
	}
}

func makeBody(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

func TestInsightGate_AllPass(t *testing.T) {
	g := NewInsightGate(6)
	dec := g.Evaluate(passingContext())

	if dec.Decision != domain.DecisionAct {
		t.Fatalf("decision = %s, want ACT", dec.Decision)
	}
	if dec.Passed != len(g.Checks) {
		t.Errorf("passed = %d, want %d", dec.Passed, len(g.Checks))
	}
	if dec.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", dec.Confidence)
	}
}

func TestInsightGate_ExactThresholdActs(t *testing.T) {
	// Fail exactly two of eight checks; six passes meets the threshold.
	ictx := passingContext()
	ictx.Candidate.Actionable = false
	ictx.Candidate.RelevanceScore = 0.2

	dec := NewInsightGate(6).Evaluate(ictx)
	if dec.Passed != 6 {
		t.Fatalf("passed = %d, want 6", dec.Passed)
	}
	if dec.Decision != domain.DecisionAct {
		t.Errorf("decision = %s, want ACT at exact threshold", dec.Decision)
	}
}

func TestInsightGate_OneBelowThresholdSkips(t *testing.T) {
	ictx := passingContext()
	ictx.Candidate.Actionable = false
	ictx.Candidate.RelevanceScore = 0.2
	ictx.Candidate.SourceCount = 1

	dec := NewInsightGate(6).Evaluate(ictx)
	if dec.Passed != 5 {
		t.Fatalf("passed = %d, want 5", dec.Passed)
	}
	if dec.Decision != domain.DecisionSkip {
		t.Errorf("decision = %s, want SKIP one below threshold", dec.Decision)
	}
}

func TestInsightGate_TraceCoversEveryCheck(t *testing.T) {
	ictx := passingContext()
	ictx.Candidate.SourceCount = 0

	dec := NewInsightGate(6).Evaluate(ictx)
	if len(dec.Checks) != len(Checklist()) {
		t.Fatalf("trace has %d entries, want %d", len(dec.Checks), len(Checklist()))
	}
	for _, c := range dec.Checks {
		if c.Rationale == "" {
			t.Errorf("check %s has no rationale", c.Name)
		}
	}
}

func TestChecklist_NoveltyRejectsNearDuplicate(t *testing.T) {
	ictx := passingContext()
	ictx.Candidate.Title = "Validator economics are shifting toward restaking today"
	ictx.RecentTitles = []string{"Validator economics are shifting toward restaking"}

	if passed, _ := findCheck(t, "novelty").Eval(ictx); passed {
		t.Error("novelty passed for a near-duplicate title")
	}
}

func TestChecklist_NoveltyAcceptsDistinctTitle(t *testing.T) {
	ictx := passingContext()
	ictx.RecentTitles = []string{"MEV extraction trends in the last epoch"}

	if passed, rationale := findCheck(t, "novelty").Eval(ictx); !passed {
		t.Errorf("novelty failed for a distinct title: %s", rationale)
	}
}

func TestChecklist_PostGap(t *testing.T) {
	ictx := passingContext()
	ictx.LastPostAt = ictx.Now.Add(-10 * time.Minute).Unix()

	if passed, _ := findCheck(t, "post_gap").Eval(ictx); passed {
		t.Error("post_gap passed 10 minutes after the last post")
	}

	ictx.LastPostAt = 0
	if passed, _ := findCheck(t, "post_gap").Eval(ictx); !passed {
		t.Error("post_gap failed with no prior post")
	}
}

func TestChecklist_DailyCapBoundary(t *testing.T) {
	ictx := passingContext()
	ictx.ActionsToday = ictx.Strategy.MaxDailyActions

	if passed, _ := findCheck(t, "daily_cap").Eval(ictx); passed {
		t.Error("daily_cap passed at the cap")
	}

	ictx.ActionsToday = ictx.Strategy.MaxDailyActions - 1
	if passed, _ := findCheck(t, "daily_cap").Eval(ictx); !passed {
		t.Error("daily_cap failed one below the cap")
	}
}

func TestChecklist_FocusMatch(t *testing.T) {
	ictx := passingContext()
	ictx.Candidate.Topic = "defi"

	if passed, _ := findCheck(t, "focus_match").Eval(ictx); passed {
		t.Error("focus_match passed for an off-focus topic")
	}
}

func TestChecklist_LengthBounds(t *testing.T) {
	for _, tc := range []struct {
		n    int
		want bool
	}{
		{79, false},
		{80, true},
		{2000, true},
		{2001, false},
	} {
		ictx := passingContext()
		ictx.Candidate.Body = makeBody(tc.n)
		if passed, _ := findCheck(t, "length_bounds").Eval(ictx); passed != tc.want {
			t.Errorf("length_bounds(%d chars) = %v, want %v", tc.n, passed, tc.want)
		}
	}
}

func TestJaccard(t *testing.T) {
	for _, tc := range []struct {
		a, b string
		want float64
	}{
		{"solana fee markets", "solana fee markets", 1},
		{"alpha beta gamma", "delta epsilon zeta", 0},
		{"Solana Fee Markets", "solana fee markets!", 1},
	} {
		if got := jaccard(tc.a, tc.b); got != tc.want {
			t.Errorf("jaccard(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func findCheck(t *testing.T, name string) Check {
	t.Helper()
	for _, c := range Checklist() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no check named %s", name)
	return Check{}
}

func TestChecklist_MatchesDeclaredSize(t *testing.T) {
	if got := len(Checklist()); got != domain.ChecklistSize {
		t.Errorf("checklist has %d checks, want %d", got, domain.ChecklistSize)
	}
}
