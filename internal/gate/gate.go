package gate

import (
	"github.com/agentpulse/engine/internal/domain"
)

// InsightGate decides whether a candidate insight may be published.
// A candidate passes when at least PassCount of the checklist checks hold.
type InsightGate struct {
	PassCount int
	Checks    []Check
}

// NewInsightGate builds a gate over the standard checklist.
func NewInsightGate(passCount int) *InsightGate {
	return &InsightGate{PassCount: passCount, Checks: Checklist()}
}

// Evaluate runs every check and returns the full trace. Evaluation never
// short-circuits so that SKIP decisions carry the complete rationale.
func (g *InsightGate) Evaluate(ictx InsightContext) domain.GateDecision {
	dec := domain.GateDecision{
		Required: g.PassCount,
		Checks:   make([]domain.CheckResult, 0, len(g.Checks)),
	}
	for _, check := range g.Checks {
		passed, rationale := check.Eval(ictx)
		if passed {
			dec.Passed++
		}
		dec.Checks = append(dec.Checks, domain.CheckResult{
			Name:      check.Name,
			Passed:    passed,
			Rationale: rationale,
		})
	}

	if dec.Passed >= dec.Required {
		dec.Decision = domain.DecisionAct
	} else {
		dec.Decision = domain.DecisionSkip
	}
	dec.Confidence = float64(dec.Passed) / float64(len(g.Checks))
	return dec
}
