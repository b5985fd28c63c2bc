// Package gate implements the decision gates: checklist gating for insight
// publication and weighted hybrid scoring for project votes.
package gate

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentpulse/engine/internal/domain"
)

// InsightContext is everything the checklist needs to judge one candidate.
type InsightContext struct {
	Candidate     domain.InsightCandidate
	RecentTitles  []string // successful post summaries within the novelty window
	LastPostAt    int64    // unix time of the most recent successful post, 0 when none
	ActionsToday  int      // successful actions since local midnight
	Strategy      domain.StrategyParams
	NoveltyCutoff float64 // Jaccard similarity at or above this counts as duplicate
	MinPostGapSec int
	Now           time.Time
}

// Check is one named predicate in the gating checklist. Eval returns the
// verdict and a short rationale retained in the reasoning trace.
type Check struct {
	Name string
	Eval func(InsightContext) (bool, string)
}

// Checklist returns the ordered insight-publication checks.
func Checklist() []Check {
	return []Check{
		{
			Name: "data_sufficiency",
			Eval: func(c InsightContext) (bool, string) {
				if c.Candidate.SourceCount < 3 {
					return false, fmt.Sprintf("only %d supporting data points, need 3", c.Candidate.SourceCount)
				}
				return true, fmt.Sprintf("%d supporting data points", c.Candidate.SourceCount)
			},
		},
		{
			Name: "novelty",
			Eval: func(c InsightContext) (bool, string) {
				for _, title := range c.RecentTitles {
					sim := jaccard(c.Candidate.Title, title)
					if sim >= c.NoveltyCutoff {
						return false, fmt.Sprintf("similarity %.2f to recent post %q", sim, title)
					}
				}
				return true, fmt.Sprintf("no recent post above %.2f similarity", c.NoveltyCutoff)
			},
		},
		{
			Name: "relevance",
			Eval: func(c InsightContext) (bool, string) {
				if c.Candidate.RelevanceScore < 0.6 {
					return false, fmt.Sprintf("relevance %.2f below 0.60", c.Candidate.RelevanceScore)
				}
				return true, fmt.Sprintf("relevance %.2f", c.Candidate.RelevanceScore)
			},
		},
		{
			Name: "actionable",
			Eval: func(c InsightContext) (bool, string) {
				if !c.Candidate.Actionable {
					return false, "no concrete recommendation"
				}
				return true, "carries a concrete recommendation"
			},
		},
		{
			Name: "post_gap",
			Eval: func(c InsightContext) (bool, string) {
				if c.LastPostAt == 0 {
					return true, "no prior post"
				}
				gap := c.Now.Unix() - c.LastPostAt
				if gap < int64(c.MinPostGapSec) {
					return false, fmt.Sprintf("only %ds since last post, need %ds", gap, c.MinPostGapSec)
				}
				return true, fmt.Sprintf("%ds since last post", gap)
			},
		},
		{
			Name: "daily_cap",
			Eval: func(c InsightContext) (bool, string) {
				if c.ActionsToday >= c.Strategy.MaxDailyActions {
					return false, fmt.Sprintf("%d actions today at cap %d", c.ActionsToday, c.Strategy.MaxDailyActions)
				}
				return true, fmt.Sprintf("%d of %d daily actions used", c.ActionsToday, c.Strategy.MaxDailyActions)
			},
		},
		{
			Name: "focus_match",
			Eval: func(c InsightContext) (bool, string) {
				if c.Candidate.Topic != c.Strategy.InsightFocus {
					return false, fmt.Sprintf("topic %q outside current focus %q", c.Candidate.Topic, c.Strategy.InsightFocus)
				}
				return true, fmt.Sprintf("topic matches focus %q", c.Strategy.InsightFocus)
			},
		},
		{
			Name: "length_bounds",
			Eval: func(c InsightContext) (bool, string) {
				n := len(c.Candidate.Body)
				if n < 80 || n > 2000 {
					return false, fmt.Sprintf("body %d chars outside [80, 2000]", n)
				}
				return true, fmt.Sprintf("body %d chars", n)
			},
		},
	}
}

// jaccard computes token-set similarity between two titles.
func jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,!?:;\"'()")
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}
