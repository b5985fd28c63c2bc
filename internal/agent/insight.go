package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentpulse/engine/internal/domain"
	"github.com/agentpulse/engine/internal/gate"
	"github.com/agentpulse/engine/internal/reasoning"
)

const insightSystem = `You write short analytical posts for an ecosystem community.
Respond with a single JSON object and nothing else:
{"title": "<headline>", "body": "<200-1500 char post>", "topic": "<focus area>",
 "relevanceScore": <0-1>, "sourceCount": <number of distinct feed items used>,
 "actionable": <true|false>}`

// RunInsightCycle drafts one insight from the cached feed, gates it through
// the publication checklist, and publishes it when the gate says ACT.
func (a *Agent) RunInsightCycle(ctx context.Context) error {
	params := a.Strategy.Current().Params
	now := a.now()

	if err := a.Governor.Admit(ctx, now, params.MaxDailyActions); err != nil {
		if errors.Is(err, domain.ErrDailyCapReached) {
			a.Logger.Info("insight cycle skipped", "reason", err)
			return nil
		}
		return err
	}

	candidate, err := a.draftInsight(ctx, params)
	if err != nil {
		a.recordFailure(ctx, domain.ActionInsightPost, "draft insight on "+params.InsightFocus, err)
		return fmt.Errorf("draft insight: %w", err)
	}

	ictx, err := a.insightContext(ctx, *candidate, params, now)
	if err != nil {
		a.recordFailure(ctx, domain.ActionInsightPost, "build gate context for "+candidate.Title, err)
		return fmt.Errorf("build gate context: %w", err)
	}

	decision := a.Gate.Evaluate(ictx)
	trace := formatTrace(decision)
	if decision.Decision != domain.DecisionAct {
		a.Logger.Info("insight gated out",
			"title", candidate.Title,
			"passed", decision.Passed,
			"required", decision.Required,
			"trace", trace)
		return nil
	}

	rec, err := a.newRecord(ctx, domain.ActionInsightPost, "", candidate.Title, map[string]string{
		"topic":     candidate.Topic,
		"reasoning": trace,
	})
	if err != nil {
		return fmt.Errorf("record insight action: %w", err)
	}

	postID, err := a.Eco.PublishPost(ctx, candidate.Title, candidate.Body)
	if err != nil {
		a.finishFailed(ctx, rec, err)
		return fmt.Errorf("publish insight: %w", err)
	}

	a.Logger.Info("insight published", "post", postID, "title", candidate.Title)
	a.finishSuccess(ctx, rec)
	return nil
}

// draftInsight asks the reasoning capability for one candidate grounded in
// the cached feed. The response shape is strict; unparseable output is an
// error here, not a neutral fallback, because there is nothing to gate.
func (a *Agent) draftInsight(ctx context.Context, params domain.StrategyParams) (*domain.InsightCandidate, error) {
	var feed strings.Builder
	for i, p := range a.cachedPosts() {
		if i >= 20 {
			break
		}
		fmt.Fprintf(&feed, "- %s\n", p.Title)
	}
	if feed.Len() == 0 {
		feed.WriteString("(feed empty)\n")
	}

	prompt := fmt.Sprintf("Focus area: %s\nTone: %s\n\nRecent community feed:\n%s\nDraft one insight.",
		params.InsightFocus, params.PostingTone, feed.String())

	text, err := a.Completer.Complete(ctx, insightSystem, prompt)
	if err != nil {
		return nil, err
	}

	var candidate domain.InsightCandidate
	if err := reasoning.ExtractJSON(text, &candidate); err != nil {
		return nil, err
	}
	if candidate.Topic == "" {
		candidate.Topic = params.InsightFocus
	}
	return &candidate, nil
}

func (a *Agent) insightContext(ctx context.Context, candidate domain.InsightCandidate, params domain.StrategyParams, now time.Time) (gate.InsightContext, error) {
	since := now.Add(-noveltyWindow).Unix()
	titles, err := a.Actions.RecentSummaries(ctx, a.DB, domain.ActionInsightPost, since)
	if err != nil {
		return gate.InsightContext{}, fmt.Errorf("recent post titles: %w", err)
	}
	lastPostAt, err := a.Actions.LastActionAt(ctx, a.DB, domain.ActionInsightPost)
	if err != nil {
		return gate.InsightContext{}, fmt.Errorf("last post time: %w", err)
	}
	used, err := a.Governor.UsedToday(ctx, now)
	if err != nil {
		return gate.InsightContext{}, err
	}

	return gate.InsightContext{
		Candidate:     candidate,
		RecentTitles:  titles,
		LastPostAt:    lastPostAt,
		ActionsToday:  used,
		Strategy:      params,
		NoveltyCutoff: a.Config.NoveltyCutoff,
		MinPostGapSec: a.Config.MinPostGapSec,
		Now:           now,
	}, nil
}

// formatTrace renders a gate decision as one line per check.
func formatTrace(dec domain.GateDecision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d/%d passed)", dec.Decision, dec.Passed, dec.Required)
	for _, c := range dec.Checks {
		mark := "ok"
		if !c.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "; %s=%s (%s)", c.Name, mark, c.Rationale)
	}
	return b.String()
}
