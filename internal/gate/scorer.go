package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agentpulse/engine/internal/domain"
	"github.com/agentpulse/engine/internal/reasoning"
)

const scoreSystem = `You are a rigorous evaluator of ecosystem projects.
Respond with a single JSON object and nothing else:
{"innovation": <1-10>, "effort": <1-10>, "potential": <1-10>, "ecosystemFit": <1-10>, "reasoning": "<one paragraph>"}`

// neutralScore is substituted for any sub-dimension the model fails to
// deliver, so a degraded reasoning provider never blocks the vote loop.
const neutralScore = 5

// Completer produces a completion for a system prompt and user prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ProjectScorer computes the hybrid vote score for a project: an objective
// structural component blended with a model-judged component.
type ProjectScorer struct {
	Completer       Completer
	ObjectiveWeight float64
	ModelWeight     float64
	Logger          *slog.Logger
}

type modelVerdict struct {
	Innovation   float64 `json:"innovation"`
	Effort       float64 `json:"effort"`
	Potential    float64 `json:"potential"`
	EcosystemFit float64 `json:"ecosystemFit"`
	Reasoning    string  `json:"reasoning"`
}

// Score evaluates one project. The model component degrades to neutral
// sub-scores when the provider fails or answers with unusable text; the
// objective component and the decision arithmetic always run.
func (s *ProjectScorer) Score(ctx context.Context, p domain.Project, threshold float64) domain.Evaluation {
	objective := ObjectiveScore(p)

	breakdown, modelReasoning := s.modelScore(ctx, p)
	model := float64(breakdown.Innovation+breakdown.Effort+breakdown.Potential+breakdown.EcosystemFit) / 4

	final := s.ObjectiveWeight*objective + s.ModelWeight*model
	decision := domain.DecisionSkip
	if final >= threshold {
		decision = domain.DecisionAct
	}

	return domain.Evaluation{
		SubjectID:      p.ID,
		SubjectName:    p.Name,
		ObjectiveScore: objective,
		ModelScore:     model,
		FinalScore:     final,
		Breakdown:      breakdown,
		Reasoning:      modelReasoning,
		Decision:       decision,
		State:          domain.SubjectEvaluated,
		EvaluatedAt:    time.Now().Unix(),
	}
}

// ObjectiveScore measures structural completeness of a project submission.
// Repo and demo links carry the most weight; the description contributes by
// length tier. The result is clamped to 10.
func ObjectiveScore(p domain.Project) float64 {
	var score float64
	if p.RepoLink != "" {
		score += 2.5
	}
	if p.DemoLink != "" {
		score += 2.5
	}
	if p.VideoLink != "" {
		score += 2
	}
	switch n := len(p.Description); {
	case n >= 500:
		score += 3
	case n >= 200:
		score += 2
	case n >= 50:
		score += 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

func (s *ProjectScorer) modelScore(ctx context.Context, p domain.Project) (domain.ScoreBreakdown, string) {
	neutral := domain.ScoreBreakdown{
		Innovation:   neutralScore,
		Effort:       neutralScore,
		Potential:    neutralScore,
		EcosystemFit: neutralScore,
	}

	prompt := fmt.Sprintf("Project: %s\n\nDescription:\n%s\n\nRepo: %s\nDemo: %s\nVideo: %s",
		p.Name, p.Description, orNone(p.RepoLink), orNone(p.DemoLink), orNone(p.VideoLink))

	text, err := s.Completer.Complete(ctx, scoreSystem, prompt)
	if err != nil {
		s.Logger.Warn("model scoring degraded to neutral", "project", p.ID, "error", err)
		return neutral, "model unavailable, neutral sub-scores applied"
	}

	var verdict modelVerdict
	if err := reasoning.ExtractJSON(text, &verdict); err != nil {
		s.Logger.Warn("model verdict unparseable, using neutral sub-scores", "project", p.ID, "error", err)
		return neutral, "model verdict unparseable, neutral sub-scores applied"
	}

	breakdown := domain.ScoreBreakdown{
		Innovation:   clampDim(verdict.Innovation),
		Effort:       clampDim(verdict.Effort),
		Potential:    clampDim(verdict.Potential),
		EcosystemFit: clampDim(verdict.EcosystemFit),
	}
	reason := strings.TrimSpace(verdict.Reasoning)
	if reason == "" {
		reason = "model returned scores without a rationale"
	}
	return breakdown, reason
}

// clampDim coerces a model-supplied sub-dimension into [1, 10], treating
// anything non-positive or absent as neutral.
func clampDim(v float64) int {
	if v <= 0 {
		return neutralScore
	}
	n := int(v + 0.5)
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}
	return n
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
