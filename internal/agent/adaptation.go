package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/agentpulse/engine/internal/domain"
)

// RunAdaptation executes one strategy adaptation cycle and records it in
// the audit trail. The ledger entry is attempted whether or not any change
// was applied; its failure never rolls back an applied strategy.
func (a *Agent) RunAdaptation(ctx context.Context) error {
	res, err := a.Adapter.RunCycle(ctx)
	if err != nil {
		a.recordFailure(ctx, domain.ActionStrategyAdaptation, "adaptation cycle", err)
		return fmt.Errorf("adaptation cycle: %w", err)
	}

	summary := fmt.Sprintf("strategy held at v%d", res.ToVersion)
	if res.Applied {
		summary = fmt.Sprintf("strategy v%d -> v%d, %d parameter(s) changed", res.FromVersion, res.ToVersion, len(res.Changes))
	}

	meta := map[string]string{
		"applied":      strconv.FormatBool(res.Applied),
		"from_version": strconv.Itoa(res.FromVersion),
		"to_version":   strconv.Itoa(res.ToVersion),
		"dropped":      strconv.Itoa(res.Dropped),
	}
	if res.Summary != "" {
		meta["reasoning"] = res.Summary
	}
	if len(res.Changes) > 0 {
		if b, err := json.Marshal(res.Changes); err == nil {
			meta["changes"] = string(b)
		}
	}

	rec, err := a.newRecord(ctx, domain.ActionStrategyAdaptation, "", summary, meta)
	if err != nil {
		return fmt.Errorf("record adaptation: %w", err)
	}
	a.finishSuccess(ctx, rec)
	return nil
}

// RunSnapshot records the trailing-window metrics as a snapshot action so
// the outcome history is itself auditable on the ledger.
func (a *Agent) RunSnapshot(ctx context.Context) error {
	snap, err := a.Adapter.Metrics(ctx, a.now())
	if err != nil {
		a.recordFailure(ctx, domain.ActionSnapshot, "metrics snapshot", err)
		return fmt.Errorf("metrics snapshot: %w", err)
	}

	summary := fmt.Sprintf("7d: %d posts, %d votes, %d failed, %d ledger commits, avg score %s",
		snap.PostsPublished, snap.VotesCast, snap.ActionsFailed, snap.LedgerCommits, formatScore(snap.AvgFinalScore))

	metricsJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	rec, err := a.newRecord(ctx, domain.ActionSnapshot, "", summary, map[string]string{
		"metrics": string(metricsJSON),
	})
	if err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	a.finishSuccess(ctx, rec)
	return nil
}
