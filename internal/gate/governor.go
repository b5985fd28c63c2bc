package gate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agentpulse/engine/internal/domain"
	"github.com/agentpulse/engine/internal/store"
)

// ActionGovernor enforces the daily action budget across all loops.
// The budget counts successful posts and votes since local midnight;
// internal bookkeeping records (snapshots, adaptations) are exempt.
type ActionGovernor struct {
	DB      *sql.DB
	Actions *store.ActionRepo
}

// UsedToday returns the number of successful external actions since local
// midnight.
func (g *ActionGovernor) UsedToday(ctx context.Context, now time.Time) (int, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	n, err := g.Actions.CountExternalSince(ctx, g.DB, midnight.Unix())
	if err != nil {
		return 0, fmt.Errorf("count actions today: %w", err)
	}
	return n, nil
}

// Admit returns nil when another action fits under the cap, or
// ErrDailyCapReached when the budget is spent.
func (g *ActionGovernor) Admit(ctx context.Context, now time.Time, limit int) error {
	used, err := g.UsedToday(ctx, now)
	if err != nil {
		return err
	}
	if used >= limit {
		return fmt.Errorf("%w: %d of %d used", domain.ErrDailyCapReached, used, limit)
	}
	return nil
}
