// Package strategy owns the live adaptive parameter set and the engine
// that re-tunes it from observed outcomes.
package strategy

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/agentpulse/engine/internal/domain"
	"github.com/agentpulse/engine/internal/store"
)

// Store holds the single live Strategy. The adaptation engine is the only
// writer; every other component takes a value snapshot per decision via
// Current rather than holding a live reference.
type Store struct {
	mu      sync.RWMutex
	current domain.Strategy

	repo *store.StrategyRepo
	db   *sql.DB
}

// NewStore loads the live strategy, seeding version 1 from defaults when
// nothing is persisted yet.
func NewStore(ctx context.Context, db *sql.DB, defaults domain.StrategyParams, nowUnix int64) (*Store, error) {
	repo := &store.StrategyRepo{}

	cur, err := repo.Current(ctx, db)
	if errors.Is(err, domain.ErrStrategyMissing) {
		if err := repo.Seed(ctx, db, defaults, nowUnix); err != nil {
			return nil, err
		}
		cur, err = repo.Current(ctx, db)
	}
	if err != nil {
		return nil, err
	}

	return &Store{current: *cur, repo: repo, db: db}, nil
}

// Current returns a value snapshot of the live strategy.
func (s *Store) Current() domain.Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Version returns the live strategy version.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Version
}

// apply persists the next strategy version and its adaptation record in one
// transaction, then swaps the in-memory value. Only the adaptation engine
// calls this.
func (s *Store) apply(ctx context.Context, next domain.Strategy, rec domain.AdaptationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.repo.SaveTx(ctx, tx, next); err != nil {
		return err
	}
	if err := s.repo.AppendAdaptationTx(ctx, tx, rec); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.current = next
	return nil
}

// History returns the most recent adaptation records, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]domain.AdaptationRecord, error) {
	return s.repo.ListAdaptations(ctx, s.db, limit)
}
