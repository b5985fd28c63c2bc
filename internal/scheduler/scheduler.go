// Package scheduler drives the periodic loops. Each loop runs on its own
// ticker; an iteration that is still running when the ticker fires again is
// skipped, never queued.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agentpulse/engine/internal/domain"
)

// Loop is one periodic activity. Run must honor ctx cancellation and return
// its own errors; the scheduler logs them and keeps ticking.
type Loop struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type loopState struct {
	Loop
	mu      sync.Mutex // held for the duration of one iteration
	lastRun time.Time
	lastErr error
	runs    int64
	skips   int64
}

// LoopStatus is a point-in-time view of one loop, served by the status API.
type LoopStatus struct {
	Name     string    `json:"name"`
	Interval string    `json:"interval"`
	LastRun  time.Time `json:"lastRun"`
	LastErr  string    `json:"lastError,omitempty"`
	Runs     int64     `json:"runs"`
	Skips    int64     `json:"skips"`
}

// Scheduler owns the loop goroutines.
type Scheduler struct {
	Logger *slog.Logger

	mu       sync.RWMutex
	loops    []*loopState
	byName   map[string]*loopState
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
}

// New creates a scheduler over the given loops. Order matters: the first
// loop is the highest priority and runs once synchronously on Start.
func New(logger *slog.Logger, loops ...Loop) *Scheduler {
	s := &Scheduler{
		Logger: logger,
		byName: make(map[string]*loopState, len(loops)),
		stopCh: make(chan struct{}),
	}
	for i := range loops {
		st := &loopState{Loop: loops[i]}
		s.loops = append(s.loops, st)
		s.byName[st.Name] = st
	}
	return s
}

// Start runs one synchronous pass of the first loop, then launches every
// loop on its own ticker. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	if len(s.loops) > 0 {
		s.runOnce(ctx, s.loops[0])
	}

	for _, st := range s.loops {
		s.wg.Add(1)
		go s.tick(ctx, st)
	}
}

func (s *Scheduler) tick(ctx context.Context, st *loopState) {
	defer s.wg.Done()
	ticker := time.NewTicker(st.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, st)
		}
	}
}

// run executes one iteration under the loop's overlap guard and records
// the counters. Returns ErrLoopBusy, without running, when an iteration is
// already in flight. Both the ticker and manual triggers go through here.
func (s *Scheduler) run(ctx context.Context, st *loopState) (time.Duration, error) {
	if !st.mu.TryLock() {
		return 0, domain.ErrLoopBusy
	}
	defer st.mu.Unlock()

	start := time.Now()
	err := st.Run(ctx)

	s.mu.Lock()
	st.lastRun = start
	st.lastErr = err
	st.runs++
	s.mu.Unlock()
	return time.Since(start), err
}

// runOnce is the ticker entry point: a busy loop records a skip and moves on.
func (s *Scheduler) runOnce(ctx context.Context, st *loopState) {
	dur, err := s.run(ctx, st)
	if errors.Is(err, domain.ErrLoopBusy) {
		s.mu.Lock()
		st.skips++
		s.mu.Unlock()
		s.Logger.Warn("loop iteration skipped, previous still running", "loop", st.Name)
		return
	}
	if err != nil {
		s.Logger.Error("loop iteration failed", "loop", st.Name, "duration", dur, "error", err)
		return
	}
	s.Logger.Info("loop iteration complete", "loop", st.Name, "duration", dur)
}

// Trigger runs the named loop immediately through the same guarded path the
// ticker uses. A busy loop returns ErrLoopBusy rather than queueing.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	select {
	case <-s.stopCh:
		return domain.ErrStopped
	default:
	}

	s.mu.RLock()
	st, ok := s.byName[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrLoopNotFound, name)
	}

	if _, err := s.run(ctx, st); err != nil {
		if errors.Is(err, domain.ErrLoopBusy) {
			return fmt.Errorf("%w: %s", domain.ErrLoopBusy, name)
		}
		return fmt.Errorf("trigger %s: %w", name, err)
	}
	return nil
}

// Status reports every loop's counters for the status endpoint.
func (s *Scheduler) Status() []LoopStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]LoopStatus, 0, len(s.loops))
	for _, st := range s.loops {
		ls := LoopStatus{
			Name:     st.Name,
			Interval: st.Interval.String(),
			LastRun:  st.lastRun,
			Runs:     st.runs,
			Skips:    st.skips,
		}
		if st.lastErr != nil {
			ls.LastErr = st.lastErr.Error()
		}
		out = append(out, ls)
	}
	return out
}

// Stop halts all tickers and waits for in-flight iterations to finish.
// Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}
