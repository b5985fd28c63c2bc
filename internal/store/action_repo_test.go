package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentpulse/engine/internal/domain"
)

func sampleAction(id, subjectID string) domain.ActionRecord {
	return domain.ActionRecord{
		ID:          id,
		Type:        domain.ActionProjectVote,
		SubjectID:   subjectID,
		Summary:     "voted for project " + subjectID,
		Metadata:    map[string]string{"vote_type": "up"},
		ContentHash: "abcd1234abcd1234ffff",
		Outcome:     domain.OutcomePending,
		CreatedAt:   time.Now().Unix(),
	}
}

func TestActionRepo_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := &ActionRepo{}
	ctx := context.Background()

	rec := sampleAction("act-1", "proj-1")
	if err := repo.Create(ctx, db, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, db, "act-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Type != domain.ActionProjectVote {
		t.Errorf("Type = %q, want project_vote", got.Type)
	}
	if got.Metadata["vote_type"] != "up" {
		t.Errorf("Metadata[vote_type] = %q, want up", got.Metadata["vote_type"])
	}
	if got.Outcome != domain.OutcomePending {
		t.Errorf("Outcome = %q, want PENDING", got.Outcome)
	}
}

func TestActionRepo_DuplicateSubject(t *testing.T) {
	db := newTestDB(t)
	repo := &ActionRepo{}
	ctx := context.Background()

	if err := repo.Create(ctx, db, sampleAction("act-1", "proj-1")); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	// Same type + subject must be rejected regardless of id.
	err := repo.Create(ctx, db, sampleAction("act-2", "proj-1"))
	if err != domain.ErrDuplicateAction {
		t.Errorf("Create duplicate = %v, want ErrDuplicateAction", err)
	}
}

func TestActionRepo_EmptySubjectNotUnique(t *testing.T) {
	db := newTestDB(t)
	repo := &ActionRepo{}
	ctx := context.Background()

	// Snapshot actions carry no subject; several must coexist.
	for i, id := range []string{"snap-1", "snap-2"} {
		rec := sampleAction(id, "")
		rec.Type = domain.ActionSnapshot
		rec.CreatedAt += int64(i)
		if err := repo.Create(ctx, db, rec); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
}

func TestActionRepo_SetLedgerRef_Once(t *testing.T) {
	db := newTestDB(t)
	repo := &ActionRepo{}
	ctx := context.Background()

	if err := repo.Create(ctx, db, sampleAction("act-1", "proj-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.SetLedgerRef(ctx, db, "act-1", "sig-xyz"); err != nil {
		t.Fatalf("SetLedgerRef: %v", err)
	}

	err := repo.SetLedgerRef(ctx, db, "act-1", "sig-abc")
	if err != domain.ErrTxRefAlreadySet {
		t.Errorf("second SetLedgerRef = %v, want ErrTxRefAlreadySet", err)
	}

	got, err := repo.GetByID(ctx, db, "act-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LedgerTxRef != "sig-xyz" {
		t.Errorf("LedgerTxRef = %q, want sig-xyz", got.LedgerTxRef)
	}
}

func TestActionRepo_SetOutcome_Once(t *testing.T) {
	db := newTestDB(t)
	repo := &ActionRepo{}
	ctx := context.Background()

	if err := repo.Create(ctx, db, sampleAction("act-1", "proj-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.SetOutcome(ctx, db, "act-1", domain.OutcomeSuccess, ""); err != nil {
		t.Fatalf("SetOutcome: %v", err)
	}

	err := repo.SetOutcome(ctx, db, "act-1", domain.OutcomeFailed, "late failure")
	if err != domain.ErrOutcomeFinal {
		t.Errorf("second SetOutcome = %v, want ErrOutcomeFinal", err)
	}
}

func TestActionRepo_SetOutcome_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := &ActionRepo{}

	err := repo.SetOutcome(context.Background(), db, "missing", domain.OutcomeSuccess, "")
	if err != domain.ErrActionNotFound {
		t.Errorf("SetOutcome = %v, want ErrActionNotFound", err)
	}
}

func TestActionRepo_GetByHashPrefix(t *testing.T) {
	db := newTestDB(t)
	repo := &ActionRepo{}
	ctx := context.Background()

	rec := sampleAction("act-1", "proj-1")
	rec.ContentHash = "deadbeefdeadbeef0123456789abcdef"
	if err := repo.Create(ctx, db, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByHashPrefix(ctx, db, "deadbeefdeadbeef")
	if err != nil {
		t.Fatalf("GetByHashPrefix: %v", err)
	}
	if got.ID != "act-1" {
		t.Errorf("ID = %q, want act-1", got.ID)
	}

	if _, err := repo.GetByHashPrefix(ctx, db, "0000000000000000"); err != domain.ErrActionNotFound {
		t.Errorf("GetByHashPrefix miss = %v, want ErrActionNotFound", err)
	}
}

func TestActionRepo_Counts(t *testing.T) {
	db := newTestDB(t)
	repo := &ActionRepo{}
	ctx := context.Background()
	now := time.Now().Unix()

	mk := func(id, subject string, t0 int64, outcome domain.Outcome, ref string) domain.ActionRecord {
		rec := sampleAction(id, subject)
		rec.CreatedAt = t0
		rec.Outcome = outcome
		rec.LedgerTxRef = ref
		return rec
	}

	snap := mk("a5", "", now-40, domain.OutcomeSuccess, "")
	snap.Type = domain.ActionSnapshot

	records := []domain.ActionRecord{
		mk("a1", "p1", now-10, domain.OutcomeSuccess, "sig-1"),
		mk("a2", "p2", now-20, domain.OutcomeSuccess, ""),
		mk("a3", "p3", now-30, domain.OutcomeFailed, ""),
		mk("a4", "p4", now-100000, domain.OutcomeSuccess, "sig-2"), // outside window
		snap, // internal bookkeeping, outside the budget
	}
	for _, rec := range records {
		if err := repo.Create(ctx, db, rec); err != nil {
			t.Fatalf("Create %s: %v", rec.ID, err)
		}
	}

	since := now - 3600
	n, err := repo.CountExternalSince(ctx, db, since)
	if err != nil {
		t.Fatalf("CountExternalSince: %v", err)
	}
	if n != 2 {
		t.Errorf("CountExternalSince = %d, want 2", n)
	}

	ok, failed, err := repo.CountByTypeSince(ctx, db, domain.ActionProjectVote, since)
	if err != nil {
		t.Fatalf("CountByTypeSince: %v", err)
	}
	if ok != 2 || failed != 1 {
		t.Errorf("CountByTypeSince = (%d, %d), want (2, 1)", ok, failed)
	}

	commits, err := repo.CountLedgerCommitsSince(ctx, db, since)
	if err != nil {
		t.Fatalf("CountLedgerCommitsSince: %v", err)
	}
	if commits != 1 {
		t.Errorf("CountLedgerCommitsSince = %d, want 1", commits)
	}
}

func TestActionRepo_RecentSummaries(t *testing.T) {
	db := newTestDB(t)
	repo := &ActionRepo{}
	ctx := context.Background()
	now := time.Now().Unix()

	for i, summary := range []string{"older insight", "newer insight"} {
		rec := sampleAction("ins-"+summary, "")
		rec.ID = summary
		rec.Type = domain.ActionInsightPost
		rec.Summary = summary
		rec.Outcome = domain.OutcomeSuccess
		rec.CreatedAt = now - int64(10-i)
		if err := repo.Create(ctx, db, rec); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	summaries, err := repo.RecentSummaries(ctx, db, domain.ActionInsightPost, now-3600)
	if err != nil {
		t.Fatalf("RecentSummaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}
	if summaries[0] != "newer insight" {
		t.Errorf("summaries[0] = %q, want newest first", summaries[0])
	}
}

func TestActionRepo_GetBySubjectAndDelete(t *testing.T) {
	db := newTestDB(t)
	repo := &ActionRepo{}
	ctx := context.Background()

	rec := sampleAction("a1", "p1")
	rec.Outcome = domain.OutcomeFailed
	if err := repo.Create(ctx, db, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetBySubject(ctx, db, domain.ActionProjectVote, "p1")
	if err != nil {
		t.Fatalf("GetBySubject: %v", err)
	}
	if got.ID != "a1" || got.Outcome != domain.OutcomeFailed {
		t.Errorf("got = %+v, want a1 FAILED", got)
	}

	if _, err := repo.GetBySubject(ctx, db, domain.ActionProjectVote, "absent"); !errors.Is(err, domain.ErrActionNotFound) {
		t.Errorf("GetBySubject(absent) = %v, want ErrActionNotFound", err)
	}

	// Deleting frees the (type, subject) slot for a fresh attempt.
	if err := repo.Delete(ctx, db, "a1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Create(ctx, db, sampleAction("a2", "p1")); err != nil {
		t.Errorf("Create after Delete = %v, want nil", err)
	}
	if err := repo.Delete(ctx, db, "a1"); !errors.Is(err, domain.ErrActionNotFound) {
		t.Errorf("Delete(gone) = %v, want ErrActionNotFound", err)
	}
}
