package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "data", "quorum.db"), 5*time.Second)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

func seedDataset(t *testing.T, db *DB, tasks ...models.Task) *models.Dataset {
	t.Helper()
	ctx := context.Background()
	if err := db.EnsureUser(ctx, "owner-1", models.RoleClient); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	d := &models.Dataset{
		ID:            "ds-1",
		OwnerID:       "owner-1",
		Title:         "Reviews",
		DataType:      models.DataText,
		Question:      "Sentiment?",
		Options:       []string{"Positive", "Negative"},
		Reward:        decimal.RequireFromString("2.5"),
		RequiredVotes: 2,
		Status:        models.DatasetDraft,
		CreatedAt:     time.Now(),
	}
	if err := db.InsertDataset(ctx, d); err != nil {
		t.Fatalf("InsertDataset failed: %v", err)
	}
	for i := range tasks {
		tasks[i].DatasetID = d.ID
	}
	if err := db.InsertTasks(ctx, tasks); err != nil {
		t.Fatalf("InsertTasks failed: %v", err)
	}
	return d
}

func TestDatasetRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDataset(t, db)

	got, err := db.GetDataset(ctx, "ds-1")
	if err != nil {
		t.Fatalf("GetDataset failed: %v", err)
	}
	if got.OwnerID != "owner-1" || got.RequiredVotes != 2 || got.Status != models.DatasetDraft {
		t.Errorf("Unexpected dataset: %+v", got)
	}
	if !got.Reward.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("Expected reward 2.5, got %s", got.Reward)
	}
	if len(got.Options) != 2 || got.Options[1] != "Negative" {
		t.Errorf("Options not preserved: %v", got.Options)
	}

	if err := db.SetDatasetStatus(ctx, "ds-1", models.DatasetActive); err != nil {
		t.Fatalf("SetDatasetStatus failed: %v", err)
	}
	if err := db.SetDatasetStatus(ctx, "missing", models.DatasetActive); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing dataset, got %v", err)
	}
	if _, err := db.GetDataset(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTaskKindsAndAdvance(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDataset(t, db,
		models.Task{ID: "t-std", Content: "great", Kind: models.StandardTask{}},
		models.Task{ID: "t-val", Content: "awful", Kind: models.ValidationTask{CorrectAnswer: "Negative"}},
	)

	val, err := db.GetTask(ctx, "t-val")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if val.Kind != (models.ValidationTask{CorrectAnswer: "Negative"}) {
		t.Errorf("Unexpected kind: %#v", val.Kind)
	}
	if val.State != (models.Open{}) {
		t.Errorf("New task should be open with zero votes, got %#v", val.State)
	}

	if err := db.AdvanceTask(ctx, "t-val", models.Open{}, models.Open{VotesSoFar: 1}); err != nil {
		t.Fatalf("AdvanceTask failed: %v", err)
	}
	// Stale read: the task already has one vote.
	err = db.AdvanceTask(ctx, "t-val", models.Open{}, models.Open{VotesSoFar: 1})
	if !errors.Is(err, models.ErrConflict) || !IsConflict(err) {
		t.Errorf("Expected conflict on stale advance, got %v", err)
	}
	if err := db.AdvanceTask(ctx, "t-val", models.Open{VotesSoFar: 1}, models.Settled{FinalVotes: 2}); err != nil {
		t.Fatalf("Settling advance failed: %v", err)
	}
	if err := db.AdvanceTask(ctx, "t-val", models.Settled{FinalVotes: 2}, models.Open{VotesSoFar: 3}); err == nil {
		t.Error("Settled task must not reopen")
	}

	got, _ := db.GetTask(ctx, "t-val")
	if got.State != (models.Settled{FinalVotes: 2}) {
		t.Errorf("Expected Settled{2}, got %#v", got.State)
	}
	n, err := db.CountIncompleteTasks(ctx, "ds-1")
	if err != nil || n != 1 {
		t.Errorf("Expected 1 incomplete task, got %d (%v)", n, err)
	}
}

func TestVoteUniqueness(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDataset(t, db, models.Task{ID: "t-1", Content: "x", Kind: models.StandardTask{}})
	if err := db.EnsureUser(ctx, "w-1", models.RoleWorker); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	v := &models.Vote{ID: "v-1", WorkerID: "w-1", TaskID: "t-1", Selection: "Positive",
		Answer: models.StandardAnswer{}, CreatedAt: now, UpdatedAt: now}
	if err := db.InsertVote(ctx, v); err != nil {
		t.Fatalf("InsertVote failed: %v", err)
	}
	dup := *v
	dup.ID = "v-2"
	err := db.InsertVote(ctx, &dup)
	if err == nil || !IsConflict(err) {
		t.Fatalf("Duplicate vote should be a retryable conflict, got %v", err)
	}

	v.Selection = "Negative"
	v.Answer = models.ValidationAnswer{Correct: true}
	if err := db.UpdateVote(ctx, v); err != nil {
		t.Fatalf("UpdateVote failed: %v", err)
	}
	got, err := db.GetVote(ctx, "w-1", "t-1")
	if err != nil {
		t.Fatalf("GetVote failed: %v", err)
	}
	if got.Selection != "Negative" || got.Answer != (models.ValidationAnswer{Correct: true}) {
		t.Errorf("Amendment not stored: %+v", got)
	}
	if _, err := db.GetVote(ctx, "w-2", "t-1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if n, _ := db.CountVotes(ctx, "t-1"); n != 1 {
		t.Errorf("Expected 1 vote, got %d", n)
	}
}

func TestApplyDelta(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.EnsureUser(ctx, "w-1", models.RoleWorker); err != nil {
		t.Fatal(err)
	}

	bal, err := db.ApplyDelta(ctx, "w-1", decimal.RequireFromString("0.1"), -2)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	bal, err = db.ApplyDelta(ctx, "w-1", decimal.RequireFromString("0.2"), 3)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if !bal.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("Expected exact decimal 0.3, got %s", bal)
	}
	u, err := db.GetUser(ctx, "w-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if !u.Balance.Equal(bal) || u.Reputation != 1 {
		t.Errorf("Unexpected user state: balance=%s reputation=%v", u.Balance, u.Reputation)
	}
	if _, err := db.ApplyDelta(ctx, "ghost", decimal.NewFromInt(1), 0); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestUpsertExternalUserIsStable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id1, err := db.UpsertExternalUser(ctx, "tg:42", "alice", models.RoleWorker)
	if err != nil {
		t.Fatalf("UpsertExternalUser failed: %v", err)
	}
	id2, err := db.UpsertExternalUser(ctx, "tg:42", "alice_renamed", models.RoleWorker)
	if err != nil {
		t.Fatalf("UpsertExternalUser failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("Same external id must map to one user: %s != %s", id1, id2)
	}
	u, _ := db.GetUser(ctx, id1)
	if u.Username != "alice_renamed" || u.ExternalID != "tg:42" {
		t.Errorf("Unexpected user: %+v", u)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.EnsureUser(ctx, "w-1", models.RoleWorker); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ApplyDelta(ctx, "w-1", decimal.NewFromInt(5), 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	u, _ := db.GetUser(ctx, "w-1")
	if !u.Balance.IsZero() || u.Reputation != 0 {
		t.Errorf("Rolled back transaction leaked: balance=%s reputation=%v", u.Balance, u.Reputation)
	}
}

func TestDeleteTasksCascadesVotes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDataset(t, db, models.Task{ID: "t-1", Content: "x", Kind: models.StandardTask{}})
	if err := db.EnsureUser(ctx, "w-1", models.RoleWorker); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := db.InsertVote(ctx, &models.Vote{ID: "v-1", WorkerID: "w-1", TaskID: "t-1", Selection: "Positive",
		Answer: models.StandardAnswer{}, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}

	n, err := db.DeleteTasks(ctx, "ds-1")
	if err != nil || n != 1 {
		t.Fatalf("DeleteTasks = %d, %v", n, err)
	}
	stats, err := db.GetGlobalStats(ctx)
	if err != nil {
		t.Fatalf("GetGlobalStats failed: %v", err)
	}
	if stats.Tasks != 0 || stats.Votes != 0 {
		t.Errorf("Expected votes to cascade, got %+v", stats)
	}
}
