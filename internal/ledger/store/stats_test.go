package store

import (
	"context"
	"testing"
	"time"

	"github.com/slyt3/Quorum/internal/models"
)

func TestGetDatasetStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDataset(t, db,
		models.Task{ID: "t-1", Content: "a", Kind: models.StandardTask{}, State: models.Settled{FinalVotes: 2}},
		models.Task{ID: "t-2", Content: "b", Kind: models.ValidationTask{CorrectAnswer: "Positive"}},
		models.Task{ID: "t-3", Content: "c", Kind: models.StandardTask{}},
	)
	for _, w := range []models.WorkerID{"w-1", "w-2"} {
		if err := db.EnsureUser(ctx, w, models.RoleWorker); err != nil {
			t.Fatal(err)
		}
	}
	now := time.Now()
	votes := []models.Vote{
		{ID: "v-1", WorkerID: "w-1", TaskID: "t-2", Selection: "Positive", Answer: models.ValidationAnswer{Correct: true}},
		{ID: "v-2", WorkerID: "w-2", TaskID: "t-2", Selection: "Negative", Answer: models.ValidationAnswer{Correct: false}},
		{ID: "v-3", WorkerID: "w-1", TaskID: "t-3", Selection: "Negative", Answer: models.StandardAnswer{}},
	}
	for i := range votes {
		votes[i].CreatedAt, votes[i].UpdatedAt = now, now
		if err := db.InsertVote(ctx, &votes[i]); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := db.GetDatasetStats(ctx, "ds-1")
	if err != nil {
		t.Fatalf("GetDatasetStats failed: %v", err)
	}
	if stats.TotalTasks != 3 || stats.CompletedTasks != 1 || stats.IncompleteTasks != 2 || stats.ValidationTasks != 1 {
		t.Errorf("Unexpected task counts: %+v", stats)
	}
	if stats.TotalVotes != 3 || stats.ValidationVotes != 2 || stats.CorrectVotes != 1 {
		t.Errorf("Unexpected vote counts: %+v", stats)
	}
	if stats.ValidationAcc != 0.5 {
		t.Errorf("Expected accuracy 0.5, got %v", stats.ValidationAcc)
	}
}
