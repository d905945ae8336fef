package funding

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/ledger/store"
	"github.com/slyt3/Quorum/internal/models"
	"github.com/stretchr/testify/require"
)

// setup creates a DRAFT dataset owned by "client" with the given number of open tasks.
func setup(t *testing.T, balance string, openTasks, requiredVotes int, reward string) (*store.DB, *Guard) {
	t.Helper()
	ctx := context.Background()
	db, err := store.NewDB(filepath.Join(t.TempDir(), "quorum.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	require.NoError(t, db.EnsureUser(ctx, "client", models.RoleClient))
	require.NoError(t, db.EnsureUser(ctx, "other", models.RoleClient))
	_, err = db.ApplyDelta(ctx, "client", decimal.RequireFromString(balance), 0)
	require.NoError(t, err)

	require.NoError(t, db.InsertDataset(ctx, &models.Dataset{
		ID:            "ds",
		OwnerID:       "client",
		Title:         "Cats",
		DataType:      models.DataImage,
		Question:      "Is there a cat?",
		Options:       []string{"Yes", "No"},
		Reward:        decimal.RequireFromString(reward),
		RequiredVotes: requiredVotes,
		Status:        models.DatasetDraft,
		CreatedAt:     time.Now(),
	}))
	tasks := make([]models.Task, openTasks)
	for i := range tasks {
		tasks[i] = models.Task{ID: fmt.Sprintf("t%d", i), DatasetID: "ds", Content: "img", Kind: models.StandardTask{}}
	}
	require.NoError(t, db.InsertTasks(ctx, tasks))

	guard, err := NewGuard(db, 50)
	require.NoError(t, err)
	return db, guard
}

func TestTryActivateBoundary(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		want    models.Code
	}{
		{"one short", "119", models.CodeInsufficientFunds},
		{"exact", "120", models.CodeOK},
		{"surplus", "500.5", models.CodeOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, guard := setup(t, tt.balance, 12, 2, "5")
			res, err := guard.TryActivate(context.Background(), "ds", "client")
			require.NoError(t, err)
			require.Equal(t, tt.want, res.Code)
			require.Equal(t, 12, res.TasksToFund)
			require.True(t, res.RequiredBalance.Equal(decimal.NewFromInt(120)))

			ds, err := db.GetDataset(context.Background(), "ds")
			require.NoError(t, err)
			if tt.want == models.CodeOK {
				require.True(t, res.Success)
				require.Equal(t, models.DatasetActive, ds.Status)
			} else {
				require.False(t, res.Success)
				require.True(t, res.Shortfall.Equal(decimal.NewFromInt(1)))
				require.Equal(t, "Insufficient balance. To activate the next batch of 12 tasks, you need at least 120 credits (Current: 119).", res.Message)
				require.Equal(t, models.DatasetDraft, ds.Status)
			}
		})
	}
}

func TestTryActivateCapsAtBatchSize(t *testing.T) {
	_, guard := setup(t, "100", 80, 1, "2")
	res, err := guard.TryActivate(context.Background(), "ds", "client")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 50, res.TasksToFund)
	require.True(t, res.RequiredBalance.Equal(decimal.NewFromInt(100)))
	require.Equal(t, uint64(1), guard.Counters().Activated)
}

func TestTryActivateRefusals(t *testing.T) {
	db, guard := setup(t, "1000", 2, 1, "1")
	ctx := context.Background()

	res, err := guard.TryActivate(ctx, "ds", "")
	require.NoError(t, err)
	require.Equal(t, models.CodeUnauthorized, res.Code)

	res, err = guard.TryActivate(ctx, "ds", "other")
	require.NoError(t, err)
	require.Equal(t, models.CodeForbidden, res.Code)

	res, err = guard.TryActivate(ctx, "missing", "client")
	require.NoError(t, err)
	require.Equal(t, models.CodeNotFound, res.Code)

	for _, id := range []string{"t0", "t1"} {
		require.NoError(t, db.AdvanceTask(ctx, id, models.Open{}, models.Settled{FinalVotes: 1}))
	}
	res, err = guard.TryActivate(ctx, "ds", "client")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, models.CodeNothingToFund, res.Code)
	require.Equal(t, "All tasks are already completed.", res.Message)
}

func TestPauseAndEstimate(t *testing.T) {
	db, guard := setup(t, "10", 3, 2, "2.5")
	ctx := context.Background()

	est, err := guard.Estimate(ctx, "ds", "client")
	require.NoError(t, err)
	require.Equal(t, 3, est.Incomplete)
	require.Equal(t, 3, est.TasksToFund)
	require.Equal(t, "15", est.RequiredBalance.String())
	require.Equal(t, "5", est.Shortfall.String())
	require.False(t, est.Affordable)

	res, err := guard.Pause(ctx, "ds", "other")
	require.NoError(t, err)
	require.Equal(t, models.CodeForbidden, res.Code)

	res, err = guard.Pause(ctx, "ds", "client")
	require.NoError(t, err)
	require.True(t, res.Success)

	ds, err := db.GetDataset(ctx, "ds")
	require.NoError(t, err)
	require.Equal(t, models.DatasetPaused, ds.Status)
}
