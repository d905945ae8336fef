package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/models"
	"github.com/stretchr/testify/require"
)

func openEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "quorum.yaml")
	body := fmt.Sprintf(`
database:
  path: %s
ledger:
  key_path: %s
identity:
  mode: header
log_level: error
`, filepath.Join(dir, "q.db"), filepath.Join(dir, "q.key"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	env, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, env.Close()) })
	return env
}

func TestFundActivateVerify(t *testing.T) {
	env := openEnv(t)
	ctx := context.Background()
	require.NoError(t, env.DB.EnsureUser(ctx, "client", models.RoleWorker))

	var out bytes.Buffer
	require.NoError(t, SetRole(ctx, env, &out, "client", "CLIENT"))
	require.Error(t, SetRole(ctx, env, &out, "client", "ADMIN"))

	require.NoError(t, env.DB.InsertDataset(ctx, &models.Dataset{
		ID: "ds", OwnerID: "client", Title: "t", DataType: models.DataText, Question: "q",
		Options: []string{"A"}, Reward: decimal.NewFromInt(3), RequiredVotes: 2,
		Status: models.DatasetDraft, CreatedAt: time.Now(),
	}))
	require.NoError(t, env.DB.InsertTasks(ctx, []models.Task{{ID: "t1", DatasetID: "ds", Kind: models.StandardTask{}}}))

	out.Reset()
	require.Error(t, Activate(ctx, env, &out, "ds"))
	require.Contains(t, out.String(), "you need at least 6 credits (Current: 0)")

	require.Error(t, Fund(ctx, env, &out, "client", "abc"))
	require.NoError(t, Fund(ctx, env, &out, "client", "6"))
	out.Reset()
	require.NoError(t, Activate(ctx, env, &out, "ds"))
	require.Contains(t, out.String(), "Dataset is now ACTIVE")

	out.Reset()
	require.NoError(t, Stats(ctx, env, &out, "ds"))
	require.Contains(t, out.String(), "1 total, 0 completed, 1 open")

	out.Reset()
	require.NoError(t, Journal(ctx, env, &out, "client"))
	require.Contains(t, out.String(), "(1 entries)")

	out.Reset()
	require.NoError(t, Verify(ctx, env, &out))
	require.Contains(t, out.String(), "Journal is valid (2 entries verified)")
}
