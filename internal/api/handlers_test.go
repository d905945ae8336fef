package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/catalog"
	"github.com/slyt3/Quorum/internal/crypto"
	"github.com/slyt3/Quorum/internal/funding"
	"github.com/slyt3/Quorum/internal/identity"
	"github.com/slyt3/Quorum/internal/ledger"
	"github.com/slyt3/Quorum/internal/ledger/store"
	"github.com/slyt3/Quorum/internal/models"
	"github.com/stretchr/testify/require"
)

const adminToken = "s3cret"

func setupServer(t *testing.T) (*httptest.Server, *store.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := store.NewDB(filepath.Join(dir, "quorum.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	signer, err := crypto.NewSigner(filepath.Join(dir, "journal.key"))
	require.NoError(t, err)
	engine, err := ledger.NewEngine(db, signer, ledger.Options{})
	require.NoError(t, err)
	guard, err := funding.NewGuard(db, funding.DefaultBatchSize)
	require.NoError(t, err)
	cat, err := catalog.New(db)
	require.NoError(t, err)

	h, err := NewHandlers(db, engine, guard, cat, identity.HeaderResolver{}, adminToken)
	require.NoError(t, err)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, db
}

func do(t *testing.T, srv *httptest.Server, method, path, user string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(identity.DefaultUserHeader, user)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestDatasetLifecycleOverHTTP(t *testing.T) {
	srv, db := setupServer(t)

	resp, body := do(t, srv, "POST", "/v1/datasets", "client", map[string]interface{}{
		"title":          "Reviews",
		"data_type":      "TEXT",
		"question":       "Positive?",
		"options":        []string{"Positive", "Negative"},
		"reward":         "5",
		"required_votes": 2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "DRAFT", body["status"])
	id := body["id"].(string)

	resp, _ = do(t, srv, "POST", "/v1/datasets/"+id+"/tasks", "client", map[string]interface{}{
		"contents": []string{"great", "awful"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = do(t, srv, "POST", "/v1/datasets/"+id+"/activate", "client", nil)
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	require.Equal(t, "insufficient_funds", body["code"])
	require.Equal(t, "20", body["shortfall"])

	resp, body = do(t, srv, "POST", "/v1/funds", "client", map[string]interface{}{"amount": "20"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "20", body["new_balance"])

	resp, body = do(t, srv, "POST", "/v1/datasets/"+id+"/activate", "intruder", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = do(t, srv, "POST", "/v1/datasets/"+id+"/activate", "client", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])

	ds, err := db.GetDataset(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.DatasetActive, ds.Status)

	resp, body = do(t, srv, "GET", "/v1/datasets/"+id+"/stats", "client", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(2), body["total_tasks"])
}

func TestSubmitVoteOverHTTP(t *testing.T) {
	srv, db := setupServer(t)
	ctx := context.Background()
	require.NoError(t, db.EnsureUser(ctx, "client", models.RoleClient))
	require.NoError(t, db.InsertDataset(ctx, &models.Dataset{
		ID: "ds", OwnerID: "client", Title: "t", DataType: models.DataText, Question: "q",
		Options: []string{"A", "B"}, Reward: decimal.NewFromInt(10), RequiredVotes: 1,
		Status: models.DatasetActive, CreatedAt: time.Now(),
	}))
	require.NoError(t, db.InsertTasks(ctx, []models.Task{
		{ID: "gold", DatasetID: "ds", Content: "c", Kind: models.ValidationTask{CorrectAnswer: "A"}},
	}))

	resp, body := do(t, srv, "POST", "/v1/votes", "", map[string]string{"task_id": "gold", "selection": "A"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "unauthorized", body["code"])

	resp, body = do(t, srv, "POST", "/v1/votes", "w1", map[string]string{"task_id": "nope", "selection": "A"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, false, body["success"])

	resp, body = do(t, srv, "POST", "/v1/votes", "w1", map[string]string{"task_id": "gold", "selection": "A"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "10", body["reward_applied"])
	require.Equal(t, "10", body["new_total_balance"])
	require.Equal(t, true, body["settled"])
	require.Equal(t, true, body["is_correct"])

	resp, body = do(t, srv, "GET", "/v1/me", "w1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["reputation"])

	resp, _ = do(t, srv, "POST", "/v1/votes", "w1", map[string]string{"task": "gold"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminAndProbes(t *testing.T) {
	srv, _ := setupServer(t)

	resp, _ := do(t, srv, "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, srv, "GET", "/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, srv, "GET", "/admin/journal/verify", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest("GET", srv.URL+"/admin/stats", nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Token", adminToken)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestHandlePrometheus(t *testing.T) {
	srv, _ := setupServer(t)
	res, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(res.Body)
	require.NoError(t, err)

	body := buf.String()
	for _, name := range []string{
		"quorum_votes_first_total 0",
		"quorum_tasks_settled_total",
		"quorum_ledger_conflicts_retried_total",
		"quorum_activations_refused_total",
		`quorum_submit_latency_seconds_bucket{le="+Inf"} 0`,
		"quorum_submit_latency_seconds_count 0",
	} {
		require.Contains(t, body, name)
	}
}
