package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/slyt3/Quorum/internal/assert"
	"github.com/slyt3/Quorum/internal/catalog"
	"github.com/slyt3/Quorum/internal/funding"
	"github.com/slyt3/Quorum/internal/identity"
	"github.com/slyt3/Quorum/internal/ledger"
	"github.com/slyt3/Quorum/internal/ledger/store"
	"github.com/slyt3/Quorum/internal/logging"
	"github.com/slyt3/Quorum/internal/models"
)

const maxBodyBytes = 1 << 20

// Handlers is the thin HTTP transport over the ledger, funding guard and catalog.
type Handlers struct {
	DB         *store.DB
	Engine     *ledger.Engine
	Guard      *funding.Guard
	Catalog    *catalog.Catalog
	Identity   identity.Resolver
	AdminToken string
}

func NewHandlers(db *store.DB, engine *ledger.Engine, guard *funding.Guard, cat *catalog.Catalog, resolver identity.Resolver, adminToken string) (*Handlers, error) {
	for name, v := range map[string]interface{}{
		"database": db, "engine": engine, "guard": guard, "catalog": cat, "identity resolver": resolver,
	} {
		if err := assert.NotNil(v, name); err != nil {
			return nil, err
		}
	}
	return &Handlers{DB: db, Engine: engine, Guard: guard, Catalog: cat, Identity: resolver, AdminToken: adminToken}, nil
}

// Routes registers every endpoint.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /ready", h.HandleReady)
	mux.HandleFunc("GET /metrics", h.HandlePrometheus)

	mux.HandleFunc("POST /v1/votes", h.HandleSubmitVote)
	mux.HandleFunc("GET /v1/me", h.HandleMe)
	mux.HandleFunc("GET /v1/me/journal", h.HandleMyJournal)
	mux.HandleFunc("POST /v1/funds", h.HandleDeposit)

	mux.HandleFunc("POST /v1/datasets", h.HandleCreateDataset)
	mux.HandleFunc("PATCH /v1/datasets/{id}", h.HandleUpdateDataset)
	mux.HandleFunc("POST /v1/datasets/{id}/tasks", h.HandleAddTasks)
	mux.HandleFunc("DELETE /v1/datasets/{id}/tasks", h.HandleDeleteTasks)
	mux.HandleFunc("POST /v1/datasets/{id}/validation-tasks", h.HandleAddValidationTask)
	mux.HandleFunc("POST /v1/datasets/{id}/activate", h.HandleActivate)
	mux.HandleFunc("POST /v1/datasets/{id}/pause", h.HandlePause)
	mux.HandleFunc("GET /v1/datasets/{id}/funding", h.HandleFundingEstimate)
	mux.HandleFunc("GET /v1/datasets/{id}/stats", h.HandleDatasetStats)
	mux.HandleFunc("GET /v1/datasets/{id}/export", h.HandleExport)

	mux.HandleFunc("GET /admin/stats", h.admin(h.HandleGlobalStats))
	mux.HandleFunc("GET /admin/journal/verify", h.admin(h.HandleVerifyJournal))
	return mux
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		logging.Error("health_write_failed", logging.Fields{Component: "api", Error: err.Error()})
	}
}

func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := assert.NotNil(h.DB, "database"); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := h.DB.Ping(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ready")); err != nil {
		logging.Error("ready_write_failed", logging.Fields{Component: "api", Error: err.Error()})
	}
}

func (h *Handlers) HandleGlobalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.DB.GetGlobalStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) HandleVerifyJournal(w http.ResponseWriter, r *http.Request) {
	result, err := h.Engine.Verify(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if !result.Valid {
		status = http.StatusConflict
		logging.Critical("journal_verification_failed", logging.Fields{Component: "api", Error: result.ErrorMessage})
	}
	writeJSON(w, status, result)
}

// admin guards operator endpoints with X-Admin-Token. With no token configured they are disabled.
func (h *Handlers) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Admin-Token")
		if h.AdminToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.AdminToken)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// caller resolves the request identity. It writes the 401 itself and returns false when absent.
func (h *Handlers) caller(w http.ResponseWriter, r *http.Request) (models.WorkerID, bool) {
	id, err := h.Identity.Resolve(r.Context(), r)
	if err != nil {
		writeError(w, r, err)
		return "", false
	}
	return id, true
}

type errorBody struct {
	Success bool        `json:"success"`
	Code    models.Code `json:"code"`
	Message string      `json:"message"`
}

func statusFor(code models.Code) int {
	switch code {
	case models.CodeOK:
		return http.StatusOK
	case models.CodeUnauthorized:
		return http.StatusUnauthorized
	case models.CodeNotFound:
		return http.StatusNotFound
	case models.CodeForbidden:
		return http.StatusForbidden
	case models.CodeInvalid:
		return http.StatusBadRequest
	case models.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case models.CodeNothingToFund:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err by its Code. Storage failures get a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := models.CodeOf(err)
	msg := err.Error()
	if code == models.CodeStorageFailure {
		if !errors.Is(err, context.Canceled) {
			logging.Error("request_failed", logging.Fields{Component: "api", Method: r.Method + " " + r.URL.Path, Error: err.Error()})
		}
		msg = "Something went wrong. Please try again."
	}
	writeJSON(w, statusFor(code), errorBody{Success: false, Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("response_encode_failed", logging.Fields{Component: "api", Error: err.Error()})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty: %w", models.ErrInvalid)
		}
		return fmt.Errorf("decoding request: %v: %w", err, models.ErrInvalid)
	}
	return nil
}
