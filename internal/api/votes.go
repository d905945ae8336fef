package api

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/ledger"
	"github.com/slyt3/Quorum/internal/models"
)

type submitVoteRequest struct {
	TaskID    string `json:"task_id"`
	Selection string `json:"selection"`
}

type voteResponse struct {
	Success           bool            `json:"success"`
	Code              models.Code     `json:"code"`
	Message           string          `json:"message"`
	RewardApplied     decimal.Decimal `json:"reward_applied"`
	ReputationApplied float64         `json:"reputation_applied"`
	NewTotalBalance   decimal.Decimal `json:"new_total_balance"`
	Amended           bool            `json:"amended"`
	Settled           bool            `json:"settled"`
	IsCorrect         *bool           `json:"is_correct"`
}

func toVoteResponse(out ledger.VoteOutcome) voteResponse {
	return voteResponse{
		Success:           out.Success,
		Code:              out.Code,
		Message:           out.Message,
		RewardApplied:     out.RewardApplied,
		ReputationApplied: out.ReputationApplied,
		NewTotalBalance:   out.NewTotalBalance,
		Amended:           out.Amended,
		Settled:           out.Settled,
		IsCorrect:         out.IsCorrect,
	}
}

func (h *Handlers) HandleSubmitVote(w http.ResponseWriter, r *http.Request) {
	// Unauthenticated submissions still get a vote-shaped result.
	workerID, err := h.Identity.Resolve(r.Context(), r)
	if err != nil && models.CodeOf(err) != models.CodeUnauthorized {
		writeError(w, r, err)
		return
	}
	var req submitVoteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := h.Engine.Submit(r.Context(), workerID, req.TaskID, req.Selection)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, statusFor(out.Code), toVoteResponse(out))
}

type meResponse struct {
	ID         models.WorkerID `json:"id"`
	Username   string          `json:"username,omitempty"`
	Role       models.Role     `json:"role"`
	Balance    decimal.Decimal `json:"balance"`
	Reputation float64         `json:"reputation"`
}

func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caller(w, r)
	if !ok {
		return
	}
	user, err := h.Engine.Balance(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID: user.ID, Username: user.Username, Role: user.Role, Balance: user.Balance, Reputation: user.Reputation,
	})
}

type journalEntry struct {
	SeqIndex        int64              `json:"seq_index"`
	Kind            models.JournalKind `json:"kind"`
	TaskID          string             `json:"task_id,omitempty"`
	BalanceDelta    decimal.Decimal    `json:"balance_delta"`
	ReputationDelta float64            `json:"reputation_delta"`
	BalanceAfter    decimal.Decimal    `json:"balance_after"`
	Timestamp       string             `json:"timestamp"`
	Hash            string             `json:"hash"`
}

func (h *Handlers) HandleMyJournal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caller(w, r)
	if !ok {
		return
	}
	entries, err := h.Engine.Journal(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]journalEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, journalEntry{
			SeqIndex:        e.SeqIndex,
			Kind:            e.Kind,
			TaskID:          e.TaskID,
			BalanceDelta:    e.BalanceDelta,
			ReputationDelta: e.ReputationDelta,
			BalanceAfter:    e.BalanceAfter,
			Timestamp:       e.Timestamp.UTC().Format(timeFormat),
			Hash:            e.CurrentHash,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type depositResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

func (h *Handlers) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	balance, err := h.Engine.Deposit(r.Context(), id, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, depositResponse{Success: true, Message: "Funds added", NewBalance: balance})
}
