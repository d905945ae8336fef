package api

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/catalog"
	"github.com/slyt3/Quorum/internal/funding"
	"github.com/slyt3/Quorum/internal/models"
)

const timeFormat = time.RFC3339Nano

type datasetResponse struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	DataType      models.DataType      `json:"data_type"`
	Question      string               `json:"question"`
	Options       []string             `json:"options"`
	Reward        decimal.Decimal      `json:"reward"`
	RequiredVotes int                  `json:"required_votes"`
	Status        models.DatasetStatus `json:"status"`
	CreatedAt     string               `json:"created_at"`
}

func toDatasetResponse(d *models.Dataset) datasetResponse {
	return datasetResponse{
		ID:            d.ID,
		Title:         d.Title,
		Description:   d.Description,
		DataType:      d.DataType,
		Question:      d.Question,
		Options:       d.Options,
		Reward:        d.Reward,
		RequiredVotes: d.RequiredVotes,
		Status:        d.Status,
		CreatedAt:     d.CreatedAt.UTC().Format(timeFormat),
	}
}

func (h *Handlers) HandleCreateDataset(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req catalog.NewDataset
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.Catalog.CreateDataset(r.Context(), owner, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDatasetResponse(d))
}

func (h *Handlers) HandleUpdateDataset(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req catalog.DetailsUpdate
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.Catalog.UpdateDetails(r.Context(), r.PathValue("id"), owner, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDatasetResponse(d))
}

type addTasksRequest struct {
	Contents []string `json:"contents"`
}

type countResponse struct {
	Success bool  `json:"success"`
	Count   int64 `json:"count"`
}

func (h *Handlers) HandleAddTasks(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req addTasksRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.Catalog.AddTasks(r.Context(), r.PathValue("id"), owner, req.Contents)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, countResponse{Success: true, Count: int64(n)})
}

func (h *Handlers) HandleDeleteTasks(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}
	n, err := h.Catalog.DeleteAllTasks(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Success: true, Count: n})
}

type validationTaskRequest struct {
	Content       string `json:"content"`
	CorrectAnswer string `json:"correct_answer"`
}

type taskResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

func (h *Handlers) HandleAddValidationTask(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req validationTaskRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.Catalog.AddValidationTask(r.Context(), r.PathValue("id"), owner, req.Content, req.CorrectAnswer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, taskResponse{Success: true, TaskID: t.ID, Message: "Validation question added successfully!"})
}

type fundingResponse struct {
	Success         bool             `json:"success"`
	Code            models.Code      `json:"code"`
	Message         string           `json:"message"`
	TasksToFund     int              `json:"tasks_to_fund,omitempty"`
	RequiredBalance *decimal.Decimal `json:"required_balance,omitempty"`
	CurrentBalance  *decimal.Decimal `json:"current_balance,omitempty"`
	Shortfall       *decimal.Decimal `json:"shortfall,omitempty"`
}

func toFundingResponse(res funding.Result) fundingResponse {
	out := fundingResponse{Success: res.Success, Code: res.Code, Message: res.Message, TasksToFund: res.TasksToFund}
	if res.TasksToFund > 0 {
		out.RequiredBalance = &res.RequiredBalance
		out.CurrentBalance = &res.CurrentBalance
	}
	if res.Shortfall.IsPositive() {
		out.Shortfall = &res.Shortfall
	}
	return out
}

func (h *Handlers) HandleActivate(w http.ResponseWriter, r *http.Request) {
	client, err := h.Identity.Resolve(r.Context(), r)
	if err != nil && models.CodeOf(err) != models.CodeUnauthorized {
		writeError(w, r, err)
		return
	}
	res, err := h.Guard.TryActivate(r.Context(), r.PathValue("id"), client)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, statusFor(res.Code), toFundingResponse(res))
}

func (h *Handlers) HandlePause(w http.ResponseWriter, r *http.Request) {
	client, err := h.Identity.Resolve(r.Context(), r)
	if err != nil && models.CodeOf(err) != models.CodeUnauthorized {
		writeError(w, r, err)
		return
	}
	res, err := h.Guard.Pause(r.Context(), r.PathValue("id"), client)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, statusFor(res.Code), toFundingResponse(res))
}

type estimateResponse struct {
	Incomplete      int             `json:"incomplete_tasks"`
	TasksToFund     int             `json:"tasks_to_fund"`
	RequiredBalance decimal.Decimal `json:"required_balance"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
	Shortfall       decimal.Decimal `json:"shortfall"`
	Affordable      bool            `json:"affordable"`
}

func (h *Handlers) HandleFundingEstimate(w http.ResponseWriter, r *http.Request) {
	client, ok := h.caller(w, r)
	if !ok {
		return
	}
	est, err := h.Guard.Estimate(r.Context(), r.PathValue("id"), client)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, estimateResponse{
		Incomplete:      est.Incomplete,
		TasksToFund:     est.TasksToFund,
		RequiredBalance: est.RequiredBalance,
		CurrentBalance:  est.CurrentBalance,
		Shortfall:       est.Shortfall,
		Affordable:      est.Affordable,
	})
}

func (h *Handlers) HandleDatasetStats(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}
	stats, err := h.Catalog.Stats(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}
	exp, err := h.Catalog.Export(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+exp.Filename+`.json"`)
	writeJSON(w, http.StatusOK, exp)
}
