// Package funding gates dataset activation on whether the owner can afford
// the next batch of remaining work. The check is advisory: no funds are held.
package funding

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/assert"
	"github.com/slyt3/Quorum/internal/ledger/store"
	"github.com/slyt3/Quorum/internal/logging"
	"github.com/slyt3/Quorum/internal/models"
)

const (
	DefaultBatchSize = 50
	maxBatchSize     = 1 << 20
)

// Result is returned by TryActivate and Pause. Business failures set
// Success false and a Code; the error return is for storage failures only.
type Result struct {
	Success bool
	Code    models.Code
	Message string

	TasksToFund     int
	RequiredBalance decimal.Decimal
	CurrentBalance  decimal.Decimal
	// Shortfall is RequiredBalance - CurrentBalance when activation is refused for funds.
	Shortfall decimal.Decimal
}

// Estimate is the read-only view of what activation would require.
type Estimate struct {
	Incomplete      int
	TasksToFund     int
	RequiredBalance decimal.Decimal
	CurrentBalance  decimal.Decimal
	Shortfall       decimal.Decimal
	Affordable      bool
}

// Counters for the metrics endpoint.
type Counters struct {
	Activated uint64
	Refused   uint64
	Paused    uint64
}

// Guard decides dataset activation.
type Guard struct {
	db        *store.DB
	batchSize int

	activated atomic.Uint64
	refused   atomic.Uint64
	paused    atomic.Uint64
}

// NewGuard creates a guard funding at most batchSize tasks per check.
func NewGuard(db *store.DB, batchSize int) (*Guard, error) {
	if err := assert.NotNil(db, "database"); err != nil {
		return nil, err
	}
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}
	if err := assert.InRange(batchSize, 1, maxBatchSize, "batch size"); err != nil {
		return nil, err
	}
	return &Guard{db: db, batchSize: batchSize}, nil
}

// RequiredBalance is tasksToFund * requiredVotes * reward.
func RequiredBalance(tasksToFund, requiredVotes int, reward decimal.Decimal) decimal.Decimal {
	return reward.Mul(decimal.NewFromInt(int64(requiredVotes))).Mul(decimal.NewFromInt(int64(tasksToFund)))
}

// TryActivate flips the dataset to ACTIVE when its owner can cover the next batch.
func (g *Guard) TryActivate(ctx context.Context, datasetID string, clientID models.WorkerID) (Result, error) {
	if err := assert.NotNil(g, "guard"); err != nil {
		return failure(models.ErrStorage), err
	}
	if clientID == "" {
		return failure(models.ErrUnauthorized), nil
	}
	fields := logging.Fields{Component: "funding", Method: "activate", DatasetID: datasetID, WorkerID: string(clientID)}

	var res Result
	err := g.db.WithTx(ctx, func(tx *store.Tx) error {
		est, err := g.estimate(ctx, &tx.Queries, datasetID, clientID)
		if err != nil {
			return err
		}
		res = Result{
			TasksToFund:     est.TasksToFund,
			RequiredBalance: est.RequiredBalance,
			CurrentBalance:  est.CurrentBalance,
		}
		if !est.Affordable {
			res.Shortfall = est.Shortfall
			return models.ErrInsufficientFunds
		}
		return tx.SetDatasetStatus(ctx, datasetID, models.DatasetActive)
	})

	switch code := models.CodeOf(err); code {
	case models.CodeOK:
		res.Success = true
		res.Code = models.CodeOK
		res.Message = fmt.Sprintf("Dataset is now %s", models.DatasetActive)
		g.activated.Add(1)
		logging.Info("dataset_activated", fields)
		return res, nil
	case models.CodeInsufficientFunds:
		res.Code = code
		res.Message = fmt.Sprintf("Insufficient balance. To activate the next batch of %d tasks, you need at least %s credits (Current: %s).",
			res.TasksToFund, res.RequiredBalance, res.CurrentBalance)
		g.refused.Add(1)
		fields.Status = string(code)
		logging.Info("activation_refused", fields)
		return res, nil
	case models.CodeStorageFailure:
		fields.Error = err.Error()
		logging.Error("activation_failed", fields)
		return failure(err), err
	default:
		g.refused.Add(1)
		fields.Status = string(code)
		logging.Info("activation_refused", fields)
		return failure(err), nil
	}
}

// Pause flips the dataset to PAUSED. No affordability check applies.
func (g *Guard) Pause(ctx context.Context, datasetID string, clientID models.WorkerID) (Result, error) {
	if err := assert.NotNil(g, "guard"); err != nil {
		return failure(models.ErrStorage), err
	}
	if clientID == "" {
		return failure(models.ErrUnauthorized), nil
	}
	err := g.db.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := ownedDataset(ctx, &tx.Queries, datasetID, clientID); err != nil {
			return err
		}
		return tx.SetDatasetStatus(ctx, datasetID, models.DatasetPaused)
	})
	if code := models.CodeOf(err); code != models.CodeOK {
		if code == models.CodeStorageFailure {
			return failure(err), err
		}
		return failure(err), nil
	}
	g.paused.Add(1)
	logging.Info("dataset_paused", logging.Fields{Component: "funding", DatasetID: datasetID, WorkerID: string(clientID)})
	return Result{Success: true, Code: models.CodeOK, Message: fmt.Sprintf("Dataset is now %s", models.DatasetPaused)}, nil
}

// Estimate reports what activating the dataset would require without changing it.
func (g *Guard) Estimate(ctx context.Context, datasetID string, clientID models.WorkerID) (*Estimate, error) {
	if clientID == "" {
		return nil, models.ErrUnauthorized
	}
	return g.estimate(ctx, &g.db.Queries, datasetID, clientID)
}

// Counters returns activation counters.
func (g *Guard) Counters() Counters {
	return Counters{Activated: g.activated.Load(), Refused: g.refused.Load(), Paused: g.paused.Load()}
}

func (g *Guard) estimate(ctx context.Context, q *store.Queries, datasetID string, clientID models.WorkerID) (*Estimate, error) {
	dataset, err := ownedDataset(ctx, q, datasetID, clientID)
	if err != nil {
		return nil, err
	}
	owner, err := q.GetUser(ctx, clientID)
	if err != nil {
		return nil, err
	}
	incomplete, err := q.CountIncompleteTasks(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if incomplete == 0 {
		return nil, fmt.Errorf("dataset %s: all tasks are already completed: %w", datasetID, models.ErrNothingToFund)
	}

	est := &Estimate{
		Incomplete:     incomplete,
		TasksToFund:    min(incomplete, g.batchSize),
		CurrentBalance: owner.Balance,
	}
	est.RequiredBalance = RequiredBalance(est.TasksToFund, dataset.RequiredVotes, dataset.Reward)
	est.Affordable = !owner.Balance.LessThan(est.RequiredBalance)
	if !est.Affordable {
		est.Shortfall = est.RequiredBalance.Sub(owner.Balance)
	}
	return est, nil
}

func ownedDataset(ctx context.Context, q *store.Queries, datasetID string, clientID models.WorkerID) (*models.Dataset, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("dataset id is empty: %w", models.ErrNotFound)
	}
	dataset, err := q.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if dataset.OwnerID != clientID {
		return nil, fmt.Errorf("dataset %s is not owned by %s: %w", datasetID, clientID, models.ErrForbidden)
	}
	return dataset, nil
}

func failure(err error) Result {
	code := models.CodeOf(err)
	return Result{Code: code, Message: messageFor(code)}
}

func messageFor(code models.Code) string {
	switch code {
	case models.CodeUnauthorized:
		return "Unauthorized."
	case models.CodeForbidden:
		return "Only the dataset owner can change its status."
	case models.CodeNotFound:
		return "Dataset not found."
	case models.CodeNothingToFund:
		return "All tasks are already completed."
	}
	return "Server error updating status."
}
