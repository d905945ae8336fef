// Package ledger runs vote submissions and deposits as single serializable
// units of work and records every balance change in a signed, hash-chained journal.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/assert"
	"github.com/slyt3/Quorum/internal/crypto"
	"github.com/slyt3/Quorum/internal/ledger/store"
	"github.com/slyt3/Quorum/internal/lifecycle"
	"github.com/slyt3/Quorum/internal/logging"
	"github.com/slyt3/Quorum/internal/models"
	"github.com/slyt3/Quorum/internal/settlement"
)

const (
	DefaultMaxAttempts  = 8
	DefaultRetryBackoff = 5 * time.Millisecond
	maxAttemptsLimit    = 1 << 10
)

// Options tunes conflict retries.
type Options struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

// VoteOutcome is the result of Submit. Business failures are reported here
// with Success false; the error return is reserved for storage failures.
type VoteOutcome struct {
	Success bool
	Code    models.Code
	Message string

	RewardApplied     decimal.Decimal
	ReputationApplied float64
	NewTotalBalance   decimal.Decimal

	Amended bool
	// Settled is true only for the submission that completed the task.
	Settled bool
	// IsCorrect is nil for standard tasks.
	IsCorrect *bool
}

// Engine is the vote and balance ledger.
type Engine struct {
	db      *store.DB
	signer  *crypto.Signer
	opts    Options
	metrics metrics
	now     func() time.Time
}

// NewEngine wires the engine to its store and journal signer.
func NewEngine(db *store.DB, signer *crypto.Signer, opts Options) (*Engine, error) {
	if err := assert.NotNil(db, "database"); err != nil {
		return nil, err
	}
	if err := assert.NotNil(signer, "signer"); err != nil {
		return nil, err
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if err := assert.InRange(opts.MaxAttempts, 1, maxAttemptsLimit, "max attempts"); err != nil {
		return nil, err
	}
	if err := assert.Check(opts.RetryBackoff > 0, "retry backoff must be positive"); err != nil {
		return nil, err
	}
	return &Engine{db: db, signer: signer, opts: opts, now: time.Now}, nil
}

type submission struct {
	settlement settlement.Settlement
	transition lifecycle.Transition
	voteID     string
}

// Submit records a worker's answer for a task, applies the settlement delta to
// the worker's balance and reputation, advances the task and journals the change.
// Everything happens in one transaction; conflicts are retried.
func (e *Engine) Submit(ctx context.Context, workerID models.WorkerID, taskID, selection string) (VoteOutcome, error) {
	if err := assert.NotNil(e, "engine"); err != nil {
		return failure(models.ErrStorage), err
	}
	if workerID == "" {
		return failure(models.ErrUnauthorized), nil
	}
	if taskID == "" {
		return failure(fmt.Errorf("task id is empty: %w", models.ErrNotFound)), nil
	}

	start := e.now()
	fields := logging.Fields{Component: "ledger", Method: "submit", WorkerID: string(workerID), TaskID: taskID}

	var sub submission
	err := e.retry(ctx, fields, func(tx *store.Tx) error {
		var err error
		sub, err = e.submitOnce(ctx, tx, workerID, taskID, selection)
		return err
	})
	if err != nil {
		out := failure(err)
		if out.Code == models.CodeStorageFailure {
			e.metrics.failures.Add(1)
			return out, err
		}
		fields.Status = string(out.Code)
		logging.Info("vote_rejected", fields)
		return out, nil
	}
	e.metrics.observe(e.now().Sub(start))

	s := sub.settlement
	if s.Amendment {
		e.metrics.amendments.Add(1)
	} else {
		e.metrics.firstVotes.Add(1)
	}
	if sub.transition.SettledNow {
		e.metrics.settlements.Add(1)
		logging.Info("task_settled", logging.Fields{Component: "ledger", TaskID: taskID, WorkerID: string(workerID)})
	}

	// Fresh read after commit: concurrent submissions may have moved the balance since.
	user, err := e.db.GetUser(ctx, workerID)
	if err != nil {
		e.metrics.failures.Add(1)
		return failure(err), err
	}
	if user.Balance.IsNegative() {
		logging.Warn("balance_negative", logging.Fields{Component: "ledger", WorkerID: string(workerID), Status: user.Balance.String()})
	}

	out := VoteOutcome{
		Success:           true,
		Code:              models.CodeOK,
		Message:           "Vote recorded",
		RewardApplied:     s.Delta.Reward,
		ReputationApplied: s.Delta.Reputation,
		NewTotalBalance:   user.Balance,
		Amended:           s.Amendment,
		Settled:           sub.transition.SettledNow,
		IsCorrect:         models.IsCorrect(s.Answer),
	}
	if s.Amendment {
		out.Message = "Vote updated"
	}
	fields.Status = out.Message
	logging.Debug("vote_applied", fields)
	return out, nil
}

func (e *Engine) submitOnce(ctx context.Context, tx *store.Tx, workerID models.WorkerID, taskID, selection string) (submission, error) {
	task, err := tx.GetTask(ctx, taskID)
	if err != nil {
		return submission{}, err
	}
	dataset, err := tx.GetDataset(ctx, task.DatasetID)
	if err != nil {
		return submission{}, err
	}
	if err := tx.EnsureUser(ctx, workerID, models.RoleWorker); err != nil {
		return submission{}, err
	}

	var previous models.Answer
	existing, err := tx.GetVote(ctx, workerID, taskID)
	switch {
	case err == nil:
		previous = existing.Answer
	case errors.Is(err, models.ErrNotFound):
		existing = nil
	default:
		return submission{}, err
	}

	s := settlement.Calculate(task.Kind, dataset.Reward, previous, selection)
	now := e.now().UTC()

	var voteID string
	if existing == nil {
		id, err := uuid.NewV7()
		if err != nil {
			return submission{}, fmt.Errorf("generating vote id: %w", err)
		}
		vote := &models.Vote{
			ID:        id.String(),
			WorkerID:  workerID,
			TaskID:    taskID,
			Selection: selection,
			Answer:    s.Answer,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertVote(ctx, vote); err != nil {
			return submission{}, err
		}
		voteID = vote.ID
	} else {
		existing.Selection = selection
		existing.Answer = s.Answer
		existing.UpdatedAt = now
		if err := tx.UpdateVote(ctx, existing); err != nil {
			return submission{}, err
		}
		voteID = existing.ID
	}

	tr := lifecycle.Step(task.State, dataset.RequiredVotes, existing == nil)
	if tr.Changed() {
		if err := tx.AdvanceTask(ctx, taskID, task.State, tr.Next); err != nil {
			return submission{}, err
		}
	}

	balanceAfter, err := tx.ApplyDelta(ctx, workerID, s.Delta.Reward, s.Delta.Reputation)
	if err != nil {
		return submission{}, err
	}

	kind := models.JournalVote
	if s.Amendment {
		kind = models.JournalAmendment
	}
	entry := &models.JournalEntry{
		Kind:            kind,
		UserID:          workerID,
		TaskID:          taskID,
		VoteID:          voteID,
		BalanceDelta:    s.Delta.Reward,
		ReputationDelta: s.Delta.Reputation,
		BalanceAfter:    balanceAfter,
		Note:            selection,
		Timestamp:       now,
	}
	if err := e.appendEntry(ctx, tx, entry); err != nil {
		return submission{}, err
	}
	return submission{settlement: s, transition: tr, voteID: voteID}, nil
}

// Deposit credits a user's balance. Amount must be positive.
func (e *Engine) Deposit(ctx context.Context, userID models.WorkerID, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := assert.NotNil(e, "engine"); err != nil {
		return decimal.Zero, err
	}
	if userID == "" {
		return decimal.Zero, models.ErrUnauthorized
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("deposit amount %s: %w", amount, models.ErrInvalid)
	}

	fields := logging.Fields{Component: "ledger", Method: "deposit", WorkerID: string(userID)}
	var balance decimal.Decimal
	err := e.retry(ctx, fields, func(tx *store.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		after, err := tx.ApplyDelta(ctx, userID, amount, 0)
		if err != nil {
			return err
		}
		balance = after
		return e.appendEntry(ctx, tx, &models.JournalEntry{
			Kind:         models.JournalDeposit,
			UserID:       userID,
			BalanceDelta: amount,
			BalanceAfter: after,
		})
	})
	if err != nil {
		if models.CodeOf(err) == models.CodeStorageFailure {
			e.metrics.failures.Add(1)
		}
		return decimal.Zero, err
	}
	e.metrics.deposits.Add(1)
	fields.Status = balance.String()
	logging.Info("deposit_applied", fields)
	return balance, nil
}

// Balance returns the user's current balance and reputation.
func (e *Engine) Balance(ctx context.Context, userID models.WorkerID) (*models.User, error) {
	if userID == "" {
		return nil, models.ErrUnauthorized
	}
	return e.db.GetUser(ctx, userID)
}

// retry runs fn in a fresh transaction until it commits, fails for a
// non-conflict reason, or attempts run out. Exhaustion is a storage failure.
func (e *Engine) retry(ctx context.Context, fields logging.Fields, fn func(tx *store.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		err := e.db.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !store.IsConflict(err) {
			return err
		}
		lastErr = err
		e.metrics.conflicts.Add(1)
		fields.Attempt = attempt
		fields.Error = err.Error()
		logging.Debug("transaction_conflict", fields)

		timer := time.NewTimer(time.Duration(attempt) * e.opts.RetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", models.ErrStorage, ctx.Err())
		case <-timer.C:
		}
	}
	fields.Error = lastErr.Error()
	logging.Error("transaction_retries_exhausted", fields)
	return fmt.Errorf("%w: gave up after %d attempts: %v", models.ErrStorage, e.opts.MaxAttempts, lastErr)
}

func failure(err error) VoteOutcome {
	code := models.CodeOf(err)
	return VoteOutcome{Success: false, Code: code, Message: messageFor(code)}
}

func messageFor(code models.Code) string {
	switch code {
	case models.CodeUnauthorized:
		return "Not authenticated"
	case models.CodeNotFound:
		return "Task not found"
	case models.CodeInvalid:
		return "Invalid submission"
	default:
		return "Something went wrong. Please try again."
	}
}
