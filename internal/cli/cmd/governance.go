package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/funding"
	"github.com/slyt3/Quorum/internal/models"
)

// Fund tops up a user's balance.
func Fund(ctx context.Context, env *Env, out io.Writer, userID, amount string) error {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("amount %q: %w", amount, models.ErrInvalid)
	}
	balance, err := env.Engine.Deposit(ctx, models.WorkerID(userID), value)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Credited %s to %s (balance: %s)\n", value, userID, balance)
	return nil
}

// Activate runs the funding guard on behalf of the dataset owner.
func Activate(ctx context.Context, env *Env, out io.Writer, datasetID string) error {
	d, err := env.DB.GetDataset(ctx, datasetID)
	if err != nil {
		return err
	}
	guard, err := funding.NewGuard(env.DB, env.Config.Funding.BatchSize)
	if err != nil {
		return err
	}
	res, err := guard.TryActivate(ctx, datasetID, d.OwnerID)
	if err != nil {
		return err
	}
	if !res.Success {
		fmt.Fprintf(out, "✗ %s\n", res.Message)
		return fmt.Errorf("activation refused: %s", res.Code)
	}
	fmt.Fprintf(out, "✓ %s\n", res.Message)
	return nil
}

// SetRole changes a user's role.
func SetRole(ctx context.Context, env *Env, out io.Writer, userID, role string) error {
	r := models.Role(role)
	if r != models.RoleWorker && r != models.RoleClient {
		return fmt.Errorf("role must be %s or %s: %w", models.RoleWorker, models.RoleClient, models.ErrInvalid)
	}
	if err := env.DB.SetRole(ctx, models.WorkerID(userID), r); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ %s is now %s\n", userID, r)
	return nil
}

// Journal lists a user's journal entries.
func Journal(ctx context.Context, env *Env, out io.Writer, userID string) error {
	entries, err := env.Engine.Journal(ctx, models.WorkerID(userID))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Journal for %s (%d entries)\n", userID, len(entries))
	for _, e := range entries {
		fmt.Fprintf(out, "[%d] %-9s %8s  rep %+.1f  balance %s  %s\n",
			e.SeqIndex, e.Kind, e.BalanceDelta, e.ReputationDelta, e.BalanceAfter, e.CurrentHash[:16])
	}
	return nil
}
