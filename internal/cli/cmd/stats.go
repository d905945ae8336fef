package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/slyt3/Quorum/internal/funding"
)

// Stats prints global counters, or one dataset's progress and funding position.
func Stats(ctx context.Context, env *Env, out io.Writer, datasetID string) error {
	if datasetID == "" {
		g, err := env.DB.GetGlobalStats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Ledger Statistics")
		fmt.Fprintln(out, "=================")
		fmt.Fprintf(out, "Users:           %d\n", g.Users)
		fmt.Fprintf(out, "Datasets:        %d\n", g.Datasets)
		fmt.Fprintf(out, "Tasks:           %d\n", g.Tasks)
		fmt.Fprintf(out, "Votes:           %d\n", g.Votes)
		fmt.Fprintf(out, "Journal entries: %d\n", g.JournalEntries)
		return nil
	}

	d, err := env.DB.GetDataset(ctx, datasetID)
	if err != nil {
		return err
	}
	s, err := env.DB.GetDatasetStats(ctx, datasetID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Dataset %s (%s)\n", d.Title, d.Status)
	fmt.Fprintln(out, "=================")
	fmt.Fprintf(out, "Tasks:        %d total, %d completed, %d open\n", s.TotalTasks, s.CompletedTasks, s.IncompleteTasks)
	fmt.Fprintf(out, "Votes:        %d\n", s.TotalVotes)
	if s.ValidationVotes > 0 {
		fmt.Fprintf(out, "Gold accuracy: %.1f%% (%d/%d)\n", s.ValidationAcc*100, s.CorrectVotes, s.ValidationVotes)
	}

	guard, err := funding.NewGuard(env.DB, env.Config.Funding.BatchSize)
	if err != nil {
		return err
	}
	if est, err := guard.Estimate(ctx, datasetID, d.OwnerID); err == nil {
		fmt.Fprintf(out, "Next batch:   %d tasks need %s credits (owner has %s)\n", est.TasksToFund, est.RequiredBalance, est.CurrentBalance)
	}
	return nil
}
