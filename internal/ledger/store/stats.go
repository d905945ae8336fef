package store

import (
	"context"
	"fmt"

	"github.com/slyt3/Quorum/internal/assert"
)

// DatasetStats summarizes labeling progress for a dataset dashboard.
type DatasetStats struct {
	DatasetID       string  `json:"dataset_id"`
	TotalTasks      int     `json:"total_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	IncompleteTasks int     `json:"incomplete_tasks"`
	ValidationTasks int     `json:"validation_tasks"`
	TotalVotes      int     `json:"total_votes"`
	ValidationVotes int     `json:"validation_votes"`
	CorrectVotes    int     `json:"correct_votes"`
	ValidationAcc   float64 `json:"validation_accuracy"`
}

// GlobalStats counts rows across the ledger.
type GlobalStats struct {
	Users          int `json:"users"`
	Datasets       int `json:"datasets"`
	Tasks          int `json:"tasks"`
	Votes          int `json:"votes"`
	JournalEntries int `json:"journal_entries"`
}

// GetDatasetStats returns progress counters for one dataset
func (s *Queries) GetDatasetStats(ctx context.Context, datasetID string) (*DatasetStats, error) {
	if err := assert.Check(datasetID != "", "dataset id must not be empty"); err != nil {
		return nil, err
	}
	stats := &DatasetStats{DatasetID: datasetID}

	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'COMPLETED' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_validation = 1 THEN 1 ELSE 0 END), 0)
		FROM tasks WHERE dataset_id = ?`, datasetID,
	).Scan(&stats.TotalTasks, &stats.CompletedTasks, &stats.ValidationTasks)
	if err != nil {
		return nil, fmt.Errorf("counting tasks: %w", err)
	}
	stats.IncompleteTasks = stats.TotalTasks - stats.CompletedTasks

	err = s.q.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN v.is_correct IS NOT NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN v.is_correct = 1 THEN 1 ELSE 0 END), 0)
		FROM votes v JOIN tasks t ON t.id = v.task_id
		WHERE t.dataset_id = ?`, datasetID,
	).Scan(&stats.TotalVotes, &stats.ValidationVotes, &stats.CorrectVotes)
	if err != nil {
		return nil, fmt.Errorf("counting votes: %w", err)
	}
	if stats.ValidationVotes > 0 {
		stats.ValidationAcc = float64(stats.CorrectVotes) / float64(stats.ValidationVotes)
	}
	return stats, nil
}

// GetGlobalStats returns overall statistics
func (s *Queries) GetGlobalStats(ctx context.Context) (*GlobalStats, error) {
	stats := &GlobalStats{}
	counts := []struct {
		table string
		dst   *int
	}{
		{"users", &stats.Users},
		{"datasets", &stats.Datasets},
		{"tasks", &stats.Tasks},
		{"votes", &stats.Votes},
		{"journal", &stats.JournalEntries},
	}
	for _, c := range counts {
		if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}
	return stats, nil
}
