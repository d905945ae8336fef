package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/slyt3/Quorum/internal/assert"
	"github.com/slyt3/Quorum/internal/models"
)

const maxVoteRows = 100000

// GetVote returns the vote of worker on task, or models.ErrNotFound.
func (s *Queries) GetVote(ctx context.Context, workerID models.WorkerID, taskID string) (*models.Vote, error) {
	if err := assert.Check(workerID != "" && taskID != "", "worker and task must be set"); err != nil {
		return nil, err
	}
	var (
		v                   models.Vote
		worker              string
		isCorrect           sql.NullBool
		createdAt, updateAt string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, worker_id, task_id, selection, is_correct, created_at, updated_at
		FROM votes WHERE worker_id = ? AND task_id = ?`, string(workerID), taskID,
	).Scan(&v.ID, &worker, &v.TaskID, &v.Selection, &isCorrect, &createdAt, &updateAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vote of %s on %s: %w", workerID, taskID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying vote: %w", err)
	}
	v.WorkerID = models.WorkerID(worker)
	v.Answer = models.AnswerFromRow(nullBool(isCorrect))
	v.CreatedAt = parseTime(createdAt)
	v.UpdatedAt = parseTime(updateAt)
	return &v, nil
}

// InsertVote stores a first vote. A second insert for the same (worker, task)
// fails with a UNIQUE violation, which IsConflict reports as retryable.
func (s *Queries) InsertVote(ctx context.Context, v *models.Vote) error {
	if err := assert.NotNil(v, "vote"); err != nil {
		return err
	}
	if err := assert.Check(v.ID != "" && v.WorkerID != "" && v.TaskID != "", "vote id, worker and task must be set"); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO votes (id, worker_id, task_id, selection, is_correct, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, string(v.WorkerID), v.TaskID, v.Selection, models.IsCorrect(v.Answer),
		formatTime(v.CreatedAt), formatTime(v.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting vote: %w", err)
	}
	return nil
}

// UpdateVote amends selection and correctness in place.
func (s *Queries) UpdateVote(ctx context.Context, v *models.Vote) error {
	if err := assert.NotNil(v, "vote"); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE votes SET selection = ?, is_correct = ?, updated_at = ? WHERE id = ?`,
		v.Selection, models.IsCorrect(v.Answer), formatTime(v.UpdatedAt), v.ID)
	if err != nil {
		return fmt.Errorf("updating vote: %w", err)
	}
	return expectOneRow(res, "updating vote "+v.ID)
}

// CountVotes returns the number of vote rows for a task.
func (s *Queries) CountVotes(ctx context.Context, taskID string) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE task_id = ?`, taskID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting votes: %w", err)
	}
	return n, nil
}

// VotesForTask lists the votes on a task, oldest first.
func (s *Queries) VotesForTask(ctx context.Context, taskID string) (votes []models.Vote, err error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, worker_id, task_id, selection, is_correct, created_at, updated_at
		FROM votes WHERE task_id = ? ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying votes: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing vote rows: %w", closeErr)
		}
	}()

	for i := 0; i < maxVoteRows; i++ {
		if !rows.Next() {
			break
		}
		var (
			v                    models.Vote
			worker               string
			isCorrect            sql.NullBool
			createdAt, updatedAt string
		)
		if err := rows.Scan(&v.ID, &worker, &v.TaskID, &v.Selection, &isCorrect, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning vote: %w", err)
		}
		v.WorkerID = models.WorkerID(worker)
		v.Answer = models.AnswerFromRow(nullBool(isCorrect))
		v.CreatedAt = parseTime(createdAt)
		v.UpdatedAt = parseTime(updatedAt)
		votes = append(votes, v)
	}
	if err := assert.Check(rows.Err() == nil, "vote rows error: %v", rows.Err()); err != nil {
		return nil, err
	}
	return votes, nil
}

func nullBool(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}
