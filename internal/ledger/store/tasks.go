package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/slyt3/Quorum/internal/assert"
	"github.com/slyt3/Quorum/internal/models"
)

const maxTaskRows = 100000

// InsertTasks stores tasks in bulk. Tasks start Open with zero votes.
func (s *Queries) InsertTasks(ctx context.Context, tasks []models.Task) error {
	if err := assert.Check(len(tasks) <= maxTaskRows, "too many tasks in one batch: %d", len(tasks)); err != nil {
		return err
	}
	for i := range tasks {
		t := &tasks[i]
		if err := assert.Check(t.ID != "" && t.DatasetID != "", "task id and dataset must be set"); err != nil {
			return err
		}
		urls, err := json.Marshal(nonNil(t.ImageURLs))
		if err != nil {
			return fmt.Errorf("marshaling image urls: %w", err)
		}
		if t.State == nil {
			t.State = models.Open{}
		}
		isValidation, correctAnswer := models.KindColumns(t.Kind)
		_, err = s.q.ExecContext(ctx, `
			INSERT INTO tasks (id, dataset_id, content, image_urls, status, collected_votes,
			                   is_validation, correct_answer, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.DatasetID, t.Content, string(urls), string(t.Status()), t.CollectedVotes(),
			isValidation, correctAnswer, formatTime(t.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting task %s: %w", t.ID, err)
		}
	}
	return nil
}

const taskColumns = `id, dataset_id, content, image_urls, status, collected_votes,
		       is_validation, correct_answer, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// GetTask loads a task by id.
func (s *Queries) GetTask(ctx context.Context, id string) (*models.Task, error) {
	if err := assert.Check(id != "", "task id must not be empty"); err != nil {
		return nil, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}
	return t, nil
}

// VotedStandardTasks lists the non-validation tasks of a dataset that have at
// least one vote, oldest first. Export reads these to resolve majorities.
func (s *Queries) VotedStandardTasks(ctx context.Context, datasetID string) (tasks []models.Task, err error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE dataset_id = ? AND is_validation = 0 AND collected_votes > 0
		ORDER BY created_at ASC, id ASC`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing task rows: %w", closeErr)
		}
	}()

	for i := 0; i < maxTaskRows; i++ {
		if !rows.Next() {
			break
		}
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := assert.Check(rows.Err() == nil, "task rows error: %v", rows.Err()); err != nil {
		return nil, err
	}
	return tasks, nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t                       models.Task
		urls, status, createdAt string
		collected               int
		isValidation            bool
		correctAnswer           sql.NullString
	)
	err := row.Scan(&t.ID, &t.DatasetID, &t.Content, &urls, &status, &collected,
		&isValidation, &correctAnswer, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(urls), &t.ImageURLs); err != nil {
		return nil, fmt.Errorf("parsing image urls of task %s: %w", t.ID, err)
	}
	var answer *string
	if correctAnswer.Valid {
		answer = &correctAnswer.String
	}
	t.Kind = models.KindFromRow(isValidation, answer)
	t.State = models.StateFromRow(models.TaskStatus(status), collected)
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

// AdvanceTask persists a lifecycle transition as a compare-and-swap on the
// state read earlier in the same unit of work. A mismatch is models.ErrConflict.
func (s *Queries) AdvanceTask(ctx context.Context, id string, from, to models.TaskState) error {
	if err := assert.Check(from != nil && to != nil, "task states must not be nil"); err != nil {
		return err
	}
	if err := assert.Check(to.Votes() >= from.Votes(), "vote count must not decrease: %d -> %d", from.Votes(), to.Votes()); err != nil {
		return err
	}
	fromTask, toTask := models.Task{State: from}, models.Task{State: to}
	if err := assert.Check(fromTask.Status() != models.TaskCompleted || toTask.Status() == models.TaskCompleted, "settled task must not reopen"); err != nil {
		return err
	}

	// Open tasks may be stored as ACTIVE or PENDING; both are the same state.
	res, err := s.q.ExecContext(ctx, `
		UPDATE tasks SET collected_votes = ?, status = CASE WHEN ? = 'COMPLETED' THEN 'COMPLETED' ELSE status END
		WHERE id = ? AND collected_votes = ? AND (status = 'COMPLETED') = ?`,
		to.Votes(), string(toTask.Status()), id, from.Votes(), fromTask.Status() == models.TaskCompleted)
	if err != nil {
		return fmt.Errorf("advancing task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advancing task: rows affected: %w", err)
	}
	if rows != 1 {
		return fmt.Errorf("task %s changed concurrently: %w", id, models.ErrConflict)
	}
	return nil
}

// CountIncompleteTasks counts tasks of a dataset that are not COMPLETED.
func (s *Queries) CountIncompleteTasks(ctx context.Context, datasetID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks WHERE dataset_id = ? AND status != 'COMPLETED'`, datasetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting incomplete tasks: %w", err)
	}
	return n, nil
}

// DeleteTasks removes every task of a dataset; their votes cascade.
func (s *Queries) DeleteTasks(ctx context.Context, datasetID string) (int64, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM tasks WHERE dataset_id = ?`, datasetID)
	if err != nil {
		return 0, fmt.Errorf("deleting tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting tasks: rows affected: %w", err)
	}
	return n, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
