// Package catalog manages datasets and their tasks on behalf of the owning client.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/assert"
	"github.com/slyt3/Quorum/internal/ledger/store"
	"github.com/slyt3/Quorum/internal/logging"
	"github.com/slyt3/Quorum/internal/models"
)

const (
	maxOptions       = 64
	maxTasksPerBatch = 10000
	maxRequiredVotes = 1000
)

// NewDataset is the client's input for CreateDataset.
type NewDataset struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	DataType      models.DataType `json:"data_type"`
	Question      string          `json:"question"`
	Options       []string        `json:"options"`
	Reward        decimal.Decimal `json:"reward"`
	RequiredVotes int             `json:"required_votes"`
}

// DetailsUpdate changes the editable fields. Nil fields are left as they are.
type DetailsUpdate struct {
	Title         *string `json:"title,omitempty"`
	Description   *string `json:"description,omitempty"`
	RequiredVotes *int    `json:"required_votes,omitempty"`
}

// Catalog is the owner-checked dataset service.
type Catalog struct {
	db  *store.DB
	now func() time.Time
}

func New(db *store.DB) (*Catalog, error) {
	if err := assert.NotNil(db, "database"); err != nil {
		return nil, err
	}
	return &Catalog{db: db, now: time.Now}, nil
}

// CreateDataset registers a new dataset in DRAFT. It becomes open for work
// only through the funding guard.
func (c *Catalog) CreateDataset(ctx context.Context, ownerID models.WorkerID, in NewDataset) (*models.Dataset, error) {
	if ownerID == "" {
		return nil, models.ErrUnauthorized
	}
	if err := validateNew(&in); err != nil {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generating dataset id: %w", err)
	}
	d := &models.Dataset{
		ID:            id.String(),
		OwnerID:       ownerID,
		Title:         in.Title,
		Description:   in.Description,
		DataType:      in.DataType,
		Question:      in.Question,
		Options:       in.Options,
		Reward:        in.Reward,
		RequiredVotes: in.RequiredVotes,
		Status:        models.DatasetDraft,
		CreatedAt:     c.now().UTC(),
	}
	err = c.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.EnsureUser(ctx, ownerID, models.RoleClient); err != nil {
			return err
		}
		owner, err := tx.GetUser(ctx, ownerID)
		if err != nil {
			return err
		}
		if owner.Role != models.RoleClient {
			return fmt.Errorf("only clients can create datasets: %w", models.ErrForbidden)
		}
		return tx.InsertDataset(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	logging.Info("dataset_created", logging.Fields{Component: "catalog", DatasetID: d.ID, WorkerID: string(ownerID)})
	return d, nil
}

// AddTasks appends standard tasks, one per content item.
func (c *Catalog) AddTasks(ctx context.Context, datasetID string, ownerID models.WorkerID, contents []string) (int, error) {
	if err := assert.Check(len(contents) <= maxTasksPerBatch, "too many tasks in one upload: %d", len(contents)); err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	var added int
	err := c.withOwned(ctx, datasetID, ownerID, func(tx *store.Tx, d *models.Dataset) error {
		tasks := make([]models.Task, 0, len(contents))
		for _, content := range contents {
			if strings.TrimSpace(content) == "" {
				continue
			}
			t, err := c.newTask(d, content, models.StandardTask{})
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
		added = len(tasks)
		return tx.InsertTasks(ctx, tasks)
	})
	if err != nil {
		return 0, err
	}
	logging.Info("tasks_added", logging.Fields{Component: "catalog", DatasetID: datasetID, Status: fmt.Sprint(added)})
	return added, nil
}

// AddValidationTask adds a task with a known correct answer, which must be one of the dataset options.
func (c *Catalog) AddValidationTask(ctx context.Context, datasetID string, ownerID models.WorkerID, content, correctAnswer string) (*models.Task, error) {
	if content == "" || correctAnswer == "" {
		return nil, fmt.Errorf("content and correct answer are required: %w", models.ErrInvalid)
	}
	var task models.Task
	err := c.withOwned(ctx, datasetID, ownerID, func(tx *store.Tx, d *models.Dataset) error {
		if !d.HasOption(correctAnswer) {
			return fmt.Errorf("the correct answer must be one of [%s]: %w", strings.Join(d.Options, ", "), models.ErrInvalid)
		}
		t, err := c.newTask(d, content, models.ValidationTask{CorrectAnswer: correctAnswer})
		if err != nil {
			return err
		}
		task = t
		return tx.InsertTasks(ctx, []models.Task{task})
	})
	if err != nil {
		return nil, err
	}
	logging.Info("validation_task_added", logging.Fields{Component: "catalog", DatasetID: datasetID, TaskID: task.ID})
	return &task, nil
}

// UpdateDetails edits title, description or quorum. A lower quorum does not
// settle tasks retroactively; they settle on their next first vote.
func (c *Catalog) UpdateDetails(ctx context.Context, datasetID string, ownerID models.WorkerID, upd DetailsUpdate) (*models.Dataset, error) {
	var out *models.Dataset
	err := c.withOwned(ctx, datasetID, ownerID, func(tx *store.Tx, d *models.Dataset) error {
		if upd.Title != nil {
			if strings.TrimSpace(*upd.Title) == "" {
				return fmt.Errorf("title must not be empty: %w", models.ErrInvalid)
			}
			d.Title = *upd.Title
		}
		if upd.Description != nil {
			d.Description = *upd.Description
		}
		if upd.RequiredVotes != nil {
			if err := assert.InRange(*upd.RequiredVotes, 1, maxRequiredVotes, "required votes"); err != nil {
				return fmt.Errorf("%w: %v", models.ErrInvalid, err)
			}
			d.RequiredVotes = *upd.RequiredVotes
		}
		out = d
		return tx.UpdateDatasetDetails(ctx, d.ID, d.Title, d.Description, d.RequiredVotes)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAllTasks removes every task of the dataset together with its votes.
// Balances already paid for those votes are not reversed.
func (c *Catalog) DeleteAllTasks(ctx context.Context, datasetID string, ownerID models.WorkerID) (int64, error) {
	var n int64
	err := c.withOwned(ctx, datasetID, ownerID, func(tx *store.Tx, _ *models.Dataset) error {
		var err error
		n, err = tx.DeleteTasks(ctx, datasetID)
		return err
	})
	if err != nil {
		return 0, err
	}
	logging.Warn("tasks_deleted", logging.Fields{Component: "catalog", DatasetID: datasetID, WorkerID: string(ownerID), Status: fmt.Sprint(n)})
	return n, nil
}

// Stats returns progress counters for an owned dataset.
func (c *Catalog) Stats(ctx context.Context, datasetID string, ownerID models.WorkerID) (*store.DatasetStats, error) {
	if _, err := c.owned(ctx, &c.db.Queries, datasetID, ownerID); err != nil {
		return nil, err
	}
	return c.db.GetDatasetStats(ctx, datasetID)
}

func (c *Catalog) withOwned(ctx context.Context, datasetID string, ownerID models.WorkerID, fn func(tx *store.Tx, d *models.Dataset) error) error {
	return c.db.WithTx(ctx, func(tx *store.Tx) error {
		d, err := c.owned(ctx, &tx.Queries, datasetID, ownerID)
		if err != nil {
			return err
		}
		return fn(tx, d)
	})
}

func (c *Catalog) owned(ctx context.Context, q *store.Queries, datasetID string, ownerID models.WorkerID) (*models.Dataset, error) {
	if ownerID == "" {
		return nil, models.ErrUnauthorized
	}
	if datasetID == "" {
		return nil, fmt.Errorf("dataset id is empty: %w", models.ErrNotFound)
	}
	d, err := q.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if d.OwnerID != ownerID {
		return nil, fmt.Errorf("you do not own dataset %s: %w", datasetID, models.ErrForbidden)
	}
	return d, nil
}

// newTask builds a task row. Image datasets also carry the content as the image URL.
func (c *Catalog) newTask(d *models.Dataset, content string, kind models.TaskKind) (models.Task, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return models.Task{}, fmt.Errorf("generating task id: %w", err)
	}
	t := models.Task{
		ID:        id.String(),
		DatasetID: d.ID,
		Content:   content,
		Kind:      kind,
		State:     models.Open{},
		CreatedAt: c.now().UTC(),
	}
	if d.DataType == models.DataImage {
		t.ImageURLs = []string{content}
	}
	return t, nil
}

func validateNew(in *NewDataset) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Question = strings.TrimSpace(in.Question)
	switch {
	case in.Title == "":
		return fmt.Errorf("title is required: %w", models.ErrInvalid)
	case in.Question == "":
		return fmt.Errorf("question is required: %w", models.ErrInvalid)
	case in.DataType != models.DataText && in.DataType != models.DataImage:
		return fmt.Errorf("data type %q: %w", in.DataType, models.ErrInvalid)
	case in.Reward.IsNegative():
		return fmt.Errorf("reward must not be negative: %w", models.ErrInvalid)
	}
	if err := assert.InRange(in.RequiredVotes, 1, maxRequiredVotes, "required votes"); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	if err := assert.InRange(len(in.Options), 1, maxOptions, "options"); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	seen := make(map[string]bool, len(in.Options))
	for _, o := range in.Options {
		if o == "" || seen[o] {
			return fmt.Errorf("options must be non-empty and distinct: %w", models.ErrInvalid)
		}
		seen[o] = true
	}
	return nil
}
