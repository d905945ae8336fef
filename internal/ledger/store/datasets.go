package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/assert"
	"github.com/slyt3/Quorum/internal/models"
)

// InsertDataset stores a new dataset.
func (s *Queries) InsertDataset(ctx context.Context, d *models.Dataset) error {
	if err := assert.NotNil(d, "dataset"); err != nil {
		return err
	}
	if err := assert.Check(d.ID != "" && d.OwnerID != "", "dataset id and owner must be set"); err != nil {
		return err
	}
	if err := assert.Check(d.RequiredVotes >= 1, "required votes must be at least 1"); err != nil {
		return err
	}
	options, err := json.Marshal(d.Options)
	if err != nil {
		return fmt.Errorf("marshaling options: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO datasets (id, owner_id, title, description, data_type, question, options,
		                      reward, required_votes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, string(d.OwnerID), d.Title, d.Description, string(d.DataType), d.Question, string(options),
		d.Reward.String(), d.RequiredVotes, string(d.Status), formatTime(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting dataset: %w", err)
	}
	return nil
}

// GetDataset loads a dataset by id.
func (s *Queries) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	if err := assert.Check(id != "", "dataset id must not be empty"); err != nil {
		return nil, err
	}
	var (
		d                                models.Dataset
		owner, dataType, options, reward string
		status, createdAt                string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, owner_id, title, description, data_type, question, options,
		       reward, required_votes, status, created_at
		FROM datasets WHERE id = ?`, id,
	).Scan(&d.ID, &owner, &d.Title, &d.Description, &dataType, &d.Question, &options,
		&reward, &d.RequiredVotes, &status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying dataset: %w", err)
	}
	d.OwnerID = models.WorkerID(owner)
	d.DataType = models.DataType(dataType)
	d.Status = models.DatasetStatus(status)
	d.CreatedAt = parseTime(createdAt)
	if err := json.Unmarshal([]byte(options), &d.Options); err != nil {
		return nil, fmt.Errorf("parsing options of dataset %s: %w", id, err)
	}
	if d.Reward, err = decimal.NewFromString(reward); err != nil {
		return nil, fmt.Errorf("parsing reward of dataset %s: %w", id, err)
	}
	return &d, nil
}

// SetDatasetStatus overwrites the dataset status.
func (s *Queries) SetDatasetStatus(ctx context.Context, id string, status models.DatasetStatus) error {
	if err := assert.Check(status.Valid(), "invalid dataset status %q", status); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `UPDATE datasets SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("updating dataset status: %w", err)
	}
	return expectOneRow(res, "updating status of dataset "+id)
}

// UpdateDatasetDetails changes the client-editable fields.
func (s *Queries) UpdateDatasetDetails(ctx context.Context, id, title, description string, requiredVotes int) error {
	if err := assert.Check(requiredVotes >= 1, "required votes must be at least 1"); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE datasets SET title = ?, description = ?, required_votes = ? WHERE id = ?`,
		title, description, requiredVotes, id)
	if err != nil {
		return fmt.Errorf("updating dataset: %w", err)
	}
	return expectOneRow(res, "updating dataset "+id)
}
