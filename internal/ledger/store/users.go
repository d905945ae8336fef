package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/assert"
	"github.com/slyt3/Quorum/internal/models"
)

// EnsureUser creates the user on first contact and leaves an existing row untouched.
func (s *Queries) EnsureUser(ctx context.Context, id models.WorkerID, role models.Role) error {
	if err := assert.Check(id != "", "user id must not be empty"); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (id, role, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING`, string(id), string(role), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("ensuring user: %w", err)
	}
	return nil
}

// UpsertExternalUser maps an identity-provider id to a stable user id, creating the user if needed.
func (s *Queries) UpsertExternalUser(ctx context.Context, externalID, username string, role models.Role) (models.WorkerID, error) {
	if err := assert.Check(externalID != "", "external id must not be empty"); err != nil {
		return "", err
	}
	var id string
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO users (id, external_id, username, role, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET username = excluded.username
		RETURNING id`,
		uuid.NewString(), externalID, username, string(role), formatTime(time.Now()),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting user: %w", err)
	}
	return models.WorkerID(id), nil
}

// GetUser loads a user by id.
func (s *Queries) GetUser(ctx context.Context, id models.WorkerID) (*models.User, error) {
	if err := assert.Check(id != "", "user id must not be empty"); err != nil {
		return nil, err
	}
	var (
		u          models.User
		externalID sql.NullString
		uid, role  string
		balance    string
		createdAt  string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, external_id, username, role, balance, reputation, created_at
		FROM users WHERE id = ?`, string(id),
	).Scan(&uid, &externalID, &u.Username, &role, &balance, &u.Reputation, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	u.ID = models.WorkerID(uid)
	u.ExternalID = externalID.String
	u.Role = models.Role(role)
	u.CreatedAt = parseTime(createdAt)
	if u.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parsing balance of user %s: %w", id, err)
	}
	return &u, nil
}

// SetRole changes a user's role, e.g. when a worker registers as a client.
func (s *Queries) SetRole(ctx context.Context, id models.WorkerID, role models.Role) error {
	res, err := s.q.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, string(role), string(id))
	if err != nil {
		return fmt.Errorf("setting role: %w", err)
	}
	return expectOneRow(res, "setting role of user "+string(id))
}

// ApplyDelta increments balance and reputation and returns the new balance.
// The balance is decimal text, so the increment is a compare-and-swap on the
// value read; a concurrent change yields models.ErrConflict.
func (s *Queries) ApplyDelta(ctx context.Context, id models.WorkerID, balanceDelta decimal.Decimal, reputationDelta float64) (decimal.Decimal, error) {
	if err := assert.Check(id != "", "user id must not be empty"); err != nil {
		return decimal.Zero, err
	}
	var raw string
	err := s.q.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, string(id)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading balance: %w", err)
	}
	current, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing balance of user %s: %w", id, err)
	}
	next := current.Add(balanceDelta)

	res, err := s.q.ExecContext(ctx, `
		UPDATE users SET balance = ?, reputation = reputation + ?
		WHERE id = ? AND balance = ?`,
		next.String(), reputationDelta, string(id), raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("applying delta: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return decimal.Zero, fmt.Errorf("applying delta: rows affected: %w", err)
	}
	if rows != 1 {
		return decimal.Zero, fmt.Errorf("balance of user %s changed concurrently: %w", id, models.ErrConflict)
	}
	return next, nil
}
