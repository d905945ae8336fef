package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/assert"
	"github.com/slyt3/Quorum/internal/models"
)

const maxJournalRows = 1 << 22

// LastEntry returns the head of the journal chain. found is false for an empty journal.
func (s *Queries) LastEntry(ctx context.Context) (seqIndex int64, currentHash string, found bool, err error) {
	err = s.q.QueryRowContext(ctx, `
		SELECT seq_index, current_hash FROM journal ORDER BY seq_index DESC LIMIT 1`,
	).Scan(&seqIndex, &currentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, fmt.Errorf("querying last journal entry: %w", err)
	}
	return seqIndex, currentHash, true, nil
}

// InsertEntry appends a hashed and signed entry. A duplicate seq_index means
// another writer appended first and surfaces as a UNIQUE conflict.
func (s *Queries) InsertEntry(ctx context.Context, e *models.JournalEntry) error {
	if err := assert.NotNil(e, "journal entry"); err != nil {
		return err
	}
	if err := assert.Check(e.ID != "", "entry id must not be empty"); err != nil {
		return err
	}
	if err := assert.Check(e.CurrentHash != "", "current hash must not be empty"); err != nil {
		return err
	}
	if err := assert.Check(e.Signature != "", "signature must not be empty"); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO journal (id, seq_index, kind, user_id, task_id, vote_id, balance_delta,
		                     reputation_delta, balance_after, note, timestamp, prev_hash, current_hash, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SeqIndex, string(e.Kind), string(e.UserID), e.TaskID, e.VoteID, e.BalanceDelta.String(),
		e.ReputationDelta, e.BalanceAfter.String(), e.Note, formatTime(e.Timestamp),
		e.PrevHash, e.CurrentHash, e.Signature,
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return expectOneRow(res, "inserting journal entry "+e.ID)
}

// AllEntries returns the journal ordered by sequence.
func (s *Queries) AllEntries(ctx context.Context) ([]models.JournalEntry, error) {
	return s.entries(ctx, `WHERE 1 = 1`)
}

// EntriesForUser returns one user's journal entries ordered by sequence.
func (s *Queries) EntriesForUser(ctx context.Context, userID models.WorkerID) ([]models.JournalEntry, error) {
	if err := assert.Check(userID != "", "user id must not be empty"); err != nil {
		return nil, err
	}
	return s.entries(ctx, `WHERE user_id = ?`, string(userID))
}

func (s *Queries) entries(ctx context.Context, where string, args ...interface{}) (entries []models.JournalEntry, err error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, seq_index, kind, user_id, task_id, vote_id, balance_delta, reputation_delta,
		       balance_after, note, timestamp, prev_hash, current_hash, signature
		FROM journal `+where+` ORDER BY seq_index ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing journal rows: %w", closeErr)
		}
	}()

	for i := 0; i < maxJournalRows; i++ {
		if !rows.Next() {
			break
		}
		var (
			e                       models.JournalEntry
			kind, userID, timestamp string
			delta, after            string
		)
		err := rows.Scan(&e.ID, &e.SeqIndex, &kind, &userID, &e.TaskID, &e.VoteID, &delta,
			&e.ReputationDelta, &after, &e.Note, &timestamp, &e.PrevHash, &e.CurrentHash, &e.Signature)
		if err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.Kind = models.JournalKind(kind)
		e.UserID = models.WorkerID(userID)
		e.Timestamp = parseTime(timestamp)
		if e.BalanceDelta, err = decimal.NewFromString(delta); err != nil {
			return nil, fmt.Errorf("parsing delta of entry %s: %w", e.ID, err)
		}
		if e.BalanceAfter, err = decimal.NewFromString(after); err != nil {
			return nil, fmt.Errorf("parsing balance of entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := assert.Check(rows.Err() == nil, "journal rows error: %v", rows.Err()); err != nil {
		return nil, err
	}
	return entries, nil
}
