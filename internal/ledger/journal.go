package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/assert"
	"github.com/slyt3/Quorum/internal/crypto"
	"github.com/slyt3/Quorum/internal/ledger/audit"
	"github.com/slyt3/Quorum/internal/ledger/store"
	"github.com/slyt3/Quorum/internal/models"
)

// EnsureGenesis writes the genesis entry when the journal is empty. The
// genesis note carries the signer's public key so the chain verifies offline.
func (e *Engine) EnsureGenesis(ctx context.Context) error {
	return e.db.WithTx(ctx, func(tx *store.Tx) error {
		_, _, err := e.chainHead(ctx, tx)
		return err
	})
}

// chainHead returns the last sequence index and hash, creating genesis first if needed.
func (e *Engine) chainHead(ctx context.Context, tx *store.Tx) (int64, string, error) {
	seq, hash, found, err := tx.LastEntry(ctx)
	if err != nil {
		return 0, "", err
	}
	if found {
		return seq, hash, nil
	}

	genesis := &models.JournalEntry{
		Kind:         models.JournalGenesis,
		SeqIndex:     0,
		BalanceDelta: decimal.Zero,
		BalanceAfter: decimal.Zero,
		Note:         e.signer.PublicKey(),
		PrevHash:     crypto.GenesisPrevHash,
	}
	if err := e.seal(genesis); err != nil {
		return 0, "", fmt.Errorf("sealing genesis: %w", err)
	}
	if err := tx.InsertEntry(ctx, genesis); err != nil {
		return 0, "", err
	}
	return genesis.SeqIndex, genesis.CurrentHash, nil
}

// appendEntry links entry to the chain head, hashes, signs and stores it.
// It runs inside the caller's transaction so the entry commits with the change it records.
func (e *Engine) appendEntry(ctx context.Context, tx *store.Tx, entry *models.JournalEntry) error {
	if err := assert.NotNil(entry, "journal entry"); err != nil {
		return err
	}
	if err := assert.Check(entry.Kind != models.JournalGenesis, "genesis is written by the chain head only"); err != nil {
		return err
	}
	lastSeq, lastHash, err := e.chainHead(ctx, tx)
	if err != nil {
		return fmt.Errorf("reading chain head: %w", err)
	}
	if err := assert.Check(lastHash != "", "prev_hash must be non-empty: seq=%d", lastSeq+1); err != nil {
		return err
	}
	entry.SeqIndex = lastSeq + 1
	entry.PrevHash = lastHash
	if err := e.seal(entry); err != nil {
		return err
	}
	return tx.InsertEntry(ctx, entry)
}

func (e *Engine) seal(entry *models.JournalEntry) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating entry id: %w", err)
		}
		entry.ID = id.String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = e.now().UTC()
	}

	hash, err := crypto.CalculateEntryHash(entry.PrevHash, audit.EntryPayload(entry))
	if err != nil {
		return fmt.Errorf("calculating hash: %w", err)
	}
	entry.CurrentHash = hash

	signature, err := e.signer.SignHash(hash)
	if err != nil {
		return fmt.Errorf("signing hash: %w", err)
	}
	entry.Signature = signature
	return nil
}

// Journal returns the entries recorded for a user.
func (e *Engine) Journal(ctx context.Context, userID models.WorkerID) ([]models.JournalEntry, error) {
	if userID == "" {
		return nil, models.ErrUnauthorized
	}
	return e.db.EntriesForUser(ctx, userID)
}

// Verify checks the whole journal against this engine's signing key.
func (e *Engine) Verify(ctx context.Context) (*audit.VerificationResult, error) {
	return audit.VerifyJournal(ctx, e.db, e.signer.PublicKey())
}
