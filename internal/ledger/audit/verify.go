package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/assert"
	"github.com/slyt3/Quorum/internal/crypto"
	"github.com/slyt3/Quorum/internal/models"
)

// JournalReader defines the subset of store operations needed for verification.
type JournalReader interface {
	AllEntries(ctx context.Context) ([]models.JournalEntry, error)
}

// VerificationResult contains the results of journal verification
type VerificationResult struct {
	Valid        bool
	TotalEntries int
	PublicKey    string
	ErrorMessage string
	FailedAtSeq  int64
}

// EntryPayload is the canonical content hashed for an entry. Hash, signature
// and prev_hash are excluded; prev_hash is chained by CalculateEntryHash.
func EntryPayload(e *models.JournalEntry) map[string]interface{} {
	return map[string]interface{}{
		"id":               e.ID,
		"seq_index":        e.SeqIndex,
		"kind":             string(e.Kind),
		"user_id":          string(e.UserID),
		"task_id":          e.TaskID,
		"vote_id":          e.VoteID,
		"balance_delta":    e.BalanceDelta.String(),
		"reputation_delta": e.ReputationDelta,
		"balance_after":    e.BalanceAfter.String(),
		"note":             e.Note,
		"timestamp":        e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// VerifyJournal validates linkage, hashes, signatures and per-user running
// balances. trustedKey, when set, must equal the key recorded in genesis.
func VerifyJournal(ctx context.Context, r JournalReader, trustedKey string) (*VerificationResult, error) {
	if err := assert.NotNil(r, "journal reader"); err != nil {
		return nil, err
	}
	entries, err := r.AllEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entries: %w", err)
	}

	result := &VerificationResult{Valid: true, TotalEntries: len(entries)}
	fail := func(seq int64, err error) (*VerificationResult, error) {
		result.Valid = false
		result.FailedAtSeq = seq
		result.ErrorMessage = err.Error()
		return result, nil
	}

	if len(entries) == 0 {
		return fail(0, ErrNoEntries)
	}
	genesis := entries[0]
	if genesis.Kind != models.JournalGenesis || genesis.SeqIndex != 0 || genesis.PrevHash != crypto.GenesisPrevHash {
		return fail(genesis.SeqIndex, ErrMissingGenesis)
	}
	result.PublicKey = genesis.Note
	if trustedKey != "" && trustedKey != genesis.Note {
		return fail(0, ErrUntrustedKey)
	}

	balances := make(map[models.WorkerID]decimal.Decimal)
	for i := range entries {
		e := &entries[i]
		if i > 0 {
			prev := &entries[i-1]
			if e.SeqIndex != prev.SeqIndex+1 {
				return fail(e.SeqIndex, ErrSequenceGap)
			}
			if e.PrevHash != prev.CurrentHash {
				return fail(e.SeqIndex, ErrChainTampered)
			}
		}
		if err := VerifyEntry(e, genesis.Note); err != nil {
			return fail(e.SeqIndex, fmt.Errorf("entry %d: %w", e.SeqIndex, err))
		}
		if e.Kind == models.JournalGenesis {
			continue
		}
		running := balances[e.UserID].Add(e.BalanceDelta)
		if !running.Equal(e.BalanceAfter) {
			return fail(e.SeqIndex, fmt.Errorf("user %s: %w: want %s, got %s", e.UserID, ErrBalanceMismatch, running, e.BalanceAfter))
		}
		balances[e.UserID] = running
	}
	return result, nil
}

// VerifyEntry validates a single entry's hash and signature
func VerifyEntry(e *models.JournalEntry, publicKey string) error {
	if err := assert.Check(e.Signature != "", "entry signature must not be empty: id=%s", e.ID); err != nil {
		return err
	}
	if err := assert.Check(e.CurrentHash != "", "entry hash is missing: id=%s", e.ID); err != nil {
		return err
	}
	calculated, err := crypto.CalculateEntryHash(e.PrevHash, EntryPayload(e))
	if err != nil {
		return fmt.Errorf("failed to calculate hash: %w", err)
	}
	if calculated != e.CurrentHash {
		return ErrHashMismatch
	}
	if !crypto.VerifyWithKey(publicKey, calculated, e.Signature) {
		return ErrInvalidSignature
	}
	return nil
}
