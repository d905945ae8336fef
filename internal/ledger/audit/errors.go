package audit

import "errors"

var (
	ErrNoEntries        = errors.New("journal is empty")
	ErrMissingGenesis   = errors.New("first journal entry is not a genesis entry")
	ErrUntrustedKey     = errors.New("genesis public key does not match the trusted key")
	ErrChainTampered    = errors.New("journal chain linkage broken")
	ErrSequenceGap      = errors.New("journal sequence gap")
	ErrHashMismatch     = errors.New("entry hash mismatch")
	ErrInvalidSignature = errors.New("entry signature invalid")
	ErrBalanceMismatch  = errors.New("balance_after does not match the running sum of deltas")
)
