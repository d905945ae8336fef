package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var ErrJournalInvalid = errors.New("journal verification failed")

// Verify checks the whole settlement journal.
func Verify(ctx context.Context, env *Env, out io.Writer) error {
	result, err := env.Engine.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verification error: %w", err)
	}
	if result.Valid {
		fmt.Fprintf(out, "✓ Journal is valid (%d entries verified)\n", result.TotalEntries)
		fmt.Fprintf(out, "  Public key: %s\n", result.PublicKey)
		return nil
	}
	fmt.Fprintf(out, "✗ Journal verification failed\n")
	fmt.Fprintf(out, "  Error: %s\n", result.ErrorMessage)
	fmt.Fprintf(out, "  Failed at sequence: %d\n", result.FailedAtSeq)
	return ErrJournalInvalid
}
