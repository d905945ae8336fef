package models

import "errors"

// Code classifies a business outcome. Results carry a Code instead of an error
// so callers can branch on it without string matching.
type Code string

const (
	CodeOK                Code = "ok"
	CodeUnauthorized      Code = "unauthorized"
	CodeNotFound          Code = "not_found"
	CodeForbidden         Code = "forbidden"
	CodeInvalid           Code = "invalid"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeNothingToFund     Code = "nothing_to_fund"
	CodeStorageFailure    Code = "storage_failure"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalid           = errors.New("invalid input")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNothingToFund     = errors.New("nothing to fund")
	// ErrConflict marks a concurrent write race. The engine retries it and never returns it.
	ErrConflict = errors.New("transaction conflict")
	ErrStorage  = errors.New("storage failure")
)

// CodeOf maps an error to its Code. Unknown errors are storage failures.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrInvalid):
		return CodeInvalid
	case errors.Is(err, ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, ErrNothingToFund):
		return CodeNothingToFund
	default:
		return CodeStorageFailure
	}
}
