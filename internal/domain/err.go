package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("conflict")
	ErrAccountNotFound     = errors.New("account not found")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAccountAlreadyExists also matches ErrConflict.
	ErrAccountAlreadyExists = fmt.Errorf("account already exists: %w", ErrConflict)

	ErrIdempotencyKeyMismatch = fmt.Errorf("idempotency key mismatch: %w", ErrConflict)
	ErrSameAccount            = fmt.Errorf("source and destination are the same account: %w", ErrConflict)
	ErrWithdrawalInFlight     = fmt.Errorf("withdrawal with this idempotency key is still being processed: %w", ErrConflict)
	ErrWithdrawalFailed       = fmt.Errorf("withdrawal with this idempotency key has failed: %w", ErrConflict)
)

// Settlement gateway errors. An unknown withdrawal fails at once; an outage
// is retried by reconciliation up to its transient-failure limit.
var (
	ErrUnknownWithdrawal  = errors.New("withdrawal unknown to settlement gateway")
	ErrGatewayUnavailable = errors.New("settlement gateway unavailable")
)
