package domain

import "errors"

var (
	ErrNotFound               = errors.New("transaction not found")
	ErrDuplicateKey           = errors.New("duplicate idempotency key")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrIdentifierConflict     = errors.New("provider identifier conflict")
	ErrIdempotencyKeyReuse    = errors.New("idempotency key reused with different payload")
	ErrStatusMismatch         = errors.New("status mismatch")
	ErrConcurrentUpdate       = errors.New("concurrent update")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrProviderUnavailable    = errors.New("provider unavailable")
	ErrInvalidRequest         = errors.New("invalid request")
)
