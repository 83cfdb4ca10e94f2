package domain

import (
	"context"
	"time"
)

// TransactionRepository is the durable store of transaction records.
// Lookups return ErrNotFound when nothing matches.
type TransactionRepository interface {
	// Create inserts tx atomically, returning ErrDuplicateKey when a live
	// record already holds its idempotency key.
	Create(ctx context.Context, tx *Transaction) (*Transaction, error)
	GetByID(ctx context.Context, id string) (*Transaction, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)
	FindByProviderTransactionID(ctx context.Context, providerTxID string) (*Transaction, error)
	FindByProviderConversationID(ctx context.Context, conversationID string) (*Transaction, error)
	FindByThirdPartyReference(ctx context.Context, ref string) (*Transaction, error)
	// FindReversalOf returns the most recent reversal record of originalID.
	FindReversalOf(ctx context.Context, originalID string) (*Transaction, error)
	// Update applies patch only if the record is still in expected status and
	// the patch does not overwrite an assigned provider identifier with a
	// different value. Otherwise it returns ErrStatusMismatch.
	Update(ctx context.Context, id string, expected TransactionStatus, patch TransactionPatch) (*Transaction, error)
	FindStale(ctx context.Context, statuses []TransactionStatus, olderThan time.Time, limit int) ([]*Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]*Transaction, int64, error)
	Ping(ctx context.Context) error
}

// IdempotencyCache is an optional fast path from idempotency key to record id.
// The repository stays the source of truth.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, transactionID string)
}
