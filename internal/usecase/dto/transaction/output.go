package transactiondto

import "github.com/LavaJover/shvark-mpesa-service/internal/domain"

type Outcome string

const (
	// OutcomeAccepted: a new record the provider accepted (or settled).
	OutcomeAccepted Outcome = "accepted"
	// OutcomePending: provider unreachable or indeterminate, record left pending.
	OutcomePending   Outcome = "pending"
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeRejected: the provider answered with a terminal error code.
	OutcomeRejected Outcome = "rejected"
)

type TransactionOutput struct {
	Transaction *domain.Transaction
	Outcome     Outcome
	// Response is nil for duplicates and unreachable provider calls.
	Response *domain.ProviderResponse
}

type CallbackOutcome string

const (
	CallbackApplied  CallbackOutcome = "applied"
	CallbackReplayed CallbackOutcome = "replayed"
	CallbackOrphan   CallbackOutcome = "orphan"
)

type CallbackOutput struct {
	// Transaction is nil for orphans.
	Transaction *domain.Transaction
	Outcome     CallbackOutcome
}

type ListTransactionsOutput struct {
	Transactions []*domain.Transaction
	Total        int64
	Page         int
	Limit        int
}

type SweepOutput struct {
	Checked  int
	Resolved int
}
