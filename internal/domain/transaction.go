package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeC2B      TransactionType = "C2B"
	TypeB2C      TransactionType = "B2C"
	TypeB2B      TransactionType = "B2B"
	TypeReversal TransactionType = "REVERSAL"
	TypeQuery    TransactionType = "QUERY"
)

// Reversible reports whether a completed record of this type may be reversed.
func (t TransactionType) Reversible() bool {
	switch t {
	case TypeC2B, TypeB2C, TypeB2B:
		return true
	default:
		return false
	}
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusAccepted  TransactionStatus = "accepted"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusReversed  TransactionStatus = "reversed"
)

// Operation is the concrete provider call behind a transaction record.
type Operation string

const (
	OpC2BPayment             Operation = "c2b_payment"
	OpB2CPayment             Operation = "b2c_payment"
	OpB2BPayment             Operation = "b2b_payment"
	OpReversal               Operation = "reversal"
	OpQueryTransactionStatus Operation = "query_transaction_status"
	OpQueryCustomerName      Operation = "query_customer_name"
)

func (o Operation) Type() TransactionType {
	switch o {
	case OpC2BPayment:
		return TypeC2B
	case OpB2CPayment:
		return TypeB2C
	case OpB2BPayment:
		return TypeB2B
	case OpReversal:
		return TypeReversal
	default:
		return TypeQuery
	}
}

// SettlesSynchronously is true for operations whose synchronous provider
// answer is final. No callback is ever delivered for them.
func (o Operation) SettlesSynchronously() bool {
	switch o {
	case OpReversal, OpQueryTransactionStatus, OpQueryCustomerName:
		return true
	default:
		return false
	}
}

func (o Operation) Valid() bool {
	switch o {
	case OpC2BPayment, OpB2CPayment, OpB2BPayment, OpReversal, OpQueryTransactionStatus, OpQueryCustomerName:
		return true
	default:
		return false
	}
}

type Transaction struct {
	ID                     string
	Type                   TransactionType
	Operation              Operation
	ClientReference        string
	IdempotencyKey         *string
	ThirdPartyReference    string
	RequestFingerprint     string
	ProviderTransactionID  *string
	ProviderConversationID *string
	CustomerIdentifier     string
	Amount                 decimal.NullDecimal
	ServiceProviderCode    string
	ReceiverPartyCode      string
	OriginalTransactionID  *string
	CallbackURL            string

	ProviderResponseCode        string
	ProviderResponseDescription string

	Status     TransactionStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ArchivedAt *time.Time
}

// TransactionPatch carries the fields a lifecycle transition may write.
// Nil pointers leave the stored value untouched.
type TransactionPatch struct {
	Status                      TransactionStatus
	ProviderTransactionID       *string
	ProviderConversationID      *string
	ProviderResponseCode        *string
	ProviderResponseDescription *string
}

type TransactionFilter struct {
	Status          TransactionStatus
	Type            TransactionType
	ClientReference string
	Page            int
	Limit           int
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	c.IdempotencyKey = cloneString(t.IdempotencyKey)
	c.ProviderTransactionID = cloneString(t.ProviderTransactionID)
	c.ProviderConversationID = cloneString(t.ProviderConversationID)
	c.OriginalTransactionID = cloneString(t.OriginalTransactionID)
	if t.ArchivedAt != nil {
		at := *t.ArchivedAt
		c.ArchivedAt = &at
	}
	return &c
}

// Apply writes the patch onto the record. The caller is responsible for
// validating the transition first.
func (t *Transaction) Apply(p TransactionPatch, now time.Time) {
	if p.Status != "" {
		t.Status = p.Status
	}
	if p.ProviderTransactionID != nil && t.ProviderTransactionID == nil {
		t.ProviderTransactionID = cloneString(p.ProviderTransactionID)
	}
	if p.ProviderConversationID != nil && t.ProviderConversationID == nil {
		t.ProviderConversationID = cloneString(p.ProviderConversationID)
	}
	if p.ProviderResponseCode != nil {
		t.ProviderResponseCode = *p.ProviderResponseCode
	}
	if p.ProviderResponseDescription != nil {
		t.ProviderResponseDescription = *p.ProviderResponseDescription
	}
	t.UpdatedAt = now
}

func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
