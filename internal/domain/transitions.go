package domain

// TransitionResult is the verdict of the lifecycle table for a (from, to) pair.
type TransitionResult int

const (
	TransitionReject TransitionResult = iota
	TransitionApply
	TransitionReplay
	TransitionStale
)

func (r TransitionResult) String() string {
	switch r {
	case TransitionApply:
		return "apply"
	case TransitionReplay:
		return "replay"
	case TransitionStale:
		return "stale"
	default:
		return "reject"
	}
}

var transitionTable = map[TransactionStatus]map[TransactionStatus]TransitionResult{
	StatusPending: {
		StatusAccepted:  TransitionApply,
		StatusCompleted: TransitionApply,
		StatusFailed:    TransitionApply,
	},
	StatusAccepted: {
		StatusAccepted:  TransitionReplay,
		StatusCompleted: TransitionApply,
		StatusFailed:    TransitionApply,
	},
	StatusCompleted: {
		StatusAccepted:  TransitionStale,
		StatusCompleted: TransitionReplay,
		StatusReversed:  TransitionApply,
	},
	StatusFailed: {
		StatusAccepted: TransitionStale,
		StatusFailed:   TransitionReplay,
	},
	StatusReversed: {
		StatusAccepted: TransitionStale,
		StatusReversed: TransitionReplay,
	},
}

// Decide classifies moving a record of type txType from one status to another.
// Pairs missing from the table are rejected.
func Decide(txType TransactionType, from, to TransactionStatus) TransitionResult {
	if from == StatusCompleted && to == StatusReversed && !txType.Reversible() {
		return TransitionReject
	}
	row, ok := transitionTable[from]
	if !ok {
		return TransitionReject
	}
	return row[to]
}

func (s TransactionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusReversed:
		return true
	default:
		return false
	}
}

func (s TransactionStatus) Valid() bool {
	_, ok := transitionTable[s]
	return ok
}

// CheckIdentifiers reports ErrIdentifierConflict when the patch tries to
// replace an already assigned provider identifier with a different value.
func CheckIdentifiers(tx *Transaction, p TransactionPatch) error {
	if conflicts(tx.ProviderTransactionID, p.ProviderTransactionID) ||
		conflicts(tx.ProviderConversationID, p.ProviderConversationID) {
		return ErrIdentifierConflict
	}
	return nil
}

// FillsIdentifiers is true when the patch carries an identifier the record lacks.
func FillsIdentifiers(tx *Transaction, p TransactionPatch) bool {
	return (tx.ProviderTransactionID == nil && p.ProviderTransactionID != nil) ||
		(tx.ProviderConversationID == nil && p.ProviderConversationID != nil)
}

func conflicts(current, next *string) bool {
	return current != nil && next != nil && *current != *next
}
