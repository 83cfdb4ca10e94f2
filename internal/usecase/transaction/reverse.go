package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	transactiondto "github.com/LavaJover/shvark-mpesa-service/internal/usecase/dto/transaction"
)

const (
	reversalKeyPrefix   = "reversal:"
	maxReversalAttempts = 10
)

// Reverse undoes a completed payment. The reversal is a record of its own that
// settles synchronously; once it completes the original moves to reversed.
func (uc *DefaultTransactionUsecase) Reverse(ctx context.Context, input *transactiondto.ReverseInput) (*transactiondto.TransactionOutput, error) {
	if err := input.Validate(); err != nil {
		uc.recordErrorMetrics(string(domain.OpReversal), "validation")
		return nil, err
	}

	original, err := uc.Repo.GetByID(ctx, input.OriginalTransactionID)
	if err != nil {
		return nil, fmt.Errorf("load original transaction: %w", err)
	}
	if !original.Type.Reversible() {
		return nil, fmt.Errorf("%w: %s transactions cannot be reversed", domain.ErrInvalidTransition, original.Type)
	}

	switch original.Status {
	case domain.StatusCompleted, domain.StatusReversed:
		existing, err := uc.Repo.FindReversalOf(ctx, original.ID)
		switch {
		case err == nil && existing.Status != domain.StatusFailed:
			uc.recordDuplicateMetrics(existing)
			uc.markReversed(ctx, existing)
			return &transactiondto.TransactionOutput{Transaction: existing, Outcome: transactiondto.OutcomeDuplicate}, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("find existing reversal: %w", err)
		}
		if original.Status == domain.StatusReversed {
			return nil, fmt.Errorf("%w: transaction %s already reversed", domain.ErrInvalidTransition, original.ID)
		}
	default:
		return nil, fmt.Errorf("%w: cannot reverse a %s transaction", domain.ErrInvalidTransition, original.Status)
	}

	if original.ProviderTransactionID == nil {
		return nil, fmt.Errorf("%w: transaction %s has no provider transaction id", domain.ErrInvalidTransition, original.ID)
	}

	amount := original.Amount
	if input.Amount.Valid {
		if original.Amount.Valid && input.Amount.Decimal.GreaterThan(original.Amount.Decimal) {
			return nil, fmt.Errorf("%w: reversal amount exceeds original amount", domain.ErrInvalidRequest)
		}
		amount = input.Amount
	}

	key := input.IdempotencyKey
	if key == "" {
		if key, err = uc.defaultReversalKey(ctx, original.ID); err != nil {
			return nil, err
		}
	}

	now := uc.now()
	tx := &domain.Transaction{
		ID:                    uc.newID(),
		Type:                  domain.TypeReversal,
		Operation:             domain.OpReversal,
		ClientReference:       original.ClientReference,
		IdempotencyKey:        domain.StringPtr(key),
		CustomerIdentifier:    original.CustomerIdentifier,
		Amount:                amount,
		ServiceProviderCode:   original.ServiceProviderCode,
		OriginalTransactionID: domain.StringPtr(original.ID),
		CallbackURL:           input.CallbackURL,
		Status:                domain.StatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	tx.ThirdPartyReference = uc.thirdPartyReference(key)
	tx.RequestFingerprint = fingerprint(tx)

	record, duplicate, err := uc.admit(ctx, tx)
	if err != nil {
		uc.recordErrorMetrics(string(domain.OpReversal), errorType(err))
		return nil, err
	}
	if duplicate {
		uc.markReversed(ctx, record)
		return &transactiondto.TransactionOutput{Transaction: record, Outcome: transactiondto.OutcomeDuplicate}, nil
	}

	slog.Info("reversal created", "transaction_id", record.ID, "original_transaction_id", original.ID)
	uc.onCreated(record)

	out, err := uc.dispatch(ctx, record, uc.providerRequest(record, *original.ProviderTransactionID))
	if err != nil {
		return nil, err
	}
	uc.markReversed(ctx, out.Transaction)
	return out, nil
}

// defaultReversalKey returns the key of the next reversal attempt of an
// original. Keys held by failed attempts are skipped so a new attempt reaches
// the provider; a live attempt's key is returned as is and deduplicates.
func (uc *DefaultTransactionUsecase) defaultReversalKey(ctx context.Context, originalID string) (string, error) {
	key := reversalKeyPrefix + originalID
	for attempt := 2; attempt <= maxReversalAttempts; attempt++ {
		existing, err := uc.Repo.FindByIdempotencyKey(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			return key, nil
		}
		if err != nil {
			return "", fmt.Errorf("find reversal attempt: %w", err)
		}
		if existing.Status != domain.StatusFailed {
			return key, nil
		}
		key = fmt.Sprintf("%s%s:%d", reversalKeyPrefix, originalID, attempt)
	}
	return "", fmt.Errorf("%w: transaction %s reached %d reversal attempts", domain.ErrInvalidTransition, originalID, maxReversalAttempts)
}

// markReversed moves the original of a completed reversal to reversed. It is
// safe to call repeatedly.
func (uc *DefaultTransactionUsecase) markReversed(ctx context.Context, reversal *domain.Transaction) {
	if reversal.Status != domain.StatusCompleted || reversal.OriginalTransactionID == nil {
		return
	}
	originalID := *reversal.OriginalTransactionID
	if _, _, err := uc.transition(ctx, originalID, domain.TransactionPatch{Status: domain.StatusReversed}); err != nil {
		slog.Error("failed to mark original transaction reversed",
			"transaction_id", originalID,
			"reversal_id", reversal.ID,
			"error", err,
		)
	}
}
