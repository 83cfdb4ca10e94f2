package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/logger"
	transactiondto "github.com/LavaJover/shvark-mpesa-service/internal/usecase/dto/transaction"
)

// ReconcileCallback applies an asynchronous provider result. Orphans and
// replays are acknowledged without mutating anything.
func (uc *DefaultTransactionUsecase) ReconcileCallback(ctx context.Context, payload domain.CallbackPayload) (*transactiondto.CallbackOutput, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: callback needs a response code and at least one identifier", err)
	}

	tx, err := uc.findCallbackTarget(ctx, payload)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Warn("orphan callback",
			"provider_transaction_id", payload.TransactionID,
			"conversation_id", payload.ConversationID,
			"third_party_reference", payload.ThirdPartyReference,
			"response_code", payload.ResponseCode,
		)
		uc.audit(logger.EventOrphanCallback, "", map[string]any{
			"provider_transaction_id": payload.TransactionID,
			"conversation_id":         payload.ConversationID,
			"third_party_reference":   payload.ThirdPartyReference,
			"response_code":           payload.ResponseCode,
		})
		uc.recordCallbackMetrics(string(transactiondto.CallbackOrphan))
		return &transactiondto.CallbackOutput{Outcome: transactiondto.CallbackOrphan}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find callback target: %w", err)
	}

	plan, err := domain.PlanCallback(tx, payload)
	if err != nil {
		uc.recordCallbackMetrics("rejected")
		uc.recordErrorMetrics(string(tx.Operation), errorType(err))
		slog.Warn("callback rejected",
			"transaction_id", tx.ID,
			"status", tx.Status,
			"response_code", payload.ResponseCode,
			"error", err,
		)
		return nil, err
	}

	if plan.Decision != domain.TransitionApply && !domain.FillsIdentifiers(tx, plan.Patch) {
		uc.recordCallbackMetrics(string(transactiondto.CallbackReplayed))
		return &transactiondto.CallbackOutput{Transaction: tx, Outcome: transactiondto.CallbackReplayed}, nil
	}

	patch := plan.Patch
	if plan.Decision != domain.TransitionApply {
		// keep the stored status, only identifiers are merged
		patch.Status = tx.Status
	}

	updated, applied, err := uc.transition(ctx, tx.ID, patch)
	if err != nil {
		uc.recordCallbackMetrics("rejected")
		uc.recordErrorMetrics(string(tx.Operation), errorType(err))
		return nil, err
	}

	outcome := transactiondto.CallbackReplayed
	if applied {
		outcome = transactiondto.CallbackApplied
	}
	uc.recordCallbackMetrics(string(outcome))
	return &transactiondto.CallbackOutput{Transaction: updated, Outcome: outcome}, nil
}

// findCallbackTarget looks the record up by provider transaction id, then
// conversation id, then third party reference.
func (uc *DefaultTransactionUsecase) findCallbackTarget(ctx context.Context, payload domain.CallbackPayload) (*domain.Transaction, error) {
	lookups := []struct {
		value string
		find  func(context.Context, string) (*domain.Transaction, error)
	}{
		{payload.TransactionID, uc.Repo.FindByProviderTransactionID},
		{payload.ConversationID, uc.Repo.FindByProviderConversationID},
		{payload.ThirdPartyReference, uc.Repo.FindByThirdPartyReference},
	}

	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		tx, err := l.find(ctx, l.value)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, domain.ErrNotFound
}
