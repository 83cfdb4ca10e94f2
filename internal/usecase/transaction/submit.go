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

func (uc *DefaultTransactionUsecase) Submit(ctx context.Context, input *transactiondto.SubmitInput) (*transactiondto.TransactionOutput, error) {
	if err := input.Validate(); err != nil {
		uc.recordErrorMetrics(string(input.Operation), "validation")
		return nil, err
	}

	tx := uc.newTransaction(input)
	record, duplicate, err := uc.admit(ctx, tx)
	if err != nil {
		uc.recordErrorMetrics(string(input.Operation), errorType(err))
		return nil, err
	}
	if duplicate {
		return &transactiondto.TransactionOutput{Transaction: record, Outcome: transactiondto.OutcomeDuplicate}, nil
	}

	slog.Info("transaction created",
		"transaction_id", record.ID,
		"operation", record.Operation,
		"third_party_reference", record.ThirdPartyReference,
	)
	uc.onCreated(record)

	return uc.dispatch(ctx, record, uc.providerRequest(record, ""))
}

func (uc *DefaultTransactionUsecase) newTransaction(input *transactiondto.SubmitInput) *domain.Transaction {
	now := uc.now()
	spc := input.ServiceProviderCode
	if spc == "" {
		spc = uc.Config.ServiceProviderCode
	}

	tx := &domain.Transaction{
		ID:                  uc.newID(),
		Type:                input.Operation.Type(),
		Operation:           input.Operation,
		ClientReference:     input.ClientReference,
		IdempotencyKey:      domain.StringPtr(input.IdempotencyKey),
		CustomerIdentifier:  input.CustomerIdentifier,
		Amount:              input.Amount,
		ServiceProviderCode: spc,
		ReceiverPartyCode:   input.ReceiverPartyCode,
		CallbackURL:         input.CallbackURL,
		Status:              domain.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	tx.ThirdPartyReference = uc.thirdPartyReference(input.IdempotencyKey)
	tx.RequestFingerprint = fingerprint(tx)
	return tx
}

// thirdPartyReference reuses the idempotency key as the provider reference
// when the provider accepts it, so provider-side duplicate detection matches ours.
func (uc *DefaultTransactionUsecase) thirdPartyReference(key string) string {
	if key != "" && len(key) <= maxProviderRefLength {
		return key
	}
	return uc.newRef()
}

func (uc *DefaultTransactionUsecase) providerRequest(tx *domain.Transaction, originalProviderTxID string) domain.ProviderRequest {
	req := domain.ProviderRequest{
		Operation:            tx.Operation,
		TransactionReference: tx.ClientReference,
		ThirdPartyReference:  tx.ThirdPartyReference,
		CustomerMSISDN:       tx.CustomerIdentifier,
		Amount:               tx.Amount,
		ServiceProviderCode:  tx.ServiceProviderCode,
		ReceiverPartyCode:    tx.ReceiverPartyCode,
		TransactionID:        originalProviderTxID,
	}
	if tx.Operation == domain.OpQueryTransactionStatus {
		req.QueryReference = tx.ClientReference
		req.TransactionReference = ""
	}
	return req
}

// dispatch invokes the provider for a freshly created record and applies the
// synchronous answer. An unreachable provider leaves the record pending.
func (uc *DefaultTransactionUsecase) dispatch(ctx context.Context, tx *domain.Transaction, req domain.ProviderRequest) (*transactiondto.TransactionOutput, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.Config.ProviderTimeout)
	defer cancel()

	start := uc.now()
	resp, err := uc.Provider.Invoke(callCtx, req)
	elapsed := uc.now().Sub(start).Seconds()

	if err != nil {
		uc.recordProviderCallMetrics(tx, "unavailable", elapsed)
		slog.Warn("provider call failed, transaction left pending",
			"transaction_id", tx.ID,
			"operation", tx.Operation,
			"error", err,
		)
		uc.audit(logger.EventProviderError, tx.ID, map[string]any{"error": err.Error()})
		return &transactiondto.TransactionOutput{Transaction: tx, Outcome: transactiondto.OutcomePending}, nil
	}
	uc.recordProviderCallMetrics(tx, resp.ResponseCode, elapsed)

	return uc.applyResponse(ctx, tx, resp)
}

func (uc *DefaultTransactionUsecase) applyResponse(ctx context.Context, tx *domain.Transaction, resp *domain.ProviderResponse) (*transactiondto.TransactionOutput, error) {
	patch := domain.TransactionPatch{
		ProviderTransactionID:       domain.StringPtr(resp.TransactionID),
		ProviderConversationID:      domain.StringPtr(resp.ConversationID),
		ProviderResponseCode:        domain.StringPtr(resp.ResponseCode),
		ProviderResponseDescription: domain.StringPtr(resp.ResponseDescription),
	}

	var outcome transactiondto.Outcome
	switch domain.ClassifyCode(resp.ResponseCode) {
	case domain.CodeIndeterminate:
		slog.Warn("indeterminate provider answer, transaction left pending",
			"transaction_id", tx.ID,
			"response_code", resp.ResponseCode,
		)
		return &transactiondto.TransactionOutput{Transaction: tx, Outcome: transactiondto.OutcomePending, Response: resp}, nil
	case domain.CodeSuccess:
		outcome = transactiondto.OutcomeAccepted
		patch.Status = domain.StatusAccepted
		if tx.Operation.SettlesSynchronously() {
			patch.Status = domain.StatusCompleted
		}
		if tx.Operation == domain.OpQueryCustomerName && resp.CustomerName != "" {
			patch.ProviderResponseDescription = domain.StringPtr(resp.CustomerName)
		}
	default:
		outcome = transactiondto.OutcomeRejected
		patch.Status = domain.StatusFailed
	}

	updated, _, err := uc.transition(ctx, tx.ID, patch)
	if errors.Is(err, domain.ErrInvalidTransition) {
		// a callback already settled the record differently; report what is stored
		slog.Warn("synchronous answer contradicts stored status",
			"transaction_id", tx.ID,
			"response_code", resp.ResponseCode,
			"error", err,
		)
		current, getErr := uc.Repo.GetByID(ctx, tx.ID)
		if getErr != nil {
			return nil, fmt.Errorf("re-read transaction: %w", getErr)
		}
		return &transactiondto.TransactionOutput{Transaction: current, Outcome: storedOutcome(current)}, nil
	}
	if err != nil {
		uc.recordErrorMetrics(string(tx.Operation), errorType(err))
		return nil, err
	}

	return &transactiondto.TransactionOutput{Transaction: updated, Outcome: outcome, Response: resp}, nil
}

// storedOutcome is the outcome matching a record another writer already
// settled.
func storedOutcome(tx *domain.Transaction) transactiondto.Outcome {
	switch tx.Status {
	case domain.StatusFailed:
		return transactiondto.OutcomeRejected
	case domain.StatusPending:
		return transactiondto.OutcomePending
	default:
		return transactiondto.OutcomeAccepted
	}
}
