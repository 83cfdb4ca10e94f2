package transaction

import (
	"context"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	publisher "github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/logger"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/notifier"
)

const (
	currency       = "MZN"
	publishTimeout = 10 * time.Second
)

func (uc *DefaultTransactionUsecase) onCreated(tx *domain.Transaction) {
	uc.recordCreatedMetrics(tx)
	uc.publishEvent(tx, "")
	uc.audit(logger.EventTransactionCreated, tx.ID, map[string]any{
		"operation":             string(tx.Operation),
		"client_reference":      tx.ClientReference,
		"third_party_reference": tx.ThirdPartyReference,
		"amount":                amountString(tx),
	})
}

// afterTransition fires the side effects of an applied status change. It is
// never called for replays.
func (uc *DefaultTransactionUsecase) afterTransition(from domain.TransactionStatus, tx *domain.Transaction) {
	slog.Info("transaction status changed",
		"transaction_id", tx.ID,
		"from", from,
		"to", tx.Status,
		"response_code", tx.ProviderResponseCode,
	)
	uc.recordTransitionMetrics(from, tx)
	uc.publishEvent(tx, from)
	uc.audit(logger.EventTransition, tx.ID, map[string]any{
		"from":          string(from),
		"to":            string(tx.Status),
		"response_code": tx.ProviderResponseCode,
	})

	if tx.Status.Terminal() && tx.CallbackURL != "" && uc.Callbacks != nil {
		uc.Callbacks.SendCallback(tx.CallbackURL, notifier.CallbackPayload{
			TransactionID:         tx.ID,
			ClientReference:       tx.ClientReference,
			ThirdPartyReference:   tx.ThirdPartyReference,
			Operation:             string(tx.Operation),
			Status:                string(tx.Status),
			Amount:                amountString(tx),
			ProviderTransactionID: domain.StringValue(tx.ProviderTransactionID),
			ResponseCode:          tx.ProviderResponseCode,
			ResponseDescription:   tx.ProviderResponseDescription,
			UpdatedAt:             tx.UpdatedAt,
		})
	}
}

func (uc *DefaultTransactionUsecase) publishEvent(tx *domain.Transaction, previous domain.TransactionStatus) {
	if uc.Publisher == nil {
		return
	}

	event := publisher.TransactionEvent{
		TransactionID:         tx.ID,
		Type:                  string(tx.Type),
		Operation:             string(tx.Operation),
		Status:                string(tx.Status),
		PreviousStatus:        string(previous),
		ClientReference:       tx.ClientReference,
		ThirdPartyReference:   tx.ThirdPartyReference,
		ProviderTransactionID: domain.StringValue(tx.ProviderTransactionID),
		ResponseCode:          tx.ProviderResponseCode,
		Amount:                amountString(tx),
		Currency:              currency,
		OccurredAt:            tx.UpdatedAt,
	}

	// Publish to Kafka asynchronously
	uc.wg.Add(1)
	go func(event publisher.TransactionEvent) {
		defer uc.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := uc.Publisher.PublishTransaction(ctx, event); err != nil {
			slog.Error("failed to publish TransactionEvent", "transaction_id", event.TransactionID, "status", event.Status, "error", err)
		}
	}(event)
}

func (uc *DefaultTransactionUsecase) audit(eventType, transactionID string, payload map[string]any) {
	if uc.Audit == nil {
		return
	}
	uc.Audit.Log(eventType, transactionID, payload)
}

func amountString(tx *domain.Transaction) string {
	if !tx.Amount.Valid {
		return ""
	}
	return tx.Amount.Decimal.StringFixed(2)
}
