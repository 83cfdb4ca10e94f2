package mappers

import (
	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/postgres/models"
)

func ToDomainTransaction(model *models.TransactionModel) *domain.Transaction {
	return &domain.Transaction{
		ID:                          model.ID,
		Type:                        domain.TransactionType(model.Type),
		Operation:                   domain.Operation(model.Operation),
		ClientReference:             model.ClientReference,
		IdempotencyKey:              model.IdempotencyKey,
		ThirdPartyReference:         model.ThirdPartyReference,
		RequestFingerprint:          model.RequestFingerprint,
		ProviderTransactionID:       model.ProviderTransactionID,
		ProviderConversationID:      model.ProviderConversationID,
		CustomerIdentifier:          model.CustomerIdentifier,
		Amount:                      model.Amount,
		ServiceProviderCode:         model.ServiceProviderCode,
		ReceiverPartyCode:           model.ReceiverPartyCode,
		OriginalTransactionID:       model.OriginalTransactionID,
		CallbackURL:                 model.CallbackURL,
		ProviderResponseCode:        model.ProviderResponseCode,
		ProviderResponseDescription: model.ProviderResponseDescription,
		Status:                      domain.TransactionStatus(model.Status),
		CreatedAt:                   model.CreatedAt.UTC(),
		UpdatedAt:                   model.UpdatedAt.UTC(),
		ArchivedAt:                  model.ArchivedAt,
	}
}

func ToGORMTransaction(tx *domain.Transaction) *models.TransactionModel {
	return &models.TransactionModel{
		ID:                          tx.ID,
		Type:                        string(tx.Type),
		Operation:                   string(tx.Operation),
		ClientReference:             tx.ClientReference,
		IdempotencyKey:              tx.IdempotencyKey,
		ThirdPartyReference:         tx.ThirdPartyReference,
		RequestFingerprint:          tx.RequestFingerprint,
		ProviderTransactionID:       tx.ProviderTransactionID,
		ProviderConversationID:      tx.ProviderConversationID,
		CustomerIdentifier:          tx.CustomerIdentifier,
		Amount:                      tx.Amount,
		ServiceProviderCode:         tx.ServiceProviderCode,
		ReceiverPartyCode:           tx.ReceiverPartyCode,
		OriginalTransactionID:       tx.OriginalTransactionID,
		CallbackURL:                 tx.CallbackURL,
		ProviderResponseCode:        tx.ProviderResponseCode,
		ProviderResponseDescription: tx.ProviderResponseDescription,
		Status:                      string(tx.Status),
		CreatedAt:                   tx.CreatedAt,
		UpdatedAt:                   tx.UpdatedAt,
		ArchivedAt:                  tx.ArchivedAt,
	}
}

func ToDomainTransactions(list []models.TransactionModel) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(list))
	for i := range list {
		out = append(out, ToDomainTransaction(&list[i]))
	}
	return out
}
