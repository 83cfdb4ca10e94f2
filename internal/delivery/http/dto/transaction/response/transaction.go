package response

import (
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	transactiondto "github.com/LavaJover/shvark-mpesa-service/internal/usecase/dto/transaction"
)

type TransactionResponse struct {
	ID                          string    `json:"id"`
	Type                        string    `json:"type"`
	Operation                   string    `json:"operation"`
	Status                      string    `json:"status"`
	ClientReference             string    `json:"client_reference,omitempty"`
	IdempotencyKey              string    `json:"idempotency_key,omitempty"`
	ThirdPartyReference         string    `json:"third_party_reference"`
	ProviderTransactionID       string    `json:"provider_transaction_id,omitempty"`
	ProviderConversationID      string    `json:"provider_conversation_id,omitempty"`
	CustomerMSISDN              string    `json:"customer_msisdn,omitempty"`
	Amount                      string    `json:"amount,omitempty"`
	Currency                    string    `json:"currency"`
	ServiceProviderCode         string    `json:"service_provider_code,omitempty"`
	ReceiverPartyCode           string    `json:"receiver_party_code,omitempty"`
	OriginalTransactionID       string    `json:"original_transaction_id,omitempty"`
	ProviderResponseCode        string    `json:"response_code,omitempty"`
	ProviderResponseDescription string    `json:"response_description,omitempty"`
	CreatedAt                   time.Time `json:"created_at"`
	UpdatedAt                   time.Time `json:"updated_at"`
}

type SubmitResponse struct {
	TransactionResponse
	Outcome string `json:"outcome"`
	// Set for status queries.
	ProviderTransactionStatus string `json:"provider_transaction_status,omitempty"`
	// Set for customer name queries.
	CustomerName string `json:"customer_name,omitempty"`
}

type CallbackResponse struct {
	Outcome     string               `json:"outcome"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

type ListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Total        int64                 `json:"total"`
	Page         int                   `json:"page"`
	Limit        int                   `json:"limit"`
}

func FromTransaction(tx *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:                          tx.ID,
		Type:                        string(tx.Type),
		Operation:                   string(tx.Operation),
		Status:                      string(tx.Status),
		ClientReference:             tx.ClientReference,
		IdempotencyKey:              domain.StringValue(tx.IdempotencyKey),
		ThirdPartyReference:         tx.ThirdPartyReference,
		ProviderTransactionID:       domain.StringValue(tx.ProviderTransactionID),
		ProviderConversationID:      domain.StringValue(tx.ProviderConversationID),
		CustomerMSISDN:              tx.CustomerIdentifier,
		Currency:                    "MZN",
		ServiceProviderCode:         tx.ServiceProviderCode,
		ReceiverPartyCode:           tx.ReceiverPartyCode,
		OriginalTransactionID:       domain.StringValue(tx.OriginalTransactionID),
		ProviderResponseCode:        tx.ProviderResponseCode,
		ProviderResponseDescription: tx.ProviderResponseDescription,
		CreatedAt:                   tx.CreatedAt,
		UpdatedAt:                   tx.UpdatedAt,
	}
	if tx.Amount.Valid {
		resp.Amount = tx.Amount.Decimal.StringFixed(2)
	}
	return resp
}

func FromOutput(out *transactiondto.TransactionOutput) SubmitResponse {
	resp := SubmitResponse{
		TransactionResponse: FromTransaction(out.Transaction),
		Outcome:             string(out.Outcome),
	}
	if out.Response != nil {
		resp.ProviderTransactionStatus = out.Response.TransactionStatus
		resp.CustomerName = out.Response.CustomerName
	}
	return resp
}

func FromList(out *transactiondto.ListTransactionsOutput) ListResponse {
	list := make([]TransactionResponse, 0, len(out.Transactions))
	for _, tx := range out.Transactions {
		list = append(list, FromTransaction(tx))
	}
	return ListResponse{Transactions: list, Total: out.Total, Page: out.Page, Limit: out.Limit}
}
