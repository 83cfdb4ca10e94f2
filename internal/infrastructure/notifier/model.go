package notifier

import "time"

type CallbackPayload struct {
	TransactionID         string    `json:"transaction_id"`
	ClientReference       string    `json:"client_reference"`
	ThirdPartyReference   string    `json:"third_party_reference"`
	Operation             string    `json:"operation"`
	Status                string    `json:"status"`
	Amount                string    `json:"amount,omitempty"`
	ProviderTransactionID string    `json:"mpesa_transaction_id,omitempty"`
	ResponseCode          string    `json:"response_code,omitempty"`
	ResponseDescription   string    `json:"response_description,omitempty"`
	UpdatedAt             time.Time `json:"updated_at"`
}
