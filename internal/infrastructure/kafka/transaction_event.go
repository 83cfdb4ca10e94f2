package publisher

import "time"

type TransactionEvent struct {
	TransactionID         string    `json:"transaction_id"`
	Type                  string    `json:"type"`
	Operation             string    `json:"operation"`
	Status                string    `json:"status"`
	PreviousStatus        string    `json:"previous_status,omitempty"`
	ClientReference       string    `json:"client_reference"`
	ThirdPartyReference   string    `json:"third_party_reference"`
	ProviderTransactionID string    `json:"provider_transaction_id,omitempty"`
	ResponseCode          string    `json:"response_code,omitempty"`
	Amount                string    `json:"amount,omitempty"`
	Currency              string    `json:"currency"`
	OccurredAt            time.Time `json:"occurred_at"`
}
