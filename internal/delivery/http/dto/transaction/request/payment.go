package request

import "github.com/shopspring/decimal"

// PaymentRequest is the body of C2B, B2C and B2B submissions.
type PaymentRequest struct {
	TransactionReference string              `json:"transaction_reference"`
	CustomerMSISDN       string              `json:"customer_msisdn"`
	Amount               decimal.NullDecimal `json:"amount"`
	ThirdPartyReference  string              `json:"third_party_reference"`
	ServiceProviderCode  string              `json:"service_provider_code"`
	ReceiverPartyCode    string              `json:"receiver_party_code"`
	CallbackURL          string              `json:"callback_url"`
}

type ReversalRequest struct {
	Amount              decimal.NullDecimal `json:"amount"`
	ThirdPartyReference string              `json:"third_party_reference"`
	CallbackURL         string              `json:"callback_url"`
}
