package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ProviderRequest is the operation-neutral input of a single M-Pesa call.
type ProviderRequest struct {
	Operation            Operation
	TransactionReference string
	ThirdPartyReference  string
	CustomerMSISDN       string
	Amount               decimal.NullDecimal
	ServiceProviderCode  string
	ReceiverPartyCode    string
	// TransactionID is the provider id of the payment being reversed.
	TransactionID  string
	QueryReference string
}

type ProviderResponse struct {
	HTTPStatus          int
	ResponseCode        string
	ResponseDescription string
	TransactionID       string
	ConversationID      string
	ThirdPartyReference string
	TransactionStatus   string
	CustomerName        string
}

// Provider performs the outbound call. Transport failures, timeouts and an
// open breaker are returned as errors wrapping ErrProviderUnavailable; any
// answer carrying a response code is returned as a response.
type Provider interface {
	Invoke(ctx context.Context, req ProviderRequest) (*ProviderResponse, error)
}
