package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	transactiondto "github.com/LavaJover/shvark-mpesa-service/internal/usecase/dto/transaction"
	"github.com/LavaJover/shvark-mpesa-service/internal/usecase/transaction"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type TransactionHandler struct {
	uc transaction.TransactionUsecase
}

func NewTransactionHandler(uc transaction.TransactionUsecase) *TransactionHandler {
	return &TransactionHandler{uc: uc}
}

func (h *TransactionHandler) Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	amount, err := decimalField(in, "amount")
	if err != nil {
		return nil, toStatus(err)
	}

	op := domain.Operation(stringField(in, "operation"))
	clientRef := stringField(in, "transaction_reference")
	if op == domain.OpQueryTransactionStatus {
		clientRef = stringField(in, "query_reference")
	}

	out, err := h.uc.Submit(ctx, &transactiondto.SubmitInput{
		Operation:           op,
		IdempotencyKey:      stringField(in, "idempotency_key"),
		ClientReference:     clientRef,
		CustomerIdentifier:  stringField(in, "customer_msisdn"),
		Amount:              amount,
		ServiceProviderCode: stringField(in, "service_provider_code"),
		ReceiverPartyCode:   stringField(in, "receiver_party_code"),
		CallbackURL:         stringField(in, "callback_url"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return outputToStruct(out)
}

func (h *TransactionHandler) Reverse(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	amount, err := decimalField(in, "amount")
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := h.uc.Reverse(ctx, &transactiondto.ReverseInput{
		OriginalTransactionID: stringField(in, "transaction_id"),
		IdempotencyKey:        stringField(in, "idempotency_key"),
		Amount:                amount,
		CallbackURL:           stringField(in, "callback_url"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return outputToStruct(out)
}

func (h *TransactionHandler) ReconcileCallback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	out, err := h.uc.ReconcileCallback(ctx, domain.CallbackPayload{
		TransactionID:       stringField(in, "transaction_id"),
		ConversationID:      stringField(in, "conversation_id"),
		ThirdPartyReference: stringField(in, "third_party_reference"),
		ResponseCode:        stringField(in, "response_code"),
		ResponseDescription: stringField(in, "response_description"),
	})
	if err != nil {
		return nil, toStatus(err)
	}

	fields := map[string]any{"outcome": string(out.Outcome)}
	if out.Transaction != nil {
		fields["transaction"] = transactionFields(out.Transaction)
	}
	return structpb.NewStruct(fields)
}

func (h *TransactionHandler) GetTransaction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	tx, err := h.uc.GetTransaction(ctx, stringField(in, "id"))
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(transactionFields(tx))
}

func outputToStruct(out *transactiondto.TransactionOutput) (*structpb.Struct, error) {
	fields := transactionFields(out.Transaction)
	fields["outcome"] = string(out.Outcome)
	if out.Response != nil {
		if out.Response.TransactionStatus != "" {
			fields["provider_transaction_status"] = out.Response.TransactionStatus
		}
		if out.Response.CustomerName != "" {
			fields["customer_name"] = out.Response.CustomerName
		}
	}
	return structpb.NewStruct(fields)
}

func transactionFields(tx *domain.Transaction) map[string]any {
	fields := map[string]any{
		"id":                    tx.ID,
		"type":                  string(tx.Type),
		"operation":             string(tx.Operation),
		"status":                string(tx.Status),
		"client_reference":      tx.ClientReference,
		"third_party_reference": tx.ThirdPartyReference,
		"customer_msisdn":       tx.CustomerIdentifier,
		"response_code":         tx.ProviderResponseCode,
		"response_description":  tx.ProviderResponseDescription,
		"created_at":            tx.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":            tx.UpdatedAt.Format(time.RFC3339Nano),
	}
	optional := map[string]*string{
		"idempotency_key":          tx.IdempotencyKey,
		"provider_transaction_id":  tx.ProviderTransactionID,
		"provider_conversation_id": tx.ProviderConversationID,
		"original_transaction_id":  tx.OriginalTransactionID,
	}
	for k, v := range optional {
		if v != nil {
			fields[k] = *v
		}
	}
	if tx.Amount.Valid {
		fields["amount"] = tx.Amount.Decimal.StringFixed(2)
	}
	return fields
}

func stringField(in *structpb.Struct, name string) string {
	v, ok := in.GetFields()[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

// decimalField accepts the amount as a JSON number or a decimal string.
func decimalField(in *structpb.Struct, name string) (decimal.NullDecimal, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return decimal.NullDecimal{}, nil
	case *structpb.Value_NumberValue:
		return decimal.NewNullDecimal(decimal.NewFromFloat(kind.NumberValue)), nil
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(strings.TrimSpace(kind.StringValue))
		if err != nil {
			return decimal.NullDecimal{}, fmt.Errorf("%w: %s is not a decimal", domain.ErrInvalidRequest, name)
		}
		return decimal.NewNullDecimal(d), nil
	default:
		return decimal.NullDecimal{}, fmt.Errorf("%w: %s must be a number or string", domain.ErrInvalidRequest, name)
	}
}

func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrIdempotencyKeyReuse):
		code = codes.AlreadyExists
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrIdentifierConflict):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrConcurrentUpdate), errors.Is(err, domain.ErrDuplicateKey):
		code = codes.Aborted
	case errors.Is(err, domain.ErrPersistenceUnavailable), errors.Is(err, domain.ErrProviderUnavailable):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
