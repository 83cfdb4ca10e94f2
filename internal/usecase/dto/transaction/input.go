package transactiondto

import (
	"fmt"
	"regexp"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	msisdnPattern = regexp.MustCompile(`^258[0-9]{9}$`)
	maxAmount     = decimal.NewFromInt(1_000_000)
)

const maxReferenceLength = 50

type SubmitInput struct {
	Operation      domain.Operation
	IdempotencyKey string
	// ClientReference is the M-Pesa TransactionReference. For a transaction
	// status query it carries the QueryReference.
	ClientReference     string
	CustomerIdentifier  string
	Amount              decimal.NullDecimal
	ServiceProviderCode string
	ReceiverPartyCode   string
	CallbackURL         string
}

type ReverseInput struct {
	OriginalTransactionID string
	IdempotencyKey        string
	// Amount defaults to the original amount when not set.
	Amount      decimal.NullDecimal
	CallbackURL string
}

func (in *SubmitInput) Validate() error {
	if !in.Operation.Valid() || in.Operation == domain.OpReversal {
		return invalid("unsupported operation %q", in.Operation)
	}
	if err := validateKey(in.IdempotencyKey); err != nil {
		return err
	}

	switch in.Operation {
	case domain.OpC2BPayment, domain.OpB2CPayment:
		if err := validateReference("transaction_reference", in.ClientReference); err != nil {
			return err
		}
		if !msisdnPattern.MatchString(in.CustomerIdentifier) {
			return invalid("customer_msisdn must be in format 258XXXXXXXXX")
		}
		return validateAmount(in)
	case domain.OpB2BPayment:
		if err := validateReference("transaction_reference", in.ClientReference); err != nil {
			return err
		}
		if in.ReceiverPartyCode == "" {
			return invalid("receiver_party_code is required")
		}
		return validateAmount(in)
	case domain.OpQueryTransactionStatus:
		if in.Amount.Valid {
			return invalid("queries carry no amount")
		}
		return validateReference("query_reference", in.ClientReference)
	case domain.OpQueryCustomerName:
		if in.Amount.Valid {
			return invalid("queries carry no amount")
		}
		if !msisdnPattern.MatchString(in.CustomerIdentifier) {
			return invalid("customer_msisdn must be in format 258XXXXXXXXX")
		}
	}
	return nil
}

func (in *ReverseInput) Validate() error {
	if in.OriginalTransactionID == "" {
		return invalid("transaction id is required")
	}
	if in.Amount.Valid && !in.Amount.Decimal.IsPositive() {
		return invalid("reversal amount must be greater than 0")
	}
	if in.Amount.Valid {
		in.Amount.Decimal = in.Amount.Decimal.Round(2)
	}
	return validateKey(in.IdempotencyKey)
}

func validateAmount(in *SubmitInput) error {
	if !in.Amount.Valid || !in.Amount.Decimal.IsPositive() {
		return invalid("amount must be greater than 0")
	}
	in.Amount.Decimal = in.Amount.Decimal.Round(2)
	if in.Amount.Decimal.GreaterThan(maxAmount) {
		return invalid("amount must not exceed %s", maxAmount.String())
	}
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return nil
	}
	return validateReference("third_party_reference", key)
}

func validateReference(field, value string) error {
	if value == "" || len(value) > maxReferenceLength {
		return invalid("%s must be between 1 and %d characters", field, maxReferenceLength)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, fmt.Sprintf(format, args...))
}
