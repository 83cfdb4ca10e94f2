package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionModel struct {
	ID                     string              `gorm:"primaryKey;type:varchar(36)"`
	Type                   string              `gorm:"type:varchar(16);not null"`
	Operation              string              `gorm:"type:varchar(32);not null"`
	ClientReference        string              `gorm:"type:varchar(64);index:idx_mpesa_tx_client_ref"`
	IdempotencyKey         *string             `gorm:"type:varchar(64);uniqueIndex:idx_mpesa_tx_idempotency_key,where:archived_at IS NULL"`
	ThirdPartyReference    string              `gorm:"type:varchar(64);not null;index:idx_mpesa_tx_third_party_ref"`
	RequestFingerprint     string              `gorm:"type:varchar(64);not null"`
	ProviderTransactionID  *string             `gorm:"type:varchar(64);index:idx_mpesa_tx_provider_tx_id"`
	ProviderConversationID *string             `gorm:"type:varchar(64);index:idx_mpesa_tx_conversation_id"`
	CustomerIdentifier     string              `gorm:"type:varchar(32)"`
	Amount                 decimal.NullDecimal `gorm:"type:numeric(14,2)"`
	ServiceProviderCode    string              `gorm:"type:varchar(16)"`
	ReceiverPartyCode      string              `gorm:"type:varchar(16)"`
	OriginalTransactionID  *string             `gorm:"type:varchar(36);index:idx_mpesa_tx_original_id"`
	CallbackURL            string

	ProviderResponseCode        string `gorm:"type:varchar(16)"`
	ProviderResponseDescription string

	Status     string    `gorm:"type:varchar(16);not null;index:idx_mpesa_tx_status_updated"`
	CreatedAt  time.Time `gorm:"index:idx_mpesa_tx_created_at"`
	UpdatedAt  time.Time `gorm:"index:idx_mpesa_tx_status_updated"`
	ArchivedAt *time.Time
}

func (TransactionModel) TableName() string {
	return "mpesa_transactions"
}
