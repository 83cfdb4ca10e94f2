package logger

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit event types.
const (
	EventTransactionCreated = "transaction_created"
	EventTransition         = "transaction_transition"
	EventDuplicate          = "duplicate_submission"
	EventOrphanCallback     = "orphan_callback"
	EventProviderError      = "provider_error"
)

type AuditEvent struct {
	ID            string         `gorm:"primaryKey;type:varchar(36)"`
	EventType     string         `gorm:"not null;index"`
	TransactionID string         `gorm:"index"`
	Payload       datatypes.JSON
	CreatedAt     time.Time `gorm:"index"`
}

func (AuditEvent) TableName() string {
	return "mpesa_audit_events"
}

type AuditStore interface {
	SaveAuditEvent(ctx context.Context, event *AuditEvent) error
}

type PGAuditStore struct {
	db *gorm.DB
}

func NewPGAuditStore(db *gorm.DB) *PGAuditStore {
	return &PGAuditStore{db: db}
}

func (s *PGAuditStore) SaveAuditEvent(ctx context.Context, event *AuditEvent) error {
	return s.db.WithContext(ctx).Create(event).Error
}
