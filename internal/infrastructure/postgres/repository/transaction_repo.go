package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type DefaultTransactionRepository struct {
	DB *gorm.DB
}

func NewDefaultTransactionRepository(db *gorm.DB) *DefaultTransactionRepository {
	return &DefaultTransactionRepository{DB: db}
}

func (r *DefaultTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	model := mappers.ToGORMTransaction(tx)
	if err := r.DB.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, domain.ErrDuplicateKey
		}
		return nil, translateError(err)
	}
	return mappers.ToDomainTransaction(model), nil
}

func (r *DefaultTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *DefaultTransactionRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return r.first(ctx, "idempotency_key = ? AND archived_at IS NULL", key)
}

func (r *DefaultTransactionRepository) FindByProviderTransactionID(ctx context.Context, providerTxID string) (*domain.Transaction, error) {
	return r.first(ctx, "provider_transaction_id = ?", providerTxID)
}

func (r *DefaultTransactionRepository) FindByProviderConversationID(ctx context.Context, conversationID string) (*domain.Transaction, error) {
	return r.first(ctx, "provider_conversation_id = ?", conversationID)
}

func (r *DefaultTransactionRepository) FindByThirdPartyReference(ctx context.Context, ref string) (*domain.Transaction, error) {
	return r.first(ctx, "third_party_reference = ?", ref)
}

func (r *DefaultTransactionRepository) FindReversalOf(ctx context.Context, originalID string) (*domain.Transaction, error) {
	return r.first(ctx, "original_transaction_id = ?", originalID)
}

// Update is a compare-and-set on status. Provider identifiers are only
// written while still empty, and a differing assigned value fails the update.
func (r *DefaultTransactionRepository) Update(ctx context.Context, id string, expected domain.TransactionStatus, patch domain.TransactionPatch) (*domain.Transaction, error) {
	var updated models.TransactionModel

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"updated_at": time.Now().UTC()}
		query := tx.Model(&models.TransactionModel{}).Where("id = ? AND status = ?", id, string(expected))

		if patch.Status != "" {
			updates["status"] = string(patch.Status)
		}
		if patch.ProviderTransactionID != nil {
			updates["provider_transaction_id"] = gorm.Expr("COALESCE(provider_transaction_id, ?)", *patch.ProviderTransactionID)
			query = query.Where("(provider_transaction_id IS NULL OR provider_transaction_id = ?)", *patch.ProviderTransactionID)
		}
		if patch.ProviderConversationID != nil {
			updates["provider_conversation_id"] = gorm.Expr("COALESCE(provider_conversation_id, ?)", *patch.ProviderConversationID)
			query = query.Where("(provider_conversation_id IS NULL OR provider_conversation_id = ?)", *patch.ProviderConversationID)
		}
		if patch.ProviderResponseCode != nil {
			updates["provider_response_code"] = *patch.ProviderResponseCode
		}
		if patch.ProviderResponseDescription != nil {
			updates["provider_response_description"] = *patch.ProviderResponseDescription
		}

		result := query.Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.TransactionModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNotFound
			}
			return domain.ErrStatusMismatch
		}

		return tx.First(&updated, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrStatusMismatch) {
			return nil, err
		}
		return nil, translateError(err)
	}
	return mappers.ToDomainTransaction(&updated), nil
}

func (r *DefaultTransactionRepository) FindStale(ctx context.Context, statuses []domain.TransactionStatus, olderThan time.Time, limit int) ([]*domain.Transaction, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	var list []models.TransactionModel
	query := r.DB.WithContext(ctx).
		Where("status IN ?", names).
		Where("updated_at < ?", olderThan).
		Where("archived_at IS NULL").
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&list).Error; err != nil {
		return nil, translateError(err)
	}
	return mappers.ToDomainTransactions(list), nil
}

func (r *DefaultTransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, int64, error) {
	query := r.DB.WithContext(ctx).Model(&models.TransactionModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}
	if filter.ClientReference != "" {
		query = query.Where("client_reference = ?", filter.ClientReference)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var list []models.TransactionModel
	offset := (filter.Page - 1) * filter.Limit
	if offset < 0 {
		offset = 0
	}
	if err := query.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&list).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return mappers.ToDomainTransactions(list), total, nil
}

func (r *DefaultTransactionRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return translateError(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	return nil
}

func (r *DefaultTransactionRepository) first(ctx context.Context, query string, args ...any) (*domain.Transaction, error) {
	var model models.TransactionModel
	if err := r.DB.WithContext(ctx).Where(query, args...).Order("created_at DESC").First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return mappers.ToDomainTransaction(&model), nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "UNIQUE constraint failed")
}

func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	return err
}
