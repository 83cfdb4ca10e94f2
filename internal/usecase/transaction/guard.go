package transaction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/logger"
)

// admit runs the idempotency guard for a freshly built record. It returns the
// stored record and whether it already existed.
func (uc *DefaultTransactionUsecase) admit(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, bool, error) {
	key := domain.StringValue(tx.IdempotencyKey)

	if key != "" {
		existing, err := uc.lookupByKey(ctx, key)
		switch {
		case err == nil:
			return uc.resolveDuplicate(existing, tx)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, false, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	created, err := uc.Repo.Create(ctx, tx)
	if err == nil {
		if key != "" && uc.Cache != nil {
			uc.Cache.Set(ctx, key, created.ID)
		}
		return created, false, nil
	}
	if key == "" || !errors.Is(err, domain.ErrDuplicateKey) {
		return nil, false, fmt.Errorf("create transaction: %w", err)
	}

	// lost the insert race, the winner is authoritative
	winner, err := uc.Repo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("re-read idempotency key winner: %w", err)
	}
	return uc.resolveDuplicate(winner, tx)
}

func (uc *DefaultTransactionUsecase) resolveDuplicate(existing, incoming *domain.Transaction) (*domain.Transaction, bool, error) {
	if existing.RequestFingerprint != incoming.RequestFingerprint {
		slog.Warn("idempotency key reused with a different payload",
			"idempotency_key", domain.StringValue(incoming.IdempotencyKey),
			"transaction_id", existing.ID,
		)
		return nil, false, domain.ErrIdempotencyKeyReuse
	}
	uc.recordDuplicateMetrics(existing)
	uc.audit(logger.EventDuplicate, existing.ID, map[string]any{
		"idempotency_key": domain.StringValue(existing.IdempotencyKey),
		"status":          string(existing.Status),
	})
	return existing, true, nil
}

func (uc *DefaultTransactionUsecase) lookupByKey(ctx context.Context, key string) (*domain.Transaction, error) {
	if uc.Cache != nil {
		if id, ok := uc.Cache.Get(ctx, key); ok {
			tx, err := uc.Repo.GetByID(ctx, id)
			if err == nil && tx.ArchivedAt == nil && domain.StringValue(tx.IdempotencyKey) == key {
				return tx, nil
			}
		}
	}
	return uc.Repo.FindByIdempotencyKey(ctx, key)
}

// fingerprint hashes the business fields of a request. The idempotency key
// and the client callback URL are not part of it.
func fingerprint(tx *domain.Transaction) string {
	amount := ""
	if tx.Amount.Valid {
		amount = tx.Amount.Decimal.StringFixed(2)
	}
	canonical := strings.Join([]string{
		string(tx.Operation),
		tx.ClientReference,
		tx.CustomerIdentifier,
		amount,
		tx.ServiceProviderCode,
		tx.ReceiverPartyCode,
		domain.StringValue(tx.OriginalTransactionID),
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
