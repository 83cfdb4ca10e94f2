// Package boltstore is an embedded, single-file TransactionRepository for
// single node deployments and local development.
//
// Bolt allows one read-write transaction at a time, so every check-then-write
// below is atomic without further locking.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
)

var (
	bucketTransactions   = []byte("transactions")
	bucketIdempotencyKey = []byte("idx_idempotency_key")
	bucketProviderTxID   = []byte("idx_provider_transaction_id")
	bucketConversationID = []byte("idx_provider_conversation_id")
	bucketThirdPartyRef  = []byte("idx_third_party_reference")
	bucketReversals      = []byte("idx_reversal_of")
)

type TransactionStore struct {
	db *bolt.DB
}

// New opens (or creates) the database at path and ensures all buckets exist.
func New(path string) (*TransactionStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			bucketTransactions, bucketIdempotencyKey, bucketProviderTxID,
			bucketConversationID, bucketThirdPartyRef, bucketReversals,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &TransactionStore{db: db}, nil
}

func (s *TransactionStore) Close() error {
	return s.db.Close()
}

func (s *TransactionStore) Create(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	record := t.Clone()

	err := s.db.Update(func(tx *bolt.Tx) error {
		if key := domain.StringValue(record.IdempotencyKey); key != "" {
			if id := tx.Bucket(bucketIdempotencyKey).Get([]byte(key)); id != nil {
				existing, err := get(tx, string(id))
				if err == nil && existing.ArchivedAt == nil {
					return domain.ErrDuplicateKey
				}
			}
		}
		if tx.Bucket(bucketTransactions).Get([]byte(record.ID)) != nil {
			return fmt.Errorf("transaction %s already exists", record.ID)
		}
		return put(tx, nil, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *TransactionStore) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.view(ctx, func(tx *bolt.Tx) (*domain.Transaction, error) {
		return get(tx, id)
	})
}

func (s *TransactionStore) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return s.view(ctx, func(tx *bolt.Tx) (*domain.Transaction, error) {
		t, err := lookup(tx, bucketIdempotencyKey, key)
		if err != nil {
			return nil, err
		}
		if t.ArchivedAt != nil {
			return nil, domain.ErrNotFound
		}
		return t, nil
	})
}

func (s *TransactionStore) FindByProviderTransactionID(ctx context.Context, providerTxID string) (*domain.Transaction, error) {
	return s.view(ctx, func(tx *bolt.Tx) (*domain.Transaction, error) {
		return lookup(tx, bucketProviderTxID, providerTxID)
	})
}

func (s *TransactionStore) FindByProviderConversationID(ctx context.Context, conversationID string) (*domain.Transaction, error) {
	return s.view(ctx, func(tx *bolt.Tx) (*domain.Transaction, error) {
		return lookup(tx, bucketConversationID, conversationID)
	})
}

func (s *TransactionStore) FindByThirdPartyReference(ctx context.Context, ref string) (*domain.Transaction, error) {
	return s.view(ctx, func(tx *bolt.Tx) (*domain.Transaction, error) {
		return lookup(tx, bucketThirdPartyRef, ref)
	})
}

func (s *TransactionStore) FindReversalOf(ctx context.Context, originalID string) (*domain.Transaction, error) {
	return s.view(ctx, func(tx *bolt.Tx) (*domain.Transaction, error) {
		return lookup(tx, bucketReversals, originalID)
	})
}

func (s *TransactionStore) Update(ctx context.Context, id string, expected domain.TransactionStatus, patch domain.TransactionPatch) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result *domain.Transaction
	err := s.db.Update(func(tx *bolt.Tx) error {
		current, err := get(tx, id)
		if err != nil {
			return err
		}
		if current.Status != expected || domain.CheckIdentifiers(current, patch) != nil {
			return domain.ErrStatusMismatch
		}

		updated := current.Clone()
		updated.Apply(patch, time.Now().UTC())
		if err := put(tx, current, updated); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *TransactionStore) FindStale(ctx context.Context, statuses []domain.TransactionStatus, olderThan time.Time, limit int) ([]*domain.Transaction, error) {
	wanted := make(map[domain.TransactionStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	txs, err := s.scan(ctx, func(t *domain.Transaction) bool {
		return wanted[t.Status] && t.UpdatedAt.Before(olderThan) && t.ArchivedAt == nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(txs, func(i, j int) bool { return txs[i].UpdatedAt.Before(txs[j].UpdatedAt) })
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (s *TransactionStore) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, int64, error) {
	txs, err := s.scan(ctx, func(t *domain.Transaction) bool {
		return (filter.Status == "" || t.Status == filter.Status) &&
			(filter.Type == "" || t.Type == filter.Type) &&
			(filter.ClientReference == "" || t.ClientReference == filter.ClientReference)
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	total := int64(len(txs))

	offset := (filter.Page - 1) * filter.Limit
	if offset < 0 {
		offset = 0
	}
	if offset >= len(txs) {
		return []*domain.Transaction{}, total, nil
	}
	end := len(txs)
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	return txs[offset:end], total, nil
}

func (s *TransactionStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketTransactions) == nil {
			return domain.ErrPersistenceUnavailable
		}
		return nil
	})
}

func (s *TransactionStore) view(ctx context.Context, fn func(tx *bolt.Tx) (*domain.Transaction, error)) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result *domain.Transaction
	err := s.db.View(func(tx *bolt.Tx) error {
		t, err := fn(tx)
		result = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *TransactionStore) scan(ctx context.Context, match func(*domain.Transaction) bool) ([]*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txs := []*domain.Transaction{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransactions).ForEach(func(_, v []byte) error {
			var t domain.Transaction
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			if match(&t) {
				txs = append(txs, &t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func get(tx *bolt.Tx, id string) (*domain.Transaction, error) {
	v := tx.Bucket(bucketTransactions).Get([]byte(id))
	if v == nil {
		return nil, domain.ErrNotFound
	}
	var t domain.Transaction
	if err := json.Unmarshal(v, &t); err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", id, err)
	}
	return &t, nil
}

func lookup(tx *bolt.Tx, bucket []byte, value string) (*domain.Transaction, error) {
	if value == "" {
		return nil, domain.ErrNotFound
	}
	id := tx.Bucket(bucket).Get([]byte(value))
	if id == nil {
		return nil, domain.ErrNotFound
	}
	return get(tx, string(id))
}

// put stores next and adds index entries for values that became set since prev.
func put(tx *bolt.Tx, prev, next *domain.Transaction) error {
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucketTransactions).Put([]byte(next.ID), data); err != nil {
		return err
	}

	if prev == nil {
		prev = &domain.Transaction{}
		if err := index(tx, bucketIdempotencyKey, domain.StringValue(next.IdempotencyKey), next.ID); err != nil {
			return err
		}
		if err := index(tx, bucketThirdPartyRef, next.ThirdPartyReference, next.ID); err != nil {
			return err
		}
		if next.Type == domain.TypeReversal {
			if err := index(tx, bucketReversals, domain.StringValue(next.OriginalTransactionID), next.ID); err != nil {
				return err
			}
		}
	}
	if prev.ProviderTransactionID == nil {
		if err := index(tx, bucketProviderTxID, domain.StringValue(next.ProviderTransactionID), next.ID); err != nil {
			return err
		}
	}
	if prev.ProviderConversationID == nil {
		if err := index(tx, bucketConversationID, domain.StringValue(next.ProviderConversationID), next.ID); err != nil {
			return err
		}
	}
	return nil
}

func index(tx *bolt.Tx, bucket []byte, value, id string) error {
	if value == "" {
		return nil
	}
	return tx.Bucket(bucket).Put([]byte(value), []byte(id))
}
