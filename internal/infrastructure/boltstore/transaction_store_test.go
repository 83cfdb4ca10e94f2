package boltstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *TransactionStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTx(id, key string) *domain.Transaction {
	now := time.Now().UTC()
	return &domain.Transaction{
		ID:                  id,
		Type:                domain.TypeC2B,
		Operation:           domain.OpC2BPayment,
		ClientReference:     "T12344C",
		IdempotencyKey:      domain.StringPtr(key),
		ThirdPartyReference: "ref-" + id,
		CustomerIdentifier:  "258843330333",
		Amount:              decimal.NewNullDecimal(decimal.RequireFromString("10.50")),
		Status:              domain.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func TestCreateRejectsDuplicateKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, newTx("id-1", "abc")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.Create(ctx, newTx("id-2", "abc")); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("second create: got %v, want ErrDuplicateKey", err)
	}

	got, err := s.FindByIdempotencyKey(ctx, "abc")
	if err != nil {
		t.Fatalf("FindByIdempotencyKey: %v", err)
	}
	if got.ID != "id-1" || got.Amount.Decimal.StringFixed(2) != "10.50" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestCreateWithoutKeyNeverConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"id-1", "id-2"} {
		if _, err := s.Create(ctx, newTx(id, "")); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if _, err := s.FindByIdempotencyKey(ctx, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty key lookup: %v", err)
	}
}

func TestUpdateIsConditional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, newTx("id-1", "abc")); err != nil {
		t.Fatal(err)
	}

	updated, err := s.Update(ctx, "id-1", domain.StatusPending, domain.TransactionPatch{
		Status:                domain.StatusAccepted,
		ProviderTransactionID: domain.StringPtr("MP001"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.StatusAccepted {
		t.Fatalf("status = %s", updated.Status)
	}

	_, err = s.Update(ctx, "id-1", domain.StatusPending, domain.TransactionPatch{Status: domain.StatusFailed})
	if !errors.Is(err, domain.ErrStatusMismatch) {
		t.Fatalf("stale expected status: got %v", err)
	}

	_, err = s.Update(ctx, "id-1", domain.StatusAccepted, domain.TransactionPatch{
		Status:                domain.StatusCompleted,
		ProviderTransactionID: domain.StringPtr("MP999"),
	})
	if !errors.Is(err, domain.ErrStatusMismatch) {
		t.Fatalf("identifier overwrite: got %v", err)
	}

	byProvider, err := s.FindByProviderTransactionID(ctx, "MP001")
	if err != nil || byProvider.ID != "id-1" {
		t.Fatalf("FindByProviderTransactionID = %v, %v", byProvider, err)
	}

	if _, err := s.Update(ctx, "missing", domain.StatusPending, domain.TransactionPatch{Status: domain.StatusFailed}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing record: got %v", err)
	}
}

func TestFindReversalOf(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rev := newTx("rev-1", "reversal:id-1")
	rev.Type = domain.TypeReversal
	rev.Operation = domain.OpReversal
	rev.OriginalTransactionID = domain.StringPtr("id-1")
	if _, err := s.Create(ctx, rev); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindReversalOf(ctx, "id-1")
	if err != nil || got.ID != "rev-1" {
		t.Fatalf("FindReversalOf = %v, %v", got, err)
	}
	if _, err := s.FindReversalOf(ctx, "id-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown original: %v", err)
	}
}

func TestListAndFindStale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := newTx("old", "k-old")
	old.CreatedAt = old.CreatedAt.Add(-time.Hour)
	old.UpdatedAt = old.CreatedAt
	for _, tx := range []*domain.Transaction{old, newTx("new-1", "k-1"), newTx("new-2", "k-2")} {
		if _, err := s.Create(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	stale, err := s.FindStale(ctx, []domain.TransactionStatus{domain.StatusPending}, time.Now().Add(-time.Minute), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0].ID != "old" {
		t.Fatalf("stale = %v", stale)
	}

	page, total, err := s.List(ctx, domain.TransactionFilter{Status: domain.StatusPending, Page: 2, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(page) != 1 || page[0].ID != "old" {
		t.Fatalf("page = %v, total = %d", page, total)
	}
}
