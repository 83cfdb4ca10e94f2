package transaction

import (
	"context"
	"fmt"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	transactiondto "github.com/LavaJover/shvark-mpesa-service/internal/usecase/dto/transaction"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func (uc *DefaultTransactionUsecase) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, err := uc.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (uc *DefaultTransactionUsecase) ListTransactions(ctx context.Context, filter domain.TransactionFilter) (*transactiondto.ListTransactionsOutput, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, filter.Status)
	}

	txs, total, err := uc.Repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return &transactiondto.ListTransactionsOutput{
		Transactions: txs,
		Total:        total,
		Page:         filter.Page,
		Limit:        filter.Limit,
	}, nil
}

func (uc *DefaultTransactionUsecase) Health(ctx context.Context) error {
	return uc.Repo.Ping(ctx)
}
