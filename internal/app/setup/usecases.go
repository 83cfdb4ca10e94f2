package setup

import (
	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/LavaJover/shvark-mpesa-service/internal/usecase/transaction"
)

type UseCases struct {
	TransactionUsecase *transaction.DefaultTransactionUsecase
}

// InitializeUseCases builds the usecases. Disabled dependencies are passed as
// untyped nils so the usecase can tell them apart.
func InitializeUseCases(deps *Dependencies) *UseCases {
	var idempotencyCache domain.IdempotencyCache
	if deps.Cache != nil {
		idempotencyCache = deps.Cache
	}
	var eventPublisher transaction.EventPublisher
	if deps.Publisher != nil {
		eventPublisher = deps.Publisher
	}
	var audit transaction.AuditLogger
	if deps.Audit != nil {
		audit = deps.Audit
	}

	cfg := deps.Config
	transactionUsecase := transaction.NewDefaultTransactionUsecase(
		deps.Repo,
		deps.Provider,
		idempotencyCache,
		eventPublisher,
		deps.Notifier,
		audit,
		deps.Metrics,
		transaction.Config{
			ProviderTimeout:     cfg.Provider.Timeout,
			ServiceProviderCode: cfg.Provider.ServiceProviderCode,
			StaleAfter:          cfg.Sweeper.StaleAfter,
			SweepBatchSize:      cfg.Sweeper.BatchSize,
		},
	)

	return &UseCases{TransactionUsecase: transactionUsecase}
}
