package transaction

import (
	"context"
	"sync"
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	publisher "github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/notifier"
	transactiondto "github.com/LavaJover/shvark-mpesa-service/internal/usecase/dto/transaction"
	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"
)

type TransactionUsecase interface {
	Submit(ctx context.Context, input *transactiondto.SubmitInput) (*transactiondto.TransactionOutput, error)
	Reverse(ctx context.Context, input *transactiondto.ReverseInput) (*transactiondto.TransactionOutput, error)
	ReconcileCallback(ctx context.Context, payload domain.CallbackPayload) (*transactiondto.CallbackOutput, error)

	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) (*transactiondto.ListTransactionsOutput, error)
	SweepStale(ctx context.Context) (*transactiondto.SweepOutput, error)
	Health(ctx context.Context) error
}

type EventPublisher interface {
	PublishTransaction(ctx context.Context, event publisher.TransactionEvent) error
}

type CallbackSender interface {
	SendCallback(callbackURL string, payload notifier.CallbackPayload)
}

type AuditLogger interface {
	Log(eventType, transactionID string, payload map[string]any)
}

type Config struct {
	ProviderTimeout     time.Duration
	ServiceProviderCode string
	StaleAfter          time.Duration
	SweepBatchSize      int
}

// DefaultTransactionUsecase drives the transaction lifecycle. Repo and
// Provider are required; every other collaborator may be nil.
type DefaultTransactionUsecase struct {
	Repo      domain.TransactionRepository
	Provider  domain.Provider
	Cache     domain.IdempotencyCache
	Publisher EventPublisher
	Callbacks CallbackSender
	Audit     AuditLogger
	Metrics   *metrics.TransactionMetrics
	Config    Config

	now    func() time.Time
	newID  func() string
	newRef func() string

	// tracks background side effects so shutdown can wait for them
	wg sync.WaitGroup
}

func NewDefaultTransactionUsecase(
	repo domain.TransactionRepository,
	provider domain.Provider,
	cache domain.IdempotencyCache,
	eventPublisher EventPublisher,
	callbacks CallbackSender,
	audit AuditLogger,
	transactionMetrics *metrics.TransactionMetrics,
	cfg Config) *DefaultTransactionUsecase {

	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 50
	}

	return &DefaultTransactionUsecase{
		Repo:      repo,
		Provider:  provider,
		Cache:     cache,
		Publisher: eventPublisher,
		Callbacks: callbacks,
		Audit:     audit,
		Metrics:   transactionMetrics,
		Config:    cfg,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		newRef:    mustReferenceGenerator(),
	}
}

// Wait blocks until background side effects started so far have finished.
func (uc *DefaultTransactionUsecase) Wait() {
	uc.wg.Wait()
}

const (
	generatedRefPrefix = "mpesa_"
	// M-Pesa accepts third party references of at most 20 characters
	maxProviderRefLength = 20
)

func mustReferenceGenerator() func() string {
	gen, err := nanoid.CustomASCII("abcdefghijklmnopqrstuvwxyz0123456789", maxProviderRefLength-len(generatedRefPrefix))
	if err != nil {
		panic(err)
	}
	return func() string {
		return generatedRefPrefix + gen()
	}
}
