package transaction

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/boltstore"
	publisher "github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/notifier"
	transactiondto "github.com/LavaJover/shvark-mpesa-service/internal/usecase/dto/transaction"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

type fakeProvider struct {
	mu      sync.Mutex
	calls   []domain.ProviderRequest
	respond func(req domain.ProviderRequest) (*domain.ProviderResponse, error)
}

func (p *fakeProvider) Invoke(_ context.Context, req domain.ProviderRequest) (*domain.ProviderResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	respond := p.respond
	p.mu.Unlock()
	return respond(req)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProvider) lastCall() domain.ProviderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

func (p *fakeProvider) setRespond(fn func(req domain.ProviderRequest) (*domain.ProviderResponse, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.respond = fn
}

func acceptWith(providerTxID string) func(domain.ProviderRequest) (*domain.ProviderResponse, error) {
	return func(req domain.ProviderRequest) (*domain.ProviderResponse, error) {
		return &domain.ProviderResponse{
			HTTPStatus:          201,
			ResponseCode:        domain.CodeOK,
			ResponseDescription: "Request processed successfully",
			TransactionID:       providerTxID,
			ConversationID:      "CONV-" + providerTxID,
			ThirdPartyReference: req.ThirdPartyReference,
		}, nil
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publisher.TransactionEvent
}

func (p *recordingPublisher) PublishTransaction(_ context.Context, event publisher.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) countStatus(status domain.TransactionStatus) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Status == string(status) {
			n++
		}
	}
	return n
}

type recordingCallbacks struct {
	mu       sync.Mutex
	payloads []notifier.CallbackPayload
}

func (c *recordingCallbacks) SendCallback(_ string, payload notifier.CallbackPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
}

func (c *recordingCallbacks) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

type testEnv struct {
	uc        *DefaultTransactionUsecase
	store     *boltstore.TransactionStore
	provider  *fakeProvider
	publisher *recordingPublisher
	callbacks *recordingCallbacks
	metrics   *metrics.TransactionMetrics
}

func newTestEnv(t *testing.T, respond func(domain.ProviderRequest) (*domain.ProviderResponse, error)) *testEnv {
	t.Helper()
	store, err := boltstore.New(filepath.Join(t.TempDir(), "mpesa.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		store:     store,
		provider:  &fakeProvider{respond: respond},
		publisher: &recordingPublisher{},
		callbacks: &recordingCallbacks{},
		metrics:   metrics.NewTransactionMetrics(prometheus.NewRegistry()),
	}
	env.uc = NewDefaultTransactionUsecase(
		store,
		env.provider,
		nil,
		env.publisher,
		env.callbacks,
		nil,
		env.metrics,
		Config{ProviderTimeout: time.Second, ServiceProviderCode: "171717"},
	)
	return env
}

func c2bInput(key, amount string) *transactiondto.SubmitInput {
	return &transactiondto.SubmitInput{
		Operation:          domain.OpC2BPayment,
		IdempotencyKey:     key,
		ClientReference:    "T12344C",
		CustomerIdentifier: "258843330333",
		Amount:             decimal.NewNullDecimal(decimal.RequireFromString(amount)),
		CallbackURL:        "https://merchant.example/hook",
	}
}

func mustSubmit(t *testing.T, uc *DefaultTransactionUsecase, input *transactiondto.SubmitInput) *transactiondto.TransactionOutput {
	t.Helper()
	out, err := uc.Submit(context.Background(), input)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return out
}
