package transaction

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	transactiondto "github.com/LavaJover/shvark-mpesa-service/internal/usecase/dto/transaction"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSubmitThenCallbackCompletesPayment(t *testing.T) {
	env := newTestEnv(t, acceptWith("MP001"))
	ctx := context.Background()

	out := mustSubmit(t, env.uc, c2bInput("abc", "100"))
	if out.Outcome != transactiondto.OutcomeAccepted {
		t.Fatalf("expected accepted outcome, got %s", out.Outcome)
	}
	if out.Transaction.Status != domain.StatusAccepted {
		t.Fatalf("expected accepted status, got %s", out.Transaction.Status)
	}
	if got := domain.StringValue(out.Transaction.ProviderTransactionID); got != "MP001" {
		t.Fatalf("expected provider transaction id MP001, got %q", got)
	}
	if env.provider.lastCall().ThirdPartyReference != "abc" {
		t.Fatalf("short idempotency key should be used as third party reference")
	}

	cb, err := env.uc.ReconcileCallback(ctx, domain.CallbackPayload{TransactionID: "MP001", ResponseCode: domain.CodeOK})
	if err != nil {
		t.Fatalf("ReconcileCallback: %v", err)
	}
	if cb.Outcome != transactiondto.CallbackApplied || cb.Transaction.Status != domain.StatusCompleted {
		t.Fatalf("expected applied completion, got %s/%s", cb.Outcome, cb.Transaction.Status)
	}

	again := mustSubmit(t, env.uc, c2bInput("abc", "100"))
	if again.Outcome != transactiondto.OutcomeDuplicate {
		t.Fatalf("expected duplicate outcome, got %s", again.Outcome)
	}
	if again.Transaction.ID != out.Transaction.ID || again.Transaction.Status != domain.StatusCompleted {
		t.Fatalf("resubmission should return the stored completed record")
	}
	if n := env.provider.callCount(); n != 1 {
		t.Fatalf("expected a single provider call, got %d", n)
	}

	env.uc.Wait()
	if n := env.publisher.countStatus(domain.StatusCompleted); n != 1 {
		t.Fatalf("expected one completed event, got %d", n)
	}
	if n := env.callbacks.count(); n != 1 {
		t.Fatalf("expected one client callback, got %d", n)
	}
	if v := testutil.ToFloat64(env.metrics.DuplicateSubmissionsTotal.WithLabelValues(string(domain.OpC2BPayment))); v != 1 {
		t.Fatalf("expected one duplicate recorded, got %v", v)
	}
}

func TestSubmitKeyReuseWithDifferentPayload(t *testing.T) {
	env := newTestEnv(t, acceptWith("MP001"))

	mustSubmit(t, env.uc, c2bInput("abc", "100"))
	_, err := env.uc.Submit(context.Background(), c2bInput("abc", "250"))
	if !errors.Is(err, domain.ErrIdempotencyKeyReuse) {
		t.Fatalf("expected ErrIdempotencyKeyReuse, got %v", err)
	}
	if n := env.provider.callCount(); n != 1 {
		t.Fatalf("conflicting resubmission must not reach the provider, got %d calls", n)
	}
}

func TestSubmitConcurrentSameKey(t *testing.T) {
	env := newTestEnv(t, acceptWith("MP002"))

	const workers = 16
	var wg sync.WaitGroup
	ids := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := env.uc.Submit(context.Background(), c2bInput("xyz", "10"))
			errs[i] = err
			if err == nil {
				ids[i] = out.Transaction.ID
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
		if ids[i] != ids[0] {
			t.Fatalf("workers resolved to different records: %s vs %s", ids[i], ids[0])
		}
	}
	if n := env.provider.callCount(); n != 1 {
		t.Fatalf("expected exactly one provider call, got %d", n)
	}

	list, err := env.uc.ListTransactions(context.Background(), domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("expected one stored record, got %d", list.Total)
	}
}

func TestSubmitWithoutKeyGeneratesReference(t *testing.T) {
	env := newTestEnv(t, acceptWith("MP003"))

	first := mustSubmit(t, env.uc, c2bInput("", "10"))
	second := mustSubmit(t, env.uc, c2bInput("", "10"))

	if first.Transaction.ID == second.Transaction.ID {
		t.Fatalf("submissions without a key must create distinct records")
	}
	ref := first.Transaction.ThirdPartyReference
	if !strings.HasPrefix(ref, generatedRefPrefix) || len(ref) != maxProviderRefLength {
		t.Fatalf("unexpected generated reference %q", ref)
	}
	if ref == second.Transaction.ThirdPartyReference {
		t.Fatalf("generated references must differ")
	}
}

func TestSubmitLongKeyGetsGeneratedReference(t *testing.T) {
	env := newTestEnv(t, acceptWith("MP004"))

	out := mustSubmit(t, env.uc, c2bInput("order-2024-000000000001", "10"))
	if out.Transaction.ThirdPartyReference == "order-2024-000000000001" {
		t.Fatalf("keys longer than the provider limit must not be sent as reference")
	}
	if domain.StringValue(out.Transaction.IdempotencyKey) != "order-2024-000000000001" {
		t.Fatalf("idempotency key must be stored unchanged")
	}
}

func TestSubmitProviderUnavailableLeavesPending(t *testing.T) {
	env := newTestEnv(t, func(domain.ProviderRequest) (*domain.ProviderResponse, error) {
		return nil, domain.ErrProviderUnavailable
	})
	ctx := context.Background()

	out := mustSubmit(t, env.uc, c2bInput("timeout-1", "50"))
	if out.Outcome != transactiondto.OutcomePending || out.Transaction.Status != domain.StatusPending {
		t.Fatalf("expected pending record, got %s/%s", out.Outcome, out.Transaction.Status)
	}

	retry := mustSubmit(t, env.uc, c2bInput("timeout-1", "50"))
	if retry.Outcome != transactiondto.OutcomeDuplicate || retry.Transaction.Status != domain.StatusPending {
		t.Fatalf("retry should return the pending record, got %s/%s", retry.Outcome, retry.Transaction.Status)
	}
	if n := env.provider.callCount(); n != 1 {
		t.Fatalf("retry must not call the provider again, got %d calls", n)
	}

	cb, err := env.uc.ReconcileCallback(ctx, domain.CallbackPayload{
		TransactionID:       "MP010",
		ThirdPartyReference: "timeout-1",
		ResponseCode:        domain.CodeOK,
	})
	if err != nil {
		t.Fatalf("ReconcileCallback: %v", err)
	}
	if cb.Transaction.Status != domain.StatusCompleted || domain.StringValue(cb.Transaction.ProviderTransactionID) != "MP010" {
		t.Fatalf("callback should complete the pending record and store its id")
	}
}

func TestSubmitIndeterminateCodeLeavesPending(t *testing.T) {
	env := newTestEnv(t, func(domain.ProviderRequest) (*domain.ProviderResponse, error) {
		return &domain.ProviderResponse{HTTPStatus: 408, ResponseCode: "INS-9"}, nil
	})

	out := mustSubmit(t, env.uc, c2bInput("slow", "50"))
	if out.Outcome != transactiondto.OutcomePending {
		t.Fatalf("expected pending outcome, got %s", out.Outcome)
	}
	stored, err := env.uc.GetTransaction(context.Background(), out.Transaction.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if stored.Status != domain.StatusPending {
		t.Fatalf("expected stored status pending, got %s", stored.Status)
	}
}

func TestSubmitRejectedByProvider(t *testing.T) {
	env := newTestEnv(t, func(domain.ProviderRequest) (*domain.ProviderResponse, error) {
		return &domain.ProviderResponse{HTTPStatus: 422, ResponseCode: "INS-2006", ResponseDescription: "Insufficient balance"}, nil
	})
	ctx := context.Background()

	out := mustSubmit(t, env.uc, c2bInput("poor", "50"))
	if out.Outcome != transactiondto.OutcomeRejected || out.Transaction.Status != domain.StatusFailed {
		t.Fatalf("expected rejected/failed, got %s/%s", out.Outcome, out.Transaction.Status)
	}
	if out.Transaction.ProviderResponseCode != "INS-2006" {
		t.Fatalf("response code not stored: %q", out.Transaction.ProviderResponseCode)
	}

	_, err := env.uc.ReconcileCallback(ctx, domain.CallbackPayload{ThirdPartyReference: "poor", ResponseCode: domain.CodeOK})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for failed -> completed, got %v", err)
	}
}

func TestSubmitInvalidInput(t *testing.T) {
	env := newTestEnv(t, acceptWith("MP005"))

	in := c2bInput("bad", "10")
	in.CustomerIdentifier = "841234567"
	_, err := env.uc.Submit(context.Background(), in)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if env.provider.callCount() != 0 {
		t.Fatalf("invalid input must not reach the provider")
	}
}

func TestQueryCustomerNameSettlesSynchronously(t *testing.T) {
	env := newTestEnv(t, func(req domain.ProviderRequest) (*domain.ProviderResponse, error) {
		return &domain.ProviderResponse{HTTPStatus: 200, ResponseCode: domain.CodeOK, CustomerName: "J*** D**"}, nil
	})

	out := mustSubmit(t, env.uc, &transactiondto.SubmitInput{
		Operation:          domain.OpQueryCustomerName,
		CustomerIdentifier: "258843330333",
	})
	if out.Transaction.Type != domain.TypeQuery || out.Transaction.Status != domain.StatusCompleted {
		t.Fatalf("expected completed query, got %s/%s", out.Transaction.Type, out.Transaction.Status)
	}
	if out.Transaction.ProviderResponseDescription != "J*** D**" {
		t.Fatalf("customer name not stored, got %q", out.Transaction.ProviderResponseDescription)
	}
}

func TestQueryTransactionStatusSendsQueryReference(t *testing.T) {
	env := newTestEnv(t, func(req domain.ProviderRequest) (*domain.ProviderResponse, error) {
		return &domain.ProviderResponse{HTTPStatus: 200, ResponseCode: domain.CodeOK, TransactionStatus: "Completed"}, nil
	})

	mustSubmit(t, env.uc, &transactiondto.SubmitInput{
		Operation:       domain.OpQueryTransactionStatus,
		ClientReference: "5C1400CVRO",
	})
	req := env.provider.lastCall()
	if req.QueryReference != "5C1400CVRO" || req.TransactionReference != "" {
		t.Fatalf("unexpected query request %+v", req)
	}
	if req.ServiceProviderCode != "171717" {
		t.Fatalf("default service provider code not applied, got %q", req.ServiceProviderCode)
	}
}
