package transaction

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	transactiondto "github.com/LavaJover/shvark-mpesa-service/internal/usecase/dto/transaction"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCallbackReplaysFireSideEffectsOnce(t *testing.T) {
	env := newTestEnv(t, acceptWith("MP100"))
	ctx := context.Background()
	mustSubmit(t, env.uc, c2bInput("replay", "75"))

	payload := domain.CallbackPayload{TransactionID: "MP100", ResponseCode: domain.CodeOK}
	for i := 0; i < 5; i++ {
		out, err := env.uc.ReconcileCallback(ctx, payload)
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		want := transactiondto.CallbackReplayed
		if i == 0 {
			want = transactiondto.CallbackApplied
		}
		if out.Outcome != want {
			t.Fatalf("delivery %d: expected %s, got %s", i, want, out.Outcome)
		}
	}

	env.uc.Wait()
	if n := env.publisher.countStatus(domain.StatusCompleted); n != 1 {
		t.Fatalf("expected one completed event, got %d", n)
	}
	if n := env.callbacks.count(); n != 1 {
		t.Fatalf("expected one client callback, got %d", n)
	}
	if v := testutil.ToFloat64(env.metrics.CallbacksTotal.WithLabelValues("replayed")); v != 4 {
		t.Fatalf("expected 4 replays recorded, got %v", v)
	}
}

func TestCallbackConcurrentDeliveriesApplyOnce(t *testing.T) {
	env := newTestEnv(t, acceptWith("MP101"))
	mustSubmit(t, env.uc, c2bInput("race", "75"))

	var applied, replayed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := env.uc.ReconcileCallback(context.Background(), domain.CallbackPayload{TransactionID: "MP101", ResponseCode: domain.CodeOK})
			if err != nil {
				t.Errorf("ReconcileCallback: %v", err)
				return
			}
			switch out.Outcome {
			case transactiondto.CallbackApplied:
				applied.Add(1)
			case transactiondto.CallbackReplayed:
				replayed.Add(1)
			}
		}()
	}
	wg.Wait()

	if applied.Load() != 1 || replayed.Load() != 9 {
		t.Fatalf("expected 1 applied and 9 replayed, got %d/%d", applied.Load(), replayed.Load())
	}
}

func TestCallbackBeforeSynchronousAccept(t *testing.T) {
	var env *testEnv
	env = newTestEnv(t, func(req domain.ProviderRequest) (*domain.ProviderResponse, error) {
		// the provider settles the payment before answering the request
		if _, err := env.uc.ReconcileCallback(context.Background(), domain.CallbackPayload{
			TransactionID:       "MP200",
			ThirdPartyReference: req.ThirdPartyReference,
			ResponseCode:        domain.CodeOK,
		}); err != nil {
			t.Errorf("early callback: %v", err)
		}
		return acceptWith("MP200")(req)
	})

	out := mustSubmit(t, env.uc, c2bInput("early", "20"))
	if out.Transaction.Status != domain.StatusCompleted {
		t.Fatalf("late accepted answer must not regress the record, got %s", out.Transaction.Status)
	}
	if domain.StringValue(out.Transaction.ProviderConversationID) != "CONV-MP200" {
		t.Fatalf("late answer should still fill the conversation id")
	}

	env.uc.Wait()
	if n := env.publisher.countStatus(domain.StatusAccepted); n != 0 {
		t.Fatalf("no accepted transition should be published, got %d", n)
	}
}

func TestRejectionAfterCallbackReportsStoredOutcome(t *testing.T) {
	var env *testEnv
	env = newTestEnv(t, func(req domain.ProviderRequest) (*domain.ProviderResponse, error) {
		if _, err := env.uc.ReconcileCallback(context.Background(), domain.CallbackPayload{
			TransactionID:       "MP210",
			ThirdPartyReference: req.ThirdPartyReference,
			ResponseCode:        domain.CodeOK,
		}); err != nil {
			t.Errorf("early callback: %v", err)
		}
		return &domain.ProviderResponse{HTTPStatus: 422, ResponseCode: "INS-2006", ResponseDescription: "Insufficient balance"}, nil
	})

	out := mustSubmit(t, env.uc, c2bInput("settled-first", "20"))
	if out.Transaction.Status != domain.StatusCompleted {
		t.Fatalf("late rejection must not regress the record, got %s", out.Transaction.Status)
	}
	if out.Outcome != transactiondto.OutcomeAccepted {
		t.Fatalf("outcome should follow the stored record, got %s", out.Outcome)
	}
	if out.Response != nil {
		t.Fatalf("the contradicting provider answer must not be reported")
	}
	if out.Transaction.ProviderResponseCode != domain.CodeOK {
		t.Fatalf("stored response code should stay %s, got %q", domain.CodeOK, out.Transaction.ProviderResponseCode)
	}
}

func TestCallbackOrphan(t *testing.T) {
	env := newTestEnv(t, acceptWith("MP300"))

	out, err := env.uc.ReconcileCallback(context.Background(), domain.CallbackPayload{TransactionID: "UNKNOWN", ResponseCode: domain.CodeOK})
	if err != nil {
		t.Fatalf("orphan callback must be acknowledged, got %v", err)
	}
	if out.Outcome != transactiondto.CallbackOrphan || out.Transaction != nil {
		t.Fatalf("expected orphan outcome without a record, got %+v", out)
	}
}

func TestCallbackIdentifierConflict(t *testing.T) {
	env := newTestEnv(t, acceptWith("MP400"))
	mustSubmit(t, env.uc, c2bInput("conflict", "20"))

	_, err := env.uc.ReconcileCallback(context.Background(), domain.CallbackPayload{
		TransactionID:  "MP999",
		ConversationID: "CONV-MP400",
		ResponseCode:   domain.CodeOK,
	})
	if !errors.Is(err, domain.ErrIdentifierConflict) {
		t.Fatalf("expected ErrIdentifierConflict, got %v", err)
	}
}

func TestCallbackFailureCode(t *testing.T) {
	env := newTestEnv(t, acceptWith("MP500"))
	mustSubmit(t, env.uc, c2bInput("declined", "20"))

	out, err := env.uc.ReconcileCallback(context.Background(), domain.CallbackPayload{
		TransactionID:       "MP500",
		ResponseCode:        "INS-2051",
		ResponseDescription: "Invalid msisdn",
	})
	if err != nil {
		t.Fatalf("ReconcileCallback: %v", err)
	}
	if out.Transaction.Status != domain.StatusFailed || out.Transaction.ProviderResponseCode != "INS-2051" {
		t.Fatalf("expected failed record with INS-2051, got %s/%s", out.Transaction.Status, out.Transaction.ProviderResponseCode)
	}
}

func TestCallbackRequiresIdentifier(t *testing.T) {
	env := newTestEnv(t, acceptWith("MP600"))

	_, err := env.uc.ReconcileCallback(context.Background(), domain.CallbackPayload{ResponseCode: domain.CodeOK})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
