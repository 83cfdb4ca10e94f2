package transaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	transactiondto "github.com/LavaJover/shvark-mpesa-service/internal/usecase/dto/transaction"
)

// SweepStale asks the provider about payments and reversals stuck in pending
// or accepted for longer than StaleAfter and applies any final status it
// reports. A reversal resolved to completed also reverses its original.
func (uc *DefaultTransactionUsecase) SweepStale(ctx context.Context) (*transactiondto.SweepOutput, error) {
	olderThan := uc.now().Add(-uc.Config.StaleAfter)
	stale, err := uc.Repo.FindStale(ctx,
		[]domain.TransactionStatus{domain.StatusPending, domain.StatusAccepted},
		olderThan,
		uc.Config.SweepBatchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("find stale transactions: %w", err)
	}

	out := &transactiondto.SweepOutput{}
	for _, tx := range stale {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if tx.Type == domain.TypeQuery {
			continue
		}
		out.Checked++

		resolved, err := uc.refreshStatus(ctx, tx)
		switch {
		case err != nil:
			uc.recordSweepMetrics("error")
			slog.Warn("stale transaction refresh failed", "transaction_id", tx.ID, "error", err)
		case resolved:
			out.Resolved++
			uc.recordSweepMetrics("resolved")
		default:
			uc.recordSweepMetrics("unresolved")
		}
	}
	return out, nil
}

func (uc *DefaultTransactionUsecase) refreshStatus(ctx context.Context, tx *domain.Transaction) (bool, error) {
	ref := domain.StringValue(tx.ProviderTransactionID)
	if ref == "" {
		ref = tx.ThirdPartyReference
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.Config.ProviderTimeout)
	defer cancel()
	resp, err := uc.Provider.Invoke(callCtx, domain.ProviderRequest{
		Operation:           domain.OpQueryTransactionStatus,
		QueryReference:      ref,
		ThirdPartyReference: uc.newRef(),
		ServiceProviderCode: tx.ServiceProviderCode,
	})
	if err != nil {
		return false, err
	}
	if resp.ResponseCode != domain.CodeOK {
		return false, nil
	}

	target, ok := statusFromQuery(resp.TransactionStatus)
	if !ok {
		return false, nil
	}

	updated, applied, err := uc.transition(ctx, tx.ID, domain.TransactionPatch{
		Status:                      target,
		ProviderResponseDescription: domain.StringPtr("status query: " + resp.TransactionStatus),
	})
	if err != nil {
		return false, err
	}
	if updated.Type == domain.TypeReversal {
		uc.markReversed(ctx, updated)
	}
	return applied, nil
}

func statusFromQuery(status string) (domain.TransactionStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return domain.StatusCompleted, true
	case "failed", "cancelled", "canceled", "expired":
		return domain.StatusFailed, true
	default:
		return "", false
	}
}
