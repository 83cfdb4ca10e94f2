package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
)

// transition moves record id towards patch.Status through the lifecycle
// table using the store's conditional update. A lost race is re-read and
// re-decided once. The bool reports whether the status actually changed;
// replays and stale answers only fill in missing provider identifiers.
func (uc *DefaultTransactionUsecase) transition(ctx context.Context, id string, patch domain.TransactionPatch) (*domain.Transaction, bool, error) {
	current, err := uc.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("load transaction %s: %w", id, err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			current, err = uc.Repo.GetByID(ctx, id)
			if err != nil {
				return nil, false, fmt.Errorf("reload transaction %s: %w", id, err)
			}
		}

		if err := domain.CheckIdentifiers(current, patch); err != nil {
			return current, false, err
		}

		var updated *domain.Transaction
		switch domain.Decide(current.Type, current.Status, patch.Status) {
		case domain.TransitionReject:
			return current, false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, patch.Status)

		case domain.TransitionReplay, domain.TransitionStale:
			if !domain.FillsIdentifiers(current, patch) {
				return current, false, nil
			}
			updated, err = uc.Repo.Update(ctx, id, current.Status, domain.TransactionPatch{
				Status:                 current.Status,
				ProviderTransactionID:  patch.ProviderTransactionID,
				ProviderConversationID: patch.ProviderConversationID,
			})
			if err == nil {
				return updated, false, nil
			}

		case domain.TransitionApply:
			updated, err = uc.Repo.Update(ctx, id, current.Status, patch)
			if err == nil {
				uc.afterTransition(current.Status, updated)
				return updated, true, nil
			}
		}

		if !errors.Is(err, domain.ErrStatusMismatch) {
			return nil, false, fmt.Errorf("update transaction %s: %w", id, err)
		}
	}

	return nil, false, fmt.Errorf("%w: transaction %s", domain.ErrConcurrentUpdate, id)
}
