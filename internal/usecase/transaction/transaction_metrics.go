package transaction

import (
	"errors"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
)

func (uc *DefaultTransactionUsecase) recordCreatedMetrics(tx *domain.Transaction) {
	if uc.Metrics == nil {
		return
	}
	amount, _ := tx.Amount.Decimal.Float64()
	uc.Metrics.RecordCreated(string(tx.Operation), amount)
}

func (uc *DefaultTransactionUsecase) recordDuplicateMetrics(tx *domain.Transaction) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordDuplicate(string(tx.Operation))
}

// recordTransitionMetrics is called once per applied transition
func (uc *DefaultTransactionUsecase) recordTransitionMetrics(from domain.TransactionStatus, tx *domain.Transaction) {
	if uc.Metrics == nil {
		return
	}
	operation := string(tx.Operation)
	uc.Metrics.RecordTransition(operation, string(from), string(tx.Status))

	if tx.Status.Terminal() && !tx.CreatedAt.IsZero() {
		uc.Metrics.RecordSettlement(operation, string(tx.Status), tx.UpdatedAt.Sub(tx.CreatedAt).Seconds())
	}
	if tx.Status == domain.StatusCompleted && tx.Amount.Valid {
		amount, _ := tx.Amount.Decimal.Float64()
		uc.Metrics.RecordCompletedAmount(operation, amount)
	}
}

func (uc *DefaultTransactionUsecase) recordProviderCallMetrics(tx *domain.Transaction, result string, durationSeconds float64) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordProviderCall(string(tx.Operation), result, durationSeconds)
}

func (uc *DefaultTransactionUsecase) recordCallbackMetrics(outcome string) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordCallback(outcome)
}

func (uc *DefaultTransactionUsecase) recordSweepMetrics(result string) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordSwept(result)
}

func (uc *DefaultTransactionUsecase) recordErrorMetrics(operation, errorType string) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordError(operation, errorType)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return "validation"
	case errors.Is(err, domain.ErrIdempotencyKeyReuse):
		return "idempotency_key_reuse"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrIdentifierConflict):
		return "identifier_conflict"
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return "concurrent_update"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return "persistence_unavailable"
	default:
		return "internal"
	}
}
