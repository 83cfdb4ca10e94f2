package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TransactionMetrics holds the prometheus collectors of the transaction lifecycle.
type TransactionMetrics struct {
	// Records created by the idempotency guard
	TransactionsCreatedTotal       *prometheus.CounterVec
	TransactionsCreatedAmountTotal *prometheus.CounterVec

	// Submissions answered with an existing record
	DuplicateSubmissionsTotal *prometheus.CounterVec

	// Applied status transitions
	TransitionsTotal     *prometheus.CounterVec
	SettlementDuration   *prometheus.HistogramVec
	CompletedAmountTotal *prometheus.CounterVec

	// Outbound M-Pesa calls
	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec

	// Webhook and consumer callbacks by outcome
	CallbacksTotal *prometheus.CounterVec

	// Stale sweeper
	SweptTotal *prometheus.CounterVec

	// Errors
	TransactionErrorsTotal *prometheus.CounterVec
}

// NewTransactionMetrics registers the collectors on reg. A nil reg uses the
// default registerer.
func NewTransactionMetrics(reg prometheus.Registerer) *TransactionMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &TransactionMetrics{
		TransactionsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpesa_transactions_created_total",
				Help: "Total number of transaction records created",
			},
			[]string{"operation"},
		),

		TransactionsCreatedAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpesa_transactions_created_amount_total",
				Help: "Sum of amounts of created transaction records in MZN",
			},
			[]string{"operation"},
		),

		DuplicateSubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpesa_duplicate_submissions_total",
				Help: "Submissions resolved to an already existing record",
			},
			[]string{"operation"},
		),

		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpesa_transaction_transitions_total",
				Help: "Applied lifecycle transitions",
			},
			[]string{"operation", "from", "to"},
		),

		SettlementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mpesa_transaction_settlement_duration_seconds",
				Help:    "Time from record creation to terminal status",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s, 1s, 2s...
			},
			[]string{"operation", "status"},
		),

		CompletedAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpesa_transactions_completed_amount_total",
				Help: "Sum of amounts of completed transactions in MZN",
			},
			[]string{"operation"},
		),

		ProviderCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpesa_provider_calls_total",
				Help: "Outbound M-Pesa calls by result",
			},
			[]string{"operation", "result"},
		),

		ProviderCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mpesa_provider_call_duration_seconds",
				Help:    "Latency of outbound M-Pesa calls",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms, 100ms, 200ms...
			},
			[]string{"operation"},
		),

		CallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpesa_callbacks_total",
				Help: "Reconciled callbacks by outcome",
			},
			[]string{"outcome"},
		),

		SweptTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpesa_stale_transactions_swept_total",
				Help: "Stale transactions checked by the sweeper",
			},
			[]string{"result"},
		),

		TransactionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpesa_transaction_errors_total",
				Help: "Errors by operation and type",
			},
			[]string{"operation", "error_type"},
		),
	}
}

func (m *TransactionMetrics) RecordCreated(operation string, amount float64) {
	m.TransactionsCreatedTotal.WithLabelValues(operation).Inc()
	if amount > 0 {
		m.TransactionsCreatedAmountTotal.WithLabelValues(operation).Add(amount)
	}
}

func (m *TransactionMetrics) RecordDuplicate(operation string) {
	m.DuplicateSubmissionsTotal.WithLabelValues(operation).Inc()
}

func (m *TransactionMetrics) RecordTransition(operation, from, to string) {
	m.TransitionsTotal.WithLabelValues(operation, from, to).Inc()
}

func (m *TransactionMetrics) RecordSettlement(operation, status string, durationSeconds float64) {
	m.SettlementDuration.WithLabelValues(operation, status).Observe(durationSeconds)
}

func (m *TransactionMetrics) RecordCompletedAmount(operation string, amount float64) {
	m.CompletedAmountTotal.WithLabelValues(operation).Add(amount)
}

func (m *TransactionMetrics) RecordProviderCall(operation, result string, durationSeconds float64) {
	m.ProviderCallsTotal.WithLabelValues(operation, result).Inc()
	m.ProviderCallDuration.WithLabelValues(operation).Observe(durationSeconds)
}

func (m *TransactionMetrics) RecordCallback(outcome string) {
	m.CallbacksTotal.WithLabelValues(outcome).Inc()
}

func (m *TransactionMetrics) RecordSwept(result string) {
	m.SweptTotal.WithLabelValues(result).Inc()
}

func (m *TransactionMetrics) RecordError(operation, errorType string) {
	m.TransactionErrorsTotal.WithLabelValues(operation, errorType).Inc()
}
