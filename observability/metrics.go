package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Transaction outcomes recorded by the ledger.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeReverted  = "reverted"
	OutcomeRejected  = "rejected"
)

type walletMetrics struct {
	transactions       *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	events             *prometheus.CounterVec
	escapes            *prometheus.CounterVec
	batchSize          prometheus.Histogram
}

var (
	walletMetricsOnce sync.Once
	walletRegistry    *walletMetrics
)

// escape event type -> (kind, action)
var escapeTransitions = map[string][2]string{
	"escape_guardian_triggered": {"guardian", "triggered"},
	"escape_signer_triggered":   {"signer", "triggered"},
	"guardian_escaped":          {"guardian", "finalized"},
	"signer_escaped":            {"signer", "finalized"},
	"escape_canceled":           {"any", "canceled"},
}

// WalletMetrics returns the lazily-initialised registry tracking account
// transactions and the events they emit.
func WalletMetrics() *walletMetrics {
	walletMetricsOnce.Do(func() {
		walletRegistry = &walletMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "smartwallet",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Account transactions segmented by outcome.",
			}, []string{"outcome"}),
			validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "smartwallet",
				Subsystem: "ledger",
				Name:      "validation_failures_total",
				Help:      "Transactions rejected during validation segmented by reason.",
			}, []string{"reason"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "smartwallet",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Committed contract events segmented by type.",
			}, []string{"type"}),
			escapes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "smartwallet",
				Subsystem: "account",
				Name:      "escape_transitions_total",
				Help:      "Escape state transitions segmented by escape kind and action.",
			}, []string{"kind", "action"}),
			batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "smartwallet",
				Subsystem: "account",
				Name:      "multicall_batch_size",
				Help:      "Number of calls executed per committed transaction.",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
			}),
		}
		prometheus.MustRegister(
			walletRegistry.transactions,
			walletRegistry.validationFailures,
			walletRegistry.events,
			walletRegistry.escapes,
			walletRegistry.batchSize,
		)
	})
	return walletRegistry
}

// RecordTransaction counts a processed transaction.
func (m *walletMetrics) RecordTransaction(outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(outcome).Inc()
}

// RecordValidationFailure counts a rejected transaction under its reason.
func (m *walletMetrics) RecordValidationFailure(reason string) {
	if m == nil {
		return
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	m.validationFailures.WithLabelValues(reason).Inc()
}

// RecordEvent counts a committed event; escape events also feed the escape
// transition counter.
func (m *walletMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
	if labels, ok := escapeTransitions[eventType]; ok {
		m.escapes.WithLabelValues(labels[0], labels[1]).Inc()
	}
}

// ObserveBatch records the size of an executed call batch.
func (m *walletMetrics) ObserveBatch(calls int) {
	if m == nil || calls <= 0 {
		return
	}
	m.batchSize.Observe(float64(calls))
}
