package metrics

import (
	"errors"
	"time"

	"github.com/jbily/BANKS-MO/internal/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts ledger operations by outcome and tracks their latency.
// A nil *Metrics is a valid no-op receiver so tests can skip registration.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "banksmo",
				Name:      "ledger_operations_total",
				Help:      "Ledger operations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "banksmo",
				Name:      "ledger_operation_duration_seconds",
				Help:      "Ledger operation latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(m.operations, m.duration)
	return m
}

// Observe records one finished operation.
func (m *Metrics) Observe(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, Outcome(err)).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// Outcome classifies err into a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ledger.ErrUnsupportedCurrency),
		errors.Is(err, ledger.ErrCurrencyMismatch):
		return "bad_currency"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrInactiveAccount):
		return "inactive_account"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ledger.ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ledger.ErrBalanceNonZero):
		return "balance_non_zero"
	case errors.Is(err, ledger.ErrInvalidTransfer):
		return "invalid_transfer"
	case errors.Is(err, ledger.ErrTransactionFinal):
		return "terminal_status"
	case errors.Is(err, ledger.ErrContentionTimeout):
		return "contention_timeout"
	default:
		return "persistence_failure"
	}
}
