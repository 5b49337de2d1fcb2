package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks request latency by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "klear_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "path", "status"},
	)

	// OrdersTotal counts order lifecycle actions (previewed, executed, pending, cancelled, rejected).
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klear_orders_total",
			Help: "Total number of order lifecycle actions by side",
		},
		[]string{"action", "side"},
	)

	// QuotesTotal counts quote outcomes.
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klear_quotes_total",
			Help: "Total number of quotes by outcome",
		},
		[]string{"outcome"},
	)

	// LedgerOperationsTotal counts balance mutations by kind.
	LedgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klear_ledger_operations_total",
			Help: "Total number of ledger operations by kind",
		},
		[]string{"kind"},
	)

	// InsufficientFundsTotal counts rejected reservations.
	InsufficientFundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "klear_insufficient_funds_total",
			Help: "Total number of reservations refused for insufficient funds",
		},
	)

	// SettlementAdvancesTotal counts settlement status moves by target status.
	SettlementAdvancesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klear_settlement_advances_total",
			Help: "Total number of settlement status advances by target status",
		},
		[]string{"to"},
	)

	// SimulationDaysAdvanced tracks the business days advanced by the calendar.
	SimulationDaysAdvanced = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "klear_simulation_days_advanced",
			Help: "Business days advanced since the simulation calendar was initialised",
		},
	)
)
