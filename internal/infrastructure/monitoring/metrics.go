package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	PaymentsTotal          *prometheus.CounterVec
	StatusTransitionsTotal *prometheus.CounterVec
	RemindersTotal         *prometheus.CounterVec
	ConflictRetriesTotal   prometheus.Counter
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "debt_ledger_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		PaymentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "debt_ledger_payments_total",
				Help: "Total number of payment attempts, labelled by result.",
			},
			[]string{"result"},
		),
		StatusTransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "debt_ledger_status_transitions_total",
				Help: "Total number of persisted debt status transitions.",
			},
			[]string{"from", "to"},
		),
		RemindersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "debt_ledger_reminders_total",
				Help: "Total number of reminder intents, labelled by kind and result.",
			},
			[]string{"kind", "result"},
		),
		ConflictRetriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "debt_ledger_conflict_retries_total",
				Help: "Total number of optimistic-concurrency retries on debt writes.",
			},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordPayment(result string) {
	Business.PaymentsTotal.WithLabelValues(result).Inc()
}

func RecordStatusTransition(from, to string) {
	Business.StatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

func RecordReminder(kind, result string) {
	Business.RemindersTotal.WithLabelValues(kind, result).Inc()
}

func RecordConflictRetry() {
	Business.ConflictRetriesTotal.Inc()
}
