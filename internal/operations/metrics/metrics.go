package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the operations facade.
type Metrics struct {
	Operations         *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	ContractBalance    prometheus.Gauge
	ReserveBalance     prometheus.Gauge
	QuorumReached      prometheus.Counter
	MultipliersApplied prometheus.Counter
	JournalFailures    prometheus.Counter
}

// New registers the facade metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsurety_operations_total",
			Help: "Facade operations by name and outcome code",
		}, []string{"operation", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flightsurety_operation_duration_seconds",
			Help:    "Duration of facade operations, including time waiting for the ledger lock",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		}, []string{"operation"}),
		ContractBalance: f.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_contract_balance_units",
			Help: "Total value held by the ledger",
		}),
		ReserveBalance: f.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_reserve_balance_units",
			Help: "Airline funding reserve backing the late-airline multiplier",
		}),
		QuorumReached: f.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_airline_quorum_reached_total",
			Help: "Candidates admitted by reaching vote quorum",
		}),
		MultipliersApplied: f.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_multipliers_applied_total",
			Help: "Flights whose policies were scaled by the late-airline multiplier",
		}),
		JournalFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_journal_failures_total",
			Help: "Journal events that could not be published after commit",
		}),
	}
}

// ObserveOperation records one facade call. outcome is "ok" or an error code.
func (m *Metrics) ObserveOperation(op, outcome string, start time.Time) {
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// SetBalances publishes the ledger totals after a commit.
func (m *Metrics) SetBalances(total, reserve uint64) {
	m.ContractBalance.Set(float64(total))
	m.ReserveBalance.Set(float64(reserve))
}

func (m *Metrics) IncrementQuorumReached() {
	m.QuorumReached.Inc()
}

func (m *Metrics) IncrementMultiplierApplied() {
	m.MultipliersApplied.Inc()
}

func (m *Metrics) IncrementJournalFailure() {
	m.JournalFailures.Inc()
}
