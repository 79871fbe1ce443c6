// Package metrics exposes the faucet's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispensesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faucetd",
		Name:      "dispenses_total",
		Help:      "Dispense requests by terminal status",
	}, []string{"status"})

	dispenseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "faucetd",
		Name:      "dispense_duration_seconds",
		Help:      "End to end dispense latency",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faucetd",
		Name:      "submissions_total",
		Help:      "Chain submissions by interface and outcome",
	}, []string{"interface", "outcome"})

	operatorBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "faucetd",
		Name:      "operator_balance",
		Help:      "Operator holdings in base units, by token symbol",
	}, []string{"symbol"})
)

// ObserveDispense records one finished dispense request.
func ObserveDispense(status string, elapsed time.Duration) {
	dispensesTotal.WithLabelValues(status).Inc()
	dispenseDuration.Observe(elapsed.Seconds())
}

// ObserveSubmission records one chain submission attempt outcome.
func ObserveSubmission(chainInterface, outcome string) {
	submissionsTotal.WithLabelValues(chainInterface, outcome).Inc()
}

// SetOperatorBalance publishes the operator's holdings for one token. The
// float conversion loses precision above 2^53 base units; the gauge is for
// dashboards, not accounting.
func SetOperatorBalance(symbol string, baseUnits float64) {
	operatorBalance.WithLabelValues(symbol).Set(baseUnits)
}
