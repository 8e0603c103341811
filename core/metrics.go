package core

// metrics.go – operator-facing metrics (ambient, not consensus-critical).
// Two gauges track cost-unit consumption and call-frame depth, the two
// numbers an operator watches to catch a runaway contract before the
// fee reserve or the call-depth limit trips.

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	costUnitsConsumed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "radixgo",
		Subsystem: "fee_reserve",
		Name:      "cost_units_consumed",
		Help:      "Cost units consumed so far in the current transaction, by reason.",
	}, []string{"reason"})

	callFrameDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "radixgo",
		Subsystem: "kernel",
		Name:      "call_frame_depth",
		Help:      "Depth of the kernel's call-frame stack for the in-flight invocation.",
	})

	receiptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radixgo",
		Subsystem: "receipt",
		Name:      "outcomes_total",
		Help:      "Count of assembled receipts by outcome kind.",
	}, []string{"outcome"})
)

// RegisterMetrics registers the engine's gauges/counters against reg.
// Call once per process; a nil registry is a no-op so tests can run
// without wiring a registry at all.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	reg.MustRegister(costUnitsConsumed, callFrameDepth, receiptsTotal)
}

// ObserveFeeReserve snapshots a FeeReserve's per-reason usage into the
// cost-unit gauge. Called by the engine once a receipt has been
// assembled.
func ObserveFeeReserve(summary FeeSummary) {
	costUnitsConsumed.WithLabelValues(string(ReasonExecution)).Set(float64(summary.ExecutionCostUnitsConsumed))
	costUnitsConsumed.WithLabelValues(string(ReasonFinalization)).Set(float64(summary.FinalizationCostUnitsConsumed))
	costUnitsConsumed.WithLabelValues(string(ReasonStorage)).Set(float64(summary.StorageCostUnitsConsumed))
	costUnitsConsumed.WithLabelValues(string(ReasonRoyalty)).Set(float64(summary.RoyaltyCostUnitsConsumed))
}

// ObserveCallFrameDepth records the kernel's current frame depth.
func ObserveCallFrameDepth(depth int) {
	callFrameDepth.Set(float64(depth))
}

// ObserveReceiptOutcome increments the per-outcome receipt counter.
func ObserveReceiptOutcome(outcome OutcomeKind) {
	receiptsTotal.WithLabelValues(outcome.String()).Inc()
}
