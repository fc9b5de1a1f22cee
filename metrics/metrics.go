// Package metrics provides Prometheus observability metrics for the contact metrics engine.
// It includes Critical and Important metrics for business and operational visibility.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for our application
var Registry = prometheus.NewRegistry()

// factory allows us to register metrics to our custom Registry directly
var factory = promauto.With(Registry)

// =============================================================================
// CRITICAL METRICS - Business Impact Visibility
// =============================================================================

// TeamTarget tracks the summed capacity target per sector for the last run.
var TeamTarget = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "contact",
	Name:      "team_target",
	Help:      "Summed individual capacity targets per sector in the last run",
}, []string{"sector"})

// TeamRealized tracks new episodes handled per sector for the last run.
var TeamRealized = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "contact",
	Name:      "team_realized",
	Help:      "New episodes handled per sector in the last run",
}, []string{"sector"})

// SectorsBehind tracks how many sectors are behind their target.
var SectorsBehind = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "contact",
	Name:      "sectors_behind",
	Help:      "Number of sectors whose realized or projected volume is below target",
})

// RecurringReferences tracks references with more than one episode.
var RecurringReferences = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "contact",
	Name:      "recurring_references",
	Help:      "References with more than one episode in the last run",
})

// RecurrenceRatePercent tracks recurring references over unique references.
var RecurrenceRatePercent = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "contact",
	Name:      "recurrence_rate_percent",
	Help:      "Share of unique references that recurred, in percent",
})

// CancellationRiskReferences tracks recurring references whose last reason signals cancellation.
var CancellationRiskReferences = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "contact",
	Name:      "cancellation_risk_references",
	Help:      "Recurring references whose most recent reason matches a cancellation keyword",
})

// ReferencesByProfile tracks classified references by recurrence profile.
var ReferencesByProfile = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "contact",
	Name:      "references_by_profile",
	Help:      "Known references broken down by recurrence profile",
}, []string{"profile"})

// WastedHours tracks the estimated hours spent on excess contacts.
var WastedHours = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "contact",
	Name:      "wasted_hours",
	Help:      "Estimated hours spent on contacts beyond the first for recurring references",
})

// =============================================================================
// IMPORTANT METRICS - Operational Health
// =============================================================================

// ParserErrorsTotal tracks dropped rows and fatal parse errors by error type.
var ParserErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "parser",
	Name:      "errors_total",
	Help:      "Total parse errors by error type",
}, []string{"error_type"})

// ParserRecordsTotal tracks total records successfully parsed.
var ParserRecordsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "parser",
	Name:      "records_total",
	Help:      "Total CSV records successfully parsed",
})

// ParserDurationSeconds tracks time to parse input files.
var ParserDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "parser",
	Name:      "duration_seconds",
	Help:      "Time taken to parse CSV input",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
})

// EngineDurationSeconds tracks time to compute a full report.
var EngineDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "engine",
	Name:      "duration_seconds",
	Help:      "Time taken to compute all report tables",
	Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1.0},
})

// EngineEventsProcessed tracks the number of events per run after filtering.
var EngineEventsProcessed = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "engine",
	Name:      "events_processed",
	Help:      "Number of contact events processed per run",
	Buckets:   []float64{1, 10, 100, 1000, 5000, 10000, 50000, 100000},
})

// EngineRunsTotal tracks completed engine runs.
var EngineRunsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "engine",
	Name:      "runs_total",
	Help:      "Total completed engine runs",
})

// UnreliableAgents tracks agents below the handle-time sample floor.
var UnreliableAgents = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "engine",
	Name:      "unreliable_handle_time_agents",
	Help:      "Agents whose handle time is based on too few valid samples",
})

// CapacityFallbacksTotal tracks capacity rows computed with the default handle time.
var CapacityFallbacksTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "engine",
	Name:      "capacity_fallbacks_total",
	Help:      "Capacity rows that fell back to the default target handle time",
}, []string{"sector"})

// StoreErrorsTotal tracks failed writes to the report store.
var StoreErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "store",
	Name:      "errors_total",
	Help:      "Total report store failures by operation",
}, []string{"operation"})

// =============================================================================
// Helper Functions
// =============================================================================

// ResetRunGauges resets all per-run gauges before a new engine run.
func ResetRunGauges() {
	TeamTarget.Reset()
	TeamRealized.Reset()
	SectorsBehind.Set(0)
	RecurringReferences.Set(0)
	RecurrenceRatePercent.Set(0)
	CancellationRiskReferences.Set(0)
	ReferencesByProfile.Reset()
	WastedHours.Set(0)
	UnreliableAgents.Set(0)
}
