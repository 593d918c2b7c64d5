// Package metrics exposes Prometheus instrumentation for the rankings
// platform.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the instrumentation surface consumed by the application layer.
// Callers never touch prometheus types directly.
type Metrics interface {
	IncOutcomesSubmitted()
	IncOutcomesRejected()
	IncOutcomesDuplicate()
	ObserveOutcomeDuration(seconds float64)

	IncDecayTicks()
	AddCompetitorsDecayed(n int)

	IncRecomputeRuns()
	ObserveRecomputeDuration(seconds float64)

	IncStandingsCacheHit()
	IncStandingsCacheMiss()

	SetRankedCompetitors(scope string, n int)

	ObserveHTTPRequest(method, route string, status int, seconds float64)
}

// Service holds all the Prometheus metrics for the application.
// Defining them in one place keeps naming and labeling consistent.
type Service struct {
	OutcomesSubmitted prometheus.Counter
	OutcomesRejected  prometheus.Counter
	OutcomesDuplicate prometheus.Counter
	OutcomeDuration   prometheus.Histogram

	DecayTicks         prometheus.Counter
	CompetitorsDecayed prometheus.Counter

	RecomputeRuns     prometheus.Counter
	RecomputeDuration prometheus.Histogram

	StandingsCacheHits   prometheus.Counter
	StandingsCacheMisses prometheus.Counter

	RankedCompetitors *prometheus.GaugeVec

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}
