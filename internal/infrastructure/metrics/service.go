package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		OutcomesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankings_outcomes_submitted_total",
			Help: "The total number of event outcomes accepted and applied.",
		}),
		OutcomesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankings_outcomes_rejected_total",
			Help: "The total number of event outcomes rejected by validation.",
		}),
		OutcomesDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankings_outcomes_duplicate_total",
			Help: "The total number of outcome submissions skipped as already processed.",
		}),
		OutcomeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rankings_outcome_processing_duration_seconds",
			Help:    "The duration of individual outcome processing.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		DecayTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankings_decay_ticks_total",
			Help: "The total number of decay tick runs.",
		}),
		CompetitorsDecayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankings_competitors_decayed_total",
			Help: "The total number of competitors that lost RP to decay.",
		}),
		RecomputeRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankings_standings_recompute_runs_total",
			Help: "The total number of standings recompute runs.",
		}),
		RecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rankings_standings_recompute_duration_seconds",
			Help:    "The duration of full standings recompute runs.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		StandingsCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankings_standings_cache_hits_total",
			Help: "The total number of standings reads served from Redis.",
		}),
		StandingsCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankings_standings_cache_misses_total",
			Help: "The total number of standings reads that fell through to Postgres.",
		}),
		RankedCompetitors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rankings_ranked_competitors",
			Help: "The number of ranked competitors per scope at the last recompute.",
		}, []string{"scope"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankings_http_requests_total",
			Help: "The total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rankings_http_request_duration_seconds",
			Help:    "The duration of HTTP request handling.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		s.OutcomesSubmitted,
		s.OutcomesRejected,
		s.OutcomesDuplicate,
		s.OutcomeDuration,
		s.DecayTicks,
		s.CompetitorsDecayed,
		s.RecomputeRuns,
		s.RecomputeDuration,
		s.StandingsCacheHits,
		s.StandingsCacheMisses,
		s.RankedCompetitors,
		s.HTTPRequests,
		s.HTTPRequestDuration,
	)

	return s
}

func (s *Service) IncOutcomesSubmitted() {
	s.OutcomesSubmitted.Inc()
}

func (s *Service) IncOutcomesRejected() {
	s.OutcomesRejected.Inc()
}

func (s *Service) IncOutcomesDuplicate() {
	s.OutcomesDuplicate.Inc()
}

func (s *Service) ObserveOutcomeDuration(seconds float64) {
	s.OutcomeDuration.Observe(seconds)
}

func (s *Service) IncDecayTicks() {
	s.DecayTicks.Inc()
}

func (s *Service) AddCompetitorsDecayed(n int) {
	s.CompetitorsDecayed.Add(float64(n))
}

func (s *Service) IncRecomputeRuns() {
	s.RecomputeRuns.Inc()
}

func (s *Service) ObserveRecomputeDuration(seconds float64) {
	s.RecomputeDuration.Observe(seconds)
}

func (s *Service) IncStandingsCacheHit() {
	s.StandingsCacheHits.Inc()
}

func (s *Service) IncStandingsCacheMiss() {
	s.StandingsCacheMisses.Inc()
}

func (s *Service) SetRankedCompetitors(scope string, n int) {
	s.RankedCompetitors.WithLabelValues(scope).Set(float64(n))
}

func (s *Service) ObserveHTTPRequest(method, route string, status int, seconds float64) {
	s.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	s.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// Noop is a Metrics implementation that records nothing. Used in tests and
// when instrumentation is disabled.
type Noop struct{}

var _ Metrics = Noop{}

func (Noop) IncOutcomesSubmitted()                           {}
func (Noop) IncOutcomesRejected()                            {}
func (Noop) IncOutcomesDuplicate()                           {}
func (Noop) ObserveOutcomeDuration(float64)                  {}
func (Noop) IncDecayTicks()                                  {}
func (Noop) AddCompetitorsDecayed(int)                       {}
func (Noop) IncRecomputeRuns()                               {}
func (Noop) ObserveRecomputeDuration(float64)                {}
func (Noop) IncStandingsCacheHit()                           {}
func (Noop) IncStandingsCacheMiss()                          {}
func (Noop) SetRankedCompetitors(string, int)                {}
func (Noop) ObserveHTTPRequest(string, string, int, float64) {}
