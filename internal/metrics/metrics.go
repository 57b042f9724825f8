package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	simulationsTotal   *prometheus.CounterVec
	simulationDuration prometheus.Histogram
	tradesProduced     *prometheus.CounterVec
	fetchRequests      *prometheus.CounterVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	runsTotal          *prometheus.CounterVec
	runDuration        prometheus.Histogram
	jobsActive         *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.simulationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_simulations_total",
			Help: "Total number of (symbol, strategy) simulations run",
		},
		[]string{"strategy", "status"},
	)
	r.simulationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hindsight_simulation_duration_seconds",
			Help:    "Single simulation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	r.tradesProduced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_trades_total",
			Help: "Total number of trades produced by simulations",
		},
		[]string{"strategy"},
	)
	r.fetchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_fetch_requests_total",
			Help: "Total number of market data fetches",
		},
		[]string{"provider", "status"},
	)
	r.cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hindsight_bar_cache_hits_total",
			Help: "Total number of bar cache hits",
		},
	)
	r.cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hindsight_bar_cache_misses_total",
			Help: "Total number of bar cache misses",
		},
	)
	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_runs_total",
			Help: "Total number of orchestrated comparison runs",
		},
		[]string{"status"},
	)
	r.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hindsight_run_duration_seconds",
			Help:    "Comparison run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)
	r.jobsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hindsight_jobs_active",
			Help: "Number of active jobs",
		},
		[]string{"type"},
	)

	reg.MustRegister(r.simulationsTotal)
	reg.MustRegister(r.simulationDuration)
	reg.MustRegister(r.tradesProduced)
	reg.MustRegister(r.fetchRequests)
	reg.MustRegister(r.cacheHits)
	reg.MustRegister(r.cacheMisses)
	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.jobsActive)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordSimulation records one finished simulation.
func (r *Registry) RecordSimulation(strategy, status string, duration float64, trades int) {
	r.simulationsTotal.WithLabelValues(strategy, status).Inc()
	r.simulationDuration.Observe(duration)
	if trades > 0 {
		r.tradesProduced.WithLabelValues(strategy).Add(float64(trades))
	}
}

// RecordFetch records a market data fetch.
func (r *Registry) RecordFetch(provider, status string) {
	r.fetchRequests.WithLabelValues(provider, status).Inc()
}

// RecordCacheHit records a bar cache hit.
func (r *Registry) RecordCacheHit() {
	r.cacheHits.Inc()
}

// RecordCacheMiss records a bar cache miss.
func (r *Registry) RecordCacheMiss() {
	r.cacheMisses.Inc()
}

// RecordRun records a comparison run completion.
func (r *Registry) RecordRun(status string, duration float64) {
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(duration)
}

// SetJobsActive sets the number of active jobs of a type.
func (r *Registry) SetJobsActive(jobType string, count int) {
	r.jobsActive.WithLabelValues(jobType).Set(float64(count))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
