package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the rating service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	iterationBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion Metrics
	observationsIngested  prometheus.Counter
	observationsDuplicate prometheus.Counter
	observationsTotal     prometheus.Gauge
	resultsStored         prometheus.Counter
	resultsTotal          prometheus.Gauge
	scoringLatency        prometheus.Histogram

	// Solver Metrics
	solveRuns        *prometheus.CounterVec
	solveIterations  prometheus.Histogram
	solveDuration    prometheus.Histogram
	solveLastDelta   prometheus.Gauge
	equationsUsable  prometheus.Gauge
	equationsSkipped *prometheus.CounterVec
	scoutsRated      prometheus.Gauge
	overallMeanError prometheus.Gauge
	reportsPublished prometheus.Counter
	reportLastUnix   prometheus.Gauge

	// EPA Cache Metrics
	epaCacheHits      prometheus.Counter
	epaCacheMisses    prometheus.Counter
	epaCacheEvictions prometheus.Counter
	epaCacheSize      prometheus.Gauge

	// Repository Metrics
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Queue Metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scoutspr",
		subsystem:        "spr",
		histogramBuckets: prometheus.DefBuckets,
		iterationBuckets: []float64{0, 1, 5, 10, 20, 50, 100, 200, 500},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()
	return m
}

// RefreshInterval is how often runtime gauges should be sampled.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

func (m *Manager) counter(auto promauto.Factory, name, help string) prometheus.Counter {
	return auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(auto promauto.Factory, name, help string) prometheus.Gauge {
	return auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(auto promauto.Factory, name, help string, buckets []float64) prometheus.Histogram {
	return auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels, Buckets: buckets,
	})
}

func (m *Manager) counterVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.CounterVec {
	return auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	b := m.histogramBuckets

	// Ingestion
	m.observationsIngested = m.counter(auto, "observations_ingested_total", "Total number of observations stored")
	m.observationsDuplicate = m.counter(auto, "observations_duplicate_total", "Total number of observations rejected as duplicates")
	m.observationsTotal = m.gauge(auto, "observations", "Number of observations held in the store")
	m.resultsStored = m.counter(auto, "results_stored_total", "Total number of official results stored or replaced")
	m.resultsTotal = m.gauge(auto, "results", "Number of matches with an official result")
	m.scoringLatency = m.histogram(auto, "scoring_latency_milliseconds", "Per-observation EPA evaluation latency in milliseconds", b)

	// Solver
	m.solveRuns = m.counterVec(auto, "solve_runs_total", "Total number of solver runs by convergence outcome", "converged")
	m.solveIterations = m.histogram(auto, "solve_iterations", "Relaxation passes per solve", m.iterationBuckets)
	m.solveDuration = m.histogram(auto, "solve_duration_milliseconds", "Solve duration in milliseconds", b)
	m.solveLastDelta = m.gauge(auto, "solve_last_delta", "Largest estimate change in the final pass of the last solve")
	m.equationsUsable = m.gauge(auto, "equations_usable", "Usable alliance equations in the last solve")
	m.equationsSkipped = m.counterVec(auto, "equations_skipped_total", "Skipped alliance equations by reason", "reason")
	m.scoutsRated = m.gauge(auto, "scouts_rated", "Scouts rated in the last solve")
	m.overallMeanError = m.gauge(auto, "overall_mean_error", "Mean absolute alliance error over usable equations")
	m.reportsPublished = m.counter(auto, "reports_published_total", "Total number of rating reports published")
	m.reportLastUnix = m.gauge(auto, "report_last_unix", "Unix timestamp of the last published report")

	// EPA cache
	m.epaCacheHits = m.counter(auto, "epa_cache_hits_total", "EPA cache hits")
	m.epaCacheMisses = m.counter(auto, "epa_cache_misses_total", "EPA cache misses")
	m.epaCacheEvictions = m.counter(auto, "epa_cache_evictions_total", "EPA cache entries evicted by capacity")
	m.epaCacheSize = m.gauge(auto, "epa_cache_size", "Entries held by the EPA cache")

	// Repository
	m.repositoryUpdateLatency = m.histogram(auto, "repository_update_latency_milliseconds", "Repository update operation latency in milliseconds", b)
	m.repositoryQueryLatency = m.histogram(auto, "repository_query_latency_milliseconds", "Repository query operation latency in milliseconds", b)

	// Queue
	m.queueSize = m.gauge(auto, "queue_size", "Current size of the observation queue")
	m.queueCapacity = m.gauge(auto, "queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge(auto, "queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = m.counter(auto, "queue_enqueue_total", "Total number of observations enqueued")
	m.queueDequeueRate = m.counter(auto, "queue_dequeue_total", "Total number of observations dequeued")
	m.queueEnqueueErrors = m.counter(auto, "queue_enqueue_errors_total", "Total number of enqueue errors")
	m.queueProcessingLatency = m.histogram(auto, "queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", b)

	// Worker
	m.workerCount = m.gauge(auto, "worker_count", "Configured number of ingestion workers")
	m.workerActiveCount = m.gauge(auto, "worker_active_count", "Number of running workers")
	m.workerIdleCount = m.gauge(auto, "worker_idle_count", "Number of idle workers")
	m.workerMessagesPerSecond = m.gauge(auto, "worker_messages_per_second", "Average observations processed per second by a worker")
	m.workerProcessingLatency = m.histogram(auto, "worker_processing_latency_milliseconds", "Worker processing latency in milliseconds", b)
	m.workerErrorRate = m.counter(auto, "worker_errors_total", "Total number of worker errors")

	// HTTP
	m.httpRequests = m.counterVec(auto, "http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", ConstLabels: m.customLabels, Buckets: b,
	}, []string{"endpoint", "method", "status_code"})

	// Errors
	m.errorRateByComponent = m.counterVec(auto, "errors_by_component_total", "Total number of errors by component",
		"component", "error_type")
	m.errorRateByType = m.counterVec(auto, "errors_by_type_total", "Total number of errors by type",
		"error_type", "severity")
	m.errorRateByEndpoint = m.counterVec(auto, "errors_by_endpoint_total", "Total number of errors by endpoint",
		"endpoint", "method", "error_type")
	m.errorLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("error_latency_milliseconds"),
		Help: "Latency of operations that resulted in errors", ConstLabels: m.customLabels, Buckets: b,
	}, []string{"component", "error_type"})

	// System
	m.systemMemoryUsage = m.gauge(auto, "system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge(auto, "system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram(auto, "system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Ingestion Metrics Functions.

// RecordObservationIngested increments the stored observations counter.
func RecordObservationIngested() {
	globalManager.observationsIngested.Inc()
}

// RecordObservationDuplicate increments the duplicate observations counter.
func RecordObservationDuplicate() {
	globalManager.observationsDuplicate.Inc()
}

// UpdateObservationsTotal sets the number of stored observations.
func UpdateObservationsTotal(n int) {
	globalManager.observationsTotal.Set(float64(n))
}

// RecordResultStored increments the stored results counter.
func RecordResultStored() {
	globalManager.resultsStored.Inc()
}

// UpdateResultsTotal sets the number of matches with official results.
func UpdateResultsTotal(n int) {
	globalManager.resultsTotal.Set(float64(n))
}

// RecordScoringLatency records per-observation EPA latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// Solver Metrics Functions.

// RecordSolve records the outcome of one solver run.
func RecordSolve(converged bool, iterations int, delta, durationMs float64) {
	globalManager.solveRuns.WithLabelValues(strconv.FormatBool(converged)).Inc()
	globalManager.solveIterations.Observe(float64(iterations))
	globalManager.solveDuration.Observe(durationMs)
	globalManager.solveLastDelta.Set(delta)
}

// UpdateUsableEquations sets the usable equation count of the last solve.
func UpdateUsableEquations(n int) {
	globalManager.equationsUsable.Set(float64(n))
}

// RecordSkippedEquations adds n skipped equations for reason.
func RecordSkippedEquations(reason string, n int) {
	globalManager.equationsSkipped.WithLabelValues(reason).Add(float64(n))
}

// UpdateScoutsRated sets the number of scouts in the last report.
func UpdateScoutsRated(n int) {
	globalManager.scoutsRated.Set(float64(n))
}

// UpdateOverallMeanError sets the overall mean error of the last report.
func UpdateOverallMeanError(v float64) {
	globalManager.overallMeanError.Set(v)
}

// RecordReportPublished marks a report as published now.
func RecordReportPublished() {
	globalManager.reportsPublished.Inc()
	globalManager.reportLastUnix.Set(float64(time.Now().Unix()))
}

// EPA Cache Metrics Functions.

// RecordEPACacheHit increments the EPA cache hit counter.
func RecordEPACacheHit() {
	globalManager.epaCacheHits.Inc()
}

// RecordEPACacheMiss increments the EPA cache miss counter.
func RecordEPACacheMiss() {
	globalManager.epaCacheMisses.Inc()
}

// RecordEPACacheEviction increments the EPA cache eviction counter.
func RecordEPACacheEviction() {
	globalManager.epaCacheEvictions.Inc()
}

// UpdateEPACacheSize sets the number of cached EPA entries.
func UpdateEPACacheSize(n int) {
	globalManager.epaCacheSize.Set(float64(n))
}

// Repository Metrics Functions.

// RecordRepositoryUpdateLatency records repository update operation latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository query operation latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// UpdateWorkerMessagesPerSecond sets the average messages processed per second.
func UpdateWorkerMessagesPerSecond(rate float64) {
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// RefreshInterval returns the runtime gauge sampling interval of the
// global manager.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
