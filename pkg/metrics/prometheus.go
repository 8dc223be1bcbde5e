// Package metrics provides Prometheus metrics for the whisper service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector the service exports.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	effectBuckets  []float64
	levelBuckets   []float64
	customLabels   map[string]string
	metricPrefix   string
	registry       prometheus.Registerer

	// Social pipeline
	postsProcessed    prometheus.Counter
	postsDuplicate    prometheus.Counter
	tagsResolved      prometheus.Counter
	tagsDropped       *prometheus.CounterVec
	interactionEffect prometheus.Histogram
	ledgerFolds       prometheus.Counter
	ledgerClamps      prometheus.Counter
	postLatency       prometheus.Histogram

	// Progression
	evaluations       prometheus.Counter
	levels            prometheus.Histogram
	resourcesExceeded *prometheus.CounterVec

	// Profiles and batches
	profileRecomputes prometheus.Counter
	batchItems        *prometheus.CounterVec

	// Queue and workers
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    *prometheus.CounterVec
	workerCount      prometheus.Gauge
	workerErrors     prometheus.Counter
	workerLatency    prometheus.Histogram
	storeLatency     *prometheus.HistogramVec
	totalPlayers     prometheus.Gauge
	errorByComponent *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton recorder backing the package-level helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out of /metrics

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "whisper",
		subsystem:      "engine",
		latencyBuckets: prometheus.DefBuckets,
		effectBuckets:  []float64{-50, -25, -15, -10, -5, 0, 5, 10, 15, 25, 50},
		levelBuckets:   []float64{1, 2, 5, 10, 20, 30, 50, 75, 100},
		customLabels:   make(map[string]string),
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels, Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place to declare every collector
	m.postsProcessed = m.counter("posts_processed_total", "Posts run through the tag pipeline")
	m.postsDuplicate = m.counter("posts_duplicate_total", "Posts rejected as already seen")
	m.tagsResolved = m.counter("tags_resolved_total", "Interaction tags turned into records")
	m.tagsDropped = m.counterVec("tags_dropped_total", "Interaction tags dropped after parsing", "reason")
	m.interactionEffect = m.histogram("interaction_effect", "Signed effect of resolved interactions", m.effectBuckets)
	m.ledgerFolds = m.counter("ledger_folds_total", "Effects folded into relationship entries")
	m.ledgerClamps = m.counter("ledger_clamps_total", "Folds whose running score hit a bound")
	m.postLatency = m.histogram("post_processing_milliseconds", "Time spent processing one post", m.latencyBuckets)

	m.evaluations = m.counter("evaluations_total", "Progression evaluations")
	m.levels = m.histogram("player_level", "Levels produced by evaluations", m.levelBuckets)
	m.resourcesExceeded = m.counterVec("resources_exceeded_total", "Evaluations with a real value above the display cap", "resource")

	m.profileRecomputes = m.counter("profile_recomputes_total", "Social profiles recomputed")
	m.batchItems = m.counterVec("batch_items_total", "Batch items by operation and outcome", "operation", "outcome")

	m.queueSize = m.gauge("queue_size", "Posts waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued posts")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Posts accepted by the queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Posts handed to workers")
	m.queueRejected = m.counterVec("queue_rejected_total", "Posts the queue refused", "reason")
	m.workerCount = m.gauge("worker_count", "Running post workers")
	m.workerErrors = m.counter("worker_errors_total", "Posts a worker failed to process")
	m.workerLatency = m.histogram("worker_processing_milliseconds", "Worker time per post", m.latencyBuckets)
	m.storeLatency = m.histogramVec("store_operation_milliseconds", "Store call latency", m.latencyBuckets, "operation")
	m.totalPlayers = m.gauge("players_total", "Players known to the store")
	m.errorByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration",
		m.latencyBuckets, "endpoint", "method", "status_code")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordPostProcessed increments the processed posts counter.
func RecordPostProcessed() { globalManager.postsProcessed.Inc() }

// RecordPostDuplicate increments the duplicate posts counter.
func RecordPostDuplicate() { globalManager.postsDuplicate.Inc() }

// RecordTagResolved counts one tag that produced an interaction record.
func RecordTagResolved(effect int) {
	globalManager.tagsResolved.Inc()
	globalManager.interactionEffect.Observe(float64(effect))
}

// RecordTagDropped counts a tag dropped for reason (unknown_participant, self_target).
func RecordTagDropped(reason string) { globalManager.tagsDropped.WithLabelValues(reason).Inc() }

// RecordLedgerFold counts a ledger fold; clamped marks folds that hit a bound.
func RecordLedgerFold(clamped bool) {
	globalManager.ledgerFolds.Inc()
	if clamped {
		globalManager.ledgerClamps.Inc()
	}
}

// RecordPostLatency records how long a post took end to end.
func RecordPostLatency(latencyMs float64) { globalManager.postLatency.Observe(latencyMs) }

// RecordEvaluation records one progression evaluation.
func RecordEvaluation(level int, exceededInfection, exceededWhisper bool) {
	globalManager.evaluations.Inc()
	globalManager.levels.Observe(float64(level))
	if exceededInfection {
		globalManager.resourcesExceeded.WithLabelValues("infection").Inc()
	}
	if exceededWhisper {
		globalManager.resourcesExceeded.WithLabelValues("whisper").Inc()
	}
}

// RecordProfileRecompute increments the recompute counter.
func RecordProfileRecompute() { globalManager.profileRecomputes.Inc() }

// RecordBatchItem records the outcome ("ok" or "failed") of one batch item.
func RecordBatchItem(operation, outcome string) {
	globalManager.batchItems.WithLabelValues(operation, outcome).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueRejected counts a refused enqueue (closed, full, context_cancelled).
func RecordQueueRejected(reason string) { globalManager.queueRejected.WithLabelValues(reason).Inc() }

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordWorkerLatency records worker processing latency.
func RecordWorkerLatency(latencyMs float64) { globalManager.workerLatency.Observe(latencyMs) }

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateTotalPlayers sets the number of known players.
func UpdateTotalPlayers(count int) { globalManager.totalPlayers.Set(float64(count)) }

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry all package-level metrics live on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
