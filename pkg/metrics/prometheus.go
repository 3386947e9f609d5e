// Package metrics provides Prometheus metrics for the rating service and the
// recalculation tool.
package metrics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Manager owns every collector registered by this module.
type Manager struct {
	namespace      string
	constLabels    prometheus.Labels
	latencyBuckets []float64
	runBuckets     []float64
	registry       prometheus.Registerer

	// Recalculation
	scoresProcessed   *prometheus.CounterVec
	scoresSkipped     *prometheus.CounterVec
	scoresFailed      *prometheus.CounterVec
	usersUpdated      *prometheus.CounterVec
	usersFailed       *prometheus.CounterVec
	chunkDuration     *prometheus.HistogramVec
	runDuration       prometheus.Histogram
	beatmapCacheSize  prometheus.Gauge
	leaderboardWrites *prometheus.CounterVec

	// Rating pipeline
	engineLatency      prometheus.Histogram
	engineErrors       prometheus.Counter
	ratingCalculations *prometheus.CounterVec

	// Beatmap acquisition
	beatmapDownloads *prometheus.CounterVec

	// API keys
	apiKeyTouches *prometheus.CounterVec

	// Queues and workers
	queueDepth      *prometheus.GaugeVec
	queueRejections *prometheus.CounterVec
	workerProcessed *prometheus.CounterVec
	workerErrors    *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByComponent   *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "pprating",
		latencyBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		runBuckets:     prometheus.ExponentialBuckets(1, 2, 16),
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.constLabels,
		Name:        name,
		Help:        help,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.scoresProcessed = m.counterVec("recalc_scores_processed_total", "Scores whose rating was recalculated and persisted", "mode")
	m.scoresSkipped = m.counterVec("recalc_scores_skipped_total", "Scores skipped because the beatmap file was unavailable", "mode")
	m.scoresFailed = m.counterVec("recalc_scores_failed_total", "Scores whose recalculation failed", "mode", "reason")
	m.usersUpdated = m.counterVec("recalc_users_updated_total", "Player aggregates recomputed and upserted", "mode")
	m.usersFailed = m.counterVec("recalc_users_failed_total", "Player aggregates that failed to update", "mode")
	m.leaderboardWrites = m.counterVec("leaderboard_writes_total", "Sorted-set writes by scope", "scope")

	m.chunkDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		ConstLabels: m.constLabels,
		Name:        "recalc_chunk_duration_milliseconds",
		Help:        "Wall time of one recalculation chunk",
		Buckets:     m.latencyBuckets,
	}, []string{"phase"})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		ConstLabels: m.constLabels,
		Name:        "recalc_run_duration_seconds",
		Help:        "Wall time of a whole recalculation run",
		Buckets:     m.runBuckets,
	})

	m.beatmapCacheSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		ConstLabels: m.constLabels,
		Name:        "recalc_beatmap_cache_entries",
		Help:        "Parsed beatmaps held by the current run",
	})

	m.engineLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		ConstLabels: m.constLabels,
		Name:        "engine_latency_milliseconds",
		Help:        "Difficulty engine call latency",
		Buckets:     m.latencyBuckets,
	})

	m.engineErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.constLabels,
		Name:        "engine_errors_total",
		Help:        "Difficulty engine failures",
	})

	m.ratingCalculations = m.counterVec("rating_calculations_total", "Single-score rating calculations by outcome", "outcome")
	m.beatmapDownloads = m.counterVec("beatmap_downloads_total", "Beatmap file acquisitions by outcome", "outcome")
	m.apiKeyTouches = m.counterVec("apikey_touches_total", "Detached API key last-used updates by outcome", "outcome")

	m.queueDepth = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		ConstLabels: m.constLabels,
		Name:        "queue_depth",
		Help:        "Items waiting in a background queue",
	}, []string{"queue"})
	m.queueRejections = m.counterVec("queue_rejections_total", "Items refused by a background queue", "queue", "reason")
	m.workerProcessed = m.counterVec("worker_processed_total", "Items handled by background workers", "worker")
	m.workerErrors = m.counterVec("worker_errors_total", "Items whose background handler failed", "worker")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		ConstLabels: m.constLabels,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")
	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		ConstLabels: m.constLabels,
		Name:        "system_memory_usage_bytes",
		Help:        "Heap bytes in use",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		ConstLabels: m.constLabels,
		Name:        "system_goroutine_count",
		Help:        "Number of goroutines",
	})
}

// RecordScoreProcessed counts a persisted score recalculation.
func RecordScoreProcessed(mode int) {
	globalManager.scoresProcessed.WithLabelValues(modeLabel(mode)).Inc()
}

// RecordScoreSkipped counts a score skipped for an unavailable beatmap.
func RecordScoreSkipped(mode int) {
	globalManager.scoresSkipped.WithLabelValues(modeLabel(mode)).Inc()
}

// RecordScoreFailed counts a failed score recalculation.
func RecordScoreFailed(mode int, reason string) {
	globalManager.scoresFailed.WithLabelValues(modeLabel(mode), reason).Inc()
}

// RecordUserUpdated counts an upserted player aggregate.
func RecordUserUpdated(mode int) {
	globalManager.usersUpdated.WithLabelValues(modeLabel(mode)).Inc()
}

// RecordUserFailed counts a failed player aggregate.
func RecordUserFailed(mode int) {
	globalManager.usersFailed.WithLabelValues(modeLabel(mode)).Inc()
}

// RecordChunkDuration observes one chunk's wall time.
func RecordChunkDuration(phase string, ms float64) {
	globalManager.chunkDuration.WithLabelValues(phase).Observe(ms)
}

// RecordRunDuration observes a whole run's wall time.
func RecordRunDuration(seconds float64) {
	globalManager.runDuration.Observe(seconds)
}

// UpdateBeatmapCacheSize sets the number of cached beatmaps.
func UpdateBeatmapCacheSize(n int) {
	globalManager.beatmapCacheSize.Set(float64(n))
}

// RecordLeaderboardWrite counts a sorted-set write; scope is "global" or "country".
func RecordLeaderboardWrite(scope string) {
	globalManager.leaderboardWrites.WithLabelValues(scope).Inc()
}

// RecordEngineLatency observes a difficulty engine call.
func RecordEngineLatency(ms float64) {
	globalManager.engineLatency.Observe(ms)
}

// RecordEngineError counts a difficulty engine failure.
func RecordEngineError() {
	globalManager.engineErrors.Inc()
}

// RecordRatingCalculation counts a rating calculation by outcome.
func RecordRatingCalculation(outcome string) {
	globalManager.ratingCalculations.WithLabelValues(outcome).Inc()
}

// RecordBeatmapDownload counts a beatmap acquisition attempt by outcome.
func RecordBeatmapDownload(outcome string) {
	globalManager.beatmapDownloads.WithLabelValues(outcome).Inc()
}

// RecordAPIKeyTouch counts a detached last-used update by outcome.
func RecordAPIKeyTouch(outcome string) {
	globalManager.apiKeyTouches.WithLabelValues(outcome).Inc()
}

// UpdateQueueDepth sets the number of items waiting in queue.
func UpdateQueueDepth(queue string, n int) {
	globalManager.queueDepth.WithLabelValues(queue).Set(float64(n))
}

// RecordQueueRejection counts an item the queue refused; reason is "full" or "closed".
func RecordQueueRejection(queue, reason string) {
	globalManager.queueRejections.WithLabelValues(queue, reason).Inc()
}

// RecordWorkerProcessed counts an item a worker handled.
func RecordWorkerProcessed(worker string) {
	globalManager.workerProcessed.WithLabelValues(worker).Inc()
}

// RecordWorkerError counts an item whose handler failed.
func RecordWorkerError(worker string) {
	globalManager.workerErrors.WithLabelValues(worker).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Push sends the current registry to a Prometheus Pushgateway. Batch runs use
// it since they exit before any scraper would see them.
func Push(ctx context.Context, url, job string, groupings map[string]string) error {
	if url == "" {
		return ErrNoPushgateway
	}
	p := push.New(url, job).Gatherer(customRegistry)
	for k, v := range groupings {
		p = p.Grouping(k, v)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	return nil
}

func modeLabel(mode int) string {
	return strconv.Itoa(mode)
}
