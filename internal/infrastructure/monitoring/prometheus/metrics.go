package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric LumiGrid exports.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPResponseSize    HistogramVec
	HTTPActiveRequests  GaugeVec

	// gRPC
	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	// Engine
	CalculationsTotal   CounterVec
	CalculationDuration HistogramVec
	GridPoints          HistogramVec
	RefinementDepth     HistogramVec
	FlaggedCells        HistogramVec
	ContourSegments     HistogramVec
	FixtureWarnings     CounterVec

	// Jobs
	JobsTotal        CounterVec
	JobDuration      HistogramVec
	JobRetries       CounterVec
	JobActiveWorkers GaugeVec

	// Infrastructure
	DBQueryDuration  HistogramVec
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec
	MessagesTotal    CounterVec
	ReportBytes      HistogramVec

	// Health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

var (
	DefaultHTTPDurationBuckets        = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultCalculationDurationBuckets = []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 15, 30, 60}
	DefaultPointBuckets               = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 250000}
	DefaultDepthBuckets               = []float64{0, 1, 2, 3, 4, 5, 6, 8, 10}
	DefaultSizeBuckets                = []float64{1 << 10, 1 << 14, 1 << 17, 1 << 20, 1 << 23, 1 << 26}
	DefaultDBDurationBuckets          = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers the full metric set on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "HTTP requests served", "method", "route", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request latency", DefaultHTTPDurationBuckets, "method", "route")
	m.HTTPResponseSize = collector.RegisterHistogram("http_response_size_bytes", "HTTP response body size", DefaultSizeBuckets, "method", "route")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method")

	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "gRPC calls handled", "method", "code")
	m.GRPCRequestDuration = collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC call latency", DefaultHTTPDurationBuckets, "method")

	m.CalculationsTotal = collector.RegisterCounter("calculations_total", "Grid calculations by outcome", "mode", "status")
	m.CalculationDuration = collector.RegisterHistogram("calculation_duration_seconds", "Grid calculation wall time", DefaultCalculationDurationBuckets, "mode")
	m.GridPoints = collector.RegisterHistogram("calculation_grid_points", "Points in a calculated grid", DefaultPointBuckets, "adaptive")
	m.RefinementDepth = collector.RegisterHistogram("calculation_refinement_depth", "Deepest subdivision level reached", DefaultDepthBuckets)
	m.FlaggedCells = collector.RegisterHistogram("calculation_flagged_cells", "Base cells flagged for refinement", DefaultPointBuckets)
	m.ContourSegments = collector.RegisterHistogram("calculation_contour_segments", "Contour segments per calculation", DefaultPointBuckets)
	m.FixtureWarnings = collector.RegisterCounter("fixture_warnings_total", "Fixtures skipped or coerced during evaluation")

	m.JobsTotal = collector.RegisterCounter("jobs_total", "Asynchronous jobs by outcome", "status")
	m.JobDuration = collector.RegisterHistogram("job_duration_seconds", "Asynchronous job wall time", DefaultCalculationDurationBuckets)
	m.JobRetries = collector.RegisterCounter("job_retries_total", "Job attempts beyond the first", "reason")
	m.JobActiveWorkers = collector.RegisterGauge("job_active_workers", "Workers currently executing a job")

	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query latency", DefaultDBDurationBuckets, "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.MessagesTotal = collector.RegisterCounter("messages_total", "Kafka messages by direction and outcome", "topic", "direction", "status")
	m.ReportBytes = collector.RegisterHistogram("report_size_bytes", "Stored report object size", DefaultSizeBuckets)

	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Seconds since process start", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Component health (1 up, 0 down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors by component and code", "component", "code")

	return m
}

// CalculationSample summarises one finished calculation for RecordCalculation.
type CalculationSample struct {
	Mode         string
	Adaptive     bool
	Points       int
	Depth        int
	FlaggedCells int
	Segments     int
	Warnings     int
	Elapsed      time.Duration
	Err          error
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func RecordHTTPRequest(m *AppMetrics, method, route string, statusCode int, elapsed time.Duration, respSize int64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, route).Observe(float64(respSize))
}

func RecordGRPCRequest(m *AppMetrics, method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordCalculation records outcome and duration; shape metrics only for successes.
func RecordCalculation(m *AppMetrics, s CalculationSample) {
	if m == nil {
		return
	}
	m.CalculationsTotal.WithLabelValues(s.Mode, outcome(s.Err)).Inc()
	m.CalculationDuration.WithLabelValues(s.Mode).Observe(s.Elapsed.Seconds())
	if s.Err != nil {
		return
	}
	m.GridPoints.WithLabelValues(strconv.FormatBool(s.Adaptive)).Observe(float64(s.Points))
	m.RefinementDepth.WithLabelValues().Observe(float64(s.Depth))
	m.FlaggedCells.WithLabelValues().Observe(float64(s.FlaggedCells))
	m.ContourSegments.WithLabelValues().Observe(float64(s.Segments))
	if s.Warnings > 0 {
		m.FixtureWarnings.WithLabelValues().Add(float64(s.Warnings))
	}
}

func RecordJob(m *AppMetrics, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(outcome(err)).Inc()
	m.JobDuration.WithLabelValues().Observe(elapsed.Seconds())
}

// TrackActiveJob raises the active-worker gauge; the returned func lowers it.
func TrackActiveJob(m *AppMetrics) func() {
	if m == nil {
		return func() {}
	}
	g := m.JobActiveWorkers.WithLabelValues()
	g.Inc()
	return g.Dec
}

func RecordDBQuery(m *AppMetrics, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		m.ErrorsTotal.WithLabelValues("postgres", operation).Inc()
	}
}

func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

func RecordMessage(m *AppMetrics, topic, direction string, err error) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(topic, direction, outcome(err)).Inc()
}

func RecordError(m *AppMetrics, component, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

// SetHealth maps up to 1 and anything else to 0.
func SetHealth(m *AppMetrics, component string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}
