// Package prometheus exposes LumiGrid's metrics through a private
// prometheus.Registry. Callers register vectors by short name; the collector
// prefixes namespace and subsystem and hands back thin wrappers so packages
// outside this one never import client_golang directly.
package prometheus

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
)

// MetricsCollector registers metric vectors and serves the scrape endpoint.
type MetricsCollector interface {
	RegisterCounter(name, help string, labels ...string) CounterVec
	RegisterGauge(name, help string, labels ...string) GaugeVec
	RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec
	RegisterSummary(name, help string, objectives map[float64]float64, labels ...string) SummaryVec
	Handler() http.Handler
	MustRegister(cs ...prometheus.Collector)
	Unregister(c prometheus.Collector) bool
}

type CounterVec interface {
	WithLabelValues(lvs ...string) Counter
	With(labels map[string]string) Counter
}

type Counter interface {
	Inc()
	Add(delta float64)
}

type GaugeVec interface {
	WithLabelValues(lvs ...string) Gauge
	With(labels map[string]string) Gauge
}

type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(delta float64)
	Sub(delta float64)
}

type HistogramVec interface {
	WithLabelValues(lvs ...string) Histogram
	With(labels map[string]string) Histogram
}

// Histogram is also satisfied by Summary observers.
type Histogram interface {
	Observe(value float64)
}

type SummaryVec interface {
	WithLabelValues(lvs ...string) Summary
	With(labels map[string]string) Summary
}

type Summary interface {
	Observe(value float64)
}

// CollectorConfig configures the registry.
type CollectorConfig struct {
	Namespace               string
	Subsystem               string
	EnableProcessMetrics    bool
	EnableGoMetrics         bool
	DefaultHistogramBuckets []float64
	ConstLabels             map[string]string
}

var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

var defaultObjectives = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}

type prometheusCollector struct {
	registry *prometheus.Registry
	config   CollectorConfig
	logger   logging.Logger

	mu         sync.Mutex
	registered map[string]prometheus.Collector
}

// NewMetricsCollector builds a collector around a fresh registry.
func NewMetricsCollector(cfg CollectorConfig, logger logging.Logger) (MetricsCollector, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("prometheus: namespace is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if len(cfg.DefaultHistogramBuckets) == 0 {
		cfg.DefaultHistogramBuckets = defaultBuckets
	}

	reg := prometheus.NewRegistry()
	if cfg.EnableProcessMetrics {
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Namespace}))
	}
	if cfg.EnableGoMetrics {
		reg.MustRegister(collectors.NewGoCollector())
	}

	return &prometheusCollector{
		registry:   reg,
		config:     cfg,
		logger:     logger.Named("metrics"),
		registered: make(map[string]prometheus.Collector),
	}, nil
}

func (c *prometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (c *prometheusCollector) MustRegister(cs ...prometheus.Collector) {
	c.registry.MustRegister(cs...)
}

func (c *prometheusCollector) Unregister(pc prometheus.Collector) bool {
	return c.registry.Unregister(pc)
}

// register returns the collector already stored under the fully-qualified
// name, or registers fresh.
func (c *prometheusCollector) register(kind, name string, fresh prometheus.Collector) prometheus.Collector {
	fq := prometheus.BuildFQName(c.config.Namespace, c.config.Subsystem, name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.registered[fq]; ok {
		return existing
	}
	if err := c.registry.Register(fresh); err != nil {
		c.logger.Error("metric registration failed",
			logging.String("metric", fq), logging.String("kind", kind), logging.Err(err))
		return nil
	}
	c.registered[fq] = fresh
	return fresh
}

func (c *prometheusCollector) mismatch(kind, name string) {
	c.logger.Warn("metric already registered with a different type",
		logging.String("metric", name), logging.String("kind", kind))
}

func (c *prometheusCollector) RegisterCounter(name, help string, labels ...string) CounterVec {
	fresh := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.config.Namespace, Subsystem: c.config.Subsystem,
		Name: name, Help: help, ConstLabels: c.config.ConstLabels,
	}, labels)

	got := c.register("counter", name, fresh)
	if got == nil {
		return noopCounterVec{}
	}
	vec, ok := got.(*prometheus.CounterVec)
	if !ok {
		c.mismatch("counter", name)
		return noopCounterVec{}
	}
	return counterVec{vec}
}

func (c *prometheusCollector) RegisterGauge(name, help string, labels ...string) GaugeVec {
	fresh := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.config.Namespace, Subsystem: c.config.Subsystem,
		Name: name, Help: help, ConstLabels: c.config.ConstLabels,
	}, labels)

	got := c.register("gauge", name, fresh)
	if got == nil {
		return noopGaugeVec{}
	}
	vec, ok := got.(*prometheus.GaugeVec)
	if !ok {
		c.mismatch("gauge", name)
		return noopGaugeVec{}
	}
	return gaugeVec{vec}
}

func (c *prometheusCollector) RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec {
	if len(buckets) == 0 {
		buckets = c.config.DefaultHistogramBuckets
	}
	fresh := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.config.Namespace, Subsystem: c.config.Subsystem,
		Name: name, Help: help, ConstLabels: c.config.ConstLabels,
		Buckets: buckets,
	}, labels)

	got := c.register("histogram", name, fresh)
	if got == nil {
		return noopHistogramVec{}
	}
	vec, ok := got.(*prometheus.HistogramVec)
	if !ok {
		c.mismatch("histogram", name)
		return noopHistogramVec{}
	}
	return histogramVec{vec}
}

func (c *prometheusCollector) RegisterSummary(name, help string, objectives map[float64]float64, labels ...string) SummaryVec {
	if objectives == nil {
		objectives = defaultObjectives
	}
	fresh := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: c.config.Namespace, Subsystem: c.config.Subsystem,
		Name: name, Help: help, ConstLabels: c.config.ConstLabels,
		Objectives: objectives,
	}, labels)

	got := c.register("summary", name, fresh)
	if got == nil {
		return noopSummaryVec{}
	}
	vec, ok := got.(*prometheus.SummaryVec)
	if !ok {
		c.mismatch("summary", name)
		return noopSummaryVec{}
	}
	return summaryVec{vec}
}

// client_golang adapters

type counterVec struct{ v *prometheus.CounterVec }

func (w counterVec) WithLabelValues(lvs ...string) Counter { return w.v.WithLabelValues(lvs...) }
func (w counterVec) With(labels map[string]string) Counter { return w.v.With(labels) }

type gaugeVec struct{ v *prometheus.GaugeVec }

func (w gaugeVec) WithLabelValues(lvs ...string) Gauge { return w.v.WithLabelValues(lvs...) }
func (w gaugeVec) With(labels map[string]string) Gauge { return w.v.With(labels) }

type histogramVec struct{ v *prometheus.HistogramVec }

func (w histogramVec) WithLabelValues(lvs ...string) Histogram { return w.v.WithLabelValues(lvs...) }
func (w histogramVec) With(labels map[string]string) Histogram { return w.v.With(labels) }

type summaryVec struct{ v *prometheus.SummaryVec }

func (w summaryVec) WithLabelValues(lvs ...string) Summary { return w.v.WithLabelValues(lvs...) }
func (w summaryVec) With(labels map[string]string) Summary { return w.v.With(labels) }

// no-op fallbacks handed out when registration fails

type noopMetric struct{}

func (noopMetric) Inc()            {}
func (noopMetric) Dec()            {}
func (noopMetric) Add(float64)     {}
func (noopMetric) Sub(float64)     {}
func (noopMetric) Set(float64)     {}
func (noopMetric) Observe(float64) {}

type noopCounterVec struct{}

func (noopCounterVec) WithLabelValues(...string) Counter { return noopMetric{} }
func (noopCounterVec) With(map[string]string) Counter    { return noopMetric{} }

type noopGaugeVec struct{}

func (noopGaugeVec) WithLabelValues(...string) Gauge { return noopMetric{} }
func (noopGaugeVec) With(map[string]string) Gauge    { return noopMetric{} }

type noopHistogramVec struct{}

func (noopHistogramVec) WithLabelValues(...string) Histogram { return noopMetric{} }
func (noopHistogramVec) With(map[string]string) Histogram    { return noopMetric{} }

type noopSummaryVec struct{}

func (noopSummaryVec) WithLabelValues(...string) Summary { return noopMetric{} }
func (noopSummaryVec) With(map[string]string) Summary    { return noopMetric{} }

// Timer observes the elapsed wall time into a Histogram.
type Timer struct {
	h     Histogram
	start time.Time
}

func NewTimer(h Histogram) *Timer {
	return &Timer{h: h, start: time.Now()}
}

// ObserveDuration records the time since NewTimer and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	if t.h != nil {
		t.h.Observe(d.Seconds())
	}
	return d
}
