package metrics

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
)

type PrometheusMetrics struct {
	logger     types.Logger
	config     *types.MetricsConfig
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	handler    types.FastHTTPHandler
	mu         sync.Mutex
	running    int32
}

func NewPrometheusMetrics(config *types.MetricsConfig, logger types.Logger) (*PrometheusMetrics, error) {
	if config == nil {
		return nil, types.ErrMetricsConfigInvalid
	}

	registry := prometheus.NewRegistry()
	if config.GoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	p := &PrometheusMetrics{
		logger:     logger,
		config:     config,
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	p.handler = types.FastHTTPHandler(fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	))

	logger.Info("Prometheus metrics initialized",
		zap.String("namespace", config.Namespace),
		zap.Bool("go_metrics", config.GoMetrics))

	return p, nil
}

func (p *PrometheusMetrics) Start() error {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return types.ErrServerAlreadyRunning
	}
	p.logger.Info("Prometheus metrics started")
	return nil
}

func (p *PrometheusMetrics) Stop() error {
	if !atomic.CompareAndSwapInt32(&p.running, 1, 0) {
		return types.ErrServerNotRunning
	}
	p.logger.Info("Prometheus metrics stopped")
	return nil
}

func (p *PrometheusMetrics) IsRunning() bool {
	return atomic.LoadInt32(&p.running) == 1
}

func (p *PrometheusMetrics) Handler() types.FastHTTPHandler {
	return p.handler
}

// Counter registers the vector on first use. Label names are fixed by that
// first call; later calls with a different label set are dropped and logged.
func (p *PrometheusMetrics) Counter(name string, labels map[string]string) types.Counter {
	p.mu.Lock()
	defer p.mu.Unlock()

	counter, exists := p.counters[name]
	if !exists {
		counter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Name:        name,
			Help:        helpText("Counter", name),
			ConstLabels: p.config.Labels,
		}, labelNames(labels))

		if err := p.registry.Register(counter); err != nil {
			p.logger.Error("Failed to register counter", zap.String("name", name), zap.Error(err))
			return emptyCounter{}
		}
		p.counters[name] = counter
	}

	c, err := counter.GetMetricWith(labels)
	if err != nil {
		p.logger.Warn("Counter label mismatch", zap.String("name", name), zap.Error(err))
		return emptyCounter{}
	}

	return &PrometheusCounter{counter: c}
}

func (p *PrometheusMetrics) Gauge(name string, labels map[string]string) types.Gauge {
	p.mu.Lock()
	defer p.mu.Unlock()

	gauge, exists := p.gauges[name]
	if !exists {
		gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   p.config.Namespace,
			Name:        name,
			Help:        helpText("Gauge", name),
			ConstLabels: p.config.Labels,
		}, labelNames(labels))

		if err := p.registry.Register(gauge); err != nil {
			p.logger.Error("Failed to register gauge", zap.String("name", name), zap.Error(err))
			return emptyGauge{}
		}
		p.gauges[name] = gauge
	}

	g, err := gauge.GetMetricWith(labels)
	if err != nil {
		p.logger.Warn("Gauge label mismatch", zap.String("name", name), zap.Error(err))
		return emptyGauge{}
	}

	return &PrometheusGauge{gauge: g}
}

func (p *PrometheusMetrics) Histogram(name string, buckets []float64, labels map[string]string) types.Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()

	histogram, exists := p.histograms[name]
	if !exists {
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}

		histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   p.config.Namespace,
			Name:        name,
			Help:        helpText("Histogram", name),
			Buckets:     buckets,
			ConstLabels: p.config.Labels,
		}, labelNames(labels))

		if err := p.registry.Register(histogram); err != nil {
			p.logger.Error("Failed to register histogram", zap.String("name", name), zap.Error(err))
			return emptyHistogram{}
		}
		p.histograms[name] = histogram
	}

	h, err := histogram.GetMetricWith(labels)
	if err != nil {
		p.logger.Warn("Histogram label mismatch", zap.String("name", name), zap.Error(err))
		return emptyHistogram{}
	}

	return &PrometheusHistogram{observer: h}
}

func helpText(kind, name string) string {
	return kind + " " + strings.ReplaceAll(name, "_", " ")
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type PrometheusCounter struct {
	counter prometheus.Counter
}

func (c *PrometheusCounter) Inc()              { c.counter.Inc() }
func (c *PrometheusCounter) Add(value float64) { c.counter.Add(value) }

func (c *PrometheusCounter) Get() float64 {
	metric := &dto.Metric{}
	if err := c.counter.Write(metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}

type PrometheusGauge struct {
	gauge prometheus.Gauge
}

func (g *PrometheusGauge) Set(value float64) { g.gauge.Set(value) }
func (g *PrometheusGauge) Inc()              { g.gauge.Inc() }
func (g *PrometheusGauge) Dec()              { g.gauge.Dec() }

func (g *PrometheusGauge) Get() float64 {
	metric := &dto.Metric{}
	if err := g.gauge.Write(metric); err != nil {
		return 0
	}
	return metric.GetGauge().GetValue()
}

type PrometheusHistogram struct {
	observer prometheus.Observer
}

func (h *PrometheusHistogram) Observe(value float64) {
	h.observer.Observe(value)
}

func (h *PrometheusHistogram) ObserveDuration(start time.Time) {
	h.observer.Observe(time.Since(start).Seconds())
}
