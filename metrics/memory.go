package metrics

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

// MemoryMetrics keeps metrics in process and serves them as JSON. It suits
// single-instance deployments without a Prometheus scraper.
type MemoryMetrics struct {
	logger     types.Logger
	counters   map[string]*MemoryCounter
	gauges     map[string]*MemoryGauge
	histograms map[string]*MemoryHistogram
	mu         sync.RWMutex
	running    int32
}

type MetricValue struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Value  float64           `json:"value"`
	Count  uint64            `json:"count,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

func NewMemoryMetrics(logger types.Logger) *MemoryMetrics {
	return &MemoryMetrics{
		logger:     logger,
		counters:   make(map[string]*MemoryCounter),
		gauges:     make(map[string]*MemoryGauge),
		histograms: make(map[string]*MemoryHistogram),
	}
}

func (m *MemoryMetrics) Start() error {
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return types.ErrServerAlreadyRunning
	}
	return nil
}

func (m *MemoryMetrics) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		return types.ErrServerNotRunning
	}
	return nil
}

func (m *MemoryMetrics) IsRunning() bool {
	return atomic.LoadInt32(&m.running) == 1
}

func (m *MemoryMetrics) Counter(name string, labels map[string]string) types.Counter {
	key := metricKey(name, labels)

	m.mu.Lock()
	defer m.mu.Unlock()

	counter, ok := m.counters[key]
	if !ok {
		counter = &MemoryCounter{name: name, labels: copyLabels(labels)}
		m.counters[key] = counter
	}
	return counter
}

func (m *MemoryMetrics) Gauge(name string, labels map[string]string) types.Gauge {
	key := metricKey(name, labels)

	m.mu.Lock()
	defer m.mu.Unlock()

	gauge, ok := m.gauges[key]
	if !ok {
		gauge = &MemoryGauge{name: name, labels: copyLabels(labels)}
		m.gauges[key] = gauge
	}
	return gauge
}

// Histogram tracks count and sum only; buckets are accepted for interface
// compatibility.
func (m *MemoryMetrics) Histogram(name string, _ []float64, labels map[string]string) types.Histogram {
	key := metricKey(name, labels)

	m.mu.Lock()
	defer m.mu.Unlock()

	histogram, ok := m.histograms[key]
	if !ok {
		histogram = &MemoryHistogram{name: name, labels: copyLabels(labels)}
		m.histograms[key] = histogram
	}
	return histogram
}

// Snapshot returns every metric sorted by name and labels.
func (m *MemoryMetrics) Snapshot() []MetricValue {
	m.mu.RLock()
	defer m.mu.RUnlock()

	values := make([]MetricValue, 0, len(m.counters)+len(m.gauges)+len(m.histograms))

	for _, c := range m.counters {
		values = append(values, MetricValue{Name: c.name, Type: "counter", Value: c.Get(), Labels: c.labels})
	}
	for _, g := range m.gauges {
		values = append(values, MetricValue{Name: g.name, Type: "gauge", Value: g.Get(), Labels: g.labels})
	}
	for _, h := range m.histograms {
		count, sum := h.stats()
		values = append(values, MetricValue{Name: h.name, Type: "histogram", Value: sum, Count: count, Labels: h.labels})
	}

	sort.Slice(values, func(i, j int) bool {
		ki, kj := metricKey(values[i].Name, values[i].Labels), metricKey(values[j].Name, values[j].Labels)
		return ki < kj
	})

	return values
}

func (m *MemoryMetrics) Handler() types.FastHTTPHandler {
	return func(ctx *fasthttp.RequestCtx) {
		utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
			"metrics":   m.Snapshot(),
			"timestamp": time.Now().UTC(),
		})
	}
}

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, label := range labelNames(labels) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(label)
		b.WriteByte('=')
		b.WriteString(labels[label])
	}
	b.WriteByte('}')
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

type MemoryCounter struct {
	name   string
	labels map[string]string
	mu     sync.Mutex
	value  float64
}

func (c *MemoryCounter) Inc() { c.Add(1) }

func (c *MemoryCounter) Add(value float64) {
	if value < 0 {
		return
	}
	c.mu.Lock()
	c.value += value
	c.mu.Unlock()
}

func (c *MemoryCounter) Get() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

type MemoryGauge struct {
	name   string
	labels map[string]string
	mu     sync.Mutex
	value  float64
}

func (g *MemoryGauge) Set(value float64) {
	g.mu.Lock()
	g.value = value
	g.mu.Unlock()
}

func (g *MemoryGauge) Inc() { g.add(1) }
func (g *MemoryGauge) Dec() { g.add(-1) }

func (g *MemoryGauge) add(delta float64) {
	g.mu.Lock()
	g.value += delta
	g.mu.Unlock()
}

func (g *MemoryGauge) Get() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

type MemoryHistogram struct {
	name   string
	labels map[string]string
	mu     sync.Mutex
	count  uint64
	sum    float64
}

func (h *MemoryHistogram) Observe(value float64) {
	h.mu.Lock()
	h.count++
	h.sum += value
	h.mu.Unlock()
}

func (h *MemoryHistogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

func (h *MemoryHistogram) stats() (uint64, float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count, h.sum
}
