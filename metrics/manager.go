package metrics

import (
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
)

// NewManager builds the configured metrics backend. A disabled config yields
// a no-op manager so callers never need nil checks.
func NewManager(config *types.MetricsConfig, logger types.Logger) (types.MetricsManager, error) {
	if config == nil || !config.Enabled {
		return NewNop(), nil
	}

	var (
		manager types.MetricsManager
		err     error
	)

	switch config.Type {
	case "", "prometheus":
		manager, err = NewPrometheusMetrics(config, logger)
	case "memory":
		manager = NewMemoryMetrics(logger)
	default:
		return nil, types.Errorf(types.ErrMetricsTypeUnknown, "type: %s", config.Type)
	}

	if err != nil {
		return nil, types.WrapError(err, "failed to initialize metrics manager")
	}

	logger.Info("Metrics manager initialized", zap.String("type", config.Type))
	return manager, nil
}

type nopMetrics struct{}

func NewNop() types.MetricsManager { return nopMetrics{} }

func (nopMetrics) Start() error    { return nil }
func (nopMetrics) Stop() error     { return nil }
func (nopMetrics) IsRunning() bool { return false }

func (nopMetrics) Counter(string, map[string]string) types.Counter { return emptyCounter{} }
func (nopMetrics) Gauge(string, map[string]string) types.Gauge     { return emptyGauge{} }

func (nopMetrics) Histogram(string, []float64, map[string]string) types.Histogram {
	return emptyHistogram{}
}

func (nopMetrics) Handler() types.FastHTTPHandler { return nil }

type emptyCounter struct{}

func (emptyCounter) Inc()          {}
func (emptyCounter) Add(_ float64) {}
func (emptyCounter) Get() float64  { return 0 }

type emptyGauge struct{}

func (emptyGauge) Set(_ float64) {}
func (emptyGauge) Inc()          {}
func (emptyGauge) Dec()          {}
func (emptyGauge) Get() float64  { return 0 }

type emptyHistogram struct{}

func (emptyHistogram) Observe(_ float64)           {}
func (emptyHistogram) ObserveDuration(_ time.Time) {}
