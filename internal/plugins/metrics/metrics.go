package metricsplugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/plugin"
)

// Name identifies the plugin in configuration.
const Name = "metrics"

const namespace = "scenery"

// Options are the configurable defaults; --metrics-file overrides File.
type Options struct {
	File string `yaml:"file"`
}

// Metrics holds the collectors of one run on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	ScenariosTotal *prometheus.CounterVec
	StepDuration   *prometheus.HistogramVec
	RunDuration    prometheus.Gauge
	Interrupted    prometheus.Gauge
}

// NewMetrics registers the run collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ScenariosTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scenarios",
				Name:      "total",
				Help:      "Reported scenarios by final status",
			},
			[]string{"status"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "step",
				Name:      "duration_seconds",
				Help:      "Step duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time between the first scenario start and the last scenario end",
		}),
		Interrupted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "interrupted",
			Help:      "1 when the run was interrupted, 0 otherwise",
		}),
	}
	m.Registry.MustRegister(m.ScenariosTotal, m.StepDuration, m.RunDuration, m.Interrupted)
	return m
}

type metricsPlugin struct {
	opts    Options
	metrics *Metrics
	logger  *logger.Logger
}

var _ plugin.Plugin = (*metricsPlugin)(nil)

// New describes the metrics plugin. It is disabled until configured or
// enabled in scenery.yaml. When m is nil the plugin creates its own
// collectors.
func New(m *Metrics) *plugin.Config {
	return &plugin.Config{
		Name:        Name,
		Description: "Collects run metrics and writes them in the Prometheus text format.",
		Enabled:     false,
		Options:     &Options{},
		Factory: func(cfg *plugin.Config, env plugin.Env) (plugin.Plugin, error) {
			opts, ok := cfg.Options.(*Options)
			if !ok {
				return nil, fmt.Errorf("unexpected options type %T", cfg.Options)
			}
			metrics := m
			if metrics == nil {
				metrics = NewMetrics()
			}
			return &metricsPlugin{opts: *opts, metrics: metrics, logger: env.Logger}, nil
		},
	}
}

func (p *metricsPlugin) Subscribe(bus *events.Bus) {
	events.Listen(bus, func(_ context.Context, e events.ArgParseEvent) error {
		if e.Flags != nil {
			e.Flags.String("metrics-file", p.opts.File, "write run metrics to this file in the Prometheus text format")
		}
		return nil
	})
	events.Listen(bus, func(_ context.Context, e events.ArgParsedEvent) error {
		if e.Flags == nil {
			return nil
		}
		if file, err := e.Flags.GetString("metrics-file"); err == nil {
			p.opts.File = file
		}
		return nil
	})
	events.Listen(bus, func(_ context.Context, e events.ScenarioReportedEvent) error {
		p.metrics.ScenariosTotal.WithLabelValues(string(e.Result.Status())).Inc()
		return nil
	})
	events.Listen(bus, func(_ context.Context, e events.StepPassedEvent) error {
		p.metrics.StepDuration.WithLabelValues(string(e.Result.Status())).Observe(e.Result.Elapsed().Seconds())
		return nil
	})
	events.Listen(bus, func(_ context.Context, e events.StepFailedEvent) error {
		p.metrics.StepDuration.WithLabelValues(string(e.Result.Status())).Observe(e.Result.Elapsed().Seconds())
		return nil
	})
	events.Listen(bus, p.onCleanup)
}

func (p *metricsPlugin) onCleanup(_ context.Context, e events.CleanupEvent) error {
	if e.Report != nil {
		p.metrics.RunDuration.Set(e.Report.Elapsed().Seconds())
		if e.Report.Interrupted() != nil {
			p.metrics.Interrupted.Set(1)
		}
	}

	if p.opts.File == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.opts.File), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(p.opts.File, p.metrics.Registry); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	p.logger.WithFields(map[string]any{"path": p.opts.File}).Info("metrics written")
	return nil
}
