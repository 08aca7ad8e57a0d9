// Package metrics exposes simulation counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zeusync/spatial/internal/core/events/bus"
	"github.com/zeusync/spatial/internal/core/region"
	"github.com/zeusync/spatial/internal/core/scene"
	"github.com/zeusync/spatial/internal/core/system"
	"github.com/zeusync/spatial/internal/core/systems"
)

var (
	_ region.StepObserver = (*Collector)(nil)
	_ system.Observer     = (*Collector)(nil)
	_ bus.Observer        = (*Collector)(nil)
)

// Collector bundles the simulation metrics. It observes region steps,
// system updates and event bus deliveries.
type Collector struct {
	gatherer prometheus.Gatherer

	SystemDuration *prometheus.HistogramVec
	SystemErrors   *prometheus.CounterVec

	RegionStepDuration prometheus.Histogram
	RegionStepErrors   prometheus.Counter

	SceneEvents   *prometheus.CounterVec
	Migrations    prometheus.Counter
	BusDeliveries *prometheus.CounterVec

	Entities prometheus.Gauge
	Regions  prometheus.Gauge
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.SystemDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spatial_system_duration_seconds",
		Help:    "Duration of one system update, labeled by system and tick phase.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}, []string{"system", "phase"})); err != nil {
		return nil, err
	}
	if c.SystemErrors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_system_errors_total",
		Help: "Failed system updates, labeled by system.",
	}, []string{"system"})); err != nil {
		return nil, err
	}
	if c.RegionStepDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "spatial_region_step_duration_seconds",
		Help:    "Duration of one physics step of a region, lock wait included.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	})); err != nil {
		return nil, err
	}
	if c.RegionStepErrors, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spatial_region_step_errors_total",
		Help: "Physics steps that returned an engine error.",
	})); err != nil {
		return nil, err
	}
	if c.SceneEvents, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_scene_events_total",
		Help: "Scene events published, labeled by event type.",
	}, []string{"type"})); err != nil {
		return nil, err
	}
	if c.Migrations, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spatial_region_migrations_total",
		Help: "Entities handed from one region to another.",
	})); err != nil {
		return nil, err
	}
	if c.BusDeliveries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_bus_deliveries_total",
		Help: "Event bus deliveries, labeled by event type and outcome.",
	}, []string{"type", "outcome"})); err != nil {
		return nil, err
	}
	if c.Entities, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spatial_world_entities",
		Help: "Current number of entities.",
	})); err != nil {
		return nil, err
	}
	if c.Regions, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spatial_world_regions",
		Help: "Current number of regions.",
	})); err != nil {
		return nil, err
	}
	return c, nil
}

// Subscribe counts scene events published on b.
func (c *Collector) Subscribe(b bus.EventBus) error {
	for _, typ := range []string{scene.EventBodyAttached, scene.EventBodyDetached, scene.EventRegionChanged, scene.EventBodyHotSwap} {
		if _, err := b.Subscribe(typ, c.onSceneEvent); err != nil {
			return err
		}
	}
	b.AddObserver(c)
	return nil
}

func (c *Collector) onSceneEvent(e bus.Event) error {
	c.SceneEvents.WithLabelValues(e.Type()).Inc()
	if change, ok := e.Data().(scene.RegionChange); ok && change.From != uuid.Nil && change.To != uuid.Nil {
		c.Migrations.Inc()
	}
	return nil
}

func (c *Collector) ObserveStep(_ *region.Region, took time.Duration, err error) {
	c.RegionStepDuration.Observe(took.Seconds())
	if err != nil {
		c.RegionStepErrors.Inc()
	}
}

func (c *Collector) ObserveSystem(name string, phase systems.Phase, took time.Duration, err error) {
	c.SystemDuration.WithLabelValues(name, phase.String()).Observe(took.Seconds())
	if err != nil {
		c.SystemErrors.WithLabelValues(name).Inc()
	}
}

func (c *Collector) OnDelivered(eventType string, _ int, err error, _ time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.BusDeliveries.WithLabelValues(eventType, outcome).Inc()
}

// SetWorldStats updates the world gauges.
func (c *Collector) SetWorldStats(stats system.Stats) {
	c.Entities.Set(float64(stats.Entities))
	c.Regions.Set(float64(stats.Regions))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	if err := reg.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return collector, err
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return collector, errors.Errorf("collector already registered with incompatible type: %v", err)
		}
		return existing, nil
	}
	return collector, nil
}
