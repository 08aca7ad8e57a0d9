package injector

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/wire"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zeusync/spatial/internal/config"
	"github.com/zeusync/spatial/internal/core/events/bus"
	"github.com/zeusync/spatial/internal/core/observability/log"
	"github.com/zeusync/spatial/internal/core/observability/metrics"
	"github.com/zeusync/spatial/internal/core/region"
	"github.com/zeusync/spatial/internal/core/system"
	"github.com/zeusync/spatial/internal/core/systems/physics"
	"github.com/zeusync/spatial/internal/core/systems/physics/headless"
	"github.com/zeusync/spatial/internal/server"
)

// ServerSet provides a simulation server from a loaded configuration.
var ServerSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideEngine,
	wire.Bind(new(physics.Engine), new(*headless.Engine)),
	ProvideRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	metrics.NewCollector,
	ProvideRegions,
	ProvideBus,
	ProvideWorld,
	ProvideServer,
)

func ProvideLogger(cfg *config.Config) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(log.Options{Level: level, Format: cfg.Logging.Format}), nil
}

func ProvideEngine(cfg *config.Config) (*headless.Engine, error) {
	if cfg.Physics.Engine != "headless" {
		return nil, errors.Errorf("unknown physics engine %q", cfg.Physics.Engine)
	}
	return headless.New(headless.WithGravity(mgl64.Vec3(cfg.Physics.Gravity))), nil
}

// ProvideRegistry returns a registry carrying the runtime collectors next to
// the simulation metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideRegions(cfg *config.Config, engine physics.Engine, collector *metrics.Collector, logger log.Log) *region.Manager {
	opts := []region.ManagerOption{
		region.WithStepObserver(collector),
		region.WithLogger(logger),
	}
	if cfg.Regions.Shards > 0 {
		opts = append(opts, region.WithShards(cfg.Regions.Shards))
	}
	if cfg.Regions.Parallelism > 0 {
		opts = append(opts, region.WithParallelism(cfg.Regions.Parallelism))
	}
	return region.NewManager(engine, cfg.Regions.CellSize, opts...)
}

func ProvideBus(collector *metrics.Collector) (bus.EventBus, error) {
	b := bus.New()
	if err := collector.Subscribe(b); err != nil {
		return nil, err
	}
	return b, nil
}

func ProvideWorld(cfg *config.Config, engine physics.Engine, regions *region.Manager, events bus.EventBus, collector *metrics.Collector, logger log.Log) (*system.World, error) {
	world, err := system.NewWorld(system.Options{
		Name:       cfg.World.Name,
		LogicRate:  cfg.Tick.LogicRate,
		RenderRate: cfg.Tick.RenderRate,
		Workers:    cfg.Tick.Workers,
		BatchSize:  cfg.Tick.BatchSize,
	}, engine, regions, events, logger)
	if err != nil {
		return nil, err
	}
	world.Runner().SetObserver(collector)
	return world, nil
}

func ProvideServer(cfg *config.Config, world *system.World, collector *metrics.Collector, logger log.Log) (*server.Server, func()) {
	srv := server.NewServer(server.ConfigFrom(cfg), world, collector, logger)
	cleanup := func() {
		if err := srv.Close(); err != nil {
			logger.Warn("Failed to close server", log.Error(err))
		}
		_ = logger.Sync()
	}
	return srv, cleanup
}
