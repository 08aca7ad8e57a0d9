package system

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kamstrup/intmap"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/zeusync/spatial/internal/core/events/bus"
	"github.com/zeusync/spatial/internal/core/models"
	"github.com/zeusync/spatial/internal/core/observability/log"
	"github.com/zeusync/spatial/internal/core/region"
	"github.com/zeusync/spatial/internal/core/scene"
	"github.com/zeusync/spatial/internal/core/systems"
	"github.com/zeusync/spatial/internal/core/systems/physics"
	"github.com/zeusync/spatial/pkg/concurrent"
	"github.com/zeusync/spatial/pkg/generic"
)

// Entity is a simulated object and its spatial state.
type Entity struct {
	ID    models.EntityID
	Name  string
	Scene *scene.Component
}

// Logic mutates one entity during the logic phase. Logic of different
// entities runs in parallel; logic of one entity never does.
type Logic func(ctx context.Context, e *Entity, dt time.Duration) error

// Options tunes a World.
type Options struct {
	// Name of the default world new entities are placed in.
	Name string
	// LogicRate and RenderRate (Hz) set the interpolation blend ratio.
	LogicRate  float64
	RenderRate float64
	// Workers bounds the goroutines of the parallel phases. Zero means one
	// per batch.
	Workers int
	// BatchSize is the number of entities handled by one goroutine.
	BatchSize int
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "default"
	}
	if o.LogicRate <= 0 {
		o.LogicRate = scene.DefaultLogicRate
	}
	if o.RenderRate <= 0 {
		o.RenderRate = scene.DefaultRenderRate
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}
	return o
}

// Stats is a point-in-time view of a world.
type Stats struct {
	Entities   int
	Regions    int
	Ticks      uint64
	Migrations uint64
}

// World owns the entities of a simulation and drives their tick.
//
// Tick and Render are mutually exclusive: commit and interpolation touch the
// same per-entity state.
type World struct {
	opts    Options
	world   physics.World
	engine  physics.Engine
	regions *region.Manager
	events  bus.EventBus
	logger  log.Log
	runner  *Runner
	ids     models.IDGenerator

	phaseMu sync.Mutex

	mu       sync.RWMutex
	entities *intmap.Map[models.EntityID, *Entity]
	logic    []Logic
	pending  []*Entity

	buffers    *generic.Pool[*[]*Entity]
	ticks      atomic.Uint64
	migrations atomic.Uint64
}

// NewWorld creates a world stepping bodies through regions.
func NewWorld(opts Options, engine physics.Engine, regions *region.Manager, events bus.EventBus, logger log.Log) (*World, error) {
	if engine == nil {
		return nil, errors.New("system: nil physics engine")
	}
	if regions == nil {
		return nil, errors.New("system: nil region manager")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if events == nil {
		events = bus.New()
	}
	opts = opts.withDefaults()

	w := &World{
		opts:     opts,
		world:    physics.NewWorld(opts.Name),
		engine:   engine,
		regions:  regions,
		events:   events,
		logger:   logger.Named("world").With(log.String("world", opts.Name)),
		runner:   NewRunner(logger),
		entities: intmap.New[models.EntityID, *Entity](256),
		buffers: generic.NewPool(func() *[]*Entity {
			buf := make([]*Entity, 0, 256)
			return &buf
		}),
	}

	builtin := []systems.System{
		systems.NewFunc("logic", systems.PhaseLogic, w.runLogic),
		systems.NewFunc("physics", systems.PhasePhysics, w.stepPhysics),
		systems.NewFunc("commit", systems.PhaseCommit, w.commit),
		systems.NewFunc("migrate", systems.PhaseMigrate, w.migrate),
		systems.NewFunc("interpolate", systems.PhaseRender, w.interpolate),
	}
	for _, s := range builtin {
		if err := w.runner.Register(s); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Default is the world entities are placed in when their transform names none.
func (w *World) Default() physics.World { return w.world }

func (w *World) Runner() *Runner { return w.runner }

func (w *World) Regions() *region.Manager { return w.regions }

func (w *World) Events() bus.EventBus { return w.events }

// AddSystem registers a custom system with the tick runner.
func (w *World) AddSystem(s systems.System) error { return w.runner.Register(s) }

// AddLogic registers fn to run for every entity in the logic phase.
func (w *World) AddLogic(fn Logic) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logic = append(w.logic, fn)
}

// Spawn creates an unbound entity at t and assigns it to the region of its
// position.
func (w *World) Spawn(name string, t physics.Transform) (*Entity, error) {
	if t.World().IsZero() {
		p := t.Position()
		p.World = w.world
		t.SetPosition(p)
	}

	id := w.ids.Next()
	comp := scene.New(id, t,
		scene.WithEngine(w.engine),
		scene.WithEvents(w.events),
		scene.WithLogger(w.logger),
		scene.WithRates(w.opts.LogicRate, w.opts.RenderRate),
	)
	if err := comp.Simulate(w.regions.RegionAt(t.Position())); err != nil {
		return nil, err
	}

	e := &Entity{ID: id, Name: name, Scene: comp}
	w.mu.Lock()
	w.entities.Put(id, e)
	w.mu.Unlock()

	w.logger.Debug("entity spawned", log.Uint64("entity", uint64(id)), log.String("name", name))
	return e, nil
}

// SpawnBody spawns an entity governed by a rigid body.
func (w *World) SpawnBody(name string, t physics.Transform, mass float64, shape physics.Shape) (*Entity, error) {
	e, err := w.Spawn(name, t)
	if err != nil {
		return nil, err
	}
	if err = e.Scene.SetShape(mass, shape); err != nil {
		w.Despawn(e.ID)
		return nil, err
	}
	return e, nil
}

// Despawn removes the entity and takes its body out of simulation. When
// called while a tick or render pass runs, the body is released in the
// migrate phase of the next tick.
func (w *World) Despawn(id models.EntityID) bool {
	w.mu.Lock()
	e, ok := w.entities.Get(id)
	if !ok {
		w.mu.Unlock()
		return false
	}
	w.entities.Del(id)
	w.mu.Unlock()

	if w.phaseMu.TryLock() {
		defer w.phaseMu.Unlock()
		w.release(e)
		return true
	}
	w.mu.Lock()
	w.pending = append(w.pending, e)
	w.mu.Unlock()
	return true
}

// Entity returns the entity with the given id.
func (w *World) Entity(id models.EntityID) (*Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.entities.Get(id)
}

// Len returns the number of live entities.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.entities.Len()
}

// Entities returns a snapshot of all entities in no particular order.
func (w *World) Entities() []*Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Entity, 0, w.entities.Len())
	w.entities.ForEach(func(_ models.EntityID, e *Entity) bool {
		out = append(out, e)
		return true
	})
	return out
}

// Each calls fn for every entity until fn returns false. fn runs without any
// world lock held and may spawn or despawn.
func (w *World) Each(fn func(e *Entity) bool) {
	buf := w.collect()
	defer w.buffers.Put(buf)
	for _, e := range *buf {
		if !fn(e) {
			return
		}
	}
}

// Tick advances the simulation by dt: logic, physics, commit, migrate.
func (w *World) Tick(ctx context.Context, dt time.Duration) error {
	w.phaseMu.Lock()
	defer w.phaseMu.Unlock()
	w.ticks.Add(1)
	return w.runner.Tick(ctx, dt)
}

// Render blends every unbound entity toward its committed transform. dtp is
// the real time since the previous render pass.
func (w *World) Render(ctx context.Context, dtp time.Duration) error {
	w.phaseMu.Lock()
	defer w.phaseMu.Unlock()
	return w.runner.TickPhase(ctx, systems.PhaseRender, dtp)
}

// Stats reports counters of the world.
func (w *World) Stats() Stats {
	return Stats{
		Entities:   w.Len(),
		Regions:    w.regions.Len(),
		Ticks:      w.ticks.Load(),
		Migrations: w.migrations.Load(),
	}
}

func (w *World) runLogic(ctx context.Context, dt time.Duration) error {
	w.mu.RLock()
	logic := make([]Logic, len(w.logic))
	copy(logic, w.logic)
	w.mu.RUnlock()
	if len(logic) == 0 {
		return nil
	}

	// One failing entity must not stop the logic of the others.
	var (
		mu   sync.Mutex
		errs error
	)
	err := w.parallel(ctx, func(ctx context.Context, e *Entity) error {
		for _, fn := range logic {
			if err := fn(ctx, e, dt); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, errors.Wrapf(err, "entity %d", e.ID))
				mu.Unlock()
				return nil
			}
		}
		return nil
	})
	return multierr.Append(err, errs)
}

func (w *World) stepPhysics(ctx context.Context, dt time.Duration) error {
	return w.regions.StepAll(ctx, dt.Seconds())
}

func (w *World) commit(ctx context.Context, _ time.Duration) error {
	return w.parallel(ctx, func(_ context.Context, e *Entity) error {
		e.Scene.CopySnapshot()
		return nil
	})
}

// migrate releases despawned bodies, then hands every entity whose committed
// position left its region to the region it is now in, and re-attaches bodies
// no simulation holds. Entities migrate one after the other.
func (w *World) migrate(_ context.Context, _ time.Duration) error {
	w.mu.Lock()
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()
	for _, e := range pending {
		w.release(e)
	}

	var errs error
	w.Each(func(e *Entity) bool {
		target := w.regions.RegionAt(e.Scene.Position())
		current := e.Scene.Region()
		// a bound body left behind by a failed attach is retried every tick
		settled := !e.Scene.IsBound() || e.Scene.MigrationPhase() == scene.PhaseAttached
		if target == current && settled {
			return true
		}
		if err := e.Scene.Simulate(target); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "migrate entity %d", e.ID))
			return true
		}
		w.migrations.Add(1)
		return true
	})
	return errs
}

func (w *World) interpolate(ctx context.Context, dtp time.Duration) error {
	seconds := dtp.Seconds()
	return w.parallel(ctx, func(_ context.Context, e *Entity) error {
		e.Scene.InterpolateRender(seconds)
		return nil
	})
}

// parallel runs fn over batches of entities on at most Workers goroutines.
// Each entity is handled by exactly one goroutine.
func (w *World) parallel(ctx context.Context, fn func(ctx context.Context, e *Entity) error) error {
	buf := w.collect()
	defer w.buffers.Put(buf)

	return concurrent.ForEach(ctx, concurrent.Chunks(*buf, w.opts.BatchSize), w.opts.Workers,
		func(ctx context.Context, batch []*Entity) error {
			for _, e := range batch {
				if err := fn(ctx, e); err != nil {
					return err
				}
			}
			return nil
		})
}

func (w *World) collect() *[]*Entity {
	buf := w.buffers.Get()
	*buf = (*buf)[:0]
	w.mu.RLock()
	w.entities.ForEach(func(_ models.EntityID, e *Entity) bool {
		*buf = append(*buf, e)
		return true
	})
	w.mu.RUnlock()
	return buf
}

func (w *World) release(e *Entity) {
	if err := e.Scene.Simulate(nil); err != nil {
		w.logger.Warn("failed to release despawned entity", log.Uint64("entity", uint64(e.ID)), log.Error(err))
		return
	}
	w.logger.Debug("entity despawned", log.Uint64("entity", uint64(e.ID)), log.String("name", e.Name))
}
