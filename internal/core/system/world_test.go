package system

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/spatial/internal/core/region"
	"github.com/zeusync/spatial/internal/core/scene"
	"github.com/zeusync/spatial/internal/core/systems/physics"
	"github.com/zeusync/spatial/internal/core/systems/physics/headless"
)

const tick = 100 * time.Millisecond

func newWorld(t *testing.T, opts Options) *World {
	t.Helper()
	engine := headless.New()
	w, err := NewWorld(opts, engine, region.NewManager(engine, 10), nil, nil)
	require.NoError(t, err)
	return w
}

func TestNewWorld_RequiresCollaborators(t *testing.T) {
	engine := headless.New()
	_, err := NewWorld(Options{}, nil, region.NewManager(engine, 10), nil, nil)
	require.Error(t, err)
	_, err = NewWorld(Options{}, engine, nil, nil, nil)
	require.Error(t, err)
}

func TestWorld_SpawnAndDespawn(t *testing.T) {
	w := newWorld(t, Options{Name: "arena"})

	e, err := w.Spawn("crate", physics.IdentityTransform(physics.World{}))
	require.NoError(t, err)
	require.Equal(t, w.Default(), e.Scene.World(), "zero world falls back to the default")
	require.NotNil(t, e.Scene.Region())

	got, ok := w.Entity(e.ID)
	require.True(t, ok)
	require.Same(t, e, got)
	require.Equal(t, 1, w.Len())
	require.Len(t, w.Entities(), 1)

	require.True(t, w.Despawn(e.ID))
	require.False(t, w.Despawn(e.ID))
	require.Nil(t, e.Scene.Region())
	require.Equal(t, 0, w.Len())
}

func TestWorld_SpawnBodyRegistersWithRegion(t *testing.T) {
	w := newWorld(t, Options{})
	e, err := w.SpawnBody("ball", physics.IdentityTransform(w.Default()), 1, physics.SphereShape{Radius: 1})
	require.NoError(t, err)
	require.True(t, e.Scene.IsBound())
	require.Equal(t, 1, e.Scene.Region().BodyCount())

	r := e.Scene.Region()
	require.True(t, w.Despawn(e.ID))
	require.Equal(t, 0, r.BodyCount())
}

func TestWorld_TickCommitsLogic(t *testing.T) {
	w := newWorld(t, Options{})
	e, err := w.Spawn("walker", physics.IdentityTransform(w.Default()))
	require.NoError(t, err)

	w.AddLogic(func(_ context.Context, e *Entity, dt time.Duration) error {
		e.Scene.Translate(mgl64.Vec3{dt.Seconds() * 10, 0, 0})
		return nil
	})

	require.NoError(t, w.Tick(context.Background(), tick))
	require.InDelta(t, 1, e.Scene.Position().X(), 1e-9)
	require.False(t, e.Scene.IsTransformDirty())
	require.Equal(t, uint64(1), w.Stats().Ticks)
}

func TestWorld_RenderInterpolates(t *testing.T) {
	w := newWorld(t, Options{})
	e, err := w.Spawn("ghost", physics.IdentityTransform(w.Default()))
	require.NoError(t, err)
	e.Scene.Translate(mgl64.Vec3{10, 0, 0})

	require.NoError(t, w.Tick(context.Background(), tick))
	require.NoError(t, w.Render(context.Background(), 62500*time.Microsecond))
	require.InDelta(t, 2.5, e.Scene.RenderTransform().Position().X(), 1e-9)
}

func TestWorld_BodyMigratesAcrossRegions(t *testing.T) {
	w := newWorld(t, Options{})
	start := physics.IdentityTransform(w.Default())
	start.SetPosition(physics.NewPoint(w.Default(), 9, 0, 0))

	e, err := w.SpawnBody("rocket", start, 1, physics.SphereShape{Radius: 0.5})
	require.NoError(t, err)
	origin := e.Scene.Region()
	require.Equal(t, region.Cell{}, origin.Cell())

	require.NoError(t, e.Scene.SetMovementVelocity(mgl64.Vec3{10, 0, 0}))
	require.NoError(t, w.Tick(context.Background(), tick))

	require.InDelta(t, 10, e.Scene.Position().X(), 1e-9)
	require.Equal(t, region.Cell{X: 1}, e.Scene.Region().Cell())
	require.Equal(t, 0, origin.BodyCount())
	require.Equal(t, 1, e.Scene.Region().BodyCount())

	stats := w.Stats()
	require.Equal(t, uint64(1), stats.Migrations)
	require.Equal(t, 2, stats.Regions)
}

func TestWorld_LogicErrorStillCommits(t *testing.T) {
	w := newWorld(t, Options{})
	broken, err := w.Spawn("broken", physics.IdentityTransform(w.Default()))
	require.NoError(t, err)
	healthy, err := w.Spawn("healthy", physics.IdentityTransform(w.Default()))
	require.NoError(t, err)

	boom := errors.New("script failed")
	w.AddLogic(func(_ context.Context, e *Entity, _ time.Duration) error {
		e.Scene.Translate(mgl64.Vec3{1, 0, 0})
		if e.ID == broken.ID {
			return boom
		}
		return nil
	})

	for i := 0; i < 3; i++ {
		err = w.Tick(context.Background(), tick)
		require.ErrorIs(t, err, boom)
	}
	require.InDelta(t, 3, healthy.Scene.Position().X(), 1e-9)
	require.InDelta(t, 3, broken.Scene.Position().X(), 1e-9, "commit runs for every entity after a logic error")

	m, ok := w.Runner().Metrics("logic")
	require.True(t, ok)
	require.Equal(t, uint64(3), m.ErrorCount)
	m, ok = w.Runner().Metrics("commit")
	require.True(t, ok)
	require.Equal(t, uint64(3), m.ExecutionCount)
}

func TestWorld_FailedAttachIsRetried(t *testing.T) {
	engine := headless.New()
	w, err := NewWorld(Options{}, engine, region.NewManager(engine, 10), nil, nil)
	require.NoError(t, err)

	start := physics.IdentityTransform(w.Default())
	start.SetPosition(physics.NewPoint(w.Default(), 9, 0, 0))
	e, err := w.SpawnBody("rocket", start, 1, physics.SphereShape{Radius: 0.5})
	require.NoError(t, err)
	origin := e.Scene.Region()
	require.NoError(t, e.Scene.SetMovementVelocity(mgl64.Vec3{10, 0, 0}))

	transient := errors.New("transient")
	engine.FailNext(headless.OpAddBody, transient)
	require.ErrorIs(t, w.Tick(context.Background(), tick), transient)
	require.Equal(t, scene.PhaseDetached, e.Scene.MigrationPhase())
	require.Equal(t, 0, origin.BodyCount())

	require.NoError(t, w.Tick(context.Background(), tick))
	target := e.Scene.Region()
	require.Equal(t, region.Cell{X: 1}, target.Cell())
	require.Equal(t, 1, target.BodyCount())
	require.Equal(t, scene.PhaseAttached, e.Scene.MigrationPhase())
	require.Equal(t, uint64(1), w.Stats().Migrations)
}

func TestWorld_ParallelLogicVisitsEveryEntityOnce(t *testing.T) {
	w := newWorld(t, Options{Workers: 4, BatchSize: 3})
	for i := 0; i < 50; i++ {
		_, err := w.Spawn("n", physics.IdentityTransform(w.Default()))
		require.NoError(t, err)
	}

	var visits atomic.Int64
	w.AddLogic(func(_ context.Context, e *Entity, _ time.Duration) error {
		visits.Add(1)
		e.Scene.Translate(mgl64.Vec3{0, 1, 0})
		return nil
	})

	require.NoError(t, w.Tick(context.Background(), tick))
	require.Equal(t, int64(50), visits.Load())
	w.Each(func(e *Entity) bool {
		require.Equal(t, 1.0, e.Scene.Position().Y())
		return true
	})
}

func TestWorld_DespawnDuringTickIsDeferred(t *testing.T) {
	w := newWorld(t, Options{})
	doomed, err := w.SpawnBody("doomed", physics.IdentityTransform(w.Default()), 1, physics.SphereShape{Radius: 1})
	require.NoError(t, err)
	r := doomed.Scene.Region()

	w.AddLogic(func(_ context.Context, e *Entity, _ time.Duration) error {
		if e.ID == doomed.ID {
			w.Despawn(e.ID)
		}
		return nil
	})

	require.NoError(t, w.Tick(context.Background(), tick))
	_, ok := w.Entity(doomed.ID)
	require.False(t, ok)
	require.Equal(t, 0, r.BodyCount(), "released in the migrate phase")
	require.Nil(t, doomed.Scene.Region())
}

func TestWorld_EachStopsEarly(t *testing.T) {
	w := newWorld(t, Options{})
	for i := 0; i < 3; i++ {
		_, err := w.Spawn("n", physics.IdentityTransform(w.Default()))
		require.NoError(t, err)
	}
	n := 0
	w.Each(func(*Entity) bool {
		n++
		return false
	})
	require.Equal(t, 1, n)
}
