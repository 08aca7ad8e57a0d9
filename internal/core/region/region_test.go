package region

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/spatial/internal/core/systems/physics"
	"github.com/zeusync/spatial/internal/core/systems/physics/headless"
)

type stepCounter struct {
	mu     sync.Mutex
	steps  map[*Region]int
	errors int
}

func (s *stepCounter) ObserveStep(r *Region, _ time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.steps == nil {
		s.steps = make(map[*Region]int)
	}
	s.steps[r]++
	if err != nil {
		s.errors++
	}
}

func TestRegion_WriteReleasesLockOnPanic(t *testing.T) {
	r := New(physics.NewWorld("w"), Cell{}, headless.New().NewSimulation(), nil)

	require.Panics(t, func() {
		_ = r.Write(func(physics.Simulation) error { panic("boom") })
	})
	require.True(t, r.PhysicsLock().TryLock())
	r.PhysicsLock().Unlock()

	require.Panics(t, func() {
		_ = r.Read(func(physics.Simulation) error { panic("boom") })
	})
	require.True(t, r.PhysicsLock().TryLock())
	r.PhysicsLock().Unlock()
}

func TestRegion_StepReportsToObserver(t *testing.T) {
	engine := headless.New()
	r := New(physics.NewWorld("w"), Cell{X: 2}, engine.NewSimulation(), nil)
	obs := &stepCounter{}
	r.SetObserver(obs)

	require.NoError(t, r.Step(0.1))
	engine.FailNext(headless.OpStep, errors.New("diverged"))
	require.Error(t, r.Step(0.1))

	require.Equal(t, 2, obs.steps[r])
	require.Equal(t, 1, obs.errors)
	require.Equal(t, "region w(2,0,0)", r.String())
}

func TestRegion_Remove(t *testing.T) {
	engine := headless.New()
	r := New(physics.NewWorld("w"), Cell{}, engine.NewSimulation(), nil)
	body, err := engine.CreateBody(physics.BodyInfo{Mass: 1, Shape: physics.SphereShape{Radius: 1}})
	require.NoError(t, err)

	require.NoError(t, r.Write(func(sim physics.Simulation) error { return sim.AddBody(body) }))
	require.Equal(t, 1, r.BodyCount())
	require.NoError(t, r.Remove(body))
	require.Equal(t, 0, r.BodyCount())
}

func TestManager_CellOf(t *testing.T) {
	m := NewManager(headless.New(), 10)
	w := physics.NewWorld("w")

	require.Equal(t, Cell{0, 0, 0}, m.CellOf(physics.NewPoint(w, 0, 9.99, 0)))
	require.Equal(t, Cell{1, 0, 0}, m.CellOf(physics.NewPoint(w, 10, 0, 0)))
	require.Equal(t, Cell{-1, 0, -2}, m.CellOf(physics.NewPoint(w, -0.1, 0, -10.5)))
	require.Equal(t, 10.0, m.CellSize())
}

func TestManager_RegionAtIsLazyAndStable(t *testing.T) {
	m := NewManager(headless.New(), 10, WithShards(4))
	w := physics.NewWorld("w")
	other := physics.NewWorld("other")

	_, ok := m.Lookup(physics.NewPoint(w, 1, 1, 1))
	require.False(t, ok)

	a := m.RegionAt(physics.NewPoint(w, 1, 1, 1))
	require.Same(t, a, m.RegionAt(physics.NewPoint(w, 9, 9, 9)))
	require.NotSame(t, a, m.RegionAt(physics.NewPoint(w, 11, 1, 1)))
	require.NotSame(t, a, m.RegionAt(physics.NewPoint(other, 1, 1, 1)), "worlds never share regions")
	require.Equal(t, 3, m.Len())

	got, ok := m.Get(a.ID())
	require.True(t, ok)
	require.Same(t, a, got)
	require.Equal(t, w, a.World())
	require.Len(t, m.Regions(), 3)
}

func TestManager_ConcurrentRegionAt(t *testing.T) {
	m := NewManager(headless.New(), 1)
	w := physics.NewWorld("w")

	var wg sync.WaitGroup
	seen := make([]*Region, 32)
	for i := range seen {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = m.RegionAt(physics.NewPoint(w, 0.5, 0.5, 0.5))
		}(i)
	}
	wg.Wait()

	for _, r := range seen {
		require.Same(t, seen[0], r)
	}
	require.Equal(t, 1, m.Len())
}

func TestManager_StepAll(t *testing.T) {
	engine := headless.New()
	obs := &stepCounter{}
	m := NewManager(engine, 10, WithStepObserver(obs), WithParallelism(2))
	w := physics.NewWorld("w")

	var bodies []physics.Body
	for x := 0; x < 4; x++ {
		r := m.RegionAt(physics.NewPoint(w, float64(x*10), 0, 0))
		b, err := engine.CreateBody(physics.BodyInfo{Mass: 1, Shape: physics.SphereShape{Radius: 1}, StartPose: mgl64.Ident4()})
		require.NoError(t, err)
		require.NoError(t, b.SetLinearVelocity(mgl64.Vec3{0, 1, 0}))
		require.NoError(t, r.Write(func(sim physics.Simulation) error { return sim.AddBody(b) }))
		bodies = append(bodies, b)
	}

	require.NoError(t, m.StepAll(context.Background(), 0.5))
	for _, b := range bodies {
		pos, _ := physics.DecomposePose(b.WorldTransform())
		require.InDelta(t, 0.5, pos.Y(), 1e-9)
	}
	for _, r := range m.Regions() {
		require.Equal(t, 1, obs.steps[r])
	}
}

func TestManager_StepAllReturnsFirstError(t *testing.T) {
	engine := headless.New()
	m := NewManager(engine, 10)
	m.RegionAt(physics.NewPoint(physics.NewWorld("w"), 0, 0, 0))
	boom := errors.New("diverged")
	engine.FailNext(headless.OpStep, boom)

	require.ErrorIs(t, m.StepAll(context.Background(), 0.1), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.StepAll(ctx, 0.1), context.Canceled)
}
