// Package region implements spatial partitions that each own one physics
// simulation and the reader/writer lock guarding it.
//
// Lock rule: reads of body attributes take the read lock, mutations of a
// body or of the simulation's body set take the write lock. A goroutine
// never holds the locks of two regions at once.
package region

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/spatial/internal/core/observability/log"
	"github.com/zeusync/spatial/internal/core/systems/physics"
)

// Cell is the integer coordinate of a region inside its world's grid.
type Cell struct {
	X, Y, Z int64
}

func (c Cell) String() string { return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z) }

// StepObserver is notified after every physics step of a region.
type StepObserver interface {
	ObserveStep(r *Region, took time.Duration, err error)
}

// Region owns a physics simulation and its lock.
type Region struct {
	id    uuid.UUID
	world physics.World
	cell  Cell

	lock sync.RWMutex
	sim  physics.Simulation

	logger   log.Log
	observer StepObserver
}

// New creates a region around sim.
func New(world physics.World, cell Cell, sim physics.Simulation, logger log.Log) *Region {
	if logger == nil {
		logger = log.NewNop()
	}
	id := uuid.New()
	return &Region{
		id:    id,
		world: world,
		cell:  cell,
		sim:   sim,
		logger: logger.With(
			log.String("region", id.String()),
			log.Stringer("cell", cell),
		),
	}
}

func (r *Region) ID() uuid.UUID        { return r.id }
func (r *Region) World() physics.World { return r.world }
func (r *Region) Cell() Cell           { return r.cell }

func (r *Region) String() string {
	return fmt.Sprintf("region %s%s", r.world.Name, r.cell)
}

// SetObserver installs a step observer. Call before stepping starts.
func (r *Region) SetObserver(o StepObserver) { r.observer = o }

// PhysicsLock exposes the region's lock for observers and tests.
func (r *Region) PhysicsLock() *sync.RWMutex { return &r.lock }

// Simulation returns the simulation without locking. Callers must hold the
// physics lock while using it.
func (r *Region) Simulation() physics.Simulation { return r.sim }

// Read runs fn under the read lock. The lock is released on every exit
// path, panics included.
func (r *Region) Read(fn func(sim physics.Simulation) error) error {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return fn(r.sim)
}

// Write runs fn under the write lock. The lock is released on every exit
// path, panics included.
func (r *Region) Write(fn func(sim physics.Simulation) error) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return fn(r.sim)
}

// Step advances the simulation by dt seconds under the write lock.
func (r *Region) Step(dt float64) error {
	start := time.Now()
	err := r.Write(func(sim physics.Simulation) error {
		return sim.Step(dt)
	})
	took := time.Since(start)
	if err != nil {
		r.logger.Error("physics step failed", log.Error(err), log.Float64("dt", dt))
	}
	if r.observer != nil {
		r.observer.ObserveStep(r, took, err)
	}
	return err
}

// BodyCount returns the number of bodies registered with the simulation.
func (r *Region) BodyCount() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.sim.Bodies()
}

// Remove unregisters body under the write lock.
func (r *Region) Remove(body physics.Body) error {
	return r.Write(func(sim physics.Simulation) error {
		return sim.RemoveBody(body)
	})
}
