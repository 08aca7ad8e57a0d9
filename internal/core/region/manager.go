package region

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/spatial/internal/core/observability/log"
	"github.com/zeusync/spatial/internal/core/systems/physics"
)

const defaultShardCount = 16

type regionKey struct {
	world uuid.UUID
	cell  Cell
}

type shard struct {
	mu      sync.RWMutex
	regions map[regionKey]*Region
}

// Manager partitions worlds into cubic cells and lazily creates one region
// per occupied cell.
type Manager struct {
	engine   physics.Engine
	cellSize float64
	shards   []shard
	logger   log.Log
	observer StepObserver

	parallelism int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithShards overrides the number of lookup shards.
func WithShards(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.shards = make([]shard, n)
		}
	}
}

// WithStepObserver installs an observer on every region the manager creates.
func WithStepObserver(o StepObserver) ManagerOption {
	return func(m *Manager) { m.observer = o }
}

// WithParallelism limits how many regions StepAll steps at once. Zero means unlimited.
func WithParallelism(n int) ManagerOption {
	return func(m *Manager) { m.parallelism = n }
}

// WithLogger sets the manager logger.
func WithLogger(l log.Log) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager building simulations from engine.
func NewManager(engine physics.Engine, cellSize float64, opts ...ManagerOption) *Manager {
	m := &Manager{
		engine:   engine,
		cellSize: cellSize,
		shards:   make([]shard, defaultShardCount),
		logger:   log.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	for i := range m.shards {
		m.shards[i].regions = make(map[regionKey]*Region)
	}
	return m
}

// CellSize returns the edge length of a region cell.
func (m *Manager) CellSize() float64 { return m.cellSize }

// CellOf maps a point to its grid cell.
func (m *Manager) CellOf(p physics.Point) Cell {
	return Cell{
		X: int64(math.Floor(p.Vec[0] / m.cellSize)),
		Y: int64(math.Floor(p.Vec[1] / m.cellSize)),
		Z: int64(math.Floor(p.Vec[2] / m.cellSize)),
	}
}

// RegionAt returns the region containing p, creating it on first use.
func (m *Manager) RegionAt(p physics.Point) *Region {
	key := regionKey{world: p.World.ID, cell: m.CellOf(p)}
	s := m.shardFor(key)

	s.mu.RLock()
	r, ok := s.regions[key]
	s.mu.RUnlock()
	if ok {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok = s.regions[key]; ok {
		return r
	}
	r = New(p.World, key.cell, m.engine.NewSimulation(), m.logger)
	r.SetObserver(m.observer)
	s.regions[key] = r
	m.logger.Debug("region created",
		log.String("region", r.ID().String()),
		log.String("world", p.World.Name),
		log.Stringer("cell", key.cell),
	)
	return r
}

// Lookup returns the region of p without creating it.
func (m *Manager) Lookup(p physics.Point) (*Region, bool) {
	key := regionKey{world: p.World.ID, cell: m.CellOf(p)}
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.regions[key]
	return r, ok
}

// Get finds a region by id.
func (m *Manager) Get(id uuid.UUID) (*Region, bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for _, r := range s.regions {
			if r.id == id {
				s.mu.RUnlock()
				return r, true
			}
		}
		s.mu.RUnlock()
	}
	return nil, false
}

// Regions returns a snapshot of all regions.
func (m *Manager) Regions() []*Region {
	var out []*Region
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for _, r := range s.regions {
			out = append(out, r)
		}
		s.mu.RUnlock()
	}
	return out
}

// Len returns the number of regions.
func (m *Manager) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.regions)
		s.mu.RUnlock()
	}
	return n
}

// StepAll steps every region in parallel. Each goroutine holds exactly one
// region lock at a time.
func (m *Manager) StepAll(ctx context.Context, dt float64) error {
	g, ctx := errgroup.WithContext(ctx)
	if m.parallelism > 0 {
		g.SetLimit(m.parallelism)
	}
	for _, r := range m.Regions() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return r.Step(dt)
		})
	}
	return g.Wait()
}

func (m *Manager) shardFor(key regionKey) *shard {
	var buf [16 + 24]byte
	copy(buf[:16], key.world[:])
	binary.LittleEndian.PutUint64(buf[16:], uint64(key.cell.X))
	binary.LittleEndian.PutUint64(buf[24:], uint64(key.cell.Y))
	binary.LittleEndian.PutUint64(buf[32:], uint64(key.cell.Z))
	return &m.shards[xxhash.Sum64(buf[:])%uint64(len(m.shards))]
}
