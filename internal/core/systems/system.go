package systems

import (
	"context"
	"time"
)

// System is one step of the simulation tick. Systems registered with a
// runner execute in Phase order; systems sharing a phase run in
// registration order.
type System interface {
	Name() string
	Phase() Phase
	Update(ctx context.Context, dt time.Duration) error
}

// Phase defines when a system runs inside a tick.
type Phase uint8

const (
	// PhaseLogic mutates live transforms.
	PhaseLogic Phase = iota
	// PhasePhysics steps every region simulation.
	PhasePhysics
	// PhaseCommit copies live into snapshot for every entity.
	PhaseCommit
	// PhaseMigrate hands entities to the region their committed position falls in.
	PhaseMigrate
	// PhaseRender blends render transforms. It runs on the presentation
	// cadence, outside the tick.
	PhaseRender
)

func (p Phase) String() string {
	switch p {
	case PhaseLogic:
		return "logic"
	case PhasePhysics:
		return "physics"
	case PhaseCommit:
		return "commit"
	case PhaseMigrate:
		return "migrate"
	case PhaseRender:
		return "render"
	default:
		return "unknown"
	}
}

// TickPhases lists the phases run by one simulation tick.
var TickPhases = []Phase{PhaseLogic, PhasePhysics, PhaseCommit, PhaseMigrate}

// Func adapts a plain function to System.
type Func struct {
	name  string
	phase Phase
	fn    func(ctx context.Context, dt time.Duration) error
}

// NewFunc wraps fn as a system named name running in phase.
func NewFunc(name string, phase Phase, fn func(ctx context.Context, dt time.Duration) error) *Func {
	return &Func{name: name, phase: phase, fn: fn}
}

func (f *Func) Name() string { return f.name }
func (f *Func) Phase() Phase { return f.phase }

func (f *Func) Update(ctx context.Context, dt time.Duration) error {
	return f.fn(ctx, dt)
}

// Metrics provides runtime metrics for a system
type Metrics struct {
	ExecutionCount     uint64
	TotalExecutionTime time.Duration
	MaxExecutionTime   time.Duration
	LastExecutionTime  time.Duration
	ErrorCount         uint64
	LastError          error
	LastExecutedAt     time.Time
}

// AverageExecutionTime is the mean duration of one update.
func (m Metrics) AverageExecutionTime() time.Duration {
	if m.ExecutionCount == 0 {
		return 0
	}
	return m.TotalExecutionTime / time.Duration(m.ExecutionCount)
}
