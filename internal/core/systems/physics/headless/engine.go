// Package headless is an in-memory physics backend without collision
// detection. It integrates forces, gravity and damping so that bodies move,
// records every call it receives and can inject failures, which makes it the
// backend of choice for tests and servers running without a native engine.
package headless

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/spatial/internal/core/systems/physics"
)

var _ physics.Engine = (*Engine)(nil)

// Operation names used for call recording and failure injection.
const (
	OpCreateBody          = "CreateBody"
	OpAddBody             = "AddBody"
	OpRemoveBody          = "RemoveBody"
	OpStep                = "Step"
	OpApplyImpulse        = "ApplyImpulse"
	OpApplyCentralImpulse = "ApplyCentralImpulse"
	OpApplyForce          = "ApplyForce"
	OpApplyCentralForce   = "ApplyCentralForce"
	OpApplyTorque         = "ApplyTorque"
	OpApplyTorqueImpulse  = "ApplyTorqueImpulse"
	OpSetFriction         = "SetFriction"
	OpSetRestitution      = "SetRestitution"
	OpSetLinearVelocity   = "SetLinearVelocity"
	OpSetAngularVelocity  = "SetAngularVelocity"
	OpSetDamping          = "SetDamping"
	OpSetWorldTransform   = "SetWorldTransform"
	OpClearForces         = "ClearForces"
	OpActivate            = "Activate"
	OpSetActivationState  = "SetActivationState"
)

// Call is one recorded engine invocation.
type Call struct {
	Op   string
	Body uint64
}

type fault struct {
	err   error
	panic any
}

// Engine is the headless physics backend.
type Engine struct {
	gravity mgl64.Vec3

	mu      sync.Mutex
	nextID  uint64
	calls   []Call
	faults  map[string]fault
	records bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithGravity sets the acceleration applied to dynamic bodies every step.
func WithGravity(g mgl64.Vec3) Option {
	return func(e *Engine) { e.gravity = g }
}

// WithRecording enables call recording.
func WithRecording() Option {
	return func(e *Engine) { e.records = true }
}

// New creates a headless engine. Gravity defaults to zero.
func New(opts ...Option) *Engine {
	e := &Engine{faults: make(map[string]fault)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "headless" }

// Gravity returns the configured gravity.
func (e *Engine) Gravity() mgl64.Vec3 { return e.gravity }

// FailNext makes the next call of op return err.
func (e *Engine) FailNext(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults[op] = fault{err: err}
}

// PanicNext makes the next call of op panic with v.
func (e *Engine) PanicNext(op string, v any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults[op] = fault{panic: v}
}

// Calls returns a copy of the recorded calls.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// CountCalls returns how many times op was recorded.
func (e *Engine) CountCalls(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls drops the recorded calls.
func (e *Engine) ResetCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = e.calls[:0]
}

func (e *Engine) hook(op string, body uint64) error {
	e.mu.Lock()
	if e.records {
		e.calls = append(e.calls, Call{Op: op, Body: body})
	}
	f, ok := e.faults[op]
	if ok {
		delete(e.faults, op)
	}
	e.mu.Unlock()

	if !ok {
		return nil
	}
	if f.panic != nil {
		panic(f.panic)
	}
	return f.err
}

// CreateBody builds a body. The start pose is pulled from the motion state
// when one is given, as native engines do.
func (e *Engine) CreateBody(info physics.BodyInfo) (physics.Body, error) {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.mu.Unlock()

	if err := e.hook(OpCreateBody, id); err != nil {
		return nil, err
	}
	if info.Shape == nil {
		return nil, fmt.Errorf("headless: body %d has no shape", id)
	}

	pose := info.StartPose
	if info.MotionState != nil {
		pose = info.MotionState.WorldTransform()
	}

	b := &Body{
		engine:      e,
		id:          id,
		shape:       info.Shape,
		motion:      info.MotionState,
		pose:        pose,
		friction:    0.5,
		activation:  physics.ActivationActive,
		invInertia:  invert(info.LocalInertia),
		inertia:     info.LocalInertia,
		mass:        info.Mass,
		restitution: 0,
	}
	if info.Mass > 0 {
		b.invMass = 1 / info.Mass
	}
	return b, nil
}

// NewSimulation creates an empty simulation bound to this engine.
func (e *Engine) NewSimulation() physics.Simulation {
	return &Simulation{
		engine: e,
		index:  make(map[*Body]int),
	}
}

func invert(v mgl64.Vec3) mgl64.Vec3 {
	var out mgl64.Vec3
	for i := range v {
		if v[i] != 0 {
			out[i] = 1 / v[i]
		}
	}
	return out
}
