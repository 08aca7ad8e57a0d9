// Package scene keeps the spatial state of an entity.
//
// Every component owns three transforms:
//
//	live      mutated by game logic (and by physics through the motion state)
//	snapshot  committed once per tick from live, read by the rest of the world
//	render    blended toward the snapshot at presentation cadence
//
// A component is not safe for concurrent logic mutation. The scheduler runs
// logic, physics stepping and commit as mutually exclusive phases; physics
// attribute calls are serialised by the owning region's lock.
package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/spatial/internal/core/models"
	"github.com/zeusync/spatial/internal/core/observability/log"
	"github.com/zeusync/spatial/internal/core/region"
	"github.com/zeusync/spatial/internal/core/systems/physics"
)

// State tells whether physics or software interpolation drives the entity.
type State uint8

const (
	StateUnbound State = iota
	StateBound
)

func (s State) String() string {
	if s == StateBound {
		return "bound"
	}
	return "unbound"
}

// Component is the spatial state machine of one entity.
type Component struct {
	id  models.EntityID
	cfg Config

	live     physics.Transform
	snapshot physics.Transform
	render   physics.Transform

	interp    *interpolation
	body      *rigidBody
	placement placement

	logger log.Log
}

// New attaches a scene component to entity id, starting at initial.
func New(id models.EntityID, initial physics.Transform, opts ...Option) *Component {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Component{
		id:       id,
		cfg:      cfg,
		live:     initial,
		snapshot: initial,
		render:   initial,
		logger:   cfg.Logger.With(log.Uint64("entity", uint64(id))),
	}
}

func (c *Component) ID() models.EntityID { return c.id }

// State reports whether a rigid body governs the entity.
func (c *Component) State() State {
	if c.body != nil {
		return StateBound
	}
	return StateUnbound
}

func (c *Component) IsBound() bool { return c.body != nil }

// Region returns the region currently simulating the entity, or nil.
func (c *Component) Region() *region.Region { return c.placement.current() }

// Transform returns the last committed transform.
func (c *Component) Transform() physics.Transform { return c.snapshot.Copy() }

// LiveTransform returns a copy of the live transform.
func (c *Component) LiveTransform() physics.Transform { return c.live.Copy() }

// RenderTransform returns the interpolated transform. Bound entities are
// rendered straight from the snapshot.
func (c *Component) RenderTransform() physics.Transform {
	if c.body != nil {
		return c.snapshot.Copy()
	}
	return c.render.Copy()
}

// SetTransform replaces the live transform. A bound body is teleported to the
// new pose.
func (c *Component) SetTransform(t physics.Transform) error {
	c.live.Set(t)
	return c.syncBodyPose()
}

func (c *Component) Position() physics.Point { return c.snapshot.Position() }

func (c *Component) SetPosition(p physics.Point) error {
	c.live.SetPosition(p)
	return c.syncBodyPose()
}

func (c *Component) Rotation() mgl64.Quat { return c.snapshot.Rotation() }

func (c *Component) SetRotation(q mgl64.Quat) error {
	c.live.SetRotation(q)
	return c.syncBodyPose()
}

func (c *Component) Scale() mgl64.Vec3 { return c.snapshot.Scale() }

// SetScale changes the live scale. Bodies ignore scale.
func (c *Component) SetScale(s mgl64.Vec3) {
	c.live.SetScale(s)
}

// World returns the world of the committed position.
func (c *Component) World() physics.World { return c.snapshot.World() }

func (c *Component) IsTransformDirty() bool { return !c.snapshot.Equals(c.live) }

func (c *Component) IsPositionDirty() bool {
	return !c.snapshot.Position().Equals(c.live.Position())
}

func (c *Component) IsRotationDirty() bool { return c.snapshot.Rotation() != c.live.Rotation() }

func (c *Component) IsScaleDirty() bool { return c.snapshot.Scale() != c.live.Scale() }

func (c *Component) IsWorldDirty() bool { return c.snapshot.World() != c.live.World() }

// Translate moves the live position by v.
func (c *Component) Translate(v mgl64.Vec3) *Component {
	c.live.Translate(v)
	return c
}

// Rotate composes q onto the live rotation.
func (c *Component) Rotate(q mgl64.Quat) *Component {
	c.live.Rotate(q)
	return c
}

// ScaleBy multiplies the live scale component-wise.
func (c *Component) ScaleBy(v mgl64.Vec3) *Component {
	c.live.ScaleBy(v)
	return c
}

// CopySnapshot commits live into snapshot. The scheduler calls it exactly
// once per tick, never concurrently with logic mutation or physics stepping
// of the same entity.
func (c *Component) CopySnapshot() {
	c.snapshot.Set(c.live)
	if c.body != nil {
		return
	}
	if c.interp == nil {
		c.interp = &interpolation{}
	}
	c.interp.retarget(c.snapshot, c.render)
}

// InterpolateRender blends the render transform toward the last committed
// snapshot. dtp is the real time elapsed since the previous call, in seconds.
// Bound entities are skipped: physics already advanced them.
func (c *Component) InterpolateRender(dtp float64) {
	if c.body != nil || c.interp == nil {
		return
	}
	c.interp.blend(&c.render, dtp*c.cfg.blendRatio())
}

// livePose and applyPhysicsPose are the only access the motion state has to
// the live transform.
func (c *Component) livePose() (mgl64.Vec3, mgl64.Quat) {
	return c.live.Position().Vec, c.live.Rotation()
}

func (c *Component) applyPhysicsPose(position mgl64.Vec3, rotation mgl64.Quat) {
	c.live.SetPosition(physics.Point{Vec: position, World: c.live.World()})
	c.live.SetRotation(rotation)
}
