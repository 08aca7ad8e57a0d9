package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/zeusync/spatial/internal/core/observability/log"
	"github.com/zeusync/spatial/internal/core/region"
	"github.com/zeusync/spatial/internal/core/systems/physics"
)

// rigidBody binds one engine body to its component.
type rigidBody struct {
	handle physics.Body
	shape  physics.Shape
	mass   float64

	// scratch is reused for every pose marshalled to the engine.
	scratch mgl64.Mat4
	motion  *motionState
}

func newRigidBody(engine physics.Engine, owner poseSink, mass float64, shape physics.Shape) (*rigidBody, error) {
	rb := &rigidBody{shape: shape, mass: mass}
	rb.motion = &motionState{owner: owner, scratch: &rb.scratch}

	position, rotation := owner.livePose()
	handle, err := engine.CreateBody(physics.BodyInfo{
		Mass:         mass,
		Shape:        shape,
		LocalInertia: shape.LocalInertia(mass),
		StartPose:    physics.PoseMatrix(position, rotation),
		MotionState:  rb.motion,
	})
	if err != nil {
		return nil, err
	}
	if err = handle.Activate(); err != nil {
		return nil, err
	}
	rb.handle = handle
	return rb, nil
}

// SetShape gives the entity a rigid body of the given mass and shape,
// replacing any previous body. If the entity is simulated, the previous body
// is removed and the new one added under a single write-lock acquisition.
func (c *Component) SetShape(mass float64, shape physics.Shape) error {
	if c.cfg.Engine == nil {
		return errors.WithStack(ErrNoEngine)
	}
	if shape == nil {
		return errors.Wrap(ErrIllegalState, "nil collision shape")
	}

	next, err := newRigidBody(c.cfg.Engine, c, mass, shape)
	if err != nil {
		return err
	}

	if err = c.placement.begin(PhaseAttaching); err != nil {
		return err
	}
	defer c.placement.settle()

	previous := c.body
	r := c.placement.current()
	if previous != nil {
		// a body left behind in another region is retired there first
		if err = c.detachLocked(r); err != nil {
			return err
		}
	}

	if r != nil {
		err = r.Write(func(sim physics.Simulation) error {
			if previous != nil {
				if err := sim.RemoveBody(previous.handle); err != nil {
					return err
				}
				c.placement.registered.Store(nil)
			}
			return sim.AddBody(next.handle)
		})
		if err != nil {
			return err
		}
		c.placement.registered.Store(r)
	}

	c.body = next
	c.interp = nil
	c.logger.Debug("rigid body attached",
		log.String("shape", shape.Name()),
		log.Float64("mass", mass),
		log.Bool("simulated", r != nil),
		log.Bool("replaced", previous != nil),
	)
	if r != nil {
		c.publish(EventBodyAttached, c.bodyEvent(r))
	}
	return nil
}

// Shape returns the collision shape of the body.
func (c *Component) Shape() (physics.Shape, error) {
	return readBody(c, func(b physics.Body) physics.Shape { return b.Shape() })
}

func (c *Component) ApplyImpulse(impulse, offset mgl64.Vec3) error {
	return c.writeBody(func(b physics.Body, _ physics.Simulation) error {
		return b.ApplyImpulse(impulse, offset)
	})
}

func (c *Component) ApplyCentralImpulse(impulse mgl64.Vec3) error {
	return c.writeBody(func(b physics.Body, _ physics.Simulation) error {
		return b.ApplyCentralImpulse(impulse)
	})
}

func (c *Component) ApplyForce(force, offset mgl64.Vec3) error {
	return c.writeBody(func(b physics.Body, _ physics.Simulation) error {
		return b.ApplyForce(force, offset)
	})
}

func (c *Component) ApplyCentralForce(force mgl64.Vec3) error {
	return c.writeBody(func(b physics.Body, _ physics.Simulation) error {
		return b.ApplyCentralForce(force)
	})
}

func (c *Component) ApplyTorque(torque mgl64.Vec3) error {
	return c.writeBody(func(b physics.Body, _ physics.Simulation) error {
		return b.ApplyTorque(torque)
	})
}

func (c *Component) ApplyTorqueImpulse(torque mgl64.Vec3) error {
	return c.writeBody(func(b physics.Body, _ physics.Simulation) error {
		return b.ApplyTorqueImpulse(torque)
	})
}

// DampenMovement sets linear damping, keeping angular damping.
func (c *Component) DampenMovement(damp float64) error {
	return c.writeBody(func(b physics.Body, _ physics.Simulation) error {
		return b.SetDamping(damp, b.AngularDamping())
	})
}

// DampenRotation sets angular damping, keeping linear damping.
func (c *Component) DampenRotation(damp float64) error {
	return c.writeBody(func(b physics.Body, _ physics.Simulation) error {
		return b.SetDamping(b.LinearDamping(), damp)
	})
}

func (c *Component) Friction() (float64, error) {
	return readBody(c, func(b physics.Body) float64 { return b.Friction() })
}

func (c *Component) SetFriction(friction float64) error {
	return c.setCached(func(b physics.Body) error { return b.SetFriction(friction) })
}

func (c *Component) Restitution() (float64, error) {
	return readBody(c, func(b physics.Body) float64 { return b.Restitution() })
}

func (c *Component) SetRestitution(restitution float64) error {
	return c.setCached(func(b physics.Body) error { return b.SetRestitution(restitution) })
}

// Mass returns the body mass, 0 for static bodies.
func (c *Component) Mass() (float64, error) {
	return readBody(c, func(b physics.Body) float64 {
		if inv := b.InvMass(); inv != 0 {
			return 1 / inv
		}
		return 0
	})
}

func (c *Component) MovementVelocity() (mgl64.Vec3, error) {
	return readBody(c, func(b physics.Body) mgl64.Vec3 { return b.LinearVelocity() })
}

func (c *Component) SetMovementVelocity(velocity mgl64.Vec3) error {
	return c.writeBody(func(b physics.Body, _ physics.Simulation) error {
		return b.SetLinearVelocity(velocity)
	})
}

func (c *Component) RotationVelocity() (mgl64.Vec3, error) {
	return readBody(c, func(b physics.Body) mgl64.Vec3 { return b.AngularVelocity() })
}

func (c *Component) SetRotationVelocity(velocity mgl64.Vec3) error {
	return c.writeBody(func(b physics.Body, _ physics.Simulation) error {
		return b.SetAngularVelocity(velocity)
	})
}

// SetActivated wakes the body or takes it out of simulation.
func (c *Component) SetActivated(activate bool) error {
	state := physics.ActivationDisableSimulation
	if activate {
		state = physics.ActivationActive
	}
	return c.writeBody(func(b physics.Body, _ physics.Simulation) error {
		return b.SetActivationState(state)
	})
}

func (c *Component) ActivationState() (physics.ActivationState, error) {
	return readBody(c, func(b physics.Body) physics.ActivationState { return b.ActivationState() })
}

// IsActivated reports whether a body exists and is active.
func (c *Component) IsActivated() bool {
	state, err := c.ActivationState()
	return err == nil && state == physics.ActivationActive
}

// setCached applies set to an attribute the engine caches on add, then hot
// swaps the body. The hot swap event is published once the region lock is
// released.
func (c *Component) setCached(set func(b physics.Body) error) error {
	var swapped *region.Region
	err := c.writeBody(func(b physics.Body, sim physics.Simulation) error {
		if err := set(b); err != nil {
			return err
		}
		ok, err := c.hotSwap(b, sim)
		if ok {
			swapped = c.placement.current()
		}
		return err
	})
	if err != nil {
		return err
	}
	if swapped != nil {
		c.publish(EventBodyHotSwap, c.bodyEvent(swapped))
	}
	return nil
}

// hotSwap removes and re-adds the body so the engine recomputes the values
// it cached when the body was added. Runs inside the caller's write lock.
func (c *Component) hotSwap(b physics.Body, sim physics.Simulation) (bool, error) {
	if !sim.Contains(b) {
		return false, nil
	}
	if err := sim.RemoveBody(b); err != nil {
		return false, err
	}
	if err := sim.AddBody(b); err != nil {
		c.placement.registered.Store(nil)
		return false, err
	}
	return true, nil
}

// syncBodyPose teleports a bound body to the live pose. A body that is not
// simulated by any region is touched by no other goroutine and is updated
// without a lock.
func (c *Component) syncBodyPose() error {
	if c.body == nil {
		return nil
	}
	if c.placement.current() == nil {
		return c.forcePoseUpdate(c.body.handle)
	}
	return c.writeBody(func(b physics.Body, _ physics.Simulation) error {
		return c.forcePoseUpdate(b)
	})
}

// forcePoseUpdate overwrites the body pose from live and clears accumulated
// forces so the next step does not fight the teleport.
func (c *Component) forcePoseUpdate(b physics.Body) error {
	position, rotation := c.livePose()
	c.body.scratch = physics.PoseMatrix(position, rotation)
	if err := b.SetWorldTransform(c.body.scratch); err != nil {
		return err
	}
	return b.ClearForces()
}

func (c *Component) validate() (*region.Region, error) {
	if c.body == nil {
		return nil, errors.WithStack(ErrNoBody)
	}
	r := c.placement.current()
	if r == nil {
		return nil, errors.WithStack(ErrNoRegion)
	}
	return r, nil
}

// writeBody validates preconditions before taking any lock, then runs fn
// under the region's write lock.
func (c *Component) writeBody(fn func(b physics.Body, sim physics.Simulation) error) error {
	r, err := c.validate()
	if err != nil {
		return err
	}
	handle := c.body.handle
	return r.Write(func(sim physics.Simulation) error {
		return fn(handle, sim)
	})
}

// readBody runs fn under the region's read lock.
func readBody[T any](c *Component, fn func(b physics.Body) T) (T, error) {
	var out T
	r, err := c.validate()
	if err != nil {
		return out, err
	}
	handle := c.body.handle
	err = r.Read(func(physics.Simulation) error {
		out = fn(handle)
		return nil
	})
	return out, err
}
