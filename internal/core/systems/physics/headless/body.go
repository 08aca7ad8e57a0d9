package headless

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/spatial/internal/core/systems/physics"
)

var _ physics.Body = (*Body)(nil)

// Body is a headless rigid body. It is not safe for concurrent mutation;
// access is serialised by the region that simulates it.
type Body struct {
	engine *Engine
	id     uint64
	shape  physics.Shape
	motion physics.MotionState

	pose            mgl64.Mat4
	linearVelocity  mgl64.Vec3
	angularVelocity mgl64.Vec3
	totalForce      mgl64.Vec3
	totalTorque     mgl64.Vec3

	mass       float64
	invMass    float64
	inertia    mgl64.Vec3
	invInertia mgl64.Vec3

	friction       float64
	restitution    float64
	linearDamping  float64
	angularDamping float64
	activation     physics.ActivationState

	// values cached when the body joins a simulation, as native engines do
	cachedFriction    float64
	cachedRestitution float64
}

// ID is the engine-local body id.
func (b *Body) ID() uint64 { return b.id }

func (b *Body) ApplyImpulse(impulse, offset mgl64.Vec3) error {
	if err := b.engine.hook(OpApplyImpulse, b.id); err != nil {
		return err
	}
	b.linearVelocity = b.linearVelocity.Add(impulse.Mul(b.invMass))
	b.angularVelocity = b.angularVelocity.Add(physics.MulComponents(b.invInertia, offset.Cross(impulse)))
	return nil
}

func (b *Body) ApplyCentralImpulse(impulse mgl64.Vec3) error {
	if err := b.engine.hook(OpApplyCentralImpulse, b.id); err != nil {
		return err
	}
	b.linearVelocity = b.linearVelocity.Add(impulse.Mul(b.invMass))
	return nil
}

func (b *Body) ApplyForce(force, offset mgl64.Vec3) error {
	if err := b.engine.hook(OpApplyForce, b.id); err != nil {
		return err
	}
	b.totalForce = b.totalForce.Add(force)
	b.totalTorque = b.totalTorque.Add(offset.Cross(force))
	return nil
}

func (b *Body) ApplyCentralForce(force mgl64.Vec3) error {
	if err := b.engine.hook(OpApplyCentralForce, b.id); err != nil {
		return err
	}
	b.totalForce = b.totalForce.Add(force)
	return nil
}

func (b *Body) ApplyTorque(torque mgl64.Vec3) error {
	if err := b.engine.hook(OpApplyTorque, b.id); err != nil {
		return err
	}
	b.totalTorque = b.totalTorque.Add(torque)
	return nil
}

func (b *Body) ApplyTorqueImpulse(torque mgl64.Vec3) error {
	if err := b.engine.hook(OpApplyTorqueImpulse, b.id); err != nil {
		return err
	}
	b.angularVelocity = b.angularVelocity.Add(physics.MulComponents(b.invInertia, torque))
	return nil
}

func (b *Body) Friction() float64 { return b.friction }

func (b *Body) SetFriction(friction float64) error {
	if err := b.engine.hook(OpSetFriction, b.id); err != nil {
		return err
	}
	b.friction = friction
	return nil
}

func (b *Body) Restitution() float64 { return b.restitution }

func (b *Body) SetRestitution(restitution float64) error {
	if err := b.engine.hook(OpSetRestitution, b.id); err != nil {
		return err
	}
	b.restitution = restitution
	return nil
}

// CachedFriction is the friction the simulation captured on the last add.
func (b *Body) CachedFriction() float64 { return b.cachedFriction }

// CachedRestitution is the restitution the simulation captured on the last add.
func (b *Body) CachedRestitution() float64 { return b.cachedRestitution }

func (b *Body) InvMass() float64 { return b.invMass }

func (b *Body) LinearVelocity() mgl64.Vec3 { return b.linearVelocity }

func (b *Body) SetLinearVelocity(velocity mgl64.Vec3) error {
	if err := b.engine.hook(OpSetLinearVelocity, b.id); err != nil {
		return err
	}
	b.linearVelocity = velocity
	return nil
}

func (b *Body) AngularVelocity() mgl64.Vec3 { return b.angularVelocity }

func (b *Body) SetAngularVelocity(velocity mgl64.Vec3) error {
	if err := b.engine.hook(OpSetAngularVelocity, b.id); err != nil {
		return err
	}
	b.angularVelocity = velocity
	return nil
}

func (b *Body) LinearDamping() float64  { return b.linearDamping }
func (b *Body) AngularDamping() float64 { return b.angularDamping }

func (b *Body) SetDamping(linear, angular float64) error {
	if err := b.engine.hook(OpSetDamping, b.id); err != nil {
		return err
	}
	b.linearDamping = clamp01(linear)
	b.angularDamping = clamp01(angular)
	return nil
}

func (b *Body) WorldTransform() mgl64.Mat4 { return b.pose }

func (b *Body) SetWorldTransform(pose mgl64.Mat4) error {
	if err := b.engine.hook(OpSetWorldTransform, b.id); err != nil {
		return err
	}
	b.pose = pose
	return nil
}

func (b *Body) ClearForces() error {
	if err := b.engine.hook(OpClearForces, b.id); err != nil {
		return err
	}
	b.totalForce = mgl64.Vec3{}
	b.totalTorque = mgl64.Vec3{}
	return nil
}

// TotalForce is the force accumulated since the last step or ClearForces.
func (b *Body) TotalForce() mgl64.Vec3 { return b.totalForce }

func (b *Body) Activate() error {
	if err := b.engine.hook(OpActivate, b.id); err != nil {
		return err
	}
	if b.activation != physics.ActivationDisableSimulation && b.activation != physics.ActivationDisableDeactivation {
		b.activation = physics.ActivationActive
	}
	return nil
}

func (b *Body) ActivationState() physics.ActivationState { return b.activation }

func (b *Body) SetActivationState(state physics.ActivationState) error {
	if err := b.engine.hook(OpSetActivationState, b.id); err != nil {
		return err
	}
	b.activation = state
	return nil
}

func (b *Body) Shape() physics.Shape { return b.shape }

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
