package physics

import "github.com/go-gl/mathgl/mgl64"

// Capability boundary to an external rigid-body engine.
// The scene core never touches solver internals; everything it needs
// from a backend is expressed by the interfaces below.

// Shape describes a collision shape known to the engine.
type Shape interface {
	Name() string
	// LocalInertia returns the diagonal inertia tensor for the given mass.
	LocalInertia(mass float64) mgl64.Vec3
}

// MotionState is the callback pair an engine uses to synchronise a body's
// pose with its owner. The engine calls it from its own step while holding
// its internal step lock.
type MotionState interface {
	WorldTransform() mgl64.Mat4
	SetWorldTransform(pose mgl64.Mat4)
}

// BodyInfo is the construction blueprint of a rigid body.
type BodyInfo struct {
	Mass         float64
	Shape        Shape
	LocalInertia mgl64.Vec3
	StartPose    mgl64.Mat4
	MotionState  MotionState
}

// Body is a handle to a rigid body owned by the engine.
// Mutators return engine errors unchanged.
type Body interface {
	ApplyImpulse(impulse, offset mgl64.Vec3) error
	ApplyCentralImpulse(impulse mgl64.Vec3) error
	ApplyForce(force, offset mgl64.Vec3) error
	ApplyCentralForce(force mgl64.Vec3) error
	ApplyTorque(torque mgl64.Vec3) error
	ApplyTorqueImpulse(torque mgl64.Vec3) error

	Friction() float64
	SetFriction(friction float64) error
	Restitution() float64
	SetRestitution(restitution float64) error
	InvMass() float64

	LinearVelocity() mgl64.Vec3
	SetLinearVelocity(velocity mgl64.Vec3) error
	AngularVelocity() mgl64.Vec3
	SetAngularVelocity(velocity mgl64.Vec3) error

	LinearDamping() float64
	AngularDamping() float64
	SetDamping(linear, angular float64) error

	WorldTransform() mgl64.Mat4
	SetWorldTransform(pose mgl64.Mat4) error
	ClearForces() error

	Activate() error
	ActivationState() ActivationState
	SetActivationState(state ActivationState) error

	Shape() Shape
}

// Simulation is one physics world instance. A region owns exactly one.
// Implementations are not required to be safe for concurrent use; callers
// serialise access through the owning region's lock.
type Simulation interface {
	AddBody(body Body) error
	// RemoveBody is a no-op for bodies that are not registered.
	RemoveBody(body Body) error
	Contains(body Body) bool
	Bodies() int
	Step(dt float64) error
}

// Engine creates bodies and simulations for one backend.
type Engine interface {
	Name() string
	CreateBody(info BodyInfo) (Body, error)
	NewSimulation() Simulation
}
