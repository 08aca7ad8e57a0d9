package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/spatial/internal/core/systems/physics"
)

// poseSink is the narrow view a motion state has of its owner. It lets
// physics write position and rotation without holding a live alias.
type poseSink interface {
	livePose() (mgl64.Vec3, mgl64.Quat)
	applyPhysicsPose(position mgl64.Vec3, rotation mgl64.Quat)
}

var _ physics.MotionState = (*motionState)(nil)

// motionState is invoked by the engine during its step, while the engine
// holds its own step lock. It takes no core lock.
type motionState struct {
	owner   poseSink
	scratch *mgl64.Mat4
}

func (m *motionState) WorldTransform() mgl64.Mat4 {
	position, rotation := m.owner.livePose()
	*m.scratch = physics.PoseMatrix(position, rotation)
	return *m.scratch
}

func (m *motionState) SetWorldTransform(pose mgl64.Mat4) {
	position, rotation := physics.DecomposePose(pose)
	m.owner.applyPhysicsPose(position, rotation)
}
