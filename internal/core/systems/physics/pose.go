package physics

import "github.com/go-gl/mathgl/mgl64"

// PoseMatrix encodes a rigid pose (no scale) as the engine's 4x4 working matrix.
// The rotation is normalized first.
func PoseMatrix(position mgl64.Vec3, rotation mgl64.Quat) mgl64.Mat4 {
	m := rotation.Normalize().Mat4()
	m.SetCol(3, position.Vec4(1))
	return m
}

// DecomposePose is the inverse of PoseMatrix.
func DecomposePose(m mgl64.Mat4) (mgl64.Vec3, mgl64.Quat) {
	return m.Col(3).Vec3(), mgl64.Mat4ToQuat(m).Normalize()
}
