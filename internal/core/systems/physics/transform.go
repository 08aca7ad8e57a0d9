package physics

import "github.com/go-gl/mathgl/mgl64"

// Transform bundles position, rotation and scale.
// It is a value type: assignment copies it and no method aliases internal
// state. Mutating methods work in place on the receiver.
type Transform struct {
	position Point
	rotation mgl64.Quat
	scale    mgl64.Vec3
}

// NewTransform builds a transform from its parts.
func NewTransform(position Point, rotation mgl64.Quat, scale mgl64.Vec3) Transform {
	return Transform{position: position, rotation: rotation, scale: scale}
}

// IdentityTransform is the origin of w with no rotation and unit scale.
func IdentityTransform(w World) Transform {
	return Transform{
		position: Point{World: w},
		rotation: mgl64.QuatIdent(),
		scale:    mgl64.Vec3{1, 1, 1},
	}
}

func (t Transform) Position() Point      { return t.position }
func (t Transform) Rotation() mgl64.Quat { return t.rotation }
func (t Transform) Scale() mgl64.Vec3    { return t.scale }
func (t Transform) World() World         { return t.position.World }

func (t *Transform) SetPosition(p Point) *Transform {
	t.position = p
	return t
}

func (t *Transform) SetRotation(q mgl64.Quat) *Transform {
	t.rotation = q
	return t
}

func (t *Transform) SetScale(s mgl64.Vec3) *Transform {
	t.scale = s
	return t
}

// Set overwrites every field of t with o.
func (t *Transform) Set(o Transform) *Transform {
	*t = o
	return t
}

// Translate moves the position by v.
func (t *Transform) Translate(v mgl64.Vec3) *Transform {
	t.position = t.position.Add(v)
	return t
}

// Rotate applies q after the current rotation.
func (t *Transform) Rotate(q mgl64.Quat) *Transform {
	t.rotation = q.Mul(t.rotation)
	return t
}

// ScaleBy multiplies the scale component-wise by v.
func (t *Transform) ScaleBy(v mgl64.Vec3) *Transform {
	t.scale = MulComponents(t.scale, v)
	return t
}

// Copy returns an independent copy.
func (t Transform) Copy() Transform { return t }

// Equals compares all fields exactly.
func (t Transform) Equals(o Transform) bool {
	return t.position.Equals(o.position) && t.rotation == o.rotation && t.scale == o.scale
}
