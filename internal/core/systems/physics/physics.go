package physics

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// World identifies the partition context a position lives in.
// The zero value means "no world".
type World struct {
	ID   uuid.UUID
	Name string
}

// NewWorld creates a world reference with a fresh id.
func NewWorld(name string) World {
	return World{ID: uuid.New(), Name: name}
}

// IsZero reports whether w references no world.
func (w World) IsZero() bool { return w.ID == uuid.Nil }

// Point is a position inside a world.
type Point struct {
	Vec   mgl64.Vec3
	World World
}

// NewPoint builds a point from components.
func NewPoint(w World, x, y, z float64) Point {
	return Point{Vec: mgl64.Vec3{x, y, z}, World: w}
}

func (p Point) X() float64 { return p.Vec[0] }
func (p Point) Y() float64 { return p.Vec[1] }
func (p Point) Z() float64 { return p.Vec[2] }

// Add returns p moved by v, keeping the world.
func (p Point) Add(v mgl64.Vec3) Point {
	return Point{Vec: p.Vec.Add(v), World: p.World}
}

// Equals compares coordinates and world.
func (p Point) Equals(o Point) bool {
	return p.Vec == o.Vec && p.World == o.World
}

// MulComponents multiplies two vectors component-wise.
func MulComponents(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// Lerp3 blends a toward b by t component-wise.
func Lerp3(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Mul(1 - t).Add(b.Mul(t))
}

// LerpQuat blends quaternion components linearly. The result is not normalized.
func LerpQuat(a, b mgl64.Quat, t float64) mgl64.Quat {
	return mgl64.Quat{
		W: a.W*(1-t) + b.W*t,
		V: Lerp3(a.V, b.V, t),
	}
}

// QuatDistanceSq returns the squared component distance of two quaternions.
func QuatDistanceSq(a, b mgl64.Quat) float64 {
	d := a.Sub(b)
	return d.W*d.W + d.V.Dot(d.V)
}

// NegateQuat flips the sign of every component. -q describes the same orientation as q.
func NegateQuat(q mgl64.Quat) mgl64.Quat {
	return mgl64.Quat{W: -q.W, V: q.V.Mul(-1)}
}
