package physics

import "github.com/go-gl/mathgl/mgl64"

// BoxShape is an axis-aligned box around the body origin.
type BoxShape struct {
	HalfExtents mgl64.Vec3
}

func (BoxShape) Name() string { return "box" }

// LocalInertia of a solid box.
func (b BoxShape) LocalInertia(mass float64) mgl64.Vec3 {
	lx, ly, lz := 2*b.HalfExtents[0], 2*b.HalfExtents[1], 2*b.HalfExtents[2]
	return mgl64.Vec3{
		mass / 12 * (ly*ly + lz*lz),
		mass / 12 * (lx*lx + lz*lz),
		mass / 12 * (lx*lx + ly*ly),
	}
}

// SphereShape is a sphere around the body origin.
type SphereShape struct {
	Radius float64
}

func (SphereShape) Name() string { return "sphere" }

// LocalInertia of a solid sphere.
func (s SphereShape) LocalInertia(mass float64) mgl64.Vec3 {
	i := 0.4 * mass * s.Radius * s.Radius
	return mgl64.Vec3{i, i, i}
}
