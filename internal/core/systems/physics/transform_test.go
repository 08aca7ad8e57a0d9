package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform_ValueSemantics(t *testing.T) {
	w := NewWorld("value")
	a := IdentityTransform(w)
	b := a
	b.Translate(mgl64.Vec3{1, 0, 0})

	require.Equal(t, mgl64.Vec3{}, a.Position().Vec)
	require.False(t, a.Equals(b))

	c := b.Copy()
	require.True(t, c.Equals(b))
}

func TestTransform_Composition(t *testing.T) {
	w := NewWorld("compose")
	tr := IdentityTransform(w)
	q := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})

	tr.Translate(mgl64.Vec3{1, 2, 3}).Rotate(q).ScaleBy(mgl64.Vec3{2, 3, 4})

	require.Equal(t, mgl64.Vec3{1, 2, 3}, tr.Position().Vec)
	require.Equal(t, w, tr.World())
	require.Equal(t, mgl64.Vec3{2, 3, 4}, tr.Scale())
	require.True(t, tr.Rotation().ApproxEqual(q))

	// a second rotation is applied after the first
	tr.Rotate(q)
	require.True(t, tr.Rotation().Rotate(mgl64.Vec3{1, 0, 0}).ApproxEqualThreshold(mgl64.Vec3{-1, 0, 0}, 1e-9))
}

func TestPoint(t *testing.T) {
	w := NewWorld("p")
	p := NewPoint(w, 1, 2, 3)
	assert.Equal(t, 1.0, p.X())
	assert.Equal(t, 2.0, p.Y())
	assert.Equal(t, 3.0, p.Z())
	assert.True(t, p.Add(mgl64.Vec3{1, 1, 1}).Equals(NewPoint(w, 2, 3, 4)))
	assert.False(t, p.Equals(NewPoint(NewWorld("q"), 1, 2, 3)))
	assert.True(t, World{}.IsZero())
	assert.False(t, w.IsZero())
}

func TestQuatHelpers(t *testing.T) {
	q := mgl64.QuatRotate(0.7, mgl64.Vec3{1, 0, 0})
	n := NegateQuat(q)

	assert.InDelta(t, 4, QuatDistanceSq(q, n), 1e-12)
	assert.InDelta(t, 0, QuatDistanceSq(q, q), 1e-12)
	assert.True(t, q.Rotate(mgl64.Vec3{0, 1, 0}).ApproxEqual(n.Rotate(mgl64.Vec3{0, 1, 0})))

	mid := LerpQuat(mgl64.QuatIdent(), q, 0.5)
	assert.InDelta(t, (1+q.W)/2, mid.W, 1e-12)
}

func TestPoseRoundTrip(t *testing.T) {
	pos := mgl64.Vec3{3, -2, 9}
	rot := mgl64.QuatRotate(1.2, mgl64.Vec3{0, 1, 1}.Normalize())

	gotPos, gotRot := DecomposePose(PoseMatrix(pos, rot))
	require.True(t, gotPos.ApproxEqual(pos))
	require.True(t, gotRot.ApproxEqualThreshold(rot, 1e-9) || gotRot.ApproxEqualThreshold(NegateQuat(rot), 1e-9))

	// unnormalized input is normalized
	_, r := DecomposePose(PoseMatrix(pos, rot.Scale(3)))
	require.InDelta(t, 1, r.Len(), 1e-9)
}

func TestShapes(t *testing.T) {
	sphere := SphereShape{Radius: 2}
	require.Equal(t, "sphere", sphere.Name())
	require.True(t, sphere.LocalInertia(5).ApproxEqual(mgl64.Vec3{8, 8, 8}))

	box := BoxShape{HalfExtents: mgl64.Vec3{1, 1, 1}}
	require.Equal(t, "box", box.Name())
	require.True(t, box.LocalInertia(12).ApproxEqual(mgl64.Vec3{8, 8, 8}))
}

func TestActivationState(t *testing.T) {
	require.True(t, ActivationActive.Simulated())
	require.True(t, ActivationDisableDeactivation.Simulated())
	require.False(t, ActivationIslandSleeping.Simulated())
	require.False(t, ActivationDisableSimulation.Simulated())
	require.Equal(t, "disable_simulation", ActivationDisableSimulation.String())
	require.Equal(t, "unknown", ActivationState(99).String())
}
