package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/spatial/internal/core/systems/physics"
)

func newUnbound(t *testing.T) (*Component, physics.World) {
	t.Helper()
	w := physics.NewWorld("test")
	return New(1, physics.IdentityTransform(w)), w
}

func TestComponent_SingleSourceOfTruth(t *testing.T) {
	c, w := newUnbound(t)

	c.Translate(mgl64.Vec3{1, 2, 3}).
		Translate(mgl64.Vec3{1, 0, 0}).
		Rotate(mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{0, 1, 0})).
		ScaleBy(mgl64.Vec3{2, 2, 2})
	c.CopySnapshot()

	want := physics.IdentityTransform(w)
	want.Translate(mgl64.Vec3{2, 2, 3}).
		Rotate(mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{0, 1, 0})).
		ScaleBy(mgl64.Vec3{2, 2, 2})

	require.True(t, c.Transform().Equals(want))
	require.Equal(t, mgl64.Vec3{2, 2, 3}, c.Position().Vec)
	require.Equal(t, mgl64.Vec3{2, 2, 2}, c.Scale())
	require.Equal(t, w, c.World())
}

func TestComponent_BoundedStaleness(t *testing.T) {
	c, _ := newUnbound(t)

	c.Translate(mgl64.Vec3{5, 0, 0})
	require.Equal(t, mgl64.Vec3{}, c.Position().Vec, "live mutation visible before commit")

	c.CopySnapshot()
	require.Equal(t, mgl64.Vec3{5, 0, 0}, c.Position().Vec)

	c.Translate(mgl64.Vec3{5, 0, 0})
	require.Equal(t, mgl64.Vec3{5, 0, 0}, c.Position().Vec)
	require.Equal(t, mgl64.Vec3{10, 0, 0}, c.LiveTransform().Position().Vec)
}

func TestComponent_DirtyFlags(t *testing.T) {
	c, w := newUnbound(t)
	require.False(t, c.IsTransformDirty())

	c.Translate(mgl64.Vec3{1, 0, 0})
	require.True(t, c.IsTransformDirty())
	require.True(t, c.IsPositionDirty())
	require.False(t, c.IsRotationDirty())
	require.False(t, c.IsScaleDirty())
	require.False(t, c.IsWorldDirty())

	c.Translate(mgl64.Vec3{-1, 0, 0})
	require.False(t, c.IsTransformDirty(), "live equals snapshot again")

	c.SetScale(mgl64.Vec3{3, 3, 3})
	require.True(t, c.IsScaleDirty())
	c.CopySnapshot()
	require.False(t, c.IsTransformDirty())

	c.Rotate(mgl64.QuatRotate(1, mgl64.Vec3{0, 0, 1}))
	require.True(t, c.IsRotationDirty())

	other := physics.NewWorld("other")
	require.NoError(t, c.SetPosition(physics.NewPoint(other, 0, 0, 0)))
	require.True(t, c.IsWorldDirty())
	require.True(t, c.IsPositionDirty())
	c.CopySnapshot()
	require.False(t, c.IsWorldDirty())
	require.NotEqual(t, w, c.World())
}

func TestComponent_QuaternionContinuity(t *testing.T) {
	c, _ := newUnbound(t)

	// antipodal identity
	require.NoError(t, c.SetRotation(mgl64.Quat{W: -1}))
	c.CopySnapshot()

	require.NotNil(t, c.interp)
	require.True(t, c.interp.flipped)
	require.Equal(t, mgl64.Quat{W: 1, V: mgl64.Vec3{0, 0, 0}}, c.interp.rotation)

	c.InterpolateRender(0.0625)
	require.Equal(t, mgl64.QuatIdent(), c.RenderTransform().Rotation(), "render must not spin the long way")
}

func TestComponent_QuaternionNearNegationFlips(t *testing.T) {
	c, _ := newUnbound(t)
	r2 := mgl64.Quat{W: -0.99, V: mgl64.Vec3{0.1, 0, 0}}.Normalize()

	require.NoError(t, c.SetRotation(r2))
	c.CopySnapshot()

	require.True(t, c.interp.flipped)
	require.Equal(t, physics.NegateQuat(r2), c.interp.rotation)
	// snapshot keeps the committed value
	require.Equal(t, r2, c.Rotation())
}

func TestComponent_QuaternionCloseRotationKeepsSign(t *testing.T) {
	c, _ := newUnbound(t)
	q := mgl64.QuatRotate(0.3, mgl64.Vec3{0, 1, 0})

	require.NoError(t, c.SetRotation(q))
	c.CopySnapshot()

	require.False(t, c.interp.flipped)
	require.Equal(t, q, c.interp.rotation)
}

func TestComponent_EndToEndInterpolation(t *testing.T) {
	c, _ := newUnbound(t)

	c.Translate(mgl64.Vec3{10, 0, 0})
	c.CopySnapshot()
	require.Equal(t, mgl64.Vec3{10, 0, 0}, c.Position().Vec)

	// 0.0625 s at the 80:20 cadence ratio gives a blend factor of 0.25
	c.InterpolateRender(0.0625)
	require.InDelta(t, 2.5, c.RenderTransform().Position().X(), 1e-9)

	c.InterpolateRender(0.0625)
	require.InDelta(t, 4.375, c.RenderTransform().Position().X(), 1e-9)
}

func TestComponent_InterpolationClampsBlendFactor(t *testing.T) {
	c, _ := newUnbound(t)
	c.Translate(mgl64.Vec3{10, 0, 0})
	c.CopySnapshot()

	c.InterpolateRender(10)
	require.Equal(t, mgl64.Vec3{10, 0, 0}, c.RenderTransform().Position().Vec)

	c.InterpolateRender(-1)
	require.Equal(t, mgl64.Vec3{10, 0, 0}, c.RenderTransform().Position().Vec)
}

func TestComponent_InterpolationBeforeFirstCommitIsNoop(t *testing.T) {
	c, _ := newUnbound(t)
	c.Translate(mgl64.Vec3{10, 0, 0})
	c.InterpolateRender(0.1)
	require.Equal(t, mgl64.Vec3{}, c.RenderTransform().Position().Vec)
}

func TestComponent_CustomRates(t *testing.T) {
	w := physics.NewWorld("rates")
	c := New(7, physics.IdentityTransform(w), WithRates(60, 60))
	c.Translate(mgl64.Vec3{0, 8, 0})
	c.CopySnapshot()

	c.InterpolateRender(0.5)
	require.InDelta(t, 4, c.RenderTransform().Position().Y(), 1e-9)
}

func TestComponent_RenderBlendsScale(t *testing.T) {
	c, _ := newUnbound(t)
	c.SetScale(mgl64.Vec3{3, 3, 3})
	c.CopySnapshot()

	c.InterpolateRender(0.0625)
	scale := c.RenderTransform().Scale()
	require.InDeltaSlice(t, []float64{1.5, 1.5, 1.5}, scale[:], 1e-9)
}

func TestComponent_ExposedTransformsAreCopies(t *testing.T) {
	c, _ := newUnbound(t)
	tr := c.Transform()
	tr.Translate(mgl64.Vec3{100, 0, 0})
	live := c.LiveTransform()
	live.Translate(mgl64.Vec3{100, 0, 0})

	require.Equal(t, mgl64.Vec3{}, c.Position().Vec)
	require.False(t, c.IsTransformDirty())
}
