package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/spatial/internal/core/systems/physics"
)

// flipThreshold is the squared component distance above which the target
// rotation is negated so render takes the short way round.
const flipThreshold = 2.0

// interpolation is the software-only blend target of an unbound entity.
type interpolation struct {
	position mgl64.Vec3
	world    physics.World
	rotation mgl64.Quat
	scale    mgl64.Vec3
	// flipped is set when the stored rotation is the negated snapshot rotation.
	flipped bool
}

func (i *interpolation) retarget(snapshot, render physics.Transform) {
	i.position = snapshot.Position().Vec
	i.world = snapshot.World()
	i.scale = snapshot.Scale()

	target := snapshot.Rotation()
	i.flipped = physics.QuatDistanceSq(target, render.Rotation()) > flipThreshold
	if i.flipped {
		target = physics.NegateQuat(target)
	}
	i.rotation = target
}

// blend moves render toward the target by dt, clamped to [0, 1].
func (i *interpolation) blend(render *physics.Transform, dt float64) {
	switch {
	case dt <= 0:
		return
	case dt > 1:
		dt = 1
	}
	render.SetPosition(physics.Point{
		Vec:   physics.Lerp3(render.Position().Vec, i.position, dt),
		World: i.world,
	})
	render.SetRotation(physics.LerpQuat(render.Rotation(), i.rotation, dt))
	render.SetScale(physics.Lerp3(render.Scale(), i.scale, dt))
}
