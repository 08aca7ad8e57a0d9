package headless

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/spatial/internal/core/systems/physics"
)

var _ physics.Simulation = (*Simulation)(nil)

// Simulation keeps bodies in insertion order so stepping is deterministic.
type Simulation struct {
	engine *Engine

	// stepMu is the engine-internal step lock held while motion states are called back.
	stepMu sync.Mutex
	bodies []*Body
	index  map[*Body]int
	steps  uint64
}

func (s *Simulation) AddBody(body physics.Body) error {
	b, err := s.own(body)
	if err != nil {
		return err
	}
	if err = s.engine.hook(OpAddBody, b.id); err != nil {
		return err
	}
	if _, ok := s.index[b]; ok {
		return fmt.Errorf("headless: body %d already in simulation", b.id)
	}
	b.cachedFriction = b.friction
	b.cachedRestitution = b.restitution
	s.index[b] = len(s.bodies)
	s.bodies = append(s.bodies, b)
	return nil
}

func (s *Simulation) RemoveBody(body physics.Body) error {
	b, err := s.own(body)
	if err != nil {
		return err
	}
	if err = s.engine.hook(OpRemoveBody, b.id); err != nil {
		return err
	}
	i, ok := s.index[b]
	if !ok {
		return nil
	}
	last := len(s.bodies) - 1
	copy(s.bodies[i:], s.bodies[i+1:])
	s.bodies[last] = nil
	s.bodies = s.bodies[:last]
	delete(s.index, b)
	for j := i; j < len(s.bodies); j++ {
		s.index[s.bodies[j]] = j
	}
	return nil
}

func (s *Simulation) Contains(body physics.Body) bool {
	b, ok := body.(*Body)
	if !ok {
		return false
	}
	_, ok = s.index[b]
	return ok
}

func (s *Simulation) Bodies() int { return len(s.bodies) }

// Steps returns how many steps ran.
func (s *Simulation) Steps() uint64 { return s.steps }

// Step integrates every simulated dynamic body with semi-implicit Euler and
// reports new poses through the bodies' motion states.
func (s *Simulation) Step(dt float64) error {
	if err := s.engine.hook(OpStep, 0); err != nil {
		return err
	}
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	gravity := s.engine.gravity
	for _, b := range s.bodies {
		if b.invMass == 0 || !b.activation.Simulated() {
			continue
		}
		acc := b.totalForce.Mul(b.invMass).Add(gravity)
		b.linearVelocity = b.linearVelocity.Add(acc.Mul(dt)).Mul(math.Pow(1-b.linearDamping, dt))
		b.angularVelocity = b.angularVelocity.Add(physics.MulComponents(b.invInertia, b.totalTorque).Mul(dt)).
			Mul(math.Pow(1-b.angularDamping, dt))

		position, rotation := physics.DecomposePose(b.pose)
		position = position.Add(b.linearVelocity.Mul(dt))
		spin := mgl64.Quat{V: b.angularVelocity}.Mul(rotation).Scale(0.5 * dt)
		rotation = rotation.Add(spin).Normalize()

		b.pose = physics.PoseMatrix(position, rotation)
		b.totalForce = mgl64.Vec3{}
		b.totalTorque = mgl64.Vec3{}

		if b.motion != nil {
			b.motion.SetWorldTransform(b.pose)
		}
	}
	s.steps++
	return nil
}

func (s *Simulation) own(body physics.Body) (*Body, error) {
	b, ok := body.(*Body)
	if !ok || b.engine != s.engine {
		return nil, fmt.Errorf("headless: foreign body %T", body)
	}
	return b, nil
}
