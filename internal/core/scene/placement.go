package scene

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zeusync/spatial/internal/core/observability/log"
	"github.com/zeusync/spatial/internal/core/region"
	"github.com/zeusync/spatial/internal/core/systems/physics"
)

// MigrationPhase is the registration state of an entity's body.
type MigrationPhase uint32

const (
	PhaseDetached MigrationPhase = iota
	PhaseAttaching
	PhaseAttached
	PhaseDetaching
)

func (p MigrationPhase) String() string {
	switch p {
	case PhaseAttaching:
		return "attaching"
	case PhaseAttached:
		return "attached"
	case PhaseDetaching:
		return "detaching"
	default:
		return "detached"
	}
}

// placement tracks which region an entity is assigned to and which region's
// simulation currently holds its body. A body moves DETACHING(old) then
// ATTACHING(new), each step under its own region lock only.
type placement struct {
	assigned   atomic.Pointer[region.Region]
	registered atomic.Pointer[region.Region]
	phase      atomic.Uint32
}

func (p *placement) current() *region.Region { return p.assigned.Load() }

func (p *placement) Phase() MigrationPhase { return MigrationPhase(p.phase.Load()) }

// begin moves a settled placement into a transitional phase. A body is
// never in two transitions at once.
func (p *placement) begin(to MigrationPhase) error {
	for {
		cur := p.phase.Load()
		if cur == uint32(PhaseAttaching) || cur == uint32(PhaseDetaching) {
			return errors.WithStack(ErrMigrationInProgress)
		}
		if p.phase.CompareAndSwap(cur, uint32(to)) {
			return nil
		}
	}
}

func (p *placement) settle() {
	if p.registered.Load() != nil {
		p.phase.Store(uint32(PhaseAttached))
	} else {
		p.phase.Store(uint32(PhaseDetached))
	}
}

// MigrationPhase reports the registration state of the entity's body.
func (c *Component) MigrationPhase() MigrationPhase { return c.placement.Phase() }

// Simulate assigns the entity to r (nil unassigns). When a body exists and
// is not yet registered with r, it is first removed from the region that
// holds it, then added to r. The two steps take the two region locks one
// after the other, never together.
func (c *Component) Simulate(r *region.Region) error {
	if c.body == nil {
		previous := c.placement.assigned.Swap(r)
		if previous != r {
			c.publish(EventRegionChanged, RegionChange{Entity: c.id, From: regionID(previous), To: regionID(r)})
		}
		return nil
	}

	if err := c.placement.begin(PhaseDetaching); err != nil {
		return err
	}
	defer c.placement.settle()

	previous := c.placement.assigned.Swap(r)
	if previous == r && c.placement.registered.Load() == r {
		return nil
	}

	if err := c.detachLocked(r); err != nil {
		return err
	}

	c.placement.phase.Store(uint32(PhaseAttaching))
	if r != nil {
		err := r.Write(func(sim physics.Simulation) error {
			if sim.Contains(c.body.handle) {
				return nil
			}
			return sim.AddBody(c.body.handle)
		})
		if err != nil {
			return err
		}
		c.placement.registered.Store(r)
		c.publish(EventBodyAttached, c.bodyEvent(r))
	}

	c.logger.Debug("entity migrated",
		log.String("from", regionID(previous).String()),
		log.String("to", regionID(r).String()),
	)
	c.publish(EventRegionChanged, RegionChange{Entity: c.id, From: regionID(previous), To: regionID(r), HasBody: true})
	return nil
}

// Detach removes the body from the simulation that holds it, leaving the
// region assignment untouched. The old owner calls it before handing the
// entity to a new region; a later Simulate then only has to attach.
func (c *Component) Detach() error {
	if c.body == nil {
		return nil
	}
	if err := c.placement.begin(PhaseDetaching); err != nil {
		return err
	}
	defer c.placement.settle()
	return c.detachLocked(nil)
}

// detachLocked runs the DETACHING step unless the body already sits in keep.
// The caller owns the transitional phase.
func (c *Component) detachLocked(keep *region.Region) error {
	old := c.placement.registered.Load()
	if old == nil || old == keep {
		return nil
	}
	if err := old.Remove(c.body.handle); err != nil {
		return err
	}
	c.placement.registered.Store(nil)
	c.publish(EventBodyDetached, c.bodyEvent(old))
	return nil
}

func (c *Component) bodyEvent(r *region.Region) BodyEvent {
	ev := BodyEvent{Entity: c.id, Region: regionID(r)}
	if c.body != nil {
		ev.Shape = c.body.shape.Name()
		ev.Mass = c.body.mass
	}
	return ev
}

func regionID(r *region.Region) uuid.UUID {
	if r == nil {
		return uuid.Nil
	}
	return r.ID()
}
