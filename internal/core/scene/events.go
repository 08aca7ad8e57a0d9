package scene

import (
	"github.com/google/uuid"

	"github.com/zeusync/spatial/internal/core/events/bus"
	"github.com/zeusync/spatial/internal/core/models"
	"github.com/zeusync/spatial/internal/core/observability/log"
)

// Event types published by components.
const (
	EventBodyAttached  = "scene.body.attached"
	EventBodyDetached  = "scene.body.detached"
	EventRegionChanged = "scene.region.changed"
	EventBodyHotSwap   = "scene.body.hotswap"
)

// BodyEvent is the payload of body attach/detach/hot-swap events.
type BodyEvent struct {
	Entity models.EntityID
	Region uuid.UUID
	Shape  string
	Mass   float64
}

// RegionChange is the payload of EventRegionChanged. From or To is uuid.Nil
// when the entity had or gets no region.
type RegionChange struct {
	Entity  models.EntityID
	From    uuid.UUID
	To      uuid.UUID
	HasBody bool
}

func (c *Component) publish(typ string, data any) {
	if c.cfg.Events == nil {
		return
	}
	if err := c.cfg.Events.Publish(bus.NewEvent(typ, "scene", data)); err != nil {
		c.logger.Warn("scene event handler failed", log.String("event", typ), log.Error(err))
	}
}
