package models

import "sync/atomic"

// EntityID identifies an entity inside one world.
type EntityID uint64

// IDGenerator hands out increasing entity ids starting at 1.
// Zero is never returned and can be used as "no entity".
type IDGenerator struct {
	last atomic.Uint64
}

// Next returns a fresh id. Safe for concurrent use.
func (g *IDGenerator) Next() EntityID {
	return EntityID(g.last.Add(1))
}
