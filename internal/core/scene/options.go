package scene

import (
	"github.com/zeusync/spatial/internal/core/events/bus"
	"github.com/zeusync/spatial/internal/core/observability/log"
	"github.com/zeusync/spatial/internal/core/systems/physics"
)

const (
	// DefaultLogicRate and DefaultRenderRate give the 4x blend ratio used by
	// InterpolateRender.
	DefaultLogicRate  = 80.0
	DefaultRenderRate = 20.0
)

// Config holds per-component collaborators.
type Config struct {
	Engine     physics.Engine
	LogicRate  float64
	RenderRate float64
	Logger     log.Log
	Events     bus.EventBus
}

// Option mutates a Config.
type Option func(c *Config)

func WithEngine(e physics.Engine) Option { return func(c *Config) { c.Engine = e } }

func WithLogger(l log.Log) Option { return func(c *Config) { c.Logger = l } }

func WithEvents(b bus.EventBus) Option { return func(c *Config) { c.Events = b } }

// WithRates sets the logic and render rates whose ratio scales the blend factor.
func WithRates(logic, render float64) Option {
	return func(c *Config) {
		c.LogicRate = logic
		c.RenderRate = render
	}
}

func defaultConfig() Config {
	return Config{
		LogicRate:  DefaultLogicRate,
		RenderRate: DefaultRenderRate,
	}
}

func (c Config) blendRatio() float64 {
	if c.LogicRate <= 0 || c.RenderRate <= 0 {
		return DefaultLogicRate / DefaultRenderRate
	}
	return c.LogicRate / c.RenderRate
}
