// Package config loads server configuration from TOML or YAML files.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format names a configuration file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

type Config struct {
	World   WorldConfig   `toml:"world" yaml:"world"`
	Tick    TickConfig    `toml:"tick" yaml:"tick"`
	Physics PhysicsConfig `toml:"physics" yaml:"physics"`
	Regions RegionsConfig `toml:"regions" yaml:"regions"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
	HTTP    HTTPConfig    `toml:"http" yaml:"http"`
}

type WorldConfig struct {
	Name string `toml:"name" yaml:"name"`
}

type TickConfig struct {
	LogicRate  float64 `toml:"logic_rate" yaml:"logic_rate"`   // Hz
	RenderRate float64 `toml:"render_rate" yaml:"render_rate"` // Hz
	Workers    int     `toml:"workers" yaml:"workers"`
	BatchSize  int     `toml:"batch_size" yaml:"batch_size"`
}

// LogicInterval is the wall time between two ticks.
func (t TickConfig) LogicInterval() time.Duration {
	return time.Duration(float64(time.Second) / t.LogicRate)
}

// RenderInterval is the wall time between two render passes.
func (t TickConfig) RenderInterval() time.Duration {
	return time.Duration(float64(time.Second) / t.RenderRate)
}

type PhysicsConfig struct {
	Engine  string     `toml:"engine" yaml:"engine"` // only "headless" is built in
	Gravity [3]float64 `toml:"gravity" yaml:"gravity"`
}

type RegionsConfig struct {
	CellSize    float64 `toml:"cell_size" yaml:"cell_size"`
	Shards      int     `toml:"shards" yaml:"shards"`
	Parallelism int     `toml:"parallelism" yaml:"parallelism"`
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "json" or "console"
}

type HTTPConfig struct {
	Enabled         bool          `toml:"enabled" yaml:"enabled"`
	Address         string        `toml:"address" yaml:"address"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Load reads path, picking the syntax from its extension.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// FormatOf maps a file extension to its Format.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", errors.Errorf("unsupported config extension %q", filepath.Ext(path))
	}
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := Defaults()
	switch format {
	case FormatTOML:
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
			return nil, errors.Wrap(err, "parse toml")
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrap(err, "parse yaml")
		}
	default:
		return nil, errors.Errorf("unknown config format %q", format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Defaults() *Config {
	return &Config{
		World: WorldConfig{Name: "default"},
		Tick: TickConfig{
			LogicRate:  80,
			RenderRate: 20,
			BatchSize:  64,
		},
		Physics: PhysicsConfig{
			Engine:  "headless",
			Gravity: [3]float64{0, -9.81, 0},
		},
		Regions: RegionsConfig{
			CellSize: 64,
			Shards:   16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{
			Enabled:         true,
			Address:         "127.0.0.1:9090",
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Validate rejects values the simulation cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.World.Name == "":
		return errors.New("world.name must not be empty")
	case c.Tick.LogicRate <= 0:
		return errors.Errorf("tick.logic_rate must be positive, got %v", c.Tick.LogicRate)
	case c.Tick.RenderRate <= 0:
		return errors.Errorf("tick.render_rate must be positive, got %v", c.Tick.RenderRate)
	case c.Tick.Workers < 0:
		return errors.Errorf("tick.workers must not be negative, got %d", c.Tick.Workers)
	case c.Regions.CellSize <= 0:
		return errors.Errorf("regions.cell_size must be positive, got %v", c.Regions.CellSize)
	case c.Physics.Engine != "headless":
		return errors.Errorf("unknown physics engine %q", c.Physics.Engine)
	case c.HTTP.Enabled && c.HTTP.Address == "":
		return errors.New("http.address must be set when http is enabled")
	}
	return nil
}
