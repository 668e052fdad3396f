package voxelrender

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// WindowConfig describes the demo window surface.
type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// Config carries the tunables of the streaming core. Zero values are
// filled in by applyDefaults so a partial yaml file is fine.
type Config struct {
	TicksPerSecond  uint64       `yaml:"ticks_per_second"`
	RenderRadius    uint32       `yaml:"render_radius"`
	TicketTTL       uint32       `yaml:"ticket_ttl"`
	UploadBudget    int          `yaml:"upload_budget"`
	EvictAfterTicks uint64       `yaml:"evict_after_ticks"`
	AsyncGeneration bool         `yaml:"async_generation"`
	Window          WindowConfig `yaml:"window"`
	Debug           bool         `yaml:"debug"`
}

func DefaultConfig() Config {
	return Config{
		TicksPerSecond:  20,
		RenderRadius:    3,
		TicketTTL:       40,
		UploadBudget:    7,
		EvictAfterTicks: 120,
		AsyncGeneration: false,
		Window: WindowConfig{
			Width:  1280,
			Height: 720,
			Title:  "voxel-render",
		},
		Debug: false,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.TicksPerSecond == 0 {
		c.TicksPerSecond = def.TicksPerSecond
	}
	if c.RenderRadius == 0 {
		c.RenderRadius = def.RenderRadius
	}
	if c.TicketTTL == 0 {
		c.TicketTTL = def.TicketTTL
	}
	if c.UploadBudget == 0 {
		c.UploadBudget = def.UploadBudget
	}
	if c.EvictAfterTicks == 0 {
		c.EvictAfterTicks = def.EvictAfterTicks
	}
	if c.Window.Width == 0 {
		c.Window.Width = def.Window.Width
	}
	if c.Window.Height == 0 {
		c.Window.Height = def.Window.Height
	}
	if c.Window.Title == "" {
		c.Window.Title = def.Window.Title
	}
}

func (c *Config) validate() error {
	if c.RenderRadius == 0 {
		return fmt.Errorf("%w: render_radius must be positive", ErrInvalidConfig)
	}
	if c.RenderRadius%2 == 0 {
		return fmt.Errorf("%w: render_radius must be odd, got %d", ErrInvalidConfig, c.RenderRadius)
	}
	if c.UploadBudget < 0 {
		return fmt.Errorf("%w: upload_budget must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads a yaml config file, fills in defaults for omitted
// fields and validates the result.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
