package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	quadtree "github.com/blakemr/quadindex"
)

// maxConfigSize caps the config file read from disk.
const maxConfigSize = 1 << 20

// Config drives the bench and lines commands.
type Config struct {
	Bounds       Bounds  `yaml:"bounds"`
	MaxNodes     int     `yaml:"max_nodes"`
	MinSize      float64 `yaml:"min_size"`
	Points       int     `yaml:"points"`
	Queries      int     `yaml:"queries"`
	Radius       float64 `yaml:"radius"`
	Readers      int     `yaml:"readers"`
	MoveFraction float64 `yaml:"move_fraction"`
	Seed         int64   `yaml:"seed"`
	LogLevel     string  `yaml:"log_level"`
}

// Bounds holds the root region as [x, y] pairs.
type Bounds struct {
	TopLeft  [2]float64 `yaml:"top_left"`
	BotRight [2]float64 `yaml:"bot_right"`
}

func (b Bounds) box() quadtree.BoundingBox {
	return quadtree.NewBoundingBox(
		quadtree.Point{X: b.TopLeft[0], Y: b.TopLeft[1]},
		quadtree.Point{X: b.BotRight[0], Y: b.BotRight[1]},
	)
}

// DefaultConfig mirrors the 100x100 box centred on (100, 100) with four
// points per leaf.
func DefaultConfig() Config {
	return Config{
		Bounds: Bounds{
			TopLeft:  [2]float64{50, 50},
			BotRight: [2]float64{150, 150},
		},
		MaxNodes:     4,
		MinSize:      0.01,
		Points:       100000,
		Queries:      100,
		Radius:       5,
		Readers:      4,
		MoveFraction: 0.1,
		Seed:         1,
		LogLevel:     "info",
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return cfg, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > maxConfigSize {
		return cfg, fmt.Errorf("config %s is %d bytes, limit is %d", path, info.Size(), maxConfigSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the index cannot be built with.
func (c Config) Validate() error {
	var errs []error
	if c.MaxNodes <= 0 {
		errs = append(errs, fmt.Errorf("max_nodes must be positive, got %d", c.MaxNodes))
	}
	if c.MinSize <= 0 {
		errs = append(errs, fmt.Errorf("min_size must be positive, got %v", c.MinSize))
	}
	if !c.Bounds.box().Valid() {
		errs = append(errs, fmt.Errorf("bounds %s: top_left must not exceed bot_right", c.Bounds.box()))
	}
	if c.Points < 0 || c.Queries < 0 {
		errs = append(errs, errors.New("points and queries must not be negative"))
	}
	if c.Radius < 0 {
		errs = append(errs, fmt.Errorf("radius must not be negative, got %v", c.Radius))
	}
	if c.Readers <= 0 {
		errs = append(errs, fmt.Errorf("readers must be positive, got %d", c.Readers))
	}
	if c.MoveFraction < 0 || c.MoveFraction > 1 {
		errs = append(errs, fmt.Errorf("move_fraction must be within [0, 1], got %v", c.MoveFraction))
	}
	if _, err := c.level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

func (c Config) logger() *quadtree.Logger {
	l, err := c.level()
	if err != nil {
		l = slog.LevelInfo
	}
	return quadtree.NewTextLogger(l)
}
