// Package config holds the simulation's load-time constants. Defaults are
// compiled in; an optional JSON file overrides any subset of them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/talgya/blobworld/internal/blobs"
	"github.com/talgya/blobworld/internal/roads"
	"github.com/talgya/blobworld/internal/traffic"
	"github.com/talgya/blobworld/internal/world"
)

// DefaultPath is where the binary looks for overrides.
const DefaultPath = "data/blobworld.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the full set of tunables.
type Config struct {
	// World
	Width         int
	Height        int
	Seed          int64  // 0 = random
	MapPath       string // PNG terrain; procedural terrain is used when empty
	Threshold     int    // r+g+b below this is blocked
	SeaLevel      float64
	MountainLevel float64
	InitialBlobs  int // Blobs scattered when no saved state exists

	// MapReloadInterval is how often MapPath is re-read so an externally
	// updated map reshapes the world.
	MapReloadInterval time.Duration

	// Blobs
	MergeRadiusFactor float64
	BlobMergeLimit    int

	// Roads
	RoadBlobLimitFactor float64
	RoadDegreeLimit     int

	// Traffic
	SpawnRate       int
	PopulationLimit int

	// Driver
	TickInterval        time.Duration
	ScoreCheckInterval  time.Duration
	PersistenceInterval time.Duration
	DBPath              string
	APIPort             int
}

// Default returns the compiled-in configuration.
func Default() Config {
	gen := world.DefaultGenConfig()
	bc := blobs.DefaultConfig()
	rc := roads.DefaultConfig()
	tc := traffic.DefaultConfig()
	return Config{
		Width:         gen.Width,
		Height:        gen.Height,
		Seed:          42,
		MapPath:       "",
		Threshold:     world.DefaultThreshold,
		SeaLevel:      gen.SeaLevel,
		MountainLevel: gen.MountainLvl,
		InitialBlobs:  12,

		MapReloadInterval: time.Second,

		MergeRadiusFactor: bc.MergeRadiusFactor,
		BlobMergeLimit:    bc.MergeLimit,

		RoadBlobLimitFactor: rc.BlobLimitFactor,
		RoadDegreeLimit:     rc.DegreeLimit,

		SpawnRate:       tc.SpawnRate,
		PopulationLimit: tc.PopulationLimit,

		TickInterval:        25 * time.Millisecond,
		ScoreCheckInterval:  10 * time.Second,
		PersistenceInterval: 10 * time.Second,
		DBPath:              "data/blobworld.db",
		APIPort:             8080,
	}
}

// fileConfig mirrors Config with optional fields. Durations are strings such
// as "10s" or "25ms".
type fileConfig struct {
	Width         *int     `json:"width,omitempty"`
	Height        *int     `json:"height,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
	MapPath       *string  `json:"map_path,omitempty"`
	Threshold     *int     `json:"threshold,omitempty"`
	SeaLevel      *float64 `json:"sea_level,omitempty"`
	MountainLevel *float64 `json:"mountain_level,omitempty"`
	InitialBlobs  *int     `json:"initial_blobs,omitempty"`

	MapReloadInterval *string `json:"map_reload_interval,omitempty"`

	MergeRadiusFactor *float64 `json:"merge_radius_factor,omitempty"`
	BlobMergeLimit    *int     `json:"blob_merge_limit,omitempty"`

	RoadBlobLimitFactor *float64 `json:"road_blob_limit_factor,omitempty"`
	RoadDegreeLimit     *int     `json:"road_degree_limit,omitempty"`

	SpawnRate       *int `json:"spawn_rate,omitempty"`
	PopulationLimit *int `json:"population_limit,omitempty"`

	TickInterval        *string `json:"tick_interval,omitempty"`
	ScoreCheckInterval  *string `json:"score_check_interval,omitempty"`
	PersistenceInterval *string `json:"persistence_interval,omitempty"`
	DBPath              *string `json:"db_path,omitempty"`
	APIPort             *int    `json:"api_port,omitempty"`
}

// Load reads overrides from a JSON file on top of Default. Fields absent from
// the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	if err := fc.apply(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(name string, dst *time.Duration, src *string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, *src, err)
		}
		*dst = d
		return nil
	}

	setInt(&cfg.Width, fc.Width)
	setInt(&cfg.Height, fc.Height)
	if fc.Seed != nil {
		cfg.Seed = *fc.Seed
	}
	setString(&cfg.MapPath, fc.MapPath)
	setInt(&cfg.Threshold, fc.Threshold)
	setFloat(&cfg.SeaLevel, fc.SeaLevel)
	setFloat(&cfg.MountainLevel, fc.MountainLevel)
	setInt(&cfg.InitialBlobs, fc.InitialBlobs)

	setFloat(&cfg.MergeRadiusFactor, fc.MergeRadiusFactor)
	setInt(&cfg.BlobMergeLimit, fc.BlobMergeLimit)

	setFloat(&cfg.RoadBlobLimitFactor, fc.RoadBlobLimitFactor)
	setInt(&cfg.RoadDegreeLimit, fc.RoadDegreeLimit)

	setInt(&cfg.SpawnRate, fc.SpawnRate)
	setInt(&cfg.PopulationLimit, fc.PopulationLimit)

	setString(&cfg.DBPath, fc.DBPath)
	setInt(&cfg.APIPort, fc.APIPort)

	return errors.Join(
		setDuration("map_reload_interval", &cfg.MapReloadInterval, fc.MapReloadInterval),
		setDuration("tick_interval", &cfg.TickInterval, fc.TickInterval),
		setDuration("score_check_interval", &cfg.ScoreCheckInterval, fc.ScoreCheckInterval),
		setDuration("persistence_interval", &cfg.PersistenceInterval, fc.PersistenceInterval),
	)
}

// Validate checks that every tunable is in range.
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("world size must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.MergeRadiusFactor <= 0 {
		errs = append(errs, fmt.Errorf("merge_radius_factor must be positive, got %v", c.MergeRadiusFactor))
	}
	if c.RoadBlobLimitFactor <= 0 {
		errs = append(errs, fmt.Errorf("road_blob_limit_factor must be positive, got %v", c.RoadBlobLimitFactor))
	}
	if c.RoadDegreeLimit < 0 {
		errs = append(errs, fmt.Errorf("road_degree_limit must not be negative, got %d", c.RoadDegreeLimit))
	}
	if c.SpawnRate < 0 || c.PopulationLimit < 0 {
		errs = append(errs, fmt.Errorf("spawn_rate and population_limit must not be negative"))
	}
	if c.TickInterval <= 0 || c.ScoreCheckInterval <= 0 || c.PersistenceInterval <= 0 || c.MapReloadInterval <= 0 {
		errs = append(errs, fmt.Errorf("intervals must be positive"))
	}
	return errors.Join(errs...)
}

// Terrain returns the procedural terrain parameters.
func (c Config) Terrain() world.GenConfig {
	gen := world.DefaultGenConfig()
	gen.Width = c.Width
	gen.Height = c.Height
	gen.Seed = c.Seed
	gen.SeaLevel = c.SeaLevel
	gen.MountainLvl = c.MountainLevel
	return gen
}

// Blobs returns the blob registry parameters.
func (c Config) Blobs() blobs.Config {
	bc := blobs.DefaultConfig()
	bc.MergeRadiusFactor = c.MergeRadiusFactor
	bc.MergeLimit = c.BlobMergeLimit
	return bc
}

// Roads returns the road graph parameters.
func (c Config) Roads() roads.Config {
	return roads.Config{
		BlobLimitFactor: c.RoadBlobLimitFactor,
		DegreeLimit:     c.RoadDegreeLimit,
	}
}

// Traffic returns the traffic simulator parameters.
func (c Config) Traffic() traffic.Config {
	tc := traffic.DefaultConfig()
	tc.SpawnRate = c.SpawnRate
	tc.PopulationLimit = c.PopulationLimit
	return tc
}
