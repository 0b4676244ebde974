// Command blobsim grows blobs on a terrain map, links them with roads and
// runs traffic over the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/blobworld/internal/api"
	"github.com/talgya/blobworld/internal/config"
	"github.com/talgya/blobworld/internal/engine"
	"github.com/talgya/blobworld/internal/persistence"
	"github.com/talgya/blobworld/internal/world"
)

const reportInterval = time.Minute

func main() {
	configPath := flag.String("config", config.DefaultPath, "JSON config overrides")
	debug := flag.Bool("debug", false, "log per-tick detail")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// ── Config ────────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	switch {
	case err == nil:
		slog.Info("config loaded", "path", *configPath)
	case errors.Is(err, os.ErrNotExist):
		slog.Info("no config file, using defaults", "path", *configPath)
		cfg = config.Default()
	default:
		slog.Warn("config rejected, using defaults", "path", *configPath, "error", err)
		cfg = config.Default()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// ── Terrain ───────────────────────────────────────────────────────
	terrain := loadTerrain(cfg)
	slog.Info("terrain ready",
		"width", terrain.Width,
		"height", terrain.Height,
		"blocked", humanize.Comma(int64(terrain.BlockedCount())),
		"cells", humanize.Comma(int64(terrain.Width*terrain.Height)),
	)

	sim := engine.NewSimulation(terrain, cfg, rng)

	// ── Database ──────────────────────────────────────────────────────
	db := openDB(cfg.DBPath)
	if db != nil {
		defer db.Close()
		if n, err := db.LoadWorldState(sim); err != nil {
			slog.Warn("saved state unreadable, starting empty", "error", err)
			sim.LoadBlobs(nil)
		} else if n > 0 {
			slog.Info("resumed saved blobs", "count", n)
		}
	}

	if sim.Blobs.Len() == 0 && cfg.InitialBlobs > 0 {
		placed := sim.Blobs.SeedRandom(cfg.InitialBlobs, cfg.Width, cfg.Height, cfg.InitialBlobs*100)
		slog.Info("seeded initial blobs", "requested", cfg.InitialBlobs, "placed", placed)
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(cfg.TickInterval)
	eng.OnTick = sim.Step
	eng.Every("score", cfg.ScoreCheckInterval, func(uint64, time.Duration) {
		sim.CheckScore()
	})
	if cfg.MapPath != "" {
		eng.Every("map", cfg.MapReloadInterval, func(tick uint64, _ time.Duration) {
			if tick == 1 {
				return
			}
			if _, err := sim.ReloadMap(cfg.MapPath, cfg.Width, cfg.Height, cfg.Threshold); err != nil {
				slog.Warn("map reload failed, keeping terrain", "path", cfg.MapPath, "error", err)
			}
		})
	}
	if db != nil {
		eng.Every("save", cfg.PersistenceInterval, func(tick uint64, _ time.Duration) {
			if tick == 1 {
				return
			}
			if err := db.SaveWorldState(sim); err != nil {
				slog.Error("periodic save failed", "error", err)
			}
		})
	}
	eng.Every("report", reportInterval, func(uint64, time.Duration) {
		sim.Report()
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── HTTP API ──────────────────────────────────────────────────────
	apiServer := &api.Server{
		Sim:  sim,
		Eng:  eng,
		Port: cfg.APIPort,
	}
	apiServer.Start(ctx)

	fmt.Printf("\nblobworld is alive: %d blobs on a %dx%d map.\n", sim.Blobs.Len(), cfg.Width, cfg.Height)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.APIPort)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	if db != nil {
		slog.Info("final save...")
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("final save failed", "error", err)
		}
	}
	fmt.Println("Simulation stopped.")
}

// loadTerrain reads the map image when one is configured and falls back to
// procedural terrain otherwise. An unreadable image yields open terrain.
func loadTerrain(cfg config.Config) *world.Grid {
	if cfg.MapPath == "" {
		slog.Info("generating terrain", "seed", cfg.Seed)
		return world.Generate(cfg.Terrain())
	}

	grid, err := world.LoadImage(cfg.MapPath, cfg.Width, cfg.Height, cfg.Threshold)
	if err != nil {
		slog.Warn("map image unreadable, terrain is open", "path", cfg.MapPath, "error", err)
		return world.Empty(cfg.Width, cfg.Height)
	}
	if !grid.HasData() {
		slog.Warn("map image missing, terrain is open", "path", cfg.MapPath)
	}
	return grid
}

// openDB returns nil when the database cannot be used; the simulation then
// runs without persistence.
func openDB(path string) *persistence.DB {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Warn("persistence disabled", "path", path, "error", err)
			return nil
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		slog.Warn("persistence disabled", "path", path, "error", err)
		return nil
	}
	slog.Info("database opened", "path", path)
	return db
}
