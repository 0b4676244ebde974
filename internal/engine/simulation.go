// Simulation ties together the blob, road and traffic systems and runs them
// each tick.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/talgya/blobworld/internal/blobs"
	"github.com/talgya/blobworld/internal/config"
	"github.com/talgya/blobworld/internal/roads"
	"github.com/talgya/blobworld/internal/traffic"
	"github.com/talgya/blobworld/internal/world"
)

// Simulation holds the complete world state. All methods are safe for
// concurrent use; the tick path takes the write lock and snapshots take the
// read lock.
type Simulation struct {
	mu sync.RWMutex

	Terrain world.Field
	Blobs   *blobs.Registry
	Roads   *roads.Graph
	Traffic *traffic.Simulator

	lastTick  uint64
	elapsed   time.Duration
	bestScore float64
	totals    Totals
}

// Totals are cumulative event counts since startup.
type Totals struct {
	Grown        int `json:"grown"`
	Merged       int `json:"merged"`
	Died         int `json:"died"`
	BlobsSpawned int `json:"blobs_spawned"`
	RoadsBuilt   int `json:"roads_built"`
	RoadsDropped int `json:"roads_dropped"`
	Arrived      int `json:"arrived"`
	Stranded     int `json:"stranded"`
	Expired      int `json:"expired"`
	Regenerated  int `json:"regenerations"`
}

// Status is a cheap point-in-time summary.
type Status struct {
	Tick      uint64        `json:"tick"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Uptime    string        `json:"uptime"`
	Blobs     int           `json:"blobs"`
	Roads     int           `json:"roads"`
	Motives   int           `json:"motives"`
	Score     float64       `json:"score"`
	BestScore float64       `json:"best_score"`
}

// SimStats are aggregate statistics over the current world.
type SimStats struct {
	Status
	RadiusMean   float64 `json:"radius_mean"`
	RadiusStdDev float64 `json:"radius_stddev"`
	RadiusMax    float64 `json:"radius_max"`
	MeanDegree   float64 `json:"mean_degree"`
	Pedestrians  int     `json:"pedestrians"`
	Cars         int     `json:"cars"`
	Totals       Totals  `json:"totals"`
}

// NewSimulation wires the three systems over one terrain. Each system draws
// from the same rng.
func NewSimulation(terrain world.Field, cfg config.Config, rng *rand.Rand) *Simulation {
	reg := blobs.NewRegistry(terrain, cfg.Blobs(), rng)
	graph := roads.NewGraph(reg, terrain, cfg.Roads())
	return &Simulation{
		Terrain: terrain,
		Blobs:   reg,
		Roads:   graph,
		Traffic: traffic.NewSimulator(graph, cfg.Traffic(), rng),
	}
}

// Step runs one frame: blob lifecycle, then road invalidation, then traffic.
// elapsed is the absolute time since the simulation started.
func (s *Simulation) Step(tick uint64, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastTick = tick
	s.elapsed = elapsed

	br := s.Blobs.Tick()
	dropped := s.Roads.Update()
	tr := s.Traffic.Tick(elapsed)

	s.totals.Grown += br.Grown
	s.totals.Merged += br.Merged
	s.totals.Died += br.Died
	s.totals.BlobsSpawned += br.Spawned
	s.totals.RoadsDropped += dropped
	s.totals.Arrived += tr.Arrived
	s.totals.Stranded += tr.Stranded
	s.totals.Expired += tr.Expired

	if br.Merged > 0 || br.Died > 0 || dropped > 0 {
		slog.Debug("tick",
			"tick", tick,
			"merged", br.Merged,
			"died", br.Died,
			"roads_dropped", dropped,
			"motives", s.Traffic.Len(),
		)
	}
}

// CheckScore regenerates the road graph when the blob score beats the best
// seen so far. It returns the number of roads added, or -1 when the score did
// not improve.
func (s *Simulation) CheckScore() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	score := s.Blobs.Score()
	if score <= s.bestScore {
		return -1
	}
	prev := s.bestScore
	s.bestScore = score

	added := s.Roads.Regenerate()
	s.totals.RoadsBuilt += added
	s.totals.Regenerated++

	slog.Info("score improved, roads regenerated",
		"score", fmt.Sprintf("%.3f", score),
		"previous", fmt.Sprintf("%.3f", prev),
		"roads_added", added,
		"roads", s.Roads.Len(),
	)
	return added
}

// Status returns a point-in-time summary.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

func (s *Simulation) statusLocked() Status {
	return Status{
		Tick:      s.lastTick,
		Elapsed:   s.elapsed,
		Uptime:    s.elapsed.Truncate(time.Second).String(),
		Blobs:     s.Blobs.Len(),
		Roads:     s.Roads.Len(),
		Motives:   s.Traffic.Len(),
		Score:     s.Blobs.Score(),
		BestScore: s.bestScore,
	}
}

// Stats computes aggregate statistics.
func (s *Simulation) Stats() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := SimStats{Status: s.statusLocked(), Totals: s.totals}

	radii := s.Blobs.Radii()
	switch len(radii) {
	case 0:
	case 1:
		st.RadiusMean = radii[0]
		st.RadiusMax = radii[0]
	default:
		st.RadiusMean, st.RadiusStdDev = stat.MeanStdDev(radii, nil)
		st.RadiusMax = floats.Max(radii)
	}
	if n := s.Blobs.Len(); n > 0 {
		// Every edge touches two blobs.
		st.MeanDegree = float64(2*s.Roads.Len()) / float64(n)
	}

	for _, m := range s.Traffic.Motives() {
		if m.Kind == traffic.KindCar {
			st.Cars++
		} else {
			st.Pedestrians++
		}
	}
	return st
}

// BlobSnapshot returns copies of all live blobs.
func (s *Simulation) BlobSnapshot() []blobs.Blob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Blobs.Blobs()
}

// RoadSnapshot returns copies of all roads.
func (s *Simulation) RoadSnapshot() []roads.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Roads.Edges()
}

// MotiveSnapshot returns copies of all live agents.
func (s *Simulation) MotiveSnapshot() []traffic.Motive {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Traffic.Motives()
}

// LoadBlobs replaces the blob population, typically with saved state. Roads
// are rebuilt on the next score check.
func (s *Simulation) LoadBlobs(list []blobs.Blob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Blobs.Load(list)
	s.Roads.Update()
}

// SetTerrain swaps the terrain under the blob registry and road graph. Blobs
// and roads it now blocks are removed by the next Step.
func (s *Simulation) SetTerrain(terrain world.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Terrain = terrain
	s.Blobs.SetTerrain(terrain)
	s.Roads.SetTerrain(terrain)
}

// ReloadMap re-reads the map image and installs it as the terrain. A missing
// file keeps the current terrain. It reports whether the terrain changed.
func (s *Simulation) ReloadMap(path string, width, height, threshold int) (bool, error) {
	grid, err := world.LoadImage(path, width, height, threshold)
	if err != nil {
		return false, fmt.Errorf("reload map: %w", err)
	}
	if !grid.HasData() {
		return false, nil
	}
	s.SetTerrain(grid)
	slog.Debug("map reloaded", "path", path, "blocked", grid.BlockedCount())
	return true, nil
}

// Report logs a periodic summary.
func (s *Simulation) Report() {
	st := s.Stats()
	slog.Info("world report",
		"tick", humanize.Comma(int64(st.Tick)),
		"uptime", st.Uptime,
		"blobs", st.Blobs,
		"roads", st.Roads,
		"motives", humanize.Comma(int64(st.Motives)),
		"score", fmt.Sprintf("%.3f", st.Score),
		"radius_mean", fmt.Sprintf("%.2f", st.RadiusMean),
		"radius_max", st.RadiusMax,
		"merged", humanize.Comma(int64(st.Totals.Merged)),
		"died", humanize.Comma(int64(st.Totals.Died)),
		"arrived", humanize.Comma(int64(st.Totals.Arrived)),
		"expired", humanize.Comma(int64(st.Totals.Expired)),
	)
}
