package traffic

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/talgya/blobworld/internal/geom"
	"github.com/talgya/blobworld/internal/roads"
)

// EdgeSource is the read side of the road graph that traffic depends on.
type EdgeSource interface {
	Edges() []roads.Edge
	EdgesOf(blobID string) []roads.Edge
}

// Config controls agent population and lifetime.
type Config struct {
	PopulationLimit int           // Target population
	SpawnRate       int           // Agents added per tick while under the limit
	BatchSize       int           // Agents added at once when the population is empty
	MinTTL          time.Duration // Lifetime lower bound
	MaxTTL          time.Duration // Lifetime upper bound
}

// DefaultConfig returns the standard traffic parameters.
func DefaultConfig() Config {
	return Config{
		PopulationLimit: 1000,
		SpawnRate:       1,
		BatchSize:       100,
		MinTTL:          15 * time.Second,
		MaxTTL:          20 * time.Second,
	}
}

// TickReport summarizes what one Tick changed.
type TickReport struct {
	Arrived  int
	Stranded int // Arrived at a blob with no roads; kept their old target
	Expired  int
	Spawned  int
}

// Simulator owns every live agent.
type Simulator struct {
	roads   EdgeSource
	cfg     Config
	rng     *rand.Rand
	motives []*Motive
}

// NewSimulator creates a simulator with no agents.
func NewSimulator(source EdgeSource, cfg Config, rng *rand.Rand) *Simulator {
	return &Simulator{
		roads: source,
		cfg:   cfg,
		rng:   rng,
	}
}

// Len returns the current population.
func (s *Simulator) Len() int {
	return len(s.motives)
}

// Motives returns copies of all live agents.
func (s *Simulator) Motives() []Motive {
	out := make([]Motive, 0, len(s.motives))
	for _, m := range s.motives {
		out = append(out, *m)
	}
	return out
}

// Spawn places a new agent at the start of a random road, heading for its
// far end. It returns false when there are no roads.
func (s *Simulator) Spawn(now time.Duration) (*Motive, bool) {
	edges := s.roads.Edges()
	if len(edges) == 0 {
		return nil, false
	}
	e := edges[s.rng.Intn(len(edges))]

	kind := KindPedestrian
	if s.rng.Float64() < 0.5 {
		kind = KindCar
	}

	ttl := s.cfg.MinTTL + time.Duration(s.rng.Float64()*float64(s.cfg.MaxTTL-s.cfg.MinTTL))
	m := &Motive{
		Pos:       e.Start,
		Start:     e.Start,
		Target:    e.End,
		TargetID:  e.EndID,
		Kind:      kind,
		Speed:     s.rng.Float64(),
		SpawnedAt: now,
		TTL:       ttl,
	}
	s.motives = append(s.motives, m)
	return m, true
}

// Tick moves every agent, removes expired ones, sends arrived agents down a
// new road and tops up the population. now is the absolute simulation time.
func (s *Simulator) Tick(now time.Duration) TickReport {
	var rep TickReport

	alive := s.motives[:0]
	for _, m := range s.motives {
		m.step(s.rng)

		if m.Expired(now) {
			rep.Expired++
			continue
		}
		if m.Arrived {
			rep.Arrived++
			if !s.retarget(m) {
				rep.Stranded++
			}
		}
		alive = append(alive, m)
	}
	for i := len(alive); i < len(s.motives); i++ {
		s.motives[i] = nil
	}
	s.motives = alive

	rep.Spawned = s.populate(now)
	return rep
}

// retarget picks a random road out of the agent's destination blob and heads
// for whichever end of it is farther away. An agent whose blob has no roads
// keeps its old target.
func (s *Simulator) retarget(m *Motive) bool {
	m.Start = m.Target

	edges := s.roads.EdgesOf(m.TargetID)
	if len(edges) == 0 {
		return false
	}
	e := edges[s.rng.Intn(len(edges))]

	if geom.DistSqr(m.Pos, e.Start) > geom.DistSqr(m.Pos, e.End) {
		m.Target, m.TargetID = e.Start, e.StartID
	} else {
		m.Target, m.TargetID = e.End, e.EndID
	}
	return true
}

func (s *Simulator) populate(now time.Duration) int {
	if len(s.motives) >= s.cfg.PopulationLimit {
		return 0
	}

	n := s.cfg.SpawnRate
	if len(s.motives) == 0 {
		n = s.cfg.BatchSize
	}
	n = min(n, s.cfg.PopulationLimit-len(s.motives))

	spawned := 0
	for i := 0; i < n; i++ {
		if _, ok := s.Spawn(now); !ok {
			break
		}
		spawned++
	}
	if spawned > 0 && len(s.motives) == spawned {
		slog.Debug("traffic batch spawned", "count", spawned)
	}
	return spawned
}
