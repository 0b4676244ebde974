// Package roads synthesizes a road network between blobs. Roads are straight
// segments that must have a clear line of sight across the terrain, and each
// blob accepts only a limited number of them.
package roads

import (
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/blobworld/internal/blobs"
	"github.com/talgya/blobworld/internal/geom"
	"github.com/talgya/blobworld/internal/world"
)

// Edge is a road between two blobs. Positions and radii are captured when the
// road is built and do not follow later blob changes.
type Edge struct {
	ID          string   `json:"id"`
	StartID     string   `json:"start_id"`
	EndID       string   `json:"end_id"`
	Start       geom.Vec `json:"start"`
	End         geom.Vec `json:"end"`
	StartRadius int      `json:"start_radius"`
	EndRadius   int      `json:"end_radius"`
}

// Other returns the blob id at the opposite end from id.
func (e Edge) Other(id string) string {
	if e.StartID == id {
		return e.EndID
	}
	return e.StartID
}

// BlobSource is the read side of the blob registry that roads depend on.
type BlobSource interface {
	Blobs() []blobs.Blob
	Get(id string) (blobs.Blob, bool)
	FindClose(b blobs.Blob, radius float64) []blobs.Blob
}

// Config controls road synthesis.
type Config struct {
	BlobLimitFactor float64 // Search radius for partners = blob radius × factor
	DegreeLimit     int     // Max roads per blob when a road is created
}

// DefaultConfig returns the standard road parameters.
func DefaultConfig() Config {
	return Config{
		BlobLimitFactor: 3,
		DegreeLimit:     2,
	}
}

// Graph owns all roads plus two indexes keyed by blob id: the set of
// connected blob ids and the list of incident road ids. Blobs are referenced
// by id only, so removing a blob never leaves the graph dangling.
type Graph struct {
	blobs   BlobSource
	terrain world.Field
	cfg     Config

	edges    []*Edge
	byID     map[string]*Edge
	adj      map[string]mapset.Set[string]
	incident map[string][]string
}

// NewGraph creates an empty road graph.
func NewGraph(source BlobSource, terrain world.Field, cfg Config) *Graph {
	return &Graph{
		blobs:    source,
		terrain:  terrain,
		cfg:      cfg,
		byID:     make(map[string]*Edge),
		adj:      make(map[string]mapset.Set[string]),
		incident: make(map[string][]string),
	}
}

// neighbours returns the adjacency set for id, creating it on first use.
func (g *Graph) neighbours(id string) mapset.Set[string] {
	s, ok := g.adj[id]
	if !ok {
		s = mapset.New[string]()
		g.adj[id] = s
	}
	return s
}

// SetTerrain swaps the field roads are checked against. Blocked roads are
// dropped by the next Update.
func (g *Graph) SetTerrain(terrain world.Field) {
	g.terrain = terrain
}

// Len returns the number of roads.
func (g *Graph) Len() int {
	return len(g.edges)
}

// Edges returns copies of all roads in creation order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, *e)
	}
	return out
}

// Get returns the road with the given id.
func (g *Graph) Get(id string) (Edge, bool) {
	e, ok := g.byID[id]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// EdgesOf returns the roads touching a blob.
func (g *Graph) EdgesOf(blobID string) []Edge {
	ids := g.incident[blobID]
	out := make([]Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, *g.byID[id])
	}
	return out
}

// Degree returns the number of roads touching a blob.
func (g *Graph) Degree(blobID string) int {
	return len(g.incident[blobID])
}

// Connected reports whether a road joins a and b in either direction.
func (g *Graph) Connected(a, b string) bool {
	if s, ok := g.adj[a]; ok && s.Has(b) {
		return true
	}
	if s, ok := g.adj[b]; ok && s.Has(a) {
		return true
	}
	return false
}

// Valid reports whether a road's line of sight is clear.
func (g *Graph) Valid(e Edge) bool {
	return Clear(g.terrain, e.Start, e.End)
}

// Regenerate walks every blob in registry order and adds roads to nearby
// blobs it is not yet connected to. A road is only created while both ends
// are under the degree limit and its line of sight is clear. Existing roads
// are kept even if a lower limit would now forbid them. It returns the number
// of roads added.
func (g *Graph) Regenerate() int {
	all := g.blobs.Blobs()
	slog.Debug("regenerating roads", "blobs", len(all), "roads", len(g.edges))

	added := 0
	for _, b := range all {
		g.neighbours(b.ID)
		if g.Degree(b.ID) >= g.cfg.DegreeLimit {
			continue
		}

		for _, other := range g.blobs.FindClose(b, float64(b.Radius)*g.cfg.BlobLimitFactor) {
			g.neighbours(other.ID)
			if other.ID == b.ID || g.Connected(b.ID, other.ID) {
				continue
			}
			if g.Degree(b.ID) >= g.cfg.DegreeLimit {
				break
			}
			if g.Degree(other.ID) >= g.cfg.DegreeLimit {
				continue
			}

			e := Edge{
				ID:          uuid.NewString(),
				StartID:     b.ID,
				EndID:       other.ID,
				Start:       b.Pos,
				End:         other.Pos,
				StartRadius: b.Radius,
				EndRadius:   other.Radius,
			}
			if !g.Valid(e) {
				continue
			}
			g.add(e)
			added++
		}
	}

	slog.Debug("roads regenerated", "added", added, "roads", len(g.edges))
	return added
}

func (g *Graph) add(e Edge) {
	ne := e
	g.edges = append(g.edges, &ne)
	g.byID[e.ID] = &ne
	g.neighbours(e.StartID).Put(e.EndID)
	g.neighbours(e.EndID).Put(e.StartID)
	g.incident[e.StartID] = append(g.incident[e.StartID], e.ID)
	g.incident[e.EndID] = append(g.incident[e.EndID], e.ID)
}

func (g *Graph) remove(e *Edge) {
	delete(g.byID, e.ID)
	g.edges = slices.DeleteFunc(g.edges, func(o *Edge) bool { return o.ID == e.ID })

	if s, ok := g.adj[e.StartID]; ok {
		s.Remove(e.EndID)
	}
	if s, ok := g.adj[e.EndID]; ok {
		s.Remove(e.StartID)
	}
	for _, id := range []string{e.StartID, e.EndID} {
		g.incident[id] = slices.DeleteFunc(g.incident[id], func(o string) bool { return o == e.ID })
		if len(g.incident[id]) == 0 {
			delete(g.incident, id)
		}
	}
}

// Update re-validates every road against the current terrain and drops those
// whose line of sight is now blocked. Roads outlive their endpoint blobs: the
// snapshot positions keep them usable after a merge or death. It returns the
// number of roads removed.
func (g *Graph) Update() int {
	var dead []*Edge
	for _, e := range g.edges {
		if !g.Valid(*e) {
			dead = append(dead, e)
		}
	}

	for _, e := range dead {
		slog.Debug("removing road", "id", e.ID, "start", e.Start, "end", e.End)
		g.remove(e)
	}

	// Forget adjacency entries for blobs that no longer exist.
	for id, s := range g.adj {
		if s.Size() > 0 {
			continue
		}
		if _, ok := g.blobs.Get(id); !ok {
			delete(g.adj, id)
		}
	}
	return len(dead)
}
