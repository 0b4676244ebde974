package persistence

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/blobworld/internal/blobs"
	"github.com/talgya/blobworld/internal/config"
	"github.com/talgya/blobworld/internal/engine"
	"github.com/talgya/blobworld/internal/geom"
	"github.com/talgya/blobworld/internal/world"
)

func openTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, path
}

func TestBlobRoundTrip(t *testing.T) {
	db, _ := openTestDB(t)

	want := []blobs.Blob{
		{ID: "b-1", Pos: geom.V(10.25, 3.5), Radius: 4, State: 0},
		{ID: "b-2", Pos: geom.V(-7, 99.125), Radius: 1, State: 17},
		{ID: "b-3", Pos: geom.V(0, 0), Radius: 12, State: 3},
	}
	require.NoError(t, db.SaveBlobs(want))

	got, err := db.LoadBlobs()
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("blobs mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveBlobsReplaces(t *testing.T) {
	db, _ := openTestDB(t)

	require.NoError(t, db.SaveBlobs([]blobs.Blob{
		{ID: "old-1", Pos: geom.V(1, 1), Radius: 1},
		{ID: "old-2", Pos: geom.V(5, 5), Radius: 2},
	}))
	require.NoError(t, db.SaveBlobs([]blobs.Blob{{ID: "new", Pos: geom.V(3, 3), Radius: 2}}))

	got, err := db.LoadBlobs()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)

	require.NoError(t, db.SaveBlobs(nil))
	got, err = db.LoadBlobs()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMeta(t *testing.T) {
	db, _ := openTestDB(t)

	_, err := db.GetMeta("missing")
	assert.Error(t, err)
	assert.False(t, db.HasWorldState())

	require.NoError(t, db.SaveMeta("k", "v1"))
	require.NoError(t, db.SaveMeta("k", "v2"))
	v, err := db.GetMeta("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func newSim() *engine.Simulation {
	cfg := config.Default()
	return engine.NewSimulation(world.NewGrid(cfg.Width, cfg.Height), cfg, rand.New(rand.NewSource(3)))
}

func TestWorldStateRoundTrip(t *testing.T) {
	db, path := openTestDB(t)

	src := newSim()
	src.LoadBlobs([]blobs.Blob{
		{ID: "a", Pos: geom.V(20, 20), Radius: 3, State: 2},
		{ID: "b", Pos: geom.V(40, 20), Radius: 5, State: 0},
	})
	src.CheckScore()
	require.NoError(t, db.SaveWorldState(src))
	assert.True(t, db.HasWorldState())

	score, err := db.GetMeta("best_score")
	require.NoError(t, err)
	assert.NotEqual(t, "0", score)

	// Reopen to make sure the data survives a fresh connection.
	require.NoError(t, db.Close())
	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()

	dst := newSim()
	n, err := db2.LoadWorldState(dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	if diff := cmp.Diff(src.BlobSnapshot(), dst.BlobSnapshot()); diff != "" {
		t.Errorf("restored blobs mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadWorldStateEmptyDB(t *testing.T) {
	db, _ := openTestDB(t)
	sim := newSim()
	n, err := db.LoadWorldState(sim)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, sim.Blobs.Len())
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.db")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("not a database "), 128), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}
