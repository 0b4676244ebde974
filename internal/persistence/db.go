// Package persistence provides SQLite-based storage for the blob population.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/blobworld/internal/blobs"
	"github.com/talgya/blobworld/internal/engine"
	"github.com/talgya/blobworld/internal/geom"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS blobs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		radius INTEGER NOT NULL,
		state INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type blobRow struct {
	ID     string  `db:"id"`
	PosX   float64 `db:"pos_x"`
	PosY   float64 `db:"pos_y"`
	Radius int     `db:"radius"`
	State  int     `db:"state"`
}

// SaveBlobs writes all blobs to the database (full replace). Row order
// follows the slice order.
func (db *DB) SaveBlobs(list []blobs.Blob) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM blobs"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO blobs (id, pos_x, pos_y, radius, state)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range list {
		if _, err := stmt.Exec(b.ID, b.Pos.X, b.Pos.Y, b.Radius, b.State); err != nil {
			return fmt.Errorf("insert blob %s: %w", b.ID, err)
		}
	}

	return tx.Commit()
}

// LoadBlobs reads every saved blob in the order it was written.
func (db *DB) LoadBlobs() ([]blobs.Blob, error) {
	var rows []blobRow
	if err := db.conn.Select(&rows, "SELECT id, pos_x, pos_y, radius, state FROM blobs ORDER BY seq"); err != nil {
		return nil, err
	}

	out := make([]blobs.Blob, 0, len(rows))
	for _, r := range rows {
		out = append(out, blobs.Blob{
			ID:     r.ID,
			Pos:    geom.V(r.PosX, r.PosY),
			Radius: r.Radius,
			State:  r.State,
		})
	}
	return out, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// HasWorldState reports whether a previous save exists.
func (db *DB) HasWorldState() bool {
	_, err := db.GetMeta("saved_at")
	return err == nil
}

// SaveWorldState performs a full save of the blob population.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	list := sim.BlobSnapshot()
	st := sim.Status()

	if err := db.SaveBlobs(list); err != nil {
		return fmt.Errorf("save blobs: %w", err)
	}
	meta := map[string]string{
		"last_tick":  strconv.FormatUint(st.Tick, 10),
		"best_score": strconv.FormatFloat(st.BestScore, 'f', -1, 64),
		"saved_at":   time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if err := db.SaveMeta(k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	slog.Debug("world state saved", "blobs", len(list), "tick", st.Tick)
	return nil
}

// LoadWorldState restores the saved blob population into sim. A database
// with no previous save leaves sim untouched.
func (db *DB) LoadWorldState(sim *engine.Simulation) (int, error) {
	if !db.HasWorldState() {
		return 0, nil
	}
	list, err := db.LoadBlobs()
	if err != nil {
		return 0, fmt.Errorf("load blobs: %w", err)
	}
	sim.LoadBlobs(list)

	tick, err := db.GetMeta("last_tick")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return len(list), fmt.Errorf("load meta: %w", err)
	}
	slog.Info("world state loaded", "blobs", len(list), "saved_tick", tick)
	return len(list), nil
}
