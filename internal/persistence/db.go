// Package persistence archives finished puzzle runs in SQLite. The archive is
// write-once history: nothing here restores a simulation.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/red-eyes/internal/engine"
	"github.com/talgya/red-eyes/internal/proof"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// DB wraps a SQLite connection for the run archive.
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
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		num_red INTEGER NOT NULL,
		num_blue INTEGER NOT NULL,
		announced INTEGER NOT NULL,
		announced_on_day INTEGER NOT NULL,
		final_day INTEGER NOT NULL,
		expected_day INTEGER NOT NULL,
		actual_day INTEGER NOT NULL,
		passed INTEGER NOT NULL,
		snapshot_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS departures (
		run_id TEXT NOT NULL REFERENCES runs(id),
		villager_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		eye_color TEXT NOT NULL,
		villager_type TEXT NOT NULL,
		left_on_day INTEGER NOT NULL,
		PRIMARY KEY (run_id, villager_id)
	);

	CREATE TABLE IF NOT EXISTS archive_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunSummary is one archived run without its transcript.
type RunSummary struct {
	ID             string `db:"id" json:"id"`
	CreatedAt      int64  `db:"created_at" json:"createdAt"`
	NumRed         int    `db:"num_red" json:"numRed"`
	NumBlue        int    `db:"num_blue" json:"numBlue"`
	Announced      bool   `db:"announced" json:"announced"`
	AnnouncedOnDay int    `db:"announced_on_day" json:"announcedOnDay"`
	FinalDay       int    `db:"final_day" json:"finalDay"`
	ExpectedDay    int    `db:"expected_day" json:"expectedDay"`
	ActualDay      int    `db:"actual_day" json:"actualDay"`
	Passed         bool   `db:"passed" json:"passed"`
}

// Departure is one villager who left during an archived run.
type Departure struct {
	VillagerID int    `db:"villager_id" json:"villagerId"`
	Name       string `db:"name" json:"name"`
	EyeColor   string `db:"eye_color" json:"eyeColor"`
	Type       string `db:"villager_type" json:"villagerType"`
	LeftOnDay  int    `db:"left_on_day" json:"leftOnDay"`
}

// Run is a full archived run.
type Run struct {
	RunSummary
	Departures []Departure     `json:"departures"`
	Snapshot   engine.Snapshot `json:"snapshot"`
}

// SaveRun archives a finished puzzle and returns its new id.
func (db *DB) SaveRun(snap engine.Snapshot, ver proof.Verification) (string, error) {
	id := uuid.NewString()
	raw, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(id, created_at, num_red, num_blue, announced, announced_on_day,
		 final_day, expected_day, actual_day, passed, snapshot_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().Unix(), snap.NumRed, snap.NumBlue, snap.AnnouncementMade, snap.AnnouncedOnDay,
		snap.CurrentDay, ver.ExpectedDay, ver.ActualDay, ver.Passed, string(raw),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO departures
		(run_id, villager_id, name, eye_color, villager_type, left_on_day)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, v := range snap.Villagers {
		if v.LeftOnDay == nil {
			continue
		}
		if _, err := stmt.Exec(id, int(v.ID), v.Name, v.Eyes.String(), string(v.Type), *v.LeftOnDay); err != nil {
			return "", fmt.Errorf("insert departure %d: %w", v.ID, err)
		}
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO archive_meta (key, value) VALUES ('last_run_id', ?)", id); err != nil {
		return "", fmt.Errorf("save meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}

	slog.Info("run archived", "id", id, "red", snap.NumRed, "blue", snap.NumBlue, "passed", ver.Passed)
	return id, nil
}

// RecentRuns returns the most recent runs, newest first.
func (db *DB) RecentRuns(limit int) ([]RunSummary, error) {
	runs := []RunSummary{}
	err := db.conn.Select(&runs, `SELECT id, created_at, num_red, num_blue, announced, announced_on_day,
		final_day, expected_day, actual_day, passed
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	return runs, err
}

// GetRun loads one archived run.
func (db *DB) GetRun(id string) (Run, error) {
	var row struct {
		RunSummary
		SnapshotJSON string `db:"snapshot_json"`
	}
	err := db.conn.Get(&row, `SELECT id, created_at, num_red, num_blue, announced, announced_on_day,
		final_day, expected_day, actual_day, passed, snapshot_json
		FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}

	run := Run{RunSummary: row.RunSummary, Departures: []Departure{}}
	if err := json.Unmarshal([]byte(row.SnapshotJSON), &run.Snapshot); err != nil {
		return Run{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	err = db.conn.Select(&run.Departures, `SELECT villager_id, name, eye_color, villager_type, left_on_day
		FROM departures WHERE run_id = ? ORDER BY left_on_day, villager_id`, id)
	return run, err
}

// SaveMeta stores a key-value pair in archive metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO archive_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM archive_meta WHERE key = ?", key)
	return value, err
}
