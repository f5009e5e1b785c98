// Package persistence stores vital records: SQLite for the run database,
// CSV and zstd-compressed JSONL for export and import.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/tausaga/internal/demography"
	"github.com/talgya/tausaga/internal/history"
)

var ErrNoRecord = errors.New("persistence: no vital record stored")

// DB wraps a SQLite connection holding vital records of every island.
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
	CREATE TABLE IF NOT EXISTS vital_events (
		island TEXT NOT NULL,
		year INTEGER NOT NULL,
		person_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		moment REAL NOT NULL,
		sex INTEGER,
		PRIMARY KEY (island, year, person_id, seq)
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vital_island_year ON vital_events(island, year);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type vitalRow struct {
	Island   string        `db:"island"`
	Year     int           `db:"year"`
	PersonID string        `db:"person_id"`
	Seq      int           `db:"seq"`
	Kind     string        `db:"kind"`
	Moment   float64       `db:"moment"`
	Sex      sql.NullInt64 `db:"sex"`
}

// SaveRecord writes an island's vital record (full replace).
func (db *DB) SaveRecord(island string, rec history.Record) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM vital_events WHERE island = ?", island); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO vital_events
		(island, year, person_id, seq, kind, moment, sex)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for year, byID := range rec {
		for id, events := range byID {
			for seq, ev := range events {
				var sex sql.NullInt64
				if ev.Sex != nil {
					sex = sql.NullInt64{Int64: int64(*ev.Sex), Valid: true}
				}
				if _, err := stmt.Exec(island, year, id.String(), seq, ev.Kind.String(), ev.Moment, sex); err != nil {
					return fmt.Errorf("insert %s event of %s: %w", ev.Kind, id, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("vital record saved", "island", island, "years", len(rec), "events", rec.Len())
	return nil
}

// LoadRecord reads an island's vital record.
func (db *DB) LoadRecord(island string) (history.Record, error) {
	var rows []vitalRow
	err := db.conn.Select(&rows, `SELECT island, year, person_id, seq, kind, moment, sex
		FROM vital_events WHERE island = ? ORDER BY year, person_id, seq`, island)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", island, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRecord, island)
	}
	rec := make(history.Record)
	for _, r := range rows {
		ev, err := r.event()
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", island, err)
		}
		rec.Add(ev)
	}
	return rec, nil
}

func (r vitalRow) event() (history.Event, error) {
	id, err := uuid.Parse(r.PersonID)
	if err != nil {
		return history.Event{}, fmt.Errorf("person id %q: %w", r.PersonID, err)
	}
	kind, err := history.ParseKind(r.Kind)
	if err != nil {
		return history.Event{}, err
	}
	ev := history.Event{Kind: kind, ID: id, Year: r.Year, Moment: r.Moment}
	if r.Sex.Valid {
		sex := demography.Sex(r.Sex.Int64)
		ev.Sex = &sex
	}
	return ev, nil
}

// HasRecord reports whether a vital record is stored for island.
func (db *DB) HasRecord(island string) (bool, error) {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM vital_events WHERE island = ?", island); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SaveMeta stores a key-value pair in run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}
