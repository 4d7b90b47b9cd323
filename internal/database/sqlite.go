// Package database provides SQLite storage for the schedule service.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ArturZurawski/ecoharmonogram/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
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

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return "SQLite"
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS location (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		community_id TEXT NOT NULL,
		town_id TEXT NOT NULL,
		town_name TEXT DEFAULT '',
		period_id TEXT DEFAULT '',
		period_start TEXT DEFAULT '',
		period_end TEXT DEFAULT '',
		period_change_date TEXT DEFAULT '',
		street_name TEXT NOT NULL,
		street_choosed_ids TEXT DEFAULT '',
		street_id TEXT NOT NULL,
		number TEXT NOT NULL,
		group_name TEXT DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS monitored_types (
		type_id TEXT PRIMARY KEY
	);
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL,
		retrieved_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// --- Location Methods ---

// Location returns the configured location, or nil if none is stored.
func (db *DB) Location() (*model.Location, error) {
	var loc model.Location
	err := db.conn.QueryRow(`SELECT community_id, town_id, town_name, period_id, period_start,
		period_end, period_change_date, street_name, street_choosed_ids, street_id, number, group_name
		FROM location WHERE id = 1`).Scan(
		&loc.CommunityID, &loc.TownID, &loc.TownName, &loc.PeriodID, &loc.PeriodStart,
		&loc.PeriodEnd, &loc.PeriodChangeDate, &loc.StreetName, &loc.StreetChoosedIDs,
		&loc.StreetID, &loc.Number, &loc.GroupName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// SaveLocation stores the location, replacing any previous one.
func (db *DB) SaveLocation(loc *model.Location) error {
	_, err := db.conn.Exec(`
		INSERT INTO location (id, community_id, town_id, town_name, period_id, period_start,
			period_end, period_change_date, street_name, street_choosed_ids, street_id, number, group_name)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			community_id = excluded.community_id,
			town_id = excluded.town_id,
			town_name = excluded.town_name,
			period_id = excluded.period_id,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			period_change_date = excluded.period_change_date,
			street_name = excluded.street_name,
			street_choosed_ids = excluded.street_choosed_ids,
			street_id = excluded.street_id,
			number = excluded.number,
			group_name = excluded.group_name`,
		loc.CommunityID, loc.TownID, loc.TownName, loc.PeriodID, loc.PeriodStart,
		loc.PeriodEnd, loc.PeriodChangeDate, loc.StreetName, loc.StreetChoosedIDs,
		loc.StreetID, loc.Number, loc.GroupName)
	return err
}

// --- Monitored Type Methods ---

// MonitoredTypes returns the stored monitored waste type id set.
func (db *DB) MonitoredTypes() ([]string, error) {
	rows, err := db.conn.Query("SELECT type_id FROM monitored_types ORDER BY type_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetMonitoredTypes replaces the monitored waste type id set.
func (db *DB) SetMonitoredTypes(ids []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM monitored_types"); err != nil {
		tx.Rollback()
		return err
	}
	for _, id := range ids {
		if _, err := tx.Exec("INSERT OR IGNORE INTO monitored_types (type_id) VALUES (?)", id); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// --- Snapshot Methods ---

// Snapshot returns the last persisted snapshot, or nil if none exists.
func (db *DB) Snapshot() (*model.ScheduleSnapshot, error) {
	var data string
	err := db.conn.QueryRow("SELECT data FROM snapshots WHERE id = 1").Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap model.ScheduleSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// SaveSnapshot stores the snapshot, replacing any previous one.
func (db *DB) SaveSnapshot(snap *model.ScheduleSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO snapshots (id, data, retrieved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, retrieved_at = excluded.retrieved_at`,
		string(data), snap.RetrievedAt.UTC().Format(time.RFC3339))
	return err
}

// --- Settings Methods ---

// GetSetting retrieves a setting value, or "" when the key is unset.
func (db *DB) GetSetting(key string) (string, error) {
	var val string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// SetSetting saves a setting.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec("INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?", key, value, value)
	return err
}
