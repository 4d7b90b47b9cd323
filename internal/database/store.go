// Package database provides storage backends for the schedule service.
package database

import (
	"github.com/ArturZurawski/ecoharmonogram/internal/model"
)

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// Location operations. Location returns (nil, nil) when no location
	// has been configured yet.
	Location() (*model.Location, error)
	SaveLocation(loc *model.Location) error

	// Monitored waste type ids, the subset included in cross-type
	// aggregate computations.
	MonitoredTypes() ([]string, error)
	SetMonitoredTypes(ids []string) error

	// Last good snapshot, used for warm starts. Snapshot returns
	// (nil, nil) when none has been persisted.
	Snapshot() (*model.ScheduleSnapshot, error)
	SaveSnapshot(snap *model.ScheduleSnapshot) error

	// Settings operations. GetSetting returns ("", nil) for a missing key.
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}
