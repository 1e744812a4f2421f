// Package migrations embeds the condition store schema for each supported
// database driver.
package migrations

import (
	"embed"
	"fmt"
	"time"
)

//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS

// Dialect is everything the migration runner needs to know about a driver.
// Condition bodies are JSONB on PostgreSQL and json_valid-checked TEXT on
// SQLite; applied_at follows the same split.
type Dialect struct {
	FS  embed.FS
	Dir string

	// TrackingTable creates the migrations table. It must agree with the
	// definition in 001_initial_schema.sql.
	TrackingTable string

	// Record inserts one row into the tracking table.
	Record string

	// TextTimestamps stores applied_at as RFC3339 text instead of a
	// native timestamp.
	TextTimestamps bool
}

// AppliedAt encodes a migration's apply time for Record.
func (d Dialect) AppliedAt(t time.Time) any {
	t = t.UTC()
	if d.TextTimestamps {
		return t.Format(time.RFC3339)
	}
	return t
}

var (
	sqlite = Dialect{
		FS:  SqliteMigrations,
		Dir: "sqlite",
		TrackingTable: `CREATE TABLE IF NOT EXISTS migrations (
	migration_id TEXT PRIMARY KEY,
	checksum TEXT NOT NULL,
	applied_at TEXT NOT NULL,
	execution_ms INTEGER NOT NULL,
	CHECK (applied_at LIKE '____-__-__T__:__:__Z')
)`,
		Record:         "INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)",
		TextTimestamps: true,
	}

	postgres = Dialect{
		FS:  PostgresMigrations,
		Dir: "postgres",
		TrackingTable: `CREATE TABLE IF NOT EXISTS migrations (
	migration_id TEXT PRIMARY KEY,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
	execution_ms INTEGER NOT NULL
)`,
		Record: "INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES ($1, $2, $3, $4)",
	}
)

// ForDriver returns the dialect for a sqlx driver name.
func ForDriver(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3":
		return sqlite, nil
	case "postgres":
		return postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver: %s", driver)
	}
}
