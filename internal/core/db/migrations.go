package db

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/dossier/migrations"
)

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

// migration is one embedded schema file.
type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// migrator runs a driver's embedded migrations against one database.
type migrator struct {
	db      *sqlx.DB
	dialect migrations.Dialect
	files   []migration
}

func newMigrator(db *sqlx.DB) (*migrator, error) {
	dialect, err := migrations.ForDriver(db.DriverName())
	if err != nil {
		return nil, err
	}
	files, err := readMigrations(dialect.FS, dialect.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	if _, err := db.Exec(dialect.TrackingTable); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	return &migrator{db: db, dialect: dialect, files: files}, nil
}

// MigrateUp applies every pending migration in file name order, each in its
// own transaction. It refuses to run when an applied migration was modified
// or removed from the embedded set.
func MigrateUp(db *sqlx.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	applied, err := m.applied()
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	if err := m.verify(applied); err != nil {
		return fmt.Errorf("migration checksum validation failed: %w", err)
	}

	for _, f := range m.files {
		if _, ok := applied[f.ID]; ok {
			continue
		}
		if err := m.apply(f); err != nil {
			return err
		}
	}
	return nil
}

// MigrateStatus reports every embedded migration, applied or pending.
func MigrateStatus(db *sqlx.DB) ([]MigrationStatus, error) {
	m, err := newMigrator(db)
	if err != nil {
		return nil, err
	}
	applied, err := m.applied()
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}

	statuses := make([]MigrationStatus, 0, len(m.files))
	for _, f := range m.files {
		if s, ok := applied[f.ID]; ok {
			statuses = append(statuses, s)
			continue
		}
		statuses = append(statuses, MigrationStatus{ID: f.ID, Checksum: f.Checksum})
	}
	return statuses, nil
}

// applied reads the tracking table keyed by migration id.
func (m *migrator) applied() (map[string]MigrationStatus, error) {
	rows, err := m.db.Queryx("SELECT migration_id, checksum, applied_at, execution_ms FROM migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]MigrationStatus)
	for rows.Next() {
		var (
			s  MigrationStatus
			at any
		)
		if err := rows.Scan(&s.ID, &s.Checksum, &at, &s.ExecutionMs); err != nil {
			return nil, err
		}
		s.AppliedAt = parseAppliedAt(at)
		s.Applied = true
		out[s.ID] = s
	}
	return out, rows.Err()
}

func (m *migrator) verify(applied map[string]MigrationStatus) error {
	embedded := make(map[string]string, len(m.files))
	for _, f := range m.files {
		embedded[f.ID] = f.Checksum
	}
	for id, s := range applied {
		want, ok := embedded[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if s.Checksum != want {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, want, s.Checksum)
		}
	}
	return nil
}

// apply runs one migration and records it in the same transaction.
func (m *migrator) apply(f migration) error {
	start := time.Now()
	tx, err := m.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %s: %w", f.ID, err)
	}

	// lib/pq rejects multiple statements in one Exec.
	for _, stmt := range strings.Split(f.SQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %s: %w", f.ID, err)
		}
	}

	_, err = tx.Exec(m.dialect.Record, f.ID, f.Checksum, m.dialect.AppliedAt(time.Now()), time.Since(start).Milliseconds())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %s: %w", f.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", f.ID, err)
	}
	return nil
}

// readMigrations lists the .sql files under dir sorted by name, each with
// its SHA256 checksum.
func readMigrations(fsys fs.FS, dir string) ([]migration, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}

	files := make([]migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		sum := sha256.Sum256(content)
		files = append(files, migration{
			ID:       path.Base(name),
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(content),
		})
	}
	return files, nil
}

// parseAppliedAt normalizes applied_at: SQLite stores RFC3339 text,
// PostgreSQL returns a timestamp.
func parseAppliedAt(v any) *time.Time {
	var text string
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		text = t
	case []byte:
		text = string(t)
	default:
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return nil
	}
	return &parsed
}
