// Package sqlite implements the attendance repository on a local SQLite file.
package sqlite

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/kozaktomas/face-attendance/internal/database"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (tables only, as created by earlier releases)
// 1 - time_str column, UNIQUE(student_id, date_str), timestamp index
const currentSchemaVersion = 1

var _ database.Repository = (*Store)(nil)

// Store provides durable storage for students and attendance.
// Uses SQLite with WAL mode so report reads do not block ledger writes.
type Store struct {
	db *sqlx.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically. loc is the attendance
// time zone; databases from earlier releases stored zone-less wall-clock
// timestamps in it, and the migration rewrites them to UTC. nil means UTC.
func Open(path string, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = time.UTC
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db, loc); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sqlx.DB, loc *time.Location) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return runMigrations(db, loc)
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sqlx.DB, loc *time.Location) error {
	var version int
	if err := db.Get(&version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db, loc); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 moves per-day dedup into the schema. Databases created before v1
// may lack time_str and may hold duplicate (student_id, date_str) rows from the
// old check-then-insert path; the earliest row of each day is kept. Zone-less
// timestamps are wall-clock times in loc and are rewritten to UTC.
func migrateToV1(db *sqlx.DB, loc *time.Location) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var hasTimeStr bool
	if err := tx.Get(&hasTimeStr,
		`SELECT COUNT(*) > 0 FROM pragma_table_info('attendance') WHERE name = 'time_str'`); err != nil {
		return fmt.Errorf("migrate to v1: inspect attendance: %w", err)
	}

	stmts := []string{}
	if !hasTimeStr {
		stmts = append(stmts,
			`ALTER TABLE attendance ADD COLUMN time_str TEXT NOT NULL DEFAULT ''`,
			`UPDATE attendance SET time_str = substr(timestamp, 12, 8) WHERE time_str = ''`,
		)
	}
	stmts = append(stmts,
		`DELETE FROM attendance WHERE id NOT IN (
			SELECT MIN(id) FROM attendance GROUP BY student_id, date_str
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS attendance_student_date_idx ON attendance(student_id, date_str)`,
		`CREATE INDEX IF NOT EXISTS attendance_timestamp_idx ON attendance(timestamp)`,
	)

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if err := rewriteLocalTimestamps(tx, loc); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return tx.Commit()
}

// Layouts of zone-less timestamps written by earlier releases.
var localTimestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// parseLocalTimestamp parses a zone-less timestamp in loc. Values that carry a
// zone or offset do not match any layout and are reported as not local.
func parseLocalTimestamp(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range localTimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// rewriteLocalTimestamps stores zone-less attendance timestamps as UTC in the
// same text form the driver writes for new rows, so ordering by the column
// stays chronological.
func rewriteLocalTimestamps(tx *sqlx.Tx, loc *time.Location) error {
	type rawRow struct {
		ID        int64  `db:"id"`
		Timestamp string `db:"ts"`
	}
	var rows []rawRow
	if err := tx.Select(&rows, `SELECT id, CAST(timestamp AS TEXT) AS ts FROM attendance`); err != nil {
		return fmt.Errorf("read legacy timestamps: %w", err)
	}

	for _, r := range rows {
		t, ok := parseLocalTimestamp(r.Timestamp, loc)
		if !ok {
			continue
		}
		utc := t.UTC().Truncate(time.Second).Format(sqlite3.SQLiteTimestampFormats[0])
		if _, err := tx.Exec(`UPDATE attendance SET timestamp = ? WHERE id = ?`, utc, r.ID); err != nil {
			return fmt.Errorf("rewrite timestamp of attendance %d: %w", r.ID, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a primary key or unique constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// schemaVersion returns PRAGMA user_version. Used by tests.
func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.GetContext(ctx, &version, "PRAGMA user_version")
	return version, err
}
