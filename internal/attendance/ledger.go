// Package attendance records sightings in the durable ledger and reports on it.
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Outcome of a Register call.
type Outcome int

const (
	// Skipped means the student already had a record for that date.
	Skipped Outcome = iota
	// Recorded means a new record was written.
	Recorded
)

func (o Outcome) String() string {
	if o == Recorded {
		return "recorded"
	}
	return "skipped"
}

// WriteError is returned when the ledger could not be written.
type WriteError struct {
	StudentID string
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("record attendance for %s: %v", e.StudentID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Ledger writes at most one record per student per calendar day.
// Days are evaluated in the configured location.
type Ledger struct {
	repo database.AttendanceWriter
	loc  *time.Location
}

// NewLedger creates a ledger. A nil location means UTC.
func NewLedger(repo database.AttendanceWriter, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{repo: repo, loc: loc}
}

// Location returns the time zone used for date and time columns.
func (l *Ledger) Location() *time.Location { return l.loc }

// Register records studentID as present at now unless a record for the same
// date already exists. Safe for concurrent use; the storage unique constraint
// decides between racing writers.
func (l *Ledger) Register(ctx context.Context, studentID string, now time.Time) (Outcome, error) {
	rec := NewRecord(studentID, now, l.loc)

	inserted, err := l.repo.InsertAttendance(ctx, rec)
	if err != nil {
		return Skipped, &WriteError{StudentID: studentID, Err: err}
	}
	if inserted {
		return Recorded, nil
	}
	return Skipped, nil
}

// NewRecord derives the stored columns for a sighting at now.
func NewRecord(studentID string, now time.Time, loc *time.Location) database.AttendanceRecord {
	local := now.In(loc)
	return database.AttendanceRecord{
		StudentID: studentID,
		Timestamp: now.UTC().Truncate(time.Second),
		DateStr:   local.Format(constants.DateLayout),
		TimeStr:   local.Format(constants.TimeLayout),
	}
}
