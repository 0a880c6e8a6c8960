package database

import (
	"context"
	"errors"
)

// ErrDuplicateStudent is returned by CreateStudent when the student ID is already taken.
var ErrDuplicateStudent = errors.New("student already exists")

// StudentReader provides read-only access to enrolled students
type StudentReader interface {
	// ListEnrolled returns every student with its decoded embedding.
	// A corrupt embedding does not fail the call; it is reported in EnrolledStudent.DecodeErr.
	ListEnrolled(ctx context.Context) ([]EnrolledStudent, error)
	// ListStudents returns all students ordered by ID
	ListStudents(ctx context.Context) ([]Student, error)
	// GetStudent retrieves a student by ID, returns nil if not found
	GetStudent(ctx context.Context, id string) (*Student, error)
	// CountStudents returns the total number of enrolled students
	CountStudents(ctx context.Context) (int, error)
}

// StudentWriter provides write access to students
type StudentWriter interface {
	StudentReader

	// CreateStudent inserts a student with its embedding.
	// Returns ErrDuplicateStudent if the ID exists.
	CreateStudent(ctx context.Context, s Student, embedding []float32) error
}

// AttendanceReader provides read access to the attendance ledger
type AttendanceReader interface {
	// CountAttendees returns the number of distinct students recorded on a date (YYYY-MM-DD)
	CountAttendees(ctx context.Context, dateStr string) (int, error)
	// ListAttendance returns the joined log ordered by timestamp descending
	ListAttendance(ctx context.Context) ([]AttendanceEntry, error)
}

// AttendanceWriter provides write access to the attendance ledger
type AttendanceWriter interface {
	AttendanceReader

	// InsertAttendance stores the record unless one already exists for the same
	// student and date. Returns true when a row was inserted.
	InsertAttendance(ctx context.Context, rec AttendanceRecord) (bool, error)
}

// Repository is the full storage backend used by the application.
type Repository interface {
	StudentWriter
	AttendanceWriter

	Close() error
}
