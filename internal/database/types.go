package database

import (
	"time"
)

// Student is an enrolled identity. Immutable once created.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Course    string    `json:"course"`
	CreatedAt time.Time `json:"created_at"`
}

// EnrolledStudent pairs a student with the decoded face embedding.
// DecodeErr is set when the stored embedding could not be decoded; Embedding is nil then.
type EnrolledStudent struct {
	Student
	Embedding []float32
	DecodeErr error
}

// AttendanceRecord is one row of the attendance ledger.
// At most one record exists per (StudentID, DateStr).
type AttendanceRecord struct {
	ID        int64
	StudentID string
	Timestamp time.Time // stored in UTC
	DateStr   string    // YYYY-MM-DD in the attendance time zone
	TimeStr   string    // HH:MM:SS in the attendance time zone
}

// AttendanceEntry is an attendance record joined with its student.
type AttendanceEntry struct {
	RecordID  int64     `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
	DateStr   string    `json:"date"`
	TimeStr   string    `json:"time"`
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	Course    string    `json:"course"`
}
