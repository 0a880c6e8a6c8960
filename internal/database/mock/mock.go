// Package mock provides an in-memory implementation of database.Repository for testing.
package mock

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Repository is an in-memory database.Repository with per-method error injection.
type Repository struct {
	mu         sync.RWMutex
	students   []database.EnrolledStudent
	attendance []database.AttendanceRecord
	nextID     int64

	// Error injection
	ListEnrolledError     error
	ListStudentsError     error
	GetStudentError       error
	CountStudentsError    error
	CreateStudentError    error
	InsertAttendanceError error
	CountAttendeesError   error
	ListAttendanceError   error

	Closed bool
}

var _ database.Repository = (*Repository)(nil)

// NewRepository creates an empty mock repository
func NewRepository() *Repository {
	return &Repository{nextID: 1}
}

// AddEnrolled stores a student row as-is, including a DecodeErr to simulate a corrupt blob.
func (m *Repository) AddEnrolled(es database.EnrolledStudent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students = append(m.students, es)
}

// Records returns a copy of the stored attendance records in insertion order.
func (m *Repository) Records() []database.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.attendance)
}

func (m *Repository) findStudent(id string) *database.EnrolledStudent {
	for i := range m.students {
		if m.students[i].ID == id {
			return &m.students[i]
		}
	}
	return nil
}

// CreateStudent stores a student, returning ErrDuplicateStudent for a taken ID
func (m *Repository) CreateStudent(_ context.Context, s database.Student, embedding []float32) error {
	if m.CreateStudentError != nil {
		return m.CreateStudentError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findStudent(s.ID) != nil {
		return database.ErrDuplicateStudent
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	m.students = append(m.students, database.EnrolledStudent{Student: s, Embedding: slices.Clone(embedding)})
	return nil
}

// ListEnrolled returns all students in insertion order
func (m *Repository) ListEnrolled(_ context.Context) ([]database.EnrolledStudent, error) {
	if m.ListEnrolledError != nil {
		return nil, m.ListEnrolledError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.EnrolledStudent, len(m.students))
	for i, s := range m.students {
		s.Embedding = slices.Clone(s.Embedding)
		out[i] = s
	}
	return out, nil
}

// ListStudents returns all students ordered by ID
func (m *Repository) ListStudents(_ context.Context) ([]database.Student, error) {
	if m.ListStudentsError != nil {
		return nil, m.ListStudentsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Student, len(m.students))
	for i, s := range m.students {
		out[i] = s.Student
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetStudent retrieves a student by ID, nil if missing
func (m *Repository) GetStudent(_ context.Context, id string) (*database.Student, error) {
	if m.GetStudentError != nil {
		return nil, m.GetStudentError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if es := m.findStudent(id); es != nil {
		s := es.Student
		return &s, nil
	}
	return nil, nil
}

// CountStudents returns the number of students
func (m *Repository) CountStudents(_ context.Context) (int, error) {
	if m.CountStudentsError != nil {
		return 0, m.CountStudentsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students), nil
}

// InsertAttendance stores the record unless (StudentID, DateStr) is already present
func (m *Repository) InsertAttendance(_ context.Context, rec database.AttendanceRecord) (bool, error) {
	if m.InsertAttendanceError != nil {
		return false, m.InsertAttendanceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.attendance {
		if r.StudentID == rec.StudentID && r.DateStr == rec.DateStr {
			return false, nil
		}
	}
	rec.ID = m.nextID
	m.nextID++
	m.attendance = append(m.attendance, rec)
	return true, nil
}

// CountAttendees returns the number of distinct students on dateStr
func (m *Repository) CountAttendees(_ context.Context, dateStr string) (int, error) {
	if m.CountAttendeesError != nil {
		return 0, m.CountAttendeesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, r := range m.attendance {
		if r.DateStr == dateStr {
			seen[r.StudentID] = struct{}{}
		}
	}
	return len(seen), nil
}

// ListAttendance returns the joined log ordered by timestamp desc, id desc
func (m *Repository) ListAttendance(_ context.Context) ([]database.AttendanceEntry, error) {
	if m.ListAttendanceError != nil {
		return nil, m.ListAttendanceError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.AttendanceEntry
	for _, r := range m.attendance {
		s := m.findStudent(r.StudentID)
		if s == nil {
			continue
		}
		out = append(out, database.AttendanceEntry{
			RecordID:  r.ID,
			Timestamp: r.Timestamp,
			DateStr:   r.DateStr,
			TimeStr:   r.TimeStr,
			StudentID: s.ID,
			Name:      s.Name,
			Course:    s.Course,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].RecordID > out[j].RecordID
	})
	return out, nil
}

// Close marks the repository closed
func (m *Repository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}
