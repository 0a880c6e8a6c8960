package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

type studentRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Course    string    `db:"course"`
	Embedding []byte    `db:"embedding"`
	CreatedAt time.Time `db:"created_at"`
}

func (r studentRow) student() database.Student {
	return database.Student{ID: r.ID, Name: r.Name, Course: r.Course, CreatedAt: r.CreatedAt}
}

// CreateStudent inserts a student with its embedding.
func (s *Store) CreateStudent(ctx context.Context, st database.Student, embedding []float32) error {
	createdAt := st.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO students (id, name, course, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, st.ID, st.Name, st.Course, database.EncodeEmbedding(embedding), createdAt.UTC().Truncate(time.Second))
	if err != nil {
		if isUniqueViolation(err) {
			return database.ErrDuplicateStudent
		}
		return fmt.Errorf("insert student %s: %w", st.ID, err)
	}
	return nil
}

// ListEnrolled returns every student with its decoded embedding in enrollment order.
func (s *Store) ListEnrolled(ctx context.Context) ([]database.EnrolledStudent, error) {
	var rows []studentRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, course, embedding, created_at
		FROM students
		ORDER BY rowid
	`); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}

	result := make([]database.EnrolledStudent, 0, len(rows))
	for _, r := range rows {
		es := database.EnrolledStudent{Student: r.student()}
		es.Embedding, es.DecodeErr = database.DecodeEmbedding(r.Embedding)
		result = append(result, es)
	}
	return result, nil
}

// ListStudents returns all students ordered by ID.
func (s *Store) ListStudents(ctx context.Context) ([]database.Student, error) {
	var rows []studentRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, course, created_at
		FROM students
		ORDER BY id
	`); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	result := make([]database.Student, len(rows))
	for i, r := range rows {
		result[i] = r.student()
	}
	return result, nil
}

// GetStudent retrieves a student by ID, returns nil if not found.
func (s *Store) GetStudent(ctx context.Context, id string) (*database.Student, error) {
	var r studentRow
	err := s.db.GetContext(ctx, &r, `
		SELECT id, name, course, created_at
		FROM students
		WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student %s: %w", id, err)
	}
	st := r.student()
	return &st, nil
}

// CountStudents returns the total number of enrolled students.
func (s *Store) CountStudents(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM students`); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}
