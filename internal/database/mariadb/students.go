package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// CreateStudent inserts a student with its embedding.
func (p *Pool) CreateStudent(ctx context.Context, s database.Student, embedding []float32) error {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT INTO students (id, name, course, embedding, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := p.db.ExecContext(ctx, query, s.ID, s.Name, s.Course,
		database.EncodeEmbedding(embedding), createdAt.UTC().Truncate(time.Second))
	if err != nil {
		if isDuplicate(err) {
			return database.ErrDuplicateStudent
		}
		return fmt.Errorf("insert student %s: %w", s.ID, err)
	}
	return nil
}

// ListEnrolled returns every student with its decoded embedding in enrollment order.
func (p *Pool) ListEnrolled(ctx context.Context) ([]database.EnrolledStudent, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, course, embedding, created_at FROM students ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query enrolled students: %w", err)
	}
	defer rows.Close()

	var result []database.EnrolledStudent
	for rows.Next() {
		var (
			es   database.EnrolledStudent
			blob []byte
		)
		if err := rows.Scan(&es.ID, &es.Name, &es.Course, &blob, &es.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrolled student: %w", err)
		}
		es.Embedding, es.DecodeErr = database.DecodeEmbedding(blob)
		result = append(result, es)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrolled students: %w", err)
	}
	return result, nil
}

// ListStudents returns all students ordered by ID.
func (p *Pool) ListStudents(ctx context.Context) ([]database.Student, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, course, created_at FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var result []database.Student
	for rows.Next() {
		var s database.Student
		if err := rows.Scan(&s.ID, &s.Name, &s.Course, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return result, nil
}

// GetStudent retrieves a student by ID, returns nil if not found.
func (p *Pool) GetStudent(ctx context.Context, id string) (*database.Student, error) {
	var s database.Student
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, course, created_at FROM students WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.Course, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query student %s: %w", id, err)
	}
	return &s, nil
}

// CountStudents returns the total number of enrolled students.
func (p *Pool) CountStudents(ctx context.Context) (int, error) {
	var count int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}
