package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// StudentRepository provides PostgreSQL-backed student storage
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// CreateStudent inserts a student with its embedding.
func (r *StudentRepository) CreateStudent(ctx context.Context, s database.Student, embedding []float32) error {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO students (id, name, course, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, s.Name, s.Course, pgvector.NewVector(embedding), createdAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return database.ErrDuplicateStudent
		}
		return fmt.Errorf("insert student %s: %w", s.ID, err)
	}
	return nil
}

// ListEnrolled returns every student with its embedding in enrollment order.
func (r *StudentRepository) ListEnrolled(ctx context.Context) ([]database.EnrolledStudent, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, name, course, embedding::text, created_at
		FROM students
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query enrolled students: %w", err)
	}
	defer rows.Close()

	var result []database.EnrolledStudent
	for rows.Next() {
		var (
			es  database.EnrolledStudent
			raw string
		)
		if err := rows.Scan(&es.ID, &es.Name, &es.Course, &raw, &es.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrolled student: %w", err)
		}
		es.Embedding, es.DecodeErr = decodeVector(raw)
		result = append(result, es)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrolled students: %w", err)
	}
	return result, nil
}

// decodeVector parses the text form of a pgvector value.
func decodeVector(raw string) ([]float32, error) {
	var vec pgvector.Vector
	if err := vec.Scan(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrCorruptEmbedding, err)
	}
	values := vec.Slice()
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty vector", database.ErrCorruptEmbedding)
	}
	for i, v := range values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("%w: non-finite value at %d", database.ErrCorruptEmbedding, i)
		}
	}
	return values, nil
}

// ListStudents returns all students ordered by ID.
func (r *StudentRepository) ListStudents(ctx context.Context) ([]database.Student, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, name, course, created_at
		FROM students
		ORDER BY id
	`)
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
func (r *StudentRepository) GetStudent(ctx context.Context, id string) (*database.Student, error) {
	var s database.Student
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT id, name, course, created_at FROM students WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Course, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query student %s: %w", id, err)
	}
	return &s, nil
}

// CountStudents returns the total number of enrolled students.
func (r *StudentRepository) CountStudents(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM students").Scan(&count); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}
