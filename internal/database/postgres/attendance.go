package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// InsertAttendance stores the record unless the student already has one for that date.
func (r *AttendanceRepository) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	res, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO attendance (student_id, timestamp, date_str, time_str)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, date_str) DO NOTHING
	`, rec.StudentID, rec.Timestamp.UTC(), rec.DateStr, rec.TimeStr)
	if err != nil {
		return false, fmt.Errorf("insert attendance for %s: %w", rec.StudentID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert attendance rows affected: %w", err)
	}
	return n > 0, nil
}

// CountAttendees returns the number of distinct students recorded on dateStr.
func (r *AttendanceRepository) CountAttendees(ctx context.Context, dateStr string) (int, error) {
	var count int
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT student_id) FROM attendance WHERE date_str = $1", dateStr,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendees on %s: %w", dateStr, err)
	}
	return count, nil
}

// ListAttendance returns the joined log, newest first.
func (r *AttendanceRepository) ListAttendance(ctx context.Context) ([]database.AttendanceEntry, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT a.id, a.timestamp, a.date_str, a.time_str, s.id, s.name, s.course
		FROM attendance a
		JOIN students s ON a.student_id = s.id
		ORDER BY a.timestamp DESC, a.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var result []database.AttendanceEntry
	for rows.Next() {
		var e database.AttendanceEntry
		if err := rows.Scan(&e.RecordID, &e.Timestamp, &e.DateStr, &e.TimeStr,
			&e.StudentID, &e.Name, &e.Course); err != nil {
			return nil, fmt.Errorf("scan attendance entry: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return result, nil
}
