package mariadb

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// InsertAttendance stores the record unless the student already has one for that date.
// The no-op update reports zero affected rows for an existing key.
func (p *Pool) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	query := `
		INSERT INTO attendance (student_id, timestamp, date_str, time_str)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id
	`
	res, err := p.db.ExecContext(ctx, query,
		rec.StudentID, rec.Timestamp.UTC().Truncate(time.Second), rec.DateStr, rec.TimeStr)
	if err != nil {
		return false, fmt.Errorf("insert attendance for %s: %w", rec.StudentID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert attendance rows affected: %w", err)
	}
	return n == 1, nil
}

// CountAttendees returns the number of distinct students recorded on dateStr.
func (p *Pool) CountAttendees(ctx context.Context, dateStr string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT student_id) FROM attendance WHERE date_str = ?`, dateStr,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendees on %s: %w", dateStr, err)
	}
	return count, nil
}

// ListAttendance returns the joined log, newest first.
func (p *Pool) ListAttendance(ctx context.Context) ([]database.AttendanceEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
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
