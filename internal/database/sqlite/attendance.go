package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

type entryRow struct {
	RecordID  int64     `db:"record_id"`
	Timestamp time.Time `db:"timestamp"`
	DateStr   string    `db:"date_str"`
	TimeStr   string    `db:"time_str"`
	StudentID string    `db:"student_id"`
	Name      string    `db:"name"`
	Course    string    `db:"course"`
}

// InsertAttendance stores the record unless the student already has one for that date.
func (s *Store) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (student_id, timestamp, date_str, time_str)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (student_id, date_str) DO NOTHING
	`, rec.StudentID, rec.Timestamp.UTC().Truncate(time.Second), rec.DateStr, rec.TimeStr)
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
func (s *Store) CountAttendees(ctx context.Context, dateStr string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(DISTINCT student_id) FROM attendance WHERE date_str = ?
	`, dateStr); err != nil {
		return 0, fmt.Errorf("count attendees on %s: %w", dateStr, err)
	}
	return count, nil
}

// ListAttendance returns the joined log, newest first.
func (s *Store) ListAttendance(ctx context.Context) ([]database.AttendanceEntry, error) {
	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id AS record_id, a.timestamp, a.date_str, a.time_str,
		       s.id AS student_id, s.name, s.course
		FROM attendance a
		JOIN students s ON a.student_id = s.id
		ORDER BY a.timestamp DESC, a.id DESC
	`); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}

	result := make([]database.AttendanceEntry, len(rows))
	for i, r := range rows {
		result[i] = database.AttendanceEntry(r)
	}
	return result, nil
}
