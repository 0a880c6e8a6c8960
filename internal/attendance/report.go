package attendance

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Summary is the dashboard headline.
type Summary struct {
	TotalStudents  int     `json:"total_students"`
	TodayAttendees int     `json:"today_attendees"`
	AttendanceRate float64 `json:"attendance_rate"` // percent, one decimal
	Date           string  `json:"date"`
}

// reportSource is what Reporter needs from storage.
type reportSource interface {
	CountStudents(ctx context.Context) (int, error)
	database.AttendanceReader
}

// Reporter answers read-only questions about the ledger.
type Reporter struct {
	repo reportSource
	loc  *time.Location
}

// NewReporter creates a reporter. A nil location means UTC.
func NewReporter(repo reportSource, loc *time.Location) *Reporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Reporter{repo: repo, loc: loc}
}

// Summary computes totals for the day containing now.
func (r *Reporter) Summary(ctx context.Context, now time.Time) (Summary, error) {
	date := now.In(r.loc).Format(constants.DateLayout)

	total, err := r.repo.CountStudents(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	today, err := r.repo.CountAttendees(ctx, date)
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}

	return Summary{
		TotalStudents:  total,
		TodayAttendees: today,
		AttendanceRate: Rate(today, total),
		Date:           date,
	}, nil
}

// Log returns the joined attendance log, newest first.
func (r *Reporter) Log(ctx context.Context) ([]database.AttendanceEntry, error) {
	entries, err := r.repo.ListAttendance(ctx)
	if err != nil {
		return nil, fmt.Errorf("attendance log: %w", err)
	}
	return entries, nil
}

// Rate returns present/total as a percentage rounded to one decimal; 0 when total is 0.
func Rate(present, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(present)/float64(total)*1000) / 10
}

// CSVHeader is the first row of an export.
var CSVHeader = []string{"Date", "Timestamp", "Student ID", "Name", "Course"}

// WriteCSV writes entries in the given order. Timestamps are rendered in loc.
func WriteCSV(w io.Writer, entries []database.AttendanceEntry, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.DateStr,
			e.Timestamp.In(loc).Format(constants.TimestampLayout),
			e.StudentID,
			e.Name,
			e.Course,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", e.RecordID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Location is the zone dates and exported timestamps are rendered in.
func (r *Reporter) Location() *time.Location { return r.loc }
