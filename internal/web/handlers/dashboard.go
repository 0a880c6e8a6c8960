package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Reporter is the read side of the attendance ledger.
type Reporter interface {
	Summary(ctx context.Context, now time.Time) (attendance.Summary, error)
	Log(ctx context.Context) ([]database.AttendanceEntry, error)
	Location() *time.Location
}

// DashboardHandler serves attendance summaries and exports.
type DashboardHandler struct {
	reporter Reporter
	logger   *slog.Logger
	now      func() time.Time
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(reporter Reporter, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{reporter: reporter, logger: logger, now: time.Now}
}

// DashboardResponse is the summary plus the full attendance log.
type DashboardResponse struct {
	Summary attendance.Summary         `json:"summary"`
	Records []database.AttendanceEntry `json:"records"`
}

// Dashboard returns today's summary and the log, newest first.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reporter.Summary(r.Context(), h.now())
	if err != nil {
		h.logger.Error("dashboard summary failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}
	records, err := h.reporter.Log(r.Context())
	if err != nil {
		h.logger.Error("dashboard log failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}
	if records == nil {
		records = []database.AttendanceEntry{}
	}
	respondJSON(w, http.StatusOK, DashboardResponse{Summary: summary, Records: records})
}

// Stats returns only today's summary.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reporter.Summary(r.Context(), h.now())
	if err != nil {
		h.logger.Error("stats failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Export downloads the attendance log as CSV.
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	records, err := h.reporter.Log(r.Context())
	if err != nil {
		h.logger.Error("export failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}

	// Render fully before writing headers so a failure can still become a 500.
	var buf bytes.Buffer
	if err := attendance.WriteCSV(&buf, records, h.reporter.Location()); err != nil {
		h.logger.Error("export encoding failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", constants.ExportFilename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
