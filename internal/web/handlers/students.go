package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
)

// Enroller registers new students.
type Enroller interface {
	Enroll(ctx context.Context, req enrollment.Request) (*database.Student, error)
}

// StudentsHandler handles student listing and enrollment.
type StudentsHandler struct {
	repo     database.StudentReader
	enroller Enroller
	logger   *slog.Logger
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(repo database.StudentReader, enroller Enroller, logger *slog.Logger) *StudentsHandler {
	return &StudentsHandler{repo: repo, enroller: enroller, logger: logger}
}

// List returns all enrolled students ordered by ID.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := h.repo.ListStudents(r.Context())
	if err != nil {
		h.logger.Error("list students failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list students")
		return
	}
	if students == nil {
		students = []database.Student{}
	}
	respondJSON(w, http.StatusOK, students)
}

// Create enrolls a student from a multipart form with student_id, name, course and file.
func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	student, err := h.enroller.Enroll(r.Context(), enrollment.Request{
		ID:     r.FormValue("student_id"),
		Name:   r.FormValue("name"),
		Course: r.FormValue("course"),
		Image:  data,
	})
	if err != nil {
		var enrollErr *enrollment.Error
		if errors.As(err, &enrollErr) {
			h.logger.Info("enrollment rejected",
				"student_id", sanitizeForLog(r.FormValue("student_id")), "kind", enrollErr.Kind.String())
			respondError(w, statusForKind(enrollErr.Kind), enrollErr.Error())
			return
		}
		h.logger.Error("enrollment failed", "error", err)
		respondError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}

	respondJSON(w, http.StatusCreated, student)
}

func statusForKind(kind enrollment.Kind) int {
	switch kind {
	case enrollment.NoFaceDetected:
		return http.StatusUnprocessableEntity
	case enrollment.DuplicateIdentity:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
