// Package enrollment registers new students from a photo.
package enrollment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
)

// maxIDLength matches the widest student id column across backends.
const maxIDLength = 64

// Request is one enrollment.
type Request struct {
	ID     string
	Name   string
	Course string
	Image  []byte
}

// Reloader refreshes the in-memory gallery after a write.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// Service enrolls students.
type Service struct {
	repo     database.StudentWriter
	detector facedetect.Detector
	gallery  Reloader
	archive  Archive // optional
	dim      int
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates the service. archive may be nil. dim is the expected
// embedding length; 0 accepts whatever the detector produces.
func NewService(repo database.StudentWriter, detector facedetect.Detector, gallery Reloader,
	archive Archive, dim int, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		detector: detector,
		gallery:  gallery,
		archive:  archive,
		dim:      dim,
		logger:   logger,
		now:      time.Now,
	}
}

// WithoutReload returns a copy of the service that leaves the gallery alone
// after enrolling. Batch writers with no live matcher use it.
func (s *Service) WithoutReload() *Service {
	c := *s
	c.gallery = nil
	return &c
}

// Enroll validates the request, extracts the face embedding from the photo,
// stores the student and refreshes the gallery. When several faces are present
// the first one reported by the detector is used.
func (s *Service) Enroll(ctx context.Context, req Request) (*database.Student, error) {
	student, err := validate(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetStudent(ctx, student.ID)
	if err != nil {
		return nil, fmt.Errorf("check student %s: %w", student.ID, err)
	}
	if existing != nil {
		return nil, newError(DuplicateIdentity, database.ErrDuplicateStudent, "student ID %s already exists", student.ID)
	}

	img, _, err := image.Decode(bytes.NewReader(req.Image))
	if err != nil {
		return nil, newError(InvalidImage, err, "could not decode image")
	}

	faces, err := s.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	if len(faces) == 0 {
		return nil, newError(NoFaceDetected, nil, "no face detected in image")
	}
	embedding := faces[0].Embedding
	if s.dim > 0 && len(embedding) != s.dim {
		return nil, fmt.Errorf("detector returned %d-dimensional embedding, expected %d", len(embedding), s.dim)
	}
	if len(faces) > 1 {
		s.logger.Warn("multiple faces in enrollment photo, using the first",
			"student_id", student.ID, "faces", len(faces))
	}

	student.CreatedAt = s.now().UTC().Truncate(time.Second)
	if err := s.repo.CreateStudent(ctx, student, embedding); err != nil {
		if errors.Is(err, database.ErrDuplicateStudent) {
			return nil, newError(DuplicateIdentity, err, "student ID %s already exists", student.ID)
		}
		return nil, fmt.Errorf("store student %s: %w", student.ID, err)
	}
	s.logger.Info("student enrolled", "student_id", student.ID, "name", student.Name)

	if s.archive != nil {
		if err := s.archive.Put(ctx, student.ID, req.Image); err != nil {
			s.logger.Warn("failed to archive enrollment photo", "student_id", student.ID, "error", err)
		}
	}

	if s.gallery == nil {
		return &student, nil
	}
	// The student is stored; a failed reload is picked up by the next one.
	if _, err := s.gallery.Reload(ctx); err != nil {
		s.logger.Error("gallery reload after enrollment failed", "student_id", student.ID, "error", err)
	}
	return &student, nil
}

func validate(req Request) (database.Student, error) {
	s := database.Student{
		ID:     strings.TrimSpace(req.ID),
		Name:   strings.TrimSpace(req.Name),
		Course: strings.TrimSpace(req.Course),
	}
	switch {
	case s.ID == "":
		return s, newError(InvalidRequest, nil, "student_id is required")
	case len(s.ID) > maxIDLength:
		return s, newError(InvalidRequest, nil, "student_id must be at most %d characters", maxIDLength)
	case s.Name == "":
		return s, newError(InvalidRequest, nil, "name is required")
	case s.Course == "":
		return s, newError(InvalidRequest, nil, "course is required")
	case len(req.Image) == 0:
		return s, newError(InvalidRequest, nil, "file is required")
	}
	return s, nil
}
