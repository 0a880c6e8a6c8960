package enrollment

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

type fakeDetector struct {
	faces []facedetect.Face
	err   error
	calls int
}

func (d *fakeDetector) Detect(_ context.Context, _ image.Image) ([]facedetect.Face, error) {
	d.calls++
	return d.faces, d.err
}

type fakeArchive struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (a *fakeArchive) Put(_ context.Context, studentID string, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, studentID)
	return a.err
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func face(values ...float32) facedetect.Face {
	return facedetect.Face{BBox: []float64{0, 0, 4, 4}, Embedding: values, Score: 1}
}

func newService(repo *mock.Repository, det facedetect.Detector, archive Archive) (*Service, *gallery.Store) {
	logger := logging.Discard()
	g := gallery.NewStore(repo, gallery.Options{Dim: 3, Index: gallery.IndexLinear}, logger)
	svc := NewService(repo, det, g, archive, 3, logger)
	svc.now = func() time.Time { return time.Date(2026, 1, 15, 9, 0, 0, 500, time.UTC) }
	return svc, g
}

func TestEnroll_Success(t *testing.T) {
	repo := mock.NewRepository()
	det := &fakeDetector{faces: []facedetect.Face{face(0.1, 0.2, 0.3)}}
	archive := &fakeArchive{}
	svc, g := newService(repo, det, archive)

	student, err := svc.Enroll(context.Background(), Request{
		ID: " S1 ", Name: "Asha Rao", Course: "CS", Image: pngBytes(t),
	})
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if student.ID != "S1" {
		t.Errorf("expected trimmed ID S1, got %q", student.ID)
	}
	if !student.CreatedAt.Equal(time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected CreatedAt %v", student.CreatedAt)
	}

	stored, _ := repo.GetStudent(context.Background(), "S1")
	if stored == nil || stored.Name != "Asha Rao" {
		t.Fatalf("student not stored: %+v", stored)
	}
	if g.Snapshot().Len() != 1 {
		t.Errorf("expected gallery to hold 1 entry after enrollment, got %d", g.Snapshot().Len())
	}
	if len(archive.keys) != 1 || archive.keys[0] != "S1" {
		t.Errorf("expected photo archived for S1, got %v", archive.keys)
	}
}

func TestEnroll_UsesFirstFace(t *testing.T) {
	repo := mock.NewRepository()
	det := &fakeDetector{faces: []facedetect.Face{face(1, 0, 0), face(0, 1, 0)}}
	svc, _ := newService(repo, det, nil)

	if _, err := svc.Enroll(context.Background(), Request{ID: "S1", Name: "A", Course: "C", Image: pngBytes(t)}); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	rows, _ := repo.ListEnrolled(context.Background())
	if len(rows) != 1 || rows[0].Embedding[0] != 1 {
		t.Errorf("expected first face embedding, got %+v", rows)
	}
}

func TestEnroll_Errors(t *testing.T) {
	valid := pngBytes(t)
	tests := []struct {
		name     string
		req      Request
		faces    []facedetect.Face
		wantKind Kind
	}{
		{"missing id", Request{Name: "A", Course: "C", Image: valid}, nil, InvalidRequest},
		{"blank name", Request{ID: "S1", Name: "  ", Course: "C", Image: valid}, nil, InvalidRequest},
		{"missing course", Request{ID: "S1", Name: "A", Image: valid}, nil, InvalidRequest},
		{"missing file", Request{ID: "S1", Name: "A", Course: "C"}, nil, InvalidRequest},
		{"long id", Request{ID: strings.Repeat("x", maxIDLength+1), Name: "A", Course: "C", Image: valid}, nil, InvalidRequest},
		{"not an image", Request{ID: "S1", Name: "A", Course: "C", Image: []byte("hello")}, nil, InvalidImage},
		{"no face", Request{ID: "S1", Name: "A", Course: "C", Image: valid}, nil, NoFaceDetected},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := mock.NewRepository()
			svc, _ := newService(repo, &fakeDetector{faces: tc.faces}, nil)

			_, err := svc.Enroll(context.Background(), tc.req)
			var enrollErr *Error
			if !errors.As(err, &enrollErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if enrollErr.Kind != tc.wantKind {
				t.Errorf("expected kind %v, got %v", tc.wantKind, enrollErr.Kind)
			}
			if n, _ := repo.CountStudents(context.Background()); n != 0 {
				t.Errorf("expected nothing stored, got %d students", n)
			}
		})
	}
}

func TestEnroll_DuplicateSkipsDetection(t *testing.T) {
	repo := mock.NewRepository()
	repo.AddEnrolled(database.EnrolledStudent{
		Student:   database.Student{ID: "S1", Name: "First", Course: "CS"},
		Embedding: []float32{1, 1, 1},
	})
	det := &fakeDetector{faces: []facedetect.Face{face(0, 0, 0)}}
	svc, _ := newService(repo, det, nil)

	_, err := svc.Enroll(context.Background(), Request{ID: "S1", Name: "Second", Course: "EE", Image: pngBytes(t)})
	var enrollErr *Error
	if !errors.As(err, &enrollErr) || enrollErr.Kind != DuplicateIdentity {
		t.Fatalf("expected DuplicateIdentity, got %v", err)
	}
	if !errors.Is(err, database.ErrDuplicateStudent) {
		t.Error("expected error to wrap ErrDuplicateStudent")
	}
	if det.calls != 0 {
		t.Errorf("expected no detection for a taken ID, got %d calls", det.calls)
	}
	stored, _ := repo.GetStudent(context.Background(), "S1")
	if stored.Name != "First" {
		t.Errorf("existing student was modified: %+v", stored)
	}
}

func TestEnroll_DuplicateOnInsert(t *testing.T) {
	repo := mock.NewRepository()
	repo.CreateStudentError = database.ErrDuplicateStudent
	svc, _ := newService(repo, &fakeDetector{faces: []facedetect.Face{face(0, 0, 0)}}, nil)

	_, err := svc.Enroll(context.Background(), Request{ID: "S1", Name: "A", Course: "C", Image: pngBytes(t)})
	var enrollErr *Error
	if !errors.As(err, &enrollErr) || enrollErr.Kind != DuplicateIdentity {
		t.Fatalf("expected DuplicateIdentity from a racing insert, got %v", err)
	}
}

func TestEnroll_WrongDimension(t *testing.T) {
	repo := mock.NewRepository()
	svc, _ := newService(repo, &fakeDetector{faces: []facedetect.Face{face(1, 2)}}, nil)

	_, err := svc.Enroll(context.Background(), Request{ID: "S1", Name: "A", Course: "C", Image: pngBytes(t)})
	if err == nil {
		t.Fatal("expected error for wrong embedding dimension")
	}
	var enrollErr *Error
	if errors.As(err, &enrollErr) {
		t.Errorf("dimension mismatch is an internal error, got kind %v", enrollErr.Kind)
	}
	if n, _ := repo.CountStudents(context.Background()); n != 0 {
		t.Errorf("expected nothing stored, got %d", n)
	}
}

func TestEnroll_DetectorFailure(t *testing.T) {
	repo := mock.NewRepository()
	svc, _ := newService(repo, &fakeDetector{err: errors.New("service down")}, nil)

	_, err := svc.Enroll(context.Background(), Request{ID: "S1", Name: "A", Course: "C", Image: pngBytes(t)})
	if err == nil || !strings.Contains(err.Error(), "service down") {
		t.Fatalf("expected detector error, got %v", err)
	}
}

func TestEnroll_ArchiveFailureIsNotFatal(t *testing.T) {
	repo := mock.NewRepository()
	archive := &fakeArchive{err: errors.New("bucket gone")}
	svc, _ := newService(repo, &fakeDetector{faces: []facedetect.Face{face(0, 0, 0)}}, archive)

	if _, err := svc.Enroll(context.Background(), Request{ID: "S1", Name: "A", Course: "C", Image: pngBytes(t)}); err != nil {
		t.Fatalf("archive failure must not fail enrollment: %v", err)
	}
	if n, _ := repo.CountStudents(context.Background()); n != 1 {
		t.Errorf("expected student stored, got %d", n)
	}
}

func TestEnroll_ReloadFailureKeepsStudent(t *testing.T) {
	repo := mock.NewRepository()
	repo.ListEnrolledError = errors.New("read failed")
	svc, g := newService(repo, &fakeDetector{faces: []facedetect.Face{face(0, 0, 0)}}, nil)

	if _, err := svc.Enroll(context.Background(), Request{ID: "S1", Name: "A", Course: "C", Image: pngBytes(t)}); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if g.Snapshot().Len() != 0 {
		t.Errorf("expected previous snapshot to stay published, got %d entries", g.Snapshot().Len())
	}
}

type countingReloader struct {
	mu    sync.Mutex
	calls int
}

func (r *countingReloader) Reload(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return 0, nil
}

func TestEnroll_WithoutReload(t *testing.T) {
	repo := mock.NewRepository()
	det := &fakeDetector{faces: []facedetect.Face{face(0.1, 0.2, 0.3)}}
	reloader := &countingReloader{}
	svc := NewService(repo, det, reloader, nil, 3, logging.Discard())
	batch := svc.WithoutReload()

	for _, id := range []string{"S1", "S2", "S3"} {
		if _, err := batch.Enroll(context.Background(), Request{ID: id, Name: "A", Course: "C", Image: pngBytes(t)}); err != nil {
			t.Fatalf("Enroll(%s) failed: %v", id, err)
		}
	}
	if reloader.calls != 0 {
		t.Errorf("expected no reloads from the batch copy, got %d", reloader.calls)
	}
	if n, _ := repo.CountStudents(context.Background()); n != 3 {
		t.Errorf("expected 3 stored students, got %d", n)
	}

	if _, err := svc.Enroll(context.Background(), Request{ID: "S4", Name: "A", Course: "C", Image: pngBytes(t)}); err != nil {
		t.Fatalf("Enroll(S4) failed: %v", err)
	}
	if reloader.calls != 1 {
		t.Errorf("expected the original service to reload once, got %d", reloader.calls)
	}
}

func TestObjectKey(t *testing.T) {
	ts := time.Date(2026, 1, 15, 9, 30, 5, 0, time.FixedZone("IST", 19800))
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", "students/S1/20260115T040005Z.jpg"},
		{"image/png", "students/S1/20260115T040005Z.png"},
		{"application/octet-stream", "students/S1/20260115T040005Z.bin"},
	}
	for _, tc := range tests {
		if got := objectKey("S1", ts, tc.contentType); got != tc.want {
			t.Errorf("objectKey(%s) = %s, want %s", tc.contentType, got, tc.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if DuplicateIdentity.String() != "duplicate_identity" {
		t.Errorf("unexpected kind string %q", DuplicateIdentity.String())
	}
	if Kind(0).String() != "unknown" {
		t.Errorf("unexpected zero kind string %q", Kind(0).String())
	}
}
