package recognizer

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

type fixture struct {
	repo    *mock.Repository
	gallery *gallery.Store
	ledger  *attendance.Ledger
	pub     *collector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := mock.NewRepository()
	repo.AddEnrolled(database.EnrolledStudent{
		Student:   database.Student{ID: "S1", Name: "Asha", Course: "CS"},
		Embedding: []float32{0, 0},
	})
	g := gallery.NewStore(repo, gallery.Options{Dim: 2}, logging.Discard())
	if _, err := g.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	return &fixture{
		repo:    repo,
		gallery: g,
		ledger:  attendance.NewLedger(repo, time.UTC),
		pub:     &collector{},
	}
}

func frames(n int) []step {
	steps := make([]step, n)
	for i := range steps {
		steps[i] = step{img: grayFrame(80, 60)}
	}
	return steps
}

func fixedClock() time.Time {
	return time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
}

func TestLoop_RecognizesAndRecordsOncePerDay(t *testing.T) {
	f := newFixture(t)
	src := &scriptedSource{steps: frames(3)}
	det := &fakeDetector{faces: []facedetect.Face{
		{BBox: []float64{2, 2, 10, 10}, Embedding: []float32{0.1, 0}},
		{BBox: []float64{12, 2, 18, 10}, Embedding: []float32{5, 5}},
	}}

	loop := NewLoop(src, det, f.gallery, f.ledger, f.pub, Options{Clock: fixedClock}, logging.Discard())
	err := loop.Run(context.Background())

	var camErr *CameraError
	if !errors.As(err, &camErr) || !errors.Is(err, camera.ErrEndOfStream) {
		t.Fatalf("expected CameraError wrapping end of stream, got %v", err)
	}

	records := f.repo.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 attendance record, got %d", len(records))
	}
	if records[0].StudentID != "S1" || records[0].DateStr != "2026-01-15" {
		t.Errorf("unexpected record %+v", records[0])
	}

	stats := loop.Stats()
	if stats.Frames != 3 || stats.Faces != 6 || stats.Matches != 3 || stats.Recorded != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if f.pub.count() != 3 {
		t.Errorf("expected 3 published frames, got %d", f.pub.count())
	}

	// Detection ran on the downsampled frame.
	if got := det.inputs[0]; got.Dx() != 20 || got.Dy() != 15 {
		t.Errorf("expected 20x15 detector input, got %v", got)
	}
}

func TestLoop_PublishedFrameIsFullSizeJPEG(t *testing.T) {
	f := newFixture(t)
	src := &scriptedSource{steps: frames(1)}
	det := &fakeDetector{}

	loop := NewLoop(src, det, f.gallery, f.ledger, f.pub, Options{}, logging.Discard())
	loop.Run(context.Background())

	if f.pub.count() != 1 {
		t.Fatalf("expected 1 frame, got %d", f.pub.count())
	}
	img, err := jpeg.Decode(bytes.NewReader(f.pub.frames[0]))
	if err != nil {
		t.Fatalf("published frame is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 80 || img.Bounds().Dy() != 60 {
		t.Errorf("expected 80x60 frame, got %v", img.Bounds())
	}
}

func TestLoop_TransientErrorsSkipped(t *testing.T) {
	f := newFixture(t)
	steps := []step{}
	for i := 0; i < constants.MaxConsecutiveReadFailures; i++ {
		steps = append(steps, step{err: camera.Transient(errors.New("timeout"))})
	}
	steps = append(steps, frames(1)...)
	src := &scriptedSource{steps: steps}

	loop := NewLoop(src, &fakeDetector{}, f.gallery, f.ledger, f.pub, Options{}, logging.Discard())
	err := loop.Run(context.Background())

	if !errors.Is(err, camera.ErrEndOfStream) {
		t.Errorf("expected end of stream after recovery, got %v", err)
	}
	if f.pub.count() != 1 {
		t.Errorf("expected the frame after the failures to be published, got %d", f.pub.count())
	}
	if loop.Stats().ReadErrors != int64(constants.MaxConsecutiveReadFailures) {
		t.Errorf("expected %d read errors, got %d", constants.MaxConsecutiveReadFailures, loop.Stats().ReadErrors)
	}
}

func TestLoop_TooManyTransientErrorsIsFatal(t *testing.T) {
	f := newFixture(t)
	steps := []step{}
	for i := 0; i <= constants.MaxConsecutiveReadFailures; i++ {
		steps = append(steps, step{err: camera.Transient(errors.New("timeout"))})
	}
	steps = append(steps, frames(1)...)
	src := &scriptedSource{steps: steps}

	loop := NewLoop(src, &fakeDetector{}, f.gallery, f.ledger, f.pub, Options{}, logging.Discard())
	err := loop.Run(context.Background())

	var camErr *CameraError
	if !errors.As(err, &camErr) {
		t.Fatalf("expected CameraError, got %v", err)
	}
	if errors.Is(err, camera.ErrEndOfStream) {
		t.Error("expected failure before reaching the frame")
	}
	if f.pub.count() != 0 {
		t.Errorf("expected no frames, got %d", f.pub.count())
	}
}

func TestLoop_DetectorFailureStillPublishes(t *testing.T) {
	f := newFixture(t)
	src := &scriptedSource{steps: frames(2)}
	det := &fakeDetector{err: errors.New("service unavailable")}

	loop := NewLoop(src, det, f.gallery, f.ledger, f.pub, Options{}, logging.Discard())
	loop.Run(context.Background())

	if f.pub.count() != 2 {
		t.Errorf("expected 2 frames without boxes, got %d", f.pub.count())
	}
	if loop.Stats().DetectErrors != 2 {
		t.Errorf("expected 2 detect errors, got %d", loop.Stats().DetectErrors)
	}
}

func TestLoop_LedgerFailureContinues(t *testing.T) {
	f := newFixture(t)
	f.repo.InsertAttendanceError = errors.New("database is locked")
	src := &scriptedSource{steps: frames(2)}
	det := &fakeDetector{faces: []facedetect.Face{{BBox: []float64{1, 1, 5, 5}, Embedding: []float32{0, 0}}}}

	loop := NewLoop(src, det, f.gallery, f.ledger, f.pub, Options{}, logging.Discard())
	loop.Run(context.Background())

	stats := loop.Stats()
	if stats.LedgerErrors != 2 || stats.Recorded != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if f.pub.count() != 2 {
		t.Errorf("expected frames to keep flowing, got %d", f.pub.count())
	}
}

func TestLoop_NewEnrollmentSeenAfterReload(t *testing.T) {
	f := newFixture(t)
	det := &fakeDetector{faces: []facedetect.Face{{BBox: []float64{1, 1, 5, 5}, Embedding: []float32{3, 3}}}}

	loop := NewLoop(&scriptedSource{steps: frames(1)}, det, f.gallery, f.ledger, f.pub, Options{}, logging.Discard())
	loop.Run(context.Background())
	if len(f.repo.Records()) != 0 {
		t.Fatal("unknown face must not be recorded")
	}

	if err := f.repo.CreateStudent(context.Background(), database.Student{ID: "S2", Name: "Bala"}, []float32{3, 3}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.gallery.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	loop = NewLoop(&scriptedSource{steps: frames(1)}, det, f.gallery, f.ledger, f.pub, Options{}, logging.Discard())
	loop.Run(context.Background())
	records := f.repo.Records()
	if len(records) != 1 || records[0].StudentID != "S2" {
		t.Errorf("expected S2 recorded after reload, got %+v", records)
	}
}

func TestLoop_CancelReturnsNil(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	loop := NewLoop(&endlessSource{img: grayFrame(16, 16)}, &fakeDetector{}, f.gallery, f.ledger, f.pub,
		Options{MaxFPS: 200}, logging.Discard())

	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for f.pub.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("loop produced no frames")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}
