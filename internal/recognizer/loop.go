// Package recognizer runs the live recognition pipeline: frames in, attendance
// and annotated JPEG frames out.
package recognizer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// CameraError ends the loop: the source failed or ran out of frames.
type CameraError struct {
	Err error
}

func (e *CameraError) Error() string { return fmt.Sprintf("camera: %v", e.Err) }

func (e *CameraError) Unwrap() error { return e.Err }

// Matcher resolves embeddings against the current gallery.
type Matcher interface {
	Snapshot() *gallery.Snapshot
}

// Registrar records attendance.
type Registrar interface {
	Register(ctx context.Context, studentID string, now time.Time) (attendance.Outcome, error)
}

// Publisher receives encoded frames.
type Publisher interface {
	Publish(frame []byte)
}

// Options tunes the loop.
type Options struct {
	Threshold   float64
	Scale       int
	JPEGQuality int
	MaxFPS      float64          // 0 disables the limiter
	Clock       func() time.Time // defaults to time.Now
	Stats       *Stats           // shared counters; allocated when nil
}

// Loop is one recognition run over a camera source.
type Loop struct {
	source    camera.Source
	detector  facedetect.Detector
	gallery   Matcher
	ledger    Registrar
	publisher Publisher
	opts      Options
	limiter   *rate.Limiter
	logger    *slog.Logger
	stats     *Stats
}

// NewLoop wires a loop. It does not start it.
func NewLoop(source camera.Source, detector facedetect.Detector, g Matcher, ledger Registrar,
	publisher Publisher, opts Options, logger *slog.Logger) *Loop {
	if opts.Scale <= 0 {
		opts.Scale = constants.DefaultDownsample
	}
	if opts.Threshold <= 0 {
		opts.Threshold = constants.DefaultMatchThreshold
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = constants.DefaultJPEGQuality
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Stats == nil {
		opts.Stats = &Stats{}
	}

	l := &Loop{
		source:    source,
		detector:  detector,
		gallery:   g,
		ledger:    ledger,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		stats:     opts.Stats,
	}
	if opts.MaxFPS > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(opts.MaxFPS), 1)
	}
	return l
}

// Stats returns the current counters.
func (l *Loop) Stats() StatsSnapshot { return l.stats.Snapshot() }

// Run processes frames until ctx is canceled (returns nil) or the camera fails
// (returns *CameraError). Cancellation is observed between frames.
func (l *Loop) Run(ctx context.Context) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := l.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if camera.IsTransient(err) {
				failures++
				l.stats.readErrors.Add(1)
				if failures > constants.MaxConsecutiveReadFailures {
					return &CameraError{Err: fmt.Errorf("%d consecutive read failures: %w", failures, err)}
				}
				l.logger.Debug("skipping frame", "error", err, "consecutive", failures)
				continue
			}
			return &CameraError{Err: err}
		}
		failures = 0

		if err := l.processFrame(ctx, frame); err != nil {
			return nil
		}

		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
	}
}

// processFrame runs detection, matching, ledger and rendering for one frame.
// It returns an error only when ctx was canceled mid-frame.
func (l *Loop) processFrame(ctx context.Context, frame image.Image) error {
	l.stats.frames.Add(1)
	l.stats.lastFrame.Store(l.opts.Clock().UnixNano())

	small := Downsample(frame, l.opts.Scale)
	faces, err := l.detector.Detect(ctx, small)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.stats.detectErrors.Add(1)
		l.logger.Warn("face detection failed", "error", err)
		faces = nil
	}

	annotations := l.resolve(ctx, frame.Bounds(), faces)

	encoded, err := Render(frame, annotations, l.opts.JPEGQuality)
	if err != nil {
		l.stats.dropped.Add(1)
		l.logger.Warn("dropping frame", "error", err)
		return nil
	}
	l.publisher.Publish(encoded)
	return nil
}

func (l *Loop) resolve(ctx context.Context, bounds image.Rectangle, faces []facedetect.Face) []Annotation {
	if len(faces) == 0 {
		return nil
	}
	l.stats.faces.Add(int64(len(faces)))

	// One snapshot per frame so all faces see the same gallery.
	snap := l.gallery.Snapshot()
	annotations := make([]Annotation, 0, len(faces))
	for _, f := range faces {
		a := Annotation{
			Box:   facematch.ScaleBox(f.BBox, l.opts.Scale, bounds),
			Label: constants.UnknownLabel,
		}

		if res, ok := snap.Match(f.Embedding, l.opts.Threshold); ok {
			l.stats.matches.Add(1)
			a.Label = res.Student.Name
			a.Known = true
			l.register(ctx, res)
		}
		annotations = append(annotations, a)
	}
	return annotations
}

func (l *Loop) register(ctx context.Context, res facematch.Result) {
	outcome, err := l.ledger.Register(ctx, res.Student.ID, l.opts.Clock())
	if err != nil {
		l.stats.ledgerErrors.Add(1)
		l.logger.Error("attendance write failed", "student_id", res.Student.ID, "error", err)
		return
	}
	if outcome == attendance.Recorded {
		l.stats.recorded.Add(1)
		l.logger.Info("attendance recorded",
			"student_id", res.Student.ID,
			"name", res.Student.Name,
			"distance", res.Distance)
	}
}
