// Package camera provides frame sources for the recognition loop.
//
// A source is selected by CAMERA_SOURCE: a V4L2 device path (/dev/videoN),
// an http(s) URL serving multipart MJPEG, or a directory of still images that
// is replayed in name order.
package camera

import (
	"context"
	"image"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/kozaktomas/face-attendance/internal/config"
)

// ErrEndOfStream is returned by Next when a finite source is exhausted.
var ErrEndOfStream = errors.New("end of stream")

// Source yields decoded frames. Next blocks until a frame is available.
type Source interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// transientError marks a read failure after which the next read may succeed.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Cause() error { return e.err }

func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so IsTransient reports true.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is a skippable, per-frame failure.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// Open selects a source from cfg.Source.
func Open(ctx context.Context, cfg *config.CameraConfig) (Source, error) {
	src := strings.TrimSpace(cfg.Source)
	switch {
	case src == "":
		return nil, errors.New("camera source is empty")
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		s, err := OpenMJPEG(ctx, src)
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(src, "/dev/"):
		s, err := OpenWebcam(src, cfg.Width, cfg.Height)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, errors.Wrapf(err, "camera source %s", src)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("camera source %s is neither a device, URL nor directory", src)
	}
	d, err := OpenDir(src)
	if err != nil {
		return nil, err
	}
	return d, nil
}
