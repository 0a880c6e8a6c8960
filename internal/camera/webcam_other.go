//go:build !linux

package camera

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

// WebcamSource is only available on Linux.
type WebcamSource struct{}

// OpenWebcam reports that V4L2 capture is unsupported on this platform.
func OpenWebcam(device string, _, _ int) (*WebcamSource, error) {
	return nil, errors.Errorf("V4L2 capture of %s requires linux", device)
}

func (s *WebcamSource) Next(context.Context) (image.Image, error) {
	return nil, errors.New("V4L2 capture requires linux")
}

func (s *WebcamSource) Close() error { return nil }
