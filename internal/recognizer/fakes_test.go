package recognizer

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
)

// scriptedSource returns the scripted results in order, then ErrEndOfStream.
type scriptedSource struct {
	mu    sync.Mutex
	steps []step
	calls int
}

type step struct {
	img image.Image
	err error
}

func (s *scriptedSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.steps) {
		return nil, camera.ErrEndOfStream
	}
	st := s.steps[s.calls]
	s.calls++
	return st.img, st.err
}

func (s *scriptedSource) Close() error { return nil }

// endlessSource yields the same frame until canceled.
type endlessSource struct {
	img image.Image
}

func (s *endlessSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.img, nil
}

func (s *endlessSource) Close() error { return nil }

type fakeDetector struct {
	mu     sync.Mutex
	faces  []facedetect.Face
	err    error
	inputs []image.Rectangle
}

func (d *fakeDetector) Detect(_ context.Context, img image.Image) ([]facedetect.Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputs = append(d.inputs, img.Bounds())
	return d.faces, d.err
}

type collector struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *collector) Publish(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func grayFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.Gray{Y: 40})
		}
	}
	return img
}
