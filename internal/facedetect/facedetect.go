// Package facedetect turns images into face boxes and embeddings.
package facedetect

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/kozaktomas/face-attendance/internal/config"
)

// Detector kinds
const (
	KindHTTP = "http"
	KindDlib = "dlib"
)

// Face is one detected face.
type Face struct {
	BBox      []float64 // [x1, y1, x2, y2] in pixels of the image passed to Detect
	Embedding []float32
	Score     float64
}

// Detector finds faces in an image. Implementations must be safe for concurrent use.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Face, error)
}

// New builds the detector selected by cfg.Detector.
func New(cfg *config.EmbeddingConfig) (Detector, error) {
	switch cfg.Detector {
	case "", KindHTTP:
		return NewHTTPDetector(cfg.URL), nil
	case KindDlib:
		return NewDlibDetector(cfg.ModelDir)
	default:
		return nil, fmt.Errorf("unknown face detector %q (expected %s or %s)", cfg.Detector, KindHTTP, KindDlib)
	}
}

// detectQuality is the JPEG quality used when shipping frames to a detector.
const detectQuality = 90

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: detectQuality}); err != nil {
		return nil, fmt.Errorf("encode frame for detection: %w", err)
	}
	return buf.Bytes(), nil
}
