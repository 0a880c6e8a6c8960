//go:build dlib

package facedetect

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/Kagami/go-face"
)

// DlibCompiled reports whether the dlib detector is built in.
const DlibCompiled = true

// DlibDetector runs dlib's HOG detector and ResNet descriptor in process.
type DlibDetector struct {
	mu  sync.Mutex // go-face recognizers are not safe for concurrent use
	rec *face.Recognizer
}

// NewDlibDetector loads the dlib models from modelDir.
func NewDlibDetector(modelDir string) (Detector, error) {
	if modelDir == "" {
		return nil, fmt.Errorf("dlib detector requires a model directory")
	}
	rec, err := face.NewRecognizer(modelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load recognizer: %w", err)
	}
	return &DlibDetector{rec: rec}, nil
}

// Detect returns every face dlib finds in img.
func (d *DlibDetector) Detect(ctx context.Context, img image.Image) ([]Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	found, err := d.rec.Recognize(data)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("dlib recognize: %w", err)
	}

	faces := make([]Face, 0, len(found))
	for _, f := range found {
		r := f.Rectangle
		desc := make([]float32, len(f.Descriptor))
		copy(desc, f.Descriptor[:])
		faces = append(faces, Face{
			BBox:      []float64{float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)},
			Embedding: desc,
			Score:     1,
		})
	}
	return faces, nil
}

// Close frees the dlib models.
func (d *DlibDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rec.Close()
}
