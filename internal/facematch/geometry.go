package facematch

import (
	"image"
	"math"
)

// ScaleBox maps a detector box [x1, y1, x2, y2] from a frame downsampled by
// factor back to full-frame pixels, clamped to bounds.
// Returns an empty rectangle for malformed input.
func ScaleBox(bbox []float64, factor int, bounds image.Rectangle) image.Rectangle {
	if len(bbox) != 4 || factor <= 0 {
		return image.Rectangle{}
	}

	f := float64(factor)
	r := image.Rect(
		int(math.Floor(bbox[0]*f)),
		int(math.Floor(bbox[1]*f)),
		int(math.Ceil(bbox[2]*f)),
		int(math.Ceil(bbox[3]*f)),
	)
	return r.Add(bounds.Min).Intersect(bounds)
}

// ComputeIoU calculates Intersection over Union between two rectangles.
func ComputeIoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}

	area := func(r image.Rectangle) float64 { return float64(r.Dx() * r.Dy()) }
	union := area(a) + area(b) - area(inter)
	if union <= 0 {
		return 0
	}
	return area(inter) / union
}
