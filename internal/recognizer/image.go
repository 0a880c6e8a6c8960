package recognizer

import (
	"image"

	"golang.org/x/image/draw"
)

// Downsample shrinks img by factor into a new RGBA image.
// The RGBA conversion also normalizes YCbCr camera frames for the detector.
func Downsample(img image.Image, factor int) *image.RGBA {
	bounds := img.Bounds()
	if factor <= 1 {
		dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		return dst
	}

	w := max(1, bounds.Dx()/factor)
	h := max(1, bounds.Dy()/factor)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
