package recognizer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Box colors
var (
	KnownColor   = color.RGBA{G: 255, A: 255}
	UnknownColor = color.RGBA{R: 255, A: 255}
	labelColor   = color.White
)

// Annotation is one face to draw, in full-frame pixel coordinates.
type Annotation struct {
	Box   image.Rectangle
	Label string
	Known bool
}

// Render draws the annotations onto a copy of frame and encodes it as JPEG.
// Each face gets a 2px outline and a filled label bar along the bottom edge
// of its box, green when recognized and red otherwise.
func Render(frame image.Image, annotations []Annotation, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = constants.DefaultJPEGQuality
	}

	canvas := image.NewRGBA(frame.Bounds())
	draw.Draw(canvas, canvas.Bounds(), frame, frame.Bounds().Min, draw.Src)

	for _, a := range annotations {
		drawAnnotation(canvas, a)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func drawAnnotation(canvas *image.RGBA, a Annotation) {
	box := a.Box.Intersect(canvas.Bounds())
	if box.Empty() {
		return
	}

	c := UnknownColor
	if a.Known {
		c = KnownColor
	}
	fill := image.NewUniform(c)

	strokeRect(canvas, box, constants.BoxThickness, fill)

	bar := image.Rect(box.Min.X, box.Max.Y-constants.LabelBarHeight, box.Max.X, box.Max.Y).Intersect(canvas.Bounds())
	draw.Draw(canvas, bar, fill, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(box.Min.X+constants.LabelPaddingX, box.Max.Y-constants.LabelPaddingBottom),
	}
	d.DrawString(facematch.ASCIILabel(a.Label))
}

// strokeRect draws an outline of the given thickness inside r.
func strokeRect(dst draw.Image, r image.Rectangle, thickness int, src image.Image) {
	t := min(thickness, r.Dx()/2, r.Dy()/2)
	if t <= 0 {
		draw.Draw(dst, r, src, image.Point{}, draw.Src)
		return
	}
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), // top
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), // bottom
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), // left
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), // right
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}
