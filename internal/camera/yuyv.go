package camera

import (
	"image"

	"github.com/pkg/errors"
)

// yuyvToImage wraps a packed YUYV 4:2:2 frame as an image.YCbCr.
func yuyvToImage(frame []byte, width, height int) (*image.YCbCr, error) {
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, errors.Errorf("invalid YUYV geometry %dx%d", width, height)
	}
	if len(frame) < width*height*2 {
		return nil, errors.Errorf("short YUYV frame: %d bytes for %dx%d", len(frame), width, height)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := 0; y < height; y++ {
		row := frame[y*width*2 : (y+1)*width*2]
		for x := 0; x < width; x += 2 {
			i := x * 2
			img.Y[y*img.YStride+x] = row[i]
			img.Y[y*img.YStride+x+1] = row[i+2]
			c := y*img.CStride + x/2
			img.Cb[c] = row[i+1]
			img.Cr[c] = row[i+3]
		}
	}
	return img, nil
}
