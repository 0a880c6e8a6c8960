package camera

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/jpeg"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
)

var (
	formatMJPEG = fourcc("MJPG")
	formatYUYV  = fourcc("YUYV")
)

func fourcc(code string) webcam.PixelFormat {
	return webcam.PixelFormat(binary.LittleEndian.Uint32([]byte(code)))
}

// frameWaitSeconds bounds each WaitForFrame call so cancellation is noticed.
const frameWaitSeconds = 1

// WebcamSource reads frames from a V4L2 device.
type WebcamSource struct {
	cam           *webcam.Webcam
	format        webcam.PixelFormat
	width, height int
}

// OpenWebcam opens device and starts streaming, preferring MJPEG over YUYV.
func OpenWebcam(device string, width, height int) (*WebcamSource, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, errors.Wrap(err, "Can not open device")
	}

	supported := cam.GetSupportedFormats()
	var format webcam.PixelFormat
	switch {
	case supported[formatMJPEG] != "":
		format = formatMJPEG
	case supported[formatYUYV] != "":
		format = formatYUYV
	default:
		cam.Close()
		return nil, errors.Errorf("device %s supports neither MJPEG nor YUYV", device)
	}

	f, w, h, err := cam.SetImageFormat(format, uint32(width), uint32(height))
	if err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "Can not set image format")
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "Can not start streaming")
	}

	return &WebcamSource{cam: cam, format: f, width: int(w), height: int(h)}, nil
}

// Next waits for one frame. Timeouts and undecodable frames are transient.
func (s *WebcamSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err := s.cam.WaitForFrame(frameWaitSeconds)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return nil, Transient(err)
	default:
		return nil, errors.Wrap(err, "Frame wait failed")
	}

	frame, err := s.cam.ReadFrame()
	if err != nil {
		return nil, errors.Wrap(err, "Read frame failed")
	}
	if len(frame) == 0 {
		return nil, Transient(errors.New("empty frame"))
	}

	if s.format == formatYUYV {
		img, err := yuyvToImage(frame, s.width, s.height)
		if err != nil {
			return nil, Transient(err)
		}
		return img, nil
	}

	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, Transient(errors.Wrap(err, "decode MJPEG frame"))
	}
	return img, nil
}

// Close stops streaming and releases the device.
func (s *WebcamSource) Close() error {
	if err := s.cam.StopStreaming(); err != nil {
		s.cam.Close()
		return errors.Wrap(err, "stop streaming")
	}
	return s.cam.Close()
}
