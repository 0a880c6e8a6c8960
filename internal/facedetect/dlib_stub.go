//go:build !dlib

package facedetect

import "errors"

// ErrDlibUnavailable is returned when the binary was built without the dlib tag.
var ErrDlibUnavailable = errors.New("dlib detector not available: rebuild with -tags dlib")

// DlibCompiled reports whether the dlib detector is built in.
const DlibCompiled = false

// NewDlibDetector reports that in-process detection is not compiled in.
func NewDlibDetector(string) (Detector, error) {
	return nil, ErrDlibUnavailable
}
