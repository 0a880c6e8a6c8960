package enrollment

import "fmt"

// Kind classifies enrollment failures for the presentation layer.
type Kind int

const (
	// InvalidRequest means a required field is missing or malformed.
	InvalidRequest Kind = iota + 1
	// InvalidImage means the upload could not be decoded as an image.
	InvalidImage
	// NoFaceDetected means the photo contains no detectable face.
	NoFaceDetected
	// DuplicateIdentity means the student ID is already enrolled.
	DuplicateIdentity
)

func (k Kind) String() string {
	switch k {
	case InvalidRequest:
		return "invalid_request"
	case InvalidImage:
		return "invalid_image"
	case NoFaceDetected:
		return "no_face_detected"
	case DuplicateIdentity:
		return "duplicate_identity"
	default:
		return "unknown"
	}
}

// Error is a classified enrollment failure. Nothing was stored when it is returned.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
