// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching constants
const (
	// DefaultMatchThreshold is the maximum euclidean distance accepted as the same person.
	// 0.6 is the customary tolerance for 128-d dlib face descriptors.
	DefaultMatchThreshold = 0.6

	// UnknownLabel is shown for faces that did not match any enrolled student
	UnknownLabel = "Unknown"
)

// Recognition loop constants
const (
	// DefaultDownsample is the linear factor frames are shrunk by before detection
	DefaultDownsample = 4

	// MaxConsecutiveReadFailures is the number of transient camera errors in a row
	// after which the source is treated as gone
	MaxConsecutiveReadFailures = 30

	// DefaultJPEGQuality is the quality used when encoding annotated frames
	DefaultJPEGQuality = 80

	// DefaultStreamBuffer is the number of frames buffered per stream consumer
	DefaultStreamBuffer = 2
)

// Overlay constants
const (
	// BoxThickness is the stroke width of face rectangles in pixels
	BoxThickness = 2

	// LabelBarHeight is the height of the filled label bar drawn at the bottom of a box
	LabelBarHeight = 35

	// LabelPaddingX is the horizontal text offset inside the label bar
	LabelPaddingX = 6

	// LabelPaddingBottom is the baseline offset from the bottom of the label bar
	LabelPaddingBottom = 6
)

// Upload constants
const (
	// MaxUploadSize is the maximum multipart body accepted for enrollment (32 MB)
	MaxUploadSize = 32 << 20
)

// Attendance formatting
const (
	// DateLayout is the layout of the per-day dedup key
	DateLayout = "2006-01-02"

	// TimeLayout is the layout of the time-of-day column
	TimeLayout = "15:04:05"

	// TimestampLayout is the layout used for exports and reports
	TimestampLayout = "2006-01-02 15:04:05"

	// ExportFilename is the download name of the CSV report
	ExportFilename = "attendance_report.csv"
)
