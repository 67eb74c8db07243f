// Package detection provides face detection backends for the pipeline.
//
// All backends report the same convention: bounding boxes normalized to the
// frame with a bottom-left origin, and landmark points normalized to the
// face's own bounding box (a landmark at (0,0) is the bottom-left corner of
// that face's box, not of the frame).
package detection

import "github.com/visionkit/go-facepipe/pkg/geometry"

// Region names one facial landmark group.
type Region string

// Landmark regions a backend may report. Backends that cannot produce a
// region simply omit it; the pipeline represents missing regions as empty
// sequences, never as a missing face.
const (
	RegionLeftEye     Region = "left_eye"
	RegionRightEye    Region = "right_eye"
	RegionNose        Region = "nose"
	RegionNoseBridge  Region = "nose_bridge"
	RegionMouth       Region = "mouth"
	RegionFaceContour Region = "face_contour"
)

// Regions returns all landmark regions in canonical order.
func Regions() []Region {
	return []Region{
		RegionLeftEye,
		RegionRightEye,
		RegionNose,
		RegionNoseBridge,
		RegionMouth,
		RegionFaceContour,
	}
}

// Observation is one detected face as reported by a backend.
type Observation struct {
	// BoundingBox is normalized to the frame, bottom-left origin.
	BoundingBox geometry.Rect `json:"box"`

	// Landmarks maps a region to an ordered point sequence normalized to
	// BoundingBox, bottom-left origin. May be nil or miss regions.
	Landmarks map[Region][]geometry.Point `json:"landmarks,omitempty"`

	// Confidence is the backend's detection score (0-1).
	Confidence float64 `json:"confidence"`
}

// Detector is the interface for face detection backends.
type Detector interface {
	// Detect finds faces in the JPEG image. Returns an empty slice when no
	// faces are found; an error only for backend failures.
	Detect(jpeg []byte) ([]Observation, error)

	// Close releases resources.
	Close() error
}

// Config holds backend configuration.
type Config struct {
	ModelPath        string  // Path to ONNX model (YuNet)
	ConfidenceThresh float64 // Minimum confidence (default 0.5)
	MaxFaces         int     // Cap on reported faces, 0 = unlimited
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
}

// DefaultConfig returns production defaults for YuNet.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		MaxFaces:         5,
		InputWidth:       320,
		InputHeight:      320,
	}
}
