package pipeline

import (
	"github.com/visionkit/go-facepipe/pkg/detection"
	"github.com/visionkit/go-facepipe/pkg/geometry"
)

// DetectedFace is one face in consumer viewport space.
//
// ID is unique per detection instance only. Faces are not tracked across
// frames; do not infer frame-to-frame correspondence from it.
type DetectedFace struct {
	ID string `json:"id"`

	// BoundingBox in viewport pixels, top-left origin.
	BoundingBox geometry.Rect `json:"box"`

	// Landmarks holds every canonical region in viewport pixels. A region
	// the detector did not report is present with an empty sequence.
	Landmarks map[detection.Region][]geometry.Point `json:"landmarks"`

	// Confidence is the detector's score for this face.
	Confidence float64 `json:"confidence"`
}

// ResultSet is the ordered face list for one detection pass. It replaces the
// previous set atomically from the consumer's perspective: the consumer
// never observes a partially updated set.
type ResultSet []DetectedFace
