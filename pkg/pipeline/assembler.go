package pipeline

import (
	"github.com/google/uuid"

	"github.com/visionkit/go-facepipe/pkg/detection"
	"github.com/visionkit/go-facepipe/pkg/geometry"
)

// Assemble converts detector observations into viewport-space faces.
//
// Detector order is preserved. An empty observation list yields an empty,
// non-nil result set — the consumer still gets notified so stale overlays
// are cleared. Geometry is recomputed from the given sizes on every call;
// nothing is cached.
func Assemble(observations []detection.Observation, frame, viewport geometry.Size) ResultSet {
	results := make(ResultSet, 0, len(observations))
	for _, obs := range observations {
		results = append(results, assembleFace(obs, frame, viewport))
	}
	return results
}

func assembleFace(obs detection.Observation, frame, viewport geometry.Size) DetectedFace {
	face := DetectedFace{
		ID:          uuid.NewString(),
		BoundingBox: geometry.ToViewportRect(geometry.FlipRect(obs.BoundingBox), frame, viewport),
		Landmarks:   make(map[detection.Region][]geometry.Point, len(detection.Regions())),
		Confidence:  obs.Confidence,
	}

	// Every canonical region is present; missing detector data becomes an
	// empty sequence, never an omitted face.
	for _, region := range detection.Regions() {
		points := obs.Landmarks[region]
		converted := make([]geometry.Point, 0, len(points))
		for _, local := range points {
			// Composed in the detector's unflipped bottom-left space with
			// the detector's own unflipped box, then flipped exactly once.
			converted = append(converted, geometry.LandmarkToViewport(local, obs.BoundingBox, frame, viewport))
		}
		face.Landmarks[region] = converted
	}

	return face
}
