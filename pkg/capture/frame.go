// Package capture provides frame sources for the detection pipeline.
package capture

import (
	"time"

	"github.com/visionkit/go-facepipe/pkg/geometry"
)

// Frame is one sensor sample.
//
// Immutability contract: Data must not be modified after the frame leaves its
// source. Frames are shared by reference between the capture and detection
// stages; the pipeline releases its reference after detection submission, or
// immediately when the frame is dropped.
type Frame struct {
	// Data holds the encoded pixels (JPEG). Owned by the capture subsystem.
	Data []byte

	// Width and Height of the frame in pixels.
	Width  int
	Height int

	// Timestamp when the frame was captured (source time).
	Timestamp time.Time
}

// Size returns the frame dimensions as a geometry size.
func (f *Frame) Size() geometry.Size {
	return geometry.Size{Width: float64(f.Width), Height: float64(f.Height)}
}

// Source produces frames at sensor rate.
//
// Sources never block on a slow consumer: when the frame channel is full the
// newest frame is dropped at the source. Dropped frames are the backpressure
// mechanism, not queued buffering.
type Source interface {
	// Start begins producing frames.
	Start() error

	// Stop shuts the source down and closes its channels. Idempotent.
	Stop()

	// Frames returns the frame channel. Closed on Stop or source failure.
	Frames() <-chan *Frame

	// Errors returns the error channel for fatal source failures.
	Errors() <-chan error
}
