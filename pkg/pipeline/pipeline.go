// Package pipeline connects a frame source to a face detector and publishes
// viewport-space results to a consumer.
//
// Concurrency model: the capture context calls OnFrame and is never blocked —
// throttled or superfluous frames are dropped, which is the backpressure
// mechanism. Detection runs asynchronously behind the Adapter boundary with
// at most one outstanding submission. Results are delivered to the consumer
// on a single delivery goroutine.
package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/visionkit/go-facepipe/internal/log"
	"github.com/visionkit/go-facepipe/pkg/capture"
	"github.com/visionkit/go-facepipe/pkg/detection"
	"github.com/visionkit/go-facepipe/pkg/geometry"
)

// Adapter is the boundary to the external detector. Submit must not block
// the caller; the completion carries the observation list and may run on any
// goroutine. A detector failure surfaces as an empty observation list, never
// as a panic or an error into the pipeline.
type Adapter interface {
	Submit(frame *capture.Frame, completion func(observations []detection.Observation))
}

// DetectorAdapter wraps a synchronous detection.Detector as an Adapter,
// running each submission on its own goroutine. Errors are logged and
// reported as empty observation lists.
type DetectorAdapter struct {
	detector detection.Detector
}

// NewDetectorAdapter wraps det for use by the pipeline.
func NewDetectorAdapter(det detection.Detector) *DetectorAdapter {
	return &DetectorAdapter{detector: det}
}

// Submit runs the detector on frame and invokes completion with its result.
func (a *DetectorAdapter) Submit(frame *capture.Frame, completion func([]detection.Observation)) {
	go func() {
		observations, err := a.detector.Detect(frame.Data)
		if err != nil {
			log.Warn("detection failed", "error", err)
			observations = nil
		}
		completion(observations)
	}()
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	FramesSeen     uint64 `json:"frames_seen"`
	FramesAdmitted uint64 `json:"frames_admitted"`
	// FramesThrottled were denied by the frame gate.
	FramesThrottled uint64 `json:"frames_throttled"`
	// FramesBusy were admitted by the gate while a detection was still in
	// flight and therefore dropped.
	FramesBusy uint64 `json:"frames_busy"`

	ResultsDelivered  uint64 `json:"results_delivered"`
	ResultsSuperseded uint64 `json:"results_superseded"`
	ResultsStale      uint64 `json:"results_stale"`
}

// Pipeline wires gate, adapter, assembler and publisher together.
type Pipeline struct {
	cfg       Config
	gate      *FrameGate
	adapter   Adapter
	publisher *ResultPublisher

	// Viewport size, written by the consumer's resize events and read at
	// detection-completion time. Guarded as a pair so a resize can never be
	// observed half-applied.
	viewportMu sync.RWMutex
	viewport   geometry.Size

	inflight  atomic.Bool
	submitSeq atomic.Uint64

	// tap, when set, sees every frame Run pulls from the source, including
	// frames the gate goes on to drop. Set before Run; read from the Run
	// goroutine only.
	tap func(*capture.Frame)

	framesSeen      atomic.Uint64
	framesAdmitted  atomic.Uint64
	framesThrottled atomic.Uint64
	framesBusy      atomic.Uint64
}

// New creates a pipeline delivering result sets to onResult. Call Start
// before feeding frames and Stop when done.
func New(cfg Config, adapter Adapter, onResult func(ResultSet)) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		gate:      NewFrameGate(cfg.MinDetectionInterval),
		adapter:   adapter,
		publisher: NewResultPublisher(onResult),
	}
}

// Start spawns the delivery goroutine.
func (p *Pipeline) Start() {
	p.publisher.Start()
}

// Stop shuts the pipeline down. In-flight detections finish but their
// results are no longer delivered.
func (p *Pipeline) Stop() {
	p.publisher.Stop()
}

// OnFrame admits or drops one captured frame. Called on the capture context;
// returns immediately and never blocks on detection. The frame is not
// retained beyond the detection submission, or at all when dropped.
func (p *Pipeline) OnFrame(frame *capture.Frame) {
	p.framesSeen.Add(1)

	now := frame.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	if !p.gate.Admit(now) {
		p.framesThrottled.Add(1)
		return
	}

	// Single outstanding submission: an admitted frame that catches the
	// detector still busy is dropped like a throttled one.
	if !p.inflight.CompareAndSwap(false, true) {
		p.framesBusy.Add(1)
		return
	}

	p.framesAdmitted.Add(1)
	seq := p.submitSeq.Add(1)
	frameSize := frame.Size()

	p.adapter.Submit(frame, func(observations []detection.Observation) {
		p.inflight.Store(false)
		// Viewport snapshot at completion time, not capture time.
		results := Assemble(observations, frameSize, p.ViewportSize())
		p.publisher.Publish(seq, results)
	})
}

// SetViewportSize records the consumer's presentation surface size. Safe to
// call at any time; takes effect on the next conversion. Does not block or
// restart in-flight detections.
func (p *Pipeline) SetViewportSize(width, height float64) {
	p.viewportMu.Lock()
	p.viewport = geometry.Size{Width: width, Height: height}
	p.viewportMu.Unlock()
}

// ViewportSize returns the current viewport snapshot.
func (p *Pipeline) ViewportSize() geometry.Size {
	p.viewportMu.RLock()
	defer p.viewportMu.RUnlock()
	return p.viewport
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	pub := p.publisher.Stats()
	return Stats{
		FramesSeen:        p.framesSeen.Load(),
		FramesAdmitted:    p.framesAdmitted.Load(),
		FramesThrottled:   p.framesThrottled.Load(),
		FramesBusy:        p.framesBusy.Load(),
		ResultsDelivered:  pub.Delivered,
		ResultsSuperseded: pub.Superseded,
		ResultsStale:      pub.Stale,
	}
}

// SetFrameTap registers an observer for every frame Run consumes, ahead of
// gate admission. Used for preview feeds that want raw video regardless of
// the detection rate. Must be called before Run.
func (p *Pipeline) SetFrameTap(tap func(*capture.Frame)) {
	p.tap = tap
}

// Run consumes a capture source until the source closes or stop is signalled.
// Convenience wiring for commands; OnFrame can also be called directly.
func (p *Pipeline) Run(source capture.Source, stop <-chan struct{}) {
	for {
		select {
		case frame, ok := <-source.Frames():
			if !ok {
				return
			}
			if frame != nil {
				if p.tap != nil {
					p.tap(frame)
				}
				p.OnFrame(frame)
			}
		case err, ok := <-source.Errors():
			if ok && err != nil {
				log.Error("capture source failed", "error", err)
				return
			}
		case <-stop:
			return
		}
	}
}
