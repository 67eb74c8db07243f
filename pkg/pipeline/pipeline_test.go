package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/visionkit/go-facepipe/pkg/capture"
	"github.com/visionkit/go-facepipe/pkg/detection"
	"github.com/visionkit/go-facepipe/pkg/geometry"
)

// manualAdapter captures completions so tests control exactly when a
// detection finishes.
type manualAdapter struct {
	mu      sync.Mutex
	pending []func([]detection.Observation)
}

func (a *manualAdapter) Submit(_ *capture.Frame, completion func([]detection.Observation)) {
	a.mu.Lock()
	a.pending = append(a.pending, completion)
	a.mu.Unlock()
}

func (a *manualAdapter) complete(t *testing.T, obs []detection.Observation) {
	t.Helper()
	a.mu.Lock()
	if len(a.pending) == 0 {
		a.mu.Unlock()
		t.Fatal("no pending submission to complete")
	}
	completion := a.pending[0]
	a.pending = a.pending[1:]
	a.mu.Unlock()
	completion(obs)
}

func (a *manualAdapter) pendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func frameAt(ts time.Time) *capture.Frame {
	return &capture.Frame{Data: []byte{0xff, 0xd8}, Width: 1920, Height: 1080, Timestamp: ts}
}

// stubSource feeds Run from a pre-filled channel.
type stubSource struct {
	frames chan *capture.Frame
	errs   chan error
}

func newStubSource() *stubSource {
	return &stubSource{
		frames: make(chan *capture.Frame, 16),
		errs:   make(chan error, 1),
	}
}

func (s *stubSource) Start() error                  { return nil }
func (s *stubSource) Stop()                         {}
func (s *stubSource) Frames() <-chan *capture.Frame { return s.frames }
func (s *stubSource) Errors() <-chan error          { return s.errs }

func TestPipeline_ThrottlesFrames(t *testing.T) {
	adapter := &manualAdapter{}
	p := New(Config{MinDetectionInterval: 100 * time.Millisecond}, adapter, func(ResultSet) {})
	p.Start()
	defer p.Stop()

	base := time.Now()
	p.OnFrame(frameAt(base))
	p.OnFrame(frameAt(base.Add(10 * time.Millisecond)))
	p.OnFrame(frameAt(base.Add(20 * time.Millisecond)))

	stats := p.Stats()
	if stats.FramesSeen != 3 {
		t.Errorf("seen = %d, want 3", stats.FramesSeen)
	}
	if stats.FramesAdmitted != 1 {
		t.Errorf("admitted = %d, want 1", stats.FramesAdmitted)
	}
	if stats.FramesThrottled != 2 {
		t.Errorf("throttled = %d, want 2", stats.FramesThrottled)
	}
	if got := adapter.pendingCount(); got != 1 {
		t.Errorf("pending submissions = %d, want 1", got)
	}
}

func TestPipeline_SingleOutstandingSubmission(t *testing.T) {
	adapter := &manualAdapter{}
	c := newCollector()
	p := New(Config{MinDetectionInterval: 10 * time.Millisecond}, adapter, c.onResult)
	p.Start()
	defer p.Stop()

	base := time.Now()
	p.OnFrame(frameAt(base))
	// Past the throttle window but the first detection is still in flight.
	p.OnFrame(frameAt(base.Add(50 * time.Millisecond)))

	stats := p.Stats()
	if stats.FramesBusy != 1 {
		t.Errorf("busy drops = %d, want 1", stats.FramesBusy)
	}
	if got := adapter.pendingCount(); got != 1 {
		t.Errorf("pending submissions = %d, want 1", got)
	}

	adapter.complete(t, nil)
	c.waitFor(t, 1)

	// Completion clears the in-flight slot; the next frame goes through.
	p.OnFrame(frameAt(base.Add(100 * time.Millisecond)))
	if got := adapter.pendingCount(); got != 1 {
		t.Errorf("pending submissions after completion = %d, want 1", got)
	}
	if stats := p.Stats(); stats.FramesAdmitted != 2 {
		t.Errorf("admitted = %d, want 2", stats.FramesAdmitted)
	}
}

func TestPipeline_ViewportSnapshotAtCompletion(t *testing.T) {
	adapter := &manualAdapter{}
	c := newCollector()
	p := New(DefaultConfig(), adapter, c.onResult)
	p.Start()
	defer p.Stop()

	p.OnFrame(frameAt(time.Now()))

	// Resize lands while the detection is in flight; conversion must use the
	// size current at completion time.
	p.SetViewportSize(phoneViewport.Width, phoneViewport.Height)
	adapter.complete(t, []detection.Observation{
		{BoundingBox: geometry.Rect{X: 0.3, Y: 0.4, W: 0.2, H: 0.3}},
	})
	c.waitFor(t, 1)

	box := c.snapshot()[0][0].BoundingBox
	if !almostEqual(box.Y, 253.2) || !almostEqual(box.W, 300.089) {
		t.Errorf("unexpected box %+v, want y=253.2 w=300.089", box)
	}
}

func TestPipeline_EmptyResultStillDelivered(t *testing.T) {
	adapter := &manualAdapter{}
	c := newCollector()
	p := New(DefaultConfig(), adapter, c.onResult)
	p.Start()
	defer p.Stop()
	p.SetViewportSize(phoneViewport.Width, phoneViewport.Height)

	p.OnFrame(frameAt(time.Now()))
	adapter.complete(t, nil)
	c.waitFor(t, 1)

	got := c.snapshot()[0]
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result set, got %v", got)
	}
}

func TestPipeline_ViewportPairIsAtomic(t *testing.T) {
	p := New(DefaultConfig(), &manualAdapter{}, func(ResultSet) {})

	sizes := []geometry.Size{
		{Width: 390, Height: 844},
		{Width: 844, Height: 390},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			s := sizes[i%2]
			p.SetViewportSize(s.Width, s.Height)
		}
	}()

	for i := 0; i < 1000; i++ {
		got := p.ViewportSize()
		if got.IsZero() {
			continue // initial value before the writer starts
		}
		if got != sizes[0] && got != sizes[1] {
			t.Fatalf("observed torn viewport %+v", got)
		}
	}
	<-done
}

func TestPipeline_FrameTapSeesThrottledFrames(t *testing.T) {
	adapter := &manualAdapter{}
	p := New(Config{MinDetectionInterval: 100 * time.Millisecond}, adapter, func(ResultSet) {})
	p.Start()
	defer p.Stop()

	var tapped int
	p.SetFrameTap(func(*capture.Frame) { tapped++ })

	src := newStubSource()
	base := time.Now()
	src.frames <- frameAt(base)
	src.frames <- frameAt(base.Add(10 * time.Millisecond))
	src.frames <- frameAt(base.Add(20 * time.Millisecond))
	close(src.frames)

	p.Run(src, nil)

	// The tap runs ahead of gate admission: all three frames pass through it
	// even though the gate only admits the first.
	if tapped != 3 {
		t.Errorf("tapped = %d, want 3", tapped)
	}
	stats := p.Stats()
	if stats.FramesAdmitted != 1 || stats.FramesThrottled != 2 {
		t.Errorf("admitted/throttled = %d/%d, want 1/2", stats.FramesAdmitted, stats.FramesThrottled)
	}
}

func TestDetectorAdapter_ErrorYieldsEmptyResults(t *testing.T) {
	mock := detection.NewMock().FailWith(errors.New("inference backend unavailable"))
	adapter := NewDetectorAdapter(mock)

	done := make(chan []detection.Observation, 1)
	adapter.Submit(frameAt(time.Now()), func(obs []detection.Observation) {
		done <- obs
	})

	select {
	case obs := <-done:
		if len(obs) != 0 {
			t.Errorf("expected no observations on detector error, got %d", len(obs))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion never invoked")
	}
}

func TestDetectorAdapter_PassesThroughObservations(t *testing.T) {
	mock := detection.NewMock([]detection.Observation{
		{BoundingBox: geometry.Rect{X: 0.2, Y: 0.2, W: 0.4, H: 0.4}, Confidence: 0.95},
	})
	adapter := NewDetectorAdapter(mock)

	done := make(chan []detection.Observation, 1)
	adapter.Submit(frameAt(time.Now()), func(obs []detection.Observation) {
		done <- obs
	})

	select {
	case obs := <-done:
		if len(obs) != 1 || obs[0].Confidence != 0.95 {
			t.Errorf("unexpected observations %+v", obs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion never invoked")
	}
}
