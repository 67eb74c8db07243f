package pipeline

import "time"

// FrameGate throttles frame admission for detection. It keeps a single piece
// of state, the time of the last admitted frame, and admits a frame only when
// more than the minimum interval has passed since then.
//
// The gate runs on the capture context: Admit is called synchronously with
// frame arrival from one goroutine and is not internally synchronized.
// Callers must supply monotonic clock values; time.Now() qualifies.
type FrameGate struct {
	minInterval    time.Duration
	lastAdmittedAt time.Time
}

// NewFrameGate creates a gate with the given minimum admission interval.
func NewFrameGate(minInterval time.Duration) *FrameGate {
	return &FrameGate{minInterval: minInterval}
}

// Admit reports whether a frame arriving at now may be sent for detection,
// and records the admission when it may. Frames are never queued: a denied
// frame is dropped by the caller.
func (g *FrameGate) Admit(now time.Time) bool {
	if !g.lastAdmittedAt.IsZero() && now.Sub(g.lastAdmittedAt) <= g.minInterval {
		return false
	}
	g.lastAdmittedAt = now
	return true
}
