package pipeline

import (
	"testing"
	"time"
)

func TestFrameGate_FirstFrameAdmitted(t *testing.T) {
	g := NewFrameGate(100 * time.Millisecond)
	if !g.Admit(time.Now()) {
		t.Error("expected first frame to be admitted")
	}
}

func TestFrameGate_Admission(t *testing.T) {
	base := time.Now()

	tests := []struct {
		name     string
		interval time.Duration
		delta    time.Duration
		want     bool
	}{
		{
			name:     "well within interval",
			interval: 100 * time.Millisecond,
			delta:    10 * time.Millisecond,
			want:     false,
		},
		{
			name:     "exactly at interval",
			interval: 100 * time.Millisecond,
			delta:    100 * time.Millisecond,
			want:     false,
		},
		{
			name:     "just past interval",
			interval: 100 * time.Millisecond,
			delta:    100*time.Millisecond + time.Nanosecond,
			want:     true,
		},
		{
			name:     "well past interval",
			interval: 100 * time.Millisecond,
			delta:    time.Second,
			want:     true,
		},
		{
			name:     "zero interval still rejects same instant",
			interval: 0,
			delta:    0,
			want:     false,
		},
		{
			name:     "zero interval admits any later instant",
			interval: 0,
			delta:    time.Nanosecond,
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewFrameGate(tt.interval)
			if !g.Admit(base) {
				t.Fatal("expected first frame to be admitted")
			}
			if got := g.Admit(base.Add(tt.delta)); got != tt.want {
				t.Errorf("Admit(+%v) = %v, want %v", tt.delta, got, tt.want)
			}
		})
	}
}

func TestFrameGate_DeniedFrameLeavesStateUntouched(t *testing.T) {
	base := time.Now()
	g := NewFrameGate(100 * time.Millisecond)

	if !g.Admit(base) {
		t.Fatal("expected first frame to be admitted")
	}
	// A burst of denied frames must not push the admission window forward.
	for i := 1; i <= 5; i++ {
		if g.Admit(base.Add(time.Duration(i) * 20 * time.Millisecond)) {
			t.Fatalf("frame at +%dms should have been denied", i*20)
		}
	}
	if !g.Admit(base.Add(101 * time.Millisecond)) {
		t.Error("expected admission once interval elapsed since last admitted frame")
	}
}

func TestFrameGate_WindowAnchorsToLastAdmitted(t *testing.T) {
	base := time.Now()
	g := NewFrameGate(100 * time.Millisecond)

	g.Admit(base)
	if !g.Admit(base.Add(150 * time.Millisecond)) {
		t.Fatal("expected second admission")
	}
	// Window now anchors at +150ms, not at base.
	if g.Admit(base.Add(200 * time.Millisecond)) {
		t.Error("frame 50ms after last admission should be denied")
	}
	if !g.Admit(base.Add(251 * time.Millisecond)) {
		t.Error("frame 101ms after last admission should be admitted")
	}
}
