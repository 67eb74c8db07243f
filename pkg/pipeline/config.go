package pipeline

import "time"

// Config holds the tunable parameters for the detection pipeline.
type Config struct {
	// MinDetectionInterval is the minimum wall-clock time between two frames
	// admitted for detection. Frames arriving faster are dropped, not
	// buffered.
	MinDetectionInterval time.Duration
}

// DefaultConfig returns the recommended configuration: ~12 detections per
// second, enough headroom for a detector that finishes within one interval.
func DefaultConfig() Config {
	return Config{
		MinDetectionInterval: 80 * time.Millisecond,
	}
}

// ResponsiveConfig returns a configuration for faster detectors (local
// YuNet on a capable machine): ~16 detections per second.
func ResponsiveConfig() Config {
	cfg := DefaultConfig()
	cfg.MinDetectionInterval = 60 * time.Millisecond
	return cfg
}

// ConservativeConfig returns a configuration for slow detectors (remote
// services, constrained hardware): ~6 detections per second.
func ConservativeConfig() Config {
	cfg := DefaultConfig()
	cfg.MinDetectionInterval = 150 * time.Millisecond
	return cfg
}
