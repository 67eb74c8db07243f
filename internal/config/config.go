// Package config provides configuration helpers for facepipe commands.
package config

import (
	"fmt"
	"os"
)

// Defaults for command wiring.
const (
	DefaultDashboardPort = "8090"
	DefaultCameraDevice  = "0"
	DefaultModelPath     = "models/face_detection_yunet.onnx"
)

// DashboardPort returns the dashboard port from FACEPIPE_PORT or the default.
func DashboardPort() string {
	if port := os.Getenv("FACEPIPE_PORT"); port != "" {
		return port
	}
	return DefaultDashboardPort
}

// CameraDevice returns the capture device from FACEPIPE_CAMERA or the default.
// Accepts a numeric device index or a device path.
func CameraDevice() string {
	if dev := os.Getenv("FACEPIPE_CAMERA"); dev != "" {
		return dev
	}
	return DefaultCameraDevice
}

// ModelPath returns the detector model path from FACEPIPE_MODEL or the default.
func ModelPath() string {
	if path := os.Getenv("FACEPIPE_MODEL"); path != "" {
		return path
	}
	return DefaultModelPath
}

// DetectorURLRequired returns the remote detector address from FACEPIPE_DETECTOR.
// Exits with usage if not set.
func DetectorURLRequired() string {
	url := os.Getenv("FACEPIPE_DETECTOR")
	if url == "" {
		fmt.Fprintln(os.Stderr, "Error: FACEPIPE_DETECTOR environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: FACEPIPE_DETECTOR=192.168.1.20:8080 go run ./cmd/...")
		os.Exit(1)
	}
	return url
}
