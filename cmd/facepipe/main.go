// Facepipe - live face detection pipeline with a browser overlay
//
// Captures frames from a webcam or a WebRTC producer, runs face detection at
// a throttled rate, and streams viewport-space results to the overlay
// dashboard over websocket.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/visionkit/go-facepipe/internal/config"
	"github.com/visionkit/go-facepipe/internal/log"
	"github.com/visionkit/go-facepipe/pkg/capture"
	"github.com/visionkit/go-facepipe/pkg/detection"
	"github.com/visionkit/go-facepipe/pkg/overlay"
	"github.com/visionkit/go-facepipe/pkg/pipeline"
)

func main() {
	var (
		sourceName  = flag.String("source", "webcam", "frame source: webcam, webrtc")
		backendName = flag.String("backend", "yunet", "detector backend: yunet, haar, remote, mock")
		device      = flag.String("device", config.CameraDevice(), "webcam device index or path")
		signalling  = flag.String("signalling", "", "webrtc signalling host (host:port)")
		producer    = flag.String("producer", "camera", "webrtc producer name")
		port        = flag.String("port", config.DashboardPort(), "dashboard port")
		interval    = flag.Duration("interval", pipeline.DefaultConfig().MinDetectionInterval, "minimum interval between detections")
		fps         = flag.Int("fps", 30, "webcam capture rate")
		verbose     = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	// FACEPIPE_LOG sets the base level; -v forces debug.
	level := log.ParseLevel(os.Getenv("FACEPIPE_LOG"))
	if *verbose {
		level = slog.LevelDebug
	}
	log.Init(level)

	detector, err := buildDetector(*backendName)
	if err != nil {
		log.Error("detector setup failed", "backend", *backendName, "error", err)
		os.Exit(1)
	}
	defer detector.Close()

	source, err := buildSource(*sourceName, *device, *signalling, *producer, *fps)
	if err != nil {
		log.Error("source setup failed", "source", *sourceName, "error", err)
		os.Exit(1)
	}

	server := overlay.NewServer(*port)

	cfg := pipeline.Config{MinDetectionInterval: *interval}
	pipe := pipeline.New(cfg, pipeline.NewDetectorAdapter(detector), server.PublishResults)
	server.OnViewportResize = pipe.SetViewportSize
	server.StatsSource = pipe.Stats

	// Raw JPEG feed for /ws/preview, throttled independently of detection.
	previewGate := pipeline.NewFrameGate(100 * time.Millisecond)
	pipe.SetFrameTap(func(frame *capture.Frame) {
		if previewGate.Admit(frame.Timestamp) {
			server.PublishPreview(frame.Data)
		}
	})

	pipe.Start()
	defer pipe.Stop()
	server.StartAsync()

	if err := source.Start(); err != nil {
		log.Error("source start failed", "error", err)
		os.Exit(1)
	}
	defer source.Stop()

	log.Info("facepipe running",
		"source", *sourceName,
		"backend", *backendName,
		"interval", interval.String(),
		"dashboard", "http://localhost:"+*port)

	// Ctrl+C stops the capture loop.
	stop := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		close(stop)
	}()

	go statsLoop(pipe, stop)

	pipe.Run(source, stop)

	server.Shutdown()
}

func buildDetector(backend string) (detection.Detector, error) {
	switch backend {
	case "yunet":
		cfg := detection.DefaultConfig()
		cfg.ModelPath = config.ModelPath()
		return detection.NewYuNet(cfg)
	case "haar":
		return detection.NewHaar(detection.DefaultHaarConfig())
	case "remote":
		return detection.NewRemote(config.DetectorURLRequired()), nil
	case "mock":
		return detection.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func buildSource(source, device, signalling, producer string, fps int) (capture.Source, error) {
	switch source {
	case "webcam":
		return capture.NewWebcam(device, fps), nil
	case "webrtc":
		if signalling == "" {
			return nil, fmt.Errorf("webrtc source requires -signalling host:port")
		}
		return capture.NewWebRTC(signalling, producer), nil
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}

// statsLoop logs pipeline counters periodically so drop behavior is visible
// without opening the dashboard.
func statsLoop(pipe *pipeline.Pipeline, stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s := pipe.Stats()
			log.Debug("pipeline stats",
				"seen", s.FramesSeen,
				"admitted", s.FramesAdmitted,
				"throttled", s.FramesThrottled,
				"busy", s.FramesBusy,
				"delivered", s.ResultsDelivered,
				"superseded", s.ResultsSuperseded)
		case <-stop:
			return
		}
	}
}
