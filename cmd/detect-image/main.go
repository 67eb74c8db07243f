// Detect-image - one-shot face detection on a still image
//
// Reads a JPEG, runs the chosen detector backend once, converts the results
// into the given viewport and prints them as JSON. Useful for checking a
// model file or eyeballing coordinate conversion without a camera.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os"

	"github.com/visionkit/go-facepipe/internal/config"
	"github.com/visionkit/go-facepipe/internal/log"
	"github.com/visionkit/go-facepipe/pkg/detection"
	"github.com/visionkit/go-facepipe/pkg/geometry"
	"github.com/visionkit/go-facepipe/pkg/pipeline"
)

func main() {
	var (
		backendName = flag.String("backend", "yunet", "detector backend: yunet, haar")
		vw          = flag.Float64("vw", 0, "viewport width (defaults to image width)")
		vh          = flag.Float64("vh", 0, "viewport height (defaults to image height)")
	)
	flag.Parse()
	log.Init(slog.LevelWarn)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: detect-image [flags] <image.jpg>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		fail("read image: %v", err)
	}
	imgCfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		fail("decode image: %v", err)
	}
	frame := geometry.Size{Width: float64(imgCfg.Width), Height: float64(imgCfg.Height)}

	viewport := geometry.Size{Width: *vw, Height: *vh}
	if viewport.IsZero() {
		viewport = frame
	}

	detector, err := buildDetector(*backendName)
	if err != nil {
		fail("detector setup: %v", err)
	}
	defer detector.Close()

	observations, err := detector.Detect(data)
	if err != nil {
		fail("detect: %v", err)
	}

	results := pipeline.Assemble(observations, frame, viewport)

	out, err := json.MarshalIndent(struct {
		Image    string             `json:"image"`
		Frame    geometry.Size      `json:"frame"`
		Viewport geometry.Size      `json:"viewport"`
		Faces    pipeline.ResultSet `json:"faces"`
	}{path, frame, viewport, results}, "", "  ")
	if err != nil {
		fail("encode results: %v", err)
	}
	fmt.Println(string(out))
}

func buildDetector(backend string) (detection.Detector, error) {
	switch backend {
	case "yunet":
		cfg := detection.DefaultConfig()
		cfg.ModelPath = config.ModelPath()
		return detection.NewYuNet(cfg)
	case "haar":
		return detection.NewHaar(detection.DefaultHaarConfig())
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
