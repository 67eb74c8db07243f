package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/visionkit/go-facepipe/pkg/geometry"
)

// YuNetDetector uses OpenCV's FaceDetectorYN for face detection.
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex // Protects inference
}

// NewYuNet creates a YuNet face detector using GoCV's built-in FaceDetectorYN.
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	topK := cfg.MaxFaces
	if topK <= 0 {
		topK = 5000
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // No config file needed for ONNX
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3, // NMS threshold
		topK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		config:   cfg,
	}, nil
}

// Detect finds faces in the JPEG image.
func (d *YuNetDetector) Detect(jpeg []byte) ([]Observation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(img, &faces)

	// YuNet output format (15 columns):
	// 0-3: x, y, w, h (bounding box in pixels, top-left origin)
	// 4-13: right eye, left eye, nose tip, right mouth corner, left mouth
	//       corner (x,y pixel pairs)
	// 14: face score
	var observations []Observation
	for r := 0; r < faces.Rows(); r++ {
		x := float64(faces.GetFloatAt(r, 0))
		y := float64(faces.GetFloatAt(r, 1))
		w := float64(faces.GetFloatAt(r, 2))
		h := float64(faces.GetFloatAt(r, 3))
		score := float64(faces.GetFloatAt(r, 14))

		if w <= 0 || h <= 0 {
			continue
		}

		rightEye := boxLocal(faces, r, 4, x, y, w, h)
		leftEye := boxLocal(faces, r, 6, x, y, w, h)
		nose := boxLocal(faces, r, 8, x, y, w, h)
		mouthRight := boxLocal(faces, r, 10, x, y, w, h)
		mouthLeft := boxLocal(faces, r, 12, x, y, w, h)

		observations = append(observations, Observation{
			BoundingBox: geometry.Rect{
				X: x / imgW,
				Y: 1 - y/imgH - h/imgH,
				W: w / imgW,
				H: h / imgH,
			},
			Landmarks: map[Region][]geometry.Point{
				RegionLeftEye:  {leftEye},
				RegionRightEye: {rightEye},
				RegionNose:     {nose},
				RegionMouth:    {mouthLeft, mouthRight},
			},
			Confidence: score,
		})

		if d.config.MaxFaces > 0 && len(observations) >= d.config.MaxFaces {
			break
		}
	}

	return observations, nil
}

// boxLocal converts the pixel landmark at column col into face-box-relative
// normalized coordinates, bottom-left origin.
func boxLocal(faces gocv.Mat, row, col int, x, y, w, h float64) geometry.Point {
	lx := float64(faces.GetFloatAt(row, col))
	ly := float64(faces.GetFloatAt(row, col+1))
	return geometry.Point{
		X: (lx - x) / w,
		Y: 1 - (ly-y)/h,
	}
}

// Close releases the detector resources.
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
