package detection

import (
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/visionkit/go-facepipe/pkg/geometry"
)

// HaarConfig holds cascade classifier configuration.
type HaarConfig struct {
	FaceCascadePath string
	EyeCascadePath  string // Optional; no eye landmarks when empty
	ScaleFactor     float64
	MinNeighbors    int
	MinSize         int // Minimum face size in pixels
	MaxFaces        int // Cap on reported faces, 0 = unlimited
}

// DefaultHaarConfig returns the classic OpenCV frontal-face setup.
func DefaultHaarConfig() HaarConfig {
	return HaarConfig{
		FaceCascadePath: "models/haarcascade_frontalface_default.xml",
		EyeCascadePath:  "models/haarcascade_eye.xml",
		ScaleFactor:     1.1,
		MinNeighbors:    5,
		MinSize:         30,
	}
}

// HaarDetector uses OpenCV Haar cascades. Eyes are detected inside each
// face's region of interest, so eye landmarks come out face-box-relative by
// construction.
type HaarDetector struct {
	face   gocv.CascadeClassifier
	eye    gocv.CascadeClassifier
	hasEye bool
	config HaarConfig
	mu     sync.Mutex // Protects inference
}

// NewHaar creates a Haar cascade face detector.
func NewHaar(cfg HaarConfig) (*HaarDetector, error) {
	if _, err := os.Stat(cfg.FaceCascadePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("cascade file not found: %s", cfg.FaceCascadePath)
	}

	d := &HaarDetector{config: cfg}

	d.face = gocv.NewCascadeClassifier()
	if !d.face.Load(cfg.FaceCascadePath) {
		d.face.Close()
		return nil, fmt.Errorf("load cascade: %s", cfg.FaceCascadePath)
	}

	if cfg.EyeCascadePath != "" {
		d.eye = gocv.NewCascadeClassifier()
		if !d.eye.Load(cfg.EyeCascadePath) {
			d.face.Close()
			d.eye.Close()
			return nil, fmt.Errorf("load cascade: %s", cfg.EyeCascadePath)
		}
		d.hasEye = true
	}

	return d, nil
}

// Detect finds faces in the JPEG image.
func (d *HaarDetector) Detect(jpeg []byte) ([]Observation, error) {
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

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())

	minSize := image.Pt(d.config.MinSize, d.config.MinSize)
	faces := d.face.DetectMultiScaleWithParams(
		gray, d.config.ScaleFactor, d.config.MinNeighbors, 0, minSize, image.Point{})

	var observations []Observation
	for _, face := range faces {
		obs := Observation{
			BoundingBox: geometry.Rect{
				X: float64(face.Min.X) / imgW,
				Y: 1 - float64(face.Max.Y)/imgH,
				W: float64(face.Dx()) / imgW,
				H: float64(face.Dy()) / imgH,
			},
			// Cascades report hits, not scores.
			Confidence: 1,
		}

		if d.hasEye {
			obs.Landmarks = d.detectEyes(gray, face)
		}

		observations = append(observations, obs)
		if d.config.MaxFaces > 0 && len(observations) >= d.config.MaxFaces {
			break
		}
	}

	return observations, nil
}

// detectEyes runs the eye cascade on the face's region of interest. The
// returned points are relative to the ROI, which is exactly the
// face-box-relative convention the pipeline expects.
func (d *HaarDetector) detectEyes(gray gocv.Mat, face image.Rectangle) map[Region][]geometry.Point {
	roi := gray.Region(face)
	defer roi.Close()

	// Eyes inside a confirmed face can be matched less strictly.
	eyes := d.eye.DetectMultiScaleWithParams(roi, d.config.ScaleFactor, 3, 0, image.Point{}, image.Point{})
	if len(eyes) == 0 {
		return nil
	}

	fw := float64(face.Dx())
	fh := float64(face.Dy())

	centers := make([]geometry.Point, 0, len(eyes))
	for _, eye := range eyes {
		cx := (float64(eye.Min.X) + float64(eye.Dx())/2) / fw
		cy := (float64(eye.Min.Y) + float64(eye.Dy())/2) / fh
		centers = append(centers, geometry.Point{X: cx, Y: 1 - cy})
	}
	sort.Slice(centers, func(i, j int) bool { return centers[i].X < centers[j].X })

	// Subject's right eye appears on the image-left side.
	landmarks := make(map[Region][]geometry.Point)
	if len(centers) == 1 {
		if centers[0].X < 0.5 {
			landmarks[RegionRightEye] = centers[:1]
		} else {
			landmarks[RegionLeftEye] = centers[:1]
		}
		return landmarks
	}

	landmarks[RegionRightEye] = []geometry.Point{centers[0]}
	landmarks[RegionLeftEye] = []geometry.Point{centers[len(centers)-1]}
	return landmarks
}

// Close releases the classifier resources.
func (d *HaarDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.face.Close()
	if d.hasEye {
		d.eye.Close()
	}
	return nil
}
