package capture

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/visionkit/go-facepipe/internal/log"
)

// Webcam captures JPEG frames from a local camera via OpenCV.
type Webcam struct {
	device    string
	targetFPS int

	cap      *gocv.VideoCapture
	frames   chan *Frame
	errs     chan error
	stop     chan struct{}
	stopOnce sync.Once
}

// NewWebcam creates a webcam source. device is a numeric index ("0") or a
// device path ("/dev/video0"). targetFPS caps the read rate; 0 means 30.
func NewWebcam(device string, targetFPS int) *Webcam {
	if targetFPS <= 0 {
		targetFPS = 30
	}
	return &Webcam{
		device:    device,
		targetFPS: targetFPS,
		frames:    make(chan *Frame, 1),
		errs:      make(chan error, 1),
		stop:      make(chan struct{}),
	}
}

// Start opens the camera and begins the read loop.
func (w *Webcam) Start() error {
	var err error
	if idx, convErr := strconv.Atoi(w.device); convErr == nil {
		w.cap, err = gocv.OpenVideoCapture(idx)
	} else {
		w.cap, err = gocv.OpenVideoCapture(w.device)
	}
	if err != nil {
		return fmt.Errorf("open camera %s: %w", w.device, err)
	}

	go w.readLoop()
	return nil
}

// readLoop owns the device handle: it is the only goroutine that reads the
// capture and the one that closes it, so Stop can never free the handle
// mid-read.
func (w *Webcam) readLoop() {
	defer close(w.frames)
	defer close(w.errs)
	defer w.cap.Close()

	mat := gocv.NewMat()
	defer mat.Close()

	ticker := time.NewTicker(time.Second / time.Duration(w.targetFPS))
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return

		case <-ticker.C:
			if ok := w.cap.Read(&mat); !ok {
				select {
				case <-w.stop:
				default:
					w.errs <- fmt.Errorf("camera %s: read failed", w.device)
				}
				return
			}
			if mat.Empty() {
				continue
			}

			buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
			if err != nil {
				log.Warn("frame encode failed", "error", err)
				continue
			}

			data := make([]byte, len(buf.GetBytes()))
			copy(data, buf.GetBytes())
			buf.Close()

			frame := &Frame{
				Data:      data,
				Width:     mat.Cols(),
				Height:    mat.Rows(),
				Timestamp: time.Now(),
			}

			// Never block the camera on a slow consumer.
			select {
			case w.frames <- frame:
			default:
			}
		}
	}
}

// Stop signals the read loop to exit; the loop releases the device on its
// way out. Idempotent, safe before Start.
func (w *Webcam) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}

// Frames returns the frame channel.
func (w *Webcam) Frames() <-chan *Frame { return w.frames }

// Errors returns the error channel.
func (w *Webcam) Errors() <-chan error { return w.errs }
