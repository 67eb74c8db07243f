package capture

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os/exec"
	"sync"
	"time"
)

// h264Decoder turns H264 NAL units into JPEG frames using ffmpeg with pipe
// I/O. Decoding is rate limited; between decodes the most recent frame is
// reused, which is fine for a detection pipeline that throttles harder than
// the decoder does.
type h264Decoder struct {
	minInterval time.Duration

	mu         sync.Mutex
	lastDecode time.Time

	frameMu     sync.RWMutex
	latestFrame []byte
}

func newH264Decoder(minInterval time.Duration) *h264Decoder {
	return &h264Decoder{
		minInterval: minInterval,
		lastDecode:  time.Now(),
	}
}

// DecodeNAL decodes accumulated NAL units to JPEG. Returns the latest cached
// frame when called faster than minInterval or when ffmpeg cannot produce a
// frame from the data yet.
func (d *h264Decoder) DecodeNAL(nalData []byte) ([]byte, error) {
	if len(nalData) < 100 {
		return d.LatestFrame(), nil
	}

	d.mu.Lock()
	if time.Since(d.lastDecode) < d.minInterval {
		d.mu.Unlock()
		return d.LatestFrame(), nil
	}
	d.lastDecode = time.Now()
	d.mu.Unlock()

	cmd := exec.Command("ffmpeg",
		"-f", "h264",
		"-i", "pipe:0",
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	go func() {
		stdin.Write(nalData)
		stdin.Close()
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			// Not enough data for a full frame yet; keep the cached one.
			return d.LatestFrame(), nil
		}
	case <-time.After(200 * time.Millisecond):
		cmd.Process.Kill()
		return d.LatestFrame(), nil
	}

	data := stdout.Bytes()
	if len(data) < 1000 {
		return d.LatestFrame(), nil
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
		return d.LatestFrame(), nil
	}

	frame := make([]byte, len(data))
	copy(frame, data)

	d.frameMu.Lock()
	d.latestFrame = frame
	d.frameMu.Unlock()

	return frame, nil
}

// LatestFrame returns a copy of the most recently decoded frame, or nil.
func (d *h264Decoder) LatestFrame() []byte {
	d.frameMu.RLock()
	defer d.frameMu.RUnlock()

	if d.latestFrame == nil {
		return nil
	}
	frame := make([]byte, len(d.latestFrame))
	copy(frame, d.latestFrame)
	return frame
}
