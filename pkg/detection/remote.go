package detection

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/visionkit/go-facepipe/internal/log"
)

// RemoteDetector talks to a detection service over a websocket: one binary
// JPEG message out, one JSON observation list back. The wire format matches
// Observation directly.
type RemoteDetector struct {
	serverURL string
	timeout   time.Duration

	mu   sync.Mutex // Serializes the request/reply exchange
	conn *websocket.Conn
}

// RemoteOption configures a RemoteDetector.
type RemoteOption func(*RemoteDetector)

// WithTimeout sets the per-detection reply deadline.
func WithTimeout(d time.Duration) RemoteOption {
	return func(r *RemoteDetector) { r.timeout = d }
}

// NewRemote creates a detector backed by a websocket service at host.
func NewRemote(host string, opts ...RemoteOption) *RemoteDetector {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	r := &RemoteDetector{
		serverURL: u.String(),
		timeout:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Detect sends the frame to the service and waits for its observation list.
// A broken connection is dropped and redialed on the next call.
func (r *RemoteDetector) Detect(jpeg []byte) ([]Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		if err := r.dial(); err != nil {
			return nil, err
		}
	}

	deadline := time.Now().Add(r.timeout)
	r.conn.SetWriteDeadline(deadline)
	if err := r.conn.WriteMessage(websocket.BinaryMessage, jpeg); err != nil {
		r.drop()
		return nil, fmt.Errorf("send frame: %w", err)
	}

	r.conn.SetReadDeadline(deadline)
	_, message, err := r.conn.ReadMessage()
	if err != nil {
		r.drop()
		return nil, fmt.Errorf("read result: %w", err)
	}

	var observations []Observation
	if err := json.Unmarshal(message, &observations); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return observations, nil
}

func (r *RemoteDetector) dial() error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(r.serverURL, nil)
	if err != nil {
		return fmt.Errorf("connect detector: %w", err)
	}
	log.Info("connected to detection service", "url", r.serverURL)
	r.conn = conn
	return nil
}

func (r *RemoteDetector) drop() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

// Close shuts the connection down.
func (r *RemoteDetector) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop()
	return nil
}
