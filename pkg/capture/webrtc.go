package capture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"

	"github.com/visionkit/go-facepipe/internal/log"
)

// WebRTCSource consumes a remote H264 video track negotiated through a
// GStreamer-style websocket signalling server and emits decoded JPEG frames.
type WebRTCSource struct {
	signallingURL string
	producerName  string

	ws      *websocket.Conn
	wsMu    sync.Mutex
	pc      *webrtc.PeerConnection
	decoder *h264Decoder

	peerID     string
	producerID string
	sessionID  string

	frames   chan *Frame
	errs     chan error
	stop     chan struct{}
	stopOnce sync.Once
}

// NewWebRTC creates a WebRTC source. host is the signalling server address,
// producer the advertised name of the camera producer to attach to.
func NewWebRTC(host, producer string) *WebRTCSource {
	return &WebRTCSource{
		signallingURL: fmt.Sprintf("ws://%s", host),
		producerName:  producer,
		decoder:       newH264Decoder(50 * time.Millisecond),
		frames:        make(chan *Frame, 1),
		errs:          make(chan error, 1),
		stop:          make(chan struct{}),
	}
}

// Start dials the signalling server, negotiates the peer connection and
// begins emitting frames once the video track arrives.
func (s *WebRTCSource) Start() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	var err error
	s.ws, _, err = dialer.Dial(s.signallingURL, nil)
	if err != nil {
		return fmt.Errorf("signalling connect: %w", err)
	}

	if err := s.waitForWelcome(); err != nil {
		return fmt.Errorf("welcome: %w", err)
	}
	if err := s.findProducer(); err != nil {
		return fmt.Errorf("find producer: %w", err)
	}
	if err := s.createPeerConnection(); err != nil {
		return fmt.Errorf("peer connection: %w", err)
	}
	if err := s.writeJSON(map[string]string{"type": "startSession", "peerId": s.producerID}); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	go s.handleSignalling()
	return nil
}

func (s *WebRTCSource) waitForWelcome() error {
	s.ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := s.ws.ReadMessage()
	s.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var welcome struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
	}
	if err := json.Unmarshal(msg, &welcome); err != nil {
		return err
	}
	if welcome.Type != "welcome" {
		return fmt.Errorf("expected welcome, got %s", welcome.Type)
	}
	s.peerID = welcome.PeerID
	return nil
}

func (s *WebRTCSource) findProducer() error {
	if err := s.writeJSON(map[string]string{"type": "list"}); err != nil {
		return err
	}

	s.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := s.ws.ReadMessage()
	s.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var listResp struct {
		Type      string `json:"type"`
		Producers []struct {
			ID   string            `json:"id"`
			Meta map[string]string `json:"meta"`
		} `json:"producers"`
	}
	if err := json.Unmarshal(msg, &listResp); err != nil {
		return err
	}

	for _, p := range listResp.Producers {
		if name, ok := p.Meta["name"]; ok && name == s.producerName {
			s.producerID = p.ID
			return nil
		}
	}
	return fmt.Errorf("producer %q not found in %d producers", s.producerName, len(listResp.Producers))
}

func (s *WebRTCSource) createPeerConnection() error {
	var err error
	s.pc, err = webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}

	if _, err = s.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	s.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info("video track attached", "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go s.readTrack(track)
		}
	})

	s.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			s.sendICECandidate(candidate)
		}
	})

	return nil
}

func (s *WebRTCSource) handleSignalling() {
	defer close(s.errs)
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		_, msg, err := s.ws.ReadMessage()
		if err != nil {
			select {
			case <-s.stop:
			default:
				s.errs <- fmt.Errorf("signalling: %w", err)
			}
			return
		}

		var baseMsg struct {
			Type      string `json:"type"`
			SessionID string `json:"sessionId"`
		}
		json.Unmarshal(msg, &baseMsg)

		switch baseMsg.Type {
		case "sessionStarted":
			s.sessionID = baseMsg.SessionID
		case "peer":
			s.handlePeerMessage(msg)
		case "endSession":
			return
		}
	}
}

func (s *WebRTCSource) handlePeerMessage(msg []byte) {
	var peerMsg struct {
		SDP *struct {
			Type string `json:"type"`
			SDP  string `json:"sdp"`
		} `json:"sdp"`
		ICE *struct {
			Candidate     string  `json:"candidate"`
			SDPMid        *string `json:"sdpMid"`
			SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
		} `json:"ice"`
	}
	if err := json.Unmarshal(msg, &peerMsg); err != nil {
		return
	}

	if peerMsg.SDP != nil && peerMsg.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  peerMsg.SDP.SDP,
		}
		if err := s.pc.SetRemoteDescription(offer); err != nil {
			log.Warn("set remote description failed", "error", err)
			return
		}

		answer, err := s.pc.CreateAnswer(nil)
		if err != nil {
			log.Warn("create answer failed", "error", err)
			return
		}
		if err := s.pc.SetLocalDescription(answer); err != nil {
			log.Warn("set local description failed", "error", err)
			return
		}

		s.writeJSON(map[string]interface{}{
			"type":      "peer",
			"sessionId": s.sessionID,
			"sdp": map[string]string{
				"type": answer.Type.String(),
				"sdp":  answer.SDP,
			},
		})
	}

	if peerMsg.ICE != nil {
		s.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     peerMsg.ICE.Candidate,
			SDPMid:        peerMsg.ICE.SDPMid,
			SDPMLineIndex: peerMsg.ICE.SDPMLineIndex,
		})
	}
}

func (s *WebRTCSource) sendICECandidate(candidate *webrtc.ICECandidate) {
	if s.sessionID == "" {
		return
	}
	init := candidate.ToJSON()
	s.writeJSON(map[string]interface{}{
		"type":      "peer",
		"sessionId": s.sessionID,
		"ice": map[string]interface{}{
			"candidate":     init.Candidate,
			"sdpMid":        init.SDPMid,
			"sdpMLineIndex": init.SDPMLineIndex,
		},
	})
}

func (s *WebRTCSource) writeJSON(v interface{}) error {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return s.ws.WriteJSON(v)
}

// readTrack collects H264 NAL units off the RTP stream and decodes a frame
// every decode interval.
func (s *WebRTCSource) readTrack(track *webrtc.TrackRemote) {
	defer close(s.frames)

	var nalBuffer bytes.Buffer
	lastDecode := time.Now()

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		rtpPacket, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		appendPayload(&nalBuffer, rtpPacket)

		if time.Since(lastDecode) < 100*time.Millisecond {
			continue
		}
		lastDecode = time.Now()

		data, err := s.decoder.DecodeNAL(nalBuffer.Bytes())
		nalBuffer.Reset()
		if err != nil || data == nil {
			continue
		}

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			continue
		}

		frame := &Frame{
			Data:      data,
			Width:     cfg.Width,
			Height:    cfg.Height,
			Timestamp: time.Now(),
		}

		select {
		case s.frames <- frame:
		default:
		}
	}
}

// appendPayload adds a packet's H264 payload to the NAL buffer. Padding-only
// packets carry no video data and are skipped.
func appendPayload(buf *bytes.Buffer, pkt *rtp.Packet) {
	if len(pkt.Payload) == 0 {
		return
	}
	buf.Write(pkt.Payload)
}

// Stop tears the connection down.
func (s *WebRTCSource) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.pc != nil {
			s.pc.Close()
		}
		if s.ws != nil {
			s.ws.Close()
		}
	})
}

// Frames returns the frame channel.
func (s *WebRTCSource) Frames() <-chan *Frame { return s.frames }

// Errors returns the error channel.
func (s *WebRTCSource) Errors() <-chan error { return s.errs }
