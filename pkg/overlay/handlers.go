package overlay

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/visionkit/go-facepipe/internal/log"
	"github.com/visionkit/go-facepipe/pkg/hub"
	"github.com/visionkit/go-facepipe/pkg/pipeline"
)

// resultEnvelope wraps a result set for the wire. Faces is never null: an
// empty pass still reaches the overlay so it can clear stale boxes.
type resultEnvelope struct {
	Type  string             `json:"type"`
	Faces pipeline.ResultSet `json:"faces"`
}

// clientMessage is an inbound control message from an overlay client.
type clientMessage struct {
	Type   string  `json:"type"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// handleStatus returns pipeline counters and client counts
func (s *Server) handleStatus(c *fiber.Ctx) error {
	var stats pipeline.Stats
	if s.StatsSource != nil {
		stats = s.StatsSource()
	}
	return c.JSON(fiber.Map{
		"pipeline":        stats,
		"result_clients":  s.resultHub.ClientCount(),
		"preview_clients": s.previewHub.ClientCount(),
	})
}

// handleLastResults returns the most recently published result set
func (s *Server) handleLastResults(c *fiber.Ctx) error {
	s.lastResultsMu.RLock()
	defer s.lastResultsMu.RUnlock()
	results := s.lastResults
	if results == nil {
		results = pipeline.ResultSet{}
	}
	return c.JSON(resultEnvelope{Type: "results", Faces: results})
}

// handleResultsWS streams result sets to an overlay client and accepts
// viewport resize reports from it.
func (s *Server) handleResultsWS(c *websocket.Conn) {
	client := hub.NewClient(s.resultHub, c, s.handleClientMessage)

	// Replay the last known result set so a fresh client paints immediately
	// instead of waiting for the next detection pass.
	s.lastResultsMu.RLock()
	last := s.lastResults
	s.lastResultsMu.RUnlock()
	if last != nil {
		if data, err := json.Marshal(resultEnvelope{Type: "results", Faces: last}); err == nil {
			c.WriteMessage(websocket.TextMessage, data)
		}
	}

	client.Run()
}

// handlePreviewWS streams JPEG preview frames to a client
func (s *Server) handlePreviewWS(c *websocket.Conn) {
	client := hub.NewClient(s.previewHub, c, nil)
	client.Run()
}

func (s *Server) handleClientMessage(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug("ignoring malformed client message", "error", err)
		return
	}
	switch msg.Type {
	case "viewport":
		if msg.Width <= 0 || msg.Height <= 0 {
			log.Debug("ignoring degenerate viewport", "width", msg.Width, "height", msg.Height)
			return
		}
		if s.OnViewportResize != nil {
			s.OnViewportResize(msg.Width, msg.Height)
		}
	default:
		log.Debug("ignoring unknown client message", "type", msg.Type)
	}
}
