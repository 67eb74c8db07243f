// Package overlay serves the face-overlay dashboard: a websocket feed of
// viewport-space result sets plus a status API. The browser reports its
// viewport size over the same socket, so the pipeline always converts into
// the surface the overlay is actually drawn on.
package overlay

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/visionkit/go-facepipe/internal/log"
	"github.com/visionkit/go-facepipe/pkg/hub"
	"github.com/visionkit/go-facepipe/pkg/pipeline"
)

// Server is the overlay dashboard server
type Server struct {
	app  *fiber.App
	port string

	// Hubs for websocket broadcast
	resultHub  *hub.Hub
	previewHub *hub.Hub

	// Last published result set, replayed to newly connected clients
	lastResults   pipeline.ResultSet
	lastResultsMu sync.RWMutex

	// OnViewportResize is invoked when a client reports its viewport size.
	OnViewportResize func(width, height float64)

	// StatsSource provides pipeline counters for /api/status. May be nil.
	StatsSource func() pipeline.Stats
}

// NewServer creates an overlay server listening on port.
func NewServer(port string) *Server {
	s := &Server{
		port:       port,
		resultHub:  hub.New("results"),
		previewHub: hub.New("preview"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Face Overlay",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/results", s.handleLastResults)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/results", websocket.New(s.handleResultsWS))
	app.Get("/ws/preview", websocket.New(s.handlePreviewWS))

	s.app = app
	return s
}

// Start starts the server. Blocks.
func (s *Server) Start() error {
	log.Info("overlay dashboard listening", "addr", "http://localhost:"+s.port)

	go s.resultHub.Run()
	go s.previewHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("overlay server failed", "error", err)
		}
	}()
}

// PublishResults broadcasts a result set to all connected overlay clients.
// Safe to call from the pipeline's delivery goroutine; never blocks.
func (s *Server) PublishResults(results pipeline.ResultSet) {
	s.lastResultsMu.Lock()
	s.lastResults = results
	s.lastResultsMu.Unlock()

	if err := s.resultHub.BroadcastJSON(resultEnvelope{Type: "results", Faces: results}); err != nil {
		log.Warn("result broadcast failed", "error", err)
	}
}

// PublishPreview broadcasts a JPEG preview frame to preview clients.
func (s *Server) PublishPreview(jpegData []byte) {
	s.previewHub.BroadcastBinary(jpegData)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
