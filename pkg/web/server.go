// Package web exposes the voxa HTTP surface: the duplex voice WebSocket,
// the REST conversation API, and operational endpoints.
package web

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxalabs/voxa/internal/metrics"
	"github.com/voxalabs/voxa/pkg/agent"
	"github.com/voxalabs/voxa/pkg/llm"
	"github.com/voxalabs/voxa/pkg/session"
	"github.com/voxalabs/voxa/pkg/stt"
	"github.com/voxalabs/voxa/pkg/tts"
)

// STTFactory opens a fresh realtime transcription session. The voice
// handler calls it once per audio turn.
type STTFactory func() (stt.Provider, error)

// Deps wires the server to the rest of the pipeline. Registry and
// Orchestrator are required; everything else degrades gracefully when nil.
type Deps struct {
	Registry     *session.Registry
	Orchestrator *agent.Orchestrator

	// STTFactory is nil when transcription is not configured.
	STTFactory STTFactory

	// Health probes for /health. Nil means not configured.
	LLM llm.Provider
	TTS tts.Provider

	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// IdleTimeout is the cutoff used by the cleanup endpoint.
	IdleTimeout time.Duration

	// Debug enables request logging.
	Debug bool
}

// Server is the voxa HTTP server.
type Server struct {
	app    *fiber.App
	port   int
	deps   Deps
	logger *slog.Logger

	startedAt time.Time
}

// NewServer builds the fiber app and registers all routes.
func NewServer(port int, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.IdleTimeout <= 0 {
		deps.IdleTimeout = session.DefaultIdleTimeout
	}

	s := &Server{
		port:      port,
		deps:      deps,
		logger:    deps.Logger.With("component", "web.server"),
		startedAt: time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "voxa",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if deps.Debug {
		app.Use(logger.New())
	}
	if deps.Metrics != nil {
		app.Use(s.countRequests)
	}

	// Operational endpoints
	app.Get("/health", s.handleHealth)
	app.Get("/status", s.handleStatus)
	app.Get("/voices", s.handleVoices)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Post("/admin/cleanup", s.handleCleanup)

	// REST conversation API
	agentGroup := app.Group("/agent")
	agentGroup.Post("/sessions", s.handleCreateSession)
	agentGroup.Delete("/sessions/:id", s.handleDeleteSession)
	agentGroup.Post("/chat/:id", s.handleChat)
	agentGroup.Get("/history/:id", s.handleGetHistory)
	agentGroup.Delete("/history/:id", s.handleClearHistory)

	// Duplex voice channel
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/voice", websocket.New(s.handleVoiceWS))

	s.app = app
	return s
}

// Start listens on the configured port and blocks until shutdown.
func (s *Server) Start() error {
	addr := ":" + strconv.Itoa(s.port)
	s.logger.Info("server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Serve accepts connections on an existing listener. Used by tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// App returns the underlying fiber app. Used by tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// countRequests records one counter sample per completed request.
func (s *Server) countRequests(c *fiber.Ctx) error {
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
	}
	s.deps.Metrics.HTTPRequests.WithLabelValues(
		c.Method(), c.Route().Path, strconv.Itoa(status),
	).Inc()
	return err
}
