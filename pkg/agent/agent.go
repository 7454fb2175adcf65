// Package agent implements the per-user agent HTTP server that runs inside a
// sandbox: it answers chats through a model provider, augments prompts with
// retrieved memory, dispatches slash-command tools, and records finished
// exchanges asynchronously.
package agent

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/warren/pkg/agent/recorder"
	"github.com/papercomputeco/warren/pkg/llm/provider"
	"github.com/papercomputeco/warren/pkg/memory"
	"github.com/papercomputeco/warren/pkg/tools"
)

// Config holds agent server settings.
type Config struct {
	// ListenAddr is the address the agent listens on.
	ListenAddr string
}

// Server is the agent HTTP server.
type Server struct {
	config   Config
	provider provider.Provider
	memory   *memory.Manager
	tools    *tools.Registry
	recorder *recorder.Pool
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates an agent server. The memory manager and recorder may be
// nil when memory is disabled; /agent then behaves like /chat with tools.
func NewServer(config Config, prov provider.Provider, mgr *memory.Manager, registry *tools.Registry, rec *recorder.Pool, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		provider: prov,
		memory:   mgr,
		tools:    registry,
		recorder: rec,
		logger:   logger,
		app:      app,
	}

	app.Get("/", s.handleRoot)
	app.Get("/health", s.handleHealth)
	app.Post("/chat", s.handleChat)
	app.Post("/agent", s.handleAgent)

	return s
}

// Run starts the agent on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting agent",
		zap.String("listen", s.config.ListenAddr),
		zap.String("provider", s.provider.Name()),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the agent. The recorder pool, when present,
// is drained after the listener stops so queued exchanges still land.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	if s.recorder != nil {
		s.recorder.Close()
	}
	return err
}

// App exposes the fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}
