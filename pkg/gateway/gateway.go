// Package gateway implements the session router: it resolves each user's
// agent sandbox through a Resolver and forwards chat requests into it with a
// bounded retry budget for cold-start symptoms.
package gateway

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	// DefaultAttempts is the forward retry budget for transient errors.
	DefaultAttempts = 3

	// DefaultRetryDelay is the fixed spacing between forward attempts.
	DefaultRetryDelay = 2 * time.Second

	// DefaultForwardTimeout bounds one forward attempt.
	DefaultForwardTimeout = 60 * time.Second
)

// Resolver resolves a user to their agent instance address, provisioning it
// when needed. Satisfied by sandbox.Provisioner.
type Resolver interface {
	Ensure(ctx context.Context, userID string) (string, error)
}

// Config holds gateway settings.
type Config struct {
	// ListenAddr is the address the gateway listens on.
	ListenAddr string

	// Attempts is the forward retry budget. Defaults to DefaultAttempts.
	Attempts int

	// RetryDelay is the spacing between attempts. Defaults to
	// DefaultRetryDelay; overridable for tests.
	RetryDelay time.Duration

	// ForwardTimeout bounds one forward attempt. Defaults to
	// DefaultForwardTimeout.
	ForwardTimeout time.Duration
}

// Server is the gateway HTTP server.
type Server struct {
	config    Config
	resolver  Resolver
	forwarder *forwarder
	logger    *zap.Logger
	app       *fiber.App
}

// NewServer creates a gateway server routing chats into per-user sandboxes.
func NewServer(config Config, resolver Resolver, logger *zap.Logger) *Server {
	if config.Attempts <= 0 {
		config.Attempts = DefaultAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if config.ForwardTimeout <= 0 {
		config.ForwardTimeout = DefaultForwardTimeout
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		resolver: resolver,
		forwarder: newForwarder(forwarderConfig{
			attempts: config.Attempts,
			delay:    config.RetryDelay,
			timeout:  config.ForwardTimeout,
		}, logger),
		logger: logger,
		app:    app,
	}

	app.Post("/u/:user_id/chat", s.handleChat)
	app.Get("/healthz", s.handleHealthz)

	return s
}

// Run starts the gateway on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting gateway",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the gateway.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}
