package gateway

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/warren/pkg/llm"
)

// handleChat ensures the user's sandbox exists and forwards the chat payload
// into it. Missing session_id is a client error; provisioning or forwarding
// failure surfaces as a gateway error.
func (s *Server) handleChat(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "session_id query parameter required",
		})
	}

	addr, err := s.resolver.Ensure(c.Context(), userID)
	if err != nil {
		s.logger.Error("provisioning sandbox failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{
			Error: "agent sandbox unavailable",
		})
	}

	status, body, err := s.forwarder.forward(c.Context(), forwardRequest{
		addr:      addr,
		userID:    userID,
		sessionID: sessionID,
		payload:   c.Body(),
	})
	if err != nil {
		s.logger.Error("forwarding to sandbox failed",
			zap.String("user_id", userID),
			zap.String("addr", addr),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{
			Error: "forwarding to agent failed",
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(status).Send(body)
}

// handleHealthz reports gateway liveness.
func (s *Server) handleHealthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}
