package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/warren/pkg/agent/recorder"
	"github.com/papercomputeco/warren/pkg/llm"
	"github.com/papercomputeco/warren/pkg/memory"
)

// chatRequest is the body accepted by /chat and /agent.
type chatRequest struct {
	Message string `json:"message"`

	// Share marks the exchange for immediate sharing with SharedWith.
	Share      bool     `json:"share"`
	SharedWith []string `json:"shared_with"`
}

// chatResponse is the reply shape for both chat endpoints.
type chatResponse struct {
	Result    string `json:"result"`
	Reasoning string `json:"reasoning,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`
}

// handleRoot reports what this service is.
func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service":  "warren-agent",
		"provider": s.provider.Name(),
		"endpoints": []string{
			"POST /chat",
			"POST /agent",
			"GET /health",
		},
	})
}

// handleHealth reports agent readiness. The gateway polls this while a fresh
// sandbox warms up.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "ok",
		"agent_ready": s.provider != nil,
	})
}

// handleChat answers with the bare model: no memory, no tools. Useful for
// probing the provider wiring.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "message required",
		})
	}

	raw, err := s.provider.Chat(c.Context(), req.Message)
	if err != nil {
		s.logger.Error("model call failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "model call failed",
			Trace: err.Error(),
		})
	}

	resp := llm.ExtractReasoning(raw)
	return c.JSON(chatResponse{
		Result:    resp.Text,
		Reasoning: resp.Reasoning,
	})
}

// handleAgent runs the full pipeline: retrieve memory context, answer through
// the model (or a slash-command tool), then hand the finished exchange to the
// recorder. A model or tool failure returns a structured error and records
// nothing, leaving the thread's window untouched.
func (s *Server) handleAgent(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	sessionID := c.Query("session_id")
	if userID == "" || sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "user_id and session_id query parameters required",
		})
	}

	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "message required",
		})
	}

	thread := memory.Thread{UserID: userID, SessionID: sessionID}

	var resp llm.Response
	if name, input, ok := parseToolCommand(req.Message); ok {
		out, err := s.runTool(c.Context(), name, input)
		if err != nil {
			s.logger.Error("tool call failed",
				zap.String("tool", name),
				zap.Error(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
				Error: fmt.Sprintf("tool %q failed", name),
				Trace: err.Error(),
			})
		}
		resp = llm.Response{Text: out}
	} else {
		prompt := req.Message
		if s.memory != nil {
			prefix, err := s.memory.RetrieveContext(c.Context(), thread, req.Message)
			if err != nil {
				s.logger.Warn("context retrieval failed, answering without it",
					zap.String("thread", thread.Key()),
					zap.Error(err),
				)
			} else if prefix != "" {
				prompt = prefix + "\nHuman: " + req.Message
			}
		}

		raw, err := s.provider.Chat(c.Context(), prompt)
		if err != nil {
			s.logger.Error("model call failed",
				zap.String("thread", thread.Key()),
				zap.Error(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
				Error: "model call failed",
				Trace: err.Error(),
			})
		}
		resp = llm.ExtractReasoning(raw)
	}

	if s.recorder != nil {
		s.recorder.Enqueue(recorder.Job{
			Thread:   thread,
			Message:  req.Message,
			Response: resp.Text,
			Opts: memory.Options{
				Share:      req.Share,
				SharedWith: req.SharedWith,
			},
		})
	}

	return c.JSON(chatResponse{
		Result:    resp.Text,
		Reasoning: resp.Reasoning,
		UserID:    userID,
		SessionID: sessionID,
		ThreadID:  thread.Key(),
	})
}

// parseToolCommand recognizes slash commands of the form "/name input".
func parseToolCommand(message string) (name, input string, ok bool) {
	message = strings.TrimSpace(message)
	if !strings.HasPrefix(message, "/") {
		return "", "", false
	}

	body := strings.TrimPrefix(message, "/")
	parts := strings.SplitN(body, " ", 2)
	if parts[0] == "" {
		return "", "", false
	}

	name = parts[0]
	if len(parts) == 2 {
		input = strings.TrimSpace(parts[1])
	}
	return name, input, true
}

// runTool resolves and invokes a registered tool.
func (s *Server) runTool(ctx context.Context, name, input string) (string, error) {
	if s.tools == nil {
		return "", fmt.Errorf("no tools configured")
	}

	tool, err := s.tools.Get(name)
	if err != nil {
		return "", err
	}
	return tool.Call(ctx, input)
}
