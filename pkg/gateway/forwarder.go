package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// forwardRequest carries one inbound chat to be proxied into a sandbox.
type forwardRequest struct {
	addr      string
	userID    string
	sessionID string
	payload   []byte
}

type forwarderConfig struct {
	attempts int
	delay    time.Duration
	timeout  time.Duration
}

// forwarder proxies chat payloads into a sandbox's /agent endpoint, retrying
// the transient symptoms of a cold-starting sandbox (connection refused/reset
// and timeouts). Any other failure propagates immediately.
type forwarder struct {
	cfg    forwarderConfig
	client *http.Client
	logger *zap.Logger
}

func newForwarder(cfg forwarderConfig, logger *zap.Logger) *forwarder {
	return &forwarder{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.timeout,
		},
		logger: logger,
	}
}

// forward sends the payload, retrying transient errors up to the budget with
// fixed spacing. Returns the sandbox's status code and body on success.
func (f *forwarder) forward(ctx context.Context, req forwardRequest) (int, []byte, error) {
	target := fmt.Sprintf("%s/agent?user_id=%s&session_id=%s",
		req.addr,
		url.QueryEscape(req.userID),
		url.QueryEscape(req.sessionID),
	)

	var lastErr error
	for attempt := 1; attempt <= f.cfg.attempts; attempt++ {
		status, body, err := f.attempt(ctx, target, req.payload)
		if err == nil {
			return status, body, nil
		}

		lastErr = err
		if !isTransient(err) {
			return 0, nil, err
		}

		f.logger.Warn("forward attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("budget", f.cfg.attempts),
			zap.Error(err),
		)

		if attempt < f.cfg.attempts {
			select {
			case <-time.After(f.cfg.delay):
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			}
		}
	}

	return 0, nil, fmt.Errorf("forward retry budget exhausted: %w", lastErr)
}

func (f *forwarder) attempt(ctx context.Context, target string, payload []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("building forward request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading forward response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// isTransient reports whether an error is one of the expected symptoms of a
// sandbox that has not finished warming up.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	return false
}
