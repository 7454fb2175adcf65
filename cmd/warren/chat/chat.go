// Package chatcmder provides the chat command for interactive agent chat
// through the warren gateway.
package chatcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/warren/pkg/cliui"
	"github.com/papercomputeco/warren/pkg/config"
	"github.com/papercomputeco/warren/pkg/logger"
)

var (
	userPrompt  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	agentPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("agent> ")
)

type chatCommander struct {
	gatewayTarget string
	userID        string
	sessionID     string
	shareWith     []string
	debug         bool

	logger *zap.Logger
}

// chatRequest is the body sent to the gateway's chat endpoint.
type chatRequest struct {
	Message    string   `json:"message"`
	Share      bool     `json:"share,omitempty"`
	SharedWith []string `json:"shared_with,omitempty"`
}

// chatReply is the agent's response shape, including the structured error
// fields surfaced on failure.
type chatReply struct {
	Result    string `json:"result"`
	Reasoning string `json:"reasoning"`
	Error     string `json:"error"`
	Trace     string `json:"trace"`
}

const chatLongDesc string = `Start an interactive chat session through the warren gateway.

Messages are routed to your personal agent sandbox; the gateway provisions it
on first contact. The agent remembers the conversation across the session and
recalls relevant memories from earlier sessions.

Prefix a message with a slash to call a tool directly:
  /calc (2+3)*4
  /search latest Go release
  /read notes.txt
  /forum homelab backup strategies

Use --share-with to share each exchange with teammates as it happens.

Examples:
  warren chat --user alice
  warren chat --user alice --session standup --share-with bob,carol`

const chatShortDesc string = "Interactive agent chat through the warren gateway"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("gateway-target") {
				cmder.gatewayTarget = cfg.Client.GatewayTarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.gatewayTarget, "gateway-target", "g", defaults.Client.GatewayTarget, "Warren gateway URL")
	cmd.Flags().StringVarP(&cmder.userID, "user", "u", defaultUserID(), "User ID to chat as")
	cmd.Flags().StringVarP(&cmder.sessionID, "session", "s", "", "Session ID (default: a fresh random session)")
	cmd.Flags().StringSliceVar(&cmder.shareWith, "share-with", nil, "User IDs to share each exchange with")

	return cmd
}

// defaultUserID falls back to the OS user when no --user is given.
func defaultUserID() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "anonymous"
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if c.sessionID == "" {
		c.sessionID = uuid.NewString()
	}

	fmt.Println()
	fmt.Printf("  %s %s\n",
		cliui.KeyStyle.Render("User:"),
		cliui.NameStyle.Render(c.userID),
	)
	fmt.Printf("  %s %s\n",
		cliui.KeyStyle.Render("Session:"),
		cliui.ValueStyle.Render(c.sessionID),
	)
	if len(c.shareWith) > 0 {
		fmt.Printf("  %s %s\n",
			cliui.KeyStyle.Render("Sharing with:"),
			cliui.NameStyle.Render(strings.Join(c.shareWith, ", ")),
		)
	}
	fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		reply, err := c.send(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n\n", cliui.FailMark, err)
			continue
		}

		if c.debug && reply.Reasoning != "" {
			fmt.Printf("%s\n", cliui.DimStyle.Render(reply.Reasoning))
		}
		fmt.Printf("%s%s\n\n", agentPrompt, reply.Result)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// send posts one message to the gateway and decodes the agent's reply.
func (c *chatCommander) send(message string) (*chatReply, error) {
	reqBody := chatRequest{
		Message:    message,
		Share:      len(c.shareWith) > 0,
		SharedWith: c.shareWith,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	target := fmt.Sprintf("%s/u/%s/chat?session_id=%s",
		c.gatewayTarget,
		url.PathEscape(c.userID),
		url.QueryEscape(c.sessionID),
	)

	c.logger.Debug("sending chat request",
		zap.String("target", target),
		zap.Int("message_len", len(message)),
	)

	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		// Cold sandboxes and slow models both take a while
		Timeout: 5 * time.Minute,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request to gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var reply chatReply
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if resp.StatusCode != http.StatusOK {
		if reply.Error != "" {
			if c.debug && reply.Trace != "" {
				c.logger.Debug("agent error trace", zap.String("trace", reply.Trace))
			}
			return nil, fmt.Errorf("%s", reply.Error)
		}
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	return &reply, nil
}
