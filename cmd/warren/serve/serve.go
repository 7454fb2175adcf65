// Package servecmder provides the serve command for running warren services.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	agentcmder "github.com/papercomputeco/warren/cmd/warren/serve/agent"
	"github.com/papercomputeco/warren/pkg/config"
	"github.com/papercomputeco/warren/pkg/gateway"
	"github.com/papercomputeco/warren/pkg/logger"
	"github.com/papercomputeco/warren/pkg/sandbox"
	"github.com/papercomputeco/warren/pkg/sandbox/docker"
)

type ServeCommander struct {
	listen    string
	image     string
	network   string
	agentPort uint
	warmup    uint
	debug     bool
	logger    *zap.Logger
}

const serveLongDesc string = `Run the warren session gateway.

The gateway accepts chat requests at /u/{user_id}/chat, lazily provisions one
agent sandbox container per user on a shared network, and forwards the request
into it with a bounded retry budget while fresh sandboxes warm up.

Use the agent subcommand to run a single agent server directly:
  warren serve           Run the session gateway
  warren serve agent     Run the agent server (inside a sandbox)`

const serveShortDesc string = "Run the warren session gateway"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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

			if !cmd.Flags().Changed("listen") {
				cmder.listen = cfg.Gateway.Listen
			}
			if !cmd.Flags().Changed("image") {
				cmder.image = cfg.Sandbox.Image
			}
			if !cmd.Flags().Changed("network") {
				cmder.network = cfg.Sandbox.Network
			}
			if !cmd.Flags().Changed("agent-port") {
				cmder.agentPort = cfg.Sandbox.AgentPort
			}
			if !cmd.Flags().Changed("warmup") {
				cmder.warmup = cfg.Sandbox.WarmupSeconds
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", defaults.Gateway.Listen, "Address for the gateway to listen on")
	cmd.Flags().StringVarP(&cmder.image, "image", "i", defaults.Sandbox.Image, "Agent sandbox container image")
	cmd.Flags().StringVarP(&cmder.network, "network", "n", defaults.Sandbox.Network, "Shared bridge network for gateway and sandboxes")
	cmd.Flags().UintVar(&cmder.agentPort, "agent-port", defaults.Sandbox.AgentPort, "Port the agent listens on inside its sandbox")
	cmd.Flags().UintVar(&cmder.warmup, "warmup", defaults.Sandbox.WarmupSeconds, "Seconds to wait after starting a fresh sandbox")

	cmd.AddCommand(agentcmder.NewAgentCmd())

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	ctx := context.Background()

	runtime, err := docker.NewRuntime(ctx, c.logger)
	if err != nil {
		return fmt.Errorf("connecting to container runtime: %w", err)
	}
	defer runtime.Close()

	provisioner := sandbox.NewProvisioner(runtime, sandbox.Config{
		Image:     c.image,
		Network:   c.network,
		AgentPort: c.agentPort,
		Warmup:    time.Duration(c.warmup) * time.Second,
		Env:       sandbox.PassthroughEnv(),
	}, c.logger)

	server := gateway.NewServer(gateway.Config{
		ListenAddr: c.listen,
	}, provisioner, c.logger)

	c.logger.Info("starting gateway",
		zap.String("listen", c.listen),
		zap.String("image", c.image),
		zap.String("network", c.network),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("gateway error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}
