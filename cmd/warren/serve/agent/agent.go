// Package agentcmder provides the cobra command that runs a single agent
// server, the process that lives inside each user sandbox.
package agentcmder

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/warren/pkg/agent"
	"github.com/papercomputeco/warren/pkg/agent/recorder"
	"github.com/papercomputeco/warren/pkg/config"
	"github.com/papercomputeco/warren/pkg/embeddings"
	embollama "github.com/papercomputeco/warren/pkg/embeddings/ollama"
	"github.com/papercomputeco/warren/pkg/llm/provider"
	"github.com/papercomputeco/warren/pkg/logger"
	"github.com/papercomputeco/warren/pkg/longterm"
	ltminmemory "github.com/papercomputeco/warren/pkg/longterm/inmemory"
	"github.com/papercomputeco/warren/pkg/longterm/qdrant"
	"github.com/papercomputeco/warren/pkg/memory"
	"github.com/papercomputeco/warren/pkg/shortterm"
	stminmemory "github.com/papercomputeco/warren/pkg/shortterm/inmemory"
	stmredis "github.com/papercomputeco/warren/pkg/shortterm/redis"
	"github.com/papercomputeco/warren/pkg/tools"
)

type agentCommander struct {
	listen        string
	modelProvider string
	modelTarget   string
	modelName     string
	toolsDir      string
	debug         bool

	cfg    *config.Config
	logger *zap.Logger
}

const agentLongDesc string = `Run the warren agent server.

The agent answers chats through the configured model provider, augments
prompts with retrieved short- and long-term memory, dispatches slash-command
tools (/calc, /search, /read, /forum), and records finished exchanges in the
background.

Normally the gateway runs one of these per user inside a sandbox container;
running it directly is useful for development:
  warren serve agent --provider ollama --model llama3.2`

const agentShortDesc string = "Run the warren agent server"

func NewAgentCmd() *cobra.Command {
	cmder := &agentCommander{}

	cmd := &cobra.Command{
		Use:   "agent",
		Short: agentShortDesc,
		Long:  agentLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cmder.cfg, err = cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("listen") {
				cmder.listen = cmder.cfg.Agent.Listen
			}
			if !cmd.Flags().Changed("provider") {
				cmder.modelProvider = cmder.cfg.Model.Provider
			}
			if !cmd.Flags().Changed("model-target") {
				cmder.modelTarget = cmder.cfg.Model.Target
			}
			if !cmd.Flags().Changed("model") {
				cmder.modelName = cmder.cfg.Model.Name
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
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", defaults.Agent.Listen, "Address for the agent to listen on")
	cmd.Flags().StringVarP(&cmder.modelProvider, "provider", "p", defaults.Model.Provider, "Model provider (anthropic, openai, ollama)")
	cmd.Flags().StringVar(&cmder.modelTarget, "model-target", defaults.Model.Target, "Model provider base URL")
	cmd.Flags().StringVarP(&cmder.modelName, "model", "m", defaults.Model.Name, "Model name to invoke")
	cmd.Flags().StringVar(&cmder.toolsDir, "tools-dir", ".", "Base directory the /read tool is confined to")

	return cmd
}

func (c *agentCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	ctx := context.Background()

	prov, err := provider.New(provider.Config{
		Provider: c.modelProvider,
		Target:   c.modelTarget,
		Model:    c.modelName,
	})
	if err != nil {
		return fmt.Errorf("resolving model provider: %w", err)
	}

	var (
		mgr  *memory.Manager
		pool *recorder.Pool
	)
	if c.cfg.Memory.Enabled {
		mgr, err = c.newMemoryManager(ctx)
		if err != nil {
			return err
		}

		pool, err = recorder.NewPool(&recorder.Config{
			Manager: mgr,
			Logger:  c.logger,
		})
		if err != nil {
			return fmt.Errorf("starting recorder pool: %w", err)
		}
	} else {
		c.logger.Info("memory disabled, serving stateless chats")
	}

	registry := tools.NewRegistry(
		tools.NewCalculator(),
		tools.NewWebSearch(),
		tools.NewFileReader(c.toolsDir),
		tools.NewForumSearch(),
	)

	server := agent.NewServer(agent.Config{
		ListenAddr: c.listen,
	}, prov, mgr, registry, pool, c.logger)

	c.logger.Info("starting agent",
		zap.String("listen", c.listen),
		zap.String("provider", c.modelProvider),
		zap.String("model", c.modelName),
		zap.Bool("memory", c.cfg.Memory.Enabled),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("agent error: %w", err)
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

// newMemoryManager wires the configured short-term, long-term, and embedding
// drivers into a memory manager.
func (c *agentCommander) newMemoryManager(ctx context.Context) (*memory.Manager, error) {
	stm, err := c.newShortTermDriver(ctx)
	if err != nil {
		return nil, err
	}

	ltm, err := c.newLongTermDriver(ctx)
	if err != nil {
		return nil, err
	}

	embedder, err := c.newEmbedder()
	if err != nil {
		return nil, err
	}

	return memory.NewManager(stm, ltm, embedder, memory.Config{
		Window:         int(c.cfg.ShortTerm.Window),
		UnpairedPolicy: memory.UnpairedPolicy(c.cfg.Memory.UnpairedPolicy),
		RetrieveLimit:  int(c.cfg.Memory.RetrieveLimit),
	}, c.logger), nil
}

func (c *agentCommander) newShortTermDriver(ctx context.Context) (shortterm.Driver, error) {
	switch c.cfg.ShortTerm.Provider {
	case "redis":
		driver, err := stmredis.NewDriver(ctx, stmredis.Config{
			Addr: c.cfg.ShortTerm.Target,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		c.logger.Info("using redis short-term memory", zap.String("addr", c.cfg.ShortTerm.Target))
		return driver, nil
	default:
		c.logger.Info("using in-memory short-term memory")
		return stminmemory.NewDriver(), nil
	}
}

func (c *agentCommander) newLongTermDriver(ctx context.Context) (longterm.Driver, error) {
	switch c.cfg.VectorStore.Provider {
	case "qdrant":
		host, port, err := splitTarget(c.cfg.VectorStore.Target, 6334)
		if err != nil {
			return nil, fmt.Errorf("parsing vector store target: %w", err)
		}

		driver, err := qdrant.NewDriver(ctx, qdrant.Config{
			Host:           host,
			Port:           port,
			CollectionName: c.cfg.VectorStore.Collection,
			Dimensions:     uint64(c.cfg.Embedding.Dimensions),
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to qdrant: %w", err)
		}
		c.logger.Info("using qdrant long-term memory",
			zap.String("host", host),
			zap.Int("port", port),
			zap.String("collection", c.cfg.VectorStore.Collection),
		)
		return driver, nil
	default:
		c.logger.Info("using in-memory long-term memory")
		return ltminmemory.NewDriver(), nil
	}
}

func (c *agentCommander) newEmbedder() (embeddings.Embedder, error) {
	embedder, err := embollama.NewEmbedder(embollama.Config{
		BaseURL: c.cfg.Embedding.Target,
		Model:   c.cfg.Embedding.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, nil
}

// splitTarget parses "host:port" with a default port when none is given.
func splitTarget(target string, defaultPort int) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return target, defaultPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, port, nil
}
