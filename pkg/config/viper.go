package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/warren/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the WARREN_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (WARREN_GATEWAY_LISTEN, WARREN_SANDBOX_IMAGE, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: WARREN_GATEWAY_LISTEN, WARREN_SHORTTERM_WINDOW, etc.
	v.SetEnvPrefix("WARREN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Gateway
	v.SetDefault("gateway.listen", d.Gateway.Listen)

	// Sandbox
	v.SetDefault("sandbox.image", d.Sandbox.Image)
	v.SetDefault("sandbox.network", d.Sandbox.Network)
	v.SetDefault("sandbox.agent_port", d.Sandbox.AgentPort)
	v.SetDefault("sandbox.warmup_seconds", d.Sandbox.WarmupSeconds)

	// Agent
	v.SetDefault("agent.listen", d.Agent.Listen)

	// Client
	v.SetDefault("client.gateway_target", d.Client.GatewayTarget)

	// Model
	v.SetDefault("model.provider", d.Model.Provider)
	v.SetDefault("model.target", d.Model.Target)
	v.SetDefault("model.name", d.Model.Name)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)

	// Short-term memory
	v.SetDefault("shortterm.provider", d.ShortTerm.Provider)
	v.SetDefault("shortterm.target", d.ShortTerm.Target)
	v.SetDefault("shortterm.window", d.ShortTerm.Window)

	// Memory manager
	v.SetDefault("memory.enabled", d.Memory.Enabled)
	v.SetDefault("memory.unpaired_policy", d.Memory.UnpairedPolicy)
	v.SetDefault("memory.retrieve_limit", d.Memory.RetrieveLimit)
}
