package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent warren configuration stored as config.toml
// in the .warren/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Gateway     GatewayConfig     `toml:"gateway"`
	Sandbox     SandboxConfig     `toml:"sandbox"`
	Agent       AgentConfig       `toml:"agent"`
	Client      ClientConfig      `toml:"client"`
	Model       ModelConfig       `toml:"model"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	ShortTerm   ShortTermConfig   `toml:"shortterm"`
	Memory      MemoryConfig      `toml:"memory"`
}

// GatewayConfig holds session gateway settings.
type GatewayConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// SandboxConfig holds agent sandbox provisioning settings.
type SandboxConfig struct {
	Image         string `toml:"image,omitempty"`
	Network       string `toml:"network,omitempty"`
	AgentPort     uint   `toml:"agent_port,omitempty"`
	WarmupSeconds uint   `toml:"warmup_seconds,omitempty"`
}

// AgentConfig holds agent server settings.
type AgentConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// gateway (e.g. warren chat). Values are full URLs (scheme + host + port).
type ClientConfig struct {
	GatewayTarget string `toml:"gateway_target,omitempty"`
}

// ModelConfig holds chat model provider settings.
type ModelConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Name     string `toml:"name,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// VectorStoreConfig holds long-term memory store settings.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// ShortTermConfig holds short-term memory window settings.
type ShortTermConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Window   uint   `toml:"window,omitempty"`
}

// MemoryConfig holds memory manager settings.
type MemoryConfig struct {
	Enabled        bool   `toml:"enabled,omitempty"`
	UnpairedPolicy string `toml:"unpaired_policy,omitempty"`
	RetrieveLimit  uint   `toml:"retrieve_limit,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(get func(c *Config) uint, set func(c *Config, n uint), name string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if get(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(get(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			set(c, uint(n))
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"gateway.listen": {
		get: func(c *Config) string { return c.Gateway.Listen },
		set: func(c *Config, v string) error { c.Gateway.Listen = v; return nil },
	},
	"sandbox.image": {
		get: func(c *Config) string { return c.Sandbox.Image },
		set: func(c *Config, v string) error { c.Sandbox.Image = v; return nil },
	},
	"sandbox.network": {
		get: func(c *Config) string { return c.Sandbox.Network },
		set: func(c *Config, v string) error { c.Sandbox.Network = v; return nil },
	},
	"sandbox.agent_port": uintKey(
		func(c *Config) uint { return c.Sandbox.AgentPort },
		func(c *Config, n uint) { c.Sandbox.AgentPort = n },
		"sandbox.agent_port",
	),
	"sandbox.warmup_seconds": uintKey(
		func(c *Config) uint { return c.Sandbox.WarmupSeconds },
		func(c *Config, n uint) { c.Sandbox.WarmupSeconds = n },
		"sandbox.warmup_seconds",
	),
	"agent.listen": {
		get: func(c *Config) string { return c.Agent.Listen },
		set: func(c *Config, v string) error { c.Agent.Listen = v; return nil },
	},
	"client.gateway_target": {
		get: func(c *Config) string { return c.Client.GatewayTarget },
		set: func(c *Config, v string) error { c.Client.GatewayTarget = v; return nil },
	},
	"model.provider": {
		get: func(c *Config) string { return c.Model.Provider },
		set: func(c *Config, v string) error { c.Model.Provider = v; return nil },
	},
	"model.target": {
		get: func(c *Config) string { return c.Model.Target },
		set: func(c *Config, v string) error { c.Model.Target = v; return nil },
	},
	"model.name": {
		get: func(c *Config) string { return c.Model.Name },
		set: func(c *Config, v string) error { c.Model.Name = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": uintKey(
		func(c *Config) uint { return c.Embedding.Dimensions },
		func(c *Config, n uint) { c.Embedding.Dimensions = n },
		"embedding.dimensions",
	),
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"vector_store.collection": {
		get: func(c *Config) string { return c.VectorStore.Collection },
		set: func(c *Config, v string) error { c.VectorStore.Collection = v; return nil },
	},
	"shortterm.provider": {
		get: func(c *Config) string { return c.ShortTerm.Provider },
		set: func(c *Config, v string) error { c.ShortTerm.Provider = v; return nil },
	},
	"shortterm.target": {
		get: func(c *Config) string { return c.ShortTerm.Target },
		set: func(c *Config, v string) error { c.ShortTerm.Target = v; return nil },
	},
	"shortterm.window": uintKey(
		func(c *Config) uint { return c.ShortTerm.Window },
		func(c *Config, n uint) { c.ShortTerm.Window = n },
		"shortterm.window",
	),
	"memory.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Memory.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for memory.enabled: %w", err)
			}
			c.Memory.Enabled = b
			return nil
		},
	},
	"memory.unpaired_policy": {
		get: func(c *Config) string { return c.Memory.UnpairedPolicy },
		set: func(c *Config, v string) error {
			if v != "drop" && v != "migrate" {
				return fmt.Errorf("invalid value for memory.unpaired_policy: %q (expected drop or migrate)", v)
			}
			c.Memory.UnpairedPolicy = v
			return nil
		},
	},
	"memory.retrieve_limit": uintKey(
		func(c *Config) uint { return c.Memory.RetrieveLimit },
		func(c *Config, n uint) { c.Memory.RetrieveLimit = n },
		"memory.retrieve_limit",
	),
}
