package config

const (
	defaultGatewayListen = ":8000"
	defaultAgentListen   = ":8001"

	defaultSandboxImage   = "warren-agent:latest"
	defaultSandboxNetwork = "warren-net"
	defaultAgentPort      = 8001
	defaultWarmupSeconds  = 1

	defaultClientGatewayTarget = "http://localhost:8000"

	defaultModelProvider = "ollama"
	defaultModelTarget   = "http://localhost:11434"
	defaultModelName     = "llama3.2"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultVectorProvider   = "memory"
	defaultVectorCollection = "warren"

	defaultShortTermProvider = "memory"
	defaultShortTermWindow   = 5

	defaultUnpairedPolicy = "drop"
	defaultRetrieveLimit  = 3
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Gateway: GatewayConfig{
			Listen: defaultGatewayListen,
		},
		Sandbox: SandboxConfig{
			Image:         defaultSandboxImage,
			Network:       defaultSandboxNetwork,
			AgentPort:     defaultAgentPort,
			WarmupSeconds: defaultWarmupSeconds,
		},
		Agent: AgentConfig{
			Listen: defaultAgentListen,
		},
		Client: ClientConfig{
			GatewayTarget: defaultClientGatewayTarget,
		},
		Model: ModelConfig{
			Provider: defaultModelProvider,
			Target:   defaultModelTarget,
			Name:     defaultModelName,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
		},
		ShortTerm: ShortTermConfig{
			Provider: defaultShortTermProvider,
			Window:   defaultShortTermWindow,
		},
		Memory: MemoryConfig{
			Enabled:        true,
			UnpairedPolicy: defaultUnpairedPolicy,
			RetrieveLimit:  defaultRetrieveLimit,
		},
	}
}
