package config

const (
	defaultLLMModel = "ollama:llama3.2"

	defaultTopK                = 10
	defaultApprovalTimeoutSecs = 90
	defaultMaxRevisions        = 3

	defaultPSample           = 0.1
	defaultClusterPercentage = 0.1
	defaultMapConcurrency    = 4

	defaultVectorProvider   = "sqlite-vec"
	defaultVectorTarget     = ".lector/lector.db"
	defaultVectorCollection = "lector"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultAPIListen = ":8082"

	defaultEventsBrokers = "localhost:9092"
	defaultEventsTopic   = "lector.runs"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		LLM: LLMConfig{
			Model: defaultLLMModel,
		},
		QA: QAConfig{
			TopK:                defaultTopK,
			ApprovalTimeoutSecs: defaultApprovalTimeoutSecs,
			MaxRevisions:        defaultMaxRevisions,
		},
		Discovery: DiscoveryConfig{
			PSample:           defaultPSample,
			ClusterPercentage: defaultClusterPercentage,
			MapConcurrency:    defaultMapConcurrency,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Target:     defaultVectorTarget,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Enabled: false,
			Brokers: defaultEventsBrokers,
			Topic:   defaultEventsTopic,
		},
	}
}
