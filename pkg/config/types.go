package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent lector configuration stored as config.toml
// in the .lector/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	LLM         LLMConfig         `toml:"llm"`
	QA          QAConfig          `toml:"qa"`
	Discovery   DiscoveryConfig   `toml:"discovery"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	API         APIConfig         `toml:"api"`
	Events      EventsConfig      `toml:"events"`
}

// LLMConfig holds chat model settings. Model names use "provider:model"
// notation (e.g. "ollama:llama3.2", "openai:gpt-4.1-mini").
type LLMConfig struct {
	Model    string `toml:"model,omitempty"`
	Fallback string `toml:"fallback,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// QAConfig holds question-answering pipeline settings.
type QAConfig struct {
	TopK                uint `toml:"top_k,omitempty"`
	Decompose           bool `toml:"decompose,omitempty"`
	Approve             bool `toml:"approve,omitempty"`
	ApprovalTimeoutSecs uint `toml:"approval_timeout_secs,omitempty"`
	MaxRevisions        uint `toml:"max_revisions,omitempty"`
}

// DiscoveryConfig holds corpus-overview pipeline settings. NSample and
// PSample are mutually exclusive; the zero one is ignored.
type DiscoveryConfig struct {
	NSample           uint    `toml:"n_sample,omitempty"`
	PSample           float64 `toml:"p_sample,omitempty"`
	ClusterPercentage float64 `toml:"cluster_percentage,omitempty"`
	MinClusterSize    uint    `toml:"min_cluster_size,omitempty"`
	MaxClusterSize    uint    `toml:"max_cluster_size,omitempty"`
	MapConcurrency    uint    `toml:"map_concurrency,omitempty"`
}

// VectorStoreConfig holds vector store settings. Target is the provider's
// address: a file path for sqlite-vec, a URL for chroma, a DSN for pgvector.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig holds run-event publishing settings. Brokers is a
// comma-separated Kafka bootstrap list.
type EventsConfig struct {
	Enabled bool   `toml:"enabled,omitempty"`
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(get func(c *Config) uint, set func(c *Config, n uint)) configKeyInfo {
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
				return fmt.Errorf("invalid unsigned integer %q: %w", v, err)
			}
			set(c, uint(n))
			return nil
		},
	}
}

func boolKey(get func(c *Config) bool, set func(c *Config, b bool)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(get(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean %q: %w", v, err)
			}
			set(c, b)
			return nil
		},
	}
}

func floatKey(get func(c *Config) float64, set func(c *Config, f float64)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if get(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(get(c), 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid number %q: %w", v, err)
			}
			set(c, f)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"llm.fallback": {
		get: func(c *Config) string { return c.LLM.Fallback },
		set: func(c *Config, v string) error { c.LLM.Fallback = v; return nil },
	},
	"llm.target": {
		get: func(c *Config) string { return c.LLM.Target },
		set: func(c *Config, v string) error { c.LLM.Target = v; return nil },
	},
	"qa.top_k": uintKey(
		func(c *Config) uint { return c.QA.TopK },
		func(c *Config, n uint) { c.QA.TopK = n },
	),
	"qa.decompose": boolKey(
		func(c *Config) bool { return c.QA.Decompose },
		func(c *Config, b bool) { c.QA.Decompose = b },
	),
	"qa.approve": boolKey(
		func(c *Config) bool { return c.QA.Approve },
		func(c *Config, b bool) { c.QA.Approve = b },
	),
	"qa.approval_timeout_secs": uintKey(
		func(c *Config) uint { return c.QA.ApprovalTimeoutSecs },
		func(c *Config, n uint) { c.QA.ApprovalTimeoutSecs = n },
	),
	"qa.max_revisions": uintKey(
		func(c *Config) uint { return c.QA.MaxRevisions },
		func(c *Config, n uint) { c.QA.MaxRevisions = n },
	),
	"discovery.n_sample": uintKey(
		func(c *Config) uint { return c.Discovery.NSample },
		func(c *Config, n uint) { c.Discovery.NSample = n },
	),
	"discovery.p_sample": floatKey(
		func(c *Config) float64 { return c.Discovery.PSample },
		func(c *Config, f float64) { c.Discovery.PSample = f },
	),
	"discovery.cluster_percentage": floatKey(
		func(c *Config) float64 { return c.Discovery.ClusterPercentage },
		func(c *Config, f float64) { c.Discovery.ClusterPercentage = f },
	),
	"discovery.min_cluster_size": uintKey(
		func(c *Config) uint { return c.Discovery.MinClusterSize },
		func(c *Config, n uint) { c.Discovery.MinClusterSize = n },
	),
	"discovery.max_cluster_size": uintKey(
		func(c *Config) uint { return c.Discovery.MaxClusterSize },
		func(c *Config, n uint) { c.Discovery.MaxClusterSize = n },
	),
	"discovery.map_concurrency": uintKey(
		func(c *Config) uint { return c.Discovery.MapConcurrency },
		func(c *Config, n uint) { c.Discovery.MapConcurrency = n },
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
	),
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"events.enabled": boolKey(
		func(c *Config) bool { return c.Events.Enabled },
		func(c *Config, b bool) { c.Events.Enabled = b },
	),
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
