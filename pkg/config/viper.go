package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/lectorhq/lector/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the LECTOR_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (LECTOR_QA_TOP_K, LECTOR_API_LISTEN, etc.)
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

	// 3. Environment variables: LECTOR_QA_TOP_K, LECTOR_VECTOR_STORE_TARGET, etc.
	v.SetEnvPrefix("LECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// LLM
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.fallback", d.LLM.Fallback)
	v.SetDefault("llm.target", d.LLM.Target)

	// QA
	v.SetDefault("qa.top_k", d.QA.TopK)
	v.SetDefault("qa.decompose", d.QA.Decompose)
	v.SetDefault("qa.approve", d.QA.Approve)
	v.SetDefault("qa.approval_timeout_secs", d.QA.ApprovalTimeoutSecs)
	v.SetDefault("qa.max_revisions", d.QA.MaxRevisions)

	// Discovery
	v.SetDefault("discovery.n_sample", d.Discovery.NSample)
	v.SetDefault("discovery.p_sample", d.Discovery.PSample)
	v.SetDefault("discovery.cluster_percentage", d.Discovery.ClusterPercentage)
	v.SetDefault("discovery.min_cluster_size", d.Discovery.MinClusterSize)
	v.SetDefault("discovery.max_cluster_size", d.Discovery.MaxClusterSize)
	v.SetDefault("discovery.map_concurrency", d.Discovery.MapConcurrency)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Events
	v.SetDefault("events.enabled", d.Events.Enabled)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}
