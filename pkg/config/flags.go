package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --top-k
// on both "lector ask" and "lector chat").
type Flag struct {
	// Name is the long flag name (e.g. "top-k").
	Name string

	// Shorthand is the one-letter short flag (e.g. "k"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "qa.top_k").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling the Add*Flag helpers and
// BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagModel           = "model"
	FlagTopK            = "top-k"
	FlagDecompose       = "decompose"
	FlagApprove         = "approve"
	FlagNSample         = "n-sample"
	FlagPSample         = "p-sample"
	FlagClusterPct      = "cluster-percentage"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagAPIListen       = "api-listen"
)

// CLIFlags is the shared flag registry used by the lector commands. Commands
// pass it to the Add*Flag helpers so --top-k means the same thing everywhere.
var CLIFlags = FlagSet{
	FlagModel: {
		Name:        FlagModel,
		Shorthand:   "m",
		ViperKey:    "llm.model",
		Description: "Model in provider:model notation (e.g. ollama:llama3.2)",
	},
	FlagTopK: {
		Name:        FlagTopK,
		Shorthand:   "k",
		ViperKey:    "qa.top_k",
		Description: "Number of documents to retrieve per query",
	},
	FlagDecompose: {
		Name:        FlagDecompose,
		ViperKey:    "qa.decompose",
		Description: "Decompose the question into sub-queries before retrieval",
	},
	FlagApprove: {
		Name:        FlagApprove,
		ViperKey:    "qa.approve",
		Description: "Pause for human approval of generated sub-queries",
	},
	FlagNSample: {
		Name:        FlagNSample,
		Shorthand:   "n",
		ViperKey:    "discovery.n_sample",
		Description: "Sample a fixed number of documents as cluster anchors",
	},
	FlagPSample: {
		Name:        FlagPSample,
		Shorthand:   "p",
		ViperKey:    "discovery.p_sample",
		Description: "Sample a percentage of documents as cluster anchors",
	},
	FlagClusterPct: {
		Name:        FlagClusterPct,
		ViperKey:    "discovery.cluster_percentage",
		Description: "Fraction of the corpus each cluster may span",
	},
	FlagVectorStoreProv: {
		Name:        FlagVectorStoreProv,
		ViperKey:    "vector_store.provider",
		Description: "Vector store provider (memory, sqlite-vec, chroma, pgvector)",
	},
	FlagVectorStoreTgt: {
		Name:        FlagVectorStoreTgt,
		ViperKey:    "vector_store.target",
		Description: "Vector store target (path or URL)",
	},
	FlagEmbeddingProv: {
		Name:        FlagEmbeddingProv,
		ViperKey:    "embedding.provider",
		Description: "Embedding provider (ollama, openai)",
	},
	FlagEmbeddingTgt: {
		Name:        FlagEmbeddingTgt,
		ViperKey:    "embedding.target",
		Description: "Embedding provider base URL",
	},
	FlagEmbeddingModel: {
		Name:        FlagEmbeddingModel,
		ViperKey:    "embedding.model",
		Description: "Embedding model name",
	},
	FlagEmbeddingDims: {
		Name:        FlagEmbeddingDims,
		ViperKey:    "embedding.dimensions",
		Description: "Embedding vector dimensions",
	},
	FlagAPIListen: {
		Name:        FlagAPIListen,
		ViperKey:    "api.listen",
		Description: "API server listen address",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddFloatFlag registers a float64 flag on cmd from the given FlagSet.
func AddFloatFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *float64) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultFloat(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().Float64Var(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

// defaultBool returns the default bool value for a viper key from NewDefaultConfig.
func defaultBool(viperKey string) bool {
	v := viper.New()
	setViperDefaults(v)
	return v.GetBool(viperKey)
}

// defaultFloat returns the default float64 value for a viper key from NewDefaultConfig.
func defaultFloat(viperKey string) float64 {
	v := viper.New()
	setViperDefaults(v)
	return v.GetFloat64(viperKey)
}
