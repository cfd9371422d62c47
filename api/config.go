// Package api provides the HTTP surface for ingesting documents and
// running pipelines noninteractively.
package api

import (
	"github.com/lectorhq/lector/pkg/cluster"
	"github.com/lectorhq/lector/pkg/sampler"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8082")
	ListenAddr string

	// TopK is the default retrieval depth for /ask.
	TopK int

	// Decompose is the default query decomposition setting for /ask.
	Decompose bool

	// Sample is the default anchor sampling for /discover when the
	// request names neither n_sample nor p_sample.
	Sample sampler.Options

	// Cluster configures the discovery cluster builder.
	Cluster cluster.Config

	// MapConcurrency bounds concurrent cluster summaries in /discover.
	MapConcurrency int
}
