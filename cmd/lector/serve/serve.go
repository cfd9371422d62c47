// Package servecmder provides the serve command for running the lector
// HTTP API.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lectorhq/lector/api"
	"github.com/lectorhq/lector/cmd/lector/runtime"
	"github.com/lectorhq/lector/pkg/cluster"
	"github.com/lectorhq/lector/pkg/config"
	"github.com/lectorhq/lector/pkg/logger"
	"github.com/lectorhq/lector/pkg/sampler"
)

const serveLongDesc string = `Run the lector HTTP API.

Exposes document ingestion, question answering, and corpus discovery as
HTTP endpoints:

  POST /api/v1/ingest     Index documents (JSON or multipart upload)
  POST /api/v1/ask        Answer a question from the indexed documents
  POST /api/v1/discover   Summarize what the knowledge base contains
  GET  /api/v1/stats      Indexed document count
  GET  /ping              Liveness check

With events.enabled set, every completed run is published to the configured
Kafka brokers.

Examples:
  lector serve
  lector serve --api-listen :9000`

const serveShortDesc string = "Run the lector HTTP API"

type serveCommander struct {
	listen string
	debug  bool

	v *viper.Viper
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.CLIFlags, []string{
				config.FlagAPIListen,
			})
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.CLIFlags, config.FlagAPIListen, &cmder.listen)

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.WithDebug(c.debug))

	rt, err := runtime.Build(ctx, c.v, log)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	server := api.NewServer(api.Config{
		ListenAddr: c.v.GetString("api.listen"),
		TopK:       int(c.v.GetUint("qa.top_k")),
		Decompose:  c.v.GetBool("qa.decompose"),
		Sample:     c.sampleOptions(),
		Cluster: cluster.Config{
			ClusterPercentage: c.v.GetFloat64("discovery.cluster_percentage"),
			MinClusterSize:    int(c.v.GetUint("discovery.min_cluster_size")),
			MaxClusterSize:    int(c.v.GetUint("discovery.max_cluster_size")),
		},
		MapConcurrency: int(c.v.GetUint("discovery.map_concurrency")),
	}, rt.Store, rt.Client, rt.Events, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down API server")
		return server.Shutdown()
	}
}

func (c *serveCommander) sampleOptions() sampler.Options {
	if n := c.v.GetUint("discovery.n_sample"); n > 0 {
		return sampler.N(int(n))
	}
	return sampler.P(c.v.GetFloat64("discovery.p_sample"))
}
