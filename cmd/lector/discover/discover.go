// Package discovercmder provides the discover command: summarize what the
// knowledge base contains without a specific question.
package discovercmder

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lectorhq/lector/cmd/lector/runtime"
	"github.com/lectorhq/lector/pkg/cliui"
	"github.com/lectorhq/lector/pkg/cluster"
	"github.com/lectorhq/lector/pkg/config"
	"github.com/lectorhq/lector/pkg/eventstream"
	"github.com/lectorhq/lector/pkg/human"
	"github.com/lectorhq/lector/pkg/logger"
	"github.com/lectorhq/lector/pkg/pipeline"
	"github.com/lectorhq/lector/pkg/pipeline/discovery"
	"github.com/lectorhq/lector/pkg/sampler"
)

const discoverLongDesc string = `Summarize what the knowledge base contains.

Discovery samples stored documents as cluster anchors, groups similar
documents around them, summarizes each cluster in parallel, and synthesizes
one overview of the whole collection.

--n-sample and --p-sample control how many anchors are drawn and are
mutually exclusive. Smaller samples are faster; larger samples cover more
of the corpus.

Examples:
  lector discover
  lector discover --p-sample 0.25
  lector discover --n-sample 15 --cluster-percentage 0.2`

const discoverShortDesc string = "Summarize what the knowledge base contains"

type discoverCommander struct {
	model      string
	nSample    uint
	pSample    float64
	clusterPct float64
	debug      bool

	v *viper.Viper

	nSampleSet bool
	pSampleSet bool
}

func NewDiscoverCmd() *cobra.Command {
	cmder := &discoverCommander{}

	cmd := &cobra.Command{
		Use:   "discover",
		Short: discoverShortDesc,
		Long:  discoverLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.nSampleSet = cmd.Flags().Changed(config.FlagNSample)
			cmder.pSampleSet = cmd.Flags().Changed(config.FlagPSample)
			if cmder.nSampleSet && cmder.pSampleSet {
				return fmt.Errorf("--%s and --%s are mutually exclusive", config.FlagNSample, config.FlagPSample)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.CLIFlags, []string{
				config.FlagModel,
				config.FlagNSample,
				config.FlagPSample,
				config.FlagClusterPct,
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

	config.AddStringFlag(cmd, config.CLIFlags, config.FlagModel, &cmder.model)
	config.AddUintFlag(cmd, config.CLIFlags, config.FlagNSample, &cmder.nSample)
	config.AddFloatFlag(cmd, config.CLIFlags, config.FlagPSample, &cmder.pSample)
	config.AddFloatFlag(cmd, config.CLIFlags, config.FlagClusterPct, &cmder.clusterPct)

	return cmd
}

// sampleOptions picks between the absolute and proportional sample settings.
// A flag that was explicitly passed wins; otherwise a configured n_sample
// takes precedence over the p_sample default.
func (c *discoverCommander) sampleOptions() sampler.Options {
	if c.nSampleSet {
		return sampler.N(int(c.v.GetUint("discovery.n_sample")))
	}
	if c.pSampleSet {
		return sampler.P(c.v.GetFloat64("discovery.p_sample"))
	}
	if n := c.v.GetUint("discovery.n_sample"); n > 0 {
		return sampler.N(int(n))
	}
	return sampler.P(c.v.GetFloat64("discovery.p_sample"))
}

func (c *discoverCommander) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	log := logger.New(logger.WithDebug(c.debug))

	rt, err := runtime.Build(ctx, c.v, log)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	console := human.NewConsole(os.Stdin, os.Stdout)

	graph := discovery.NewGraph(discovery.GraphConfig{
		Client:     rt.Client,
		Store:      rt.Store,
		Interactor: console,
		Sample:     c.sampleOptions(),
		Cluster: cluster.Config{
			ClusterPercentage: c.v.GetFloat64("discovery.cluster_percentage"),
			MinClusterSize:    int(c.v.GetUint("discovery.min_cluster_size")),
			MaxClusterSize:    int(c.v.GetUint("discovery.max_cluster_size")),
		},
		MapConcurrency: int(c.v.GetUint("discovery.map_concurrency")),
		Logger:         log,
	})

	start := time.Now()
	final, err := graph.Run(ctx, pipeline.State{})
	if err != nil {
		return fmt.Errorf("discovering knowledge base: %w", err)
	}

	if final.Summary != "" && cliui.IsTerminal(os.Stdout) {
		if rendered, rerr := cliui.RenderMarkdown(final.Summary); rerr == nil {
			fmt.Print("\n\n", rendered)
		}
	}
	fmt.Println()

	documents := 0
	for _, cl := range final.Clusters {
		documents += len(cl.Members)
	}

	event := eventstream.NewRunCompletedEvent(
		eventstream.EventSource{Pipeline: "discovery", Model: rt.Client.Name()},
		eventstream.RunMeta{
			Stages: []string{
				discovery.StageClusterRetrieve,
				discovery.StageMapSummarize,
				discovery.StageReduceSummarize,
			},
			DurationMs: time.Since(start).Milliseconds(),
			Documents:  documents,
			Clusters:   len(final.Clusters),
		},
	)
	if err := rt.Events.PublishRun(ctx, event); err != nil {
		log.Warn("publishing run event", "error", err)
	}

	return nil
}
