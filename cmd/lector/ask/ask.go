// Package askcmder provides the ask command: answer a question from the
// indexed documents.
package askcmder

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lectorhq/lector/cmd/lector/runtime"
	"github.com/lectorhq/lector/pkg/cliui"
	"github.com/lectorhq/lector/pkg/config"
	"github.com/lectorhq/lector/pkg/eventstream"
	"github.com/lectorhq/lector/pkg/human"
	"github.com/lectorhq/lector/pkg/logger"
	"github.com/lectorhq/lector/pkg/pipeline"
	"github.com/lectorhq/lector/pkg/pipeline/qa"
)

const askLongDesc string = `Answer a question from the indexed documents.

The question is optionally decomposed into sub-queries, relevant chunks are
retrieved from the vector store, and a grounded answer is synthesized and
streamed to the terminal.

With --approve, lector pauses after decomposition so you can review the
generated sub-queries. Answer with feedback to regenerate them, or approve
to continue. The prompt times out and proceeds on its own.

Examples:
  lector ask "what does the migration plan say about downtime?"
  lector ask --decompose "compare the auth proposals"
  lector ask --decompose --approve --top-k 20 "summarize the incident reports"`

const askShortDesc string = "Answer a question from the indexed documents"

type askCommander struct {
	model     string
	topK      uint
	decompose bool
	approve   bool
	debug     bool

	v *viper.Viper
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.CLIFlags, []string{
				config.FlagModel,
				config.FlagTopK,
				config.FlagDecompose,
				config.FlagApprove,
			})
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd, args[0])
		},
	}

	config.AddStringFlag(cmd, config.CLIFlags, config.FlagModel, &cmder.model)
	config.AddUintFlag(cmd, config.CLIFlags, config.FlagTopK, &cmder.topK)
	config.AddBoolFlag(cmd, config.CLIFlags, config.FlagDecompose, &cmder.decompose)
	config.AddBoolFlag(cmd, config.CLIFlags, config.FlagApprove, &cmder.approve)

	return cmd
}

func (c *askCommander) run(cmd *cobra.Command, question string) error {
	ctx := cmd.Context()
	log := logger.New(logger.WithDebug(c.debug))

	rt, err := runtime.Build(ctx, c.v, log)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	console := human.NewConsole(os.Stdin, os.Stdout)

	graph := qa.NewGraph(qa.GraphConfig{
		Client:     rt.Client,
		Store:      rt.Store,
		Interactor: console,
		Decompose:  c.v.GetBool("qa.decompose"),
		Approve:    c.v.GetBool("qa.approve"),
		TopK:       int(c.v.GetUint("qa.top_k")),
		Gate: qa.GateConfig{
			Timeout:      runtime.ApprovalTimeout(c.v),
			MaxRevisions: int(c.v.GetUint("qa.max_revisions")),
		},
		Logger: log,
	})

	start := time.Now()
	final, err := graph.Run(ctx, pipeline.State{UserQuery: question})
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	// The summary already streamed; on a terminal, re-render it as
	// markdown so the final copy is the readable one.
	if cliui.IsTerminal(os.Stdout) {
		if rendered, rerr := cliui.RenderMarkdown(final.Summary); rerr == nil {
			fmt.Print("\n\n", rendered)
		}
	}
	fmt.Println()

	event := eventstream.NewRunCompletedEvent(
		eventstream.EventSource{Pipeline: "qa", Model: rt.Client.Name()},
		eventstream.RunMeta{
			Query:      question,
			Stages:     []string{qa.StageOptimizer, qa.StageRetriever, qa.StageSummarizer},
			DurationMs: time.Since(start).Milliseconds(),
			Documents:  len(final.RetrievedDocuments),
		},
	)
	if err := rt.Events.PublishRun(ctx, event); err != nil {
		log.Warn("publishing run event", "error", err)
	}

	return nil
}
