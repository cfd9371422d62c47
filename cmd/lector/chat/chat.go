// Package chatcmder provides the chat command for an interactive lector
// session that routes each message to the right pipeline.
package chatcmder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lectorhq/lector/cmd/lector/runtime"
	"github.com/lectorhq/lector/pkg/cliui"
	"github.com/lectorhq/lector/pkg/cluster"
	"github.com/lectorhq/lector/pkg/config"
	"github.com/lectorhq/lector/pkg/human"
	"github.com/lectorhq/lector/pkg/ingest"
	"github.com/lectorhq/lector/pkg/llm"
	"github.com/lectorhq/lector/pkg/logger"
	"github.com/lectorhq/lector/pkg/pipeline"
	"github.com/lectorhq/lector/pkg/pipeline/discovery"
	"github.com/lectorhq/lector/pkg/pipeline/qa"
	"github.com/lectorhq/lector/pkg/pipeline/router"
	"github.com/lectorhq/lector/pkg/prompts"
	"github.com/lectorhq/lector/pkg/sampler"
)

const chatLongDesc string = `Start an interactive lector session.

Each message is classified and routed: questions about the indexed documents
go through retrieval and answering, and requests for an overview of the
whole collection go through discovery. Conversation history carries across
turns so follow-up questions have context.

Slash commands:
  /ingest <files...>   Index additional documents mid-session
  /create              Flush the index and start an empty knowledge base
  /status              Show the indexed document count
  /exit                Quit (Ctrl+D also works)

Examples:
  lector chat
  lector chat --decompose --approve`

const chatShortDesc string = "Interactive session routed across pipelines"

type chatCommander struct {
	model     string
	topK      uint
	decompose bool
	approve   bool
	debug     bool

	v *viper.Viper
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
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
	config.AddUintFlag(cmd, config.CLIFlags, config.FlagTopK, &cmder.topK)
	config.AddBoolFlag(cmd, config.CLIFlags, config.FlagDecompose, &cmder.decompose)
	config.AddBoolFlag(cmd, config.CLIFlags, config.FlagApprove, &cmder.approve)

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	log := logger.New(logger.WithDebug(c.debug))

	rt, err := runtime.Build(ctx, c.v, log)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	console := human.NewConsole(os.Stdin, os.Stdout)
	route := router.New(rt.Client)
	ingestor := ingest.NewIngestor(rt.Store, log)

	fmt.Println()
	fmt.Printf("  %s %s\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.ValueStyle.Render(c.v.GetString("llm.model")),
	)
	if count, err := rt.Store.Count(ctx); err == nil {
		fmt.Printf("  %s %s\n",
			cliui.KeyStyle.Render("Indexed:"),
			cliui.ValueStyle.Render(fmt.Sprintf("%d documents", count)),
		)
	}
	fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("Type a message and press Enter. /exit or Ctrl+D to quit."))

	var history []llm.Message

	// The console owns stdin for the whole session. Reading it here with a
	// separate scanner would race the console's goroutine for lines.
	for {
		line, open, err := console.ReadLine(ctx, "you> ")
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if !open {
			break
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := c.handleSlash(ctx, input, rt, ingestor); quit {
				break
			}
			continue
		}

		history, err = c.dispatch(ctx, input, history, rt, route, console)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			continue
		}

		fmt.Println()
		fmt.Println()
	}

	fmt.Println()
	return nil
}

// handleSlash executes a slash command. Returns true when the session
// should end.
func (c *chatCommander) handleSlash(ctx context.Context, input string, rt *runtime.Runtime, ingestor *ingest.Ingestor) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/exit", "/quit":
		return true

	case "/ingest":
		paths := fields[1:]
		if len(paths) == 0 {
			fmt.Printf("  %s\n", cliui.DimStyle.Render(prompts.MsgUploadFiles))
			return false
		}
		total, err := ingestor.IngestFiles(ctx, paths)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			return false
		}
		fmt.Printf("  %s %s\n", cliui.SuccessMark, prompts.MsgIngestChunks(total, strings.Join(paths, ", ")))

	case "/create":
		if err := cliui.Step(os.Stdout, prompts.MsgFlushing, func() error {
			return rt.Store.Flush(ctx)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
		}

	case "/status":
		count, err := rt.Store.Count(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			return false
		}
		fmt.Printf("  %s %s\n",
			cliui.KeyStyle.Render("Indexed:"),
			cliui.ValueStyle.Render(fmt.Sprintf("%d documents", count)),
		)

	default:
		fmt.Printf("  %s\n", cliui.DimStyle.Render("Unknown command. Available: /ingest /create /status /exit"))
	}
	return false
}

// dispatch routes the message and runs the chosen pipeline, returning the
// updated conversation history.
func (c *chatCommander) dispatch(ctx context.Context, input string, history []llm.Message, rt *runtime.Runtime, route *router.Router, console *human.Console) ([]llm.Message, error) {
	destination, err := route.Route(ctx, input)
	if err != nil {
		return history, err
	}

	switch destination {
	case router.DestinationDiscovery:
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
			Logger:         rt.Logger,
		})

		final, err := graph.Run(ctx, pipeline.State{})
		if err != nil {
			return history, err
		}
		if final.Summary != "" {
			history = append(history,
				llm.UserMessage(input),
				llm.AssistantMessage(final.Summary),
			)
		}
		return history, nil

	default:
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
			Logger: rt.Logger,
		})

		final, err := graph.Run(ctx, pipeline.State{
			UserQuery: input,
			Messages:  history,
		})
		if err != nil {
			return history, err
		}
		return final.Messages, nil
	}
}

func (c *chatCommander) sampleOptions() sampler.Options {
	if n := c.v.GetUint("discovery.n_sample"); n > 0 {
		return sampler.N(int(n))
	}
	return sampler.P(c.v.GetFloat64("discovery.p_sample"))
}
