// Package ingestcmder provides the ingest command for indexing documents
// into the lector knowledge base.
package ingestcmder

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lectorhq/lector/cmd/lector/runtime"
	"github.com/lectorhq/lector/pkg/cliui"
	"github.com/lectorhq/lector/pkg/config"
	"github.com/lectorhq/lector/pkg/ingest"
	"github.com/lectorhq/lector/pkg/logger"
	"github.com/lectorhq/lector/pkg/prompts"
)

const ingestLongDesc string = `Index documents into the knowledge base.

Each file is parsed, split into overlapping chunks, embedded, and stored in
the configured vector store. Supported inputs are plaintext and markdown
files.

Pass --create to flush the existing index first; this discards every stored
document and asks for confirmation unless --yes is also given.

Examples:
  lector ingest notes.md
  lector ingest docs/*.md README.md
  lector ingest --create --yes fresh-corpus/*.txt`

const ingestShortDesc string = "Index documents into the knowledge base"

type ingestCommander struct {
	create bool
	yes    bool
	debug  bool

	v *viper.Viper
}

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest <files...>",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd, args)
		},
	}

	cmd.Flags().BoolVar(&cmder.create, "create", false, "Flush the index before ingesting")
	cmd.Flags().BoolVarP(&cmder.yes, "yes", "y", false, "Skip the flush confirmation prompt")

	return cmd
}

func (c *ingestCommander) run(cmd *cobra.Command, paths []string) error {
	ctx := cmd.Context()
	log := logger.New(logger.WithDebug(c.debug))

	rt, err := runtime.Build(ctx, c.v, log)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if c.create {
		if !c.yes && !confirmFlush(os.Stdin, os.Stdout) {
			fmt.Println("Aborted.")
			return nil
		}
		if err := cliui.Step(os.Stdout, prompts.MsgFlushing, func() error {
			return rt.Store.Flush(ctx)
		}); err != nil {
			return err
		}
	}

	fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render(prompts.MsgIngestProcessing(len(paths))))

	ingestor := ingest.NewIngestor(rt.Store, log)

	totalChunks := 0
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		err := cliui.Step(os.Stdout, prompts.MsgIngestParsing(name), func() error {
			chunks, err := ingestor.IngestFile(ctx, path)
			if err != nil {
				return err
			}
			totalChunks += chunks
			return nil
		})
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", name, err)
		}
		names = append(names, name)
	}

	fmt.Printf("\n  %s %s\n\n",
		cliui.SuccessMark,
		prompts.MsgIngestSuccess(names, totalChunks),
	)
	return nil
}

// confirmFlush asks before discarding the index.
func confirmFlush(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "This deletes every indexed document. Continue? [y/N] ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
