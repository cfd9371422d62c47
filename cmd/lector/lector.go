// Package lectorcmder
package lectorcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/lectorhq/lector/cmd/lector/ask"
	chatcmder "github.com/lectorhq/lector/cmd/lector/chat"
	configcmder "github.com/lectorhq/lector/cmd/lector/config"
	discovercmder "github.com/lectorhq/lector/cmd/lector/discover"
	ingestcmder "github.com/lectorhq/lector/cmd/lector/ingest"
	initcmder "github.com/lectorhq/lector/cmd/lector/init"
	servecmder "github.com/lectorhq/lector/cmd/lector/serve"
	statuscmder "github.com/lectorhq/lector/cmd/lector/status"
	watchcmder "github.com/lectorhq/lector/cmd/lector/watch"
	versioncmder "github.com/lectorhq/lector/cmd/version"
)

const lectorLongDesc string = `Lector is a reading companion for your document piles.

Ingest documents into a semantic index, then either ask pointed questions
or let lector survey what the pile contains:

  lector ingest notes/*.md     Index documents
  lector ask "..."             Answer a question from the indexed documents
  lector discover              Summarize what the knowledge base covers
  lector chat                  Interactive session that routes each message
  lector serve                 Run the HTTP API`

const lectorShortDesc string = "Lector - Document QA and Discovery"

func NewLectorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lector",
		Short: lectorShortDesc,
		Long:  lectorLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (overrides .lector/ discovery)")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(discovercmder.NewDiscoverCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
