// Package statuscmder provides the status command for displaying the state
// of the configured knowledge base.
package statuscmder

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lectorhq/lector/cmd/lector/runtime"
	"github.com/lectorhq/lector/pkg/cliui"
	"github.com/lectorhq/lector/pkg/config"
	"github.com/lectorhq/lector/pkg/dotdir"
	"github.com/lectorhq/lector/pkg/logger"
)

const statusLongDesc string = `Show the state of the configured knowledge base.

Displays which .lector/ directory is active, the configured model, vector
store, and embedder, and how many documents are currently indexed.

Examples:
  lector status`

const statusShortDesc string = "Show knowledge base status"

type statusCommander struct {
	v *viper.Viper
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd, configDir)
		},
	}

	return cmd
}

func (c *statusCommander) run(cmd *cobra.Command, configDir string) error {
	ctx := cmd.Context()

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return fmt.Errorf("resolving config dir: %w", err)
	}

	fmt.Println()
	if target != "" {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Directory:  "), cliui.ValueStyle.Render(target))
	} else {
		fmt.Printf("  %s No .lector/ directory found. Using defaults.\n", cliui.DimStyle.Render("●"))
	}

	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Model:      "), cliui.ValueStyle.Render(c.v.GetString("llm.model")))
	fmt.Printf("  %s  %s %s\n",
		cliui.KeyStyle.Render("Store:      "),
		cliui.ValueStyle.Render(c.v.GetString("vector_store.provider")),
		cliui.DimStyle.Render("("+c.v.GetString("vector_store.target")+")"),
	)
	fmt.Printf("  %s  %s %s\n",
		cliui.KeyStyle.Render("Embedder:   "),
		cliui.ValueStyle.Render(c.v.GetString("embedding.model")),
		cliui.DimStyle.Render("("+c.v.GetString("embedding.provider")+")"),
	)

	rt, err := runtime.Build(ctx, c.v, logger.Nop())
	if err != nil {
		fmt.Printf("  %s  %s\n\n",
			cliui.KeyStyle.Render("Documents:  "),
			cliui.DimStyle.Render("unavailable: "+err.Error()),
		)
		return nil
	}
	defer func() { _ = rt.Close() }()

	count, err := rt.Store.Count(ctx)
	if err != nil {
		fmt.Printf("  %s  %s\n\n",
			cliui.KeyStyle.Render("Documents:  "),
			cliui.DimStyle.Render("unavailable: "+err.Error()),
		)
		return nil
	}

	fmt.Printf("  %s  %s\n\n", cliui.KeyStyle.Render("Documents:  "), cliui.ValueStyle.Render(strconv.Itoa(count)))
	return nil
}
