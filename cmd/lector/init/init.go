// Package initcmder provides the init command for initializing a local
// .lector directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lectorhq/lector/pkg/cliui"
	"github.com/lectorhq/lector/pkg/config"
)

const (
	dirName = ".lector"
)

const initLongDesc string = `Initialize a new .lector/ directory in the current working directory.

Creates a local .lector/ directory that takes precedence over the default
~/.lector/ directory for configuration and the local vector index.

This is useful for maintaining a separate knowledge base per project or
directory. Pass --preset to also write a config.toml tuned for a provider.

Examples:
  lector init
  lector init --preset openai
  lector init --preset ollama`

const initShortDesc string = "Initialize a local .lector/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Write a config.toml for a provider preset (%s)",
			strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	alreadyExists := err == nil && info.IsDir()
	if !alreadyExists {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .lector directory: %w", err)
		}
	}

	if alreadyExists {
		fmt.Printf("Already initialized: %s\n", dir)
	} else {
		fmt.Printf("Initialized .lector directory: %s\n", dir)
	}

	if preset == "" {
		return nil
	}

	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing preset config: %w", err)
	}

	fmt.Printf("  %s Wrote %s %s\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(filepath.Join(dir, "config.toml")),
		cliui.DimStyle.Render(fmt.Sprintf("(preset: %s)", preset)),
	)
	return nil
}
