// Package watchcmder provides the watch command: keep the knowledge base in
// sync with a directory by ingesting files as they appear.
package watchcmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lectorhq/lector/cmd/lector/runtime"
	"github.com/lectorhq/lector/pkg/cliui"
	"github.com/lectorhq/lector/pkg/config"
	"github.com/lectorhq/lector/pkg/ingest"
	"github.com/lectorhq/lector/pkg/logger"
)

// settleDelay is how long a file must be quiet after its last write event
// before it is ingested. Editors and copies produce bursts of writes.
const settleDelay = 500 * time.Millisecond

const watchLongDesc string = `Watch a directory and ingest new or changed files.

Every supported file created or written under the directory is parsed,
chunked, and added to the knowledge base once its writes settle. Unsupported
file types are skipped. The watch runs until interrupted.

Examples:
  lector watch notes/
  lector watch .`

const watchShortDesc string = "Ingest files from a directory as they appear"

type watchCommander struct {
	debug bool

	v *viper.Viper
}

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.ExactArgs(1),
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

			return cmder.run(cmd, args[0])
		},
	}

	return cmd
}

func (c *watchCommander) run(cmd *cobra.Command, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.WithDebug(c.debug))

	rt, err := runtime.Build(ctx, c.v, log)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	fmt.Printf("\n  %s %s\n\n",
		cliui.KeyStyle.Render("Watching:"),
		cliui.ValueStyle.Render(dir),
	)

	ingestor := ingest.NewIngestor(rt.Store, log)

	// pending maps a path to the timer that fires once its writes settle.
	pending := make(map[string]*time.Timer)
	settled := make(chan string)

	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			path := event.Name
			if timer, exists := pending[path]; exists {
				timer.Reset(settleDelay)
				continue
			}
			pending[path] = time.AfterFunc(settleDelay, func() {
				select {
				case settled <- path:
				case <-ctx.Done():
				}
			})

		case path := <-settled:
			delete(pending, path)
			c.ingestPath(ctx, ingestor, path, log)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)
		}
	}
}

func (c *watchCommander) ingestPath(ctx context.Context, ingestor *ingest.Ingestor, path string, log *slog.Logger) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	chunks, err := ingestor.IngestFile(ctx, path)
	if err != nil {
		log.Warn("skipping file", "path", path, "error", err)
		return
	}
	if chunks == 0 {
		return
	}
	fmt.Printf("  %s %s %s\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(path),
		cliui.DimStyle.Render(fmt.Sprintf("(%d chunks)", chunks)),
	)
}
