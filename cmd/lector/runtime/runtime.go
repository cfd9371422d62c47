// Package runtime assembles the shared lector components (embedder, vector
// driver, store, model client, event publisher) from resolved configuration,
// so commands do not repeat the wiring.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	embeddingutils "github.com/lectorhq/lector/pkg/embeddings/utils"
	"github.com/lectorhq/lector/pkg/eventstream"
	"github.com/lectorhq/lector/pkg/eventstream/kafka"
	"github.com/lectorhq/lector/pkg/eventstream/nop"
	"github.com/lectorhq/lector/pkg/llm"
	llmclient "github.com/lectorhq/lector/pkg/llm/client"
	"github.com/lectorhq/lector/pkg/llm/fallback"
	"github.com/lectorhq/lector/pkg/store"
	vectorutils "github.com/lectorhq/lector/pkg/vector/utils"
)

// Runtime holds the assembled components. Close releases them in reverse
// construction order.
type Runtime struct {
	Store  *store.Store
	Client llm.Client
	Events eventstream.Publisher
	Logger *slog.Logger
}

// Build constructs a Runtime from viper-resolved configuration.
func Build(ctx context.Context, v *viper.Viper, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: v.GetString("embedding.provider"),
		TargetURL:    v.GetString("embedding.target"),
		Model:        v.GetString("embedding.model"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	driver, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: v.GetString("vector_store.provider"),
		TargetURL:    v.GetString("vector_store.target"),
		Collection:   v.GetString("vector_store.collection"),
		Dimensions:   v.GetUint("embedding.dimensions"),
		Logger:       logger,
	})
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}

	client, err := buildClient(v, logger)
	if err != nil {
		embedder.Close()
		driver.Close()
		return nil, err
	}

	events, err := buildPublisher(v, logger)
	if err != nil {
		embedder.Close()
		driver.Close()
		return nil, err
	}

	return &Runtime{
		Store:  store.New(embedder, driver, logger),
		Client: client,
		Events: events,
		Logger: logger,
	}, nil
}

// ApprovalTimeout returns the configured approval wait.
func ApprovalTimeout(v *viper.Viper) time.Duration {
	return time.Duration(v.GetUint("qa.approval_timeout_secs")) * time.Second
}

func buildClient(v *viper.Viper, logger *slog.Logger) (llm.Client, error) {
	opts := llmclient.Options{BaseURL: v.GetString("llm.target")}

	primary, err := llmclient.New(v.GetString("llm.model"), opts)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	fallbackName := v.GetString("llm.fallback")
	if fallbackName == "" {
		return primary, nil
	}

	secondary, err := llmclient.New(fallbackName, opts)
	if err != nil {
		return nil, fmt.Errorf("creating fallback model client: %w", err)
	}
	return fallback.New(primary, secondary, logger), nil
}

func buildPublisher(v *viper.Viper, logger *slog.Logger) (eventstream.Publisher, error) {
	if !v.GetBool("events.enabled") {
		return nop.NewPublisher(), nil
	}

	var brokers []string
	for _, b := range strings.Split(v.GetString("events.brokers"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   v.GetString("events.topic"),
	}, logger)
}

// Close releases everything the runtime holds.
func (r *Runtime) Close() error {
	var firstErr error
	if err := r.Events.Close(); err != nil {
		firstErr = err
	}
	if err := r.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
