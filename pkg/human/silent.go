package human

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Silent is an Interactor for noninteractive callers such as the HTTP API.
// Prompts answer immediately with no input, which pipelines treat the same
// as a timeout. Notices go to the logger; streamed output is discarded
// unless a writer is provided.
type Silent struct {
	logger *slog.Logger
	out    io.Writer
}

var _ Interactor = (*Silent)(nil)

// NewSilent creates a silent interactor. out may be nil to discard
// streamed output.
func NewSilent(logger *slog.Logger, out io.Writer) *Silent {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if out == nil {
		out = io.Discard
	}
	return &Silent{logger: logger, out: out}
}

func (s *Silent) AskText(context.Context, string, time.Duration) (string, bool, error) {
	return "", false, nil
}

func (s *Silent) AskFiles(context.Context, string, time.Duration) ([]string, bool, error) {
	return nil, false, nil
}

func (s *Silent) Notify(_ context.Context, msg string) error {
	s.logger.Debug("notice", "msg", msg)
	return nil
}

func (s *Silent) Stream(context.Context) io.Writer { return s.out }
