// Package human defines how pipelines talk to the person driving them.
//
// Timeouts are a normal outcome here, not an error: a user who walks away
// from an approval prompt should not fail the run.
package human

import (
	"context"
	"io"
	"time"
)

// Interactor is the pipeline's channel to a human.
type Interactor interface {
	// AskText prompts for free-form text. ok is false when the wait
	// timed out or the user gave no answer; err is reserved for real
	// I/O failures.
	AskText(ctx context.Context, prompt string, timeout time.Duration) (answer string, ok bool, err error)

	// AskFiles prompts for file paths. Same timeout semantics as AskText.
	AskFiles(ctx context.Context, prompt string, timeout time.Duration) (paths []string, ok bool, err error)

	// Notify shows a one-way message.
	Notify(ctx context.Context, msg string) error

	// Stream returns a writer whose content reaches the user
	// incrementally, for token-by-token model output.
	Stream(ctx context.Context) io.Writer
}
