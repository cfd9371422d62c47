package human

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Console is an Interactor over stdin/stdout style streams.
type Console struct {
	out   io.Writer
	lines chan string
}

// NewConsole creates a console interactor reading from in and writing to out.
// A background goroutine owns the reader for the lifetime of the Console so
// timed-out prompts don't leave a blocked read stealing the next answer.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{
		out:   out,
		lines: make(chan string),
	}

	go func() {
		defer close(c.lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
	}()

	return c
}

// ReadLine prompts and blocks until the next line of input, with no
// timeout. The second return is false once input is exhausted. REPL-style
// callers use this instead of attaching their own reader to the stream;
// a second reader would race the Console's goroutine for lines.
func (c *Console) ReadLine(ctx context.Context, prompt string) (string, bool, error) {
	fmt.Fprint(c.out, promptStyle.Render(prompt))

	select {
	case line, open := <-c.lines:
		if !open {
			fmt.Fprintln(c.out)
			return "", false, nil
		}
		return line, true, nil
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return "", false, ctx.Err()
	}
}

// AskText prompts and waits up to timeout for a line of input.
func (c *Console) AskText(ctx context.Context, prompt string, timeout time.Duration) (string, bool, error) {
	fmt.Fprintf(c.out, "%s ", promptStyle.Render(prompt))

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line, open := <-c.lines:
		if !open {
			fmt.Fprintln(c.out)
			return "", false, nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return "", false, nil
		}
		return line, true, nil
	case <-timer.C:
		fmt.Fprintln(c.out)
		return "", false, nil
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return "", false, ctx.Err()
	}
}

// AskFiles prompts for a whitespace-separated list of file paths.
func (c *Console) AskFiles(ctx context.Context, prompt string, timeout time.Duration) ([]string, bool, error) {
	answer, ok, err := c.AskText(ctx, prompt, timeout)
	if err != nil || !ok {
		return nil, ok, err
	}

	paths := strings.Fields(answer)
	if len(paths) == 0 {
		return nil, false, nil
	}
	return paths, true, nil
}

// Notify prints a one-way message.
func (c *Console) Notify(ctx context.Context, msg string) error {
	_, err := fmt.Fprintln(c.out, noticeStyle.Render(msg))
	return err
}

// Stream returns the console's output writer.
func (c *Console) Stream(ctx context.Context) io.Writer {
	return c.out
}

// Ensure Console implements Interactor
var _ Interactor = (*Console)(nil)
