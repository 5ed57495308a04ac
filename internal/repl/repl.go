// Package repl reads commands interactively, one line per batch.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/specialistvlad/propshell/internal/ctxlog"
	"github.com/specialistvlad/propshell/internal/session"
)

// Origin is the batch origin recorded for typed lines.
const Origin = "repl"

const (
	prompt             = "propshell> "
	continuationPrompt = "       ... "
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Executor runs batches. *session.Session implements it.
type Executor interface {
	Execute(ctx context.Context, b session.Batch) error
	Pending(source string) bool
	Discard(source string)
}

// Run reads lines from in until it is exhausted or ctx is done; either way
// ends the loop cleanly. Errors are printed to out and never end the loop.
func Run(ctx context.Context, in io.Reader, out io.Writer, exec Executor) error {
	logger := ctxlog.FromContext(ctx)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		p := prompt
		if exec.Pending(Origin) {
			p = continuationPrompt
		}
		fmt.Fprint(out, promptStyle.Render(p))

		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			logger.Info("Input interrupted.")
			break
		}

		err := exec.Execute(ctx, session.Batch{Origin: Origin, Text: scanner.Text()})
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
		}
	}
	fmt.Fprintln(out)

	if exec.Pending(Origin) {
		exec.Discard(Origin)
		logger.Warn("Input ended inside an 'on' block; the block was discarded.")
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
