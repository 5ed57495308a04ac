package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/propshell/internal/repl"
	"github.com/specialistvlad/propshell/internal/session"
	"github.com/specialistvlad/propshell/internal/shellerr"
)

// ScriptError reports the script batch that failed.
type ScriptError struct {
	Path string
	Err  error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s: %v", e.Path, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Run serves HTTP if configured, runs every script in order and then reads
// commands from in until it is exhausted. The first failing script stops
// the run with a *ScriptError.
func (a *App) Run(ctx context.Context, in io.Reader) error {
	ctx = a.withLogger(ctx)
	a.logger.Debug("App.Run method started.")

	if _, err := a.startHTTPServer(); err != nil {
		return err
	}

	for _, path := range a.config.Scripts {
		if err := a.RunScript(ctx, path); err != nil {
			return err
		}
	}

	if a.config.REPL {
		a.logger.Debug("Starting REPL.")
		if err := repl.Run(ctx, in, a.outW, a.session); err != nil {
			return fmt.Errorf("repl: %w", err)
		}
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// RunScript executes one file as a single batch.
func (a *App) RunScript(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return &ScriptError{Path: path, Err: err}
	}

	a.logger.Info("Running script.", "path", path)
	b := session.Batch{Origin: "script", Source: "script:" + path, Text: string(src)}
	if err := a.session.Execute(a.withLogger(ctx), b); err != nil {
		return &ScriptError{Path: path, Err: err}
	}
	if a.session.Pending(b.Source) {
		a.session.Discard(b.Source)
		return &ScriptError{Path: path, Err: shellerr.Parsef("unterminated 'on' block")}
	}
	return nil
}
