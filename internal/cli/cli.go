package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/propshell/internal/app"
	"github.com/specialistvlad/propshell/internal/config"
	"github.com/specialistvlad/propshell/internal/ctxlog"
	"github.com/spf13/cobra"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Exit codes.
const (
	ExitScript = 1
	ExitUsage  = 2
)

// Streams are the process's standard streams.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// flags holds the values shared by every command.
type flags struct {
	configPath string
	kindsPath  string
	logLevel   string
	logFormat  string
	journal    string
	httpPort   int
	httpAddr   string
	noREPL     bool
}

// Run parses args and executes the selected command. Failures are returned
// as *ExitError.
func Run(ctx context.Context, args []string, s Streams) error {
	root := newRootCommand(s)
	root.SetArgs(args)
	root.SetIn(s.In)
	root.SetOut(s.Out)
	root.SetErr(s.Err)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	// Anything cobra reports itself is a usage problem.
	return &ExitError{Code: ExitUsage, Message: err.Error()}
}

func newRootCommand(s Streams) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "propshell [flags] [SCRIPT...]",
		Short: "An interactive shell for typed objects wired together by property bindings",
		Long: `propshell creates objects of registered kinds, binds their properties
together and reacts to their signals, driven by a small command language.

Each SCRIPT runs as one batch, in order. Afterwards commands are read from
standard input until it is exhausted, unless --no-repl is given.`,
		// Arguments are script paths, not subcommand names.
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, f, args, s)
		},
	}

	bindFlags(root, f)
	root.AddCommand(newKindsCommand(f), newHistoryCommand(f))
	return root
}

// bindFlags defines the flags shared by every command, and those of the
// shell itself, on root.
func bindFlags(root *cobra.Command, f *flags) {
	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "HCL configuration file")
	pf.StringVar(&f.kindsPath, "kinds-path", "", "directory of declarative kind manifests (.hcl)")
	pf.StringVar(&f.logLevel, "log-level", "info", "logging level: debug, info, warn or error")
	pf.StringVar(&f.logFormat, "log-format", "text", "log output format: text or json")
	pf.StringVar(&f.journal, "journal", "", "SQLite file that records every executed batch")

	root.Flags().IntVar(&f.httpPort, "http-port", 0, "port serving /health, /metrics and /shell; 0 disables it")
	root.Flags().StringVar(&f.httpAddr, "http-addr", app.DefaultHTTPAddr, "interface the HTTP server listens on; /shell runs any command, expose it with care")
	root.Flags().BoolVar(&f.noREPL, "no-repl", false, "exit after running the scripts")
}

func runShell(cmd *cobra.Command, f *flags, scripts []string, s Streams) error {
	cfg, err := resolveConfig(cmd, f, scripts, s.Err)
	if err != nil {
		return &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	a, err := app.NewApp(cmd.Context(), s.Out, s.Err, cfg)
	if err != nil {
		return &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintln(s.Err, err)
		}
	}()

	if err := a.Run(cmd.Context(), s.In); err != nil {
		return &ExitError{Code: ExitScript, Message: err.Error()}
	}
	return nil
}

// resolveConfig merges the config file under the flags. A flag given on the
// command line always wins.
func resolveConfig(cmd *cobra.Command, f *flags, scripts []string, logW io.Writer) (*app.Config, error) {
	cfg := app.Config{
		KindsPath:   f.kindsPath,
		Scripts:     scripts,
		JournalPath: f.journal,
		LogFormat:   f.logFormat,
		LogLevel:    f.logLevel,
		HTTPPort:    f.httpPort,
		HTTPAddr:    f.httpAddr,
		REPL:        !f.noREPL,
	}

	if f.configPath != "" {
		file, err := config.Load(bootstrapContext(cmd.Context(), f, logW), f.configPath)
		if err != nil {
			return nil, err
		}
		applyFile(cmd, &cfg, file)
	}

	return app.NewConfig(cfg)
}

func applyFile(cmd *cobra.Command, cfg *app.Config, file *config.File) {
	changed := func(name string) bool { return cmd.Flags().Changed(name) }

	if file.Log != nil {
		if file.Log.Level != nil && !changed("log-level") {
			cfg.LogLevel = *file.Log.Level
		}
		if file.Log.Format != nil && !changed("log-format") {
			cfg.LogFormat = *file.Log.Format
		}
	}
	if file.HTTP != nil {
		if file.HTTP.Port != nil && !changed("http-port") {
			cfg.HTTPPort = *file.HTTP.Port
		}
		if file.HTTP.Address != nil && !changed("http-addr") {
			cfg.HTTPAddr = *file.HTTP.Address
		}
	}
	if file.KindsPath != nil && !changed("kinds-path") {
		cfg.KindsPath = *file.KindsPath
	}
	if file.Journal != nil && !changed("journal") {
		cfg.JournalPath = *file.Journal
	}
	if file.REPL != nil && !changed("no-repl") {
		cfg.REPL = *file.REPL
	}
	// Scripts named on the command line run after those from the file.
	cfg.Scripts = append(append([]string(nil), file.Scripts...), cfg.Scripts...)
}

// bootstrapContext carries a logger built from the flags alone, for the
// work done before the app builds its own.
func bootstrapContext(ctx context.Context, f *flags, logW io.Writer) context.Context {
	level := slog.LevelInfo
	switch f.logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(logW, opts)
	if f.logFormat == "json" {
		handler = slog.NewJSONHandler(logW, opts)
	}
	return ctxlog.WithLogger(ctx, slog.New(handler))
}
