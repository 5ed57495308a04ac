package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/propshell/internal/ctxlog"
	"github.com/specialistvlad/propshell/internal/journal"
	"github.com/specialistvlad/propshell/internal/metrics"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/specialistvlad/propshell/internal/session"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	config     *Config
	logger     *slog.Logger
	level      *slog.LevelVar
	registry   *registry.Registry
	metrics    *metrics.Metrics
	journal    *journal.Journal
	session    *session.Session
	httpServer *http.Server
}

// NewApp builds the registry, opens the journal and creates the session.
// Command output goes to outW and logs go to logW. When no modules are
// given the core modules are registered.
func NewApp(ctx context.Context, outW, logW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger, level := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	reg, err := BuildRegistry(ctx, cfg.KindsPath, modules...)
	if err != nil {
		return nil, err
	}

	a := &App{
		ctx:      ctx,
		outW:     outW,
		config:   cfg,
		logger:   logger,
		level:    level,
		registry: reg,
		metrics:  metrics.New(),
	}

	scfg := session.Config{
		Kinds:   reg,
		Out:     outW,
		Level:   level,
		Metrics: a.metrics,
	}
	if cfg.JournalPath != "" {
		j, err := journal.Open(ctx, cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		a.journal = j
		scfg.Journal = j
		logger.Debug("Journal opened.", "path", cfg.JournalPath)
	}

	a.session = session.New(ctx, scfg)
	return a, nil
}

// BuildRegistry registers modules, loads the declarative kinds under
// kindsPath and validates the result.
func BuildRegistry(ctx context.Context, kindsPath string, modules ...registry.Module) (*registry.Registry, error) {
	logger := ctxlog.FromContext(ctx)

	reg := registry.New()
	if len(modules) == 0 {
		modules = CoreModules()
	}
	if err := reg.RegisterModules(ctx, modules...); err != nil {
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	if kindsPath != "" {
		if err := reg.LoadDeclarative(ctx, kindsPath); err != nil {
			return nil, fmt.Errorf("failed to load kinds: %w", err)
		}
	}

	if err := reg.ValidateRegistry(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Registry validation passed.", "kinds", reg.Len())
	return reg, nil
}

func (a *App) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// Registry returns the application's registry.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Session returns the application's session.
func (a *App) Session() *session.Session {
	return a.session
}

// Close stops the HTTP server, closes the session and the journal.
func (a *App) Close() error {
	var errs []error
	if err := a.closeHTTPServer(); err != nil {
		errs = append(errs, err)
	}
	if err := a.session.Close(a.ctx); err != nil {
		errs = append(errs, fmt.Errorf("close session: %w", err))
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
		a.journal = nil
	}
	a.logger.Debug("App closed.")
	return errors.Join(errs...)
}
