package registry

import (
	"context"
	"fmt"

	"github.com/specialistvlad/propshell/internal/ctxlog"
	"github.com/specialistvlad/propshell/internal/manifest"
)

// RegisterModules registers every module in order and stops at the first
// failure.
func (r *Registry) RegisterModules(ctx context.Context, modules ...Module) error {
	logger := ctxlog.FromContext(ctx)
	for _, mod := range modules {
		if err := mod.Register(r); err != nil {
			return fmt.Errorf("register module %T: %w", mod, err)
		}
	}
	logger.Debug("Go modules registered.", "count", len(modules), "kinds", r.Len())
	return nil
}

// LoadDeclarative registers every kind declared in the .hcl manifests under
// path as a declarative kind.
func (r *Registry) LoadDeclarative(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Registry loading declarative kinds...", "path", path)

	specs, err := manifest.LoadDir(ctx, path)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		logger.Warn("No declarative kinds found in path.", "path", path)
		return nil
	}

	for _, spec := range specs {
		if err := r.RegisterDeclarative(spec, path); err != nil {
			return err
		}
		logger.Debug("Registered declarative kind.", "kind", spec.Name)
	}

	logger.Info("Declarative kinds loaded.", "count", len(specs))
	return nil
}
