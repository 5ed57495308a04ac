package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/propshell/internal/ctxlog"
)

// ValidateRegistry performs a strict parity check between manifests and Go
// code. Every compiled kind must claim exactly the manifest's properties and
// signals, in manifest order, because its PropID and SignalID constants are
// indexes into those tables.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, name := range r.Kinds() {
		k := r.kinds[name]
		if k.Declarative() {
			logger.Debug("Skipping parity check for declarative kind.", "kind", name)
			continue
		}

		errs = append(errs, compareTables(name, "property", k.Spec.PropertyNames(), k.Claims.Properties)...)
		errs = append(errs, compareTables(name, "signal", k.Spec.SignalNames(), k.Claims.Signals)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	logger.Debug("Registry validation passed.", "kinds", len(r.kinds))
	return nil
}

func compareTables(kindName, what string, manifest, claimed []string) []string {
	var errs []string

	for _, n := range claimed {
		if !slices.Contains(manifest, n) {
			errs = append(errs, fmt.Sprintf("kind '%s': Go code claims %s '%s' which is not declared in manifest", kindName, what, n))
		}
	}
	for _, n := range manifest {
		if !slices.Contains(claimed, n) {
			errs = append(errs, fmt.Sprintf("kind '%s': manifest declares %s '%s' which is not claimed by Go code", kindName, what, n))
		}
	}

	if len(errs) == 0 && !slices.Equal(manifest, claimed) {
		errs = append(errs, fmt.Sprintf("kind '%s': %s order differs: manifest has %v, Go code has %v", kindName, what, manifest, claimed))
	}
	return errs
}
