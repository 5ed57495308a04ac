// Package envvar provides the EnvVar kind.
package envvar

import (
	"context"
	_ "embed"
	"os"

	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/manifest"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

//go:embed manifest.hcl
var manifestSrc []byte

const (
	Name kind.PropID = iota
	Value
	Present
)

// Module implements the registry.Module interface for this package. Lookup
// defaults to os.LookupEnv.
type Module struct {
	Lookup func(key string) (string, bool)
}

// Register registers the kind.
func (m *Module) Register(r *registry.Registry) error {
	lookup := m.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return r.RegisterKind(&registry.Kind{
		Spec: manifest.MustParse("envvar/manifest.hcl", manifestSrc),
		Factory: func(spec *kind.Spec, env kind.Env) (kind.Instance, error) {
			return &Var{Values: kind.NewValues(spec), lookup: lookup}, nil
		},
		Claims: &registry.Claims{Properties: []string{"name", "value", "present"}},
		Source: "modules/envvar",
	})
}

// Var is a live EnvVar object.
type Var struct {
	*kind.Values
	lookup func(string) (string, bool)
}

// Set stores the name and reads the variable.
func (v *Var) Set(ctx context.Context, p kind.PropID, val cty.Value) ([]kind.PropID, error) {
	v.Put(p, val)
	if p != Name {
		return nil, nil
	}
	s, ok := v.lookup(val.AsString())
	v.Put(Value, cty.StringVal(s))
	v.Put(Present, cty.BoolVal(ok))
	return []kind.PropID{Value, Present}, nil
}

// Emit implements kind.Instance. EnvVar has no signals.
func (v *Var) Emit(ctx context.Context, s kind.SignalID) ([]kind.PropID, error) {
	return nil, nil
}
