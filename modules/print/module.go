// Package print provides the Print kind, which echoes its text property to
// the session output.
package print

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/manifest"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

//go:embed manifest.hcl
var manifestSrc []byte

// Text is the only property.
const Text kind.PropID = 0

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the kind.
func (m *Module) Register(r *registry.Registry) error {
	return r.RegisterKind(&registry.Kind{
		Spec:    manifest.MustParse("print/manifest.hcl", manifestSrc),
		Factory: New,
		Claims:  &registry.Claims{Properties: []string{"text"}},
		Source:  "modules/print",
	})
}

// Printer is a live Print object.
type Printer struct {
	*kind.Values
	env kind.Env
}

// New is the Print factory.
func New(spec *kind.Spec, env kind.Env) (kind.Instance, error) {
	return &Printer{Values: kind.NewValues(spec), env: env}, nil
}

// Set stores and prints the text.
func (p *Printer) Set(ctx context.Context, id kind.PropID, v cty.Value) ([]kind.PropID, error) {
	p.Put(id, v)
	if _, err := fmt.Fprintf(p.env.Out, "%s\n", v.AsString()); err != nil {
		return nil, fmt.Errorf("print: %w", err)
	}
	return nil, nil
}

// Emit implements kind.Instance. Print has no signals.
func (p *Printer) Emit(ctx context.Context, s kind.SignalID) ([]kind.PropID, error) {
	return nil, nil
}
