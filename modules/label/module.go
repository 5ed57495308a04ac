// Package label provides the Label kind, rendered with lipgloss.
package label

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/manifest"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

//go:embed manifest.hcl
var manifestSrc []byte

const (
	Text kind.PropID = iota
	FontName
	FontSize
	X
	Y
)

const Draw kind.SignalID = 0

// Canvas size in cells.
const (
	CanvasWidth  = 60
	CanvasHeight = 5
)

// boldSize is the smallest font size drawn in bold.
const boldSize = 20

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the kind.
func (m *Module) Register(r *registry.Registry) error {
	return r.RegisterKind(&registry.Kind{
		Spec:    manifest.MustParse("label/manifest.hcl", manifestSrc),
		Factory: New,
		Claims: &registry.Claims{
			Properties: []string{"text", "font-name", "font-size", "x", "y"},
			Signals:    []string{"draw"},
		},
		Source: "modules/label",
	})
}

// Label is a live Label object.
type Label struct {
	*kind.Values
	env kind.Env
}

// New is the Label factory.
func New(spec *kind.Spec, env kind.Env) (kind.Instance, error) {
	return &Label{Values: kind.NewValues(spec), env: env}, nil
}

// Set stores the value. Labels only render on draw.
func (l *Label) Set(ctx context.Context, p kind.PropID, v cty.Value) ([]kind.PropID, error) {
	l.Put(p, v)
	return nil, nil
}

// Emit implements kind.Instance.
func (l *Label) Emit(ctx context.Context, s kind.SignalID) ([]kind.PropID, error) {
	if s != Draw {
		return nil, nil
	}
	if _, err := fmt.Fprintln(l.env.Out, l.Render()); err != nil {
		return nil, fmt.Errorf("draw label: %w", err)
	}
	return nil, nil
}

// Render places the text on the canvas at (x, y).
func (l *Label) Render() string {
	style := lipgloss.NewStyle()
	if l.Int(FontSize) >= boldSize {
		style = style.Bold(true)
	}
	if strings.Contains(strings.ToLower(l.String(FontName)), "italic") {
		style = style.Italic(true)
	}

	return lipgloss.Place(CanvasWidth, CanvasHeight,
		lipgloss.Position(l.Float(X)), lipgloss.Position(l.Float(Y)),
		style.Render(l.String(Text)))
}
