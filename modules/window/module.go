// Package window provides the Window kind. An open window redraws itself
// whenever its title or summary changes.
package window

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/manifest"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

//go:embed manifest.hcl
var manifestSrc []byte

const (
	Title kind.PropID = iota
	Summary
	Opened
)

const (
	Open kind.SignalID = iota
	Close
	Clicked
)

// Width is the frame's inner width in cells.
const Width = 48

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(Width)
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the kind.
func (m *Module) Register(r *registry.Registry) error {
	return r.RegisterKind(&registry.Kind{
		Spec:    manifest.MustParse("window/manifest.hcl", manifestSrc),
		Factory: New,
		Claims: &registry.Claims{
			Properties: []string{"title", "summary", "opened"},
			Signals:    []string{"open", "close", "clicked"},
		},
		Source: "modules/window",
	})
}

// Window is a live Window object.
type Window struct {
	*kind.Values
	env kind.Env
}

// New is the Window factory.
func New(spec *kind.Spec, env kind.Env) (kind.Instance, error) {
	return &Window{Values: kind.NewValues(spec), env: env}, nil
}

// Set stores the value and redraws an open window.
func (w *Window) Set(ctx context.Context, p kind.PropID, v cty.Value) ([]kind.PropID, error) {
	w.Put(p, v)
	if w.Bool(Opened) {
		return nil, w.draw()
	}
	return nil, nil
}

// Emit implements kind.Instance.
func (w *Window) Emit(ctx context.Context, s kind.SignalID) ([]kind.PropID, error) {
	switch s {
	case Open:
		if w.Bool(Opened) {
			return nil, nil
		}
		if err := w.draw(); err != nil {
			return nil, err
		}
		w.Put(Opened, cty.True)
		return []kind.PropID{Opened}, nil
	case Close:
		if !w.Bool(Opened) {
			return nil, nil
		}
		w.Put(Opened, cty.False)
		w.env.Logger.Debug("Window closed.")
		return []kind.PropID{Opened}, nil
	default:
		return nil, nil
	}
}

// Render returns the framed window.
func (w *Window) Render() string {
	body := titleStyle.Render(w.String(Title))
	if s := w.String(Summary); s != "" {
		body += "\n\n" + s
	}
	return frameStyle.Render(body)
}

func (w *Window) draw() error {
	if _, err := fmt.Fprintln(w.env.Out, w.Render()); err != nil {
		return fmt.Errorf("draw window: %w", err)
	}
	return nil
}
