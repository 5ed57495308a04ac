package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/manifest"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

const tallyManifest = `
kind "Tally" {
  description = "test kind that records what happens to it"

  property "text" { type = string }
  property "n" {
    type = int
    min  = 0
    max  = 1000
  }
  property "ratio" {
    type = float
    min  = 0
    max  = 1
  }
  property "flag" { type = bool }
  property "mode" {
    type    = enum("a", "b", "c")
    default = "a"
  }
  property "upper" {
    type        = string
    access      = "read"
    description = "text in upper case"
  }
  property "secret" {
    type   = string
    access = "write"
  }

  signal "bump" {
    description = "increments n"
  }
  signal "fail" {}
  signal "later" {
    description = "posts an asynchronous increment of n"
  }
}
`

// Tally property and signal ids.
const (
	TallyText kind.PropID = iota
	TallyN
	TallyRatio
	TallyFlag
	TallyMode
	TallyUpper
	TallySecret
)

const (
	TallyBump kind.SignalID = iota
	TallyFail
	TallyLater
)

// ErrTallyFailed is returned by the tally's fail signal.
var ErrTallyFailed = errors.New("tally failed on purpose")

// TallyModule registers the Tally kind.
type TallyModule struct{}

// Register registers the kind.
func (m *TallyModule) Register(r *registry.Registry) error {
	return r.RegisterKind(&registry.Kind{
		Spec:    manifest.MustParse("tally.hcl", []byte(tallyManifest)),
		Factory: NewTally,
		Claims: &registry.Claims{
			Properties: []string{"text", "n", "ratio", "flag", "mode", "upper", "secret"},
			Signals:    []string{"bump", "fail", "later"},
		},
		Source: "testutil",
	})
}

// Tally is an instance that derives `upper` from `text` and remembers being
// closed.
type Tally struct {
	*kind.Values
	env kind.Env

	mu     sync.Mutex
	closed bool
}

// NewTally is the Tally factory.
func NewTally(spec *kind.Spec, env kind.Env) (kind.Instance, error) {
	return &Tally{Values: kind.NewValues(spec), env: env}, nil
}

// Set implements kind.Instance.
func (p *Tally) Set(ctx context.Context, id kind.PropID, v cty.Value) ([]kind.PropID, error) {
	p.Put(id, v)
	if id == TallyText {
		p.Put(TallyUpper, cty.StringVal(strings.ToUpper(v.AsString())))
		return []kind.PropID{TallyUpper}, nil
	}
	return nil, nil
}

// Emit implements kind.Instance.
func (p *Tally) Emit(ctx context.Context, s kind.SignalID) ([]kind.PropID, error) {
	switch s {
	case TallyBump:
		p.Put(TallyN, cty.NumberIntVal(p.Int(TallyN)+1))
		return []kind.PropID{TallyN}, nil
	case TallyFail:
		return nil, ErrTallyFailed
	case TallyLater:
		p.env.Post(func(ctx context.Context) ([]kind.PropID, error) {
			p.Put(TallyN, cty.NumberIntVal(p.Int(TallyN)+1))
			return []kind.PropID{TallyN}, nil
		})
	}
	return nil, nil
}

// Close implements io.Closer.
func (p *Tally) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Tally) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
