// Package clock provides the Clock kind. A running clock ticks from its own
// goroutine and hands every tick to the session through Env.Post.
package clock

import (
	"context"
	_ "embed"
	"time"

	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/manifest"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

//go:embed manifest.hcl
var manifestSrc []byte

const (
	TickInterval kind.PropID = iota
	CurrentTime
	Ticks
)

const Tick kind.SignalID = 0

// Module implements the registry.Module interface for this package. Now
// defaults to time.Now.
type Module struct {
	Now func() time.Time
}

// Register registers the kind.
func (m *Module) Register(r *registry.Registry) error {
	now := m.Now
	if now == nil {
		now = time.Now
	}
	return r.RegisterKind(&registry.Kind{
		Spec: manifest.MustParse("clock/manifest.hcl", manifestSrc),
		Factory: func(spec *kind.Spec, env kind.Env) (kind.Instance, error) {
			return &Clock{Values: kind.NewValues(spec), env: env, now: now}, nil
		},
		Claims: &registry.Claims{
			Properties: []string{"tick-interval-ms", "current-time", "ticks"},
			Signals:    []string{"tick"},
		},
		Source: "modules/clock",
	})
}

// Clock is a live Clock object. All fields except the ticker goroutine's
// locals are touched only on the session's exclusive path.
type Clock struct {
	*kind.Values
	env kind.Env
	now func() time.Time

	// gen identifies the running ticker; posts from older tickers are
	// ignored.
	gen  uint64
	stop chan struct{}
}

// Set stores the value and restarts the ticker when the interval changes.
func (c *Clock) Set(ctx context.Context, p kind.PropID, v cty.Value) ([]kind.PropID, error) {
	c.Put(p, v)
	if p == TickInterval {
		c.restart(time.Duration(c.Int(TickInterval)) * time.Millisecond)
	}
	return nil, nil
}

// Emit implements kind.Instance.
func (c *Clock) Emit(ctx context.Context, s kind.SignalID) ([]kind.PropID, error) {
	if s != Tick {
		return nil, nil
	}
	return c.advance(), nil
}

// Close stops the ticker.
func (c *Clock) Close() error {
	c.halt()
	return nil
}

func (c *Clock) advance() []kind.PropID {
	c.Put(Ticks, cty.NumberIntVal(c.Int(Ticks)+1))
	c.Put(CurrentTime, cty.StringVal(c.now().Format(time.RFC3339)))
	return []kind.PropID{Ticks, CurrentTime}
}

func (c *Clock) halt() {
	c.gen++
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Clock) restart(interval time.Duration) {
	c.halt()
	if interval <= 0 {
		c.env.Logger.Debug("Clock stopped.")
		return
	}

	gen, stop := c.gen, make(chan struct{})
	c.stop = stop
	c.env.Logger.Debug("Clock started.", "interval", interval)

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				c.env.Post(func(ctx context.Context) ([]kind.PropID, error) {
					if c.gen != gen {
						return nil, nil
					}
					return c.advance(), nil
				})
			}
		}
	}()
}
