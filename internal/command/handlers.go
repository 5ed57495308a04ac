package command

import (
	"context"
	"fmt"
	"slices"

	"github.com/specialistvlad/propshell/internal/ctxlog"
	"github.com/specialistvlad/propshell/internal/ref"
	"github.com/specialistvlad/propshell/internal/shellerr"
)

// capture collects the body of an `on` block.
type capture struct {
	event ref.Ref
	line  int
	body  []Command
}

type handler struct {
	event ref.Ref
	body  []Command
}

// handlerTable keeps handlers per event in registration order.
type handlerTable struct {
	byEvent map[ref.Ref][]*handler
}

func newHandlerTable() *handlerTable {
	return &handlerTable{byEvent: make(map[ref.Ref][]*handler)}
}

func (t *handlerTable) add(h *handler) {
	t.byEvent[h.event] = append(t.byEvent[h.event], h)
}

func (t *handlerTable) lookup(event ref.Ref) []*handler {
	return slices.Clone(t.byEvent[event])
}

// forget drops every handler attached to object and returns how many.
func (t *handlerTable) forget(object string) int {
	n := 0
	for ev, hs := range t.byEvent {
		if ev.Object == object {
			n += len(hs)
			delete(t.byEvent, ev)
		}
	}
	return n
}

func (t *handlerTable) forObject(object string) []*handler {
	var out []*handler
	for ev, hs := range t.byEvent {
		if ev.Object == object {
			out = append(out, hs...)
		}
	}
	slices.SortStableFunc(out, func(a, b *handler) int {
		if a.event.Member < b.event.Member {
			return -1
		}
		if a.event.Member > b.event.Member {
			return 1
		}
		return 0
	})
	return out
}

// captureLine feeds one line into c, the open `on` block of source. A
// failure discards the whole block.
func (i *Interpreter) captureLine(ctx context.Context, source string, c *capture, line string, lineNo int) error {
	if Skip(line) {
		return nil
	}

	cmd, err := Parse(line, lineNo)
	if err != nil {
		delete(i.captures, source)
		return err
	}

	switch cmd.Verb {
	case End:
		delete(i.captures, source)
		i.handlers.add(&handler{event: c.event, body: c.body})
		ctxlog.FromContext(ctx).Debug("Handler registered.", "event", c.event.String(), "commands", len(c.body))
		return nil
	case On:
		delete(i.captures, source)
		return shellerr.Parsef("'on' blocks cannot be nested (block for %s opened on line %d)", c.event, c.line)
	default:
		c.body = append(c.body, cmd)
		return nil
	}
}

// checkEvent verifies that object exists and that member is one of its
// signals or a `notify::` event of one of its properties.
func (i *Interpreter) checkEvent(ev ref.Ref) error {
	obj, err := i.cfg.Objects.Get(ev.Object)
	if err != nil {
		return err
	}
	if ev.IsNotify() {
		if _, ok := obj.Spec().Property(ev.NotifiedProperty()); !ok {
			return fmt.Errorf("%w: %s (kind %s)", shellerr.ErrUnknownProperty, ev, obj.Spec().Name)
		}
		return nil
	}
	if _, ok := obj.Spec().Signal(ev.Member); !ok {
		return fmt.Errorf("%w: %s (kind %s)", shellerr.ErrUnknownMethod, ev, obj.Spec().Name)
	}
	return nil
}

// dispatch runs the handlers of an event. It is registered as an engine
// listener.
func (i *Interpreter) dispatch(ctx context.Context, object, event string) error {
	hs := i.handlers.lookup(ref.New(object, event))
	if len(hs) == 0 {
		return nil
	}
	if i.depth >= MaxHandlerDepth {
		return fmt.Errorf("%w: %s.%s at depth %d", shellerr.ErrHandlerDepth, object, event, i.depth)
	}

	i.depth++
	defer func() { i.depth-- }()

	logger := ctxlog.FromContext(ctx)
	for _, h := range hs {
		logger.Debug("Running handler.", "event", h.event.String(), "depth", i.depth)
		for _, cmd := range h.body {
			err := i.run(ctx, cmd)
			i.cfg.Metrics.Command(string(cmd.Verb), err)
			if err != nil {
				return fmt.Errorf("handler %s: %s: %w", h.event, cmd.Text, err)
			}
		}
	}
	return nil
}
