package binding

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/specialistvlad/propshell/internal/ctxlog"
	"github.com/specialistvlad/propshell/internal/dag"
	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/metrics"
	"github.com/specialistvlad/propshell/internal/objects"
	"github.com/specialistvlad/propshell/internal/ref"
	"github.com/specialistvlad/propshell/internal/shellerr"
	"github.com/specialistvlad/propshell/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Listener observes events raised on objects. event is a signal name or
// `notify::<property>`. A listener error aborts the operation that raised
// the event.
type Listener func(ctx context.Context, object, event string) error

// Binding is a directed property binding.
type Binding struct {
	Source ref.Ref
	Target ref.Ref
}

func (b Binding) String() string {
	return b.Source.String() + " -> " + b.Target.String()
}

// Engine resolves references against an object registry and owns the
// binding graph. It is not safe for concurrent use; the session serializes
// access to it.
type Engine struct {
	objects   *objects.Registry
	graph     *dag.Graph[ref.Ref]
	listeners []Listener
	metrics   *metrics.Metrics
}

// New creates an Engine over objs. m may be nil.
func New(objs *objects.Registry, m *metrics.Metrics) *Engine {
	return &Engine{
		objects: objs,
		graph:   dag.New[ref.Ref](),
		metrics: m,
	}
}

// Listen adds a listener. Listeners run in the order they were added.
func (e *Engine) Listen(l Listener) {
	e.listeners = append(e.listeners, l)
}

// Get returns the current value of a readable property.
func (e *Engine) Get(r ref.Ref) (cty.Value, error) {
	obj, p, err := e.property(r)
	if err != nil {
		return cty.NilVal, err
	}
	if !obj.Spec().Prop(p).Access.Readable() {
		return cty.NilVal, fmt.Errorf("%w: %s", shellerr.ErrNotReadable, r)
	}
	return obj.Instance.Get(p), nil
}

// Set writes v to a writable property and propagates the change.
func (e *Engine) Set(ctx context.Context, r ref.Ref, v cty.Value) error {
	obj, p, err := e.writable(r)
	if err != nil {
		return err
	}
	return e.write(ctx, &chain{}, obj, p, v)
}

// SetText parses user-typed text as the property's type and sets it.
func (e *Engine) SetText(ctx context.Context, r ref.Ref, text string) error {
	obj, p, err := e.writable(r)
	if err != nil {
		return err
	}
	ps := obj.Spec().Prop(p)
	v, err := value.Parse(ps.Type, ps.Range, text)
	if err != nil {
		return fmt.Errorf("%s: %w", r, err)
	}
	return e.write(ctx, &chain{}, obj, p, v)
}

// Call emits a signal, propagates the properties it changed, then raises the
// signal's event.
func (e *Engine) Call(ctx context.Context, object, method string) error {
	obj, err := e.objects.Get(object)
	if err != nil {
		return err
	}
	s, ok := obj.Spec().Signal(method)
	if !ok {
		return fmt.Errorf("%w: %s (kind %s)", shellerr.ErrUnknownMethod, ref.New(object, method), obj.Spec().Name)
	}

	ctxlog.FromContext(ctx).Debug("Emitting signal.", "object", object, "signal", method)
	changed, err := obj.Instance.Emit(ctx, s)
	if err != nil {
		return fmt.Errorf("call %s: %w", ref.New(object, method), err)
	}
	if err := e.propagateAll(ctx, &chain{}, obj, changed); err != nil {
		return err
	}
	return e.raise(ctx, object, method)
}

// Notify propagates properties an object changed on its own, for example
// from a posted asynchronous update.
func (e *Engine) Notify(ctx context.Context, object string, props ...kind.PropID) error {
	obj, err := e.objects.Get(object)
	if err != nil {
		return err
	}
	return e.propagateAll(ctx, &chain{}, obj, props)
}

// Bind adds a binding from a readable source to a writable target and syncs
// the target once from the source's current value. If the sync fails the
// binding stays registered and the error is returned.
func (e *Engine) Bind(ctx context.Context, src, dst ref.Ref) error {
	sobj, sp, err := e.property(src)
	if err != nil {
		return err
	}
	if !sobj.Spec().Prop(sp).Access.Readable() {
		return fmt.Errorf("%w: binding source %s", shellerr.ErrNotReadable, src)
	}
	dobj, dp, err := e.writable(dst)
	if err != nil {
		return err
	}

	if err := e.graph.AddEdge(src, dst); err != nil {
		switch {
		case errors.Is(err, dag.ErrSelfEdge):
			return fmt.Errorf("%w: %s is bound to itself", shellerr.ErrBindingCycle, src)
		case errors.Is(err, dag.ErrEdgeExists):
			return fmt.Errorf("%w: %s -> %s", shellerr.ErrDuplicateBinding, src, dst)
		default:
			return err
		}
	}
	e.metrics.SetBindings(e.graph.Len())

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Binding added.", "source", src.String(), "target", dst.String())
	if cycle := e.graph.DetectCycles(); cycle != nil {
		logger.Warn("Binding graph contains a cycle; setting any property on it will fail.", "cycle", fmt.Sprint(cycle))
	}

	ch := &chain{path: []ref.Ref{src}}
	return e.write(ctx, ch, dobj, dp, sobj.Instance.Get(sp))
}

// Unbind removes a binding.
func (e *Engine) Unbind(ctx context.Context, src, dst ref.Ref) error {
	if _, _, err := e.property(src); err != nil {
		return err
	}
	if _, _, err := e.property(dst); err != nil {
		return err
	}
	if err := e.graph.RemoveEdge(src, dst); err != nil {
		return fmt.Errorf("%w: %s -> %s", shellerr.ErrUnknownBinding, src, dst)
	}
	e.metrics.SetBindings(e.graph.Len())
	ctxlog.FromContext(ctx).Debug("Binding removed.", "source", src.String(), "target", dst.String())
	return nil
}

// Forget drops every binding the object takes part in and returns them.
func (e *Engine) Forget(object string) []Binding {
	removed := e.graph.RemoveNodes(func(r ref.Ref) bool { return r.Object == object })
	e.metrics.SetBindings(e.graph.Len())
	return toBindings(removed)
}

// Bindings returns the bindings the object takes part in, in the order they
// were added. An empty object returns every binding.
func (e *Engine) Bindings(object string) []Binding {
	return toBindings(e.graph.Edges(func(from, to ref.Ref) bool {
		return object == "" || from.Object == object || to.Object == object
	}))
}

func toBindings(edges []dag.Edge[ref.Ref]) []Binding {
	out := make([]Binding, len(edges))
	for i, edge := range edges {
		out[i] = Binding{Source: edge.From, Target: edge.To}
	}
	return out
}

// write coerces v, stores it and propagates. The written pair stays on the
// chain while the extra properties the instance reported propagate.
func (e *Engine) write(ctx context.Context, ch *chain, obj *objects.Object, p kind.PropID, v cty.Value) error {
	ps := obj.Spec().Prop(p)
	self := ref.New(obj.Name, ps.Name)

	coerced, err := value.Coerce(ps.Type, ps.Range, v)
	if err != nil {
		return fmt.Errorf("%s: %w", self, err)
	}
	changed, err := obj.Instance.Set(ctx, p, coerced)
	if err != nil {
		return fmt.Errorf("set %s: %w", self, err)
	}

	ch.push(self)
	defer ch.pop()

	if err := e.propagate(ctx, ch, obj, p); err != nil {
		return err
	}
	return e.propagateAll(ctx, ch, obj, slices.DeleteFunc(slices.Clone(changed), func(id kind.PropID) bool { return id == p }))
}

// propagateAll propagates each distinct property once, in the given order.
func (e *Engine) propagateAll(ctx context.Context, ch *chain, obj *objects.Object, props []kind.PropID) error {
	seen := make(map[kind.PropID]bool, len(props))
	for _, p := range props {
		if seen[p] {
			continue
		}
		seen[p] = true

		self := ref.New(obj.Name, obj.Spec().Prop(p).Name)
		if ch.contains(self) {
			e.metrics.Cycle()
			return fmt.Errorf("%w: %s", shellerr.ErrBindingCycle, ch.describe(self))
		}
		ch.push(self)
		err := e.propagate(ctx, ch, obj, p)
		ch.pop()
		if err != nil {
			return err
		}
	}
	return nil
}

// propagate applies the bindings of a pair that is already on the chain,
// then raises its notify event.
func (e *Engine) propagate(ctx context.Context, ch *chain, obj *objects.Object, p kind.PropID) error {
	name := obj.Spec().Prop(p).Name
	src := ref.New(obj.Name, name)

	for _, dst := range e.graph.Dependents(src) {
		if ch.contains(dst) {
			e.metrics.Cycle()
			return fmt.Errorf("%w: %s", shellerr.ErrBindingCycle, ch.describe(dst))
		}
		tobj, tp, err := e.property(dst)
		if err != nil {
			return fmt.Errorf("binding %s -> %s: %w", src, dst, err)
		}
		e.metrics.Propagation()
		if err := e.write(ctx, ch, tobj, tp, obj.Instance.Get(p)); err != nil {
			return err
		}
	}

	return e.raise(ctx, obj.Name, ref.NotifyPrefix+name)
}

func (e *Engine) raise(ctx context.Context, object, event string) error {
	for _, l := range e.listeners {
		if err := l(ctx, object, event); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) property(r ref.Ref) (*objects.Object, kind.PropID, error) {
	obj, err := e.objects.Get(r.Object)
	if err != nil {
		return nil, 0, err
	}
	p, ok := obj.Spec().Property(r.Member)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s (kind %s)", shellerr.ErrUnknownProperty, r, obj.Spec().Name)
	}
	return obj, p, nil
}

func (e *Engine) writable(r ref.Ref) (*objects.Object, kind.PropID, error) {
	obj, p, err := e.property(r)
	if err != nil {
		return nil, 0, err
	}
	if !obj.Spec().Prop(p).Access.Writable() {
		return nil, 0, fmt.Errorf("%w: %s", shellerr.ErrNotWritable, r)
	}
	return obj, p, nil
}
