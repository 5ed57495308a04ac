package objects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/specialistvlad/propshell/internal/ctxlog"
	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/ref"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/specialistvlad/propshell/internal/shellerr"
)

// Object is one live instance of a kind.
type Object struct {
	Name     string
	Kind     *registry.Kind
	Instance kind.Instance
}

// Spec is a shorthand for the object's kind spec.
func (o *Object) Spec() *kind.Spec {
	return o.Kind.Spec
}

// EnvFunc builds the environment handed to a new instance.
type EnvFunc func(name string) kind.Env

// Registry is the name → object table of one session.
type Registry struct {
	mu    sync.RWMutex
	kinds *registry.Registry
	env   EnvFunc
	objs  map[string]*Object
	order []string
}

// New creates an empty Registry that builds objects from kinds.
func New(kinds *registry.Registry, env EnvFunc) *Registry {
	if env == nil {
		env = func(name string) kind.Env { return kind.Env{Name: name, Out: io.Discard, Post: func(kind.Update) {}} }
	}
	return &Registry{
		kinds: kinds,
		env:   env,
		objs:  make(map[string]*Object),
	}
}

// Create builds a new object of kindName. Nothing is stored unless the
// instance is built successfully.
func (r *Registry) Create(ctx context.Context, kindName, name string) (Handle, error) {
	if err := ref.ValidateName(name); err != nil {
		return Handle{}, err
	}
	k, err := r.kinds.Lookup(kindName)
	if err != nil {
		return Handle{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.objs[name]; exists {
		return Handle{}, fmt.Errorf("%w: '%s'", shellerr.ErrDuplicateName, name)
	}

	inst, err := k.Factory(k.Spec, r.env(name))
	if err != nil {
		return Handle{}, fmt.Errorf("create %s %s: %w", kindName, name, err)
	}

	obj := &Object{Name: name, Kind: k, Instance: inst}
	r.objs[name] = obj
	r.order = append(r.order, name)

	ctxlog.FromContext(ctx).Debug("Object created.", "kind", kindName, "name", name)
	return Handle{reg: r, obj: obj}, nil
}

// Destroy removes an object and closes its instance if it is an io.Closer.
// The object is removed even when closing fails.
func (r *Registry) Destroy(ctx context.Context, name string) error {
	r.mu.Lock()
	obj, ok := r.objs[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: '%s'", shellerr.ErrUnknownObject, name)
	}
	delete(r.objs, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	r.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Object destroyed.", "kind", obj.Kind.Spec.Name, "name", name)
	return closeInstance(obj)
}

// Lookup returns a handle for name.
func (r *Registry) Lookup(name string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.objs[name]
	if !ok {
		return Handle{}, false
	}
	return Handle{reg: r, obj: obj}, true
}

// Get returns the object named name, failing with shellerr.ErrUnknownObject.
func (r *Registry) Get(name string) (*Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.objs[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", shellerr.ErrUnknownObject, name)
	}
	return obj, nil
}

// Names returns the object names in creation order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of live objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objs)
}

// Close destroys every object, newest first, and joins the close errors.
func (r *Registry) Close(ctx context.Context) error {
	names := r.Names()
	var errs []error
	for i := len(names) - 1; i >= 0; i-- {
		if err := r.Destroy(ctx, names[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeInstance(obj *Object) error {
	c, ok := obj.Instance.(io.Closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("close %s: %w", obj.Name, err)
	}
	return nil
}

// Handle is a non-owning reference to an object.
type Handle struct {
	reg *Registry
	obj *Object
}

// Valid reports whether the object the handle was issued for still exists.
func (h Handle) Valid() bool {
	if h.reg == nil {
		return false
	}
	h.reg.mu.RLock()
	defer h.reg.mu.RUnlock()
	cur, ok := h.reg.objs[h.obj.Name]
	return ok && cur == h.obj
}

// Name returns the object name, even for a stale handle.
func (h Handle) Name() string {
	if h.obj == nil {
		return ""
	}
	return h.obj.Name
}

// Kind returns the name of the object's kind.
func (h Handle) Kind() string {
	if h.obj == nil {
		return ""
	}
	return h.obj.Kind.Spec.Name
}

// Object returns the referenced object, failing with
// shellerr.ErrUnknownObject once it has been destroyed.
func (h Handle) Object() (*Object, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("%w: '%s' (stale handle)", shellerr.ErrUnknownObject, h.Name())
	}
	return h.obj, nil
}
