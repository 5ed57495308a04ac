package registry

import (
	"fmt"
	"sort"

	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/shellerr"
)

// Module is the interface that all compiled kinds implement to be registered.
type Module interface {
	Register(r *Registry) error
}

// Claims lists the property and signal names a kind's Go code indexes by
// PropID and SignalID, in index order.
type Claims struct {
	Properties []string
	Signals    []string
}

// Kind is a registered kind.
type Kind struct {
	Spec    *kind.Spec
	Factory kind.Factory
	// Claims is nil for declarative kinds.
	Claims *Claims
	// Source is the manifest file or package the kind came from.
	Source string
}

// Declarative reports whether the kind ships no Go code.
func (k *Kind) Declarative() bool {
	return k.Claims == nil
}

// Registry holds every kind known to one application instance.
type Registry struct {
	kinds map[string]*Kind
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{kinds: make(map[string]*Kind)}
}

// RegisterKind adds a kind. Registering a name twice fails with
// shellerr.ErrDuplicateKind.
func (r *Registry) RegisterKind(k *Kind) error {
	if k == nil || k.Spec == nil {
		return fmt.Errorf("kind has no spec")
	}
	if k.Factory == nil {
		return fmt.Errorf("kind '%s' has no factory", k.Spec.Name)
	}
	if existing, ok := r.kinds[k.Spec.Name]; ok {
		return fmt.Errorf("%w: '%s' from %s is already registered from %s",
			shellerr.ErrDuplicateKind, k.Spec.Name, k.Source, existing.Source)
	}
	r.kinds[k.Spec.Name] = k
	return nil
}

// RegisterDeclarative adds a manifest-only kind backed by kind.Bag.
func (r *Registry) RegisterDeclarative(spec *kind.Spec, source string) error {
	return r.RegisterKind(&Kind{Spec: spec, Factory: kind.NewBag, Source: source})
}

// Lookup returns a kind by name, failing with shellerr.ErrUnknownKind.
func (r *Registry) Lookup(name string) (*Kind, error) {
	k, ok := r.kinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", shellerr.ErrUnknownKind, name)
	}
	return k, nil
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered kinds.
func (r *Registry) Len() int {
	return len(r.kinds)
}
