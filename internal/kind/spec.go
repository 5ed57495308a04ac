package kind

import (
	"fmt"

	"github.com/specialistvlad/propshell/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Access describes whether a property can be read, written, or both.
type Access uint8

const (
	Read Access = 1 << iota
	Write

	ReadWrite = Read | Write
)

// ParseAccess converts the manifest spelling of an access mode.
func ParseAccess(s string) (Access, error) {
	switch s {
	case "read", "readonly":
		return Read, nil
	case "write", "writeonly":
		return Write, nil
	case "readwrite", "":
		return ReadWrite, nil
	default:
		return 0, fmt.Errorf("unknown access mode %q: must be 'read', 'write' or 'readwrite'", s)
	}
}

// Readable reports whether the property can be read.
func (a Access) Readable() bool { return a&Read != 0 }

// Writable reports whether the property can be written.
func (a Access) Writable() bool { return a&Write != 0 }

// String returns the manifest spelling of the access mode.
func (a Access) String() string {
	switch a {
	case Read:
		return "read"
	case Write:
		return "write"
	case ReadWrite:
		return "readwrite"
	default:
		return "none"
	}
}

// Flags renders the access mode as the two-letter `rw` form used in dumps.
func (a Access) Flags() string {
	r, w := "-", "-"
	if a.Readable() {
		r = "r"
	}
	if a.Writable() {
		w = "w"
	}
	return r + w
}

// PropID indexes a property within its kind's Spec.
type PropID int

// SignalID indexes a signal within its kind's Spec.
type SignalID int

// PropertySpec is the immutable descriptor of one property.
type PropertySpec struct {
	Name        string
	Description string
	Type        value.Type
	Access      Access
	Default     cty.Value
	Range       *value.Range
}

// SignalSpec is the immutable descriptor of one signal.
type SignalSpec struct {
	Name        string
	Description string
}

// Spec describes a kind: its name and its property and signal tables.
type Spec struct {
	Name        string
	Description string
	Properties  []PropertySpec
	Signals     []SignalSpec

	propIndex   map[string]PropID
	signalIndex map[string]SignalID
}

// NewSpec validates the tables and builds the name indexes. Defaults are
// coerced to their property's type; a property without a default gets the
// type's zero value, moved to the nearest bound when its range excludes it.
func NewSpec(name, description string, props []PropertySpec, signals []SignalSpec) (*Spec, error) {
	if name == "" {
		return nil, fmt.Errorf("kind name cannot be empty")
	}

	s := &Spec{
		Name:        name,
		Description: description,
		Properties:  make([]PropertySpec, len(props)),
		Signals:     append([]SignalSpec(nil), signals...),
		propIndex:   make(map[string]PropID, len(props)),
		signalIndex: make(map[string]SignalID, len(signals)),
	}

	for i, p := range props {
		if p.Name == "" {
			return nil, fmt.Errorf("kind '%s': property %d has no name", name, i)
		}
		if _, dup := s.propIndex[p.Name]; dup {
			return nil, fmt.Errorf("kind '%s': property '%s' declared twice", name, p.Name)
		}
		if p.Access == 0 {
			p.Access = ReadWrite
		}
		if p.Range != nil && !p.Type.IsNumeric() {
			return nil, fmt.Errorf("kind '%s', property '%s': range is only valid for numeric types", name, p.Name)
		}
		if p.Default == cty.NilVal || p.Default.IsNull() {
			p.Default = p.Type.ZeroIn(p.Range)
		}
		def, err := value.Coerce(p.Type, p.Range, p.Default)
		if err != nil {
			return nil, fmt.Errorf("kind '%s', property '%s': invalid default: %w", name, p.Name, err)
		}
		p.Default = def
		s.Properties[i] = p
		s.propIndex[p.Name] = PropID(i)
	}

	for i, sig := range signals {
		if sig.Name == "" {
			return nil, fmt.Errorf("kind '%s': signal %d has no name", name, i)
		}
		if _, dup := s.signalIndex[sig.Name]; dup {
			return nil, fmt.Errorf("kind '%s': signal '%s' declared twice", name, sig.Name)
		}
		s.signalIndex[sig.Name] = SignalID(i)
	}

	return s, nil
}

// Property resolves a property name.
func (s *Spec) Property(name string) (PropID, bool) {
	id, ok := s.propIndex[name]
	return id, ok
}

// Signal resolves a signal name.
func (s *Spec) Signal(name string) (SignalID, bool) {
	id, ok := s.signalIndex[name]
	return id, ok
}

// Prop returns the descriptor of a property.
func (s *Spec) Prop(id PropID) PropertySpec {
	return s.Properties[id]
}

// PropertyNames lists the property names in declaration order.
func (s *Spec) PropertyNames() []string {
	names := make([]string, len(s.Properties))
	for i, p := range s.Properties {
		names[i] = p.Name
	}
	return names
}

// SignalNames lists the signal names in declaration order.
func (s *Spec) SignalNames() []string {
	names := make([]string, len(s.Signals))
	for i, sig := range s.Signals {
		names[i] = sig.Name
	}
	return names
}
