// internal/ref/ref.go
package ref

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/specialistvlad/propshell/internal/shellerr"
)

// NotifyPrefix marks a member that refers to a property change event.
const NotifyPrefix = "notify::"

var (
	// nameRegex matches object names, which are also used as the object part of
	// a reference.
	nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// memberRegex matches property, signal and notify members.
	memberRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+(?:::[a-zA-Z0-9_-]+)?$`)
)

// Ref is a parsed `object.member` reference.
type Ref struct {
	Object string
	Member string
}

// New builds a Ref without validation. It is meant for code that already
// holds trusted names.
func New(object, member string) Ref {
	return Ref{Object: object, Member: member}
}

// String serializes the reference into its canonical form.
func (r Ref) String() string {
	return r.Object + "." + r.Member
}

// IsNotify reports whether the member names a property change event.
func (r Ref) IsNotify() bool {
	return strings.HasPrefix(r.Member, NotifyPrefix)
}

// NotifiedProperty returns the property of a `notify::<property>` member, or
// an empty string if the member is not a notify event.
func (r Ref) NotifiedProperty() string {
	if !r.IsNotify() {
		return ""
	}
	return strings.TrimPrefix(r.Member, NotifyPrefix)
}

// ValidateName checks that name is usable as an object name.
func ValidateName(name string) error {
	if name == "" {
		return shellerr.Parsef("object name cannot be empty")
	}
	if name == "-" || !nameRegex.MatchString(name) {
		return shellerr.Parsef("invalid object name %q", name)
	}
	return nil
}

// Parse creates a Ref from its canonical string representation. The split
// happens at the first dot, so the object part never contains one.
func Parse(raw string) (Ref, error) {
	if raw == "" {
		return Ref{}, shellerr.Parsef("reference cannot be empty")
	}

	object, member, found := strings.Cut(raw, ".")
	if !found {
		return Ref{}, shellerr.Parsef("reference %q must have the form <object>.<member>", raw)
	}
	if err := ValidateName(object); err != nil {
		return Ref{}, fmt.Errorf("reference %q: %w", raw, err)
	}
	if member == "" {
		return Ref{}, shellerr.Parsef("reference %q has an empty member", raw)
	}
	if !memberRegex.MatchString(member) {
		return Ref{}, shellerr.Parsef("invalid member %q in reference %q", member, raw)
	}
	if strings.Contains(member, "::") && !strings.HasPrefix(member, NotifyPrefix) {
		return Ref{}, shellerr.Parsef("unsupported event qualifier in %q", raw)
	}

	return Ref{Object: object, Member: member}, nil
}
