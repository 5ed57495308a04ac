package binding

import (
	"slices"
	"strings"

	"github.com/specialistvlad/propshell/internal/ref"
)

// chain is the stack of (object, property) pairs being updated.
type chain struct {
	path []ref.Ref
}

func (c *chain) push(r ref.Ref) { c.path = append(c.path, r) }

func (c *chain) pop() { c.path = c.path[:len(c.path)-1] }

func (c *chain) contains(r ref.Ref) bool { return slices.Contains(c.path, r) }

// describe renders the chain followed by next, e.g. "a.x -> b.x -> a.x".
func (c *chain) describe(next ref.Ref) string {
	parts := make([]string, 0, len(c.path)+1)
	for _, r := range c.path {
		parts = append(parts, r.String())
	}
	parts = append(parts, next.String())
	return strings.Join(parts, " -> ")
}
