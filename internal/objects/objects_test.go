package objects

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/manifest"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/specialistvlad/propshell/internal/shellerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type closingBag struct {
	*kind.Bag
	closed *[]string
	name   string
	err    error
}

func (c *closingBag) Close() error {
	*c.closed = append(*c.closed, c.name)
	return c.err
}

func newTestRegistry(t testing.TB, closed *[]string) *Registry {
	t.Helper()
	kinds := registry.New()
	require.NoError(t, kinds.RegisterDeclarative(
		manifest.MustParse("note.hcl", []byte("kind \"Note\" {\n  property \"text\" { type = string }\n}\n")), "note.hcl"))
	require.NoError(t, kinds.RegisterKind(&registry.Kind{
		Spec: manifest.MustParse("res.hcl", []byte("kind \"Resource\" {\n  property \"id\" { type = int }\n}\n")),
		Factory: func(spec *kind.Spec, env kind.Env) (kind.Instance, error) {
			if env.Name == "broken" {
				return nil, errors.New("cannot allocate")
			}
			var err error
			if env.Name == "sticky" {
				err = errors.New("still busy")
			}
			return &closingBag{Bag: &kind.Bag{Values: kind.NewValues(spec)}, closed: closed, name: env.Name, err: err}, nil
		},
		Claims: &registry.Claims{Properties: []string{"id"}},
	}))
	return New(kinds, nil)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t, new([]string))

	h, err := r.Create(ctx, "Note", "n1")
	require.NoError(t, err)
	assert.True(t, h.Valid())
	assert.Equal(t, "n1", h.Name())
	assert.Equal(t, "Note", h.Kind())

	testCases := []struct {
		name      string
		kind      string
		object    string
		expectErr error
	}{
		{name: "unknown kind", kind: "Nope", object: "x", expectErr: shellerr.ErrUnknownKind},
		{name: "duplicate name", kind: "Note", object: "n1", expectErr: shellerr.ErrDuplicateName},
		{name: "duplicate across kinds", kind: "Resource", object: "n1", expectErr: shellerr.ErrDuplicateName},
		{name: "bad name", kind: "Note", object: "a.b", expectErr: shellerr.ErrParse},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Create(ctx, tc.kind, tc.object)
			require.ErrorIs(t, err, tc.expectErr)
			assert.Equal(t, []string{"n1"}, r.Names())
		})
	}

	_, err = r.Create(ctx, "Resource", "broken")
	require.Error(t, err)
	_, ok := r.Lookup("broken")
	assert.False(t, ok, "failed factory must not leave an object behind")
}

func TestDestroy_StaleHandle(t *testing.T) {
	ctx := context.Background()
	var closed []string
	r := newTestRegistry(t, &closed)

	old, err := r.Create(ctx, "Resource", "res")
	require.NoError(t, err)
	require.NoError(t, r.Destroy(ctx, "res"))
	assert.Equal(t, []string{"res"}, closed)

	assert.False(t, old.Valid())
	_, err = old.Object()
	require.ErrorIs(t, err, shellerr.ErrUnknownObject)

	fresh, err := r.Create(ctx, "Resource", "res")
	require.NoError(t, err)
	assert.True(t, fresh.Valid())
	assert.False(t, old.Valid(), "a handle never resolves to a later object with the same name")

	require.ErrorIs(t, r.Destroy(ctx, "ghost"), shellerr.ErrUnknownObject)
	assert.False(t, Handle{}.Valid())
}

func TestClose_ReverseOrder(t *testing.T) {
	ctx := context.Background()
	var closed []string
	r := newTestRegistry(t, &closed)

	for _, name := range []string{"a", "sticky", "c"} {
		_, err := r.Create(ctx, "Resource", name)
		require.NoError(t, err)
	}
	_, err := r.Create(ctx, "Note", "note")
	require.NoError(t, err)

	err = r.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still busy")
	assert.Equal(t, []string{"c", "sticky", "a"}, closed)
	assert.Zero(t, r.Len())
}

// TestCreateLookup_Property checks that every fresh create is visible through
// Lookup with its kind, and that duplicate creates never change the table.
func TestCreateLookup_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		r := newTestRegistry(t, new([]string))
		created := map[string]string{}
		var order []string

		ops := rapid.IntRange(1, 40).Draw(rt, "ops")
		for i := 0; i < ops; i++ {
			name := fmt.Sprintf("o%d", rapid.IntRange(0, 9).Draw(rt, "name"))
			kindName := rapid.SampledFrom([]string{"Note", "Resource"}).Draw(rt, "kind")

			_, err := r.Create(ctx, kindName, name)
			if _, dup := created[name]; dup {
				require.ErrorIs(rt, err, shellerr.ErrDuplicateName)
			} else {
				require.NoError(rt, err)
				created[name] = kindName
				order = append(order, name)
			}

			h, ok := r.Lookup(name)
			require.True(rt, ok)
			assert.Equal(rt, created[name], h.Kind())
			assert.Equal(rt, order, r.Names())
		}
	})
}
