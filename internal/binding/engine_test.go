package binding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/manifest"
	"github.com/specialistvlad/propshell/internal/objects"
	"github.com/specialistvlad/propshell/internal/ref"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/specialistvlad/propshell/internal/shellerr"
	"github.com/specialistvlad/propshell/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"pgregory.net/rapid"
)

const cellManifest = `
kind "Cell" {
  property "x"  { type = int }
  property "f"  { type = float }
  property "s"  { type = string }
  property "pct" {
    type = int
    min  = 0
    max  = 100
  }
  property "ro" {
    type   = int
    access = "read"
  }
  property "wo" {
    type   = string
    access = "write"
  }
  signal "ping" {}
}
`

const doublerManifest = `
kind "Doubler" {
  property "in"  { type = int }
  property "out" {
    type   = int
    access = "read"
  }
  signal "reset" {}
}
`

const (
	doublerIn kind.PropID = iota
	doublerOut
)

type doubler struct {
	*kind.Values
}

func (d *doubler) Set(ctx context.Context, p kind.PropID, v cty.Value) ([]kind.PropID, error) {
	d.Put(p, v)
	if p == doublerIn {
		d.Put(doublerOut, cty.NumberIntVal(2*d.Int(doublerIn)))
		return []kind.PropID{doublerOut}, nil
	}
	return nil, nil
}

func (d *doubler) Emit(ctx context.Context, s kind.SignalID) ([]kind.PropID, error) {
	d.Put(doublerIn, cty.Zero)
	d.Put(doublerOut, cty.Zero)
	return []kind.PropID{doublerIn, doublerOut}, nil
}

type fixture struct {
	engine  *Engine
	objects *objects.Registry
	events  []string
}

func newFixture(t testing.TB, names ...string) *fixture {
	t.Helper()
	kinds := registry.New()
	require.NoError(t, kinds.RegisterDeclarative(manifest.MustParse("cell.hcl", []byte(cellManifest)), "cell.hcl"))
	require.NoError(t, kinds.RegisterKind(&registry.Kind{
		Spec: manifest.MustParse("doubler.hcl", []byte(doublerManifest)),
		Factory: func(spec *kind.Spec, env kind.Env) (kind.Instance, error) {
			return &doubler{Values: kind.NewValues(spec)}, nil
		},
		Claims: &registry.Claims{Properties: []string{"in", "out"}, Signals: []string{"reset"}},
	}))

	f := &fixture{objects: objects.New(kinds, nil)}
	f.engine = New(f.objects, nil)
	f.engine.Listen(func(ctx context.Context, object, event string) error {
		f.events = append(f.events, object+"."+event)
		return nil
	})

	for _, n := range names {
		kindName := "Cell"
		if n[0] == 'd' {
			kindName = "Doubler"
		}
		_, err := f.objects.Create(context.Background(), kindName, n)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) bind(t testing.TB, src, dst string) error {
	t.Helper()
	s, err := ref.Parse(src)
	require.NoError(t, err)
	d, err := ref.Parse(dst)
	require.NoError(t, err)
	return f.engine.Bind(context.Background(), s, d)
}

func (f *fixture) set(t testing.TB, target, text string) error {
	t.Helper()
	r, err := ref.Parse(target)
	require.NoError(t, err)
	return f.engine.SetText(context.Background(), r, text)
}

func (f *fixture) get(t testing.TB, target string) string {
	t.Helper()
	r, err := ref.Parse(target)
	require.NoError(t, err)
	v, err := f.engine.Get(r)
	require.NoError(t, err)
	return value.Format(v)
}

func TestSet_PropagatesAlongChain(t *testing.T) {
	f := newFixture(t, "a", "b", "c", "e")

	require.NoError(t, f.bind(t, "a.x", "b.x"))
	require.NoError(t, f.bind(t, "b.x", "c.f"))
	require.NoError(t, f.bind(t, "a.x", "e.s"))
	f.events = nil

	require.NoError(t, f.set(t, "a.x", "42"))
	assert.Equal(t, "42", f.get(t, "b.x"))
	assert.Equal(t, "42", f.get(t, "c.f"))
	assert.Equal(t, "42", f.get(t, "e.s"))

	assert.Equal(t, []string{
		"c.notify::f",
		"b.notify::x",
		"e.notify::s",
		"a.notify::x",
	}, f.events, "depth first, in binding order, each pair notifies after its bindings")
}

func TestBind_SyncsTarget(t *testing.T) {
	f := newFixture(t, "a", "b")
	require.NoError(t, f.set(t, "a.s", "hello"))

	require.NoError(t, f.bind(t, "a.s", "b.s"))
	assert.Equal(t, "hello", f.get(t, "b.s"))
}

func TestBind_FailedSyncKeepsBinding(t *testing.T) {
	f := newFixture(t, "a", "b")

	// An empty string has no int value.
	require.ErrorIs(t, f.bind(t, "a.s", "b.x"), shellerr.ErrTypeMismatch)
	assert.Equal(t, "0", f.get(t, "b.x"))
	assert.Len(t, f.engine.Bindings("a"), 1)

	require.NoError(t, f.set(t, "a.s", "9"))
	assert.Equal(t, "9", f.get(t, "b.x"))
}

func TestSet_Coercion(t *testing.T) {
	testCases := []struct {
		name      string
		src, dst  string
		seed      string
		value     string
		expectErr error
		expected  string
	}{
		{name: "int into float", src: "a.x", dst: "b.f", value: "3", expected: "3"},
		{name: "integral float into int", src: "a.f", dst: "b.x", value: "4.0", expected: "4"},
		{name: "fractional float into int", src: "a.f", dst: "b.x", value: "4.5", expectErr: shellerr.ErrTypeMismatch},
		{name: "number into string", src: "a.f", dst: "b.s", value: "0.25", expected: "0.25"},
		{name: "numeric string into int", src: "a.s", dst: "b.x", seed: "0", value: "17", expected: "17"},
		{name: "word into int", src: "a.s", dst: "b.x", seed: "0", value: "seventeen", expectErr: shellerr.ErrTypeMismatch},
		{name: "out of target range", src: "a.x", dst: "b.pct", value: "101", expectErr: shellerr.ErrRange},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, "a", "b")
			if tc.seed != "" {
				require.NoError(t, f.set(t, tc.src, tc.seed))
			}
			require.NoError(t, f.bind(t, tc.src, tc.dst))

			err := f.set(t, tc.src, tc.value)
			if tc.expectErr != nil {
				require.ErrorIs(t, err, tc.expectErr)
				assert.Equal(t, tc.value, f.get(t, tc.src), "the source write is kept")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, f.get(t, tc.dst))
		})
	}
}

func TestSet_RangeNeverClamps(t *testing.T) {
	f := newFixture(t, "a")
	require.NoError(t, f.set(t, "a.pct", "50"))

	require.ErrorIs(t, f.set(t, "a.pct", "-1"), shellerr.ErrRange)
	require.ErrorIs(t, f.set(t, "a.pct", "100.5"), shellerr.ErrTypeMismatch)
	assert.Equal(t, "50", f.get(t, "a.pct"))
}

func TestSet_CycleState(t *testing.T) {
	t.Run("two nodes", func(t *testing.T) {
		f := newFixture(t, "a", "b")
		require.NoError(t, f.set(t, "a.x", "1"))
		require.NoError(t, f.bind(t, "a.x", "b.x"))

		err := f.bind(t, "b.x", "a.x")
		require.ErrorIs(t, err, shellerr.ErrBindingCycle, "the initial sync runs into the cycle")
		assert.Len(t, f.engine.Bindings(""), 2, "the binding is kept")

		err = f.set(t, "a.x", "5")
		require.ErrorIs(t, err, shellerr.ErrBindingCycle)
		assert.Contains(t, err.Error(), "a.x -> b.x -> a.x")
		assert.Equal(t, "5", f.get(t, "a.x"))
		assert.Equal(t, "5", f.get(t, "b.x"))
	})

	t.Run("three nodes with a bystander", func(t *testing.T) {
		f := newFixture(t, "a", "b", "c", "z")
		require.NoError(t, f.bind(t, "a.x", "b.x"))
		require.NoError(t, f.bind(t, "b.x", "c.x"))
		require.ErrorIs(t, f.bind(t, "c.x", "a.x"), shellerr.ErrBindingCycle)
		require.NoError(t, f.bind(t, "a.x", "z.x"))
		require.NoError(t, f.set(t, "z.x", "9"))

		err := f.set(t, "b.x", "7")
		require.ErrorIs(t, err, shellerr.ErrBindingCycle)
		assert.Contains(t, err.Error(), "b.x -> c.x -> a.x -> b.x")

		// b, c and a were written before the revisit of b was detected; a's
		// later binding to z never ran.
		assert.Equal(t, "7", f.get(t, "b.x"))
		assert.Equal(t, "7", f.get(t, "c.x"))
		assert.Equal(t, "7", f.get(t, "a.x"))
		assert.Equal(t, "9", f.get(t, "z.x"))
	})

	t.Run("self binding", func(t *testing.T) {
		f := newFixture(t, "a")
		require.ErrorIs(t, f.bind(t, "a.x", "a.x"), shellerr.ErrBindingCycle)
		assert.Empty(t, f.engine.Bindings(""))
	})
}

func TestSet_DerivedProperties(t *testing.T) {
	f := newFixture(t, "d1", "n")
	require.NoError(t, f.bind(t, "d1.out", "n.x"))
	f.events = nil

	require.NoError(t, f.set(t, "d1.in", "4"))
	assert.Equal(t, "8", f.get(t, "d1.out"))
	assert.Equal(t, "8", f.get(t, "n.x"))
	assert.Equal(t, []string{"d1.notify::in", "n.notify::x", "d1.notify::out"}, f.events)

	t.Run("derived cycle back into the writer", func(t *testing.T) {
		f := newFixture(t, "d1", "n")
		require.NoError(t, f.bind(t, "n.x", "d1.in"))
		require.ErrorIs(t, f.bind(t, "d1.out", "n.x"), shellerr.ErrBindingCycle)

		err := f.set(t, "d1.in", "1")
		require.ErrorIs(t, err, shellerr.ErrBindingCycle)
		assert.Contains(t, err.Error(), "d1.in -> d1.out -> n.x -> d1.in")
	})
}

func TestCall(t *testing.T) {
	f := newFixture(t, "d1", "n")
	require.NoError(t, f.set(t, "d1.in", "3"))
	require.NoError(t, f.bind(t, "d1.out", "n.x"))
	f.events = nil

	require.NoError(t, f.engine.Call(context.Background(), "d1", "reset"))
	assert.Equal(t, "0", f.get(t, "n.x"))
	assert.Equal(t, []string{"d1.notify::in", "n.notify::x", "d1.notify::out", "d1.reset"}, f.events)

	require.ErrorIs(t, f.engine.Call(context.Background(), "d1", "explode"), shellerr.ErrUnknownMethod)
	require.ErrorIs(t, f.engine.Call(context.Background(), "ghost", "reset"), shellerr.ErrUnknownObject)

	f.events = nil
	require.NoError(t, f.engine.Call(context.Background(), "n", "ping"))
	assert.Equal(t, []string{"n.ping"}, f.events)
}

func TestNotify(t *testing.T) {
	f := newFixture(t, "d1", "n")
	require.NoError(t, f.bind(t, "d1.out", "n.x"))

	obj, err := f.objects.Get("d1")
	require.NoError(t, err)
	obj.Instance.(*doubler).Put(doublerOut, cty.NumberIntVal(11))

	require.NoError(t, f.engine.Notify(context.Background(), "d1", doublerOut, doublerOut))
	assert.Equal(t, "11", f.get(t, "n.x"))
}

func TestAccessErrors(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()

	testCases := []struct {
		name      string
		run       func() error
		expectErr error
	}{
		{name: "get write-only", run: func() error { _, err := f.engine.Get(ref.New("a", "wo")); return err }, expectErr: shellerr.ErrNotReadable},
		{name: "set read-only", run: func() error { return f.set(t, "a.ro", "1") }, expectErr: shellerr.ErrNotWritable},
		{name: "set unknown object", run: func() error { return f.set(t, "ghost.x", "1") }, expectErr: shellerr.ErrUnknownObject},
		{name: "set unknown property", run: func() error { return f.set(t, "a.nope", "1") }, expectErr: shellerr.ErrUnknownProperty},
		{name: "set notify member", run: func() error { return f.set(t, "a.notify::x", "1") }, expectErr: shellerr.ErrUnknownProperty},
		{name: "bind from write-only", run: func() error { return f.bind(t, "a.wo", "b.s") }, expectErr: shellerr.ErrNotReadable},
		{name: "bind into read-only", run: func() error { return f.bind(t, "a.x", "b.ro") }, expectErr: shellerr.ErrNotWritable},
		{name: "unbind unknown", run: func() error { return f.engine.Unbind(ctx, ref.New("a", "x"), ref.New("b", "x")) }, expectErr: shellerr.ErrUnknownBinding},
		{name: "unbind unknown object", run: func() error { return f.engine.Unbind(ctx, ref.New("a", "x"), ref.New("q", "x")) }, expectErr: shellerr.ErrUnknownObject},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.run(), tc.expectErr)
		})
	}

	require.NoError(t, f.bind(t, "a.x", "b.x"))
	require.ErrorIs(t, f.bind(t, "a.x", "b.x"), shellerr.ErrDuplicateBinding)
	require.NoError(t, f.engine.Unbind(ctx, ref.New("a", "x"), ref.New("b", "x")))
	require.NoError(t, f.set(t, "a.x", "3"))
	assert.Equal(t, "0", f.get(t, "b.x"), "unbound targets no longer follow")
}

func TestForget(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	require.NoError(t, f.bind(t, "a.x", "b.x"))
	require.NoError(t, f.bind(t, "b.x", "c.x"))
	require.NoError(t, f.bind(t, "a.s", "c.s"))

	removed := f.engine.Forget("b")
	assert.Equal(t, []Binding{
		{Source: ref.New("a", "x"), Target: ref.New("b", "x")},
		{Source: ref.New("b", "x"), Target: ref.New("c", "x")},
	}, removed)
	assert.Equal(t, []Binding{{Source: ref.New("a", "s"), Target: ref.New("c", "s")}}, f.engine.Bindings(""))
	assert.Empty(t, f.engine.Bindings("b"))
}

func TestListenerError(t *testing.T) {
	f := newFixture(t, "a", "b")
	require.NoError(t, f.bind(t, "a.x", "b.x"))

	boom := errors.New("handler failed")
	f.engine.Listen(func(ctx context.Context, object, event string) error {
		if object == "b" {
			return boom
		}
		return nil
	})

	require.ErrorIs(t, f.set(t, "a.x", "1"), boom)
	assert.Equal(t, "1", f.get(t, "a.x"))
	assert.Equal(t, "1", f.get(t, "b.x"))
}

// TestSet_AcyclicPropagation checks that after setting any property of a
// random acyclic binding graph, every property reachable from it holds the
// new value.
func TestSet_AcyclicPropagation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 8).Draw(rt, "objects")
		names := make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("o%d", i)
		}
		f := newFixture(t, names...)

		adj := map[int][]int{}
		edges := rapid.IntRange(0, n*2).Draw(rt, "edges")
		for i := 0; i < edges; i++ {
			from := rapid.IntRange(0, n-2).Draw(rt, "from")
			to := rapid.IntRange(from+1, n-1).Draw(rt, "to")
			err := f.bind(t, names[from]+".x", names[to]+".x")
			if errors.Is(err, shellerr.ErrDuplicateBinding) {
				continue
			}
			require.NoError(rt, err)
			adj[from] = append(adj[from], to)
		}

		start := rapid.IntRange(0, n-1).Draw(rt, "start")
		v := rapid.Int64Range(-1000, 1000).Draw(rt, "value")
		require.NoError(rt, f.set(t, names[start]+".x", fmt.Sprint(v)))

		reached := map[int]bool{start: true}
		queue := []int{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, next := range adj[cur] {
				if !reached[next] {
					reached[next] = true
					queue = append(queue, next)
				}
			}
		}
		for i := range reached {
			assert.Equal(rt, fmt.Sprint(v), f.get(t, names[i]+".x"))
		}
	})
}

// TestSetGet_RoundTrip checks that a read-write property returns what was
// written, under its type's coercion.
func TestSetGet_RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t, "a")
		pct := rapid.IntRange(0, 100).Draw(rt, "pct")
		fl := rapid.Float64Range(-1e6, 1e6).Draw(rt, "f")
		s := rapid.StringMatching(`[a-z ]{0,20}`).Draw(rt, "s")

		require.NoError(rt, f.set(t, "a.pct", fmt.Sprint(pct)))
		require.NoError(rt, f.engine.Set(context.Background(), ref.New("a", "f"), cty.NumberFloatVal(fl)))
		require.NoError(rt, f.set(t, "a.s", s))

		assert.Equal(rt, fmt.Sprint(pct), f.get(t, "a.pct"))
		got, err := f.engine.Get(ref.New("a", "f"))
		require.NoError(rt, err)
		gotF, _ := got.AsBigFloat().Float64()
		assert.Equal(rt, fl, gotF)
		assert.Equal(rt, s, f.get(t, "a.s"))
	})
}
