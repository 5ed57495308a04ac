// Package testutil holds helpers shared by package tests: a thread-safe
// output buffer, a tally kind and a session harness.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/specialistvlad/propshell/internal/ctxlog"
	"github.com/specialistvlad/propshell/internal/metrics"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/specialistvlad/propshell/internal/session"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Reset empties the buffer.
func (b *SafeBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.b.Reset()
}

// Harness is a session under test.
type Harness struct {
	*session.Session
	Out     *SafeBuffer
	Logs    *SafeBuffer
	Kinds   *registry.Registry
	Metrics *metrics.Metrics
	Level   *slog.LevelVar
	Ctx     context.Context
}

// NewSession builds a session with the tally kind and the given modules
// registered. The session is closed when the test ends. Set
// PROPSHELL_TEST_LOGS=true to print the debug log of each test.
func NewSession(t testing.TB, modules ...registry.Module) *Harness {
	t.Helper()

	h := &Harness{
		Out:     &SafeBuffer{},
		Logs:    &SafeBuffer{},
		Kinds:   registry.New(),
		Metrics: metrics.New(),
		Level:   new(slog.LevelVar),
	}
	h.Level.Set(slog.LevelDebug)
	logger := slog.New(slog.NewTextHandler(h.Logs, &slog.HandlerOptions{Level: h.Level}))
	h.Ctx = ctxlog.WithLogger(context.Background(), logger)

	require.NoError(t, h.Kinds.RegisterModules(h.Ctx, append([]registry.Module{&TallyModule{}}, modules...)...))
	require.NoError(t, h.Kinds.ValidateRegistry(h.Ctx))

	h.Session = session.New(h.Ctx, session.Config{
		Kinds:   h.Kinds,
		Out:     h.Out,
		Level:   h.Level,
		Metrics: h.Metrics,
	})

	t.Cleanup(func() {
		_ = h.Session.Close(h.Ctx)
		if os.Getenv("PROPSHELL_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), h.Logs.String())
		}
	})
	return h
}

// Run executes text as a script batch.
func (h *Harness) Run(text string) error {
	return h.Session.Execute(h.Ctx, session.Batch{Origin: "script", Text: text})
}

// Pending reports whether the batches sent by Run left an `on` block open.
func (h *Harness) Pending() bool {
	return h.Session.Pending("script")
}

// Discard drops the `on` block left open by Run.
func (h *Harness) Discard() {
	h.Session.Discard("script")
}

// MustRun executes text and fails the test on error.
func (h *Harness) MustRun(t testing.TB, text string) {
	t.Helper()
	require.NoError(t, h.Run(text))
}

// Get runs `get target` and returns the printed value. It reads through its
// own source, so an `on` block left open by Run does not capture it.
func (h *Harness) Get(t testing.TB, target string) string {
	t.Helper()
	var out bytes.Buffer
	err := h.Session.Execute(h.Ctx, session.Batch{Origin: "script", Source: "inspect", Text: "get " + target, Out: &out})
	require.NoError(t, err)

	prefix := target + " = "
	line := out.String()
	require.True(t, len(line) > len(prefix) && line[:len(prefix)] == prefix, "unexpected get output %q", line)
	return line[len(prefix) : len(line)-1]
}
