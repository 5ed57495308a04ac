package clock_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/specialistvlad/propshell/internal/testutil"
	"github.com/specialistvlad/propshell/modules/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func TestClock_ManualTick(t *testing.T) {
	h := testutil.NewSession(t, &clock.Module{Now: func() time.Time { return fixed }})
	h.MustRun(t, "create Clock c\ncall c.tick\ncall c.tick")

	assert.Equal(t, "2", h.Get(t, "c.ticks"))
	assert.Equal(t, "2024-05-01T12:30:00Z", h.Get(t, "c.current-time"))
}

func TestClock_Ticker(t *testing.T) {
	h := testutil.NewSession(t, &clock.Module{})
	h.MustRun(t, `
create Clock c
create Tally seen
bind c.ticks seen.n
set c.tick-interval-ms 5
`)

	assert.Eventually(t, func() bool {
		n, err := strconv.Atoi(h.Get(t, "seen.n"))
		return err == nil && n >= 3
	}, 2*time.Second, 5*time.Millisecond, "posted ticks propagate through bindings")

	h.MustRun(t, "set c.tick-interval-ms 0")
	stopped := h.Get(t, "c.ticks")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, h.Get(t, "c.ticks"), "no ticks after the clock is stopped")
}

func TestClock_DestroyStopsTicker(t *testing.T) {
	h := testutil.NewSession(t, &clock.Module{})
	h.MustRun(t, "create Clock c\nset c.tick-interval-ms 2")
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, h.Run("destroy c"))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, h.Run("create Clock c"))
	assert.Equal(t, "0", h.Get(t, "c.ticks"), "ticks from the old clock never reach the new one")
}
