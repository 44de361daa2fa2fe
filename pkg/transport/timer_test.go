package transport

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerManager_Schedule(t *testing.T) {
	tm := NewTimerManager()
	defer tm.Stop()

	fired := make(chan struct{})
	tm.Schedule("once", 10*time.Millisecond, func() { close(fired) })
	require.True(t, tm.HasTimer("once"))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot timer did not fire")
	}
	require.Eventually(t, func() bool { return !tm.HasTimer("once") }, time.Second, 5*time.Millisecond)
}

func TestTimerManager_Periodic(t *testing.T) {
	tm := NewTimerManager()
	defer tm.Stop()

	var ticks atomic.Int32
	tm.SchedulePeriodic("stats", 5*time.Millisecond, func() { ticks.Add(1) })

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.True(t, tm.StopTimer("stats"))
	require.False(t, tm.HasTimer("stats"))
	require.False(t, tm.StopTimer("stats"))
}

func TestTimerManager_StopCancelsPending(t *testing.T) {
	tm := NewTimerManager()

	var fired atomic.Bool
	tm.Schedule("late", time.Hour, func() { fired.Store(true) })
	tm.Stop()
	tm.Stop()

	require.False(t, fired.Load())
	require.False(t, tm.HasTimer("late"))

	// Scheduling after Stop is a no-op.
	tm.Schedule("after", time.Millisecond, func() { fired.Store(true) })
	require.False(t, tm.HasTimer("after"))
}

func TestTimerManager_ReplaceAndPanic(t *testing.T) {
	tm := NewTimerManager()
	defer tm.Stop()

	var first, second atomic.Bool
	tm.Schedule("job", time.Hour, func() { first.Store(true) })
	tm.Schedule("job", 5*time.Millisecond, func() {
		second.Store(true)
		panic("boom")
	})

	require.Eventually(t, second.Load, 2*time.Second, 5*time.Millisecond)
	require.False(t, first.Load())
}
