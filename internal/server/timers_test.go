package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newInlineTimers collects posted callbacks for the test to run in place
// of a table runner
func newInlineTimers(t *testing.T) (*timers, *quartz.Mock, *[]func()) {
	clock := quartz.NewMock(t)
	var posted []func()
	var mu sync.Mutex
	tm := newTimers(clock, "t1", func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		posted = append(posted, fn)
	})
	return tm, clock, &posted
}

func runPosted(posted *[]func()) {
	fns := *posted
	*posted = nil
	for _, fn := range fns {
		fn()
	}
}

func TestTimersFire(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tm, clock, posted := newInlineTimers(t)
	fired := 0
	tm.schedule(timerKey{kind: nextHandTimer}, time.Second, func() { fired++ })
	assert.True(t, tm.has(timerKey{kind: nextHandTimer}))

	clock.Advance(time.Second).MustWait(ctx)
	runPosted(posted)
	assert.Equal(t, 1, fired)
	assert.False(t, tm.has(timerKey{kind: nextHandTimer}))
}

func TestTimersCancelledAfterFiring(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tm, clock, posted := newInlineTimers(t)
	key := timerKey{autoActionTimer, 2}
	fired := 0
	tm.schedule(key, time.Second, func() { fired++ })

	// Fired but not yet run on the runner when it is cancelled
	clock.Advance(time.Second).MustWait(ctx)
	tm.cancel(key)
	runPosted(posted)
	assert.Equal(t, 0, fired)
}

func TestTimersReplace(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tm, clock, posted := newInlineTimers(t)
	key := timerKey{autoActionTimer, 1}
	var got []string
	tm.schedule(key, time.Second, func() { got = append(got, "first") })
	tm.schedule(key, 2*time.Second, func() { got = append(got, "second") })

	clock.Advance(time.Second).MustWait(ctx)
	runPosted(posted)
	assert.Empty(t, got)

	clock.Advance(time.Second).MustWait(ctx)
	runPosted(posted)
	assert.Equal(t, []string{"second"}, got)
}

func TestTimersCancelKind(t *testing.T) {
	t.Parallel()
	tm, _, _ := newInlineTimers(t)

	tm.schedule(timerKey{autoActionTimer, 0}, time.Second, func() {})
	tm.schedule(timerKey{autoActionTimer, 3}, time.Second, func() {})
	tm.schedule(timerKey{kind: nextHandTimer}, time.Second, func() {})

	tm.cancelKind(autoActionTimer)
	assert.False(t, tm.has(timerKey{autoActionTimer, 0}))
	assert.False(t, tm.has(timerKey{autoActionTimer, 3}))
	assert.True(t, tm.has(timerKey{kind: nextHandTimer}))

	tm.stopAll()
	assert.Empty(t, tm.pending)
	assert.Equal(t, "auto-action-3", timerKey{autoActionTimer, 3}.String())
}

func TestDispatcherRunsInOrder(t *testing.T) {
	t.Parallel()
	d := newDispatcher(zerolog.Nop())

	var got []int
	for i := range 100 {
		require.True(t, d.submit(func() { got = append(got, i) }))
	}
	d.flush()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}

	d.close()
	assert.False(t, d.submit(func() {}))
	d.flush()
	d.close()
}

func TestDispatcherSurvivesPanics(t *testing.T) {
	t.Parallel()
	d := newDispatcher(zerolog.Nop())
	defer d.close()

	ran := false
	d.submit(func() { panic("boom") })
	d.submit(func() { ran = true })
	d.flush()
	assert.True(t, ran)
}

func TestDispatcherCloseDrains(t *testing.T) {
	t.Parallel()
	d := newDispatcher(zerolog.Nop())

	var mu sync.Mutex
	count := 0
	for range 50 {
		d.submit(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	d.close()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, count)
}
