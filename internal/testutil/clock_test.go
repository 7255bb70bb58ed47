package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock_StartsAtEpoch(t *testing.T) {
	clock := NewManualClock(time.Time{})
	assert.Equal(t, Epoch, clock.Now())

	start := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, start, NewManualClock(start).Now())
}

func TestManualClock_AdvanceFiresDueTimersInOrder(t *testing.T) {
	clock := NewManualClock(time.Time{})

	var fired []string
	clock.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "c") })
	clock.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "a") })
	clock.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "b") })

	clock.Advance(50 * time.Millisecond)
	assert.Empty(t, fired)
	assert.Equal(t, 3, clock.Pending())

	clock.Advance(250 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, Epoch.Add(300*time.Millisecond), clock.Now())
}

func TestManualClock_CallbackSeesDeadline(t *testing.T) {
	clock := NewManualClock(time.Time{})

	var at time.Time
	clock.AfterFunc(200*time.Millisecond, func() { at = clock.Now() })
	clock.Advance(time.Second)

	assert.Equal(t, Epoch.Add(200*time.Millisecond), at)
	assert.Equal(t, Epoch.Add(time.Second), clock.Now())
}

func TestManualClock_Stop(t *testing.T) {
	clock := NewManualClock(time.Time{})

	ran := false
	timer := clock.AfterFunc(time.Millisecond, func() { ran = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports nothing pending")

	clock.Advance(time.Second)
	assert.False(t, ran)
}

func TestManualClock_TimerScheduledFromCallback(t *testing.T) {
	clock := NewManualClock(time.Time{})

	var fired []time.Duration
	clock.AfterFunc(100*time.Millisecond, func() {
		fired = append(fired, clock.Now().Sub(Epoch))
		clock.AfterFunc(100*time.Millisecond, func() {
			fired = append(fired, clock.Now().Sub(Epoch))
		})
	})

	clock.Advance(250 * time.Millisecond)
	require.Len(t, fired, 2)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, fired)
}

func TestManualClock_ThreadSafe(t *testing.T) {
	clock := NewManualClock(time.Time{})
	const numGoroutines = 50

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.AfterFunc(time.Millisecond, func() {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	clock.Advance(time.Millisecond)
	assert.Equal(t, numGoroutines, count)
}
