package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_DefaultsToEpoch(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
}

func TestFakeClock_Advance(t *testing.T) {
	clock := NewFakeClock(Epoch)

	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, Epoch.Add(1500*time.Millisecond), clock.Now())

	// Backwards moves are ignored
	clock.Advance(-time.Hour)
	assert.Equal(t, Epoch.Add(1500*time.Millisecond), clock.Now())
}

func TestFakeClock_Set(t *testing.T) {
	clock := NewFakeClock(Epoch)

	clock.Set(Epoch.Add(time.Minute))
	assert.Equal(t, Epoch.Add(time.Minute), clock.Now())

	clock.Set(Epoch)
	assert.Equal(t, Epoch.Add(time.Minute), clock.Now())
}

func TestFakeClock_ThreadSafe(t *testing.T) {
	clock := NewFakeClock(Epoch)
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				clock.Advance(time.Millisecond)
				_ = clock.Now()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(numGoroutines*callsPerGoroutine*time.Millisecond), clock.Now())
}
