package risk

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/routerisk/pkg/models"
)

// fakeClock is a settable time source for cache tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCacheStartsEmpty(t *testing.T) {
	c := NewCache(DefaultFreshnessWindow)
	factors, ok := c.Get()
	assert.False(t, ok)
	assert.Nil(t, factors)
	assert.Nil(t, c.Snapshot())
	assert.Equal(t, CacheStatus{}, c.Status())
}

func TestCacheFreshnessBoundary(t *testing.T) {
	clock := newFakeClock()
	c := NewCache(15*time.Minute, WithClock(clock.Now))
	c.Set(FallbackFactors())

	clock.Advance(14*time.Minute + 59*time.Second)
	_, ok := c.Get()
	assert.True(t, ok, "fresh at t0+14:59")
	assert.True(t, c.Status().Fresh)

	clock.Advance(2 * time.Second)
	_, ok = c.Get()
	assert.False(t, ok, "stale at t0+15:01")

	// Stale data is still served by Snapshot.
	snap := c.Snapshot()
	require.NotNil(t, snap)
	assert.Len(t, snap.Factors, len(FallbackFactors()))
	assert.False(t, c.IsFresh(snap))
	assert.Equal(t, 15*time.Minute+time.Second, c.Status().Age)
}

func TestCacheSetCopiesInput(t *testing.T) {
	c := NewCache(time.Minute)
	in := []models.WeightedFactor{{Name: "a", Value: 1, Weight: 0.1, Score: 0.1}}
	snap := c.Set(in)
	in[0].Name = "mutated"

	assert.Equal(t, "a", snap.Factors[0].Name)
	out, ok := c.Get()
	require.True(t, ok)
	out[0].Name = "mutated again"
	assert.Equal(t, "a", c.Snapshot().Factors[0].Name)
	assert.NotEmpty(t, snap.CycleID)
}

func TestCacheClearIsIdempotent(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set(FallbackFactors())
	c.Clear()
	c.Clear()
	assert.Nil(t, c.Snapshot())
	_, ok := c.Get()
	assert.False(t, ok)
}

func TestCacheConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	c := NewCache(time.Minute)
	small := []models.WeightedFactor{{Name: "s", Weight: 1}}
	large := FallbackFactors()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%3 == 0 {
				c.Clear()
			} else if i%2 == 0 {
				c.Set(small)
			} else {
				c.Set(large)
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		snap := c.Snapshot()
		if snap == nil {
			continue
		}
		n := len(snap.Factors)
		assert.True(t, n == len(small) || n == len(large), "partial snapshot with %d factors", n)
	}
	close(stop)
	wg.Wait()
}
