package risk

import (
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/seenimoa/routerisk/pkg/models"
)

// DefaultFreshnessWindow is how long a cached factor set counts as fresh.
const DefaultFreshnessWindow = 15 * time.Minute

// Snapshot is one committed factor set. It is never mutated after it has
// been published to a Cache; callers must treat Factors as read-only.
type Snapshot struct {
	Factors   []models.WeightedFactor `json:"factors"`
	UpdatedAt time.Time               `json:"updated_at"`
	CycleID   string                  `json:"cycle_id"`
}

// CacheStatus describes the cache for health and status endpoints.
type CacheStatus struct {
	Populated   bool          `json:"populated"`
	Fresh       bool          `json:"fresh"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Age         time.Duration `json:"age"`
	FactorCount int           `json:"factor_count"`
	CycleID     string        `json:"cycle_id,omitempty"`
}

// Cache holds the last normalized factor set. Reads and writes swap a single
// snapshot pointer, so readers see either the previous set, the new one, or
// nothing; never a partial write. The cache performs no fetching.
type Cache struct {
	current atomic.Pointer[Snapshot]
	window  time.Duration
	now     func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock overrides the cache's time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates an empty cache with the given freshness window.
func NewCache(window time.Duration, opts ...CacheOption) *Cache {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	c := &Cache{window: window, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the cached factors while they are fresh. The boolean
// is false when the cache is empty or stale; refetching is up to the caller.
func (c *Cache) Get() ([]models.WeightedFactor, bool) {
	snap := c.current.Load()
	if !c.fresh(snap) {
		return nil, false
	}
	return slices.Clone(snap.Factors), true
}

// Snapshot returns the current snapshot regardless of staleness, or nil when
// the cache is empty.
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// Set replaces the cached factors and stamps them with the current time.
func (c *Cache) Set(factors []models.WeightedFactor) *Snapshot {
	snap := &Snapshot{
		Factors:   slices.Clone(factors),
		UpdatedAt: c.now(),
		CycleID:   uuid.NewString(),
	}
	c.current.Store(snap)
	return snap
}

// Clear resets the cache to its empty state.
func (c *Cache) Clear() {
	c.current.Store(nil)
}

// IsFresh reports whether snap is younger than the freshness window.
func (c *Cache) IsFresh(snap *Snapshot) bool {
	return c.fresh(snap)
}

// Window returns the freshness window.
func (c *Cache) Window() time.Duration { return c.window }

// Status summarizes the cache state.
func (c *Cache) Status() CacheStatus {
	snap := c.current.Load()
	if snap == nil {
		return CacheStatus{}
	}
	return CacheStatus{
		Populated:   true,
		Fresh:       c.fresh(snap),
		UpdatedAt:   snap.UpdatedAt,
		Age:         c.now().Sub(snap.UpdatedAt),
		FactorCount: len(snap.Factors),
		CycleID:     snap.CycleID,
	}
}

func (c *Cache) fresh(snap *Snapshot) bool {
	if snap == nil || snap.UpdatedAt.IsZero() {
		return false
	}
	return c.now().Sub(snap.UpdatedAt) < c.window
}
