package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/routerisk/internal/infra"
	"github.com/seenimoa/routerisk/pkg/models"
)

const (
	// DefaultCacheTTL is how long a source's scrape result is reused.
	DefaultCacheTTL = time.Hour
	// DefaultConcurrency bounds simultaneous source fetches.
	DefaultConcurrency = 4
)

// Fetch outcomes reported to a FetchObserver.
const (
	FetchOK     = "ok"
	FetchCached = "cached"
	FetchError  = "error"
)

// FetchObserver receives one call per source per collection.
type FetchObserver interface {
	ObserveSourceFetch(sourceID, outcome string)
}

// Info describes a configured source and its last successful fetch.
type Info struct {
	Descriptor
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Cached      bool       `json:"cached"`
}

// Collector fetches all active sources concurrently and merges the results.
// Per-source failures are logged and skipped.
type Collector struct {
	sources     []Descriptor
	fetchers    map[Kind]Fetcher
	cache       *infra.TTLCache[models.SourceSnapshot]
	concurrency int
	logger      *slog.Logger
	observer    FetchObserver
	now         func() time.Time

	mu          sync.RWMutex
	lastUpdated map[string]time.Time
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithFetcher registers the fetcher for a source kind.
func WithFetcher(kind Kind, f Fetcher) CollectorOption {
	return func(c *Collector) { c.fetchers[kind] = f }
}

// WithCacheTTL sets how long per-source results are reused.
func WithCacheTTL(ttl time.Duration) CollectorOption {
	return func(c *Collector) {
		if ttl > 0 {
			c.cache = infra.NewTTLCache[models.SourceSnapshot](ttl, 2*ttl)
		}
	}
}

// WithConcurrency bounds simultaneous fetches.
func WithConcurrency(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithCollectorLogger sets the logger.
func WithCollectorLogger(l *slog.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver attaches a fetch observer, typically metrics.
func WithObserver(o FetchObserver) CollectorOption {
	return func(c *Collector) { c.observer = o }
}

// NewCollector creates a collector over sources. Simulated sources work out
// of the box; HTML and RSS fetchers are registered with a shared default
// client unless overridden.
func NewCollector(sources []Descriptor, opts ...CollectorOption) *Collector {
	c := &Collector{
		sources:     append([]Descriptor(nil), sources...),
		fetchers:    make(map[Kind]Fetcher),
		cache:       infra.NewTTLCache[models.SourceSnapshot](DefaultCacheTTL, 2*DefaultCacheTTL),
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		now:         time.Now,
		lastUpdated: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, ok := c.fetchers[KindSimulated]; !ok {
		c.fetchers[KindSimulated] = NewSimulatedFetcher(0, 0)
	}
	if _, ok := c.fetchers[KindHTML]; !ok {
		c.fetchers[KindHTML] = NewHTMLFetcher(nil, nil)
	}
	if _, ok := c.fetchers[KindRSS]; !ok {
		c.fetchers[KindRSS] = NewFeedFetcher(nil, nil)
	}
	return c
}

// FetchAllActiveIndicators fetches every active source, keyed by source ID.
// It fails only when no source is active or every active source failed.
func (c *Collector) FetchAllActiveIndicators(ctx context.Context) (map[string]models.SourceSnapshot, error) {
	var active []Descriptor
	for _, d := range c.sources {
		if d.Active {
			active = append(active, d)
		}
	}
	if len(active) == 0 {
		return nil, ErrNoActiveSources
	}

	var mu sync.Mutex
	results := make(map[string]models.SourceSnapshot, len(active))
	var errs []error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, d := range active {
		g.Go(func() error {
			snap, err := c.fetchOne(gctx, d)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", d.ID, err))
				return nil // non-fatal
			}
			results[d.ID] = snap
			return nil
		})
	}
	_ = g.Wait()

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
	}
	return results, nil
}

func (c *Collector) fetchOne(ctx context.Context, d Descriptor) (models.SourceSnapshot, error) {
	if snap, ok := c.cache.Get(d.ID); ok {
		c.observe(d.ID, FetchCached)
		return snap, nil
	}

	f, ok := c.fetchers[d.Kind]
	if !ok {
		c.observe(d.ID, FetchError)
		return models.SourceSnapshot{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, d.Kind)
	}

	indicators, err := f.Fetch(ctx, d)
	if err == nil && len(indicators) == 0 {
		err = errors.New("source returned no indicators")
	}
	if err != nil {
		c.logger.Warn("indicator source failed", "source", d.ID, "kind", d.Kind, "error", err)
		c.observe(d.ID, FetchError)
		return models.SourceSnapshot{}, err
	}

	now := c.now()
	snap := models.SourceSnapshot{
		Source:     d.Name,
		Category:   d.Category,
		Timestamp:  now,
		Indicators: indicators,
	}
	c.cache.Set(d.ID, snap)

	c.mu.Lock()
	c.lastUpdated[d.ID] = now
	c.mu.Unlock()

	c.logger.Debug("indicator source fetched", "source", d.ID, "indicators", len(indicators))
	c.observe(d.ID, FetchOK)
	return snap, nil
}

func (c *Collector) observe(id, outcome string) {
	if c.observer != nil {
		c.observer.ObserveSourceFetch(id, outcome)
	}
}

// ClearCache drops every cached source result.
func (c *Collector) ClearCache() {
	c.cache.Flush()
}

// Sources lists the configured sources ordered by ID.
func (c *Collector) Sources() []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Info, 0, len(c.sources))
	for _, d := range c.sources {
		info := Info{Descriptor: d}
		if t, ok := c.lastUpdated[d.ID]; ok {
			info.LastUpdated = &t
		}
		_, info.Cached = c.cache.Get(d.ID)
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
