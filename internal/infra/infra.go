// Package infra provides shared infrastructure components used across
// the application: caching, rate limiting, and HTTP utilities.
package infra

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// --- TTL cache ---

// TTLCache is a thread-safe in-memory cache with a default TTL.
type TTLCache[V any] struct {
	c   *gocache.Cache
	ttl time.Duration
}

// NewTTLCache creates a cache whose entries expire after ttl. Expired
// entries are purged every cleanup interval; zero disables the janitor.
func NewTTLCache[V any](ttl, cleanup time.Duration) *TTLCache[V] {
	if cleanup <= 0 {
		cleanup = -1
	}
	return &TTLCache[V]{c: gocache.New(ttl, cleanup), ttl: ttl}
}

// Get retrieves a value. Returns the zero value, false if absent or expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	v, ok := c.c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(V)
	if !ok {
		return zero, false
	}
	return typed, true
}

// GetWithExpiration also returns when the entry expires.
func (c *TTLCache[V]) GetWithExpiration(key string) (V, time.Time, bool) {
	var zero V
	v, exp, ok := c.c.GetWithExpiration(key)
	if !ok {
		return zero, time.Time{}, false
	}
	typed, ok := v.(V)
	if !ok {
		return zero, time.Time{}, false
	}
	return typed, exp, true
}

// Set stores a value with the default TTL.
func (c *TTLCache[V]) Set(key string, value V) {
	c.c.Set(key, value, gocache.DefaultExpiration)
}

// SetWithTTL stores a value with a custom TTL.
func (c *TTLCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.c.Set(key, value, ttl)
}

// Invalidate removes a key from the cache.
func (c *TTLCache[V]) Invalidate(key string) {
	c.c.Delete(key)
}

// Flush removes all entries from the cache.
func (c *TTLCache[V]) Flush() {
	c.c.Flush()
}

// Len reports the number of entries, expired ones included until purged.
func (c *TTLCache[V]) Len() int {
	return c.c.ItemCount()
}

// TTL returns the default entry lifetime.
func (c *TTLCache[V]) TTL() time.Duration { return c.ttl }

// --- Rate limiter ---

// HostLimiter rate limits outbound requests per host, so one slow upstream
// never throttles another.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewHostLimiter allows rps requests per second per host with the given
// burst. A non-positive rps disables limiting.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      limit,
		burst:    burst,
	}
}

// Wait blocks until a request to rawURL's host may proceed or ctx is done.
func (hl *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	return hl.limiter(hostOf(rawURL)).Wait(ctx)
}

// Allow reports whether a request to rawURL's host may proceed now.
func (hl *HostLimiter) Allow(rawURL string) bool {
	return hl.limiter(hostOf(rawURL)).Allow()
}

func (hl *HostLimiter) limiter(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	l, ok := hl.limiters[host]
	if !ok {
		l = rate.NewLimiter(hl.rps, hl.burst)
		hl.limiters[host] = l
	}
	return l
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// --- HTTP client ---

// DefaultUserAgent is the user agent string used for outbound requests.
const DefaultUserAgent = "routerisk/1.0 (+https://github.com/seenimoa/routerisk)"

// HTTPOptions configures NewHTTPClient.
type HTTPOptions struct {
	Timeout  time.Duration
	RetryMax int
	Logger   *slog.Logger
}

// NewHTTPClient returns a standard *http.Client that retries transient
// failures with exponential backoff.
func NewHTTPClient(opts HTTPOptions) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	if opts.Logger != nil {
		rc.Logger = opts.Logger
	}

	c := rc.StandardClient()
	c.Timeout = opts.Timeout
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}
