package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/seenimoa/routerisk/pkg/models"
)

// ErrSourceUnavailable wraps indicator source failures and timeouts.
var ErrSourceUnavailable = errors.New("indicator source unavailable")

// ErrNoIndicators is returned when a fetch yields nothing usable.
var ErrNoIndicators = errors.New("no usable indicators")

// DefaultFetchTimeout bounds a single indicator source call.
const DefaultFetchTimeout = 10 * time.Second

// IndicatorSource produces the current indicators of every active source,
// keyed by source ID.
type IndicatorSource interface {
	FetchAllActiveIndicators(ctx context.Context) (map[string]models.SourceSnapshot, error)
}

// cacheClearer is implemented by sources that keep their own cache.
type cacheClearer interface {
	ClearCache()
}

// Outcome says where the factors behind a result came from.
type Outcome string

const (
	// OutcomeLive means the factors were fetched for this call.
	OutcomeLive Outcome = "live"
	// OutcomeCached means a fresh cached snapshot was reused.
	OutcomeCached Outcome = "cached"
	// OutcomeFallback means the refresh failed and the fallback table was used.
	OutcomeFallback Outcome = "fallback"
)

// Recorder receives engine measurements. See internal/metrics.
type Recorder interface {
	ObserveRefresh(err error)
	ObserveFallback(path string)
	ObserveScore(score int)
	SetCachedFactors(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRefresh(error)   {}
func (nopRecorder) ObserveFallback(string) {}
func (nopRecorder) ObserveScore(int)       {}
func (nopRecorder) SetCachedFactors(int)   {}

// Config tunes the engine. Zero fields take their defaults.
type Config struct {
	FreshnessWindow       time.Duration
	FetchTimeout          time.Duration
	TopExternalFactors    int
	DefaultExternalImpact float64
}

// DefaultConfig returns the stock engine settings.
func DefaultConfig() Config {
	return Config{
		FreshnessWindow:       DefaultFreshnessWindow,
		FetchTimeout:          DefaultFetchTimeout,
		TopExternalFactors:    DefaultTopExternalFactors,
		DefaultExternalImpact: DefaultExternalImpact,
	}
}

// Engine wires the normalizer, cache, and scorer around an indicator source.
// The synchronous entry points only read the cache; the fresh entry points
// may call the source and commit a new snapshot.
type Engine struct {
	source     IndicatorSource
	policy     Policy
	normalizer *Normalizer
	cache      *Cache
	scorer     Scorer
	cfg        Config
	logger     *slog.Logger
	recorder   Recorder

	group singleflight.Group

	mu          sync.RWMutex
	subscribers []func(*Snapshot)
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the engine settings.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithCache injects a cache, e.g. one with a fake clock.
func WithCache(c *Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithPolicy overrides the category weight policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine creates an engine reading from source.
func NewEngine(source IndicatorSource, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		policy:   DefaultPolicy(),
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.FreshnessWindow <= 0 {
		e.cfg.FreshnessWindow = DefaultFreshnessWindow
	}
	if e.cfg.FetchTimeout <= 0 {
		e.cfg.FetchTimeout = DefaultFetchTimeout
	}
	if e.cfg.TopExternalFactors <= 0 {
		e.cfg.TopExternalFactors = DefaultTopExternalFactors
	}
	if e.cfg.DefaultExternalImpact <= 0 {
		e.cfg.DefaultExternalImpact = DefaultExternalImpact
	}
	if e.cache == nil {
		e.cache = NewCache(e.cfg.FreshnessWindow)
	}
	if e.recorder == nil {
		e.recorder = nopRecorder{}
	}
	e.normalizer = NewNormalizer(e.policy, e.logger)
	e.scorer = Scorer{DefaultImpact: e.cfg.DefaultExternalImpact}
	return e
}

// Policy returns the engine's category weight policy.
func (e *Engine) Policy() Policy { return e.policy }

// Snapshot returns the cached snapshot, possibly stale, or nil.
func (e *Engine) Snapshot() *Snapshot { return e.cache.Snapshot() }

// Status reports the cache state.
func (e *Engine) Status() CacheStatus { return e.cache.Status() }

// Subscribe registers fn to be called after every committed refresh.
func (e *Engine) Subscribe(fn func(*Snapshot)) {
	e.mu.Lock()
	e.subscribers = append(e.subscribers, fn)
	e.mu.Unlock()
}

// ScoreRouteSync scores route against whatever is cached. It never does I/O.
func (e *Engine) ScoreRouteSync(route models.Route) int {
	return e.ExplainRouteSync(route).Score
}

// ExplainRouteSync is ScoreRouteSync with the score breakdown.
func (e *Engine) ExplainRouteSync(route models.Route) Breakdown {
	b := e.scorer.Explain(route, e.cache.Snapshot())
	e.recorder.ObserveScore(b.Score)
	return b
}

// ScoreRouteFresh makes sure the cache is fresh, refreshing it if needed,
// then scores route. Source failures are absorbed: the route is scored
// against the fallback table and the outcome says so.
func (e *Engine) ScoreRouteFresh(ctx context.Context, route models.Route) (int, Outcome) {
	b, outcome := e.ExplainRouteFresh(ctx, route)
	return b.Score, outcome
}

// ExplainRouteFresh is ScoreRouteFresh with the score breakdown.
func (e *Engine) ExplainRouteFresh(ctx context.Context, route models.Route) (Breakdown, Outcome) {
	snap, outcome, err := e.ensureFresh(ctx)
	if err != nil {
		e.logger.Warn("scoring route against fallback factors", "route", route.ID, "error", err)
		e.recorder.ObserveFallback("score")
		snap, outcome = FallbackSnapshot(), OutcomeFallback
	}
	b := e.scorer.Explain(route, snap)
	e.recorder.ObserveScore(b.Score)
	return b, outcome
}

// CalculateRiskFactors builds the factor list for routes from the cache only.
func (e *Engine) CalculateRiskFactors(routes []models.Route) []models.WeightedFactor {
	return CalculateRiskFactors(routes, e.cache.Snapshot(), e.cfg.TopExternalFactors)
}

// FetchRiskFactors refreshes the cache when needed and builds the factor
// list for routes. On refresh failure the list is built from the fallback
// table, route-derived factors included.
func (e *Engine) FetchRiskFactors(ctx context.Context, routes []models.Route) ([]models.WeightedFactor, Outcome) {
	snap, outcome, err := e.ensureFresh(ctx)
	if err != nil {
		e.logger.Warn("building risk factors from fallback table", "error", err)
		e.recorder.ObserveFallback("factors")
		snap, outcome = FallbackSnapshot(), OutcomeFallback
	}
	return CalculateRiskFactors(routes, snap, e.cfg.TopExternalFactors), outcome
}

// ClearCache empties the factor cache and any cache held by the source.
// Clearing an empty cache is a no-op.
func (e *Engine) ClearCache() {
	e.cache.Clear()
	if c, ok := e.source.(cacheClearer); ok {
		c.ClearCache()
	}
	e.recorder.SetCachedFactors(0)
	e.logger.Info("risk factor cache cleared")
}

// Refresh fetches, normalizes, and commits a new snapshot regardless of
// freshness. Concurrent callers share one fetch, bounded by the fetch
// timeout rather than any one caller's context; each caller stops waiting
// when its own context ends. Either the full normalized set is committed or
// nothing is.
func (e *Engine) Refresh(ctx context.Context) (*Snapshot, error) {
	shared := context.WithoutCancel(ctx)
	ch := e.group.DoChan("refresh", func() (any, error) {
		return e.refresh(shared)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, ctx.Err())
	}
}

// ensureFresh returns the cached snapshot when fresh, otherwise refreshes.
func (e *Engine) ensureFresh(ctx context.Context) (*Snapshot, Outcome, error) {
	if snap := e.cache.Snapshot(); e.cache.IsFresh(snap) {
		return snap, OutcomeCached, nil
	}
	snap, err := e.Refresh(ctx)
	if err != nil {
		return nil, "", err
	}
	return snap, OutcomeLive, nil
}

type fetchResult struct {
	snapshots map[string]models.SourceSnapshot
	err       error
}

func (e *Engine) refresh(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	snap, err := e.fetchAndCommit(ctx)
	e.recorder.ObserveRefresh(err)
	if err != nil {
		return nil, err
	}

	e.recorder.SetCachedFactors(len(snap.Factors))
	e.logger.Info("risk factors refreshed", "cycle_id", snap.CycleID, "factors", len(snap.Factors))

	e.mu.RLock()
	subs := e.subscribers
	e.mu.RUnlock()
	for _, fn := range subs {
		fn(snap)
	}
	return snap, nil
}

func (e *Engine) fetchAndCommit(ctx context.Context) (*Snapshot, error) {
	// The source runs in its own goroutine so a source that ignores its
	// context still cannot hold the caller past the deadline.
	done := make(chan fetchResult, 1)
	go func() {
		snaps, err := e.source.FetchAllActiveIndicators(ctx)
		done <- fetchResult{snapshots: snaps, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, ctx.Err())
	}
	if res.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, res.err)
	}

	factors := e.normalizer.Normalize(FlattenSnapshots(res.snapshots))
	if len(factors) == 0 {
		return nil, ErrNoIndicators
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return e.cache.Set(factors), nil
}
