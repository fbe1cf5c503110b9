package source

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/seenimoa/routerisk/pkg/models"
)

// mockIndicator describes one simulated reading: base +/- spread/2, with the
// trend chosen by comparing a uniform draw against threshold.
type mockIndicator struct {
	name       string
	base       float64
	spread     float64
	whole      bool
	threshold  float64
	above      models.Trend
	below      models.Trend
	confidence int
}

var mockSets = map[models.Category][]mockIndicator{
	models.CategoryEconomic: {
		{name: "Global GDP Growth", base: 2.7, spread: 1, threshold: 0.6, above: models.TrendUp, below: models.TrendDown, confidence: 85},
		{name: "Inflation Rate", base: 3.2, spread: 1, threshold: 0.5, above: models.TrendUp, below: models.TrendDown, confidence: 80},
		{name: "Trade Volume Index", base: 65, spread: 10, threshold: 0.5, above: models.TrendUp, below: models.TrendDown, confidence: 75},
	},
	models.CategoryGeopolitical: {
		{name: "Political Stability Index", base: 55, spread: 10, threshold: 0.7, above: models.TrendDown, below: models.TrendStable, confidence: 70},
		{name: "Regional Conflict Metric", base: 42, spread: 15, threshold: 0.6, above: models.TrendUp, below: models.TrendStable, confidence: 65},
	},
	models.CategoryWeather: {
		{name: "Severe Weather Events", base: 45, spread: 10, whole: true, threshold: 0.6, above: models.TrendUp, below: models.TrendStable, confidence: 90},
		{name: "Sea Route Disruption Probability", base: 35, spread: 10, threshold: 0.5, above: models.TrendUp, below: models.TrendDown, confidence: 75},
	},
	models.CategorySupplyChain: {
		{name: "Port Congestion Index", base: 58, spread: 14, threshold: 0.6, above: models.TrendUp, below: models.TrendDown, confidence: 85},
		{name: "Shipping Cost Index", base: 67, spread: 20, threshold: 0.7, above: models.TrendUp, below: models.TrendDown, confidence: 80},
		{name: "Container Availability", base: 52, spread: 16, threshold: 0.5, above: models.TrendDown, below: models.TrendUp, confidence: 75},
	},
}

// SimulatedFetcher generates plausible indicator readings for a category
// without any network access.
type SimulatedFetcher struct {
	mu    sync.Mutex
	rng   *rand.Rand
	delay time.Duration
}

// NewSimulatedFetcher creates a simulated fetcher. A zero seed draws one
// from the clock. delay emulates network latency and honours ctx.
func NewSimulatedFetcher(seed uint64, delay time.Duration) *SimulatedFetcher {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &SimulatedFetcher{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		delay: delay,
	}
}

// Fetch returns the simulated indicators for d's category.
func (s *SimulatedFetcher) Fetch(ctx context.Context, d Descriptor) ([]models.Indicator, error) {
	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	set := mockSets[d.Category]
	out := make([]models.Indicator, 0, len(set))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range set {
		jitter := (s.rng.Float64() - 0.5) * m.spread
		if m.whole {
			jitter = math.Floor(jitter)
		}
		trend := m.below
		if s.rng.Float64() > m.threshold {
			trend = m.above
		}
		out = append(out, models.Indicator{
			Name:       m.name,
			Value:      m.base + jitter,
			Category:   d.Category,
			Trend:      trend,
			Confidence: m.confidence,
			Source:     d.Name,
		})
	}
	return out, nil
}
