package risk

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seenimoa/routerisk/pkg/models"
)

func TestScoreRouteEmptyCacheScenario(t *testing.T) {
	route := models.Route{ETADays: 14, Volume: 5000}
	b := NewScorer().Explain(route, nil)

	assert.InDelta(t, 21.0, b.DistanceRisk, 1e-9)
	assert.InDelta(t, 5.0, b.VolumeRisk, 1e-9)
	assert.InDelta(t, 13.0, b.BaseRisk, 1e-9)
	assert.True(t, b.UsedDefaultImpact)
	assert.InDelta(t, 20.0, b.ExternalImpact, 1e-9)
	assert.InDelta(t, 15.8, b.TotalRisk, 1e-9)
	assert.Equal(t, 16, b.Score)
	assert.Equal(t, 16, ScoreRoute(route, &Snapshot{}))
}

func TestScoreRouteUsesCachedFactors(t *testing.T) {
	snap := &Snapshot{Factors: []models.WeightedFactor{
		{Name: "a", Value: 50, Weight: 0.4, Score: 20},
		{Name: "b", Value: 40, Weight: 0.1, Score: 4},
	}}
	// Same region on both ends: no multiplier.
	route := models.Route{Origin: "Rotterdam", Destination: "Hamburg", ETADays: 10, Volume: 2000}
	b := NewScorer().Explain(route, snap)

	assert.False(t, b.UsedDefaultImpact)
	assert.InDelta(t, 1.0, b.RegionalMultiplier, 1e-12)
	assert.InDelta(t, 20*0.4+4*0.1, b.ExternalImpact, 1e-9)
	// base = (15 + 2) / 2 = 8.5; total = 5.1 + 3.36 = 8.46
	assert.Equal(t, 8, b.Score)
}

func TestRegionalMultiplier(t *testing.T) {
	tests := []struct {
		name        string
		origin      string
		destination string
		want        float64
	}{
		{"same region", "Europe", "Europe", 1.0},
		{"cross region", "Europe", "North America", 1.2},
		{"middle east", "Middle East", "Europe", 1.2 * 1.3},
		{"east asia", "East Asia", "Europe", 1.2 * 1.1},
		{"middle east to east asia", "Middle East", "East Asia", 1.2 * 1.3 * 1.1},
		{"within east asia", "East Asia", "East Asia", 1.1},
		{"unknown both", RegionUnknown, RegionUnknown, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RegionalMultiplier(tt.origin, tt.destination), 1e-12)
		})
	}
}

func TestResolveRegion(t *testing.T) {
	assert.Equal(t, "East Asia", ResolveRegion("", "Shanghai"))
	assert.Equal(t, "Middle East", ResolveRegion("", "  dubai "))
	assert.Equal(t, "Europe", ResolveRegion("Europe", "Shanghai"))
	assert.Equal(t, RegionUnknown, ResolveRegion("", "Atlantis"))
}

func TestScoreRouteRegionFromPorts(t *testing.T) {
	snap := &Snapshot{Factors: []models.WeightedFactor{{Name: "a", Value: 100, Weight: 1, Score: 100}}}
	route := models.Route{Origin: "Dubai", Destination: "Shanghai"}
	b := NewScorer().Explain(route, snap)
	assert.Equal(t, "Middle East", b.OriginRegion)
	assert.Equal(t, "East Asia", b.DestinationRegion)
	assert.InDelta(t, 100*1.2*1.3*1.1, b.ExternalImpact, 1e-9)
	assert.Equal(t, 69, b.Score)
}

func TestScoreRouteAlwaysBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	snaps := []*Snapshot{
		nil,
		FallbackSnapshot(),
		{Factors: []models.WeightedFactor{{Value: 1e6, Weight: 1, Score: 1e6}}},
		{Factors: []models.WeightedFactor{{Value: -1e6, Weight: 1, Score: -1e6}}},
	}
	regions := []string{"", "Middle East", "East Asia", "Europe"}

	for i := 0; i < 2000; i++ {
		route := models.Route{
			ETADays:           rng.Float64() * 365,
			Volume:            rng.Float64() * 1e6,
			OriginRegion:      regions[rng.IntN(len(regions))],
			DestinationRegion: regions[rng.IntN(len(regions))],
		}
		for _, snap := range snaps {
			score := ScoreRoute(route, snap)
			assert.GreaterOrEqual(t, score, 0)
			assert.LessOrEqual(t, score, 100)
		}
	}
}

func TestFallbackTableSatisfiesPolicy(t *testing.T) {
	factors := FallbackFactors()
	policy := DefaultPolicy()

	sums := categorySums(factors)
	assert.Len(t, sums, len(models.Categories))
	for _, c := range policy.Categories() {
		share, _ := policy.Share(c)
		assert.InDelta(t, share, sums[c], weightTolerance, "category %s", c)
	}
	for i, f := range factors {
		assert.InDelta(t, f.Value*f.Weight, f.Score, 1e-9)
		if i > 0 {
			assert.GreaterOrEqual(t, factors[i-1].Score, f.Score)
		}
	}
	assert.Equal(t, "Port Congestion Index", factors[0].Name)

	// Callers get their own copy.
	factors[0].Value = 0
	assert.Equal(t, 58.0, FallbackFactors()[0].Value)
}
