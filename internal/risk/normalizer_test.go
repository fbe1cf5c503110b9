package risk

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/routerisk/pkg/models"
)

const weightTolerance = 0.0001 + 1e-9

func categorySums(factors []models.WeightedFactor) map[models.Category]float64 {
	sums := make(map[models.Category]float64)
	for _, f := range factors {
		sums[f.Category] += f.Weight
	}
	return sums
}

func mixedPool() []models.Indicator {
	return []models.Indicator{
		{Name: "Port Congestion Index", Value: 61.2, Category: models.CategorySupplyChain, Trend: models.TrendUp, Confidence: 85},
		{Name: "Shipping Cost Index", Value: 70.4, Category: models.CategorySupplyChain, Trend: models.TrendDown, Confidence: 80},
		{Name: "Container Availability", Value: 49.9, Category: models.CategorySupplyChain, Trend: models.TrendUp, Confidence: 75},
		{Name: "Global GDP Growth", Value: 2.9, Category: models.CategoryEconomic, Trend: models.TrendUp, Confidence: 85},
		{Name: "Inflation Rate", Value: 3.4, Category: models.CategoryEconomic, Trend: models.TrendDown, Confidence: 80},
		{Name: "Trade Volume Index", Value: 66.1, Category: models.CategoryEconomic, Trend: models.TrendUp, Confidence: 75},
		{Name: "Political Stability Index", Value: 57, Category: models.CategoryGeopolitical, Trend: models.TrendStable, Confidence: 70},
		{Name: "Regional Conflict Metric", Value: 44.3, Category: models.CategoryGeopolitical, Trend: models.TrendUp, Confidence: 65},
		{Name: "Severe Weather Events", Value: 47, Category: models.CategoryWeather, Trend: models.TrendUp, Confidence: 90},
		{Name: "Sea Route Disruption Probability", Value: 33.3, Category: models.CategoryWeather, Trend: models.TrendDown, Confidence: 75},
	}
}

func TestNormalizeTwoIndicatorScenario(t *testing.T) {
	n := NewNormalizer(DefaultPolicy(), nil)
	factors := n.Normalize([]models.Indicator{
		{Name: "A", Value: 50, Category: models.CategorySupplyChain, Trend: models.TrendUp, Confidence: 100},
		{Name: "B", Value: 50, Category: models.CategorySupplyChain, Trend: models.TrendUp, Confidence: 50},
	})

	require.Len(t, factors, 2)
	assert.Equal(t, "A", factors[0].Name)
	assert.InDelta(t, 0.2667, factors[0].Weight, 1e-12)
	assert.InDelta(t, 0.1333, factors[1].Weight, 1e-12)
	assert.InDelta(t, 0.40, factors[0].Weight+factors[1].Weight, 1e-9)
	assert.InDelta(t, 50*0.2667, factors[0].Score, 1e-9)
}

func TestNormalizeWeightSumInvariant(t *testing.T) {
	pools := map[string][]models.Indicator{
		"mixed": mixedPool(),
		"three way rounding": {
			{Name: "x", Value: 10, Category: models.CategoryEconomic, Confidence: 33},
			{Name: "y", Value: 20, Category: models.CategoryEconomic, Confidence: 33},
			{Name: "z", Value: 30, Category: models.CategoryEconomic, Confidence: 33},
		},
		"seven uneven": {
			{Name: "a", Value: 1, Category: models.CategoryWeather, Confidence: 7},
			{Name: "b", Value: 2, Category: models.CategoryWeather, Confidence: 13},
			{Name: "c", Value: 3, Category: models.CategoryWeather, Confidence: 29},
			{Name: "d", Value: 4, Category: models.CategoryWeather, Confidence: 41},
			{Name: "e", Value: 5, Category: models.CategoryWeather, Confidence: 59},
			{Name: "f", Value: 6, Category: models.CategoryWeather, Confidence: 71},
			{Name: "g", Value: 7, Category: models.CategoryWeather, Confidence: 97},
		},
	}

	policy := DefaultPolicy()
	n := NewNormalizer(policy, nil)
	for name, pool := range pools {
		t.Run(name, func(t *testing.T) {
			factors := n.Normalize(pool)
			require.NotEmpty(t, factors)
			total := 0.0
			for c, sum := range categorySums(factors) {
				share, ok := policy.Share(c)
				require.True(t, ok)
				assert.InDelta(t, share, sum, weightTolerance, "category %s", c)
				total += sum
			}
			assert.LessOrEqual(t, total, 1.0+weightTolerance)
			for _, f := range factors {
				assert.Greater(t, f.Weight, 0.0)
				assert.LessOrEqual(t, f.Weight, 1.0)
				assert.InDelta(t, f.Weight, math.Round(f.Weight*1e4)/1e4, 1e-12, "weight %s not at 4 places", f.Name)
			}
		})
	}
}

func TestNormalizeLargeCategoryKeepsItsShare(t *testing.T) {
	pool := make([]models.Indicator, 0, 3001)
	for i := 0; i < 3000; i++ {
		pool = append(pool, models.Indicator{
			Name: fmt.Sprintf("storm-%d", i), Value: 40, Category: models.CategoryWeather, Confidence: 80,
		})
	}
	pool = append(pool, models.Indicator{Name: "typhoon", Value: 90, Category: models.CategoryWeather, Confidence: 95})

	factors := NewNormalizer(DefaultPolicy(), nil).Normalize(pool)
	require.Len(t, factors, 1)
	assert.Equal(t, "typhoon", factors[0].Name)
	assert.InDelta(t, 0.10, factors[0].Weight, weightTolerance)
	assert.InDelta(t, 9.0, factors[0].Score, 1e-9)
}

func TestNormalizeSortsByScoreDescending(t *testing.T) {
	factors := NewNormalizer(DefaultPolicy(), nil).Normalize(mixedPool())
	for i := 1; i < len(factors); i++ {
		assert.GreaterOrEqual(t, factors[i-1].Score, factors[i].Score)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	n := NewNormalizer(DefaultPolicy(), nil)
	first, err := json.Marshal(n.Normalize(mixedPool()))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := json.Marshal(n.Normalize(mixedPool()))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNormalizeDropsMalformedIndicators(t *testing.T) {
	pool := []models.Indicator{
		{Name: "good", Value: 40, Category: models.CategoryWeather, Confidence: 80},
		{Name: "unknown category", Value: 40, Category: "space-weather", Confidence: 80},
		{Name: "nan", Value: math.NaN(), Category: models.CategoryWeather, Confidence: 80},
		{Name: "inf", Value: math.Inf(1), Category: models.CategoryWeather, Confidence: 80},
		{Name: "over confident", Value: 40, Category: models.CategoryWeather, Confidence: 180},
		{Name: "bad trend", Value: 40, Category: models.CategoryWeather, Trend: "sideways", Confidence: 80},
		{Name: "", Value: 40, Category: models.CategoryWeather, Confidence: 80},
	}

	factors := NewNormalizer(DefaultPolicy(), nil).Normalize(pool)
	require.Len(t, factors, 1)
	assert.Equal(t, "good", factors[0].Name)
	assert.Equal(t, models.TrendStable, factors[0].Trend)
	assert.InDelta(t, 0.10, factors[0].Weight, 1e-12)
}

func TestNormalizeZeroConfidenceCategoryContributesNothing(t *testing.T) {
	pool := []models.Indicator{
		{Name: "only", Value: 90, Category: models.CategoryGeopolitical, Confidence: 0},
		{Name: "storm", Value: 40, Category: models.CategoryWeather, Confidence: 60},
	}

	factors := NewNormalizer(DefaultPolicy(), nil).Normalize(pool)
	require.Len(t, factors, 1)
	assert.Equal(t, models.CategoryWeather, factors[0].Category)
	// The geopolitical share is not redistributed.
	assert.InDelta(t, 0.10, factors[0].Weight, 1e-12)
}

func TestNormalizeEmptyPool(t *testing.T) {
	assert.Empty(t, NewNormalizer(DefaultPolicy(), nil).Normalize(nil))
}

func TestFlattenSnapshotsInheritsCategoryAndOrdersBySource(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	snaps := map[string]models.SourceSnapshot{
		"weather-1": {Source: "Global Weather Patterns", Category: models.CategoryWeather, Timestamp: ts,
			Indicators: []models.Indicator{{Name: "Severe Weather Events", Value: 45, Confidence: 90}}},
		"economic-1": {Source: "Global Economic Indicators", Category: models.CategoryEconomic, Timestamp: ts,
			Indicators: []models.Indicator{
				{Name: "Inflation Rate", Value: 3.2, Confidence: 80},
				{Name: "Overridden", Value: 1, Confidence: 10, Category: models.CategoryWeather},
			}},
	}

	pool := FlattenSnapshots(snaps)
	require.Len(t, pool, 3)
	assert.Equal(t, "Inflation Rate", pool[0].Name)
	assert.Equal(t, models.CategoryEconomic, pool[0].Category)
	assert.Equal(t, "Global Economic Indicators", pool[0].Source)
	assert.Equal(t, models.CategoryWeather, pool[1].Category)
	assert.Equal(t, "Severe Weather Events", pool[2].Name)
}

func TestPolicyValidation(t *testing.T) {
	p := DefaultPolicy()
	sum := 0.0
	for _, s := range p.Shares() {
		sum += s
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, models.Categories, p.Categories())

	_, err := NewPolicy(map[models.Category]float64{models.CategoryWeather: 0.5})
	assert.Error(t, err)

	_, err = NewPolicy(map[models.Category]float64{"tides": 1.0})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	custom, err := NewPolicy(map[models.Category]float64{
		models.CategorySupplyChain: 0.5,
		models.CategoryEconomic:    0.5,
	})
	require.NoError(t, err)
	_, ok := custom.Share(models.CategoryWeather)
	assert.False(t, ok)
}
