package risk

import (
	"sort"

	"github.com/seenimoa/routerisk/pkg/models"
)

// FallbackCycleID marks snapshots built from the fallback table.
const FallbackCycleID = "fallback"

// fallbackTable is the curated factor set used when live indicators cannot
// be obtained. Per category the weights sum to the default policy shares.
var fallbackTable = []models.WeightedFactor{
	{Name: "Port Congestion Index", Value: 58, Weight: 0.20, Trend: models.TrendUp, Category: models.CategorySupplyChain},
	{Name: "Container Availability", Value: 52, Weight: 0.12, Trend: models.TrendDown, Category: models.CategorySupplyChain},
	{Name: "Shipping Cost Index", Value: 67, Weight: 0.08, Trend: models.TrendUp, Category: models.CategorySupplyChain},

	{Name: "Global Inflation Rate", Value: 62, Weight: 0.15, Trend: models.TrendUp, Category: models.CategoryEconomic},
	{Name: "Currency Fluctuations", Value: 58, Weight: 0.10, Trend: models.TrendDown, Category: models.CategoryEconomic},
	{Name: "Trade Volume Index", Value: 65, Weight: 0.05, Trend: models.TrendStable, Category: models.CategoryEconomic},

	{Name: "Political Stability Index", Value: 55, Weight: 0.12, Trend: models.TrendDown, Category: models.CategoryGeopolitical},
	{Name: "Tariffs & Trade Policies", Value: 65, Weight: 0.08, Trend: models.TrendStable, Category: models.CategoryGeopolitical},

	{Name: "Severe Weather Events", Value: 45, Weight: 0.06, Trend: models.TrendUp, Category: models.CategoryWeather},
	{Name: "Sea Route Disruption Risk", Value: 35, Weight: 0.04, Trend: models.TrendUp, Category: models.CategoryWeather},
}

// FallbackFactors returns a fresh copy of the fallback table, scored and
// sorted highest score first.
func FallbackFactors() []models.WeightedFactor {
	out := make([]models.WeightedFactor, len(fallbackTable))
	for i, f := range fallbackTable {
		f.Score = f.Value * f.Weight
		f.Source = FallbackCycleID
		out[i] = f
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// FallbackSnapshot wraps the fallback table in an unstamped snapshot.
func FallbackSnapshot() *Snapshot {
	return &Snapshot{Factors: FallbackFactors(), CycleID: FallbackCycleID}
}
