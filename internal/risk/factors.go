package risk

import (
	"math"

	"github.com/seenimoa/routerisk/pkg/models"
)

const (
	// DefaultTopExternalFactors is how many cached factors the batch summary keeps.
	DefaultTopExternalFactors = 7

	routeDelayWeight       = 0.08
	volumeComplexityWeight = 0.04
	delayTrendThresholdPct = 30.0

	// RouteDerivedSource tags factors computed from the caller's routes.
	RouteDerivedSource = "routes"
)

// RouteStats aggregates a set of routes.
type RouteStats struct {
	Count      int     `json:"count"`
	AvgETADays float64 `json:"avg_eta_days"`
	AvgVolume  float64 `json:"avg_volume"`
	DelayedPct float64 `json:"delayed_pct"`
}

// SummarizeRoutes computes average ETA, average volume, and the share of
// delayed routes.
func SummarizeRoutes(routes []models.Route) RouteStats {
	st := RouteStats{Count: len(routes)}
	if st.Count == 0 {
		return st
	}
	delayed := 0
	for _, r := range routes {
		st.AvgETADays += r.ETADays
		st.AvgVolume += r.Volume
		if r.ETAStatus == models.ETADelayed {
			delayed++
		}
	}
	n := float64(st.Count)
	st.AvgETADays /= n
	st.AvgVolume /= n
	st.DelayedPct = float64(delayed) / n * 100
	return st
}

// CalculateRiskFactors builds the display list for a set of routes: the top
// cached external factors followed by the route delay and volume complexity
// factors. With nothing cached it returns the fallback table as is, without
// route-derived factors. An empty route set yields an empty list.
func CalculateRiskFactors(routes []models.Route, snap *Snapshot, topN int) []models.WeightedFactor {
	if len(routes) == 0 {
		return []models.WeightedFactor{}
	}
	if snap == nil || len(snap.Factors) == 0 {
		return FallbackFactors()
	}
	if topN <= 0 {
		topN = DefaultTopExternalFactors
	}

	external := snap.Factors
	if len(external) > topN {
		external = external[:topN]
	}
	out := make([]models.WeightedFactor, 0, len(external)+2)
	out = append(out, external...)
	return append(out, routeDerivedFactors(SummarizeRoutes(routes))...)
}

func routeDerivedFactors(st RouteStats) []models.WeightedFactor {
	delay := math.Round(st.DelayedPct)
	delayTrend := models.TrendStable
	if st.DelayedPct > delayTrendThresholdPct {
		delayTrend = models.TrendUp
	}
	complexity := math.Min(math.Round(st.AvgVolume/1000*10), 100)

	return []models.WeightedFactor{
		{
			Name:   "Route Delay Risk",
			Value:  delay,
			Weight: routeDelayWeight,
			Score:  delay * routeDelayWeight,
			Trend:  delayTrend,
			Source: RouteDerivedSource,
		},
		{
			Name:   "Volume Complexity",
			Value:  complexity,
			Weight: volumeComplexityWeight,
			Score:  complexity * volumeComplexityWeight,
			Trend:  models.TrendStable,
			Source: RouteDerivedSource,
		},
	}
}
