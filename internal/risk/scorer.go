package risk

import (
	"math"

	"github.com/seenimoa/routerisk/pkg/models"
	"github.com/seenimoa/routerisk/pkg/utils"
)

const (
	// DefaultExternalImpact stands in for external risk when nothing is cached.
	DefaultExternalImpact = 20.0

	distanceRiskPerDay = 1.5
	volumeRiskDivisor  = 1000.0
	baseRiskWeight     = 0.6
	externalRiskWeight = 0.4
	minScore           = 0.0
	maxScore           = 100.0
)

// Breakdown exposes the intermediate terms of a route score.
type Breakdown struct {
	DistanceRisk       float64 `json:"distance_risk"`
	VolumeRisk         float64 `json:"volume_risk"`
	BaseRisk           float64 `json:"base_risk"`
	OriginRegion       string  `json:"origin_region"`
	DestinationRegion  string  `json:"destination_region"`
	RegionalMultiplier float64 `json:"regional_multiplier"`
	ExternalImpact     float64 `json:"external_impact"`
	UsedDefaultImpact  bool    `json:"used_default_impact"`
	TotalRisk          float64 `json:"total_risk"`
	Score              int     `json:"score"`
}

// Scorer combines route attributes with a cached factor snapshot. It holds
// no mutable state and is safe for concurrent use.
type Scorer struct {
	// DefaultImpact replaces the external impact when the snapshot is empty.
	DefaultImpact float64
}

// NewScorer returns a scorer using DefaultExternalImpact.
func NewScorer() Scorer {
	return Scorer{DefaultImpact: DefaultExternalImpact}
}

// ScoreRoute scores route against snap with the default scorer.
func ScoreRoute(route models.Route, snap *Snapshot) int {
	return NewScorer().Score(route, snap)
}

// ScoreBreakdown explains route against snap with the default scorer.
func ScoreBreakdown(route models.Route, snap *Snapshot) Breakdown {
	return NewScorer().Explain(route, snap)
}

// Score returns the composite risk of route in [0,100]. A nil or empty
// snapshot falls back to the default external impact; staleness is ignored.
func (s Scorer) Score(route models.Route, snap *Snapshot) int {
	return s.Explain(route, snap).Score
}

// Explain computes the score along with its intermediate terms.
func (s Scorer) Explain(route models.Route, snap *Snapshot) Breakdown {
	b := Breakdown{
		DistanceRisk: route.ETADays * distanceRiskPerDay,
		VolumeRisk:   route.Volume / volumeRiskDivisor,
	}
	b.BaseRisk = (b.DistanceRisk + b.VolumeRisk) / 2
	b.OriginRegion = ResolveRegion(route.OriginRegion, route.Origin)
	b.DestinationRegion = ResolveRegion(route.DestinationRegion, route.Destination)
	b.RegionalMultiplier = RegionalMultiplier(b.OriginRegion, b.DestinationRegion)

	// The regional multiplier only scales live or cached factors, never the default.
	if snap == nil || len(snap.Factors) == 0 {
		b.ExternalImpact = s.DefaultImpact
		b.UsedDefaultImpact = true
	} else {
		b.ExternalImpact = weightedScoreSum(snap.Factors) * b.RegionalMultiplier
	}

	b.TotalRisk = b.BaseRisk*baseRiskWeight + b.ExternalImpact*externalRiskWeight
	b.Score = int(math.Round(utils.Clamp(b.TotalRisk, minScore, maxScore)))
	return b
}

// weightedScoreSum is the confidence-weighted sum of factor scores.
func weightedScoreSum(factors []models.WeightedFactor) float64 {
	total := 0.0
	for _, f := range factors {
		total += f.Score * f.Weight
	}
	return total
}
