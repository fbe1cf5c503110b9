package risk

import (
	"log/slog"
	"math"
	"sort"

	"github.com/seenimoa/routerisk/pkg/models"
	"github.com/seenimoa/routerisk/pkg/utils"
)

// weightPlaces is the decimal precision normalized weights are rounded to.
const weightPlaces = 4

// Normalizer turns a raw indicator pool into weighted factors whose weights
// honour the category policy.
type Normalizer struct {
	policy Policy
	logger *slog.Logger
}

// NewNormalizer creates a normalizer for the given policy.
func NewNormalizer(policy Policy, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{policy: policy, logger: logger}
}

// Normalize weights every usable indicator in pool and returns the factors
// sorted by score, highest first.
//
// Within a category each indicator's weight is its share of the category's
// total confidence times the category's policy share, rounded to four
// places. Malformed indicators are dropped individually. A category whose
// total confidence is zero contributes nothing, and its share is not
// redistributed.
func (n *Normalizer) Normalize(pool []models.Indicator) []models.WeightedFactor {
	byCategory := make(map[models.Category][]models.Indicator)
	dropped := 0
	for _, raw := range pool {
		ind, ok := n.sanitize(raw)
		if !ok {
			dropped++
			continue
		}
		byCategory[ind.Category] = append(byCategory[ind.Category], ind)
	}
	if dropped > 0 {
		n.logger.Debug("dropped malformed indicators", "count", dropped)
	}

	var factors []models.WeightedFactor
	for _, c := range n.policy.Categories() {
		share, _ := n.policy.Share(c)
		factors = append(factors, weighCategory(byCategory[c], share)...)
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Score > factors[j].Score
	})
	return factors
}

// sanitize validates a single indicator, defaulting a missing trend.
func (n *Normalizer) sanitize(ind models.Indicator) (models.Indicator, bool) {
	if ind.Name == "" || !utils.Finite(ind.Value) {
		return ind, false
	}
	if ind.Confidence < 0 || ind.Confidence > 100 {
		return ind, false
	}
	if _, ok := n.policy.Share(ind.Category); !ok {
		return ind, false
	}
	if ind.Trend == "" {
		ind.Trend = models.TrendStable
	}
	if !ind.Trend.Valid() {
		return ind, false
	}
	return ind, true
}

func weighCategory(group []models.Indicator, share float64) []models.WeightedFactor {
	total := 0.0
	top := 0
	for i, ind := range group {
		total += float64(ind.Confidence) / 100
		if ind.Confidence > group[top].Confidence {
			top = i
		}
	}
	if total <= 0 {
		return nil
	}

	// Weights that round to zero are dropped, except the most confident
	// indicator, which keeps the category present and absorbs the residue.
	out := make([]models.WeightedFactor, 0, len(group))
	for i, ind := range group {
		cw := float64(ind.Confidence) / 100
		w := utils.RoundTo(cw/total*share, weightPlaces)
		if w <= 0 && i != top {
			continue
		}
		out = append(out, models.WeightedFactor{
			Name:       ind.Name,
			Value:      ind.Value,
			Weight:     w,
			Score:      ind.Value * w,
			Trend:      ind.Trend,
			Category:   ind.Category,
			Source:     ind.Source,
			Confidence: ind.Confidence,
		})
	}
	balance(out, share)
	return out
}

// balance folds the rounding residue into the heaviest factor so the
// category's weights sum to its share at four decimal places.
func balance(factors []models.WeightedFactor, share float64) {
	if len(factors) == 0 {
		return
	}
	sum := 0.0
	heaviest := 0
	for i, f := range factors {
		sum += f.Weight
		if f.Weight > factors[heaviest].Weight {
			heaviest = i
		}
	}
	residue := utils.RoundTo(share-sum, weightPlaces)
	if math.Abs(residue) < 1e-9 {
		return
	}
	f := &factors[heaviest]
	f.Weight = utils.RoundTo(f.Weight+residue, weightPlaces)
	f.Score = f.Value * f.Weight
}

// FlattenSnapshots merges per-source snapshots into a single indicator pool.
// Sources are visited in ID order so the pool, and everything derived from
// it, is deterministic. Indicators inherit the snapshot category and source
// name when they carry none of their own.
func FlattenSnapshots(snapshots map[string]models.SourceSnapshot) []models.Indicator {
	ids := make([]string, 0, len(snapshots))
	for id := range snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var pool []models.Indicator
	for _, id := range ids {
		snap := snapshots[id]
		for _, ind := range snap.Indicators {
			if ind.Category == "" {
				ind.Category = snap.Category
			}
			if ind.Source == "" {
				ind.Source = snap.Source
			}
			pool = append(pool, ind)
		}
	}
	return pool
}
