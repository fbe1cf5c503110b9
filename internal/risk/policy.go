// Package risk implements the risk factor aggregation engine: the category
// weight policy, the indicator normalizer, the aggregation cache, and the
// route risk scorer with its synchronous and refreshing entry points.
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/seenimoa/routerisk/pkg/models"
)

// ErrUnknownCategory is returned when a policy names a category the engine
// does not know about.
var ErrUnknownCategory = errors.New("unknown indicator category")

// shareTolerance is how far the policy shares may drift from 1.0.
const shareTolerance = 0.001

// Policy maps each indicator category to its share of the total weight.
// A Policy is immutable once built.
type Policy struct {
	shares map[models.Category]float64
}

// DefaultPolicy returns the supply-chain oriented weight split:
// supply-chain 40%, economic 30%, geopolitical 20%, weather 10%.
func DefaultPolicy() Policy {
	return Policy{shares: map[models.Category]float64{
		models.CategorySupplyChain:  0.40,
		models.CategoryEconomic:     0.30,
		models.CategoryGeopolitical: 0.20,
		models.CategoryWeather:      0.10,
	}}
}

// NewPolicy validates and builds a policy from explicit shares.
func NewPolicy(shares map[models.Category]float64) (Policy, error) {
	p := Policy{shares: make(map[models.Category]float64, len(shares))}
	sum := 0.0
	for c, s := range shares {
		if !c.Valid() {
			return Policy{}, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
		}
		if s <= 0 || s > 1 || math.IsNaN(s) {
			return Policy{}, fmt.Errorf("share for %s must be in (0,1], got %v", c, s)
		}
		p.shares[c] = s
		sum += s
	}
	if math.Abs(sum-1.0) > shareTolerance {
		return Policy{}, fmt.Errorf("policy shares sum to %.4f, must sum to 1.0", sum)
	}
	return p, nil
}

// Share returns the weight share of c and whether c is covered by the policy.
func (p Policy) Share(c models.Category) (float64, bool) {
	s, ok := p.shares[c]
	return s, ok
}

// Categories returns the covered categories in canonical order.
func (p Policy) Categories() []models.Category {
	out := make([]models.Category, 0, len(p.shares))
	for _, c := range models.Categories {
		if _, ok := p.shares[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Shares returns a copy of the category shares.
func (p Policy) Shares() map[models.Category]float64 {
	out := make(map[models.Category]float64, len(p.shares))
	for c, s := range p.shares {
		out[c] = s
	}
	return out
}
