// Package models defines the core data structures shared by the risk engine,
// the indicator sources, and the API layer.
package models

import "time"

// Category partitions indicators for weight-policy purposes.
type Category string

const (
	CategorySupplyChain  Category = "supply-chain"
	CategoryEconomic     Category = "economic"
	CategoryGeopolitical Category = "geopolitical"
	CategoryWeather      Category = "weather"
)

// Categories lists every known category in policy order.
var Categories = []Category{
	CategorySupplyChain,
	CategoryEconomic,
	CategoryGeopolitical,
	CategoryWeather,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySupplyChain, CategoryEconomic, CategoryGeopolitical, CategoryWeather:
		return true
	}
	return false
}

// Trend is the direction an indicator is moving in.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Valid reports whether t is a known trend.
func (t Trend) Valid() bool {
	return t == TrendUp || t == TrendDown || t == TrendStable
}

// Indicator is one named, categorized, confidence-scored observation from a
// single data source. Values are conventionally on a 0-100 scale.
type Indicator struct {
	Name       string   `json:"name"               yaml:"name"`
	Value      float64  `json:"value"              yaml:"value"`
	Category   Category `json:"category,omitempty" yaml:"category,omitempty"`
	Trend      Trend    `json:"trend"              yaml:"trend"`
	Confidence int      `json:"confidence"         yaml:"confidence"` // percent, 0-100
	Source     string   `json:"source,omitempty"   yaml:"source,omitempty"`
}

// SourceSnapshot is the result of one fetch against one source. Indicators
// without their own category inherit the snapshot's.
type SourceSnapshot struct {
	Source     string      `json:"source"`
	Category   Category    `json:"category"`
	Timestamp  time.Time   `json:"timestamp"`
	Indicators []Indicator `json:"indicators"`
}

// WeightedFactor is an indicator after normalization.
type WeightedFactor struct {
	Name       string   `json:"name"`
	Value      float64  `json:"value"`
	Weight     float64  `json:"weight"`
	Score      float64  `json:"score"`
	Trend      Trend    `json:"trend"`
	Category   Category `json:"category,omitempty"`
	Source     string   `json:"source,omitempty"`
	Confidence int      `json:"confidence,omitempty"`
}
