package models

import (
	"fmt"
	"math"
)

// ETAStatus describes how a shipment is tracking against its schedule.
type ETAStatus string

const (
	ETAOnTime  ETAStatus = "on-time"
	ETADelayed ETAStatus = "delayed"
	ETAEarly   ETAStatus = "early"
)

// Route is a shipment lane. It is owned by the caller; the engine only reads it.
type Route struct {
	ID                string    `json:"id,omitempty"                 yaml:"id,omitempty"`
	Origin            string    `json:"origin,omitempty"             yaml:"origin,omitempty"`      // port or city, e.g. "Shanghai"
	Destination       string    `json:"destination,omitempty"        yaml:"destination,omitempty"` // e.g. "Rotterdam"
	OriginRegion      string    `json:"origin_region,omitempty"      yaml:"origin_region,omitempty"`
	DestinationRegion string    `json:"destination_region,omitempty" yaml:"destination_region,omitempty"`
	ETADays           float64   `json:"eta_days"                     yaml:"eta_days"`
	ETAStatus         ETAStatus `json:"eta_status,omitempty"         yaml:"eta_status,omitempty"`
	Volume            float64   `json:"volume"                       yaml:"volume"`
}

// RouteScore is a scored route as returned to callers.
type RouteScore struct {
	Route Route  `json:"route"`
	Score int    `json:"score"`
	Label string `json:"label"`
}

// RiskLabel buckets a 0-100 score for display.
func RiskLabel(score int) string {
	switch {
	case score >= 70:
		return "high"
	case score >= 40:
		return "medium"
	default:
		return "low"
	}
}

// Validate rejects routes the scorer cannot meaningfully use.
func (r Route) Validate() error {
	if math.IsNaN(r.ETADays) || math.IsInf(r.ETADays, 0) || r.ETADays < 0 {
		return fmt.Errorf("route %q: eta_days must be a non-negative number", r.ID)
	}
	if math.IsNaN(r.Volume) || math.IsInf(r.Volume, 0) || r.Volume < 0 {
		return fmt.Errorf("route %q: volume must be a non-negative number", r.ID)
	}
	switch r.ETAStatus {
	case "", ETAOnTime, ETADelayed, ETAEarly:
	default:
		return fmt.Errorf("route %q: unknown eta_status %q", r.ID, r.ETAStatus)
	}
	return nil
}
