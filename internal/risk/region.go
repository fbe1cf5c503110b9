package risk

import "strings"

const (
	RegionUnknown      = "Unknown"
	RegionMiddleEast   = "Middle East"
	RegionEastAsia     = "East Asia"
	crossRegionFactor  = 1.2
	geopoliticalFactor = 1.3
	congestionFactor   = 1.1
)

// portRegions maps the ports the dashboards know about to their regions.
// It is a placeholder table, not a gazetteer.
var portRegions = map[string]string{
	"shanghai":    "East Asia",
	"rotterdam":   "Europe",
	"los angeles": "North America",
	"singapore":   "Southeast Asia",
	"new york":    "North America",
	"dubai":       "Middle East",
	"mumbai":      "South Asia",
	"sydney":      "Oceania",
	"hamburg":     "Europe",
	"santos":      "South America",
}

// Regions with high geopolitical volatility and regions prone to port
// congestion.
var (
	volatileRegions   = map[string]bool{RegionMiddleEast: true}
	congestionRegions = map[string]bool{RegionEastAsia: true}
)

// ResolveRegion returns explicit when set, otherwise looks place up in the
// port table.
func ResolveRegion(explicit, place string) string {
	if r := strings.TrimSpace(explicit); r != "" {
		return r
	}
	if r, ok := portRegions[strings.ToLower(strings.TrimSpace(place))]; ok {
		return r
	}
	return RegionUnknown
}

// RegionalMultiplier scales external risk for a lane between two regions.
// Cross-region lanes, lanes touching a volatile region, and lanes touching
// a congestion-prone region each apply their factor, in that order.
func RegionalMultiplier(origin, destination string) float64 {
	m := 1.0
	if origin != destination {
		m *= crossRegionFactor
	}
	if volatileRegions[origin] || volatileRegions[destination] {
		m *= geopoliticalFactor
	}
	if congestionRegions[origin] || congestionRegions[destination] {
		m *= congestionFactor
	}
	return m
}
