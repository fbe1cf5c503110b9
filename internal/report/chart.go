// Package report renders route risk reports: an HTML page with inline SVG
// charts for browsers and a plain-text variant for terminals.
package report

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/seenimoa/routerisk/internal/risk"
	"github.com/seenimoa/routerisk/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// SVG Charts
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for the factor chart. The chart
// height follows from the number of rows.
type ChartConfig struct {
	Width       int    // SVG width in pixels (default: 800)
	RowHeight   int    // height of one factor row (default: 26)
	MarginLeft  int    // room for factor names (default: 190)
	MarginRight int    // room for score labels (default: 80)
	FontSize    int    // label font size (default: 11)
	Title       string // chart title (optional)
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:       800,
		RowHeight:   26,
		MarginLeft:  190,
		MarginRight: 80,
		FontSize:    11,
	}
}

func (c ChartConfig) withDefaults() ChartConfig {
	d := DefaultChartConfig()
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.RowHeight <= 0 {
		c.RowHeight = d.RowHeight
	}
	if c.MarginLeft <= 0 {
		c.MarginLeft = d.MarginLeft
	}
	if c.MarginRight <= 0 {
		c.MarginRight = d.MarginRight
	}
	if c.FontSize <= 0 {
		c.FontSize = d.FontSize
	}
	return c
}

var categoryColors = map[string]string{
	string(models.CategorySupplyChain):  "#2563eb",
	string(models.CategoryEconomic):     "#0d9488",
	string(models.CategoryGeopolitical): "#dc2626",
	string(models.CategoryWeather):      "#7c3aed",
}

const otherColor = "#64748b"

// bandColors follow models.RiskLabel.
var bandColors = map[string]string{
	"low":    "#4caf50",
	"medium": "#ff9800",
	"high":   "#ef5350",
}

type svgWriter struct{ strings.Builder }

func (s *svgWriter) el(format string, args ...any) {
	fmt.Fprintf(&s.Builder, format, args...)
}

func (s *svgWriter) open(width, height int) {
	s.el(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		width, height, width, height)
	s.el(`<rect width="%d" height="%d" fill="#ffffff"/>`, width, height)
}

func (s *svgWriter) close() string {
	s.WriteString("</svg>")
	return s.String()
}

// ════════════════════════════════════════════════════════════════════
// Factor Chart
// ════════════════════════════════════════════════════════════════════

// FactorChart draws one horizontal bar per factor, in the given order. Bar
// length is the factor score, bar colour its category (route-derived and
// uncategorised factors are grey), and the score label carries a trend
// arrow. A legend lists the categories present.
func FactorChart(factors []models.WeightedFactor, cfg ChartConfig) string {
	cfg = cfg.withDefaults()
	if len(factors) == 0 {
		return emptySVG(cfg.Width, 120, "No risk factors")
	}

	maxScore := 0.0
	for _, f := range factors {
		maxScore = math.Max(maxScore, f.Score)
	}
	if maxScore < 0.001 {
		maxScore = 1
	}

	top := 12
	if cfg.Title != "" {
		top = 36
	}
	legendY := top + len(factors)*cfg.RowHeight + 14
	height := legendY + 20
	plotW := float64(cfg.Width - cfg.MarginLeft - cfg.MarginRight)
	barH := float64(cfg.RowHeight) * 0.65

	var s svgWriter
	s.open(cfg.Width, height)
	if cfg.Title != "" {
		s.el(`<text x="%d" y="20" font-size="14" font-weight="bold" fill="#333333" text-anchor="middle">%s</text>`,
			cfg.Width/2, escapeXML(cfg.Title))
	}

	var legend []string
	seen := map[string]bool{}
	for i, f := range factors {
		y := float64(top + i*cfg.RowHeight)
		mid := y + barH/2 + 4
		bw := math.Max(f.Score, 0) / maxScore * plotW
		group := factorGroup(f)
		if !seen[group] {
			seen[group] = true
			legend = append(legend, group)
		}

		s.el(`<text x="%d" y="%.1f" font-size="%d" fill="#333333" text-anchor="end">%s</text>`,
			cfg.MarginLeft-6, mid, cfg.FontSize, escapeXML(f.Name))
		s.el(`<rect x="%d" y="%.1f" width="%.1f" height="%.1f" fill="%s" rx="2"><title>%s, weight %.4f</title></rect>`,
			cfg.MarginLeft, y, bw, barH, groupColor(group), escapeXML(group), f.Weight)
		s.el(`<text x="%.1f" y="%.1f" font-size="%d" fill="%s">%s %.2f</text>`,
			float64(cfg.MarginLeft)+bw+5, mid, cfg.FontSize, trendColor(f.Trend), trendArrow(f.Trend), f.Score)
	}

	x := cfg.MarginLeft
	for _, group := range legend {
		s.el(`<rect x="%d" y="%d" width="10" height="10" fill="%s"/>`, x, legendY, groupColor(group))
		s.el(`<text x="%d" y="%d" font-size="%d" fill="#555555">%s</text>`, x+14, legendY+9, cfg.FontSize, escapeXML(group))
		x += 24 + 7*len(group)
	}

	return s.close()
}

// factorGroup names the legend entry for f.
func factorGroup(f models.WeightedFactor) string {
	if f.Category != "" {
		return string(f.Category)
	}
	if f.Source == risk.RouteDerivedSource {
		return "route"
	}
	return "other"
}

func groupColor(group string) string {
	if c, ok := categoryColors[group]; ok {
		return c
	}
	return otherColor
}

func trendColor(t models.Trend) string {
	switch t {
	case models.TrendUp:
		return "#ef5350"
	case models.TrendDown:
		return "#4caf50"
	default:
		return "#90a4ae"
	}
}

func trendArrow(t models.Trend) string {
	switch t {
	case models.TrendUp:
		return "▲"
	case models.TrendDown:
		return "▼"
	default:
		return "▶"
	}
}

// ════════════════════════════════════════════════════════════════════
// Risk Gauge
// ════════════════════════════════════════════════════════════════════

// RiskGauge draws a 0-100 half dial split into the low, medium and high
// risk bands, with a needle at score. The score text takes its band colour.
func RiskGauge(score float64, label string, width int) string {
	if width <= 0 {
		width = 200
	}
	score = math.Max(0, math.Min(100, score))

	r := float64(width)/2 - 20
	cx := float64(width) / 2
	cy := r + 15
	height := int(cy) + 40

	// at maps a score onto the dial: 0 on the left, 100 on the right.
	at := func(v, radius float64) (float64, float64) {
		a := math.Pi - v/100*math.Pi
		return cx + radius*math.Cos(a), cy - radius*math.Sin(a)
	}

	var s svgWriter
	s.open(width, height)
	for _, band := range []struct {
		from, to float64
		label    string
	}{{0, 40, "low"}, {40, 70, "medium"}, {70, 100, "high"}} {
		x1, y1 := at(band.from, r)
		x2, y2 := at(band.to, r)
		s.el(`<path d="M%.1f,%.1f A%.1f,%.1f 0 0,1 %.1f,%.1f" fill="none" stroke="%s" stroke-opacity="0.35" stroke-width="12"/>`,
			x1, y1, r, r, x2, y2, bandColors[band.label])
	}

	nx, ny := at(score, r*0.85)
	s.el(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#333333" stroke-width="2"/>`, cx, cy, nx, ny)
	s.el(`<circle cx="%.1f" cy="%.1f" r="5" fill="#333333"/>`, cx, cy)

	band := models.RiskLabel(int(math.Round(score)))
	s.el(`<text x="%.1f" y="%.1f" font-size="22" font-weight="bold" fill="%s" text-anchor="middle">%.0f</text>`,
		cx, cy+25, bandColors[band], score)
	s.el(`<text x="%.1f" y="%d" font-size="11" fill="#666666" text-anchor="middle">%s (%s)</text>`,
		cx, height-4, escapeXML(label), band)

	return s.close()
}

func emptySVG(width, height int, msg string) string {
	var s svgWriter
	s.el(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/>`,
		width, height, width, height)
	s.el(`<text x="%d" y="%d" text-anchor="middle" fill="#999999" font-size="14">%s</text>`,
		width/2, height/2, escapeXML(msg))
	return s.close()
}

func escapeXML(s string) string {
	return html.EscapeString(s)
}
