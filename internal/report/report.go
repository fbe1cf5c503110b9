package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/routerisk/internal/risk"
	"github.com/seenimoa/routerisk/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Report Generator
// ════════════════════════════════════════════════════════════════════

// Format specifies the output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// ParseFormat maps a name to a Format; empty means HTML.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatText:
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// Config controls report generation behaviour.
type Config struct {
	Title    string      // custom report title (optional)
	Author   string      // author name (optional)
	ChartCfg ChartConfig // chart rendering config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Title:    "Route Risk Report",
		Author:   "routerisk",
		ChartCfg: DefaultChartConfig(),
	}
}

// ErrNoRoutes is returned when a report is requested for no routes.
var ErrNoRoutes = errors.New("report needs at least one route")

// RouteResult is one scored route.
type RouteResult struct {
	Route     models.Route
	Breakdown risk.Breakdown
}

// Input is everything a report shows.
type Input struct {
	Routes      []RouteResult
	Factors     []models.WeightedFactor
	Outcome     risk.Outcome
	Cache       risk.CacheStatus
	GeneratedAt time.Time
}

// Source is the engine surface a report reads; *risk.Engine satisfies it.
type Source interface {
	FetchRiskFactors(ctx context.Context, routes []models.Route) ([]models.WeightedFactor, risk.Outcome)
	CalculateRiskFactors(routes []models.Route) []models.WeightedFactor
	ExplainRouteSync(route models.Route) risk.Breakdown
	Status() risk.CacheStatus
}

// Collect gathers the factors and route scores for a report. With refresh
// the factors are fetched first; routes are then scored against the cache.
func Collect(ctx context.Context, src Source, routes []models.Route, refresh bool) Input {
	in := Input{GeneratedAt: time.Now()}
	if refresh {
		in.Factors, in.Outcome = src.FetchRiskFactors(ctx, routes)
	} else {
		in.Factors = src.CalculateRiskFactors(routes)
	}
	for _, route := range routes {
		in.Routes = append(in.Routes, RouteResult{Route: route, Breakdown: src.ExplainRouteSync(route)})
	}
	in.Cache = src.Status()
	return in
}

// ════════════════════════════════════════════════════════════════════
// Report Data
// ════════════════════════════════════════════════════════════════════

// Data is the template model passed to the HTML template.
type Data struct {
	Title       string
	Author      string
	GeneratedAt string
	Outcome     string
	FactorsAge  string
	CycleID     string

	RouteCount int
	AvgScore   string
	MaxScore   int
	High       int
	Medium     int
	Low        int
	AvgETA     string
	AvgVolume  string
	DelayedPct string

	Routes  []RouteRow
	Factors []FactorRow

	GaugeSVG       template.HTML
	FactorChartSVG template.HTML
}

// RouteRow is one row of the routes table, highest score first.
type RouteRow struct {
	Name       string
	Lane       string
	ETA        string
	Volume     string
	Score      int
	Label      string
	Multiplier string
	External   string
}

// FactorRow is one row of the factors table.
type FactorRow struct {
	Name     string
	Category string
	Value    string
	Weight   string
	Score    string
	Trend    string
}

// ════════════════════════════════════════════════════════════════════
// Generate Report
// ════════════════════════════════════════════════════════════════════

// Generate renders in as the requested format.
func Generate(in Input, format Format, cfg Config) (string, error) {
	if format == FormatText {
		return GenerateText(in, cfg)
	}
	return GenerateHTML(in, cfg)
}

// GenerateHTML generates an HTML route risk report.
func GenerateHTML(in Input, cfg Config) (string, error) {
	if len(in.Routes) == 0 {
		return "", ErrNoRoutes
	}

	data := buildData(in, cfg)

	tmpl, err := template.New("report").Parse(Template)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}

	return buf.String(), nil
}

// GenerateText generates a plain-text report (terminal / CLI friendly).
func GenerateText(in Input, cfg Config) (string, error) {
	if len(in.Routes) == 0 {
		return "", ErrNoRoutes
	}
	return renderText(buildData(in, cfg)), nil
}

// ════════════════════════════════════════════════════════════════════
// Template Data
// ════════════════════════════════════════════════════════════════════

func buildData(in Input, cfg Config) Data {
	if cfg.Title == "" {
		cfg.Title = DefaultConfig().Title
	}
	generated := in.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	d := Data{
		Title:       cfg.Title,
		Author:      cfg.Author,
		GeneratedAt: generated.UTC().Format("02 Jan 2006, 15:04 UTC"),
		Outcome:     string(in.Outcome),
		CycleID:     in.Cache.CycleID,
		RouteCount:  len(in.Routes),
	}
	if d.Outcome == "" {
		d.Outcome = "cached"
	}
	if in.Cache.Populated {
		d.FactorsAge = FormatDuration(in.Cache.Age)
	}

	routes := make([]models.Route, 0, len(in.Routes))
	total := 0
	for _, r := range in.Routes {
		routes = append(routes, r.Route)
		score := r.Breakdown.Score
		total += score
		if score > d.MaxScore {
			d.MaxScore = score
		}
		label := models.RiskLabel(score)
		switch label {
		case "high":
			d.High++
		case "medium":
			d.Medium++
		default:
			d.Low++
		}
		d.Routes = append(d.Routes, buildRouteRow(r, label))
	}
	sort.SliceStable(d.Routes, func(i, j int) bool { return d.Routes[i].Score > d.Routes[j].Score })

	avg := float64(total) / float64(len(in.Routes))
	d.AvgScore = fmt.Sprintf("%.1f", avg)

	st := risk.SummarizeRoutes(routes)
	d.AvgETA = fmt.Sprintf("%.1f days", st.AvgETADays)
	d.AvgVolume = fmt.Sprintf("%.0f", st.AvgVolume)
	d.DelayedPct = fmt.Sprintf("%.0f%%", st.DelayedPct)

	for _, f := range in.Factors {
		d.Factors = append(d.Factors, FactorRow{
			Name:     f.Name,
			Category: categoryOrSource(f),
			Value:    fmt.Sprintf("%.1f", f.Value),
			Weight:   fmt.Sprintf("%.4f", f.Weight),
			Score:    fmt.Sprintf("%.2f", f.Score),
			Trend:    string(f.Trend),
		})
	}

	chartCfg := cfg.ChartCfg
	if chartCfg.Title == "" {
		chartCfg.Title = "Factor scores by category"
	}
	d.FactorChartSVG = template.HTML(FactorChart(in.Factors, chartCfg))
	d.GaugeSVG = template.HTML(RiskGauge(avg, "average route risk", 220))

	return d
}

func buildRouteRow(r RouteResult, label string) RouteRow {
	name := r.Route.ID
	if name == "" {
		name = "-"
	}
	lane := r.Breakdown.OriginRegion + " → " + r.Breakdown.DestinationRegion
	if r.Route.Origin != "" || r.Route.Destination != "" {
		lane = r.Route.Origin + " → " + r.Route.Destination
	}
	external := fmt.Sprintf("%.2f", r.Breakdown.ExternalImpact)
	if r.Breakdown.UsedDefaultImpact {
		external += " (default)"
	}
	return RouteRow{
		Name:       name,
		Lane:       lane,
		ETA:        fmt.Sprintf("%.1f", r.Route.ETADays),
		Volume:     fmt.Sprintf("%.0f", r.Route.Volume),
		Score:      r.Breakdown.Score,
		Label:      label,
		Multiplier: fmt.Sprintf("×%.1f", r.Breakdown.RegionalMultiplier),
		External:   external,
	}
}

func categoryOrSource(f models.WeightedFactor) string {
	if f.Category != "" {
		return string(f.Category)
	}
	return f.Source
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

func renderText(d Data) string {
	var sb strings.Builder
	line := strings.Repeat("═", 60)
	thinLine := strings.Repeat("─", 60)

	sb.WriteString("\n" + line + "\n")
	sb.WriteString(fmt.Sprintf("  %s\n", d.Title))
	sb.WriteString(fmt.Sprintf("  Generated: %s | Factors: %s", d.GeneratedAt, d.Outcome))
	if d.FactorsAge != "" {
		sb.WriteString(fmt.Sprintf(" (age %s)", d.FactorsAge))
	}
	sb.WriteString("\n" + line + "\n\n")

	sb.WriteString(fmt.Sprintf("  Routes: %d | Avg score: %s | Max: %d\n", d.RouteCount, d.AvgScore, d.MaxScore))
	sb.WriteString(fmt.Sprintf("  High: %d | Medium: %d | Low: %d\n", d.High, d.Medium, d.Low))
	sb.WriteString(fmt.Sprintf("  Avg ETA: %s | Avg volume: %s | Delayed: %s\n", d.AvgETA, d.AvgVolume, d.DelayedPct))
	sb.WriteString(thinLine + "\n")

	sb.WriteString("\n  ■ ROUTES\n")
	for _, r := range d.Routes {
		sb.WriteString(fmt.Sprintf("    %-12s %-28s %3d %-6s ext %s %s\n", r.Name, r.Lane, r.Score, r.Label, r.External, r.Multiplier))
	}
	sb.WriteString(thinLine + "\n")

	if len(d.Factors) > 0 {
		sb.WriteString("\n  ■ RISK FACTORS\n")
		for _, f := range d.Factors {
			sb.WriteString(fmt.Sprintf("    %-28s %-13s value %6s weight %s score %6s %s\n", f.Name, f.Category, f.Value, f.Weight, f.Score, f.Trend))
		}
		sb.WriteString(thinLine + "\n")
	}

	return sb.String()
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
