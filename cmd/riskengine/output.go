package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/seenimoa/routerisk/internal/risk"
	"github.com/seenimoa/routerisk/internal/source"
	"github.com/seenimoa/routerisk/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	lowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	mediumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	highStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// scoredRoute is one row of the score command's output.
type scoredRoute struct {
	Route     models.Route
	Breakdown risk.Breakdown
	Outcome   risk.Outcome
}

func labelStyle(label string) lipgloss.Style {
	switch label {
	case "high":
		return highStyle
	case "medium":
		return mediumStyle
	default:
		return lowStyle
	}
}

func header(w io.Writer, cols ...string) {
	styled := make([]string, len(cols))
	rules := make([]string, len(cols))
	for i, c := range cols {
		styled[i] = headerStyle.Render(c)
		rules[i] = strings.Repeat("-", len(c))
	}
	fmt.Fprintln(w, strings.Join(styled, "\t"))
	fmt.Fprintln(w, strings.Join(rules, "\t"))
}

func routeName(r models.Route) string {
	if r.ID != "" {
		return r.ID
	}
	if r.Origin != "" || r.Destination != "" {
		return r.Origin + " → " + r.Destination
	}
	return mutedStyle.Render("(unnamed)")
}

func renderScores(out io.Writer, results []scoredRoute, explain bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	cols := []string{"ROUTE", "ETA", "VOLUME", "SCORE", "RISK", "SOURCE"}
	if explain {
		cols = append(cols, "BASE", "REGIONS", "MULT", "EXTERNAL")
	}
	header(w, cols...)

	for _, r := range results {
		label := models.RiskLabel(r.Breakdown.Score)
		outcome := string(r.Outcome)
		if outcome == "" {
			outcome = mutedStyle.Render("cache")
		}
		fmt.Fprintf(w, "%s\t%.1fd\t%.0f\t%d\t%s\t%s",
			routeName(r.Route), r.Route.ETADays, r.Route.Volume,
			r.Breakdown.Score, labelStyle(label).Render(label), outcome)
		if explain {
			ext := fmt.Sprintf("%.2f", r.Breakdown.ExternalImpact)
			if r.Breakdown.UsedDefaultImpact {
				ext += mutedStyle.Render(" (default)")
			}
			fmt.Fprintf(w, "\t%.2f\t%s/%s\t%.2f\t%s",
				r.Breakdown.BaseRisk, r.Breakdown.OriginRegion, r.Breakdown.DestinationRegion,
				r.Breakdown.RegionalMultiplier, ext)
		}
		fmt.Fprintln(w)
	}
}

func renderFactors(out io.Writer, factors []models.WeightedFactor, outcome risk.Outcome) {
	from := string(outcome)
	if from == "" {
		from = "cache"
	}
	fmt.Fprintln(out, headerStyle.Render("Risk factors")+" "+mutedStyle.Render("("+from+")"))
	if len(factors) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No factors. Provide at least one route."))
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()
	header(w, "FACTOR", "CATEGORY", "VALUE", "WEIGHT", "SCORE", "TREND")
	for _, f := range factors {
		cat := string(f.Category)
		if cat == "" {
			cat = mutedStyle.Render(f.Source)
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.4f\t%.2f\t%s\n", f.Name, cat, f.Value, f.Weight, f.Score, trendGlyph(f.Trend))
	}
}

func trendGlyph(t models.Trend) string {
	switch t {
	case models.TrendUp:
		return highStyle.Render("▲ up")
	case models.TrendDown:
		return lowStyle.Render("▼ down")
	default:
		return mutedStyle.Render("● stable")
	}
}

func renderPolicy(out io.Writer, p risk.Policy) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()
	header(w, "CATEGORY", "SHARE")
	for _, c := range p.Categories() {
		share, _ := p.Share(c)
		fmt.Fprintf(w, "%s\t%.0f%%\n", c, share*100)
	}
}

func renderSources(out io.Writer, infos []source.Info) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()
	header(w, "ID", "NAME", "CATEGORY", "KIND", "ACTIVE", "URL")
	for _, s := range infos {
		active := lowStyle.Render("yes")
		if !s.Active {
			active = mutedStyle.Render("no")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Category, s.Kind, active, s.URL)
	}
}
