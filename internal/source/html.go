package source

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/routerisk/internal/infra"
	"github.com/seenimoa/routerisk/pkg/models"
)

// DefaultScrapedConfidence is used when neither the page nor the descriptor
// gives a confidence.
const DefaultScrapedConfidence = 70

// HTMLFetcher scrapes indicator tables from web pages.
type HTMLFetcher struct {
	client  *http.Client
	limiter *infra.HostLimiter
}

// NewHTMLFetcher creates an HTML fetcher. A nil client gets a retrying
// default; a nil limiter disables rate limiting.
func NewHTMLFetcher(client *http.Client, limiter *infra.HostLimiter) *HTMLFetcher {
	if client == nil {
		client = infra.NewHTTPClient(infra.HTTPOptions{RetryMax: 2})
	}
	return &HTMLFetcher{client: client, limiter: limiter}
}

// Fetch downloads d.URL and reads one indicator per row selector match.
// Rows with no name or an unparsable value are skipped.
func (h *HTMLFetcher) Fetch(ctx context.Context, d Descriptor) ([]models.Indicator, error) {
	body, err := doGet(ctx, h.client, h.limiter, d.URL, "text/html")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.ID, err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s HTML: %w", d.ID, err)
	}

	sel := d.Selectors
	var out []models.Indicator
	doc.Find(sel.Row).Each(func(_ int, row *goquery.Selection) {
		name := strings.TrimSpace(row.Find(sel.Name).First().Text())
		if name == "" {
			return
		}
		val, ok := parseNumber(row.Find(sel.Value).First().Text())
		if !ok {
			return
		}

		ind := models.Indicator{
			Name:       name,
			Value:      val,
			Category:   d.Category,
			Trend:      models.TrendStable,
			Confidence: d.Confidence,
			Source:     d.Name,
		}
		if sel.Trend != "" {
			ind.Trend = parseTrend(row.Find(sel.Trend).First())
		}
		if sel.Confidence != "" {
			if c, ok := parseNumber(row.Find(sel.Confidence).First().Text()); ok {
				ind.Confidence = int(c)
			}
		}
		if ind.Confidence == 0 {
			ind.Confidence = DefaultScrapedConfidence
		}
		out = append(out, ind)
	})
	return out, nil
}

// parseNumber parses figures like "1,234.5", "3.2%", or "-0.4".
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(",", "", "%", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseTrend reads a trend from cell text or, failing that, its class list.
func parseTrend(cell *goquery.Selection) models.Trend {
	text := strings.ToLower(strings.TrimSpace(cell.Text()))
	class, _ := cell.Attr("class")
	for _, s := range []string{text, strings.ToLower(class)} {
		switch {
		case strings.Contains(s, "up"), strings.Contains(s, "▲"), strings.Contains(s, "rising"):
			return models.TrendUp
		case strings.Contains(s, "down"), strings.Contains(s, "▼"), strings.Contains(s, "falling"):
			return models.TrendDown
		}
	}
	return models.TrendStable
}
