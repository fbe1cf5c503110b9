package source

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/routerisk/internal/infra"
	"github.com/seenimoa/routerisk/pkg/models"
)

// FeedFetcher turns an RSS or Atom feed of alerts into a single indicator:
// the percentage of items mentioning any of the source's keywords.
type FeedFetcher struct {
	client  *http.Client
	limiter *infra.HostLimiter

	mu   sync.Mutex
	last map[string]float64 // previous value per source ID
}

// NewFeedFetcher creates a feed fetcher. A nil client gets a retrying
// default; a nil limiter disables rate limiting.
func NewFeedFetcher(client *http.Client, limiter *infra.HostLimiter) *FeedFetcher {
	if client == nil {
		client = infra.NewHTTPClient(infra.HTTPOptions{RetryMax: 2})
	}
	return &FeedFetcher{
		client:  client,
		limiter: limiter,
		last:    make(map[string]float64),
	}
}

// Fetch parses d.URL and scores keyword matches. The trend compares with
// the previous successful fetch of the same source.
func (f *FeedFetcher) Fetch(ctx context.Context, d Descriptor) ([]models.Indicator, error) {
	body, err := doGet(ctx, f.client, f.limiter, d.URL, "application/rss+xml, application/atom+xml, application/xml, text/xml")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.ID, err)
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", d.ID, err)
	}

	matches := 0
	for _, item := range feed.Items {
		if matchesAny(item.Title+" "+cleanHTML(item.Description), d.Keywords) {
			matches++
		}
	}
	value := math.Min(100, math.Round(float64(matches)*100/math.Max(1, float64(len(feed.Items)))))

	name := d.Indicator
	if name == "" {
		name = d.Name + " Alerts"
	}
	confidence := d.Confidence
	if confidence == 0 {
		confidence = DefaultScrapedConfidence
	}

	return []models.Indicator{{
		Name:       name,
		Value:      value,
		Category:   d.Category,
		Trend:      f.trend(d.ID, value),
		Confidence: confidence,
		Source:     d.Name,
	}}, nil
}

func (f *FeedFetcher) trend(id string, value float64) models.Trend {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, seen := f.last[id]
	f.last[id] = value
	switch {
	case !seen || value == prev:
		return models.TrendStable
	case value > prev:
		return models.TrendUp
	default:
		return models.TrendDown
	}
}

// matchesAny reports whether text contains any keyword, case-insensitively.
func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
