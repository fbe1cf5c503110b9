// Package source provides the indicator sources the risk engine aggregates.
// It defines source descriptors, a concurrent Collector with a per-source
// scrape cache, and fetchers for simulated, HTML, and RSS sources.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/seenimoa/routerisk/internal/infra"
	"github.com/seenimoa/routerisk/pkg/models"
)

// Kind selects the fetcher used for a source.
type Kind string

const (
	KindSimulated Kind = "simulated"
	KindHTML      Kind = "html"
	KindRSS       Kind = "rss"
)

// Valid reports whether k is a known source kind.
func (k Kind) Valid() bool {
	return k == KindSimulated || k == KindHTML || k == KindRSS
}

// Selectors locate indicator rows on an HTML page. Name and Value are
// evaluated relative to each Row match; Trend and Confidence are optional.
type Selectors struct {
	Row        string `json:"row"                  mapstructure:"row"        yaml:"row"`
	Name       string `json:"name"                 mapstructure:"name"       yaml:"name"`
	Value      string `json:"value"                mapstructure:"value"      yaml:"value"`
	Trend      string `json:"trend,omitempty"      mapstructure:"trend"      yaml:"trend,omitempty"`
	Confidence string `json:"confidence,omitempty" mapstructure:"confidence" yaml:"confidence,omitempty"`
}

// Descriptor configures one indicator source.
type Descriptor struct {
	ID       string          `json:"id"       mapstructure:"id"       yaml:"id"`
	Name     string          `json:"name"     mapstructure:"name"     yaml:"name"`
	URL      string          `json:"url"      mapstructure:"url"      yaml:"url"`
	Category models.Category `json:"category" mapstructure:"category" yaml:"category"`
	Kind     Kind            `json:"kind"     mapstructure:"kind"     yaml:"kind"`
	Active   bool            `json:"active"   mapstructure:"active"   yaml:"active"`

	// HTML sources.
	Selectors Selectors `json:"selectors,omitempty" mapstructure:"selectors" yaml:"selectors,omitempty"`

	// RSS sources: items matching any keyword count toward Indicator.
	Keywords  []string `json:"keywords,omitempty"  mapstructure:"keywords"  yaml:"keywords,omitempty"`
	Indicator string   `json:"indicator,omitempty" mapstructure:"indicator" yaml:"indicator,omitempty"`

	// Confidence applied to scraped indicators that carry none.
	Confidence int `json:"confidence,omitempty" mapstructure:"confidence" yaml:"confidence,omitempty"`
}

// Validate checks the descriptor is usable.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return errors.New("source id is required")
	}
	if !d.Category.Valid() {
		return fmt.Errorf("source %s: unknown category %q", d.ID, d.Category)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("source %s: unknown kind %q", d.ID, d.Kind)
	}
	if d.Confidence < 0 || d.Confidence > 100 {
		return fmt.Errorf("source %s: confidence %d out of range", d.ID, d.Confidence)
	}
	switch d.Kind {
	case KindHTML:
		if d.URL == "" || d.Selectors.Row == "" || d.Selectors.Name == "" || d.Selectors.Value == "" {
			return fmt.Errorf("source %s: html sources need a url and row, name, value selectors", d.ID)
		}
	case KindRSS:
		if d.URL == "" || len(d.Keywords) == 0 {
			return fmt.Errorf("source %s: rss sources need a url and keywords", d.ID)
		}
	}
	return nil
}

// DefaultDescriptors returns the built-in simulated sources, one per category.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{ID: "economic-1", Name: "Global Economic Indicators", URL: "https://tradingeconomics.com/indicators", Category: models.CategoryEconomic, Kind: KindSimulated, Active: true},
		{ID: "geopolitical-1", Name: "Political Risk Index", URL: "https://www.prsgroup.com", Category: models.CategoryGeopolitical, Kind: KindSimulated, Active: true},
		{ID: "weather-1", Name: "Global Weather Patterns", URL: "https://www.wmo.int", Category: models.CategoryWeather, Kind: KindSimulated, Active: true},
		{ID: "supply-chain-1", Name: "Supply Chain Disruptions", URL: "https://www.freightwaves.com", Category: models.CategorySupplyChain, Kind: KindSimulated, Active: true},
	}
}

// Fetcher retrieves the current indicators of one source.
type Fetcher interface {
	Fetch(ctx context.Context, d Descriptor) ([]models.Indicator, error)
}

// --- Sentinel errors ---

// ErrAllSourcesFailed is returned when every active source failed.
var ErrAllSourcesFailed = errors.New("all indicator sources failed")

// ErrNoActiveSources is returned when no source is active.
var ErrNoActiveSources = errors.New("no active indicator sources")

// ErrUnsupportedKind is returned for a source kind with no registered fetcher.
var ErrUnsupportedKind = errors.New("unsupported source kind")

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// doGet performs a rate-limited GET and returns the response body.
// The caller is responsible for closing the returned ReadCloser.
func doGet(ctx context.Context, client *http.Client, limiter *infra.HostLimiter, url, accept string) (io.ReadCloser, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx, url); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return resp.Body, nil
}
