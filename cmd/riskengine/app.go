package main

import (
	"fmt"
	"log/slog"

	"github.com/seenimoa/routerisk/internal/config"
	"github.com/seenimoa/routerisk/internal/infra"
	"github.com/seenimoa/routerisk/internal/metrics"
	"github.com/seenimoa/routerisk/internal/risk"
	"github.com/seenimoa/routerisk/internal/source"
)

// app holds the wired components shared by the commands.
type app struct {
	metrics   *metrics.Metrics
	collector *source.Collector
	engine    *risk.Engine
}

// newApp wires sources, the engine, and metrics from cfg.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, fmt.Errorf("category weights: %w", err)
	}

	m := metrics.New()
	limiter := infra.NewHostLimiter(cfg.Sources.RequestsPerSecond, 1)
	client := infra.NewHTTPClient(infra.HTTPOptions{
		Timeout:  cfg.Sources.HTTPTimeout,
		RetryMax: cfg.Sources.RetryMax,
		Logger:   logger,
	})

	collector := source.NewCollector(cfg.Sources.Items,
		source.WithFetcher(source.KindSimulated, source.NewSimulatedFetcher(cfg.Sources.Seed, 0)),
		source.WithFetcher(source.KindHTML, source.NewHTMLFetcher(client, limiter)),
		source.WithFetcher(source.KindRSS, source.NewFeedFetcher(client, limiter)),
		source.WithCacheTTL(cfg.Sources.CacheTTL),
		source.WithConcurrency(cfg.Sources.ConcurrentFetches),
		source.WithCollectorLogger(logger),
		source.WithObserver(m),
	)

	engine := risk.NewEngine(collector,
		risk.WithConfig(cfg.EngineSettings()),
		risk.WithPolicy(policy),
		risk.WithLogger(logger),
		risk.WithRecorder(m),
	)

	return &app{metrics: m, collector: collector, engine: engine}, nil
}

