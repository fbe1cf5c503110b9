// riskengine aggregates external risk indicators into weighted factors and
// scores supply-chain routes against them.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/routerisk/api"
	"github.com/seenimoa/routerisk/internal/config"
	"github.com/seenimoa/routerisk/internal/logging"
	"github.com/seenimoa/routerisk/internal/refresher"
	"github.com/seenimoa/routerisk/internal/report"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root command.
var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "riskengine",
	Short: "Route risk factor aggregation engine",
	Long: `riskengine collects risk indicators from external sources, normalizes
them into confidence-weighted factors under a category policy, and scores
supply-chain routes against the cached factor set.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger = logging.Init(cfg.Logging, os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(factorsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(sourcesCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("riskengine %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server. When engine.refresh_schedule is set, factors
are refreshed in the background on that schedule and once at startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}

		api.Version = version
		srv := api.NewServer(cfg, a.engine, a.collector, a.metrics, logger)

		if cfg.Engine.RefreshSchedule != "" {
			r, err := refresher.New(a.engine, cfg.Engine.RefreshSchedule, logger)
			if err != nil {
				return err
			}
			r.OnRefresh(srv.NotifyRefresh)
			r.Start()
			go r.RunNow()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = r.Stop(stopCtx)
			}()
		}

		return srv.ListenAndServe(ctx, cfg.API.Addr())
	},
}

// --- Score Command ---

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score routes from a YAML or JSON file",
	Long: `Score every route in a file. Without --fresh nothing is fetched and the
default external impact is used; --fresh fetches live factors first.

Examples:
  riskengine score --routes routes.yaml
  riskengine score --routes routes.json --fresh --explain`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("routes")
		fresh, _ := cmd.Flags().GetBool("fresh")
		explain, _ := cmd.Flags().GetBool("explain")

		routes, err := loadRoutes(path)
		if err != nil {
			return err
		}
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Engine.FetchTimeout+5*time.Second)
		defer cancel()

		results := make([]scoredRoute, 0, len(routes))
		for _, route := range routes {
			res := scoredRoute{Route: route}
			if fresh {
				res.Breakdown, res.Outcome = a.engine.ExplainRouteFresh(ctx, route)
			} else {
				res.Breakdown = a.engine.ExplainRouteSync(route)
			}
			results = append(results, res)
		}
		renderScores(os.Stdout, results, explain)
		return nil
	},
}

func init() {
	scoreCmd.Flags().String("routes", "", "routes file (YAML or JSON)")
	scoreCmd.Flags().Bool("fresh", false, "fetch live factors before scoring")
	scoreCmd.Flags().Bool("explain", false, "show the score breakdown")
	_ = scoreCmd.MarkFlagRequired("routes")
}

// --- Factors Command ---

var factorsCmd = &cobra.Command{
	Use:   "factors",
	Short: "Show the weighted risk factors for a set of routes",
	Long: `Show the weighted risk factors for a set of routes. Without --refresh
the factors come from the empty process cache, which is the fallback table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("routes")
		refresh, _ := cmd.Flags().GetBool("refresh")

		routes, err := loadRoutes(path)
		if err != nil {
			return err
		}
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}

		if !refresh {
			renderFactors(os.Stdout, a.engine.CalculateRiskFactors(routes), "")
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Engine.FetchTimeout+5*time.Second)
		defer cancel()

		factors, outcome := a.engine.FetchRiskFactors(ctx, routes)
		renderFactors(os.Stdout, factors, outcome)
		return nil
	},
}

func init() {
	factorsCmd.Flags().String("routes", "", "routes file (YAML or JSON)")
	factorsCmd.Flags().Bool("refresh", false, "fetch live factors first")
	_ = factorsCmd.MarkFlagRequired("routes")
}

// --- Report Command ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a route risk report",
	Long: `Render an HTML or text report of route scores and risk factors.

Examples:
  riskengine report --routes routes.yaml --refresh --out report.html
  riskengine report --routes routes.yaml --format text`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("routes")
		refresh, _ := cmd.Flags().GetBool("refresh")
		formatName, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")

		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}
		routes, err := loadRoutes(path)
		if err != nil {
			return err
		}
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Engine.FetchTimeout+5*time.Second)
		defer cancel()

		out, err := report.Generate(report.Collect(ctx, a.engine, routes, refresh), format, report.DefaultConfig())
		if err != nil {
			return err
		}
		if outPath == "" {
			fmt.Print(out)
			return nil
		}
		if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", outPath)
		return nil
	},
}

func init() {
	reportCmd.Flags().String("routes", "", "routes file (YAML or JSON)")
	reportCmd.Flags().Bool("refresh", false, "fetch live factors first")
	reportCmd.Flags().String("format", "html", "output format (html, text)")
	reportCmd.Flags().String("out", "", "write the report to a file instead of stdout")
	_ = reportCmd.MarkFlagRequired("routes")
}

// --- Policy Command ---

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show the category weight policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := cfg.Policy()
		if err != nil {
			return err
		}
		renderPolicy(os.Stdout, p)
		return nil
	},
}

// --- Sources Command ---

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured indicator sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		renderSources(os.Stdout, a.collector.Sources())
		return nil
	},
}
