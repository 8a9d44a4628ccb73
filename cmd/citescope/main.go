// Command citescope runs the citation analysis service: an HTTP API that
// generates search queries for a website, asks a grounded AI model to
// answer them, and reports which web domains the answers cite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/citescope/citescope/infrastructure/gemini"
	"github.com/citescope/citescope/infrastructure/llm"
	"github.com/citescope/citescope/infrastructure/metrics"
	"github.com/citescope/citescope/infrastructure/querygen"
	"github.com/citescope/citescope/infrastructure/reportstore"
	"github.com/citescope/citescope/infrastructure/resolver"
	"github.com/citescope/citescope/internal/api"
	"github.com/citescope/citescope/internal/application"
	"github.com/citescope/citescope/internal/ports"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "citescope: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg := application.DefaultConfig()
	if configPath != "" {
		loaded, err := application.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	groundingKey := os.Getenv(cfg.Grounding.APIKeyEnv)
	groundedClient, err := gemini.NewClient(ctx, groundingKey,
		gemini.WithModel(cfg.Grounding.Model),
		gemini.WithLogger(log.Named("gemini")))
	if err != nil {
		return fmt.Errorf("grounded client: %w", err)
	}

	textGen, err := llm.NewGenerator(ctx, llm.Config{
		Provider:   cfg.QueryGen.Provider,
		Model:      cfg.QueryGen.Model,
		APIKey:     os.Getenv(cfg.QueryGen.APIKeyEnv),
		MaxRetries: cfg.QueryGen.MaxRetries,
		Timeout:    cfg.QueryGen.Timeout,
	})
	if err != nil {
		return fmt.Errorf("text generator: %w", err)
	}

	queryGen := querygen.New(textGen, querygen.NewHTTPFetcher(nil),
		querygen.WithLogger(log.Named("querygen")))

	collector := metrics.New(prometheus.DefaultRegisterer)

	newResolver := func() ports.URLResolver {
		return resolver.New(
			resolver.WithTimeout(cfg.Analysis.ResolveTimeout),
			resolver.WithRateLimit(cfg.Analysis.ResolveRatePerSecond),
			resolver.WithLogger(log.Named("resolver")),
			resolver.WithMetrics(collector))
	}

	analyzer := application.NewAnalyzer(groundedClient, queryGen, newResolver,
		application.AnalyzerConfig{
			NumQueries:     cfg.Analysis.NumQueries,
			MaxConcurrency: cfg.Analysis.MaxConcurrency,
			QueryTimeout:   cfg.Analysis.QueryTimeout,
			AutoSave:       cfg.Analysis.AutoSave,
		},
		application.WithAnalyzerLogger(log.Named("analyzer")),
		application.WithAnalyzerMetrics(collector),
		application.WithReportStore(reportstore.New(cfg.Analysis.ReportPath,
			reportstore.WithLogger(log.Named("reportstore")))))

	server := api.NewServer(analyzer,
		api.WithLogger(log.Named("api")),
		api.WithMetricsHandler(promhttp.Handler()))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
