package main

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/telescan/telescan/internal/api"
	appParsing "github.com/telescan/telescan/internal/app/parsing"
	"github.com/telescan/telescan/internal/app/results"
	"github.com/telescan/telescan/internal/config"
	"github.com/telescan/telescan/internal/config/envloader"
	"github.com/telescan/telescan/internal/config/fileloader"
	"github.com/telescan/telescan/internal/domain/parsing"
	"github.com/telescan/telescan/internal/infra/eventbus/memory"
	"github.com/telescan/telescan/internal/infra/gateway"
	"github.com/telescan/telescan/pkg/common/logger"
	"github.com/telescan/telescan/pkg/common/otel"
)

const serviceType = "telescan-client"

func main() {
	// Set the correct number of threads for the service.
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		stdlog.Fatalf("failed to get hostname: %v", err)
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n",
				r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("TELESCAN-CLIENT-%s", hostname)
	metadata := map[string]string{
		"service":  svcName,
		"hostname": hostname,
		"app":      serviceType,
	}

	log := logger.NewWithMetadata(os.Stdout, logger.LevelInfo, svcName, traceIDFn, logEvents, metadata)

	ctx := context.Background()
	if err := run(ctx, log, hostname); err != nil {
		log.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, hostname string) error {
	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0))

	// -------------------------------------------------------------------------
	// Configuration

	var loader config.Loader = envloader.NewEnvLoader()
	if path := os.Getenv("TELESCAN_CONFIG_FILE"); path != "" {
		loader = fileloader.NewFileLoader(path)
	}

	cfg, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// -------------------------------------------------------------------------
	// Start Tracing Support

	var tracer trace.Tracer
	if cfg.Telemetry.Enabled {
		log.Info(ctx, "startup", "status", "initializing tracing support")

		traceProvider, teardown, err := otel.InitTelemetry(log, otel.Config{
			ServiceName:      serviceType,
			ExporterEndpoint: cfg.Telemetry.Endpoint,
			ExcludedRoutes: map[string]struct{}{
				"/v1/health": {},
			},
			Probability: cfg.Telemetry.SampleRate,
			ResourceAttributes: map[string]string{
				"library.language": "go",
				"hostname":         hostname,
				"environment":      cfg.Telemetry.Environment,
			},
			InsecureExporter: true,
		})
		if err != nil {
			return fmt.Errorf("starting tracing: %w", err)
		}
		defer teardown(ctx)

		tracer = traceProvider.Tracer(serviceType)
	} else {
		tracer = noop.NewTracerProvider().Tracer(serviceType)
	}

	// -------------------------------------------------------------------------
	// Infrastructure

	httpClient := &http.Client{
		Timeout:   cfg.Service.Timeout.Std(),
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	client := gateway.NewClient(
		cfg.Service.BaseURL,
		cfg.Service.AuthToken,
		cfg.Service.RateLimit,
		cfg.Service.RateBurst,
		httpClient,
		log,
		tracer,
	)

	if err := waitForService(ctx, log, client); err != nil {
		return fmt.Errorf("parsing service not reachable: %w", err)
	}

	bus := memory.NewBroker(log)
	defer bus.Close()

	// -------------------------------------------------------------------------
	// Application services

	mp := otel.GetMeterProvider()
	parsingMetrics, err := appParsing.NewParsingMetrics(mp)
	if err != nil {
		return fmt.Errorf("creating parsing metrics: %w", err)
	}
	resultsMetrics, err := results.NewResultsMetrics(mp)
	if err != nil {
		return fmt.Errorf("creating results metrics: %w", err)
	}

	pageCache := results.NewPageCache(
		client,
		cfg.Cache.PageSize,
		cfg.Cache.FreshFor.Std(),
		cfg.Cache.EvictAfter.Std(),
		parsing.NewRealTimeProvider(),
		resultsMetrics,
		log,
		tracer,
	)

	poller := appParsing.NewStatusPoller(client, cfg.Jobs.PollInterval.Std(), parsingMetrics, log, tracer)
	capacity := appParsing.NewCapacityEnforcer(client, cfg.Jobs.MaxItems, bus, parsingMetrics, log, tracer)
	controller := appParsing.NewJobController(client, capacity, poller, bus, pageCache, parsingMetrics, log, tracer)

	progress := api.NewProgressStore(log)
	if err := progress.Register(ctx, bus); err != nil {
		return fmt.Errorf("registering progress store: %w", err)
	}

	server := api.NewServer(cfg, log, tracer, controller, pageCache, client, progress)

	// -------------------------------------------------------------------------
	// Run

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return server.Start(gctx) })
	g.Go(func() error {
		pageCache.RunSweeper(gctx)
		return nil
	})

	log.Info(runCtx, "startup", "status", "client running")
	if err := g.Wait(); err != nil {
		return fmt.Errorf("run group: %w", err)
	}

	log.Info(ctx, "shutdown", "status", "client stopped")
	return nil
}

// waitForService blocks until the parsing service answers, retrying with
// exponential backoff for up to two minutes.
func waitForService(ctx context.Context, log *logger.Logger, client *gateway.Client) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 2 * time.Minute
	expBackoff.InitialInterval = 2 * time.Second

	operation := func() error {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if _, err := client.ListTokens(probeCtx); err != nil {
			log.Warn(ctx, "parsing service not ready, retrying", "error", err)
			return err
		}
		return nil
	}

	return backoff.Retry(operation, expBackoff)
}
