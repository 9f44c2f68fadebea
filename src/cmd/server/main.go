package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdk_trace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tradevane/tradevane/src/data"
	"github.com/tradevane/tradevane/src/dbutils"
	"github.com/tradevane/tradevane/src/eventpubsub"
	"github.com/tradevane/tradevane/src/oracle"
	"github.com/tradevane/tradevane/src/router"
	"github.com/tradevane/tradevane/src/services"
	"github.com/tradevane/tradevane/src/utils"
)

// setupOTelSDK bootstraps the OpenTelemetry pipeline.
// If it does not return an error, make sure to call shutdown for proper cleanup.
func setupOTelSDK(ctx context.Context) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error

	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	prop := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(prop)

	traceExporter, err := otlptrace.New(ctx, otlptracehttp.NewClient())
	if err != nil {
		return nil, err
	}

	res, _ := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", "tradevane")))

	tracerProvider := sdk_trace.NewTracerProvider(
		sdk_trace.WithBatcher(traceExporter),
		sdk_trace.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		return nil, errors.Join(err, shutdown(ctx))
	}

	meterProvider := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(metricExporter)))
	shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		return nil, errors.Join(err, shutdown(ctx))
	}

	return shutdown, nil
}

func run(configPath, port string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := utils.InitEnvironmentVariables(); err != nil {
		log.Warnf("env bootstrap: %v", err)
	}

	cfg, err := services.LoadSimConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load sim config: %v", err)
	}

	eventpubsub.Init()

	log.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
		log.WarnLevel,
		log.InfoLevel,
	)))

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		otelShutdown, err := setupOTelSDK(ctx)
		if err != nil {
			log.Fatalf("failed to set up telemetry: %v", err)
		}
		defer func() {
			if err := otelShutdown(context.Background()); err != nil {
				log.Errorf("telemetry shutdown: %v", err)
			}
		}()
	}

	postgresHost, err := utils.GetEnv("POSTGRES_HOST")
	if err != nil {
		log.Fatalf("$POSTGRES_HOST not set: %v", err)
	}

	postgresPort := utils.GetEnvOrDefault("POSTGRES_PORT", "5432")

	postgresUser, err := utils.GetEnv("POSTGRES_USER")
	if err != nil {
		log.Fatalf("$POSTGRES_USER not set: %v", err)
	}

	postgresPassword, err := utils.GetEnv("POSTGRES_PASSWORD")
	if err != nil {
		log.Fatalf("$POSTGRES_PASSWORD not set: %v", err)
	}

	postgresDb, err := utils.GetEnv("POSTGRES_DB")
	if err != nil {
		log.Fatalf("$POSTGRES_DB not set: %v", err)
	}

	db, err := dbutils.InitPostgres(postgresHost, postgresPort, postgresUser, postgresPassword, postgresDb)
	if err != nil {
		log.Fatalf("failed to init postgres: %v", err)
	}

	dbService := data.NewDatabaseService(db)

	var fetcher oracle.QuoteFetcher
	var aggregates oracle.AggregateFetcher
	if apiKey := os.Getenv("POLYGON_API_KEY"); apiKey != "" {
		polygonFetcher := oracle.NewPolygonFetcher(apiKey)
		fetcher = polygonFetcher
		aggregates = polygonFetcher
		log.Info("using polygon market data")
	} else {
		fetcher = oracle.NewMockFetcher()
		log.Info("POLYGON_API_KEY not set, using mock market data")
	}

	priceOracle := oracle.NewPriceOracle(fetcher, cfg.PriceTTL, cfg.PriceTimeout)

	var seeds *oracle.CSVBarRepository
	if cfg.BarSeedDir != "" {
		seeds = oracle.NewCSVBarRepository(cfg.BarSeedDir)
	}

	bars := oracle.NewBarSource(seeds, aggregates, priceOracle)
	snapshots := services.NewSnapshotRecorder(bars, &services.StaticHeadlineProvider{}, cfg.SnapshotBarCount)

	engine := services.NewEngine(cfg, priceOracle, bars, dbService, snapshots)
	engine.Start(ctx)

	r := mux.NewRouter()
	router.SetupHandler(r, engine)

	srv := &http.Server{
		Handler: otelhttp.NewHandler(r, "/"),
		Addr:    fmt.Sprintf(":%s", port),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		log.Infof("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	signal.Notify(stop, syscall.SIGTERM)

	log.Info("Main: init complete")

	<-stop
	log.Info("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown: %v", err)
	}

	eventpubsub.WaitAsync()
}

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the market simulation server",
	Long:  `Serves the paper-trading simulation API backed by the local matching engine.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			log.Fatalf("error getting config: %v", err)
		}

		port, err := cmd.Flags().GetString("port")
		if err != nil {
			log.Fatalf("error getting port: %v", err)
		}

		run(configPath, port)
	},
}

func main() {
	rootCmd.Flags().String("config", "sim.yaml", "Path to the sim config yaml file")
	rootCmd.Flags().String("port", utils.GetEnvOrDefault("PORT", "8080"), "HTTP listen port")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
