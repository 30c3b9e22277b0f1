// Package main implements the TMS API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maiwanamini/unnamed-tms-backend/engine/fleet"
	"github.com/maiwanamini/unnamed-tms-backend/engine/geo"
	"github.com/maiwanamini/unnamed-tms-backend/engine/vin"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/config"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/fn"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/metrics"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/mid"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/natsutil"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/resilience"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const serviceName = "tms-api"

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvFile), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := cfg.Logger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	client := mid.Client(cfg.Upstream.Timeout)

	// --- Connect to Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URL, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Pass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(context.Background())

	if _, err := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[struct{}] {
		return fn.FromPair(struct{}{}, driver.VerifyConnectivity(ctx))
	}).Unwrap(); err != nil {
		return fmt.Errorf("neo4j connect: %w", err)
	}
	store := fleet.NewStore(driver, "")
	if err := fleet.EnsureSchema(ctx, store); err != nil {
		return fmt.Errorf("neo4j schema: %w", err)
	}

	// --- Connect to NATS (optional) ---
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = fn.Retry(ctx, fn.DefaultRetry, func(context.Context) fn.Result[*nats.Conn] {
			conn, err := natsutil.Connect(cfg.NATS.URL, serviceName, logger)
			return fn.FromPair(conn, err)
		}).Unwrap()
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
	}

	// --- Build services ---
	decoder := vin.FromConfig(cfg, client, reg, logger)
	bo := vin.BreakerOpts(cfg.Upstream, reg, logger)
	bo.Name = "mapbox"
	mapbox := geo.New(geo.Config{
		AccessToken: cfg.Mapbox.AccessToken,
		HTTPClient:  client,
		Breaker:     resilience.NewBreaker(bo),
	}, logger)

	handler := newServer(deps{
		decoder:   decoder,
		publisher: vin.NewPublisher(nc, decoder.Mode(), logger),
		geo:       mapbox,
		trucks:    fleet.NewService(store, decoder, logger),
		metrics:   reg,
		logger:    logger,
	}, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "vin_mode", decoder.Mode())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// deps are the services the HTTP handlers call.
type deps struct {
	decoder   vinDecoder
	publisher *vin.Publisher
	geo       geoClient
	trucks    truckService
	metrics   *metrics.Registry
	logger    *slog.Logger
}

// newServer builds the routed, middleware-wrapped API handler.
func newServer(d deps, cfg config.Config) http.Handler {
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.metrics == nil {
		d.metrics = metrics.New()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", d.metrics.Handler())

	mux.HandleFunc("GET /api/vin/decode", handleDecodeVIN(d.decoder, d.publisher, d.logger))

	mux.HandleFunc("GET /api/geo/autocomplete", handleAutocomplete(d.geo, d.logger))
	mux.HandleFunc("GET /api/geo/directions", handleDirections(d.geo, d.logger))

	mux.HandleFunc("GET /api/trucks", handleListTrucks(d.trucks, d.logger))
	mux.HandleFunc("POST /api/trucks", handleCreateTruck(d.trucks, d.logger))
	mux.HandleFunc("POST /api/trucks/prefill", handlePrefillTruck(d.trucks, d.logger))
	mux.HandleFunc("GET /api/trucks/{id}", handleGetTruck(d.trucks, d.logger))
	mux.HandleFunc("PUT /api/trucks/{id}", handleUpdateTruck(d.trucks, d.logger))
	mux.HandleFunc("DELETE /api/trucks/{id}", handleDeleteTruck(d.trucks, d.logger))

	return mid.Chain(mux,
		mid.Recover(d.logger),
		mid.RequestID(),
		mid.Logger(d.logger),
		mid.Metrics(d.metrics, func(r *http.Request) string {
			_, pattern := mux.Handler(r)
			return pattern
		}),
		mid.CORS(cfg.CORSOrigin),
		mid.RateLimit(mid.RateLimitOpts{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst}),
		mid.OTel(serviceName),
	)
}
