// Command vin-worker answers VIN decode requests on NATS (tms.vin.decode)
// with the same decoder the API uses.
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

	"github.com/maiwanamini/unnamed-tms-backend/engine/vin"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/config"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/fn"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/metrics"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/mid"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

func main() {
	var (
		configPath  = flag.String("config", os.Getenv(config.EnvFile), "path to YAML config file")
		queue       = flag.String("queue", vin.DefaultQueue, "NATS queue group")
		metricsAddr = flag.String("metrics-addr", ":9091", "address for /metrics; empty disables")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := cfg.Logger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *queue, *metricsAddr, logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

// drainTimeout bounds how long in-flight decodes may run after a signal.
const drainTimeout = 35 * time.Second

func run(ctx context.Context, cfg config.Config, queue, metricsAddr string, logger *slog.Logger) error {
	if cfg.NATS.URL == "" {
		return errors.New("NATS_URL is required")
	}

	nc, err := fn.Retry(ctx, fn.DefaultRetry, func(context.Context) fn.Result[*nats.Conn] {
		conn, err := natsutil.Connect(cfg.NATS.URL, "tms-vin-worker", logger)
		return fn.FromPair(conn, err)
	}).Unwrap()
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}

	reg := metrics.New()
	decoder := vin.FromConfig(cfg, mid.Client(cfg.Upstream.Timeout), reg, logger)

	if _, err := decoder.Serve(nc, queue); err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", vin.SubjectDecode, err)
	}
	logger.Info("vin worker listening", "subject", vin.SubjectDecode, "queue", queue, "mode", decoder.Mode())

	var srv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", reg.Handler())
		srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if err := natsutil.Drain(nc, drainTimeout); err != nil {
		logger.Warn("nats drain", "err", err)
	}
	if srv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
	return nil
}
