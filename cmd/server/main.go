// Command server runs the paper feed HTTP API, the gRPC health endpoint and,
// when enabled, the Prometheus metrics listener.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/paper-feed-service/internal/app"
	"github.com/helixir/paper-feed-service/internal/config"
	"github.com/helixir/paper-feed-service/internal/observability"
	"github.com/helixir/paper-feed-service/internal/server"
	httpserver "github.com/helixir/paper-feed-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	}).With().Str("component", "server").Str("instance_id", cfg.Kafka.InstanceID).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	services, err := app.Build(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := services.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close services")
		}
	}()

	// A typed-nil *database.DB would make readiness dereference nil.
	var health httpserver.HealthChecker
	if services.DB != nil {
		health = services.DB
	}
	httpSrv := httpserver.NewServer(httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, services.Repository, health, metrics, logger)

	grpcSrv := server.NewGRPCServer(logger)
	grpcLn, err := net.Listen("tcp", cfg.Server.GRPCAddress())
	if err != nil {
		return fmt.Errorf("listen on gRPC address: %w", err)
	}

	metricsSrv := newMetricsServer(cfg)
	listener := services.NewListener(cfg, metrics)
	if listener != nil {
		defer func() {
			if err := listener.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close event listener")
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := grpcSrv.Serve(grpcLn); err != nil {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return ignoreClosed("HTTP server", httpSrv.Start())
	})
	if metricsSrv != nil {
		g.Go(func() error {
			return ignoreClosed("metrics server", metricsSrv.ListenAndServe())
		})
	}
	if listener != nil {
		g.Go(func() error {
			if err := listener.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("event listener: %w", err)
			}
			return nil
		})
	}

	// Shutdown starts on a signal or on the first failure above.
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info().Msg("received shutdown signal")
		}
		shutdown(cfg.Server.ShutdownTimeout, grpcSrv, httpSrv, metricsSrv, logger)
		return nil
	})

	grpcSrv.SetServing(true)
	ready := logger.Info().
		Str("grpc_address", grpcLn.Addr().String()).
		Str("http_address", cfg.Server.HTTPAddress()).
		Str("source", services.Source.Name()).
		Bool("bookmark_events", listener != nil)
	if metricsSrv != nil {
		ready = ready.Str("metrics_address", metricsSrv.Addr)
	}
	ready.Msg("paper-feed-service is ready")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("paper-feed-service stopped on error")
		return err
	}
	logger.Info().Msg("paper-feed-service shutdown complete")
	return nil
}

func newMetricsServer(cfg *config.Config) *http.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	return &http.Server{
		Addr:         cfg.Server.MetricsAddress(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// shutdown reports gRPC NOT_SERVING before closing the HTTP listeners.
func shutdown(timeout time.Duration, grpcSrv *server.GRPCServer, httpSrv *httpserver.Server, metricsSrv *http.Server, logger zerolog.Logger) {
	grpcSrv.SetServing(false)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}
	grpcSrv.Stop(ctx)
}

func ignoreClosed(name string, err error) error {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}
