// Command mailgateway serves the read-only mail API over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/mail-integration/internal/config"
	"github.com/nhle/mail-integration/internal/httpapi"
	"github.com/nhle/mail-integration/internal/logger"
	"github.com/nhle/mail-integration/internal/metrics"
	"github.com/nhle/mail-integration/internal/reader"
	"github.com/nhle/mail-integration/internal/store"
)

func main() {
	configPath := pflag.StringP("config", "c", config.DefaultConfigPath(), "path to the YAML config file")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "mailgateway:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	gin.SetMode(cfg.Server.GinMode)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := httpapi.Options{
		Registry: reader.NewRegistry(cfg.Providers, log),
		Logger:   log,
		Metrics:  metrics.New(promReg),
		Gatherer: promReg,
	}

	if cfg.AccessLog.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.AccessLog.Path), 0o750); err != nil {
			return fmt.Errorf("creating access log directory: %w", err)
		}
		accessLog, err := store.NewSQLiteStore(cfg.AccessLog.Path)
		if err != nil {
			return err
		}
		defer func() {
			if err := accessLog.Close(); err != nil {
				log.Error("closing access log", zap.Error(err))
			}
		}()
		opts.AccessLog = accessLog
		log.Info("access log enabled", zap.String("path", cfg.AccessLog.Path))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.New(opts).Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.Strings("providers", opts.Registry.Names()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving HTTP: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	log.Info("HTTP server stopped")
	return nil
}
