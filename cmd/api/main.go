package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookdash/internal/auth"
	"bookdash/internal/book"
	"bookdash/internal/config"
	"bookdash/internal/logging"
	"bookdash/internal/metrics"
	"bookdash/internal/server"
	"bookdash/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet.
		logging.Must("info", "json").Fatal("invalid configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logging.Must("info", "json").Fatal("invalid logging configuration", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	backend, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()
	logger.Info("store ready", zap.String("driver", backend.Driver))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	keys := auth.NewKeySet(cfg.Auth.JWKSURL,
		auth.WithMaxAge(cfg.Auth.RefreshInterval),
		auth.WithKeySetLogger(logger.Named("jwks")),
		auth.WithKeySetMetrics(collector),
	)
	verifier := auth.NewVerifier(auth.VerifierConfig{
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   cfg.Auth.Leeway,
	}, keys)
	guard := auth.NewGuard(verifier, logger.Named("auth"), collector)

	router := server.NewRouter(server.RouterDeps{
		Logger:         logger,
		Metrics:        collector,
		Gatherer:       reg,
		Guard:          guard,
		Books:          book.NewService(backend.Repo),
		Store:          backend,
		AllowedOrigins: cfg.Origins(),
		EnableHSTS:     cfg.EnableHSTS,
		TrustProxy:     cfg.TrustProxy,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		RequestTimeout: cfg.RequestTimeout,
	})
	defer router.Close()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", cfg.Addr),
			zap.String("issuer", cfg.Auth.Issuer),
			zap.Strings("allowed_origins", cfg.Origins()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
