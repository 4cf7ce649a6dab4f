package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vngold/quote-api/internal/cache"
	"github.com/vngold/quote-api/internal/config"
	"github.com/vngold/quote-api/internal/handler"
	"github.com/vngold/quote-api/internal/middleware"
	"github.com/vngold/quote-api/internal/obs"
	"github.com/vngold/quote-api/internal/quote"
	"github.com/vngold/quote-api/internal/source"
	"github.com/vngold/quote-api/internal/token"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Local development convenience; the file is absent in production.
	_ = godotenv.Load()

	cfg := config.Load()

	// Redis edge cache + token store (retry up to 30s for the sidecar or
	// ExternalSecret to come up)
	var edge *cache.Redis
	var err error
	for i := 0; i < 6; i++ {
		edge, err = cache.NewRedis(cfg.RedisURL, cfg.RedisPassword)
		if err == nil {
			break
		}
		logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		logger.Error("failed to connect to redis after retries", "error", err)
		os.Exit(1)
	}
	defer edge.Close()
	logger.Info("redis connected")

	tokens := token.NewManager(edge, cfg.VnappmobURL, logger)

	spot := source.NewSpot()
	fx := source.NewFX(tokens, cfg.VnappmobURL)
	retail := source.NewRetail(tokens, cfg.VnappmobURL)

	recorder := obs.NewRecorder()

	orchestrator := quote.New(quote.Config{
		Memory:      cache.NewMemory(),
		Edge:        edge,
		Recorder:    recorder,
		Logger:      logger,
		QuoteTTL:    cfg.QuoteTTL,
		FXTTL:       cfg.FXTTL,
		FetchSpot:   spot.Fetch,
		FetchFX:     fx.Fetch,
		FetchRetail: retail.Fetch,
	})

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Liveness())

	r.Route("/api", func(r chi.Router) {
		r.Get("/quote", handler.Quote(orchestrator))
		r.Get("/health", handler.Health(recorder, version))
		r.Get("/debug", handler.Debug(recorder, cfg.DebugSecret))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
