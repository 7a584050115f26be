// Package main is the entry point for the galleria API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/onnwee/galleria/internal/access"
	"github.com/onnwee/galleria/internal/api"
	"github.com/onnwee/galleria/internal/auth"
	"github.com/onnwee/galleria/internal/config"
	"github.com/onnwee/galleria/internal/content"
	"github.com/onnwee/galleria/internal/health"
	"github.com/onnwee/galleria/internal/live"
	"github.com/onnwee/galleria/internal/middleware"
	"github.com/onnwee/galleria/internal/payment"
	"github.com/onnwee/galleria/internal/preview"
	"github.com/onnwee/galleria/internal/reaction"
	"github.com/onnwee/galleria/internal/tracing"
	"github.com/onnwee/galleria/internal/unlock"
)

func main() {
	configFile := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Galleria API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "galleria-api",
		Enabled:      cfg.OTLPEndpoint != "",
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: 1.0,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Repositories: Postgres when configured, in-memory otherwise.
	var (
		contentRepo  content.Repository
		reactionRepo reaction.Repository
		unlockRepo   unlock.Repository
		processed    payment.ProcessedRepository
		checkers     = make(map[string]health.Checker)
	)

	reactionMetrics := reaction.NewMetrics()
	if err := reactionMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register reaction metrics", "error", err)
		os.Exit(1)
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		contentRepo = content.NewPostgresRepository(db, logger)
		reactionRepo = reaction.NewPostgresRepository(db, logger, reactionMetrics)
		unlockRepo = unlock.NewPostgresRepository(db, logger)
		processed = payment.NewPostgresProcessedRepository(db)
		checkers["postgres"] = health.NewDBChecker(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
		contentRepo = content.NewInMemoryRepository()
		reactionRepo = reaction.NewInMemoryRepository()
		unlockRepo = unlock.NewInMemoryRepository()
		processed = payment.NewInMemoryProcessedRepository()
	}

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}

	var rateLimitStore middleware.RateLimitStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient, httpMetrics)
		checkers["redis"] = health.NewRedisChecker(redisClient)
	} else {
		store := middleware.NewInMemoryRateLimitStore()
		rateLimitStore = store
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				store.Cleanup()
			}
		}()
	}

	var (
		signer  access.AssetSigner
		fetcher api.ObjectFetcher
	)
	if cfg.MediaConfigured() {
		s3Signer, err := access.NewS3AssetSigner(access.S3Config{
			AccountID:       cfg.MediaAccountID,
			AccessKeyID:     cfg.MediaAccessKeyID,
			AccessKeySecret: cfg.MediaSecretAccessKey,
			Bucket:          cfg.MediaBucketName,
		})
		if err != nil {
			logger.Error("failed to configure asset signer", "error", err)
			os.Exit(1)
		}
		signer = s3Signer
		fetcher = s3Signer
	} else {
		logger.Warn("media storage not configured, access decisions omit asset urls")
	}

	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	gate := access.NewGate(unlockRepo, signer, logger)
	gate.SetSignExpiry(time.Duration(cfg.PresignExpiryMins) * time.Minute)
	broadcaster := live.NewStatsBroadcaster(logger)
	webhookProcessor := payment.NewWebhookProcessor(cfg.StripeWebhookSecret, processed, unlockRepo, logger)

	reactionHandlers := api.NewReactionHandlers(contentRepo, reactionRepo, broadcaster, cfg.AutoRegisterContent, cfg.BulkBatchLimit)
	accessHandlers := api.NewAccessHandlers(contentRepo, gate)
	var previewHandlers *api.PreviewHandlers
	if fetcher != nil {
		previewHandlers = api.NewPreviewHandlers(contentRepo, fetcher, preview.NewRenderer(preview.DefaultConfig()))
		accessHandlers.EnablePreviews()
	}
	unlockHandlers := api.NewUnlockHandlers(unlockRepo)
	contentHandlers := api.NewContentHandlers(contentRepo)
	webhookHandlers := api.NewWebhookHandlers(webhookProcessor)
	healthHandlers := api.NewHealthHandlers(checkers)

	allowedOrigins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowedOrigins[origin] = true
	}
	liveHandlers := api.NewLiveHandlers(broadcaster, func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return allowedOrigins[origin]
	})

	// Toggles get a tighter per-viewer window than the global limit.
	toggleLimiter := middleware.RateLimiter(rateLimitStore, middleware.DefaultToggleLimit(), middleware.ViewerKeyFunc())

	mux := http.NewServeMux()
	mux.Handle("POST /reactions/toggle", toggleLimiter(http.HandlerFunc(reactionHandlers.Toggle)))
	mux.HandleFunc("GET /reactions/stats", reactionHandlers.Stats)
	mux.HandleFunc("POST /reactions/bulk", reactionHandlers.Bulk)
	mux.HandleFunc("GET /reactions/live", liveHandlers.Subscribe)
	mux.HandleFunc("GET /content/{id}/access", accessHandlers.CheckAccess)
	if previewHandlers != nil {
		mux.HandleFunc("GET /content/{id}/preview", previewHandlers.ServePreview)
	}
	mux.HandleFunc("POST /unlocks/grant", unlockHandlers.Grant)
	mux.HandleFunc("POST /contents", contentHandlers.Register)
	mux.HandleFunc("POST /webhooks/stripe", webhookHandlers.HandleStripeWebhook)
	mux.HandleFunc("GET /health", healthHandlers.Health)
	mux.HandleFunc("GET /ready", healthHandlers.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Middleware chain, innermost first. Identity must resolve before the
	// rate limiter so per-viewer keys see the subject.
	var handler http.Handler = mux
	handler = middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.ViewerKeyFunc())(handler)
	handler = middleware.Identity(jwtService)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		MaxAge:           300,
	})(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)
	if tracerProvider.IsEnabled() {
		handler = otelhttp.NewHandler(handler, "galleria-api")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracing", "error", err)
	}

	logger.Info("server stopped")
}
