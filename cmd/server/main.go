// Package main is the entry point for the Participa DF ouvidoria server.
// It provides a REST API for citizen manifestation intake with AI-assisted
// classification and privacy gating, protocol-based lookup, a public feed
// of clean/redacted reports, and an authenticated triage dashboard.
//
// Architecture:
//   - Free-text reports are classified by Gemini into a fixed category set
//   - The same call judges whether the text contains personal data (PII)
//   - Anonymous + PII-free reports are auto-published; everything else
//     stays private until staff redacts and publishes it
//   - Classification failures always fail closed (assume PII present)
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/participa-df/ouvidoria-server/internal/cache"
	"github.com/participa-df/ouvidoria-server/internal/classifier"
	"github.com/participa-df/ouvidoria-server/internal/config"
	"github.com/participa-df/ouvidoria-server/internal/database"
	"github.com/participa-df/ouvidoria-server/internal/handlers"
	"github.com/participa-df/ouvidoria-server/internal/middleware"
	"github.com/participa-df/ouvidoria-server/internal/services"
	"github.com/participa-df/ouvidoria-server/internal/uploads"
	"go.uber.org/zap"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("Failed to load config: %v", err)
	}

	sugar.Infow("Starting Participa DF Ouvidoria Server",
		"port", cfg.Port,
		"env", cfg.Environment,
		"gemini_model", cfg.GeminiModel,
	)

	ctx := context.Background()

	// Initialize database connection pool and schema
	db, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.InitSchema(ctx, db, sugar); err != nil {
		sugar.Fatalf("Failed to initialize schema: %v", err)
	}

	// Optional Redis cache for the public feed and dashboard stats
	feedCache, err := cache.New(ctx, cfg.RedisURL, cfg.FeedCacheTTL, sugar)
	if err != nil {
		sugar.Fatalf("Failed to connect to redis: %v", err)
	}
	if feedCache != nil {
		defer feedCache.Close()
	}

	// Attachment storage
	store, err := uploads.NewStore(cfg.UploadDir)
	if err != nil {
		sugar.Fatalf("Failed to prepare upload directory: %v", err)
	}

	// Gemini classifier. Constructed here and injected so nothing below
	// depends on a global model instance.
	gen, err := classifier.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		sugar.Fatalf("Failed to create Gemini client: %v", err)
	}
	cls := classifier.New(gen, classifier.Options{}, sugar)

	// Initialize services
	manifestationSvc := services.NewManifestationService(db, cls, feedCache, cfg.ClassifyTimeout, sugar)
	authSvc := services.NewAuthService(db, cfg.JWTSecret, sugar)

	// Initialize handlers
	manifestationHandler := handlers.NewManifestationHandler(manifestationSvc, store, cfg.MaxUploadSize, sugar)
	adminHandler := handlers.NewAdminHandler(manifestationSvc, sugar)
	authHandler := handlers.NewAuthHandler(authSvc, sugar)
	fileHandler := handlers.NewFileHandler(manifestationSvc, store, sugar)
	healthHandler := handlers.NewHealthHandler(db, sugar)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(3 * time.Minute)) // classification retries can be slow
	r.Use(middleware.StripIPHeaders())    // anonymous reports stay anonymous
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", healthHandler.Status)
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		// Citizen endpoints, no auth required
		r.Route("/manifestations", func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitRPM))
			r.Post("/", manifestationHandler.Submit)
			r.Get("/public", manifestationHandler.PublicFeed)
			r.Get("/{protocol}", manifestationHandler.GetByProtocol)
		})

		// Attachment serving (uniform not-found, see handler)
		r.Get("/files/{name}", fileHandler.Serve)

		// Staff login (tighter rate limit)
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.RateLimit(5))
			r.Post("/login", authHandler.Login)
		})

		// Triage dashboard (JWT required)
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.JWTSecret))
			r.Get("/stats", adminHandler.Stats)
			r.Get("/manifestations", adminHandler.List)
			r.Patch("/manifestations/{id}/status", adminHandler.SetStatus)
			r.Patch("/manifestations/{id}/redact", adminHandler.Redact)
			r.Post("/manifestations/{id}/responses", adminHandler.Respond)
		})
	})

	// Create HTTP server. Write timeout covers the held-open submission
	// while the classifier retries.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Fatalf("Forced shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}
