package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/DmitriyKurilenko/rent-scraper/internal/api"
	"github.com/DmitriyKurilenko/rent-scraper/internal/boataround"
	"github.com/DmitriyKurilenko/rent-scraper/internal/config"
	"github.com/DmitriyKurilenko/rent-scraper/internal/database"
	"github.com/DmitriyKurilenko/rent-scraper/internal/events"
	"github.com/DmitriyKurilenko/rent-scraper/internal/fetch"
	"github.com/DmitriyKurilenko/rent-scraper/internal/imagestore"
	"github.com/DmitriyKurilenko/rent-scraper/internal/jobs"
	"github.com/DmitriyKurilenko/rent-scraper/internal/parser"
	"github.com/DmitriyKurilenko/rent-scraper/internal/scraper"
	"github.com/DmitriyKurilenko/rent-scraper/internal/slugcache"
)

func main() {
	// Setup logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection
	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize event publisher with database (for transactional outbox)
	publisher := events.NewPublisher(db, logger)

	// Initialize Redis client for Relay and the slug cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Test Redis connection
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	// Initialize and start Relay for outbox processing
	relay := database.NewRelay(db, redisClient, logger, database.RelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	// Object store for gallery images
	images, err := imagestore.New(cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to initialize image store", "error", err)
		os.Exit(1)
	}

	// Initialize services
	fetcher := fetch.NewClient(logger)
	pageParser := parser.New(logger)
	apiClient := boataround.NewClient(logger)
	boats := database.NewBoatStore(db)
	charters := database.NewCharterStore(db)
	slugCache := slugcache.New(redisClient, cfg.Scraper.SlugCacheTTL, logger)

	scraperService := scraper.NewService(fetcher, pageParser, apiClient, boats, images, publisher, logger, scraper.ServiceConfig{
		CacheTTL: cfg.Scraper.CacheTTL,
	})
	runner := jobs.NewRunner(apiClient, scraperService, slugCache, boats, logger)
	jobManager := jobs.NewManager(db, runner, logger)

	// Start job worker
	go jobManager.StartWorker(ctx)

	// Initialize API handlers
	handlers := api.NewHandlers(scraperService, jobManager, boats, charters, apiClient, logger)

	// Setup Chi router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		// Check outbox status
		pendingCount, _ := relay.PendingCount(context.Background())
		deadLetterCount, _ := relay.DeadLetterCount(context.Background())

		health := map[string]interface{}{
			"status": "ok",
			"outbox": map[string]interface{}{
				"pending":     pendingCount,
				"dead_letter": deadLetterCount,
			},
		}

		status := http.StatusOK
		if pendingCount > 1000 {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if deadLetterCount > 100 {
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(health)
	})

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/scraper", func(r chi.Router) {
			r.Post("/scrape", handlers.ScrapeBoat)

			// Job management endpoints
			r.Post("/jobs", handlers.CreateJob)
			r.Get("/jobs/{jobID}", handlers.GetJob)
			r.Get("/jobs", handlers.ListJobs)
		})

		r.Route("/boats", func(r chi.Router) {
			r.Get("/{slug}", handlers.GetBoat)
			r.Get("/{slug}/quote", handlers.Quote)
		})

		r.Post("/search", handlers.Search)
		r.Get("/autocomplete", handlers.Autocomplete)
		r.Get("/languages", handlers.Languages)

		// Stats endpoint
		r.Get("/stats", handlers.GetStats)
	})

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
