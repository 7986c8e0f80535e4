package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"astrohub/internal/cache"
	"astrohub/internal/catalog"
	"astrohub/internal/completion"
	"astrohub/internal/config"
	"astrohub/internal/handlers"
	"astrohub/internal/jobs"
	"astrohub/internal/logging"
	"astrohub/internal/middleware"
	"astrohub/internal/services"
	"astrohub/internal/upstream"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting AstroHub Server...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, Environment: %s)", cfg.Port, cfg.Environment)

	// Generation spec table
	cat, err := catalog.Load(cfg.DatasetsFile, catalog.Defaults{
		Models:             cfg.CompletionModels,
		MaxAttempts:        cfg.MaxAttempts,
		GenerationAttempts: cfg.GenerationAttempts,
	})
	if err != nil {
		log.Fatalf("❌ Failed to load dataset catalog: %v", err)
	}
	log.Printf("📚 Loaded %d datasets", len(cat.Names()))

	// Cache, optionally mirrored to Redis
	var mirror cache.Mirror
	var redisMirror *cache.RedisMirror
	if cfg.RedisURL != "" {
		redisMirror, err = cache.NewRedisMirror(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, continuing with in-process cache only: %v", err)
		} else {
			mirror = redisMirror
		}
	}
	store := cache.New(cfg.CacheTTL, mirror)
	log.Printf("✅ [CACHE] Initialized (TTL: %v, mirror: %t)", cfg.CacheTTL, mirror != nil)

	// Upstream adapters
	nasaClient := upstream.NewNASAClient(cfg.NASAAPIKey, cfg.APODURL, cfg.NEOFeedURL, cfg.FeedTimeout)
	weatherClient := upstream.NewWeatherClient(cfg.WeatherBaseURL, cfg.FeedTimeout)
	pixabayClient := upstream.NewPixabayClient(cfg.PixabayAPIKey, cfg.PixabayURL, cfg.ImageTimeout, cfg.PixabayRatePerSec)
	completionClient := upstream.NewCompletionClient(cfg.CompletionAPIKey, cfg.CompletionBaseURL, cfg.CompletionTimeout, cfg.CompletionRatePerSec, cfg.CompletionBurst)
	scraper := upstream.NewArticleScraper(cfg.ScrapeTimeout)

	for name, ok := range map[string]bool{
		"NASA":       nasaClient.Configured(),
		"completion": completionClient.Configured(),
		"Pixabay":    pixabayClient.Configured(),
		"weather":    weatherClient.Configured(),
	} {
		if !ok {
			log.Printf("⚠️  %s credential not configured, dependent endpoints will degrade", name)
		}
	}

	// Core services
	metrics := services.GetMetrics()
	caller := completion.NewCaller(completionClient, completion.NewBackoff(cfg.InitialBackoff, cfg.MaxBackoff))
	caller.SetObserver(metrics.RecordCompletionAttempt)

	var imageSearcher services.ImageSearcher
	if pixabayClient.Configured() {
		imageSearcher = pixabayClient
	}
	images := services.NewImageResolver(imageSearcher, store, cfg.ImageTimeout)

	orchestrator := services.NewOrchestrator(cat, store, caller, images, scraper, services.OrchestratorConfig{
		GenerationEnabled: completionClient.Configured(),
		GenerationTimeout: cfg.GenerationTimeout,
		EnrichmentTimeout: cfg.EnrichmentTimeout,
		EnrichConcurrency: cfg.ImageEnrichConcurrent,
		ArticleSourceURLs: cfg.ArticleSourceURLs,
	})
	feeds := services.NewFeedService(nasaClient, weatherClient, store)
	stats := services.NewStatsService(orchestrator, feeds)
	chat := services.NewChatService(caller, completionClient.Configured(), cfg.CompletionModels, cfg.MaxAttempts, cfg.ChatTimeout)

	// Background jobs
	jobScheduler, err := jobs.NewJobScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	if err := jobScheduler.Every(cfg.CacheSweepInterval, jobs.NewCacheSweepJob(store)); err != nil {
		log.Fatalf("❌ %v", err)
	}
	if cfg.CacheWarmupCron != "" {
		if err := jobScheduler.Cron(cfg.CacheWarmupCron, jobs.NewDatasetWarmupJob(orchestrator)); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}
	jobScheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "AstroHub v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // generation can take up to GENERATION_TIMEOUT
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format: "${time} | ${status} | ${latency} | ${method} ${path} | ${locals:request_id}\n",
	}))

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("astrohub")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Fiber's CORS middleware does not allow AllowCredentials with wildcard origins
	allowedOrigins := cfg.AllowedOrigins
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-Latitude,X-Longitude,X-Request-ID",
		ExposeHeaders:    handlers.DataSourceHeader + ",X-Request-ID",
		AllowCredentials: allowedOrigins != "*" && !strings.Contains(allowedOrigins, "*"),
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", allowedOrigins)

	rateLimitConfig := middleware.RateLimitConfigFrom(cfg)
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: API=%d/min, Chat=%d/min", rateLimitConfig.APIMax, rateLimitConfig.ChatMax)

	var mirrorPing func(ctx context.Context) error
	if redisMirror != nil {
		mirrorPing = redisMirror.Ping
	}

	routes := &handlers.Handlers{
		Datasets: handlers.NewDatasetHandler(orchestrator, stats),
		Feeds:    handlers.NewFeedHandler(feeds),
		Chat:     handlers.NewChatHandler(chat),
		Images:   handlers.NewImageHandler(images),
		Health: handlers.NewHealthHandler(map[string]bool{
			"nasa":       nasaClient.Configured(),
			"completion": completionClient.Configured(),
			"pixabay":    pixabayClient.Configured(),
			"weather":    weatherClient.Configured(),
		}, store.Len, mirrorPing),
	}
	routes.Register(app, rateLimitConfig)

	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("🕐 Background jobs: cache sweep (every %v), dataset warmup (%s)", cfg.CacheSweepInterval, cfg.CacheWarmupCron)

	// Handle graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		// Stop background jobs
		if err := jobScheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping job scheduler: %v", err)
		}

		// Shutdown Fiber
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}

		// Let deferred image enrichment finish writing to the cache
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := orchestrator.Wait(ctx); err != nil {
			log.Printf("⚠️ Background enrichment still running at shutdown: %v", err)
		}

		if redisMirror != nil {
			if err := redisMirror.Close(); err != nil {
				log.Printf("⚠️ Error closing Redis: %v", err)
			}
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	<-shutdownDone
	log.Println("👋 Server stopped")
}
