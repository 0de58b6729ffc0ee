package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DmitriyKurilenko/rent-scraper/internal/boataround"
	"github.com/DmitriyKurilenko/rent-scraper/internal/config"
	"github.com/DmitriyKurilenko/rent-scraper/internal/database"
	"github.com/DmitriyKurilenko/rent-scraper/internal/events"
	"github.com/DmitriyKurilenko/rent-scraper/internal/fetch"
	"github.com/DmitriyKurilenko/rent-scraper/internal/imagestore"
	"github.com/DmitriyKurilenko/rent-scraper/internal/jobs"
	"github.com/DmitriyKurilenko/rent-scraper/internal/parser"
	"github.com/DmitriyKurilenko/rent-scraper/internal/queue"
	"github.com/DmitriyKurilenko/rent-scraper/internal/scraper"
	"github.com/DmitriyKurilenko/rent-scraper/internal/slugcache"
)

func main() {
	var (
		slug         = flag.String("slug", "", "Scrape a single boat by slug and exit")
		destination  = flag.String("destination", "", "Destination slug to crawl (empty = all known destinations)")
		workers      = flag.Int("workers", 0, "Number of parallel scrapers (default from config)")
		limit        = flag.Int("limit", 0, "Maximum boats to scrape (0 = unlimited)")
		maxPages     = flag.Int("max-pages", 0, "Maximum catalog pages per destination (0 = all)")
		checkIn      = flag.String("check-in", "", "Charter check-in date YYYY-MM-DD")
		checkOut     = flag.String("check-out", "", "Charter check-out date YYYY-MM-DD")
		skipExisting = flag.Bool("skip-existing", false, "Skip boats already in the database")
		forceRefresh = flag.Bool("force-refresh", false, "Ignore the parse cache and re-scrape everything")
		noCache      = flag.Bool("no-cache", false, "Bypass the slug cache for this run")
		refreshCache = flag.Bool("refresh-cache", false, "Invalidate and rebuild the slug cache")
		cacheTTL     = flag.Duration("cache-ttl", 0, "Parse cache TTL, e.g. 24h (default from config)")
		dispatch     = flag.String("dispatch", "sync", "Batch dispatch mode: sync or queue")
		batchSize    = flag.Int("batch-size", 50, "Slugs per queue batch in queue dispatch mode")
	)
	flag.Parse()

	if *dispatch != "sync" && *dispatch != "queue" {
		fmt.Fprintf(os.Stderr, "unknown dispatch mode %q (want sync or queue)\n", *dispatch)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

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

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	// The relay drains the outbox while the crawl runs so events reach the
	// stream without a separate server process.
	relay := database.NewRelay(db, redisClient, logger, database.RelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	images, err := imagestore.New(cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to initialize image store", "error", err)
		os.Exit(1)
	}

	publisher := events.NewPublisher(db, logger)
	fetcher := fetch.NewClient(logger)
	pageParser := parser.New(logger)
	apiClient := boataround.NewClient(logger)
	boats := database.NewBoatStore(db)
	slugCache := slugcache.New(redisClient, cfg.Scraper.SlugCacheTTL, logger)

	scraperService := scraper.NewService(fetcher, pageParser, apiClient, boats, images, publisher, logger, scraper.ServiceConfig{
		CacheTTL: cfg.Scraper.CacheTTL,
	})

	if *slug != "" {
		scrapeOne(ctx, logger, scraperService, *slug, *checkIn, *checkOut, *forceRefresh)
		return
	}

	if *workers <= 0 {
		*workers = cfg.Scraper.Workers
	}

	runner := jobs.NewRunner(apiClient, scraperService, slugCache, boats, logger)
	params := jobs.RunParams{
		Destination:  *destination,
		Workers:      *workers,
		Limit:        *limit,
		MaxPages:     *maxPages,
		CheckIn:      *checkIn,
		CheckOut:     *checkOut,
		SkipExisting: *skipExisting,
		NoCache:      *noCache,
		RefreshCache: *refreshCache,
		ForceRefresh: *forceRefresh,
		CacheTTL:     *cacheTTL,
		BatchSize:    *batchSize,
	}

	var report *jobs.Report
	if *dispatch == "queue" {
		report, err = runner.RunQueued(ctx, params, queue.NewInMemoryQueue())
	} else {
		report, err = runner.Run(ctx, params)
	}
	if err != nil {
		logger.Error("crawl failed", "error", err)
		os.Exit(1)
	}

	printReport(report)
}

func scrapeOne(ctx context.Context, logger *slog.Logger, s *scraper.Service, slug, checkIn, checkOut string, forceRefresh bool) {
	start := time.Now()
	result, err := s.Scrape(ctx, slug, scraper.Options{
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		ForceRefresh: forceRefresh,
	})
	if err != nil {
		logger.Error("scrape failed", "slug", slug, "error", err)
		os.Exit(1)
	}

	if result.FromCache {
		fmt.Printf("%s: fresh in database (parsed %s), skipped\n", slug, result.Boat.LastParsed.Format(time.RFC3339))
		return
	}
	fmt.Printf("%s: scraped in %s (boat_id %s, parse #%d)\n",
		slug, time.Since(start).Round(time.Millisecond), result.Boat.BoatID, result.Boat.ParseCount)
}

func printReport(r *jobs.Report) {
	dest := r.Destination
	if dest == "" {
		dest = "all destinations"
	}
	fmt.Println("--- crawl report ---")
	fmt.Printf("destination:    %s\n", dest)
	fmt.Printf("slugs found:    %d (pages scanned: %d, slug cache hit: %v)\n", r.TotalSlugs, r.PagesScanned, r.SlugCacheHit)
	fmt.Printf("skipped:        %d already in database\n", r.Skipped)
	fmt.Printf("dispatched:     %d\n", r.Dispatched)
	fmt.Printf("succeeded:      %d (%d served from cache)\n", r.Succeeded, r.FromCache)
	fmt.Printf("failed:         %d\n", r.Failed)
	fmt.Printf("in database:    %d\n", r.InDatabase)
	fmt.Printf("enumeration:    %s\n", r.EnumTime.Round(time.Millisecond))
	fmt.Printf("scraping:       %s\n", r.ScrapeTime.Round(time.Millisecond))
}
