// Package jobs runs batch scrapes: enumerate the catalog through the
// search API, filter out known boats, dispatch the rest to a worker pool
// and report the outcome.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DmitriyKurilenko/rent-scraper/internal/boataround"
	"github.com/DmitriyKurilenko/rent-scraper/internal/queue"
	"github.com/DmitriyKurilenko/rent-scraper/internal/scraper"
)

// defaultDestinations is walked when no destination is given. These cover
// the catalog regions the marketplace sells.
var defaultDestinations = []string{
	"turkey", "greece", "croatia", "italy", "spain", "france",
	"portugal", "malta", "cyprus", "bahamas", "bvi", "usvi",
	"mexico", "french-polynesia", "new-zealand", "australia",
}

const (
	enumerationPageSize = 50

	// defaultBatchSize is how many slugs travel together through the task
	// queue.
	defaultBatchSize = 50
)

// SlugSearcher enumerates boats through the search API.
type SlugSearcher interface {
	Search(ctx context.Context, params boataround.SearchParams) (*boataround.SearchResult, error)
}

// BoatScraper scrapes one boat.
type BoatScraper interface {
	Scrape(ctx context.Context, slug string, opts scraper.Options) (*scraper.Result, error)
}

// SlugCache caches enumeration results between runs.
type SlugCache interface {
	Load(ctx context.Context, destination string, maxPages int) []string
	Save(ctx context.Context, destination string, maxPages int, slugs []string)
	Invalidate(ctx context.Context, destination string, maxPages int)
}

// BoatIndex answers which boats already exist, for filtering and for the
// post-run cross-check.
type BoatIndex interface {
	ListSlugs(ctx context.Context) ([]string, error)
	CountBySlugs(ctx context.Context, slugs []string) (int, error)
}

// Runner executes one batch run end to end.
type Runner struct {
	api     SlugSearcher
	scraper BoatScraper
	cache   SlugCache
	index   BoatIndex
	logger  *slog.Logger
}

func NewRunner(api SlugSearcher, s BoatScraper, cache SlugCache, index BoatIndex, logger *slog.Logger) *Runner {
	return &Runner{
		api:     api,
		scraper: s,
		cache:   cache,
		index:   index,
		logger:  logger.With("component", "batch_runner"),
	}
}

// RunParams configure one batch run.
type RunParams struct {
	Destination  string
	Workers      int
	Limit        int
	MaxPages     int
	CheckIn      string
	CheckOut     string
	SkipExisting bool
	NoCache      bool
	RefreshCache bool
	ForceRefresh bool
	CacheTTL     time.Duration

	// BatchSize is the number of slugs per queue batch in queued dispatch.
	BatchSize int

	// Progress is called after each scraped boat when set.
	Progress func(done, total, succeeded, failed int)
}

// Report is the outcome of one batch run.
type Report struct {
	Destination  string        `json:"destination"`
	TotalSlugs   int           `json:"total_slugs"`
	Dispatched   int           `json:"dispatched"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	FromCache    int           `json:"from_cache"`
	Skipped      int           `json:"skipped_existing"`
	PagesScanned int           `json:"pages_scanned"`
	SlugCacheHit bool          `json:"slug_cache_hit"`
	InDatabase   int           `json:"in_database"`
	EnumTime     time.Duration `json:"-"`
	ScrapeTime   time.Duration `json:"-"`
}

// Run executes the batch: enumerate, filter, dispatch, aggregate, report.
func (r *Runner) Run(ctx context.Context, params RunParams) (*Report, error) {
	if params.Workers <= 0 {
		params.Workers = 5
	}

	report := &Report{Destination: params.Destination}

	enumStart := time.Now()
	slugs, pagesScanned, cacheHit := r.enumerate(ctx, params)
	report.TotalSlugs = len(slugs)
	report.PagesScanned = pagesScanned
	report.SlugCacheHit = cacheHit
	report.EnumTime = time.Since(enumStart)

	slugs = r.filter(ctx, slugs, params, report)
	report.Dispatched = len(slugs)

	if len(slugs) == 0 {
		r.logger.Warn("no boats to scrape",
			"destination", params.Destination,
			"skipped_existing", report.Skipped)
		return report, nil
	}

	r.logger.Info("dispatching batch",
		"destination", params.Destination,
		"total", len(slugs),
		"workers", params.Workers,
		"slug_cache_hit", cacheHit)

	scrapeStart := time.Now()
	r.dispatch(ctx, slugs, params, report)
	report.ScrapeTime = time.Since(scrapeStart)

	if count, err := r.index.CountBySlugs(ctx, slugs); err == nil {
		report.InDatabase = count
	}

	r.logger.Info("batch complete",
		"destination", params.Destination,
		"dispatched", report.Dispatched,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"from_cache", report.FromCache,
		"in_database", report.InDatabase,
		"enum_time", report.EnumTime.Round(time.Second),
		"scrape_time", report.ScrapeTime.Round(time.Second))

	return report, nil
}

// enumerate collects the slug list, from the cache when allowed.
func (r *Runner) enumerate(ctx context.Context, params RunParams) (slugs []string, pagesScanned int, cacheHit bool) {
	if params.RefreshCache && r.cache != nil {
		r.cache.Invalidate(ctx, params.Destination, params.MaxPages)
	}
	if !params.NoCache && !params.RefreshCache && r.cache != nil {
		if cached := r.cache.Load(ctx, params.Destination, params.MaxPages); cached != nil {
			return cached, 0, true
		}
	}

	destinations := []string{params.Destination}
	if params.Destination == "" {
		destinations = defaultDestinations
	}

	seen := make(map[string]bool)
	for _, dest := range destinations {
		destSlugs, pages := r.walkDestination(ctx, dest, params.MaxPages)
		pagesScanned += pages
		for _, slug := range destSlugs {
			if !seen[slug] {
				seen[slug] = true
				slugs = append(slugs, slug)
			}
		}
	}

	if !params.NoCache && len(slugs) > 0 && r.cache != nil {
		r.cache.Save(ctx, params.Destination, params.MaxPages, slugs)
	}

	return slugs, pagesScanned, false
}

// walkDestination pages through one destination until the API reports no
// more pages. totalPages comes from the first response; a search error
// ends the walk with whatever was collected.
func (r *Runner) walkDestination(ctx context.Context, destination string, maxPages int) ([]string, int) {
	var slugs []string
	seen := make(map[string]bool)

	page := 1
	totalPages := 0
	pagesScanned := 0

	for {
		if ctx.Err() != nil {
			break
		}

		result, err := r.api.Search(ctx, boataround.SearchParams{
			Destination: destination,
			Page:        page,
			Limit:       enumerationPageSize,
			Lang:        "en_EN",
		})
		if err != nil {
			r.logger.Error("search failed during enumeration",
				"destination", destination, "page", page, "error", err)
			break
		}
		if len(result.Boats) == 0 {
			break
		}

		pagesScanned++
		for i := range result.Boats {
			slug := result.Boats[i].Slug
			if slug != "" && !seen[slug] {
				seen[slug] = true
				slugs = append(slugs, slug)
			}
		}

		if totalPages == 0 {
			totalPages = result.TotalPages
			if totalPages <= 0 {
				totalPages = 1
			}
			if maxPages > 0 && maxPages < totalPages {
				totalPages = maxPages
			}
		}
		if page >= totalPages {
			break
		}
		page++
	}

	r.logger.Info("destination enumerated",
		"destination", destination,
		"boats", len(slugs),
		"pages", pagesScanned)

	return slugs, pagesScanned
}

func (r *Runner) filter(ctx context.Context, slugs []string, params RunParams, report *Report) []string {
	if params.SkipExisting {
		existing, err := r.index.ListSlugs(ctx)
		if err != nil {
			r.logger.Warn("failed to load existing slugs, skipping filter", "error", err)
		} else {
			known := make(map[string]bool, len(existing))
			for _, s := range existing {
				known[s] = true
			}
			kept := slugs[:0]
			for _, s := range slugs {
				if !known[s] {
					kept = append(kept, s)
				}
			}
			report.Skipped = len(slugs) - len(kept)
			slugs = kept
		}
	}

	if params.Limit > 0 && len(slugs) > params.Limit {
		slugs = slugs[:params.Limit]
	}
	return slugs
}

// dispatch fans the slugs out to a worker pool. Each slug is handed out
// exactly once; counters are aggregated under a mutex.
func (r *Runner) dispatch(ctx context.Context, slugs []string, params RunParams, report *Report) {
	opts := scraper.Options{
		CheckIn:      params.CheckIn,
		CheckOut:     params.CheckOut,
		ForceRefresh: params.ForceRefresh,
		CacheTTL:     params.CacheTTL,
	}

	work := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	total := len(slugs)
	done := 0
	start := time.Now()

	for i := 0; i < params.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for slug := range work {
				result, err := r.scraper.Scrape(ctx, slug, opts)

				mu.Lock()
				done++
				if err != nil {
					report.Failed++
					r.logger.Warn("boat failed", "slug", slug, "error", err)
				} else {
					report.Succeeded++
					if result.FromCache {
						report.FromCache++
					}
				}

				elapsed := time.Since(start).Seconds()
				rate := float64(done) / elapsed
				var eta time.Duration
				if rate > 0 {
					eta = time.Duration(float64(total-done)/rate) * time.Second
				}
				if done%10 == 0 || done == total {
					r.logger.Info("batch progress",
						"done", done,
						"total", total,
						"succeeded", report.Succeeded,
						"failed", report.Failed,
						"rate_per_s", float64(int(rate*10))/10,
						"eta", eta.Round(time.Second))
				}
				if params.Progress != nil {
					params.Progress(done, total, report.Succeeded, report.Failed)
				}
				mu.Unlock()
			}
		}()
	}

	for _, slug := range slugs {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return
		case work <- slug:
		}
	}
	close(work)
	wg.Wait()
}

// RunQueued is Run with the batch handed off through a task queue instead
// of a bare channel, matching deployments where a separate process drains
// the queue. The queue is closed once every slug is pushed.
func (r *Runner) RunQueued(ctx context.Context, params RunParams, q queue.Queue) (*Report, error) {
	if params.Workers <= 0 {
		params.Workers = 5
	}

	report := &Report{Destination: params.Destination}

	enumStart := time.Now()
	slugs, pagesScanned, cacheHit := r.enumerate(ctx, params)
	report.TotalSlugs = len(slugs)
	report.PagesScanned = pagesScanned
	report.SlugCacheHit = cacheHit
	report.EnumTime = time.Since(enumStart)

	slugs = r.filter(ctx, slugs, params, report)
	report.Dispatched = len(slugs)

	if len(slugs) == 0 {
		r.logger.Warn("no boats to scrape",
			"destination", params.Destination,
			"skipped_existing", report.Skipped)
		return report, nil
	}

	scrapeStart := time.Now()
	go func() {
		if _, err := r.EnqueueTasks(ctx, slugs, params, q); err != nil {
			r.logger.Error("failed to enqueue tasks", "error", err)
		}
		q.Close()
	}()

	opts := scraper.Options{
		CheckIn:      params.CheckIn,
		CheckOut:     params.CheckOut,
		ForceRefresh: params.ForceRefresh,
		CacheTTL:     params.CacheTTL,
	}
	report.Succeeded, report.Failed, report.FromCache = r.DrainQueue(ctx, q, params.Workers, params.BatchSize, opts)
	report.ScrapeTime = time.Since(scrapeStart)

	if count, err := r.index.CountBySlugs(ctx, slugs); err == nil {
		report.InDatabase = count
	}

	r.logger.Info("queued batch complete",
		"destination", params.Destination,
		"dispatched", report.Dispatched,
		"succeeded", report.Succeeded,
		"failed", report.Failed)

	return report, nil
}

// EnqueueTasks chunks the slugs into fixed-size batches and pushes each
// batch onto the task queue, the hand-off unit a worker pool consumes.
func (r *Runner) EnqueueTasks(ctx context.Context, slugs []string, params RunParams, q queue.Queue) (int, error) {
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	b := queue.NewBatchQueue(q, batchSize)

	pushed := 0
	for start := 0; start < len(slugs); start += batchSize {
		end := start + batchSize
		if end > len(slugs) {
			end = len(slugs)
		}

		batch := make([]*queue.Task, 0, end-start)
		for _, slug := range slugs[start:end] {
			batch = append(batch, &queue.Task{
				ID:        slug,
				Slug:      slug,
				CheckIn:   params.CheckIn,
				CheckOut:  params.CheckOut,
				CreatedAt: time.Now(),
			})
		}
		if err := b.PushBatch(batch); err != nil {
			return pushed, err
		}
		pushed += len(batch)
	}

	r.logger.Info("tasks enqueued", "count", pushed, "batch_size", batchSize)
	return pushed, nil
}

// DrainQueue consumes the queue batch by batch until it closes or the
// context ends. Each worker takes a whole batch at a time.
func (r *Runner) DrainQueue(ctx context.Context, q queue.Queue, workers, batchSize int, opts scraper.Options) (succeeded, failed, fromCache int) {
	if workers <= 0 {
		workers = 5
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	b := queue.NewBatchQueue(q, batchSize)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch, popErr := b.PopBatch(ctx)
				for _, task := range batch {
					taskOpts := opts
					if task.CheckIn != "" {
						taskOpts.CheckIn = task.CheckIn
					}
					if task.CheckOut != "" {
						taskOpts.CheckOut = task.CheckOut
					}

					result, err := r.scraper.Scrape(ctx, task.Slug, taskOpts)
					mu.Lock()
					if err != nil {
						failed++
						r.logger.Warn("queued boat failed", "slug", task.Slug, "error", err)
					} else {
						succeeded++
						if result.FromCache {
							fromCache++
						}
					}
					mu.Unlock()
				}
				if popErr != nil {
					return
				}
			}
		}()
	}
	wg.Wait()
	return succeeded, failed, fromCache
}
