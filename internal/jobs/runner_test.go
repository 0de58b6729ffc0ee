package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DmitriyKurilenko/rent-scraper/internal/boataround"
	"github.com/DmitriyKurilenko/rent-scraper/internal/queue"
	"github.com/DmitriyKurilenko/rent-scraper/internal/scraper"
)

type fakeSearcher struct {
	mu    sync.Mutex
	pages map[string][][]string // destination -> pages of slugs
	total map[string]int        // destination -> TotalPages
	calls []string              // "destination:page"
	err   error
}

func (f *fakeSearcher) Search(ctx context.Context, params boataround.SearchParams) (*boataround.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s:%d", params.Destination, params.Page))
	if f.err != nil {
		return nil, f.err
	}

	pages := f.pages[params.Destination]
	if params.Page > len(pages) {
		return &boataround.SearchResult{}, nil
	}
	result := &boataround.SearchResult{TotalPages: f.total[params.Destination]}
	for _, slug := range pages[params.Page-1] {
		result.Boats = append(result.Boats, boataround.Boat{Slug: slug})
	}
	return result, nil
}

type fakeScraper struct {
	mu      sync.Mutex
	scraped []string
	failOn  map[string]bool
	cached  map[string]bool
}

func (f *fakeScraper) Scrape(ctx context.Context, slug string, opts scraper.Options) (*scraper.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scraped = append(f.scraped, slug)
	if f.failOn[slug] {
		return nil, errors.New("scrape failed")
	}
	return &scraper.Result{FromCache: f.cached[slug]}, nil
}

type fakeSlugCache struct {
	entries     map[string][]string
	saved       [][]string
	invalidated int
}

func (f *fakeSlugCache) key(destination string, maxPages int) string {
	return fmt.Sprintf("%s|%d", destination, maxPages)
}

func (f *fakeSlugCache) Load(ctx context.Context, destination string, maxPages int) []string {
	return f.entries[f.key(destination, maxPages)]
}

func (f *fakeSlugCache) Save(ctx context.Context, destination string, maxPages int, slugs []string) {
	if f.entries == nil {
		f.entries = make(map[string][]string)
	}
	f.entries[f.key(destination, maxPages)] = slugs
	f.saved = append(f.saved, slugs)
}

func (f *fakeSlugCache) Invalidate(ctx context.Context, destination string, maxPages int) {
	delete(f.entries, f.key(destination, maxPages))
	f.invalidated++
}

type fakeIndex struct {
	slugs   []string
	inDB    int
	listErr error
}

func (f *fakeIndex) ListSlugs(ctx context.Context) ([]string, error) {
	return f.slugs, f.listErr
}

func (f *fakeIndex) CountBySlugs(ctx context.Context, slugs []string) (int, error) {
	return f.inDB, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_Run(t *testing.T) {
	searcher := &fakeSearcher{
		pages: map[string][][]string{
			"croatia": {
				{"bavaria-46", "lagoon-42", "oceanis-38", "dufour-390", "hanse-418"},
				{"sun-odyssey-410", "elan-45", "beneteau-50", "jeanneau-54", "nautitech-40"},
			},
		},
		total: map[string]int{"croatia": 2},
	}
	scr := &fakeScraper{
		failOn: map[string]bool{"oceanis-38": true, "elan-45": true, "jeanneau-54": true},
		cached: map[string]bool{"bavaria-46": true},
	}
	cache := &fakeSlugCache{}
	index := &fakeIndex{inDB: 7}

	runner := NewRunner(searcher, scr, cache, index, discardLogger())
	report, err := runner.Run(context.Background(), RunParams{
		Destination: "croatia",
		Workers:     3,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, report.TotalSlugs)
	assert.Equal(t, 10, report.Dispatched)
	assert.Equal(t, 7, report.Succeeded)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, 1, report.FromCache)
	assert.Equal(t, 2, report.PagesScanned)
	assert.Equal(t, 7, report.InDatabase)
	assert.False(t, report.SlugCacheHit)

	// every slug handed out exactly once
	assert.Len(t, scr.scraped, 10)
	seen := make(map[string]int)
	for _, s := range scr.scraped {
		seen[s]++
	}
	for slug, n := range seen {
		assert.Equal(t, 1, n, "slug %s dispatched %d times", slug, n)
	}

	// enumeration result cached for the next run
	require.Len(t, cache.saved, 1)
	assert.Len(t, cache.saved[0], 10)
}

func TestRunner_Run_SkipExisting(t *testing.T) {
	searcher := &fakeSearcher{
		pages: map[string][][]string{
			"greece": {{"a-boat", "b-boat", "c-boat"}},
		},
		total: map[string]int{"greece": 1},
	}
	scr := &fakeScraper{}
	index := &fakeIndex{slugs: []string{"a-boat", "c-boat"}}

	runner := NewRunner(searcher, scr, &fakeSlugCache{}, index, discardLogger())
	report, err := runner.Run(context.Background(), RunParams{
		Destination:  "greece",
		SkipExisting: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalSlugs)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 1, report.Dispatched)
	assert.Equal(t, []string{"b-boat"}, scr.scraped)
}

func TestRunner_Run_Limit(t *testing.T) {
	searcher := &fakeSearcher{
		pages: map[string][][]string{
			"turkey": {{"one", "two", "three", "four"}},
		},
		total: map[string]int{"turkey": 1},
	}
	scr := &fakeScraper{}

	runner := NewRunner(searcher, scr, &fakeSlugCache{}, &fakeIndex{}, discardLogger())
	report, err := runner.Run(context.Background(), RunParams{
		Destination: "turkey",
		Limit:       2,
		Workers:     1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Dispatched)
	assert.Equal(t, []string{"one", "two"}, scr.scraped)
}

func TestRunner_Run_SlugCacheHit(t *testing.T) {
	cache := &fakeSlugCache{
		entries: map[string][]string{"croatia|0": {"cached-boat"}},
	}
	searcher := &fakeSearcher{}
	scr := &fakeScraper{}

	runner := NewRunner(searcher, scr, cache, &fakeIndex{}, discardLogger())
	report, err := runner.Run(context.Background(), RunParams{Destination: "croatia"})
	require.NoError(t, err)

	assert.True(t, report.SlugCacheHit)
	assert.Equal(t, 0, report.PagesScanned)
	assert.Empty(t, searcher.calls, "cache hit must not call the search API")
	assert.Equal(t, []string{"cached-boat"}, scr.scraped)
}

func TestRunner_Run_RefreshCacheInvalidates(t *testing.T) {
	cache := &fakeSlugCache{
		entries: map[string][]string{"croatia|0": {"stale-boat"}},
	}
	searcher := &fakeSearcher{
		pages: map[string][][]string{"croatia": {{"fresh-boat"}}},
		total: map[string]int{"croatia": 1},
	}
	scr := &fakeScraper{}

	runner := NewRunner(searcher, scr, cache, &fakeIndex{}, discardLogger())
	report, err := runner.Run(context.Background(), RunParams{
		Destination:  "croatia",
		RefreshCache: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, cache.invalidated)
	assert.False(t, report.SlugCacheHit)
	assert.Equal(t, []string{"fresh-boat"}, scr.scraped)
}

func TestRunner_Run_MaxPagesCapsWalk(t *testing.T) {
	searcher := &fakeSearcher{
		pages: map[string][][]string{
			"spain": {{"p1"}, {"p2"}, {"p3"}},
		},
		total: map[string]int{"spain": 3},
	}
	scr := &fakeScraper{}

	runner := NewRunner(searcher, scr, &fakeSlugCache{}, &fakeIndex{}, discardLogger())
	report, err := runner.Run(context.Background(), RunParams{
		Destination: "spain",
		MaxPages:    2,
		NoCache:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.PagesScanned)
	assert.Equal(t, 2, report.TotalSlugs)
	assert.Equal(t, []string{"spain:1", "spain:2"}, searcher.calls)
}

func TestRunner_Run_SearchErrorEndsWalk(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("search down")}
	scr := &fakeScraper{}

	runner := NewRunner(searcher, scr, &fakeSlugCache{}, &fakeIndex{}, discardLogger())
	report, err := runner.Run(context.Background(), RunParams{Destination: "malta", NoCache: true})
	require.NoError(t, err)

	assert.Equal(t, 0, report.TotalSlugs)
	assert.Equal(t, 0, report.Dispatched)
	assert.Empty(t, scr.scraped)
}

func TestRunner_Run_DefaultDestinations(t *testing.T) {
	searcher := &fakeSearcher{
		pages: map[string][][]string{
			"turkey": {{"shared-boat", "turkish-boat"}},
			"greece": {{"shared-boat", "greek-boat"}},
		},
		total: map[string]int{"turkey": 1, "greece": 1},
	}
	scr := &fakeScraper{}

	runner := NewRunner(searcher, scr, &fakeSlugCache{}, &fakeIndex{}, discardLogger())
	report, err := runner.Run(context.Background(), RunParams{NoCache: true})
	require.NoError(t, err)

	// all default destinations queried, duplicates collapsed
	var destinations []string
	for _, call := range searcher.calls {
		destinations = append(destinations, strings.SplitN(call, ":", 2)[0])
	}
	for _, dest := range defaultDestinations {
		assert.Contains(t, destinations, dest)
	}
	assert.Equal(t, 3, report.TotalSlugs)
}

func TestRunner_RunQueued(t *testing.T) {
	searcher := &fakeSearcher{
		pages: map[string][][]string{
			"croatia": {{"bavaria-46", "lagoon-42", "oceanis-38"}},
		},
		total: map[string]int{"croatia": 1},
	}
	scr := &fakeScraper{
		failOn: map[string]bool{"lagoon-42": true},
		cached: map[string]bool{"bavaria-46": true},
	}

	runner := NewRunner(searcher, scr, &fakeSlugCache{}, &fakeIndex{inDB: 2}, discardLogger())
	report, err := runner.RunQueued(context.Background(), RunParams{
		Destination: "croatia",
		Workers:     2,
		BatchSize:   2,
	}, queue.NewInMemoryQueue())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Dispatched)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.FromCache)
	assert.Equal(t, 2, report.InDatabase)
	assert.Len(t, scr.scraped, 3)
}

func TestRunner_EnqueueTasks_Batches(t *testing.T) {
	runner := NewRunner(&fakeSearcher{}, &fakeScraper{}, &fakeSlugCache{}, &fakeIndex{}, discardLogger())
	q := queue.NewInMemoryQueue()

	slugs := []string{"b1", "b2", "b3", "b4", "b5", "b6", "b7"}
	pushed, err := runner.EnqueueTasks(context.Background(), slugs, RunParams{
		BatchSize: 3,
		CheckIn:   "2026-09-05",
		CheckOut:  "2026-09-12",
	}, q)
	require.NoError(t, err)
	assert.Equal(t, 7, pushed)
	assert.Equal(t, 7, q.Size())

	// batch boundaries do not reorder tasks
	task, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b1", task.Slug)
	assert.Equal(t, "2026-09-05", task.CheckIn)
	assert.Equal(t, "2026-09-12", task.CheckOut)
}

func TestRunner_DrainQueue_ProcessesWholeBatches(t *testing.T) {
	scr := &fakeScraper{cached: map[string]bool{"b2": true}}
	runner := NewRunner(&fakeSearcher{}, scr, &fakeSlugCache{}, &fakeIndex{}, discardLogger())
	q := queue.NewInMemoryQueue()

	_, err := runner.EnqueueTasks(context.Background(), []string{"b1", "b2", "b3", "b4", "b5"}, RunParams{BatchSize: 2}, q)
	require.NoError(t, err)
	q.Close()

	succeeded, failed, fromCache := runner.DrainQueue(context.Background(), q, 2, 2, scraper.Options{})
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 1, fromCache)
	assert.Len(t, scr.scraped, 5)
}

func TestRunner_Run_Progress(t *testing.T) {
	searcher := &fakeSearcher{
		pages: map[string][][]string{"france": {{"b1", "b2", "b3"}}},
		total: map[string]int{"france": 1},
	}
	scr := &fakeScraper{}

	var mu sync.Mutex
	var lastDone, lastTotal int
	runner := NewRunner(searcher, scr, &fakeSlugCache{}, &fakeIndex{}, discardLogger())
	_, err := runner.Run(context.Background(), RunParams{
		Destination: "france",
		Workers:     1,
		Progress: func(done, total, succeeded, failed int) {
			mu.Lock()
			lastDone, lastTotal = done, total
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, lastDone)
	assert.Equal(t, 3, lastTotal)
}
