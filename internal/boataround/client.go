package boataround

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.boataround.com/v1"

// apiHeaders is the mobile-Safari profile the public API accepts without
// challenges. Origin and Referer must point at the web frontend.
var apiHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
	"Origin":          "https://www.boataround.com",
	"Referer":         "https://www.boataround.com/",
	"DNT":             "1",
	"Connection":      "keep-alive",
	"Sec-Fetch-Dest":  "empty",
	"Sec-Fetch-Mode":  "cors",
	"Sec-Fetch-Site":  "same-site",
	"Cache-Control":   "no-cache",
	"Pragma":          "no-cache",
}

// Client talks to the public search/price/autocomplete API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

// WithBaseURL points the client at a different endpoint, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "boataround_api"),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchParams describes one search request. The struct is treated as
// immutable: every attempt derives a fresh query from it, so a retry that
// drops the sort cannot leak into later requests.
type SearchParams struct {
	Limit       int
	Page        int
	CheckIn     string
	CheckOut    string
	Destination string
	Category    string
	Cabins      string
	Year        string
	Price       string
	Sort        string
	Lang        string
	Slug        string
}

func (p SearchParams) values() url.Values {
	q := url.Values{}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))

	if p.CheckIn != "" {
		q.Set("checkIn", p.CheckIn)
	}
	if p.CheckOut != "" {
		q.Set("checkOut", p.CheckOut)
	}
	if p.Destination != "" {
		// the web frontend sends the plural form
		q.Set("destinations", p.Destination)
	}
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	if p.Cabins != "" {
		q.Set("cabins", p.Cabins)
	}
	if p.Year != "" {
		q.Set("year", p.Year)
	}
	if p.Price != "" {
		q.Set("price", p.Price)
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if p.Lang != "" {
		q.Set("lang", p.Lang)
	}
	if p.Slug != "" {
		q.Set("slug", p.Slug)
	}
	return q
}

func (p SearchParams) hasFilters() bool {
	return p.Cabins != "" || p.Year != "" || p.Price != ""
}

// SearchResult is the normalized search response.
type SearchResult struct {
	Boats      []Boat
	Total      int
	Page       int
	TotalPages int
	Filters    Filter
}

// Filter carries the per-group equipment facets.
type Filter struct {
	Cockpit       []filterItem `json:"cockpit"`
	Entertainment []filterItem `json:"entertainment"`
	Equipment     []filterItem `json:"equipment"`
}

type filterItem struct {
	Name string `json:"name"`
}

// Search queries /search. Timeouts and connection errors are retried with
// exponential backoff; HTTP errors are not, except for the API's own bug:
// combining sort with any of the cabins/year/price filters can return 500,
// in which case the request is retried exactly once with sort removed.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	status, body, err := c.getWithRetry(ctx, "/search", params.values())
	if err != nil {
		return nil, err
	}

	if status == http.StatusInternalServerError {
		if params.Sort != "" && params.hasFilters() {
			c.logger.Warn("search returned 500 with sort and filters, retrying without sort")
			retry := params
			retry.Sort = ""
			status, body, err = c.getWithRetry(ctx, "/search", retry.values())
			if err != nil {
				return nil, err
			}
		} else {
			return emptyResult(), nil
		}
	}

	switch status {
	case http.StatusOK:
		limit := params.Limit
		if limit <= 0 {
			limit = 20
		}
		page := params.Page
		if page <= 0 {
			page = 1
		}
		result := decodeSearchResponse(body, limit, page)
		c.logger.Info("search done",
			"destination", params.Destination,
			"page", page,
			"boats", len(result.Boats),
			"total", result.Total,
			"total_pages", result.TotalPages)
		return result, nil
	case http.StatusNoContent:
		return emptyResult(), nil
	default:
		c.logger.Warn("search returned non-success status", "status", status)
		return emptyResult(), nil
	}
}

func emptyResult() *SearchResult {
	return &SearchResult{Boats: nil, Total: 0, Page: 1, TotalPages: 0}
}

// decodeSearchResponse classifies the response into one of the shapes the
// API is known to produce: a direct boat array, a {status,data} wrapper
// whose data is either a boat array or a single result group with nested
// boats and totals, or a legacy flat object. Anything else is empty.
// totalPages is always recomputed from the observed page size because the
// API applies its own limit regardless of the requested one.
func decodeSearchResponse(body []byte, limit, page int) *SearchResult {
	// direct array of boats
	var direct []Boat
	if err := json.Unmarshal(body, &direct); err == nil {
		boats := direct
		if len(boats) > limit {
			boats = boats[:limit]
		}
		return &SearchResult{
			Boats:      boats,
			Total:      len(direct),
			Page:       page,
			TotalPages: 1,
		}
	}

	var wrapper struct {
		Status       string            `json:"status"`
		Data         []json.RawMessage `json:"data"`
		Results      []Boat            `json:"results"`
		Boats        []Boat            `json:"boats"`
		Total        int               `json:"total"`
		TotalResults int               `json:"totalResults"`
		TotalBoats   int               `json:"totalBoats"`
		Filters      Filter            `json:"filters"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return emptyResult()
	}

	// {status, data: [{data: [...boats], totalResults, filter}]}
	if wrapper.Status != "" && len(wrapper.Data) > 0 {
		var group struct {
			Data         []Boat `json:"data"`
			TotalResults int    `json:"totalResults"`
			TotalBoats   int    `json:"totalBoats"`
			Filter       Filter `json:"filter"`
		}
		if err := json.Unmarshal(wrapper.Data[0], &group); err == nil && group.Data != nil {
			total := max3(group.TotalResults, group.TotalBoats, len(group.Data))
			return &SearchResult{
				Boats:      group.Data,
				Total:      total,
				Page:       page,
				TotalPages: pagesFor(total, len(group.Data), limit),
				Filters:    group.Filter,
			}
		}

		// wrapper whose data is the boat array itself
		var boats []Boat
		for _, raw := range wrapper.Data {
			var b Boat
			if err := json.Unmarshal(raw, &b); err != nil {
				boats = nil
				break
			}
			boats = append(boats, b)
		}
		if boats != nil {
			total := max3(wrapper.TotalResults, wrapper.TotalBoats, len(boats))
			return &SearchResult{
				Boats:      boats,
				Total:      total,
				Page:       page,
				TotalPages: pagesFor(total, len(boats), limit),
				Filters:    wrapper.Filters,
			}
		}
	}

	// legacy flat object: results/boats at the top level
	boats := wrapper.Results
	if boats == nil {
		boats = wrapper.Boats
	}
	total := wrapper.TotalResults
	if total == 0 {
		total = wrapper.TotalBoats
	}
	if total == 0 {
		total = wrapper.Total
	}
	if total == 0 {
		total = len(boats)
	}
	if len(boats) == 0 && total == 0 {
		return emptyResult()
	}
	return &SearchResult{
		Boats:      boats,
		Total:      total,
		Page:       page,
		TotalPages: pagesFor(total, len(boats), limit),
		Filters:    wrapper.Filters,
	}
}

func pagesFor(total, perPage, limit int) int {
	if perPage <= 0 {
		perPage = limit
	}
	if total <= 0 || perPage <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

func max3(a, b, c int) int {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

// PriceQuote is the price block for one boat and date range.
type PriceQuote struct {
	Price                float64 `json:"price"`
	TotalPrice           float64 `json:"totalPrice"`
	Discount             float64 `json:"discount"`
	DiscountWithoutExtra float64 `json:"discount_without_additionalExtra"`
	AdditionalDiscount   float64 `json:"additional_discount"`
	Slug                 string  `json:"slug"`
	Title                string  `json:"title"`
}

// GetPrice queries /price/{slug}. The interesting numbers live in
// data[0].data[0].policies[0].prices; the top-level price is a fallback.
func (c *Client) GetPrice(ctx context.Context, slug, checkIn, checkOut, currency string) (*PriceQuote, error) {
	if currency == "" {
		currency = "EUR"
	}

	q := url.Values{}
	q.Set("currency", currency)
	q.Set("lang", "en_EN")
	q.Set("loggedIn", "0")
	if checkIn != "" {
		q.Set("checkIn", checkIn)
	}
	if checkOut != "" {
		q.Set("checkOut", checkOut)
	}

	status, body, err := c.getWithRetry(ctx, "/price/"+slug, q)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("price request for %s returned status %d", slug, status)
	}

	var resp struct {
		Data []struct {
			Data []struct {
				Price      flexFloat `json:"price"`
				TotalPrice flexFloat `json:"totalPrice"`
				Discount   flexFloat `json:"discount"`
				Slug       string    `json:"slug"`
				Title      string    `json:"title"`
				Policies   []struct {
					Prices struct {
						PriceID              string    `json:"price_id"`
						Price                flexFloat `json:"price"`
						DiscountWithoutExtra flexFloat `json:"discount_without_additionalExtra"`
						AdditionalDiscount   flexFloat `json:"additional_discount"`
					} `json:"prices"`
				} `json:"policies"`
			} `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Data) == 0 {
		return nil, fmt.Errorf("no price data for %s", slug)
	}

	info := resp.Data[0].Data[0]
	quote := &PriceQuote{
		TotalPrice: float64(info.TotalPrice),
		Discount:   float64(info.Discount),
		Slug:       info.Slug,
		Title:      info.Title,
	}

	if len(info.Policies) > 0 {
		prices := info.Policies[0].Prices
		quote.Price = float64(prices.Price)
		quote.DiscountWithoutExtra = float64(prices.DiscountWithoutExtra)
		quote.AdditionalDiscount = float64(prices.AdditionalDiscount)
	}
	if quote.Price == 0 {
		quote.Price = float64(info.Price)
	}

	return quote, nil
}

// Suggestion is one autocomplete hit.
type Suggestion struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Type string `json:"type"`
}

// Autocomplete queries /autocomplete/ for destination suggestions.
func (c *Client) Autocomplete(ctx context.Context, query, lang string, limit int) ([]Suggestion, error) {
	if lang == "" {
		lang = "en_EN"
	}
	if limit <= 0 {
		limit = 10
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("lang", lang)
	q.Set("limit", strconv.Itoa(limit))

	status, body, err := c.getWithRetry(ctx, "/autocomplete/", q)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("autocomplete returned status %d", status)
	}

	var direct []Suggestion
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}

	var wrapper struct {
		Status string       `json:"status"`
		Data   []Suggestion `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode autocomplete response: %w", err)
	}
	return wrapper.Data, nil
}

// getWithRetry performs one GET, retrying only timeouts and connection
// errors, with 2^attempt seconds between attempts.
func (c *Client) getWithRetry(ctx context.Context, path string, q url.Values) (int, []byte, error) {
	const maxAttempts = 3

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * time.Second
			c.logger.Warn("retrying request", "path", path, "attempt", attempt+1, "backoff", backoff)
			if err := c.sleep(ctx, backoff); err != nil {
				return 0, nil, err
			}
		}

		status, body, err := c.get(ctx, path, q)
		if err != nil {
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return 0, nil, err
		}
		return status, body, nil
	}

	return 0, nil, fmt.Errorf("request to %s failed after %d attempts: %w", path, maxAttempts, lastErr)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (int, []byte, error) {
	reqURL := c.baseURL + path
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range apiHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read body: %w", err)
	}

	return resp.StatusCode, body, nil
}

func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
