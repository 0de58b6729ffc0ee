package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/DmitriyKurilenko/rent-scraper/internal/ratelimit"
)

const (
	baseReferer    = "https://www.boataround.com/"
	defaultTimeout = 30 * time.Second
	maxAttempts    = 3
)

// browserHeaders is the desktop Chrome profile the listing pages are fetched
// with. The site serves 403s to anything that looks like a bot.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language":           "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Cache-Control":             "max-age=0",
	"sec-ch-ua":                 `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
	"sec-ch-ua-mobile":          "?0",
	"sec-ch-ua-platform":        `"Windows"`,
}

// Client fetches listing pages with anti-bot headers and retries.
type Client struct {
	limiter *ratelimit.Adaptive
	logger  *slog.Logger
	timeout time.Duration

	// sleep is swapped out in tests
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		limiter: ratelimit.NewAdaptive(1*time.Second, 3*time.Second),
		logger:  logger.With("component", "fetch"),
		timeout: defaultTimeout,
		sleep:   sleepContext,
	}
}

// FetchPage downloads a page and returns its HTML. Each attempt runs with a
// fresh cookie jar so prior blocks do not taint the session. Status handling:
// 403 retries, 405 retries with a Referer added, 429 retries after a long
// pause; other non-200 statuses fail the attempt.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	headers := make(map[string]string, len(browserHeaders)+1)
	for k, v := range browserHeaders {
		headers[k] = v
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			// 2-5s, humans do not click instantly
			delay := 2*time.Second + time.Duration(rand.Int63n(int64(3*time.Second)))
			c.logger.Info("waiting before retry", "delay", delay, "attempt", attempt)
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		c.logger.Info("fetching page", "url", pageURL, "attempt", attempt)

		body, status, err := c.do(ctx, pageURL, headers)
		if err != nil {
			lastErr = err
			c.logger.Warn("fetch attempt failed", "url", pageURL, "attempt", attempt, "error", err)
			c.limiter.RecordError()
			continue
		}

		switch {
		case status == http.StatusOK:
			c.limiter.RecordSuccess()
			c.logger.Info("page fetched", "url", pageURL, "bytes", len(body))
			return body, nil
		case status == http.StatusForbidden:
			lastErr = fmt.Errorf("forbidden (403)")
			c.limiter.RecordError()
		case status == http.StatusMethodNotAllowed:
			lastErr = fmt.Errorf("method not allowed (405)")
			headers["Referer"] = baseReferer
		case status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			c.limiter.RecordError()
			if err := c.sleep(ctx, 10*time.Second); err != nil {
				return "", err
			}
		default:
			lastErr = fmt.Errorf("unexpected status %d", status)
		}

		c.logger.Warn("fetch attempt rejected", "url", pageURL, "status", status, "attempt", attempt)
	}

	return "", fmt.Errorf("failed to fetch %s after %d attempts: %w", pageURL, maxAttempts, lastErr)
}

func (c *Client) do(ctx context.Context, pageURL string, headers map[string]string) (string, int, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := &http.Client{
		Jar:     jar,
		Timeout: c.timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read body: %w", err)
	}

	return string(body), resp.StatusCode, nil
}

// AddCurrency appends or overwrites the currency query parameter, keeping
// any existing parameters intact.
func AddCurrency(pageURL, currency string) string {
	if currency == "" {
		currency = "EUR"
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	q := u.Query()
	q.Set("currency", currency)
	u.RawQuery = q.Encode()

	return u.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
