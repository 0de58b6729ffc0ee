package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetchClient() *Client {
	c := NewClient(slog.Default())
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestFetchPage_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Chrome")
		assert.Equal(t, "1", r.Header.Get("DNT"))
		w.Write([]byte("<html><body>boat page</body></html>"))
	}))
	defer server.Close()

	body, err := newTestFetchClient().FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "boat page")
}

func TestFetchPage_RetryOn403(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	body, err := newTestFetchClient().FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "ok", body)
}

func TestFetchPage_RefererAddedAfter405(t *testing.T) {
	var referers []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referers = append(referers, r.Header.Get("Referer"))
		if len(referers) == 1 {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	_, err := newTestFetchClient().FetchPage(context.Background(), server.URL)
	require.NoError(t, err)

	require.Len(t, referers, 2)
	assert.Empty(t, referers[0])
	assert.Equal(t, "https://www.boataround.com/", referers[1])
}

func TestFetchPage_ExhaustsAttempts(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestFetchClient().FetchPage(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "403")
}

func TestAddCurrency(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		currency string
		expected string
	}{
		{
			name:     "appended to bare url",
			url:      "https://www.boataround.com/ru/yachta/bavaria-46/",
			currency: "EUR",
			expected: "https://www.boataround.com/ru/yachta/bavaria-46/?currency=EUR",
		},
		{
			name:     "existing params kept",
			url:      "https://www.boataround.com/ru/yachta/bavaria-46/?checkIn=2026-05-02",
			currency: "EUR",
			expected: "https://www.boataround.com/ru/yachta/bavaria-46/?checkIn=2026-05-02&currency=EUR",
		},
		{
			name:     "existing currency overwritten",
			url:      "https://www.boataround.com/ru/yachta/bavaria-46/?currency=USD",
			currency: "EUR",
			expected: "https://www.boataround.com/ru/yachta/bavaria-46/?currency=EUR",
		},
		{
			name:     "empty currency defaults to EUR",
			url:      "https://www.boataround.com/ru/yachta/bavaria-46/",
			currency: "",
			expected: "https://www.boataround.com/ru/yachta/bavaria-46/?currency=EUR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AddCurrency(tt.url, tt.currency))
		})
	}
}
