package imagestore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DmitriyKurilenko/rent-scraper/internal/config"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
		hasError bool
	}{
		{
			name:     "standard boats path",
			path:     "boats/62b96d157a9323583a5a4880/650d96fa43b7cac28800ead4.jpg",
			expected: "62b96d157a9323583a5a4880/650d96fa43b7cac28800ead4.jpg",
		},
		{
			name:     "leading slash trimmed",
			path:     "/boats/62b96d157a9323583a5a4880/pic.jpg",
			expected: "62b96d157a9323583a5a4880/pic.jpg",
		},
		{
			name:     "id without boats prefix",
			path:     "62b96d157a9323583a5a4880/pic.jpg",
			expected: "62b96d157a9323583a5a4880/pic.jpg",
		},
		{
			name:     "no id segment",
			path:     "gallery/some/pic.jpg",
			hasError: true,
		},
		{
			name:     "single segment",
			path:     "pic.jpg",
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.path)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, key)
		})
	}
}

func TestCDNURL(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{
			path:     "boats/62b96d157a9323583a5a4880/pic.jpg",
			expected: "https://cdn2.prvms.ru/yachts/62b96d157a9323583a5a4880/pic.jpg",
		},
		{
			path:     "/boats/62b96d157a9323583a5a4880/pic.jpg",
			expected: "https://cdn2.prvms.ru/yachts/62b96d157a9323583a5a4880/pic.jpg",
		},
		{
			path:     "62b96d157a9323583a5a4880/pic.jpg",
			expected: "https://cdn2.prvms.ru/yachts/62b96d157a9323583a5a4880/pic.jpg",
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CDNURL(tt.path))
	}
}

func TestSourceURL(t *testing.T) {
	got := SourceURL("boats/62b96d157a9323583a5a4880/pic.jpg")
	assert.Equal(t, "https://imageresizer.yachtsbt.com/boats/62b96d157a9323583a5a4880/pic.jpg?method=fit&width=1920&height=1080&format=jpeg", got)
}

func TestEnsureImage_LocalCopySkipsDownload(t *testing.T) {
	mediaRoot := t.TempDir()
	imagePath := "boats/62b96d157a9323583a5a4880/pic.jpg"

	localPath := filepath.Join(mediaRoot, filepath.FromSlash(imagePath))
	require.NoError(t, os.MkdirAll(filepath.Dir(localPath), 0o755))
	require.NoError(t, os.WriteFile(localPath, []byte("jpeg bytes"), 0o644))

	store, err := New(config.StorageConfig{MediaRoot: mediaRoot}, slog.Default())
	require.NoError(t, err)

	url, err := store.EnsureImage(context.Background(), imagePath)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn2.prvms.ru/yachts/62b96d157a9323583a5a4880/pic.jpg", url)

	// a second call finds the same copy and stays deterministic
	again, err := store.EnsureImage(context.Background(), imagePath)
	require.NoError(t, err)
	assert.Equal(t, url, again)
}

func TestEnsureImage_BadPath(t *testing.T) {
	store, err := New(config.StorageConfig{MediaRoot: t.TempDir()}, slog.Default())
	require.NoError(t, err)

	_, err = store.EnsureImage(context.Background(), "not-a-valid-path")
	assert.Error(t, err)
}

func TestPutOptions(t *testing.T) {
	opts := putOptions()
	assert.Equal(t, "image/jpeg", opts.ContentType)
	// objects must come out of the bucket readable by the CDN
	assert.Equal(t, "public-read", opts.UserMetadata["x-amz-acl"])
}
