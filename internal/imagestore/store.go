// Package imagestore mirrors boat gallery images into an S3-compatible
// bucket fronted by a CDN.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/DmitriyKurilenko/rent-scraper/internal/config"
)

const (
	// imageHost serves resized originals.
	imageHost = "imageresizer.yachtsbt.com"
	// cdnBase is the public CDN in front of the bucket.
	cdnBase = "https://cdn2.prvms.ru"
)

// Store downloads gallery images once, keeps a local copy and mirrors them
// into the bucket. Lookups are cheap: if the object already exists in the
// bucket or on disk no download happens.
type Store struct {
	client     *miniogo.Client
	bucket     string
	mediaRoot  string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg config.StorageConfig, logger *slog.Logger) (*Store, error) {
	s := &Store{
		bucket:     cfg.Bucket,
		mediaRoot:  cfg.MediaRoot,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "imagestore"),
	}

	if cfg.Endpoint == "" || cfg.AccessKey == "" {
		// No bucket configured: run with the local copy only. The CDN URL
		// is still returned so templates keep working once a sync runs.
		s.logger.Warn("object storage not configured, keeping images local only")
		return s, nil
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	s.client = client

	s.logger.Info("image store initialized",
		"endpoint", cfg.Endpoint,
		"bucket", cfg.Bucket,
		"media_root", cfg.MediaRoot)

	return s, nil
}

// ParseKey extracts the object key {boat_id}/{filename} from a raw image
// path like boats/62b96d157a9323583a5a4880/650d96fa43b7cac28800ead4.jpg.
// The boat id is the 24-hex object id segment.
func ParseKey(imagePath string) (string, error) {
	parts := strings.Split(strings.Trim(imagePath, "/"), "/")
	if len(parts) < 2 {
		return "", fmt.Errorf("image path %q has no id segment", imagePath)
	}

	filename := parts[len(parts)-1]
	var boatID string
	for _, part := range parts {
		if isHex24(part) {
			boatID = part
			break
		}
	}
	if boatID == "" || filename == "" {
		return "", fmt.Errorf("image path %q has no 24-hex boat id", imagePath)
	}

	return boatID + "/" + filename, nil
}

func isHex24(s string) bool {
	if len(s) != 24 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// CDNURL builds the public URL for an image path, stripping the source
// boats/ prefix and adding the bucket prefix the CDN expects.
func CDNURL(imagePath string) string {
	clean := strings.TrimPrefix(strings.TrimLeft(imagePath, "/"), "boats/")
	return cdnBase + "/yachts/" + clean
}

// SourceURL builds the resizer URL the image is downloaded from.
func SourceURL(imagePath string) string {
	return fmt.Sprintf("https://%s/%s?method=fit&width=1920&height=1080&format=jpeg", imageHost, imagePath)
}

// EnsureImage makes sure the image behind imagePath is mirrored, and
// returns its CDN URL. Already-mirrored and already-downloaded images are
// skipped. A failed bucket upload is logged but does not fail the call:
// the local copy can be synced later.
func (s *Store) EnsureImage(ctx context.Context, imagePath string) (string, error) {
	key, err := ParseKey(imagePath)
	if err != nil {
		return "", err
	}
	cdnURL := CDNURL(imagePath)

	if s.existsInBucket(ctx, key) {
		s.logger.Debug("image already in bucket", "key", key)
		return cdnURL, nil
	}

	localPath := filepath.Join(s.mediaRoot, filepath.FromSlash(imagePath))
	if _, err := os.Stat(localPath); err == nil {
		s.logger.Debug("image already on disk", "path", localPath)
		s.upload(ctx, key, localPath)
		return cdnURL, nil
	}

	if err := s.download(ctx, imagePath, localPath); err != nil {
		return "", err
	}
	s.upload(ctx, key, localPath)

	return cdnURL, nil
}

func (s *Store) existsInBucket(ctx context.Context, key string) bool {
	if s.client == nil {
		return false
	}
	_, err := s.client.StatObject(ctx, s.bucket, key, miniogo.StatObjectOptions{})
	return err == nil
}

func (s *Store) download(ctx context.Context, imagePath, localPath string) error {
	sourceURL := SourceURL(imagePath)
	s.logger.Info("downloading image", "url", sourceURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download image %s: %w", imagePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image download %s returned status %d", imagePath, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create image dir: %w", err)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(localPath)
		return fmt.Errorf("failed to save image: %w", err)
	}

	s.logger.Info("image saved", "path", localPath)
	return nil
}

// upload pushes the local copy to the bucket, best effort.
func (s *Store) upload(ctx context.Context, key, localPath string) {
	if s.client == nil {
		return
	}
	if s.existsInBucket(ctx, key) {
		return
	}

	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, putOptions())
	if err != nil {
		s.logger.Warn("failed to upload image", "key", key, "error", err)
		return
	}
	s.logger.Info("image uploaded", "key", key)
}

// putOptions marks every uploaded object public-read so the CDN can serve
// it without signed URLs.
func putOptions() miniogo.PutObjectOptions {
	return miniogo.PutObjectOptions{
		ContentType: "image/jpeg",
		UserMetadata: map[string]string{
			"x-amz-acl": "public-read",
		},
	}
}
