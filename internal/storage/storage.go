package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound     = errors.New("storage: object not found")
	ErrInvalidKey   = errors.New("storage: invalid key")
	ErrAccessDenied = errors.New("storage: access denied")
)

// Storage addresses objects by bucket and key. The worker reads from the raw
// upload bucket and writes renditions to the processed bucket.
type Storage interface {
	Upload(ctx context.Context, bucket, key string, reader io.Reader, contentType string, size int64) error
	Download(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, key string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
	GetTags(ctx context.Context, bucket, key string) (map[string]string, error)
	PublicURL(bucket, key string) string
	HealthCheck(ctx context.Context) error
}

type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	Region        string
	PublicBaseURL string
	// Buckets are checked by HealthCheck and created by EnsureBuckets.
	Buckets []string
}

const (
	ContentTypeHLSPlaylist = "application/vnd.apple.mpegurl"
	ContentTypeMPEGTS      = "video/mp2t"
	ContentTypeOctetStream = "application/octet-stream"
)

var contentTypes = map[string]string{
	".m3u8": ContentTypeHLSPlaylist,
	".ts":   ContentTypeMPEGTS,
	".mp4":  "video/mp4",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".csv":  "text/csv",
	".json": "application/json",
	".txt":  "text/plain",
	".zip":  "application/zip",
}

// ContentTypeFor picks a content type from the file extension.
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return ContentTypeOctetStream
}

// DownloadToFile streams an object into path and returns the bytes written.
func DownloadToFile(ctx context.Context, s Storage, bucket, key, path string) (int64, error) {
	r, err := s.Download(ctx, bucket, key)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", path, err)
	}
	return n, nil
}

// UploadFile uploads a local file using the content type implied by its name.
func UploadFile(ctx context.Context, s Storage, bucket, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	return s.Upload(ctx, bucket, key, f, ContentTypeFor(path), info.Size())
}

// publicURL joins base, bucket and key with each key segment escaped.
func publicURL(base, bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + strings.Join(segments, "/")
}

// Open builds the backend named by driver ("minio" or "s3"). MinIO buckets
// are created when missing.
func Open(ctx context.Context, driver string, cfg *Config) (Storage, error) {
	switch driver {
	case "minio":
		s, err := NewMinIOStorage(cfg)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBuckets(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "s3":
		return NewS3Storage(ctx, cfg)
	}
	return nil, fmt.Errorf("storage: unknown driver %q", driver)
}
