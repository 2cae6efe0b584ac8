package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ Storage = (*MinIOStorage)(nil)

type MinIOStorage struct {
	client *minio.Client
	config *Config
}

func NewMinIOStorage(cfg *Config) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOStorage{
		client: client,
		config: cfg,
	}, nil
}

func (s *MinIOStorage) EnsureBuckets(ctx context.Context) error {
	log := logger.FromContext(ctx)

	for _, bucket := range s.config.Buckets {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket existence: %w", err)
		}
		if exists {
			continue
		}

		log.Info("creating bucket", "bucket", bucket, "region", s.config.Region)
		err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{
			Region: s.config.Region,
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		log.Info("bucket created", "bucket", bucket)
	}

	return nil
}

func (s *MinIOStorage) Upload(ctx context.Context, bucket, key string, reader io.Reader, contentType string, size int64) error {
	log := logger.FromContext(ctx)
	start := time.Now()

	_, err := s.client.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		log.Error("storage upload failed", "bucket", bucket, "key", key, "size", size, "error", err)
		return fmt.Errorf("upload to %s/%s: %w", bucket, key, err)
	}

	log.Debug("storage upload completed", "bucket", bucket, "key", key, "size", size, "content_type", contentType, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *MinIOStorage) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		log.Error("storage download failed", "bucket", bucket, "key", key, "error", err)
		return nil, fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}

	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNotFoundError(err) {
			log.Warn("storage object not found", "bucket", bucket, "key", key)
			return nil, ErrNotFound
		}
		log.Error("storage stat failed", "bucket", bucket, "key", key, "error", err)
		return nil, fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}

	log.Debug("storage download started", "bucket", bucket, "key", key, "size", info.Size, "duration_ms", time.Since(start).Milliseconds())
	return obj, nil
}

func (s *MinIOStorage) Delete(ctx context.Context, bucket, key string) error {
	log := logger.FromContext(ctx)

	err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		log.Error("storage delete failed", "bucket", bucket, "key", key, "error", err)
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}

	log.Debug("storage object deleted", "bucket", bucket, "key", key)
	return nil
}

func (s *MinIOStorage) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("check exists %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

func (s *MinIOStorage) GetTags(ctx context.Context, bucket, key string) (map[string]string, error) {
	t, err := s.client.GetObjectTagging(ctx, bucket, key, minio.GetObjectTaggingOptions{})
	if err != nil {
		if isNotFoundError(err) {
			return nil, ErrNotFound
		}
		if isAccessDenied(err) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("get tags %s/%s: %w", bucket, key, err)
	}
	return t.ToMap(), nil
}

func (s *MinIOStorage) PublicURL(bucket, key string) string {
	base := s.config.PublicBaseURL
	if base == "" {
		base = s.client.EndpointURL().String()
	}
	return publicURL(base, bucket, key)
}

func (s *MinIOStorage) HealthCheck(ctx context.Context) error {
	for _, bucket := range s.config.Buckets {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("bucket %s: %w", bucket, err)
		}
		if !exists {
			return fmt.Errorf("bucket %s does not exist", bucket)
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errResp := minio.ToErrorResponse(err)
	return errResp.Code == "NoSuchKey"
}

func isAccessDenied(err error) bool {
	return minio.ToErrorResponse(err).Code == "AccessDenied"
}
