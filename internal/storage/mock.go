package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"sync"
)

// MemoryStorage is an in-memory implementation of Storage for testing.
// It stores objects per bucket and is safe for concurrent use.
type MemoryStorage struct {
	files map[string]memoryFile
	mu    sync.RWMutex

	// UploadErr, when set, is called before every upload and can fail it.
	UploadErr func(bucket, key string) error
	// TagsErr fails every GetTags call when set.
	TagsErr error
}

type memoryFile struct {
	data        []byte
	contentType string
	tags        map[string]string
}

// NewMemoryStorage creates a new in-memory storage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		files: make(map[string]memoryFile),
	}
}

// Ensure MemoryStorage implements Storage
var _ Storage = (*MemoryStorage)(nil)

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

// Upload stores data at the given key.
func (s *MemoryStorage) Upload(ctx context.Context, bucket, key string, reader io.Reader, contentType string, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if bucket == "" || key == "" {
		return ErrInvalidKey
	}

	if s.UploadErr != nil {
		if err := s.UploadErr(bucket, key); err != nil {
			return err
		}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[objectKey(bucket, key)] = memoryFile{
		data:        data,
		contentType: contentType,
	}

	return nil
}

// Download retrieves data from the given key.
func (s *MemoryStorage) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.files[objectKey(bucket, key)]
	if !exists {
		return nil, ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(file.data)), nil
}

// Delete removes the object at the given key.
func (s *MemoryStorage) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, objectKey(bucket, key))
	return nil
}

// Exists checks if an object exists at the given key.
func (s *MemoryStorage) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.files[objectKey(bucket, key)]
	return exists, nil
}

func (s *MemoryStorage) GetTags(ctx context.Context, bucket, key string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.TagsErr != nil {
		return nil, s.TagsErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.files[objectKey(bucket, key)]
	if !exists {
		return nil, ErrNotFound
	}
	out := maps.Clone(file.tags)
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

func (s *MemoryStorage) PublicURL(bucket, key string) string {
	return publicURL("http://test-storage", bucket, key)
}

func (s *MemoryStorage) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

// Put stores an object with tags directly (test helper).
func (s *MemoryStorage) Put(bucket, key string, data []byte, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[objectKey(bucket, key)] = memoryFile{
		data:        data,
		contentType: ContentTypeFor(key),
		tags:        maps.Clone(tags),
	}
}

// GetData returns the raw data for a key (test helper).
func (s *MemoryStorage) GetData(bucket, key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.files[objectKey(bucket, key)]
	if !exists {
		return nil, false
	}
	return file.data, true
}

// GetContentType returns the content type for a key (test helper).
func (s *MemoryStorage) GetContentType(bucket, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.files[objectKey(bucket, key)]
	if !exists {
		return "", false
	}
	return file.contentType, true
}

// Keys lists stored objects in a bucket (test helper).
func (s *MemoryStorage) Keys(bucket string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := bucket + "/"
	var keys []string
	for k := range s.files {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k[len(prefix):])
		}
	}
	return keys
}

// Clear removes all files (test helper).
func (s *MemoryStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string]memoryFile)
}

// Count returns the number of stored files (test helper).
func (s *MemoryStorage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
