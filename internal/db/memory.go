package db

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// MemoryStore is an in-process Querier with the same invariants as the
// media_assets table. Errors can be injected per operation.
type MemoryStore struct {
	mu     sync.RWMutex
	assets map[string]MediaAsset
	now    func() time.Time

	MarkProcessingErr error
	MarkCompletedErr  error
	MarkFailedErr     error
	GetErr            error

	MarkProcessingCalls []MarkProcessingParams
	MarkCompletedCalls  []MarkCompletedParams
	MarkFailedCalls     []MarkFailedParams
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets: make(map[string]MediaAsset),
		now:    time.Now,
	}
}

func (m *MemoryStore) timestamp() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: m.now(), Valid: true}
}

// Put stores an asset as-is, bypassing state checks.
func (m *MemoryStore) Put(a MediaAsset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[a.S3Key] = a
}

// Writes returns the number of state-changing calls made so far.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.MarkProcessingCalls) + len(m.MarkCompletedCalls) + len(m.MarkFailedCalls)
}

func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.assets)
}

func copyAsset(a MediaAsset) MediaAsset {
	a.ProcessedUrls = maps.Clone(a.ProcessedUrls)
	if a.ProcessedUrls == nil {
		a.ProcessedUrls = map[string]string{}
	}
	return a
}

func (m *MemoryStore) CountMediaAssetsByStatus(ctx context.Context) ([]CountMediaAssetsByStatusRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[MediaStatus]int64)
	for _, a := range m.assets {
		counts[a.Status]++
	}
	rows := make([]CountMediaAssetsByStatusRow, 0, len(counts))
	for status, n := range counts {
		rows = append(rows, CountMediaAssetsByStatusRow{Status: status, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Status < rows[j].Status })
	return rows, nil
}

func (m *MemoryStore) FailStaleProcessing(ctx context.Context, arg FailStaleProcessingParams) ([]MediaAsset, error) {
	if arg.ErrorMessage == "" {
		arg.ErrorMessage = unknownErrorMessage
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []MediaAsset
	for key, a := range m.assets {
		if a.Status != MediaStatusProcessing || !a.UpdatedAt.Time.Before(arg.UpdatedBefore.Time) {
			continue
		}
		a.Status = MediaStatusFailed
		a.ErrorMessage = pgtype.Text{String: arg.ErrorMessage, Valid: true}
		a.ProcessedUrls = map[string]string{}
		a.UpdatedAt = m.timestamp()
		m.assets[key] = a
		out = append(out, copyAsset(a))
	}
	return out, nil
}

func (m *MemoryStore) GetMediaAssetByS3Key(ctx context.Context, s3Key string) (MediaAsset, error) {
	if m.GetErr != nil {
		return MediaAsset{}, m.GetErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assets[s3Key]
	if !ok {
		return MediaAsset{}, ErrAssetNotFound
	}
	return copyAsset(a), nil
}

func (m *MemoryStore) ListMediaAssetsByStatus(ctx context.Context, arg ListMediaAssetsByStatusParams) ([]MediaAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []MediaAsset
	for _, a := range m.assets {
		if a.Status == arg.Status {
			out = append(out, copyAsset(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.Time.After(out[j].UpdatedAt.Time)
	})
	if arg.Limit > 0 && len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (m *MemoryStore) MarkCompleted(ctx context.Context, arg MarkCompletedParams) (MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MarkCompletedCalls = append(m.MarkCompletedCalls, arg)
	if m.MarkCompletedErr != nil {
		return MediaAsset{}, m.MarkCompletedErr
	}
	if len(arg.ProcessedUrls) == 0 {
		return MediaAsset{}, ErrEmptyProcessedURLs
	}

	a, ok := m.assets[arg.S3Key]
	if !ok {
		return MediaAsset{}, ErrAssetNotFound
	}
	a.Status = MediaStatusCompleted
	a.ProcessedUrls = maps.Clone(arg.ProcessedUrls)
	a.ErrorMessage = pgtype.Text{}
	a.UpdatedAt = m.timestamp()
	m.assets[arg.S3Key] = a
	return copyAsset(a), nil
}

func (m *MemoryStore) MarkFailed(ctx context.Context, arg MarkFailedParams) (MediaAsset, error) {
	if arg.ErrorMessage == "" {
		arg.ErrorMessage = unknownErrorMessage
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.MarkFailedCalls = append(m.MarkFailedCalls, arg)
	if m.MarkFailedErr != nil {
		return MediaAsset{}, m.MarkFailedErr
	}

	a, ok := m.assets[arg.S3Key]
	if !ok {
		return MediaAsset{}, ErrAssetNotFound
	}
	a.Status = MediaStatusFailed
	a.ErrorMessage = pgtype.Text{String: arg.ErrorMessage, Valid: true}
	a.ProcessedUrls = map[string]string{}
	a.UpdatedAt = m.timestamp()
	m.assets[arg.S3Key] = a
	return copyAsset(a), nil
}

func (m *MemoryStore) MarkProcessing(ctx context.Context, arg MarkProcessingParams) (MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MarkProcessingCalls = append(m.MarkProcessingCalls, arg)
	if m.MarkProcessingErr != nil {
		return MediaAsset{}, m.MarkProcessingErr
	}

	now := m.timestamp()
	a, ok := m.assets[arg.S3Key]
	if !ok {
		a = MediaAsset{
			ID:        pgtype.UUID{Bytes: uuid.New(), Valid: true},
			S3Key:     arg.S3Key,
			CreatedAt: now,
		}
	}
	a.UploadType = arg.UploadType
	if arg.UserID.Valid {
		a.UserID = arg.UserID
	}
	if arg.ParentEntityID.Valid {
		a.ParentEntityID = arg.ParentEntityID
	}
	a.Status = MediaStatusProcessing
	a.ProcessedUrls = map[string]string{}
	a.ErrorMessage = pgtype.Text{}
	a.UpdatedAt = now
	m.assets[arg.S3Key] = a
	return copyAsset(a), nil
}

func (m *MemoryStore) UpsertUploading(ctx context.Context, arg UpsertUploadingParams) (MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.timestamp()
	a, ok := m.assets[arg.S3Key]
	if !ok {
		a = MediaAsset{
			ID:            pgtype.UUID{Bytes: uuid.New(), Valid: true},
			S3Key:         arg.S3Key,
			Status:        MediaStatusUploading,
			ProcessedUrls: map[string]string{},
			CreatedAt:     now,
		}
	}
	a.UploadType = arg.UploadType
	a.UserID = arg.UserID
	a.ParentEntityID = arg.ParentEntityID
	a.UpdatedAt = now
	m.assets[arg.S3Key] = a
	return copyAsset(a), nil
}

var _ Querier = (*MemoryStore)(nil)
