package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/abdul-hamid-achik/mediaflow/internal/db"
	"github.com/abdul-hamid-achik/mediaflow/internal/events"
	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
	"github.com/abdul-hamid-achik/mediaflow/internal/metrics"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
)

const staleProcessingMessage = "processing abandoned: worker stopped before finishing"

// Prefixes of the scratch entries strategies create under the temp dir.
var tempPrefixes = []string{"video-", "report-", "copy-"}

type CleanupDependencies struct {
	Store     db.Querier
	Publisher events.Publisher
	TempDir   string
	// Assets in processing longer than this are failed.
	StaleAfter time.Duration
	// Temp entries older than this are removed.
	TempMaxAge time.Duration
	Now        func() time.Time
}

type CleanupStats struct {
	StaleFailed     int
	TempRemoved     int
	TempErrors      int
	PublishErrors   int
	DatabaseErrored bool
}

// RunCleanup fails assets abandoned in processing and removes scratch
// directories left behind by killed workers. Each step runs even when the
// other fails.
func RunCleanup(ctx context.Context, deps *CleanupDependencies) (*CleanupStats, error) {
	log := logger.FromContext(ctx)
	log.Info("starting cleanup job")
	start := time.Now()

	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.TempDir == "" {
		deps.TempDir = os.TempDir()
	}

	stats := &CleanupStats{}
	var firstErr error

	if deps.Store != nil && deps.StaleAfter > 0 {
		if err := failStaleProcessing(ctx, deps, stats); err != nil {
			log.Error("failed to fail stale assets", "error", err)
			stats.DatabaseErrored = true
			firstErr = err
		}
	}

	if deps.TempMaxAge > 0 {
		if err := sweepTempDir(ctx, deps, stats); err != nil {
			log.Error("failed to sweep temp dir", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	log.Info("cleanup job completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"stale_failed", stats.StaleFailed,
		"temp_removed", stats.TempRemoved,
		"temp_errors", stats.TempErrors,
		"publish_errors", stats.PublishErrors,
	)

	return stats, firstErr
}

func failStaleProcessing(ctx context.Context, deps *CleanupDependencies, stats *CleanupStats) error {
	log := logger.FromContext(ctx)

	failed, err := deps.Store.FailStaleProcessing(ctx, db.FailStaleProcessingParams{
		UpdatedBefore: pgtype.Timestamptz{Time: deps.Now().Add(-deps.StaleAfter), Valid: true},
		ErrorMessage:  staleProcessingMessage,
	})
	if err != nil {
		return fmt.Errorf("fail stale processing: %w", err)
	}

	for _, asset := range failed {
		stats.StaleFailed++
		log.Warn("failed stale asset", "s3_key", asset.S3Key, "upload_type", asset.UploadType)

		if deps.Publisher == nil {
			continue
		}
		t := processor.UploadType(asset.UploadType)
		if !t.Valid() || !asset.ParentEntityID.Valid {
			continue
		}

		routingKey := events.FailedKey(asset.UploadType)
		e, err := events.NewEvent(routingKey, events.Failed{
			OwnerField: t.OwnerField(),
			OwnerID:    asset.ParentEntityID.String,
			Reason:     staleProcessingMessage,
		})
		if err == nil {
			err = deps.Publisher.Publish(ctx, e)
		}
		if err != nil {
			log.Error("failed to publish stale failure", "s3_key", asset.S3Key, "error", err)
			metrics.RecordEventPublished(routingKey, "error")
			stats.PublishErrors++
			continue
		}
		metrics.RecordEventPublished(routingKey, "success")
	}

	metrics.RecordCleanup("stale_failed", stats.StaleFailed)
	return nil
}

func sweepTempDir(ctx context.Context, deps *CleanupDependencies, stats *CleanupStats) error {
	log := logger.FromContext(ctx)

	entries, err := os.ReadDir(deps.TempDir)
	if err != nil {
		return fmt.Errorf("read temp dir: %w", err)
	}

	cutoff := deps.Now().Add(-deps.TempMaxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !hasTempPrefix(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(deps.TempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Warn("failed to remove temp entry", "path", path, "error", err)
			stats.TempErrors++
			continue
		}
		stats.TempRemoved++
	}

	metrics.RecordCleanup("temp_removed", stats.TempRemoved)
	return nil
}

func hasTempPrefix(name string) bool {
	for _, p := range tempPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
