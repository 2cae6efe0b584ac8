package image

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/mediaflow/internal/events"
	"github.com/abdul-hamid-achik/mediaflow/internal/metrics"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
	"github.com/abdul-hamid-achik/mediaflow/internal/storage"
)

// DefaultThumbnail is the 16:9 course card size.
var DefaultThumbnail = Variant{Name: "thumbnail", Width: 1280, Height: 720}

type ThumbnailConfig struct {
	processor.Config
	Size     Variant
	Position string
	Quality  int
	Limits   Limits
}

var _ processor.Strategy = (*ThumbnailProcessor)(nil)

type ThumbnailProcessor struct {
	cfg       ThumbnailConfig
	storage   storage.Storage
	lifecycle *processor.Lifecycle
}

func NewThumbnailProcessor(cfg ThumbnailConfig, store storage.Storage, lifecycle *processor.Lifecycle) *ThumbnailProcessor {
	if cfg.Size.Width <= 0 || cfg.Size.Height <= 0 {
		cfg.Size = DefaultThumbnail
	}
	cfg.Quality = getQuality(cfg.Quality)
	return &ThumbnailProcessor{cfg: cfg, storage: store, lifecycle: lifecycle}
}

func (p *ThumbnailProcessor) UploadType() processor.UploadType {
	return processor.UploadTypeThumbnail
}

func (p *ThumbnailProcessor) CanProcess(metadata map[string]string) bool {
	return processor.Matches(processor.UploadTypeThumbnail, metadata)
}

func (p *ThumbnailProcessor) Process(ctx context.Context, pc *processor.Context) error {
	return p.lifecycle.Run(ctx, processor.UploadTypeThumbnail, pc, func(ctx context.Context, courseID string) (*processor.Outcome, error) {
		start := time.Now()
		img, err := fetchImage(ctx, p.storage, pc.Bucket, pc.Key, p.cfg.Limits)
		if err != nil {
			return nil, err
		}

		thumb := createThumbnail(img, p.cfg.Size.Width, p.cfg.Size.Height, p.cfg.Position)
		stem := strings.TrimSuffix(path.Base(pc.Key), path.Ext(pc.Key))
		key := fmt.Sprintf("thumbnails/%s/%s.jpg", courseID, stem)

		url, err := putJPEG(ctx, p.storage, p.cfg.ProcessedBucket, key, thumb, p.cfg.Quality)
		if err != nil {
			return nil, err
		}
		metrics.RecordProcessorStage(string(processor.UploadTypeThumbnail), "transform", time.Since(start).Seconds())

		return &processor.Outcome{
			URLs:  map[string]string{"thumbnail": url},
			Event: events.ThumbnailProcessed{CourseID: courseID, ThumbnailURL: url},
		}, nil
	})
}
