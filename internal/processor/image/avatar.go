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

// DefaultAvatarVariants are the square crops published for every avatar.
var DefaultAvatarVariants = []Variant{
	{Name: "small", Width: 64, Height: 64},
	{Name: "medium", Width: 256, Height: 256},
	{Name: "large", Width: 512, Height: 512},
}

type AvatarConfig struct {
	processor.Config
	Quality int
	Limits  Limits
}

var _ processor.Strategy = (*AvatarProcessor)(nil)

// AvatarProcessor crops a profile picture into the small, medium and large
// squares under avatars/<userId>/.
type AvatarProcessor struct {
	cfg       AvatarConfig
	storage   storage.Storage
	lifecycle *processor.Lifecycle
}

func NewAvatarProcessor(cfg AvatarConfig, store storage.Storage, lifecycle *processor.Lifecycle) *AvatarProcessor {
	cfg.Quality = getQuality(cfg.Quality)
	return &AvatarProcessor{cfg: cfg, storage: store, lifecycle: lifecycle}
}

func (p *AvatarProcessor) UploadType() processor.UploadType {
	return processor.UploadTypeAvatar
}

func (p *AvatarProcessor) CanProcess(metadata map[string]string) bool {
	return processor.Matches(processor.UploadTypeAvatar, metadata)
}

func (p *AvatarProcessor) Process(ctx context.Context, pc *processor.Context) error {
	return p.lifecycle.Run(ctx, processor.UploadTypeAvatar, pc, func(ctx context.Context, userID string) (*processor.Outcome, error) {
		start := time.Now()
		img, err := fetchImage(ctx, p.storage, pc.Bucket, pc.Key, p.cfg.Limits)
		if err != nil {
			return nil, err
		}

		stem := strings.TrimSuffix(path.Base(pc.Key), path.Ext(pc.Key))
		urls := make(map[string]string, len(DefaultAvatarVariants))
		for _, v := range DefaultAvatarVariants {
			key := fmt.Sprintf("avatars/%s/%s-%s.jpg", userID, stem, v.Name)
			url, err := putJPEG(ctx, p.storage, p.cfg.ProcessedBucket, key, createThumbnail(img, v.Width, v.Height, "center"), p.cfg.Quality)
			if err != nil {
				return nil, err
			}
			urls[v.Name] = url
		}
		metrics.RecordProcessorStage(string(processor.UploadTypeAvatar), "transform", time.Since(start).Seconds())

		return &processor.Outcome{
			URLs: urls,
			Event: events.AvatarProcessed{
				UserID: userID,
				AvatarURLs: events.AvatarURLs{
					Small:  urls["small"],
					Medium: urls["medium"],
					Large:  urls["large"],
				},
			},
		}, nil
	})
}
