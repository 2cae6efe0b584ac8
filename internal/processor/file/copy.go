// Package file implements the strategies that publish an upload unchanged.
package file

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/abdul-hamid-achik/mediaflow/internal/events"
	"github.com/abdul-hamid-achik/mediaflow/internal/metrics"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
	"github.com/abdul-hamid-achik/mediaflow/internal/storage"
)

// eventFunc builds the success payload from the owner id and published URL.
type eventFunc func(ownerID, url string) any

type route struct {
	prefix  string
	urlKey  string
	eventFn eventFunc
}

var routes = map[processor.UploadType]route{
	processor.UploadTypeGenericResource: {
		prefix: "resources",
		urlKey: "resource",
		eventFn: func(id, url string) any {
			return events.ResourceProcessed{LessonID: id, ResourceURL: url}
		},
	},
	processor.UploadTypeChatAttachment: {
		prefix: "attachments",
		urlKey: "attachment",
		eventFn: func(id, url string) any {
			return events.AttachmentProcessed{ConversationID: id, AttachmentURL: url}
		},
	},
}

// CopyProcessor publishes the raw object to <prefix>/<ownerId>/<name> in the
// processed bucket.
type CopyProcessor struct {
	uploadType processor.UploadType
	route      route
	cfg        processor.Config
	storage    storage.Storage
	lifecycle  *processor.Lifecycle
}

var _ processor.Strategy = (*CopyProcessor)(nil)

func NewCopyProcessor(t processor.UploadType, cfg processor.Config, store storage.Storage, lifecycle *processor.Lifecycle) (*CopyProcessor, error) {
	r, ok := routes[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a copy upload", processor.ErrUnsupportedType, t)
	}
	return &CopyProcessor{uploadType: t, route: r, cfg: cfg, storage: store, lifecycle: lifecycle}, nil
}

// NewResourceProcessor handles generic-resource uploads owned by a lesson.
func NewResourceProcessor(cfg processor.Config, store storage.Storage, lifecycle *processor.Lifecycle) *CopyProcessor {
	p, _ := NewCopyProcessor(processor.UploadTypeGenericResource, cfg, store, lifecycle)
	return p
}

// NewAttachmentProcessor handles chat-attachment uploads owned by a conversation.
func NewAttachmentProcessor(cfg processor.Config, store storage.Storage, lifecycle *processor.Lifecycle) *CopyProcessor {
	p, _ := NewCopyProcessor(processor.UploadTypeChatAttachment, cfg, store, lifecycle)
	return p
}

func (p *CopyProcessor) UploadType() processor.UploadType {
	return p.uploadType
}

func (p *CopyProcessor) CanProcess(metadata map[string]string) bool {
	return processor.Matches(p.uploadType, metadata)
}

func (p *CopyProcessor) Process(ctx context.Context, pc *processor.Context) error {
	return p.lifecycle.Run(ctx, p.uploadType, pc, func(ctx context.Context, ownerID string) (*processor.Outcome, error) {
		start := time.Now()
		key := fmt.Sprintf("%s/%s/%s", p.route.prefix, ownerID, path.Base(pc.Key))

		if err := Copy(ctx, p.storage, pc.Bucket, pc.Key, p.cfg.ProcessedBucket, key, p.cfg.TempDir); err != nil {
			return nil, err
		}
		metrics.RecordProcessorStage(string(p.uploadType), "copy", time.Since(start).Seconds())

		url := p.storage.PublicURL(p.cfg.ProcessedBucket, key)
		return &processor.Outcome{
			URLs:  map[string]string{p.route.urlKey: url},
			Event: p.route.eventFn(ownerID, url),
		}, nil
	})
}

// Copy moves an object between buckets through a temp file so the upload
// knows its size up front.
func Copy(ctx context.Context, store storage.Storage, srcBucket, srcKey, dstBucket, dstKey, tempDir string) error {
	f, err := os.CreateTemp(tempDir, "copy-*"+path.Ext(srcKey))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	_ = f.Close()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := storage.DownloadToFile(ctx, store, srcBucket, srcKey, tmp); err != nil {
		return fmt.Errorf("download %s: %w", srcKey, err)
	}

	if err := storage.UploadFile(ctx, store, dstBucket, dstKey, tmp); err != nil {
		return fmt.Errorf("upload %s: %w", dstKey, err)
	}
	return nil
}
