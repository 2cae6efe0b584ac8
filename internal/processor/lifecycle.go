package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/mediaflow/internal/apperror"
	"github.com/abdul-hamid-achik/mediaflow/internal/db"
	"github.com/abdul-hamid-achik/mediaflow/internal/events"
	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
	"github.com/abdul-hamid-achik/mediaflow/internal/metrics"
	"github.com/abdul-hamid-achik/mediaflow/internal/tracing"
)

// Outcome is what a transform hands back on success.
type Outcome struct {
	// URLs becomes processedUrls and must not be empty.
	URLs map[string]string
	// Event is the success payload published on media.<type>.processed.
	Event any
}

// TransformFunc performs the type-specific work for one object.
type TransformFunc func(ctx context.Context, ownerID string) (*Outcome, error)

// Lifecycle runs the state transitions and event publishing shared by all
// strategies. The asset store is always written before an event is published.
type Lifecycle struct {
	Store     db.Querier
	Publisher events.Publisher
}

func NewLifecycle(store db.Querier, publisher events.Publisher) *Lifecycle {
	return &Lifecycle{Store: store, Publisher: publisher}
}

func (l *Lifecycle) Run(ctx context.Context, t UploadType, pc *Context, transform TransformFunc) error {
	ownerField := t.OwnerField()
	ownerID := pc.Metadata[ownerField]
	if ownerID == "" {
		return apperror.Wrap(fmt.Errorf("%s is required for %s", ownerField, t), ErrMissingOwner)
	}

	ctx, span := tracing.StartProcessorSpan(ctx, string(t), pc.Key)
	defer span.End()

	log := logger.FromContext(ctx).With("upload_type", string(t), ownerField, ownerID)
	ctx = logger.WithLogger(ctx, log)
	log.Info("processing started", "bucket", pc.Bucket)
	start := time.Now()

	_, err := l.Store.MarkProcessing(ctx, db.MarkProcessingParams{
		S3Key:          pc.Key,
		UploadType:     string(t),
		UserID:         db.Text(pc.Metadata[MetaUserID]),
		ParentEntityID: db.Text(ownerID),
	})
	if err != nil {
		return l.fail(ctx, t, pc, ownerField, ownerID, start, fmt.Errorf("mark processing: %w", err))
	}

	outcome, err := runTransform(ctx, ownerID, transform)
	if err != nil {
		return l.fail(ctx, t, pc, ownerField, ownerID, start, err)
	}

	if _, err := l.Store.MarkCompleted(ctx, db.MarkCompletedParams{
		S3Key:         pc.Key,
		ProcessedUrls: outcome.URLs,
	}); err != nil {
		return l.fail(ctx, t, pc, ownerField, ownerID, start, fmt.Errorf("mark completed: %w", err))
	}

	l.publish(ctx, events.ProcessedKey(string(t)), outcome.Event)

	durationMs := time.Since(start).Milliseconds()
	metrics.RecordProcessorRun(string(t), "success", time.Since(start).Seconds())
	log.Info("processing completed", "duration_ms", durationMs, "renditions", len(outcome.URLs))
	return nil
}

// runTransform turns a panic in transform into ErrTransformPanic so the
// asset is still marked failed.
func runTransform(ctx context.Context, ownerID string, transform TransformFunc) (outcome *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = nil, fmt.Errorf("%w: %v", ErrTransformPanic, r)
		}
	}()

	outcome, err = transform(ctx, ownerID)
	if err == nil && (outcome == nil || len(outcome.URLs) == 0) {
		return nil, db.ErrEmptyProcessedURLs
	}
	return outcome, err
}

func (l *Lifecycle) fail(ctx context.Context, t UploadType, pc *Context, ownerField, ownerID string, start time.Time, cause error) error {
	log := logger.FromContext(ctx)
	tracing.RecordError(ctx, cause)

	if _, err := l.Store.MarkFailed(ctx, db.MarkFailedParams{
		S3Key:        pc.Key,
		ErrorMessage: cause.Error(),
	}); err != nil {
		log.Error("failed to mark asset failed", "error", err, "cause", cause)
	}

	l.publish(ctx, events.FailedKey(string(t)), events.Failed{
		OwnerField: ownerField,
		OwnerID:    ownerID,
		Reason:     cause.Error(),
	})

	metrics.RecordProcessorRun(string(t), "error", time.Since(start).Seconds())
	log.Error("processing failed", "error", cause, "duration_ms", time.Since(start).Milliseconds())
	return cause
}

// publish is best effort: a failure is logged and counted, never returned.
func (l *Lifecycle) publish(ctx context.Context, routingKey string, data any) {
	log := logger.FromContext(ctx)

	e, err := events.NewEvent(routingKey, data)
	if err != nil {
		log.Error("failed to build event", "routing_key", routingKey, "error", err)
		metrics.RecordEventPublished(routingKey, "error")
		return
	}

	if err := l.Publisher.Publish(ctx, e); err != nil {
		log.Error("failed to publish event", "routing_key", routingKey, "event_id", e.ID, "error", err)
		metrics.RecordEventPublished(routingKey, "error")
		return
	}
	metrics.RecordEventPublished(routingKey, "success")
}
