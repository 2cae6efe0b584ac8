package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"

	"github.com/abdul-hamid-achik/mediaflow/internal/apperror"
	"github.com/abdul-hamid-achik/mediaflow/internal/events"
	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
	"github.com/abdul-hamid-achik/mediaflow/internal/metrics"
	"github.com/abdul-hamid-achik/mediaflow/internal/notification"
	"github.com/abdul-hamid-achik/mediaflow/internal/tracing"
)

const RedriveJobType = "media.redrive"

var ErrInvalidRedrive = errors.New("worker: redrive payload needs bucket and key")

type RedrivePayload struct {
	Bucket string               `json:"bucket"`
	Key    string               `json:"key"`
	Trace  tracing.TraceCarrier `json:"trace,omitempty"`
}

// EnqueueRedrive schedules another processing attempt for an uploaded object.
func EnqueueRedrive(ctx context.Context, b events.Enqueuer, bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", ErrInvalidRedrive
	}
	j, err := job.New(RedriveJobType, RedrivePayload{
		Bucket: bucket,
		Key:    key,
		Trace:  tracing.InjectTraceContext(ctx),
	})
	if err != nil {
		return "", fmt.Errorf("create redrive job: %w", err)
	}
	if err := b.Enqueue(ctx, j); err != nil {
		return "", fmt.Errorf("enqueue redrive job: %w", err)
	}
	metrics.RecordJobEnqueued(RedriveJobType)
	return j.ID, nil
}

// RedriveHandler reprocesses an object through the same dispatch path as the
// poll loop. Outcomes the loop would drop become permanent job failures;
// everything else is returned for the pool to retry.
func RedriveHandler(parser *notification.Parser, dispatcher *Dispatcher) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		log := logger.FromContext(ctx).With("job_id", j.ID, "job_type", RedriveJobType)

		var payload RedrivePayload
		if err := j.UnmarshalPayload(&payload); err != nil {
			log.Error("invalid payload", "error", err)
			return middleware.Permanent(fmt.Errorf("invalid payload: %w", err))
		}

		ctx = tracing.ExtractTraceContext(ctx, payload.Trace)
		ctx, span := tracing.StartJobSpan(ctx, RedriveJobType, j.ID)
		defer span.End()

		log.Info("job started")
		start := time.Now()

		if payload.Bucket == "" || payload.Key == "" {
			return middleware.Permanent(ErrInvalidRedrive)
		}

		ctx = logger.WithLogger(ctx, log)
		ctx = logger.WithS3Key(ctx, payload.Key)
		log = logger.FromContext(ctx)

		pc, err := parser.Resolve(ctx, payload.Bucket, payload.Key)
		if err != nil {
			log.Error("failed to resolve object", "error", err)
			return fmt.Errorf("resolve %s: %w", payload.Key, err)
		}
		pc.MessageID = j.ID

		if err := dispatcher.Dispatch(ctx, pc); err != nil {
			tracing.RecordError(ctx, err)
			switch apperror.KindOf(err) {
			case apperror.KindNoProcessor, apperror.KindContract:
				log.Error("redrive cannot succeed", "error", err)
				return middleware.Permanent(err)
			}
			log.Error("redrive failed", "error", err)
			return err
		}

		log.Info("job completed", "duration_ms", time.Since(start).Milliseconds())
		return nil
	}
}
