// Package worker consumes upload notifications and drives them through the
// processor strategies.
package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abdul-hamid-achik/mediaflow/internal/apperror"
	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
	"github.com/abdul-hamid-achik/mediaflow/internal/metrics"
	"github.com/abdul-hamid-achik/mediaflow/internal/notification"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
	"github.com/abdul-hamid-achik/mediaflow/internal/queue"
	"github.com/abdul-hamid-achik/mediaflow/internal/tracing"
)

// Outcome is what happened to one message.
type Outcome string

const (
	OutcomeSuccess     Outcome = "deleted-success"
	OutcomeParse       Outcome = "deleted-parse"
	OutcomeNoProcessor Outcome = "deleted-no-processor"
	OutcomeFailure     Outcome = "retained-failure"
	OutcomeLocked      Outcome = "retained-locked"
)

// Deletes reports whether the message is acknowledged.
func (o Outcome) Deletes() bool {
	switch o {
	case OutcomeSuccess, OutcomeParse, OutcomeNoProcessor:
		return true
	}
	return false
}

type LoopConfig struct {
	BatchSize   int
	WaitTime    time.Duration
	PollDelay   time.Duration
	Concurrency int
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		BatchSize:   10,
		WaitTime:    20 * time.Second,
		PollDelay:   time.Second,
		Concurrency: 4,
	}
}

type Loop struct {
	queue      queue.Queue
	parser     *notification.Parser
	dispatcher *Dispatcher
	cfg        LoopConfig
}

func NewLoop(q queue.Queue, parser *notification.Parser, dispatcher *Dispatcher, cfg LoopConfig) *Loop {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultLoopConfig().BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Loop{queue: q, parser: parser, dispatcher: dispatcher, cfg: cfg}
}

// Run polls until ctx is cancelled. It returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info("poll loop started",
		"batch_size", l.cfg.BatchSize,
		"wait", l.cfg.WaitTime.String(),
		"concurrency", l.cfg.Concurrency,
	)

	for {
		if ctx.Err() != nil {
			log.Info("poll loop stopped")
			return nil
		}

		l.Poll(ctx)

		if l.cfg.PollDelay > 0 {
			timer := time.NewTimer(l.cfg.PollDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Info("poll loop stopped")
				return nil
			case <-timer.C:
			}
		}
	}
}

// Poll runs one receive-and-handle cycle and returns the number of
// messages it handled.
func (l *Loop) Poll(ctx context.Context) int {
	msgs, err := l.queue.Receive(ctx, l.cfg.BatchSize, l.cfg.WaitTime)
	if err != nil {
		if ctx.Err() == nil {
			logger.FromContext(ctx).Error("failed to receive messages", "error", err)
			metrics.PollErrorsTotal.Inc()
		}
		return 0
	}
	if len(msgs) == 0 {
		return 0
	}
	metrics.MessagesReceivedTotal.Add(float64(len(msgs)))

	var g errgroup.Group
	g.SetLimit(l.cfg.Concurrency)
	for _, msg := range msgs {
		g.Go(func() error {
			l.HandleMessage(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()
	return len(msgs)
}

// HandleMessage parses, dispatches and acknowledges one message.
func (l *Loop) HandleMessage(ctx context.Context, msg queue.Message) (outcome Outcome) {
	start := time.Now()
	metrics.MessagesInFlight.Inc()
	defer metrics.MessagesInFlight.Dec()

	ctx = tracing.ExtractFromAttributes(ctx, msg.Attributes)
	ctx, span := tracing.StartMessageSpan(ctx, msg.ID)
	defer span.End()
	ctx = logger.WithMessageID(ctx, msg.ID)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.FromContext(ctx).Error("handler panicked", "error", err)
			tracing.RecordError(ctx, err)
			outcome = OutcomeFailure
		}
		l.settle(ctx, msg, outcome, start)
	}()

	return l.handle(ctx, msg)
}

func (l *Loop) handle(ctx context.Context, msg queue.Message) Outcome {
	log := logger.FromContext(ctx)

	pcs, err := l.parser.ParseAll(ctx, msg.Body)
	if err != nil {
		if !apperror.KindOf(err).Retryable() {
			log.Warn("dropping unparseable message", "error", err, "code", apperror.Code(err))
			return OutcomeParse
		}
		log.Error("failed to resolve message", "error", err, "kind", string(apperror.KindOf(err)))
		tracing.RecordError(ctx, err)
		return OutcomeFailure
	}

	// Every record runs even after one fails. A retained message repeats
	// all of them on redelivery.
	outcome := OutcomeSuccess
	for _, pc := range pcs {
		pc.MessageID = msg.ID
		outcome = worse(outcome, l.dispatch(ctx, msg, pc))
	}
	return outcome
}

func (l *Loop) dispatch(ctx context.Context, msg queue.Message, pc *processor.Context) Outcome {
	ctx = logger.WithS3Key(ctx, pc.Key)
	log := logger.FromContext(ctx)

	err := l.dispatcher.Dispatch(ctx, pc)
	if err == nil {
		return OutcomeSuccess
	}
	if isLockHeld(err) {
		log.Info("key is locked by another worker, leaving message")
		return OutcomeLocked
	}

	kind := apperror.KindOf(err)
	if !kind.Retryable() {
		log.Warn("no processor for upload, dropping record",
			"upload_type", pc.Metadata[processor.MetaUploadType],
			"code", apperror.Code(err),
		)
		return OutcomeNoProcessor
	}

	tracing.RecordError(ctx, err)
	log.Error("processing failed, leaving message for redelivery",
		"error", err,
		"kind", string(kind),
		"code", apperror.Code(err),
		"receive_count", msg.ReceiveCount,
	)
	return OutcomeFailure
}

// worse picks the outcome that keeps the message on the queue, if any.
func worse(a, b Outcome) Outcome {
	if outcomeRank[b] > outcomeRank[a] {
		return b
	}
	return a
}

var outcomeRank = map[Outcome]int{
	OutcomeSuccess:     0,
	OutcomeNoProcessor: 1,
	OutcomeParse:       1,
	OutcomeLocked:      2,
	OutcomeFailure:     3,
}

func (l *Loop) settle(ctx context.Context, msg queue.Message, outcome Outcome, start time.Time) {
	log := logger.FromContext(ctx)

	if outcome.Deletes() {
		// Acknowledge even when ctx is already cancelled by shutdown.
		delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := l.queue.Delete(delCtx, msg.ReceiptHandle); err != nil {
			log.Error("failed to delete message", "error", err)
			metrics.QueueDeleteErrorsTotal.Inc()
		}
	}

	duration := time.Since(start)
	metrics.RecordMessageHandled(string(outcome), duration.Seconds())
	log.Info("message handled", "outcome", string(outcome), "duration_ms", duration.Milliseconds())
}
