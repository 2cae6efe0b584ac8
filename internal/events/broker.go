package events

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
)

// Enqueuer is the subset of the job-queue broker the publisher needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, j *job.Job) error
}

var _ Publisher = (*BrokerPublisher)(nil)

// BrokerPublisher delivers events as job-queue jobs whose type is the
// routing key, for deployments that run Redis but no AMQP broker.
type BrokerPublisher struct {
	broker Enqueuer
}

func NewBrokerPublisher(b Enqueuer) *BrokerPublisher {
	return &BrokerPublisher{broker: b}
}

func (p *BrokerPublisher) Publish(ctx context.Context, e *Event) error {
	j, err := job.New(e.RoutingKey, e)
	if err != nil {
		return fmt.Errorf("create job for %s: %w", e.RoutingKey, err)
	}
	if err := p.broker.Enqueue(ctx, j); err != nil {
		return fmt.Errorf("enqueue %s: %w", e.RoutingKey, err)
	}
	return nil
}

func (p *BrokerPublisher) Close() error {
	return nil
}
