package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an in-memory Queue with SQS-like visibility semantics.
// Received messages stay in flight until deleted or made visible again
// with ExpireInFlight.
type MemoryQueue struct {
	mu       sync.Mutex
	visible  []*memoryMessage
	inFlight map[string]*memoryMessage
	deleted  []string
	notify   chan struct{}

	// ReceiveErr and DeleteErr fail the matching calls when set.
	ReceiveErr error
	DeleteErr  error
}

type memoryMessage struct {
	msg     Message
	receipt string
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		inFlight: make(map[string]*memoryMessage),
		notify:   make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Send(ctx context.Context, body string, attributes map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attrs := make(map[string]string, len(attributes))
	for k, v := range attributes {
		attrs[k] = v
	}

	q.mu.Lock()
	q.visible = append(q.visible, &memoryMessage{msg: Message{
		ID:         uuid.NewString(),
		Body:       body,
		Attributes: attrs,
	}})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		msgs, err := q.take(max)
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) take(max int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ReceiveErr != nil {
		return nil, q.ReceiveErr
	}

	n := min(max, len(q.visible))
	out := make([]Message, 0, n)
	for _, m := range q.visible[:n] {
		m.receipt = uuid.NewString()
		m.msg.ReceiveCount++
		q.inFlight[m.receipt] = m

		delivered := m.msg
		delivered.ReceiptHandle = m.receipt
		out = append(out, delivered)
	}
	q.visible = q.visible[n:]
	return out, nil
}

func (q *MemoryQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.DeleteErr != nil {
		return q.DeleteErr
	}

	m, ok := q.inFlight[receiptHandle]
	if !ok {
		return ErrInvalidReceipt
	}
	delete(q.inFlight, receiptHandle)
	q.deleted = append(q.deleted, m.msg.ID)
	return nil
}

// ExpireInFlight makes every undeleted message visible again, as if its
// visibility timeout had passed. It returns how many were redelivered.
func (q *MemoryQueue) ExpireInFlight() int {
	q.mu.Lock()
	n := len(q.inFlight)
	for receipt, m := range q.inFlight {
		delete(q.inFlight, receipt)
		q.visible = append(q.visible, m)
	}
	q.mu.Unlock()

	if n > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return n
}

// Deleted returns the IDs of deleted messages in deletion order.
func (q *MemoryQueue) Deleted() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.deleted))
	copy(out, q.deleted)
	return out
}

// InFlight reports how many messages are received but not deleted.
func (q *MemoryQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}

// Visible reports how many messages are waiting to be received.
func (q *MemoryQueue) Visible() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.visible)
}
