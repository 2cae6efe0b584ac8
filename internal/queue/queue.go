// Package queue receives and acknowledges upload notifications.
package queue

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidReceipt = errors.New("queue: unknown receipt handle")

// Message is one delivery. ReceiptHandle is only valid for this delivery.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	Attributes    map[string]string
	// ReceiveCount is how many times the message has been delivered.
	ReceiveCount int
}

// Queue is an at-least-once message source. Messages that are not deleted
// are delivered again once their visibility timeout expires.
type Queue interface {
	// Receive long-polls for up to max messages, waiting at most wait.
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
	Send(ctx context.Context, body string, attributes map[string]string) error
}
