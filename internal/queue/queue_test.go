package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

func TestMemoryQueue_ReceiveDelete(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	for _, body := range []string{"a", "b", "c"} {
		if err := q.Send(ctx, body, map[string]string{"traceparent": "tp"}); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	msgs, err := q.Receive(ctx, 2, 0)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Receive() returned %d messages, want 2", len(msgs))
	}
	if msgs[0].Body != "a" || msgs[0].Attributes["traceparent"] != "tp" || msgs[0].ReceiveCount != 1 {
		t.Errorf("first message = %+v", msgs[0])
	}

	if err := q.Delete(ctx, msgs[0].ReceiptHandle); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := q.Delete(ctx, msgs[0].ReceiptHandle); !errors.Is(err, ErrInvalidReceipt) {
		t.Errorf("second Delete() error = %v, want ErrInvalidReceipt", err)
	}

	if q.InFlight() != 1 || q.Visible() != 1 {
		t.Errorf("InFlight = %d, Visible = %d, want 1, 1", q.InFlight(), q.Visible())
	}
	if d := q.Deleted(); len(d) != 1 || d[0] != msgs[0].ID {
		t.Errorf("Deleted() = %v", d)
	}
}

func TestMemoryQueue_Redelivery(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	_ = q.Send(ctx, "x", nil)

	first, _ := q.Receive(ctx, 10, 0)
	if n := q.ExpireInFlight(); n != 1 {
		t.Fatalf("ExpireInFlight() = %d, want 1", n)
	}

	second, _ := q.Receive(ctx, 10, 0)
	if len(second) != 1 {
		t.Fatalf("redelivered %d messages, want 1", len(second))
	}
	if second[0].ID != first[0].ID {
		t.Error("redelivery should keep the message id")
	}
	if second[0].ReceiptHandle == first[0].ReceiptHandle {
		t.Error("redelivery should issue a new receipt handle")
	}
	if second[0].ReceiveCount != 2 {
		t.Errorf("ReceiveCount = %d, want 2", second[0].ReceiveCount)
	}
	if err := q.Delete(ctx, first[0].ReceiptHandle); !errors.Is(err, ErrInvalidReceipt) {
		t.Errorf("stale receipt Delete() error = %v, want ErrInvalidReceipt", err)
	}
}

func TestMemoryQueue_LongPoll(t *testing.T) {
	q := NewMemoryQueue()

	t.Run("times out empty", func(t *testing.T) {
		start := time.Now()
		msgs, err := q.Receive(context.Background(), 10, 50*time.Millisecond)
		if err != nil || len(msgs) != 0 {
			t.Errorf("Receive() = %v, %v", msgs, err)
		}
		if time.Since(start) < 40*time.Millisecond {
			t.Error("Receive() returned before the wait elapsed")
		}
	})

	t.Run("wakes on send", func(t *testing.T) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = q.Send(context.Background(), "late", nil)
		}()
		msgs, err := q.Receive(context.Background(), 10, 5*time.Second)
		if err != nil || len(msgs) != 1 {
			t.Errorf("Receive() = %v, %v", msgs, err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := q.Receive(ctx, 10, time.Second); !errors.Is(err, context.Canceled) {
			t.Errorf("Receive() error = %v, want context.Canceled", err)
		}
	})
}

type fakeSQS struct {
	receiveIn *sqs.ReceiveMessageInput
	deleteIn  *sqs.DeleteMessageInput
	sendIn    *sqs.SendMessageInput
	out       *sqs.ReceiveMessageOutput
	err       error
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.receiveIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleteIn = in
	return &sqs.DeleteMessageOutput{}, f.err
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sendIn = in
	return &sqs.SendMessageOutput{}, f.err
}

func TestSQSQueue_Receive(t *testing.T) {
	fake := &fakeSQS{out: &sqs.ReceiveMessageOutput{Messages: []types.Message{{
		MessageId:     aws.String("m-1"),
		ReceiptHandle: aws.String("rh-1"),
		Body:          aws.String(`{"Records":[]}`),
		Attributes:    map[string]string{"ApproximateReceiveCount": "3"},
		MessageAttributes: map[string]types.MessageAttributeValue{
			"traceparent": {DataType: aws.String("String"), StringValue: aws.String("00-abc-def-01")},
			"binary":      {DataType: aws.String("Binary"), BinaryValue: []byte{1}},
		},
	}}}}
	q := NewSQSQueueWithClient(fake, SQSConfig{QueueURL: "https://sqs/q", VisibilityTimeout: 15 * time.Minute})

	msgs, err := q.Receive(context.Background(), 10, 20*time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}

	in := fake.receiveIn
	if aws.ToString(in.QueueUrl) != "https://sqs/q" || in.MaxNumberOfMessages != 10 || in.WaitTimeSeconds != 20 || in.VisibilityTimeout != 900 {
		t.Errorf("ReceiveMessageInput = %+v", in)
	}

	if len(msgs) != 1 {
		t.Fatalf("len = %d, want 1", len(msgs))
	}
	m := msgs[0]
	if m.ID != "m-1" || m.ReceiptHandle != "rh-1" || m.ReceiveCount != 3 {
		t.Errorf("message = %+v", m)
	}
	if m.Attributes["traceparent"] != "00-abc-def-01" {
		t.Errorf("Attributes = %v", m.Attributes)
	}
	if _, ok := m.Attributes["binary"]; ok {
		t.Error("binary attributes should be skipped")
	}
}

func TestSQSQueue_DeleteSend(t *testing.T) {
	fake := &fakeSQS{}
	q := NewSQSQueueWithClient(fake, SQSConfig{QueueURL: "https://sqs/q"})

	if err := q.Delete(context.Background(), "rh-9"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if aws.ToString(fake.deleteIn.ReceiptHandle) != "rh-9" {
		t.Errorf("ReceiptHandle = %q", aws.ToString(fake.deleteIn.ReceiptHandle))
	}

	if err := q.Send(context.Background(), "body", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if aws.ToString(fake.sendIn.MessageBody) != "body" || aws.ToString(fake.sendIn.MessageAttributes["k"].StringValue) != "v" {
		t.Errorf("SendMessageInput = %+v", fake.sendIn)
	}

	fake.err = errors.New("throttled")
	if err := q.Delete(context.Background(), "rh"); !errors.Is(err, fake.err) {
		t.Errorf("Delete() error = %v, want wrapped throttled", err)
	}
}
