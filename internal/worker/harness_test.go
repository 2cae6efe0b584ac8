package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/mediaflow/internal/db"
	"github.com/abdul-hamid-achik/mediaflow/internal/events"
	"github.com/abdul-hamid-achik/mediaflow/internal/lock"
	"github.com/abdul-hamid-achik/mediaflow/internal/notification"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor/file"
	"github.com/abdul-hamid-achik/mediaflow/internal/queue"
	"github.com/abdul-hamid-achik/mediaflow/internal/storage"
)

const (
	rawBucket       = "raw"
	processedBucket = "processed"
)

// fakeStrategy claims avatar uploads and records how often it ran.
type fakeStrategy struct {
	calls   atomic.Int32
	errs    []error
	panicOn int32
}

func (f *fakeStrategy) UploadType() processor.UploadType { return processor.UploadTypeAvatar }

func (f *fakeStrategy) CanProcess(metadata map[string]string) bool {
	return processor.Matches(processor.UploadTypeAvatar, metadata)
}

func (f *fakeStrategy) Process(ctx context.Context, pc *processor.Context) error {
	n := f.calls.Add(1)
	if f.panicOn == n {
		panic("decoder exploded")
	}
	if int(n) <= len(f.errs) {
		return f.errs[n-1]
	}
	return nil
}

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string) (func(context.Context) error, error) {
	return nil, lock.ErrHeld
}

type harness struct {
	objects  *storage.MemoryStorage
	queue    *queue.MemoryQueue
	store    *db.MemoryStore
	events   *events.Recorder
	avatar   *fakeStrategy
	parser   *notification.Parser
	dispatch *Dispatcher
	loop     *Loop
}

func newHarness(t *testing.T, locker lock.Locker) *harness {
	t.Helper()

	h := &harness{
		objects: storage.NewMemoryStorage(),
		queue:   queue.NewMemoryQueue(),
		store:   db.NewMemoryStore(),
		events:  events.NewRecorder(),
		avatar:  &fakeStrategy{},
	}

	lifecycle := processor.NewLifecycle(h.store, h.events)
	cfg := processor.Config{TempDir: t.TempDir(), ProcessedBucket: processedBucket}

	registry := processor.NewRegistry()
	registry.MustRegister(h.avatar)
	registry.MustRegister(file.NewResourceProcessor(cfg, h.objects, lifecycle))
	registry.MustRegister(file.NewAttachmentProcessor(cfg, h.objects, lifecycle))

	h.parser = notification.NewParser(h.objects)
	h.dispatch = NewDispatcher(registry, locker)
	h.loop = NewLoop(h.queue, h.parser, h.dispatch, LoopConfig{
		BatchSize:   10,
		WaitTime:    0,
		Concurrency: 2,
	})
	return h
}

// upload stores a raw object and enqueues its notification.
func (h *harness) upload(t *testing.T, key string, tags map[string]string) {
	t.Helper()
	h.objects.Put(rawBucket, key, []byte("payload for "+key), tags)
	h.send(t, key)
}

func (h *harness) send(t *testing.T, key string) {
	t.Helper()
	body, err := notification.NewEvent(rawBucket, key)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if err := h.queue.Send(context.Background(), body, nil); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

// receive pulls exactly one message.
func (h *harness) receive(t *testing.T) queue.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msgs, err := h.queue.Receive(ctx, 1, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("Receive() got %d messages, want 1", len(msgs))
	}
	return msgs[0]
}

var errBoom = errors.New("boom")
