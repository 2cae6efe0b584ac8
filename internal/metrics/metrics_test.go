package metrics

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/mediaflow/internal/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMessageHandled(t *testing.T) {
	before := testutil.ToFloat64(MessagesHandledTotal.WithLabelValues("deleted_parse"))
	RecordMessageHandled("deleted_parse", 0.01)
	after := testutil.ToFloat64(MessagesHandledTotal.WithLabelValues("deleted_parse"))

	if after-before != 1 {
		t.Errorf("MessagesHandledTotal delta = %v, want 1", after-before)
	}
}

func TestRecordEventPublished(t *testing.T) {
	failuresBefore := testutil.ToFloat64(EventPublishFailuresTotal)

	RecordEventPublished("media.video.processed", "success")
	if got := testutil.ToFloat64(EventPublishFailuresTotal) - failuresBefore; got != 0 {
		t.Errorf("failures delta after success = %v, want 0", got)
	}

	RecordEventPublished("media.video.failed", "error")
	if got := testutil.ToFloat64(EventPublishFailuresTotal) - failuresBefore; got != 1 {
		t.Errorf("failures delta after error = %v, want 1", got)
	}
}

func TestInstrumentedStorage(t *testing.T) {
	mem := storage.NewMemoryStorage()
	s := NewInstrumentedStorage(mem)
	ctx := context.Background()

	uploadsBefore := testutil.ToFloat64(StorageOperationsTotal.WithLabelValues("upload", "success"))
	bytesBefore := testutil.ToFloat64(StorageBytesTotal.WithLabelValues("download"))

	if err := s.Upload(ctx, "b", "k.txt", strings.NewReader("hello"), "text/plain", 5); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	r, err := s.Download(ctx, "b", "k.txt")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	_, _ = io.Copy(io.Discard, r)
	_ = r.Close()

	if got := testutil.ToFloat64(StorageOperationsTotal.WithLabelValues("upload", "success")) - uploadsBefore; got != 1 {
		t.Errorf("upload success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(StorageBytesTotal.WithLabelValues("download")) - bytesBefore; got != 5 {
		t.Errorf("download bytes delta = %v, want 5", got)
	}

	mem.TagsErr = errors.New("denied")
	tagErrsBefore := testutil.ToFloat64(StorageOperationsTotal.WithLabelValues("get_tags", "error"))
	if _, err := s.GetTags(ctx, "b", "k.txt"); err == nil {
		t.Error("GetTags() expected error")
	}
	if got := testutil.ToFloat64(StorageOperationsTotal.WithLabelValues("get_tags", "error")) - tagErrsBefore; got != 1 {
		t.Errorf("get_tags error delta = %v, want 1", got)
	}

	if s.PublicURL("b", "k.txt") != mem.PublicURL("b", "k.txt") {
		t.Error("PublicURL() should pass through")
	}
}

func TestPrometheusCollector(t *testing.T) {
	c := NewPrometheusCollector()
	active := testutil.ToFloat64(WorkerPoolActiveJobs)

	c.JobStarted("media.redrive", "default")
	if got := testutil.ToFloat64(WorkerPoolActiveJobs); got != active+1 {
		t.Errorf("active jobs = %v, want %v", got, active+1)
	}
	c.JobCompleted("media.redrive", "default", time.Second)
	if got := testutil.ToFloat64(WorkerPoolActiveJobs); got != active {
		t.Errorf("active jobs = %v, want %v", got, active)
	}
}
