package video

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/mediaflow/internal/db"
	"github.com/abdul-hamid-achik/mediaflow/internal/events"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
	"github.com/abdul-hamid-achik/mediaflow/internal/storage"
)

type harness struct {
	proc    *Processor
	store   *db.MemoryStore
	objects *storage.MemoryStorage
	events  *events.Recorder
	tempDir string
}

func newHarness(t *testing.T, ffmpeg string) *harness {
	t.Helper()
	engine := fakeEngine(t, ffmpeg, fakeProbeWithAudio)

	h := &harness{
		store:   db.NewMemoryStore(),
		objects: storage.NewMemoryStorage(),
		events:  events.NewRecorder(),
		tempDir: t.TempDir(),
	}

	cfg := DefaultConfig()
	cfg.TempDir = h.tempDir
	cfg.ProcessedBucket = "processed"
	h.proc = New(cfg, engine, h.objects, processor.NewLifecycle(h.store, h.events))

	h.objects.Put("raw", "uploads/L1/intro.mp4", []byte("raw video bytes"), nil)
	return h
}

func lessonContext() *processor.Context {
	return &processor.Context{
		Bucket:   "raw",
		Key:      "uploads/L1/intro.mp4",
		Metadata: map[string]string{"uploadType": "video", "lessonId": "L1"},
	}
}

func (h *harness) assertTempDirsGone(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.tempDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		t.Errorf("temp entry left behind: %s", e.Name())
	}
}

func TestProcessor_CanProcess(t *testing.T) {
	p := New(DefaultConfig(), NewEngine(EngineConfig{}), storage.NewMemoryStorage(), nil)

	tests := []struct {
		metadata map[string]string
		want     bool
	}{
		{map[string]string{"uploadType": "video"}, true},
		{map[string]string{"uploadType": "avatar"}, false},
		{map[string]string{"uploadType": "Video"}, false},
		{map[string]string{}, false},
	}
	for _, tt := range tests {
		if got := p.CanProcess(tt.metadata); got != tt.want {
			t.Errorf("CanProcess(%v) = %v, want %v", tt.metadata, got, tt.want)
		}
	}
	if p.UploadType() != processor.UploadTypeVideo {
		t.Errorf("UploadType() = %s", p.UploadType())
	}
}

func TestProcessor_Success(t *testing.T) {
	h := newHarness(t, fakeFFmpeg)
	pc := lessonContext()

	if err := h.proc.Process(context.Background(), pc); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	asset, err := h.store.GetMediaAssetByS3Key(context.Background(), pc.Key)
	if err != nil {
		t.Fatalf("GetMediaAssetByS3Key() error = %v", err)
	}
	if asset.Status != db.MediaStatusCompleted {
		t.Errorf("Status = %s, want completed", asset.Status)
	}
	if len(asset.ProcessedUrls) != 1 {
		t.Fatalf("ProcessedUrls = %v, want one entry", asset.ProcessedUrls)
	}
	master := asset.ProcessedUrls["master"]
	if !strings.HasSuffix(master, "/processed/videos/L1/intro/master.m3u8") {
		t.Errorf("master = %q", master)
	}

	keys := h.objects.Keys("processed")
	if len(keys) != 7 {
		t.Errorf("uploaded %d objects, want 7: %v", len(keys), keys)
	}
	if _, ok := h.objects.GetData("processed", "videos/L1/intro/720p/segment_001.ts"); !ok {
		t.Error("variant segment was not uploaded")
	}

	processed := h.events.ByRoutingKey("media.video.processed")
	if len(processed) != 1 {
		t.Fatalf("processed events = %d, want 1", len(processed))
	}
	data, _ := events.DataMap(processed[0])
	if data["lessonId"] != "L1" || data["videoUrl"] != master {
		t.Errorf("event data = %v", data)
	}

	h.assertTempDirsGone(t)
}

func TestProcessor_EngineFailure(t *testing.T) {
	h := newHarness(t, failingFFmpeg)
	pc := lessonContext()

	err := h.proc.Process(context.Background(), pc)
	if !errors.Is(err, ErrTranscodeFailed) {
		t.Fatalf("Process() error = %v, want ErrTranscodeFailed", err)
	}

	asset, _ := h.store.GetMediaAssetByS3Key(context.Background(), pc.Key)
	if asset.Status != db.MediaStatusFailed {
		t.Errorf("Status = %s, want failed", asset.Status)
	}
	if asset.ErrorMessage.String == "" {
		t.Error("ErrorMessage should not be empty")
	}

	failed := h.events.ByRoutingKey("media.video.failed")
	if len(failed) != 1 {
		t.Fatalf("failed events = %d, want exactly 1", len(failed))
	}
	data, _ := events.DataMap(failed[0])
	if data["lessonId"] != "L1" {
		t.Errorf("lessonId = %v, want L1", data["lessonId"])
	}
	if reason, _ := data["reason"].(string); reason == "" {
		t.Error("reason should not be empty")
	}
	if len(data) != 2 {
		t.Errorf("failure payload = %v, want only lessonId and reason", data)
	}
	if n := len(h.events.ByRoutingKey("media.video.processed")); n != 0 {
		t.Errorf("processed events = %d, want 0", n)
	}

	if n := len(h.objects.Keys("processed")); n != 0 {
		t.Errorf("uploaded %d objects after failure", n)
	}
	h.assertTempDirsGone(t)
}

func TestProcessor_UploadFailFast(t *testing.T) {
	h := newHarness(t, fakeFFmpeg)
	h.objects.UploadErr = func(bucket, key string) error {
		if strings.HasSuffix(key, "480p/segment_001.ts") {
			return errors.New("connection reset")
		}
		return nil
	}

	err := h.proc.Process(context.Background(), lessonContext())
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("Process() error = %v, want upload failure", err)
	}

	asset, _ := h.store.GetMediaAssetByS3Key(context.Background(), "uploads/L1/intro.mp4")
	if asset.Status != db.MediaStatusFailed {
		t.Errorf("Status = %s, want failed", asset.Status)
	}
	if n := len(h.events.ByRoutingKey("media.video.failed")); n != 1 {
		t.Errorf("failed events = %d, want 1", n)
	}
	h.assertTempDirsGone(t)
}

func TestProcessor_MissingLessonID(t *testing.T) {
	h := newHarness(t, fakeFFmpeg)
	pc := lessonContext()
	delete(pc.Metadata, "lessonId")

	err := h.proc.Process(context.Background(), pc)
	if !errors.Is(err, processor.ErrMissingOwner) {
		t.Fatalf("Process() error = %v, want ErrMissingOwner", err)
	}
	if h.store.Writes() != 0 {
		t.Errorf("store writes = %d, want 0", h.store.Writes())
	}
	h.assertTempDirsGone(t)
}

func TestProcessor_MissingObject(t *testing.T) {
	h := newHarness(t, fakeFFmpeg)
	pc := lessonContext()
	pc.Key = "uploads/L1/gone.mp4"

	err := h.proc.Process(context.Background(), pc)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Process() error = %v, want ErrNotFound", err)
	}
	asset, _ := h.store.GetMediaAssetByS3Key(context.Background(), pc.Key)
	if asset.Status != db.MediaStatusFailed {
		t.Errorf("Status = %s, want failed", asset.Status)
	}
	h.assertTempDirsGone(t)
}

func TestProcessor_RedeliveryConverges(t *testing.T) {
	h := newHarness(t, fakeFFmpeg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := h.proc.Process(ctx, lessonContext()); err != nil {
			t.Fatalf("Process() run %d error = %v", i, err)
		}
	}

	asset, _ := h.store.GetMediaAssetByS3Key(ctx, "uploads/L1/intro.mp4")
	if asset.Status != db.MediaStatusCompleted {
		t.Errorf("Status = %s, want completed", asset.Status)
	}
	if h.store.Count() != 1 {
		t.Errorf("Count() = %d, want 1", h.store.Count())
	}
	if n := len(h.objects.Keys("processed")); n != 7 {
		t.Errorf("objects = %d, want 7 after overwrite", n)
	}
}
