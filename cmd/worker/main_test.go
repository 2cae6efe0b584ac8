package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/mediaflow/internal/config"
	"github.com/abdul-hamid-achik/mediaflow/internal/db"
	"github.com/abdul-hamid-achik/mediaflow/internal/events"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor/video"
	"github.com/abdul-hamid-achik/mediaflow/internal/storage"
)

// fakeBinary writes an executable stub; CheckBinaries only resolves paths.
func fakeBinary(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		ProcessedBucket:   "processed",
		FFmpegPath:        fakeBinary(t, "ffmpeg"),
		FFprobePath:       fakeBinary(t, "ffprobe"),
		FFmpegPreset:      "veryfast",
		FFmpegCRF:         23,
		HLSSegmentSeconds: 6,
		UploadConcurrency: 4,
	}
}

func TestBuildRegistry_CoversEveryUploadType(t *testing.T) {
	lifecycle := processor.NewLifecycle(db.NewMemoryStore(), events.NewRecorder())

	registry, err := buildRegistry(testConfig(t), storage.NewMemoryStorage(), lifecycle)
	if err != nil {
		t.Fatalf("buildRegistry() error = %v", err)
	}

	if missing := registry.Missing(); len(missing) != 0 {
		t.Errorf("Missing() = %v, want none", missing)
	}

	for _, ut := range processor.UploadTypes {
		meta := map[string]string{processor.MetaUploadType: string(ut)}
		claimed := 0
		for _, s := range registry.List() {
			if s.CanProcess(meta) {
				claimed++
			}
		}
		if claimed != 1 {
			t.Errorf("%s claimed by %d strategies, want 1", ut, claimed)
		}
	}
}

func TestBuildRegistry_BadLadder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ladder.yaml")
	if err := os.WriteFile(path, []byte("renditions:\n  - name: 720p\n    width: 1281\n    height: 720\n    video_bitrate: 2800k\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t)
	cfg.LadderFile = path

	lifecycle := processor.NewLifecycle(db.NewMemoryStore(), events.NewRecorder())
	if _, err := buildRegistry(cfg, storage.NewMemoryStorage(), lifecycle); err == nil {
		t.Error("buildRegistry() expected error for odd rendition width")
	}
}

func TestBuildRegistry_MissingEngine(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"ffmpeg", func(c *config.Config) { c.FFmpegPath = filepath.Join(t.TempDir(), "no-ffmpeg") }, video.ErrFFmpegNotFound},
		{"ffprobe", func(c *config.Config) { c.FFprobePath = filepath.Join(t.TempDir(), "no-ffprobe") }, video.ErrFFprobeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			lifecycle := processor.NewLifecycle(db.NewMemoryStore(), events.NewRecorder())
			_, err := buildRegistry(cfg, storage.NewMemoryStorage(), lifecycle)
			if !errors.Is(err, tt.want) {
				t.Errorf("buildRegistry() error = %v, want %v", err, tt.want)
			}
		})
	}
}
