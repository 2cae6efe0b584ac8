package main

import (
	"fmt"

	"github.com/abdul-hamid-achik/mediaflow/internal/config"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor/file"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor/image"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor/pdf"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor/report"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor/video"
	"github.com/abdul-hamid-achik/mediaflow/internal/storage"
)

// buildRegistry registers one strategy per upload type.
func buildRegistry(cfg *config.Config, store storage.Storage, lifecycle *processor.Lifecycle) (*processor.Registry, error) {
	base := processor.Config{
		TempDir:         cfg.TempDir,
		ProcessedBucket: cfg.ProcessedBucket,
	}

	ladder, err := video.LoadLadder(cfg.LadderFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load rendition ladder: %w", err)
	}

	engine := video.NewEngine(video.EngineConfig{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Timeout:     cfg.TranscodeTimeout,
	})
	if err := engine.CheckBinaries(); err != nil {
		return nil, fmt.Errorf("video engine unavailable: %w", err)
	}

	videoCfg := video.DefaultConfig()
	videoCfg.Config = base
	videoCfg.Preset = cfg.FFmpegPreset
	videoCfg.CRF = cfg.FFmpegCRF
	videoCfg.SegmentSeconds = cfg.HLSSegmentSeconds
	videoCfg.UploadConcurrency = cfg.UploadConcurrency
	videoCfg.Ladder = ladder

	reportCfg := report.DefaultConfig()
	reportCfg.Config = base

	strategies := []processor.Strategy{
		video.New(videoCfg, engine, store, lifecycle),
		image.NewAvatarProcessor(image.AvatarConfig{Config: base}, store, lifecycle),
		image.NewThumbnailProcessor(image.ThumbnailConfig{Config: base}, store, lifecycle),
		file.NewResourceProcessor(base, store, lifecycle),
		file.NewAttachmentProcessor(base, store, lifecycle),
		report.New(reportCfg, store, pdf.NewRenderer(pdf.Config{}), lifecycle),
	}

	registry := processor.NewRegistry()
	for _, s := range strategies {
		if err := registry.Register(s); err != nil {
			return nil, err
		}
	}
	if missing := registry.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("no strategy for upload types %v", missing)
	}
	return registry, nil
}
