package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/mediaflow/internal/events"
	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
	"github.com/abdul-hamid-achik/mediaflow/internal/metrics"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
	"github.com/abdul-hamid-achik/mediaflow/internal/storage"
)

var ErrNoMasterPlaylist = errors.New("video: engine produced no master playlist")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Config holds configuration for the video strategy.
type Config struct {
	processor.Config

	Preset            string
	CRF               int
	SegmentSeconds    int
	UploadConcurrency int
	Ladder            []Rendition
}

// DefaultConfig returns default video configuration
func DefaultConfig() Config {
	return Config{
		Config:            processor.Config{ProcessedBucket: "processed"},
		Preset:            "veryfast",
		CRF:               23,
		SegmentSeconds:    6,
		UploadConcurrency: 8,
		Ladder:            DefaultLadder(),
	}
}

// Processor turns an uploaded video into an HLS rendition tree.
type Processor struct {
	cfg       Config
	engine    *Engine
	storage   storage.Storage
	lifecycle *processor.Lifecycle
}

var _ processor.Strategy = (*Processor)(nil)

func New(cfg Config, engine *Engine, store storage.Storage, lifecycle *processor.Lifecycle) *Processor {
	if len(cfg.Ladder) == 0 {
		cfg.Ladder = DefaultLadder()
	}
	if cfg.SegmentSeconds <= 0 {
		cfg.SegmentSeconds = 6
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 8
	}
	return &Processor{cfg: cfg, engine: engine, storage: store, lifecycle: lifecycle}
}

func (p *Processor) UploadType() processor.UploadType {
	return processor.UploadTypeVideo
}

func (p *Processor) CanProcess(metadata map[string]string) bool {
	return processor.Matches(processor.UploadTypeVideo, metadata)
}

func (p *Processor) Process(ctx context.Context, pc *processor.Context) error {
	return p.lifecycle.Run(ctx, processor.UploadTypeVideo, pc, func(ctx context.Context, lessonID string) (*processor.Outcome, error) {
		return p.transcode(ctx, pc, lessonID)
	})
}

func (p *Processor) transcode(ctx context.Context, pc *processor.Context, lessonID string) (*processor.Outcome, error) {
	log := logger.FromContext(ctx)

	stem := fmt.Sprintf("video-%s-%d", unsafeChars.ReplaceAllString(lessonID, "_"), time.Now().UnixNano())
	rawDir, err := os.MkdirTemp(p.cfg.TempDir, stem+"-raw-*")
	if err != nil {
		return nil, fmt.Errorf("create raw dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(rawDir) }()

	outDir, err := os.MkdirTemp(p.cfg.TempDir, stem+"-out-*")
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	base := path.Base(pc.Key)
	inputPath := filepath.Join(rawDir, base)

	stage := time.Now()
	n, err := storage.DownloadToFile(ctx, p.storage, pc.Bucket, pc.Key, inputPath)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", pc.Key, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: empty input", processor.ErrCorruptedFile)
	}
	p.stage("download", stage)
	log.Debug("downloaded raw video", "bytes", n)

	probe, err := p.engine.Probe(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	opts := EncodeOptions{
		Preset:         p.cfg.Preset,
		CRF:            p.cfg.CRF,
		SegmentSeconds: p.cfg.SegmentSeconds,
		FrameRate:      probe.FrameRate,
		HasAudio:       probe.HasAudio,
	}

	stage = time.Now()
	normalized := filepath.Join(rawDir, "normalized.mp4")
	if err := p.engine.Run(ctx, "normalize", normalizeArgs(inputPath, normalized, opts)); err != nil {
		return nil, err
	}
	if err := p.engine.Run(ctx, "ladder", ladderArgs(normalized, outDir, p.cfg.Ladder, opts)); err != nil {
		return nil, err
	}
	p.stage("transcode", stage)

	if err := os.Remove(normalized); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove normalized file", "error", err)
	}

	if _, err := os.Stat(filepath.Join(outDir, masterPlaylist)); err != nil {
		return nil, ErrNoMasterPlaylist
	}

	prefix := fmt.Sprintf("videos/%s/%s/", lessonID, strings.TrimSuffix(base, path.Ext(base)))

	stage = time.Now()
	keys, err := uploadTree(ctx, p.storage, p.cfg.ProcessedBucket, outDir, prefix, p.cfg.UploadConcurrency)
	if err != nil {
		return nil, err
	}
	p.stage("upload", stage)
	log.Info("uploaded rendition tree", "files", len(keys), "prefix", prefix)

	master := p.storage.PublicURL(p.cfg.ProcessedBucket, prefix+masterPlaylist)
	return &processor.Outcome{
		URLs:  map[string]string{"master": master},
		Event: events.VideoProcessed{LessonID: lessonID, VideoURL: master},
	}, nil
}

func (p *Processor) stage(name string, start time.Time) {
	metrics.RecordProcessorStage(string(processor.UploadTypeVideo), name, time.Since(start).Seconds())
}
