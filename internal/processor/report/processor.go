// Package report publishes uploaded reports along with a rendered image:
// a bar chart for CSV files and a first-page preview for PDFs.
package report

import (
	"bytes"
	"context"
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
	"github.com/abdul-hamid-achik/mediaflow/internal/processor/pdf"
	"github.com/abdul-hamid-achik/mediaflow/internal/storage"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

type Config struct {
	processor.Config

	ChartWidth  int
	ChartHeight int
	// MaxRows caps how many CSV rows are charted.
	MaxRows int
}

func DefaultConfig() Config {
	return Config{
		Config:      processor.Config{ProcessedBucket: "processed"},
		ChartWidth:  1024,
		ChartHeight: 576,
		MaxRows:     50,
	}
}

var _ processor.Strategy = (*Processor)(nil)

type Processor struct {
	cfg       Config
	storage   storage.Storage
	pdf       *pdf.Renderer
	lifecycle *processor.Lifecycle
}

func New(cfg Config, store storage.Storage, renderer *pdf.Renderer, lifecycle *processor.Lifecycle) *Processor {
	def := DefaultConfig()
	if cfg.ChartWidth <= 0 {
		cfg.ChartWidth = def.ChartWidth
	}
	if cfg.ChartHeight <= 0 {
		cfg.ChartHeight = def.ChartHeight
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = def.MaxRows
	}
	if renderer == nil {
		renderer = pdf.NewRenderer(pdf.Config{})
	}
	return &Processor{cfg: cfg, storage: store, pdf: renderer, lifecycle: lifecycle}
}

func (p *Processor) UploadType() processor.UploadType {
	return processor.UploadTypeReport
}

func (p *Processor) CanProcess(metadata map[string]string) bool {
	return processor.Matches(processor.UploadTypeReport, metadata)
}

func (p *Processor) Process(ctx context.Context, pc *processor.Context) error {
	return p.lifecycle.Run(ctx, processor.UploadTypeReport, pc, func(ctx context.Context, userID string) (*processor.Outcome, error) {
		return p.render(ctx, pc, userID)
	})
}

func (p *Processor) render(ctx context.Context, pc *processor.Context, userID string) (*processor.Outcome, error) {
	base := path.Base(pc.Key)
	ext := strings.ToLower(path.Ext(base))
	if ext != ".csv" && ext != ".pdf" {
		return nil, fmt.Errorf("%w: report %s", processor.ErrUnsupportedType, base)
	}

	dir, err := os.MkdirTemp(p.cfg.TempDir, fmt.Sprintf("report-%s-*", unsafeChars.ReplaceAllString(userID, "_")))
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	local := filepath.Join(dir, "source"+ext)
	if _, err := storage.DownloadToFile(ctx, p.storage, pc.Bucket, pc.Key, local); err != nil {
		return nil, fmt.Errorf("download %s: %w", pc.Key, err)
	}

	start := time.Now()
	stem := strings.TrimSuffix(base, path.Ext(base))
	prefix := fmt.Sprintf("reports/%s/", userID)

	var imageKey, imageName string
	var imageData []byte
	switch ext {
	case ".csv":
		imageKey, imageName = prefix+stem+"-chart.png", "chart"
		imageData, err = p.chart(ctx, local)
	case ".pdf":
		imageKey, imageName = prefix+stem+"-preview.png", "preview"
		imageData, err = p.preview(ctx, local, dir)
	}
	if err != nil {
		return nil, err
	}
	metrics.RecordProcessorStage(string(processor.UploadTypeReport), "render", time.Since(start).Seconds())

	if err := p.storage.Upload(ctx, p.cfg.ProcessedBucket, imageKey, bytes.NewReader(imageData), "image/png", int64(len(imageData))); err != nil {
		return nil, fmt.Errorf("upload %s: %w", imageKey, err)
	}

	reportKey := prefix + base
	if err := storage.UploadFile(ctx, p.storage, p.cfg.ProcessedBucket, reportKey, local); err != nil {
		return nil, fmt.Errorf("upload %s: %w", reportKey, err)
	}

	reportURL := p.storage.PublicURL(p.cfg.ProcessedBucket, reportKey)
	imageURL := p.storage.PublicURL(p.cfg.ProcessedBucket, imageKey)

	event := events.ReportProcessed{UserID: userID, ReportURL: reportURL}
	if imageName == "chart" {
		event.ChartURL = imageURL
	} else {
		event.PreviewURL = imageURL
	}

	return &processor.Outcome{
		URLs:  map[string]string{"report": reportURL, imageName: imageURL},
		Event: event,
	}, nil
}

func (p *Processor) chart(ctx context.Context, csvPath string) ([]byte, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer func() { _ = f.Close() }()

	ds, err := ParseCSV(f, p.cfg.MaxRows)
	if err != nil {
		return nil, err
	}
	if ds.Truncated {
		logger.FromContext(ctx).Warn("report truncated for chart", "max_rows", p.cfg.MaxRows)
	}
	return RenderChart(ds, p.cfg.ChartWidth, p.cfg.ChartHeight)
}

func (p *Processor) preview(ctx context.Context, pdfPath, dir string) ([]byte, error) {
	out := filepath.Join(dir, "render")
	if err := os.Mkdir(out, 0o755); err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}

	previewPath, err := p.pdf.RenderFirstPage(ctx, pdfPath, out)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(previewPath)
	if err != nil {
		return nil, fmt.Errorf("read preview: %w", err)
	}
	return data, nil
}
