// Package pdf renders page previews of PDF documents with poppler-utils.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
)

var (
	ErrPDFEncrypted = errors.New("pdf: document is encrypted or password-protected")
	ErrPDFEmpty     = errors.New("pdf: document has no pages")
	ErrRenderFailed = errors.New("pdf: rendering failed")
)

type Config struct {
	PdftoppmPath string
	PdfinfoPath  string
	// Width is the longest edge of the rendered preview in pixels.
	Width int
}

type Renderer struct {
	cfg Config
}

func NewRenderer(cfg Config) *Renderer {
	if cfg.PdftoppmPath == "" {
		cfg.PdftoppmPath = "pdftoppm"
	}
	if cfg.PdfinfoPath == "" {
		cfg.PdfinfoPath = "pdfinfo"
	}
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	return &Renderer{cfg: cfg}
}

// RenderFirstPage writes a PNG of page one into outDir and returns its path.
func (r *Renderer) RenderFirstPage(ctx context.Context, pdfPath, outDir string) (string, error) {
	pageCount, err := r.PageCount(ctx, pdfPath)
	if err != nil {
		return "", err
	}
	if pageCount == 0 {
		return "", ErrPDFEmpty
	}

	outputBase := filepath.Join(outDir, "preview")
	args := []string{
		"-png",
		"-f", "1",
		"-l", "1",
		"-scale-to", strconv.Itoa(r.cfg.Width),
		"-singlefile",
		pdfPath,
		outputBase,
	}

	cmd := exec.CommandContext(ctx, r.cfg.PdftoppmPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if isEncrypted(string(output)) {
			return "", ErrPDFEncrypted
		}
		return "", fmt.Errorf("%w: pdftoppm failed: %v, output: %s", ErrRenderFailed, err, strings.TrimSpace(string(output)))
	}

	previewPath := outputBase + ".png"
	if _, err := os.Stat(previewPath); err != nil {
		return "", fmt.Errorf("%w: no preview written: %v", ErrRenderFailed, err)
	}
	return previewPath, nil
}

// PageCount reads the page count from pdfinfo.
func (r *Renderer) PageCount(ctx context.Context, pdfPath string) (int, error) {
	cmd := exec.CommandContext(ctx, r.cfg.PdfinfoPath, pdfPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if isEncrypted(string(output)) {
			return 0, ErrPDFEncrypted
		}
		return 0, fmt.Errorf("%w: pdfinfo failed: %v, output: %s", processor.ErrCorruptedFile, err, strings.TrimSpace(string(output)))
	}

	for _, line := range strings.Split(string(output), "\n") {
		if strings.HasPrefix(line, "Pages:") {
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				count, err := strconv.Atoi(parts[1])
				if err != nil {
					return 0, fmt.Errorf("%w: failed to parse page count: %v", processor.ErrCorruptedFile, err)
				}
				return count, nil
			}
		}
	}

	return 0, fmt.Errorf("%w: could not determine page count", processor.ErrCorruptedFile)
}

func isEncrypted(output string) bool {
	return strings.Contains(output, "Incorrect password") || strings.Contains(output, "encrypted")
}
