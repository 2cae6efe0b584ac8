package pdf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
)

func script(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

// fakePdftoppm writes <last arg>.png like pdftoppm -singlefile does.
const fakePdftoppm = `last=""
for a in "$@"; do last="$a"; done
printf 'png' > "$last.png"
`

func TestRenderer_RenderFirstPage(t *testing.T) {
	r := NewRenderer(Config{
		PdfinfoPath:  script(t, "pdfinfo", "echo 'Title: report'\necho 'Pages:          3'\n"),
		PdftoppmPath: script(t, "pdftoppm", fakePdftoppm),
	})

	out := t.TempDir()
	got, err := r.RenderFirstPage(context.Background(), "in.pdf", out)
	if err != nil {
		t.Fatalf("RenderFirstPage() error = %v", err)
	}
	if got != filepath.Join(out, "preview.png") {
		t.Errorf("path = %q", got)
	}
}

func TestRenderer_Errors(t *testing.T) {
	tests := []struct {
		name     string
		pdfinfo  string
		pdftoppm string
		wantErr  error
	}{
		{
			name:     "no pages",
			pdfinfo:  "echo 'Pages: 0'\n",
			pdftoppm: fakePdftoppm,
			wantErr:  ErrPDFEmpty,
		},
		{
			name:     "encrypted",
			pdfinfo:  "echo 'Command Line Error: Incorrect password'\nexit 1\n",
			pdftoppm: fakePdftoppm,
			wantErr:  ErrPDFEncrypted,
		},
		{
			name:     "not a pdf",
			pdfinfo:  "echo 'Syntax Error: Couldnt find trailer dictionary'\nexit 1\n",
			pdftoppm: fakePdftoppm,
			wantErr:  processor.ErrCorruptedFile,
		},
		{
			name:     "missing page count",
			pdfinfo:  "echo 'Title: x'\n",
			pdftoppm: fakePdftoppm,
			wantErr:  processor.ErrCorruptedFile,
		},
		{
			name:     "render failure",
			pdfinfo:  "echo 'Pages: 1'\n",
			pdftoppm: "echo 'boom' >&2\nexit 99\n",
			wantErr:  ErrRenderFailed,
		},
		{
			name:     "no output written",
			pdfinfo:  "echo 'Pages: 1'\n",
			pdftoppm: "exit 0\n",
			wantErr:  ErrRenderFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(Config{
				PdfinfoPath:  script(t, "pdfinfo", tt.pdfinfo),
				PdftoppmPath: script(t, "pdftoppm", tt.pdftoppm),
			})
			_, err := r.RenderFirstPage(context.Background(), "in.pdf", t.TempDir())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RenderFirstPage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
