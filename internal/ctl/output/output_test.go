package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestPrinter_Modes(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		wantEmpty bool
	}{
		{"normal", nil, false},
		{"quiet", []Option{WithQuiet(true)}, true},
		{"json", []Option{WithJSON(true)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := New(append([]Option{WithOutput(&buf), WithNoColor(true)}, tt.opts...)...)

			p.Success("done %d", 1)
			p.Info("key %s", "k")
			p.KeyValue("status", "failed")

			if got := buf.Len() == 0; got != tt.wantEmpty {
				t.Errorf("empty = %v, want %v (output %q)", got, tt.wantEmpty, buf.String())
			}
		})
	}
}

func TestPrinter_ErrorsIgnoreQuiet(t *testing.T) {
	var errBuf bytes.Buffer
	p := New(WithErrOutput(&errBuf), WithQuiet(true), WithNoColor(true))

	p.Error("bad %s", "thing")
	p.ItemFailed("lessons/L1/raw.mp4", errors.New("not found"))

	out := errBuf.String()
	if !strings.Contains(out, "bad thing") || !strings.Contains(out, "lessons/L1/raw.mp4: not found") {
		t.Errorf("error output = %q", out)
	}
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	p := New(WithOutput(&buf), WithJSON(true))

	if err := p.JSON(map[string]string{"status": "completed"}); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"status": "completed"`) {
		t.Errorf("JSON output = %q", buf.String())
	}
}

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"KEY", "STATUS"}, false)
	table.SetMaxWidth(12)
	table.Append([]string{"avatars/u1/me.png", "completed"})
	table.Append([]string{"a.csv", "failed"})
	table.Render()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "KEY") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "avatars/u...") {
		t.Errorf("row not truncated: %q", lines[1])
	}
}

func TestTable_Quiet(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"KEY"}, true)
	table.Append([]string{"x"})
	table.Render()
	if buf.Len() != 0 {
		t.Errorf("quiet table wrote %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"longer than ten", 10, "longer ..."},
		{"ファイル名です", 5, "ファ..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestProgress_Quiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(3, "redrive", ProgressWithQuiet(true), ProgressWithOutput(&buf))
	p.Increment()
	p.Finish()
	if buf.Len() != 0 {
		t.Errorf("quiet progress wrote %q", buf.String())
	}
	if p.Duration() < 0 {
		t.Error("negative duration")
	}
}
