package video

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
	"github.com/abdul-hamid-achik/mediaflow/internal/metrics"
)

var (
	ErrTranscodeFailed  = errors.New("video: transcoding failed")
	ErrTranscodeTimeout = errors.New("video: transcoding timed out")
	ErrFFmpegNotFound   = errors.New("video: ffmpeg not found in PATH")
	ErrFFprobeNotFound  = errors.New("video: ffprobe not found in PATH")
	ErrInvalidVideo     = errors.New("video: invalid or corrupted video file")
)

const (
	defaultTailLines = 20
	defaultWaitDelay = 5 * time.Second
	maxStderrLine    = 1024 * 1024
)

// EngineConfig configures the ffmpeg supervisor.
type EngineConfig struct {
	FFmpegPath  string
	FFprobePath string
	// Timeout bounds a single pass. Zero disables it.
	Timeout time.Duration
	// WaitDelay bounds how long Wait drains pipes after the process is killed.
	WaitDelay time.Duration
	// TailLines is how many stderr lines are kept for error messages.
	TailLines int
}

// Engine spawns and supervises ffmpeg and ffprobe.
type Engine struct {
	cfg EngineConfig
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = defaultWaitDelay
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = defaultTailLines
	}
	return &Engine{cfg: cfg}
}

// CheckBinaries verifies ffmpeg and ffprobe can be found.
func (e *Engine) CheckBinaries() error {
	if _, err := exec.LookPath(e.cfg.FFmpegPath); err != nil {
		return fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	if _, err := exec.LookPath(e.cfg.FFprobePath); err != nil {
		return fmt.Errorf("%w: %v", ErrFFprobeNotFound, err)
	}
	return nil
}

// Run executes one ffmpeg pass. Stderr is streamed into the debug log line by
// line and the last lines are attached to the returned error.
func (e *Engine) Run(ctx context.Context, pass string, args []string) error {
	log := logger.FromContext(ctx).With("pass", pass)

	runCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, e.cfg.FFmpegPath, args...)
	cmd.Cancel = func() error { return cmd.Process.Kill() }
	cmd.WaitDelay = e.cfg.WaitDelay

	pr, pw := io.Pipe()
	cmd.Stderr = pw

	tail := newTailBuffer(e.cfg.TailLines)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), maxStderrLine)
		for scanner.Scan() {
			line := scanner.Text()
			tail.add(line)
			log.Debug("ffmpeg", "line", line)
		}
		_, _ = io.Copy(io.Discard, pr)
	}()

	start := time.Now()
	log.Info("ffmpeg pass started", "args", len(args))

	err := cmd.Start()
	if err == nil {
		err = cmd.Wait()
	}
	_ = pw.Close()
	wg.Wait()

	elapsed := time.Since(start)
	if err == nil {
		metrics.RecordTranscode(pass, "success", elapsed.Seconds())
		log.Info("ffmpeg pass completed", "duration_ms", elapsed.Milliseconds())
		return nil
	}

	switch {
	case ctx.Err() != nil:
		metrics.RecordTranscode(pass, "cancelled", elapsed.Seconds())
		return fmt.Errorf("ffmpeg %s: %w", pass, ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		metrics.RecordTranscode(pass, "timeout", elapsed.Seconds())
		log.Error("ffmpeg pass timed out", "timeout", e.cfg.Timeout.String(), "stderr_tail", tail.String())
		return fmt.Errorf("%w: %s exceeded %s", ErrTranscodeTimeout, pass, e.cfg.Timeout)
	}

	metrics.RecordTranscode(pass, "error", elapsed.Seconds())

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log.Error("ffmpeg pass failed", "exit_code", exitErr.ExitCode(), "stderr_tail", tail.String())
		return fmt.Errorf("%w: %s exited with code %d: %s", ErrTranscodeFailed, pass, exitErr.ExitCode(), tail.String())
	}
	return fmt.Errorf("%w: %s: %v", ErrTranscodeFailed, pass, err)
}

// ProbeResult is the subset of ffprobe output the pipeline needs.
type ProbeResult struct {
	Duration  float64
	Width     int
	Height    int
	FrameRate float64
	HasAudio  bool
}

// ffprobeOutput represents the JSON output from ffprobe
type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe inspects a media file with ffprobe.
func (e *Engine) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, e.cfg.FFprobePath, args...)
	cmd.WaitDelay = e.cfg.WaitDelay
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe failed: %v", ErrInvalidVideo, err)
	}

	return parseProbe(output)
}

func parseProbe(output []byte) (*ProbeResult, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("%w: failed to parse ffprobe output: %v", ErrInvalidVideo, err)
	}

	result := &ProbeResult{}
	if probe.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			result.Duration = d
		}
	}

	hasVideo := false
	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if hasVideo {
				continue
			}
			hasVideo = true
			result.Width = stream.Width
			result.Height = stream.Height
			result.FrameRate = parseFrameRate(stream.RFrameRate)
		case "audio":
			result.HasAudio = true
		}
	}

	if !hasVideo {
		return nil, fmt.Errorf("%w: no video stream", ErrInvalidVideo)
	}
	return result, nil
}

// parseFrameRate parses ffprobe rates like "30/1" or "30000/1001".
func parseFrameRate(rate string) float64 {
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		f, _ := strconv.ParseFloat(rate, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{max: n}
}

func (t *tailBuffer) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, " | ")
}
