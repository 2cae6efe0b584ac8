package video

import (
	"slices"
	"strings"
	"testing"
)

// argValue returns the argument following flag.
func argValue(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestNormalizeArgs(t *testing.T) {
	opts := EncodeOptions{Preset: "veryfast", CRF: 23, HasAudio: true}
	args := normalizeArgs("/raw/in.mov", "/raw/normalized.mp4", opts)

	want := map[string]string{
		"-i":         "/raw/in.mov",
		"-c:v":       "libx264",
		"-profile:v": "main",
		"-pix_fmt":   "yuv420p",
		"-preset":    "veryfast",
		"-crf":       "23",
		"-c:a":       "aac",
		"-ar":        "48000",
		"-movflags":  "+faststart",
	}
	for flag, v := range want {
		if got := argValue(args, flag); got != v {
			t.Errorf("%s = %q, want %q", flag, got, v)
		}
	}
	if args[len(args)-1] != "/raw/normalized.mp4" {
		t.Errorf("output = %q", args[len(args)-1])
	}

	silent := normalizeArgs("/raw/in.mov", "/raw/normalized.mp4", EncodeOptions{Preset: "fast", CRF: 20})
	if !slices.Contains(silent, "-an") || slices.Contains(silent, "-c:a") {
		t.Errorf("silent input args = %v, want -an and no audio codec", silent)
	}
}

func TestLadderArgs(t *testing.T) {
	ladder := DefaultLadder()
	opts := EncodeOptions{Preset: "veryfast", SegmentSeconds: 6, FrameRate: 29.97, HasAudio: true}
	args := ladderArgs("/raw/normalized.mp4", "/out", ladder, opts)

	if got := argValue(args, "-g"); got != "180" {
		t.Errorf("-g = %q, want 180", got)
	}
	if got := argValue(args, "-keyint_min"); got != "180" {
		t.Errorf("-keyint_min = %q, want 180", got)
	}
	if got := argValue(args, "-sc_threshold"); got != "0" {
		t.Errorf("-sc_threshold = %q, want 0", got)
	}
	if got := argValue(args, "-hls_time"); got != "6" {
		t.Errorf("-hls_time = %q, want 6", got)
	}
	if got := argValue(args, "-hls_playlist_type"); got != "vod" {
		t.Errorf("-hls_playlist_type = %q, want vod", got)
	}
	if got := argValue(args, "-master_pl_name"); got != "master.m3u8" {
		t.Errorf("-master_pl_name = %q", got)
	}
	if got := argValue(args, "-hls_segment_filename"); got != "/out/%v/segment_%03d.ts" {
		t.Errorf("-hls_segment_filename = %q", got)
	}
	if got := argValue(args, "-var_stream_map"); got != "v:0,a:0,name:480p v:1,a:1,name:720p v:2,a:2,name:1080p" {
		t.Errorf("-var_stream_map = %q", got)
	}
	if args[len(args)-1] != "/out/%v/index.m3u8" {
		t.Errorf("output = %q", args[len(args)-1])
	}

	fc := argValue(args, "-filter_complex")
	if !strings.HasPrefix(fc, "[0:v]split=3[v0][v1][v2]") {
		t.Errorf("filter_complex = %q", fc)
	}
	for _, scale := range []string{"w=854:h=480", "w=1280:h=720", "w=1920:h=1080"} {
		if !strings.Contains(fc, scale) {
			t.Errorf("filter_complex missing %s", scale)
		}
	}

	if got := argValue(args, "-b:v:1"); got != "2800k" {
		t.Errorf("-b:v:1 = %q, want 2800k", got)
	}
	audioMaps := 0
	for i, a := range args {
		if a == "-map" && args[i+1] == "0:a:0" {
			audioMaps++
		}
	}
	if audioMaps != 3 {
		t.Errorf("audio maps = %d, want 3", audioMaps)
	}
}

func TestLadderArgs_NoAudio(t *testing.T) {
	args := ladderArgs("in.mp4", "/out", DefaultLadder(), EncodeOptions{Preset: "fast", SegmentSeconds: 4})

	if slices.Contains(args, "0:a:0") {
		t.Error("audio should not be mapped for silent input")
	}
	if got := argValue(args, "-var_stream_map"); got != "v:0,name:480p v:1,name:720p v:2,name:1080p" {
		t.Errorf("-var_stream_map = %q", got)
	}
	// unknown frame rate falls back to 30fps
	if got := argValue(args, "-g"); got != "120" {
		t.Errorf("-g = %q, want 120", got)
	}
}

func TestGopSize(t *testing.T) {
	tests := []struct {
		fps     float64
		segment int
		want    int
	}{
		{30, 6, 180},
		{25, 6, 150},
		{23.976, 4, 96},
		{59.94, 2, 120},
		{0, 6, 180},
	}

	for _, tt := range tests {
		if got := gopSize(tt.fps, tt.segment); got != tt.want {
			t.Errorf("gopSize(%v, %d) = %d, want %d", tt.fps, tt.segment, got, tt.want)
		}
	}
}
