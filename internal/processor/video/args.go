package video

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	masterPlaylist  = "master.m3u8"
	variantPlaylist = "index.m3u8"
	segmentPattern  = "segment_%03d.ts"
	defaultFPS      = 30
)

// EncodeOptions are the knobs shared by both passes.
type EncodeOptions struct {
	Preset         string
	CRF            int
	SegmentSeconds int
	FrameRate      float64
	HasAudio       bool
}

// normalizeArgs builds pass one: re-encode the upload into a predictable
// H.264 main profile / AAC 48k mp4.
func normalizeArgs(input, output string, opts EncodeOptions) []string {
	args := []string{
		"-hide_banner", "-nostats",
		"-i", input,
		"-c:v", "libx264",
		"-profile:v", "main",
		"-pix_fmt", "yuv420p",
		"-preset", opts.Preset,
		"-crf", strconv.Itoa(opts.CRF),
	}

	if opts.HasAudio {
		args = append(args, "-c:a", "aac", "-ar", "48000")
	} else {
		args = append(args, "-an")
	}

	return append(args, "-movflags", "+faststart", "-y", output)
}

// gopSize is the keyframe interval that lines segment boundaries up across
// every rendition.
func gopSize(fps float64, segmentSeconds int) int {
	if fps <= 0 {
		fps = defaultFPS
	}
	return int(math.Round(fps)) * segmentSeconds
}

func filterComplex(ladder []Rendition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[0:v]split=%d", len(ladder))
	for i := range ladder {
		fmt.Fprintf(&b, "[v%d]", i)
	}
	for i, r := range ladder {
		fmt.Fprintf(&b, ";[v%d]scale=w=%d:h=%d:force_original_aspect_ratio=decrease:force_divisible_by=2[v%dout]",
			i, r.Width, r.Height, i)
	}
	return b.String()
}

func varStreamMap(ladder []Rendition, hasAudio bool) string {
	parts := make([]string, len(ladder))
	for i, r := range ladder {
		if hasAudio {
			parts[i] = fmt.Sprintf("v:%d,a:%d,name:%s", i, i, r.Name)
		} else {
			parts[i] = fmt.Sprintf("v:%d,name:%s", i, r.Name)
		}
	}
	return strings.Join(parts, " ")
}

// ladderArgs builds pass two: one split/scale filter graph feeding an HLS
// muxer that writes outDir/<rendition>/index.m3u8 plus outDir/master.m3u8.
func ladderArgs(input, outDir string, ladder []Rendition, opts EncodeOptions) []string {
	gop := strconv.Itoa(gopSize(opts.FrameRate, opts.SegmentSeconds))

	args := []string{
		"-hide_banner", "-nostats",
		"-i", input,
		"-filter_complex", filterComplex(ladder),
	}

	for i, r := range ladder {
		idx := strconv.Itoa(i)
		args = append(args,
			"-map", fmt.Sprintf("[v%dout]", i),
			"-c:v:"+idx, "libx264",
			"-b:v:"+idx, r.VideoBitrate,
		)
		if opts.HasAudio {
			args = append(args,
				"-map", "0:a:0",
				"-c:a:"+idx, "aac",
				"-b:a:"+idx, r.AudioBitrate,
			)
		}
	}

	if opts.HasAudio {
		args = append(args, "-ac", "2")
	}

	args = append(args,
		"-preset", opts.Preset,
		"-g", gop,
		"-keyint_min", gop,
		"-sc_threshold", "0",
		"-f", "hls",
		"-hls_time", strconv.Itoa(opts.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_flags", "independent_segments",
		"-hls_segment_filename", filepath.Join(outDir, "%v", segmentPattern),
		"-master_pl_name", masterPlaylist,
		"-var_stream_map", varStreamMap(ladder, opts.HasAudio),
		"-y",
		filepath.Join(outDir, "%v", variantPlaylist),
	)
	return args
}
