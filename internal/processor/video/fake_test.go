package video

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const fakeProbeWithAudio = `#!/bin/sh
cat <<'JSON'
{"streams":[{"codec_type":"video","width":1920,"height":1080,"r_frame_rate":"30/1"},{"codec_type":"audio"}],"format":{"duration":"12.5"}}
JSON
`

const fakeProbeNoAudio = `#!/bin/sh
cat <<'JSON'
{"streams":[{"codec_type":"video","width":640,"height":360,"r_frame_rate":"25/1"}],"format":{"duration":"3.0"}}
JSON
`

// fakeFFmpeg writes the files a real ffmpeg would: the normalized mp4 for
// pass one, and a master playlist plus two variants for the ladder pass.
const fakeFFmpeg = `#!/bin/sh
last=""
for a in "$@"; do last="$a"; done
case "$*" in
*master_pl_name*)
  out=$(dirname "$(dirname "$last")")
  for v in 480p 720p; do
    mkdir -p "$out/$v"
    printf '#EXTM3U\n' > "$out/$v/index.m3u8"
    printf 'ts0' > "$out/$v/segment_000.ts"
    printf 'ts1' > "$out/$v/segment_001.ts"
  done
  printf '#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1400000\n480p/index.m3u8\n' > "$out/master.m3u8"
  ;;
*)
  printf 'normalized' > "$last"
  ;;
esac
echo "frame=  100 fps=50" >&2
exit 0
`

const failingFFmpeg = `#!/bin/sh
echo "Input #0, mov,mp4" >&2
echo "moov atom not found" >&2
echo "Invalid data found when processing input" >&2
exit 1
`

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

// fakeEngine returns an Engine backed by shell scripts.
func fakeEngine(t *testing.T, ffmpeg, ffprobe string) *Engine {
	t.Helper()
	requireShell(t)
	dir := t.TempDir()
	return NewEngine(EngineConfig{
		FFmpegPath:  writeScript(t, dir, "ffmpeg", ffmpeg),
		FFprobePath: writeScript(t, dir, "ffprobe", ffprobe),
	})
}
