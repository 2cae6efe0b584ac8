package video

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var ErrInvalidLadder = errors.New("video: invalid rendition ladder")

var renditionName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Rendition is one rung of the HLS ladder.
type Rendition struct {
	Name         string `yaml:"name"`
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	VideoBitrate string `yaml:"video_bitrate"`
	AudioBitrate string `yaml:"audio_bitrate"`
}

type ladderFile struct {
	Renditions []Rendition `yaml:"renditions"`
}

// DefaultLadder returns the 480p, 720p and 1080p renditions.
func DefaultLadder() []Rendition {
	return []Rendition{
		{Name: "480p", Width: 854, Height: 480, VideoBitrate: "1400k", AudioBitrate: "96k"},
		{Name: "720p", Width: 1280, Height: 720, VideoBitrate: "2800k", AudioBitrate: "128k"},
		{Name: "1080p", Width: 1920, Height: 1080, VideoBitrate: "5000k", AudioBitrate: "192k"},
	}
}

// LoadLadder reads a YAML ladder file. An empty path yields DefaultLadder.
//
//	renditions:
//	  - name: 360p
//	    width: 640
//	    height: 360
//	    video_bitrate: 800k
//	    audio_bitrate: 64k
func LoadLadder(path string) ([]Rendition, error) {
	if path == "" {
		return DefaultLadder(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ladder file: %w", err)
	}
	return ParseLadder(data)
}

func ParseLadder(data []byte) ([]Rendition, error) {
	var f ladderFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLadder, err)
	}

	for i := range f.Renditions {
		if f.Renditions[i].AudioBitrate == "" {
			f.Renditions[i].AudioBitrate = "128k"
		}
	}

	if err := ValidateLadder(f.Renditions); err != nil {
		return nil, err
	}
	return f.Renditions, nil
}

func ValidateLadder(ladder []Rendition) error {
	if len(ladder) == 0 {
		return fmt.Errorf("%w: no renditions", ErrInvalidLadder)
	}

	seen := make(map[string]bool, len(ladder))
	for _, r := range ladder {
		if !renditionName.MatchString(r.Name) {
			return fmt.Errorf("%w: bad rendition name %q", ErrInvalidLadder, r.Name)
		}
		if seen[r.Name] {
			return fmt.Errorf("%w: duplicate rendition %q", ErrInvalidLadder, r.Name)
		}
		seen[r.Name] = true

		// libx264 with yuv420p needs even dimensions.
		if r.Width <= 0 || r.Height <= 0 || r.Width%2 != 0 || r.Height%2 != 0 {
			return fmt.Errorf("%w: %s has invalid size %dx%d", ErrInvalidLadder, r.Name, r.Width, r.Height)
		}
		if r.VideoBitrate == "" {
			return fmt.Errorf("%w: %s has no video bitrate", ErrInvalidLadder, r.Name)
		}
	}
	return nil
}
