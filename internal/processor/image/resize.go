package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
	"github.com/abdul-hamid-achik/mediaflow/internal/storage"
)

const (
	// DefaultMaxBytes caps how much of an upload is read into memory.
	DefaultMaxBytes = 25 << 20
	// DefaultMaxPixels rejects decompression bombs before decoding.
	DefaultMaxPixels = 50_000_000
	DefaultQuality   = 85
)

// Variant is one square or rectangular output of a source image.
type Variant struct {
	Name   string
	Width  int
	Height int
}

// Limits bound what the image strategies will decode.
type Limits struct {
	MaxBytes  int64
	MaxPixels int
}

func (l Limits) withDefaults() Limits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxBytes
	}
	if l.MaxPixels <= 0 {
		l.MaxPixels = DefaultMaxPixels
	}
	return l
}

// fetchImage downloads and decodes an object, rejecting oversized input.
func fetchImage(ctx context.Context, store storage.Storage, bucket, key string, limits Limits) (image.Image, error) {
	limits = limits.withDefaults()

	r, err := store.Download(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(io.LimitReader(r, limits.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if int64(len(data)) > limits.MaxBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", processor.ErrUnsupportedType, limits.MaxBytes)
	}

	return decodeImage(data, limits.MaxPixels)
}

func decodeImage(data []byte, maxPixels int) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", processor.ErrCorruptedFile)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", processor.ErrCorruptedFile, err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds pixel limit", processor.ErrUnsupportedType, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", processor.ErrCorruptedFile, err)
	}
	return img, nil
}

func createThumbnail(img image.Image, width, height int, position string) image.Image {
	return imaging.Fill(img, width, height, getAnchor(position), imaging.Lanczos)
}

func getAnchor(position string) imaging.Anchor {
	switch position {
	case "north", "top":
		return imaging.Top
	case "south", "bottom":
		return imaging.Bottom
	case "west", "left":
		return imaging.Left
	case "east", "right":
		return imaging.Right
	default:
		return imaging.Center
	}
}

func encodeJPEG(img image.Image, quality int) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	if err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return &buf, nil
}

func getQuality(configQuality int) int {
	if configQuality > 0 && configQuality <= 100 {
		return configQuality
	}
	return DefaultQuality
}

// putJPEG encodes img and uploads it to bucket/key, returning its public URL.
func putJPEG(ctx context.Context, store storage.Storage, bucket, key string, img image.Image, quality int) (string, error) {
	buf, err := encodeJPEG(img, quality)
	if err != nil {
		return "", err
	}
	if err := store.Upload(ctx, bucket, key, bytes.NewReader(buf.Bytes()), "image/jpeg", int64(buf.Len())); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return store.PublicURL(bucket, key), nil
}
