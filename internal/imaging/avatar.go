// Package imaging normalizes uploaded pictures into stored avatars.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// AvatarSize is the edge length in pixels of every stored avatar.
const AvatarSize = 250

// MaxSourcePixels bounds the declared dimensions of an upload. Headers are
// checked before any pixel data is decoded.
const MaxSourcePixels = 4096 * 4096

// ErrUnsupportedImage is returned for uploads that are not JPEG or PNG, or
// whose dimensions exceed MaxSourcePixels.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Resizer scales uploads to a fixed square and re-encodes them as PNG.
type Resizer struct {
	size   int
	scaler draw.Scaler
}

func NewResizer() *Resizer {
	return &Resizer{size: AvatarSize, scaler: draw.CatmullRom}
}

// Avatar decodes data, stretches it to the avatar square, and returns the
// PNG encoding.
func (r *Resizer) Avatar(data []byte) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if format != "jpeg" && format != "png" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds size limit", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.size, r.size))
	r.scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}
