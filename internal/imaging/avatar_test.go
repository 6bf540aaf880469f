package imaging

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 80, A: 255})
		}
	}
	return img
}

func TestResizer_Avatar(t *testing.T) {
	var jpg, pngIn bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, sample(600, 300), nil))
	require.NoError(t, png.Encode(&pngIn, sample(40, 90)))

	r := NewResizer()
	for name, data := range map[string][]byte{"jpeg": jpg.Bytes(), "png": pngIn.Bytes()} {
		t.Run(name, func(t *testing.T) {
			out, err := r.Avatar(data)
			require.NoError(t, err)

			cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, "png", format)
			assert.Equal(t, AvatarSize, cfg.Width)
			assert.Equal(t, AvatarSize, cfg.Height)
		})
	}
}

func TestResizer_RejectsNonImages(t *testing.T) {
	_, err := NewResizer().Avatar([]byte("%PDF-1.4 definitely not a picture"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

// withDimensions rewrites the IHDR chunk of a PNG to declare w x h.
func withDimensions(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestResizer_RejectsOversizedDimensions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, sample(2, 2)))

	for name, dims := range map[string][2]uint32{
		"huge square": {60000, 60000},
		"long strip":  {4096*4096 + 1, 1},
	} {
		t.Run(name, func(t *testing.T) {
			data := withDimensions(t, buf.Bytes(), dims[0], dims[1])
			cfg, err := png.DecodeConfig(bytes.NewReader(data))
			require.NoError(t, err)
			require.Equal(t, int(dims[0]), cfg.Width)

			_, err = NewResizer().Avatar(data)
			assert.ErrorIs(t, err, ErrUnsupportedImage)
			assert.ErrorContains(t, err, "exceeds size limit")
		})
	}
}
