package decode

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yshino/orihon/internal/testutil"
)

func TestDecodeFromMemoryPNG(t *testing.T) {
	t.Parallel()

	data := testutil.PNG(t, 12, 7, color.RGBA{R: 200, G: 10, B: 30, A: 255})
	img, err := DecodeFromMemory(data, false)
	require.NoError(t, err)

	assert.Equal(t, 12, img.Width)
	assert.Equal(t, 7, img.Height)

	rgba, ok := img.Pixels.(*RGBA8)
	require.True(t, ok, "raster formats decode to interleaved RGBA")
	assert.Len(t, rgba.Pix, 12*7*4)
	assert.Equal(t, uint8(200), rgba.Pix[0])
	assert.Equal(t, uint8(10), rgba.Pix[1])
	assert.Equal(t, int64(12*7*4), img.ByteSize())
}

func TestDecodePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "page.png")
	require.NoError(t, os.WriteFile(path, testutil.PNG(t, 3, 3, color.White), 0o644))

	img, err := Decode(path, false)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Width)
	assert.Equal(t, 3, img.Height)
}

func TestDecodeUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := DecodeFromMemory([]byte("certainly not pixels"), false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeCorruptData(t *testing.T) {
	t.Parallel()

	// Valid PNG magic, garbage body.
	data := append([]byte{0x89, 0x50, 0x4E, 0x47}, []byte("garbage")...)
	_, err := DecodeFromMemory(data, false)
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		data []byte
		hint string
		want format
	}{
		{"jpeg magic", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "", formatJPEG},
		{"png magic", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A}, "", formatPNG},
		{"bmp magic", []byte{0x42, 0x4D, 0x00, 0x00}, "", formatBMP},
		{"webp riff", append([]byte("RIFF\x00\x00\x00\x00"), []byte("WEBP")...), "", formatWebP},
		{"jp2 signature box", magicJP2Box, "", formatJP2},
		{"raw codestream", []byte{0xFF, 0x4F, 0xFF, 0x51}, "", formatJP2},
		{"ext hint only", []byte{0x00, 0x01}, ".j2k", formatJP2},
		{"unknown", []byte{0x00, 0x01}, ".txt", formatUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, detectFormat(tc.data, tc.hint), tc.name)
	}
}
