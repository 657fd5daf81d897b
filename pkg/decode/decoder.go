package decode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/jpegn"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

var (
	// ErrUnsupportedFormat means the bytes match no supported raster format.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrDecodeFailed means the bytes matched a format but did not decode.
	ErrDecodeFailed = errors.New("image decode failed")
)

type format int

const (
	formatUnknown format = iota
	formatJPEG
	formatPNG
	formatWebP
	formatBMP
	formatJP2
)

var (
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicPNG  = []byte{0x89, 0x50, 0x4E, 0x47}
	magicBMP  = []byte{0x42, 0x4D}
	// JP2 signature box: length 12, type "jP  ", CR LF 0x87 LF.
	magicJP2Box = []byte{0x00, 0x00, 0x00, 0x0C, 0x6A, 0x50, 0x20, 0x20, 0x0D, 0x0A, 0x87, 0x0A}
	// Raw codestream: SOC marker immediately followed by SIZ.
	magicJ2KCodestream = []byte{0xFF, 0x4F, 0xFF, 0x51}
)

// detectFormat sniffs the magic bytes, falling back to the extension hint
// for formats without a distinctive prefix.
func detectFormat(data []byte, extHint string) format {
	switch {
	case bytes.HasPrefix(data, magicJP2Box), bytes.HasPrefix(data, magicJ2KCodestream):
		return formatJP2
	case bytes.HasPrefix(data, magicJPEG):
		return formatJPEG
	case bytes.HasPrefix(data, magicPNG):
		return formatPNG
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return formatWebP
	case bytes.HasPrefix(data, magicBMP):
		return formatBMP
	}

	switch strings.ToLower(extHint) {
	case ".jpg", ".jpeg":
		return formatJPEG
	case ".png":
		return formatPNG
	case ".webp":
		return formatWebP
	case ".bmp":
		return formatBMP
	case ".jp2", ".j2k":
		return formatJP2
	}
	return formatUnknown
}

// Decode reads and decodes the image file at path.
func Decode(path string, cpuColorConversion bool) (*DecodedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return decode(data, filepath.Ext(path), cpuColorConversion)
}

// DecodeFromMemory decodes raw image bytes, typically an archive entry.
func DecodeFromMemory(data []byte, cpuColorConversion bool) (*DecodedImage, error) {
	return decode(data, "", cpuColorConversion)
}

func decode(data []byte, extHint string, cpuColorConversion bool) (*DecodedImage, error) {
	var (
		img image.Image
		err error
	)
	switch detectFormat(data, extHint) {
	case formatJP2:
		return decodeWavelet(data, cpuColorConversion)
	case formatJPEG:
		img, err = jpegn.Decode(bytes.NewReader(data), &jpegn.Options{ToRGBA: true})
	case formatPNG:
		img, err = png.Decode(bytes.NewReader(data))
	case formatWebP:
		img, err = webp.Decode(bytes.NewReader(data))
	case formatBMP:
		img, err = bmp.Decode(bytes.NewReader(data))
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return fromImage(img), nil
}

// fromImage normalizes any stdlib image to the interleaved RGBA variant.
func fromImage(img image.Image) *DecodedImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != w*4 || !b.Min.Eq(image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return &DecodedImage{Width: w, Height: h, Pixels: &RGBA8{Pix: rgba.Pix}}
}
