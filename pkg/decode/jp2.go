package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	jpeg2000 "github.com/ajroetker/go-jpeg2000"
)

// JPEG2000 marker codes used by the metadata walk.
const (
	markerSOC uint16 = 0xFF4F // start of codestream
	markerSIZ uint16 = 0xFF51 // image and tile size
	markerCOD uint16 = 0xFF52 // coding style default
	markerSOT uint16 = 0xFF90 // start of tile-part
	markerSOD uint16 = 0xFF93 // start of data
)

var errBadCodestream = errors.New("malformed JPEG2000 codestream")

// codestreamInfo is the slice of the main header the color-handling
// decision tree needs: component layout and whether the codec applied a
// multiple-component transform (no MCT means the components are already
// RGB-native).
type codestreamInfo struct {
	width, height int
	numComps      int
	bitDepth      []int
	signed        []bool
	xrsiz, yrsiz  []int
	mct           bool
}

// preservablePlanar reports whether the three component planes can be
// kept verbatim for a GPU-side inverse color transform: exactly three
// MCT-transformed components with unsubsampled luma.
func (c *codestreamInfo) preservablePlanar() bool {
	return c.numComps == 3 && c.mct && c.xrsiz[0] == 1 && c.yrsiz[0] == 1
}

// parseCodestreamInfo walks the JP2 box structure (or a raw codestream)
// up to the first tile-part and extracts the SIZ and COD fields.
func parseCodestreamInfo(data []byte) (*codestreamInfo, error) {
	cs := data
	if bytes.HasPrefix(data, magicJP2Box) {
		var err error
		cs, err = findContiguousCodestream(data)
		if err != nil {
			return nil, err
		}
	}
	if len(cs) < 4 || binary.BigEndian.Uint16(cs[0:2]) != markerSOC {
		return nil, errBadCodestream
	}

	info := &codestreamInfo{}
	sawSIZ, sawCOD := false, false

	pos := 2
	for pos+4 <= len(cs) {
		marker := binary.BigEndian.Uint16(cs[pos : pos+2])
		pos += 2
		if marker == markerSOT || marker == markerSOD {
			break
		}
		if pos+2 > len(cs) {
			return nil, errBadCodestream
		}
		segLen := int(binary.BigEndian.Uint16(cs[pos : pos+2]))
		if segLen < 2 || pos+segLen > len(cs) {
			return nil, errBadCodestream
		}

		switch marker {
		case markerSIZ:
			if err := parseSIZ(cs[pos:pos+segLen], info); err != nil {
				return nil, err
			}
			sawSIZ = true
		case markerCOD:
			// Scod(1) Sgcod: progression(1) layers(2) MCT(1)
			if segLen < 8 {
				return nil, errBadCodestream
			}
			info.mct = cs[pos+6] != 0
			sawCOD = true
		}
		pos += segLen

		if sawSIZ && sawCOD {
			break
		}
	}
	if !sawSIZ || !sawCOD {
		return nil, errBadCodestream
	}
	return info, nil
}

// parseSIZ decodes the image-and-tile-size segment. seg starts at the
// length field.
func parseSIZ(seg []byte, info *codestreamInfo) error {
	if len(seg) < 38 {
		return errBadCodestream
	}
	xsiz := int(binary.BigEndian.Uint32(seg[4:8]))
	ysiz := int(binary.BigEndian.Uint32(seg[8:12]))
	xosiz := int(binary.BigEndian.Uint32(seg[12:16]))
	yosiz := int(binary.BigEndian.Uint32(seg[16:20]))
	info.width = xsiz - xosiz
	info.height = ysiz - yosiz

	info.numComps = int(binary.BigEndian.Uint16(seg[36:38]))
	if info.numComps < 1 || info.numComps > 16384 {
		return fmt.Errorf("%w: component count %d", errBadCodestream, info.numComps)
	}
	if len(seg) < 38+3*info.numComps {
		return errBadCodestream
	}

	info.bitDepth = make([]int, info.numComps)
	info.signed = make([]bool, info.numComps)
	info.xrsiz = make([]int, info.numComps)
	info.yrsiz = make([]int, info.numComps)
	for i := 0; i < info.numComps; i++ {
		ssiz := seg[38+3*i]
		info.signed[i] = ssiz&0x80 != 0
		info.bitDepth[i] = int(ssiz&0x7F) + 1
		info.xrsiz[i] = int(seg[38+3*i+1])
		info.yrsiz[i] = int(seg[38+3*i+2])
		if info.xrsiz[i] < 1 || info.yrsiz[i] < 1 {
			return fmt.Errorf("%w: zero sample separation", errBadCodestream)
		}
	}
	return nil
}

// findContiguousCodestream walks the JP2 box list for the jp2c box.
func findContiguousCodestream(data []byte) ([]byte, error) {
	pos := 0
	for pos+8 <= len(data) {
		boxLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		boxType := string(data[pos+4 : pos+8])
		payload := pos + 8

		switch boxLen {
		case 0:
			// Box extends to end of file.
			boxLen = len(data) - pos
		case 1:
			// 64-bit extended length.
			if payload+8 > len(data) {
				return nil, errBadCodestream
			}
			boxLen = int(binary.BigEndian.Uint64(data[payload : payload+8]))
			payload += 8
		}
		if boxLen < 8 || pos+boxLen > len(data) {
			return nil, errBadCodestream
		}
		if boxType == "jp2c" {
			return data[payload : pos+boxLen], nil
		}
		pos += boxLen
	}
	return nil, errBadCodestream
}

// decodeWavelet handles jp2/j2k input. When the codestream carries three
// MCT components with unsubsampled luma, the planes are either preserved
// verbatim (color conversion deferred to the renderer) or converted here
// depending on cpuColorConversion. Everything else takes the codec's own
// RGBA extraction.
func decodeWavelet(data []byte, cpuColorConversion bool) (*DecodedImage, error) {
	info, infoErr := parseCodestreamInfo(data)

	img, err := jpeg2000.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	if infoErr == nil && info.preservablePlanar() {
		if ycbcr, ok := img.(*image.YCbCr); ok {
			return planarFromYCbCr(ycbcr, cpuColorConversion)
		}
	}
	return fromImage(img), nil
}

func subsampleFactors(r image.YCbCrSubsampleRatio) (int, int) {
	switch r {
	case image.YCbCrSubsampleRatio444:
		return 1, 1
	case image.YCbCrSubsampleRatio422:
		return 2, 1
	case image.YCbCrSubsampleRatio420:
		return 2, 2
	case image.YCbCrSubsampleRatio440:
		return 1, 2
	case image.YCbCrSubsampleRatio411:
		return 4, 1
	case image.YCbCrSubsampleRatio410:
		return 4, 2
	}
	return 1, 1
}

// planarFromYCbCr repacks the codec's planes into tightly packed int32
// planes. The buffers hold 8-bit unsigned samples whatever the
// codestream's nominal precision was, so that is what gets recorded.
func planarFromYCbCr(img *image.YCbCr, cpuColorConversion bool) (*DecodedImage, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dx, dy := subsampleFactors(img.SubsampleRatio)
	cw, ch := ceilDiv(w, dx), ceilDiv(h, dy)

	luma := Plane{Data: make([]int32, w*h), Width: w, Height: h}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			luma.Data[y*w+x] = int32(img.Y[img.YOffset(b.Min.X+x, b.Min.Y+y)])
		}
	}

	cb := Plane{Data: make([]int32, cw*ch), Width: cw, Height: ch}
	cr := Plane{Data: make([]int32, cw*ch), Width: cw, Height: ch}
	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			off := img.COffset(b.Min.X+x*dx, b.Min.Y+y*dy)
			cb.Data[y*cw+x] = int32(img.Cb[off])
			cr.Data[y*cw+x] = int32(img.Cr[off])
		}
	}

	decoded, err := newPlanar(w, h, [3]Plane{luma, cb, cr}, dx, dy, 8, false, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if cpuColorConversion {
		planar := decoded.Pixels.(*PlanarYCbCr)
		decoded.Pixels = convertPlanarToRGBA(w, h, planar)
	}
	return decoded, nil
}
