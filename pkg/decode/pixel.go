package decode

import "fmt"

// PixelData is the decoded pixel payload. Exactly two representations
// exist: interleaved 8-bit RGBA, and three planar integer YCbCr planes
// with subsampling and precision metadata. Consumers dispatch on the
// concrete type; the renderer must accept both since color conversion
// may be deferred to it.
type PixelData interface {
	// ByteSize is the deterministic memory footprint used for cache
	// accounting: 4 bytes per pixel for RGBA, 4 bytes per sample summed
	// over all planes for planar data.
	ByteSize() int64

	pixelData()
}

// RGBA8 is interleaved 8-bit RGBA, row-major, no padding.
type RGBA8 struct {
	Pix []uint8
}

func (p *RGBA8) ByteSize() int64 { return int64(len(p.Pix)) }
func (p *RGBA8) pixelData()      {}

// Plane is a single component's samples, row-major, tightly packed.
type Plane struct {
	Data   []int32
	Width  int
	Height int
}

// PlanarYCbCr keeps the codec's three component planes verbatim so the
// inverse color transform can run in a GPU shader instead of on the CPU.
//
// Planes[0] is luma at full image resolution; Planes[1] and Planes[2] are
// chroma at ceil(width/DX) x ceil(height/DY).
type PlanarYCbCr struct {
	Planes [3]Plane

	// Chroma subsampling factors (horizontal, vertical).
	DX, DY int

	// Bits of precision per sample.
	Precision int

	// Sample signedness per the codestream: signed samples are centered
	// on zero, unsigned ones carry a DC offset.
	LumaSigned   bool
	ChromaSigned bool
}

func (p *PlanarYCbCr) ByteSize() int64 {
	var n int64
	for i := range p.Planes {
		n += int64(len(p.Planes[i].Data)) * 4
	}
	return n
}

func (p *PlanarYCbCr) pixelData() {}

// DecodedImage is one fully decoded page.
type DecodedImage struct {
	Width  int
	Height int
	Pixels PixelData
}

// ByteSize is the image's cache-accounting footprint.
func (d *DecodedImage) ByteSize() int64 {
	if d == nil || d.Pixels == nil {
		return 0
	}
	return d.Pixels.ByteSize()
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// newPlanar assembles the planar variant, enforcing the plane-geometry
// invariants: luma matches the image size, chroma matches the subsampled
// size.
func newPlanar(width, height int, planes [3]Plane, dx, dy, precision int, lumaSigned, chromaSigned bool) (*DecodedImage, error) {
	if dx < 1 || dy < 1 {
		return nil, fmt.Errorf("invalid subsampling factors (%d,%d)", dx, dy)
	}
	if planes[0].Width != width || planes[0].Height != height {
		return nil, fmt.Errorf("luma plane %dx%d does not match image %dx%d",
			planes[0].Width, planes[0].Height, width, height)
	}
	cw, ch := ceilDiv(width, dx), ceilDiv(height, dy)
	for i := 1; i < 3; i++ {
		if planes[i].Width != cw || planes[i].Height != ch {
			return nil, fmt.Errorf("chroma plane %d is %dx%d, want %dx%d",
				i, planes[i].Width, planes[i].Height, cw, ch)
		}
	}
	for i := range planes {
		if len(planes[i].Data) != planes[i].Width*planes[i].Height {
			return nil, fmt.Errorf("plane %d has %d samples, want %d",
				i, len(planes[i].Data), planes[i].Width*planes[i].Height)
		}
	}
	return &DecodedImage{
		Width:  width,
		Height: height,
		Pixels: &PlanarYCbCr{
			Planes:       planes,
			DX:           dx,
			DY:           dy,
			Precision:    precision,
			LumaSigned:   lumaSigned,
			ChromaSigned: chromaSigned,
		},
	}, nil
}
