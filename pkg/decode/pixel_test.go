package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePlane(w, h int, fill int32) Plane {
	data := make([]int32, w*h)
	for i := range data {
		data[i] = fill
	}
	return Plane{Data: data, Width: w, Height: h}
}

func TestRGBAByteSize(t *testing.T) {
	t.Parallel()

	img := &DecodedImage{Width: 10, Height: 4, Pixels: &RGBA8{Pix: make([]uint8, 10*4*4)}}
	assert.Equal(t, int64(160), img.ByteSize())
}

func TestPlanarByteSize(t *testing.T) {
	t.Parallel()

	// 10x4 luma plus two 5x2 chroma planes, 4 bytes per sample.
	img, err := newPlanar(10, 4,
		[3]Plane{makePlane(10, 4, 0), makePlane(5, 2, 0), makePlane(5, 2, 0)},
		2, 2, 8, false, false)
	require.NoError(t, err)
	assert.Equal(t, int64((40+10+10)*4), img.ByteSize())
}

func TestPlanarGeometryInvariants(t *testing.T) {
	t.Parallel()

	// Luma must match the image size.
	_, err := newPlanar(10, 4,
		[3]Plane{makePlane(8, 4, 0), makePlane(5, 2, 0), makePlane(5, 2, 0)},
		2, 2, 8, false, false)
	assert.Error(t, err)

	// Chroma planes must be ceil(w/dx) x ceil(h/dy).
	_, err = newPlanar(9, 3,
		[3]Plane{makePlane(9, 3, 0), makePlane(4, 1, 0), makePlane(4, 1, 0)},
		2, 2, 8, false, false)
	assert.Error(t, err)

	// ceil rounding: 9x3 at (2,2) subsampling needs 5x2 chroma.
	_, err = newPlanar(9, 3,
		[3]Plane{makePlane(9, 3, 0), makePlane(5, 2, 0), makePlane(5, 2, 0)},
		2, 2, 8, false, false)
	assert.NoError(t, err)
}

func TestNilImageByteSize(t *testing.T) {
	t.Parallel()

	var img *DecodedImage
	assert.Equal(t, int64(0), img.ByteSize())
}
