package decode

import (
	"encoding/binary"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildCodestream assembles a raw codestream holding just SOC, SIZ, COD
// and SOD, enough for the metadata walk.
func buildCodestream(t *testing.T, width, height int, comps []sizComp, mct bool) []byte {
	t.Helper()

	var out []byte
	u16 := func(v int) []byte {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(v))
		return b
	}
	u32 := func(v int) []byte {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v))
		return b
	}

	out = append(out, 0xFF, 0x4F) // SOC

	out = append(out, 0xFF, 0x51) // SIZ
	segLen := 38 + 3*len(comps)
	out = append(out, u16(segLen)...)
	out = append(out, u16(0)...)      // Rsiz
	out = append(out, u32(width)...)  // Xsiz
	out = append(out, u32(height)...) // Ysiz
	out = append(out, u32(0)...)      // XOsiz
	out = append(out, u32(0)...)      // YOsiz
	out = append(out, u32(width)...)  // XTsiz
	out = append(out, u32(height)...) // YTsiz
	out = append(out, u32(0)...)      // XTOsiz
	out = append(out, u32(0)...)      // YTOsiz
	out = append(out, u16(len(comps))...)
	for _, c := range comps {
		ssiz := byte(c.precision - 1)
		if c.signed {
			ssiz |= 0x80
		}
		out = append(out, ssiz, byte(c.dx), byte(c.dy))
	}

	out = append(out, 0xFF, 0x52) // COD
	out = append(out, u16(12)...)
	out = append(out, 0) // Scod
	out = append(out, 0) // progression order
	out = append(out, u16(1)...)
	if mct {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = append(out, 5, 4, 4, 0, 0) // levels, cb exps, style, wavelet

	out = append(out, 0xFF, 0x93) // SOD
	return out
}

type sizComp struct {
	precision int
	signed    bool
	dx, dy    int
}

func TestParseCodestreamInfo(t *testing.T) {
	t.Parallel()

	comps := []sizComp{
		{precision: 8, signed: false, dx: 1, dy: 1},
		{precision: 8, signed: true, dx: 2, dy: 2},
		{precision: 12, signed: true, dx: 2, dy: 2},
	}
	cs := buildCodestream(t, 640, 480, comps, true)

	info, err := parseCodestreamInfo(cs)
	require.NoError(t, err)

	assert.Equal(t, 640, info.width)
	assert.Equal(t, 480, info.height)
	assert.Equal(t, 3, info.numComps)
	assert.Equal(t, []int{8, 8, 12}, info.bitDepth)
	assert.Equal(t, []bool{false, true, true}, info.signed)
	assert.Equal(t, []int{1, 2, 2}, info.xrsiz)
	assert.Equal(t, []int{1, 2, 2}, info.yrsiz)
	assert.True(t, info.mct)
	assert.True(t, info.preservablePlanar())
}

func TestParseCodestreamInsideJP2Box(t *testing.T) {
	t.Parallel()

	cs := buildCodestream(t, 64, 64, []sizComp{
		{precision: 8, dx: 1, dy: 1},
		{precision: 8, dx: 2, dy: 2},
		{precision: 8, dx: 2, dy: 2},
	}, true)

	var data []byte
	data = append(data, magicJP2Box...)
	// jp2c box wrapping the codestream.
	hdr := make([]byte, 8)
	binary.BigEndian.PutUint32(hdr, uint32(len(cs)+8))
	copy(hdr[4:], "jp2c")
	data = append(data, hdr...)
	data = append(data, cs...)

	info, err := parseCodestreamInfo(data)
	require.NoError(t, err)
	assert.Equal(t, 64, info.width)
	assert.True(t, info.preservablePlanar())
}

func TestPreservablePlanarConditions(t *testing.T) {
	t.Parallel()

	// RGB-native (no MCT) stays on the codec's RGBA path.
	cs := buildCodestream(t, 32, 32, []sizComp{
		{precision: 8, dx: 1, dy: 1},
		{precision: 8, dx: 1, dy: 1},
		{precision: 8, dx: 1, dy: 1},
	}, false)
	info, err := parseCodestreamInfo(cs)
	require.NoError(t, err)
	assert.False(t, info.preservablePlanar())

	// Grayscale: single component.
	cs = buildCodestream(t, 32, 32, []sizComp{{precision: 8, dx: 1, dy: 1}}, false)
	info, err = parseCodestreamInfo(cs)
	require.NoError(t, err)
	assert.False(t, info.preservablePlanar())

	// Subsampled luma disqualifies plane preservation.
	cs = buildCodestream(t, 32, 32, []sizComp{
		{precision: 8, dx: 2, dy: 2},
		{precision: 8, dx: 2, dy: 2},
		{precision: 8, dx: 2, dy: 2},
	}, true)
	info, err = parseCodestreamInfo(cs)
	require.NoError(t, err)
	assert.False(t, info.preservablePlanar())
}

func TestParseCodestreamTruncated(t *testing.T) {
	t.Parallel()

	cs := buildCodestream(t, 64, 64, []sizComp{{precision: 8, dx: 1, dy: 1}}, false)
	_, err := parseCodestreamInfo(cs[:10])
	assert.Error(t, err)

	_, err = parseCodestreamInfo([]byte{0x00, 0x01, 0x02})
	assert.Error(t, err)
}

func TestPlanarFromYCbCrPreservesPlanes(t *testing.T) {
	t.Parallel()

	src := image.NewYCbCr(image.Rect(0, 0, 6, 4), image.YCbCrSubsampleRatio420)
	for i := range src.Y {
		src.Y[i] = 100
	}
	for i := range src.Cb {
		src.Cb[i] = 90
		src.Cr[i] = 200
	}

	img, err := planarFromYCbCr(src, false)
	require.NoError(t, err)
	assert.Equal(t, 6, img.Width)
	assert.Equal(t, 4, img.Height)

	planar, ok := img.Pixels.(*PlanarYCbCr)
	require.True(t, ok)
	assert.Equal(t, 2, planar.DX)
	assert.Equal(t, 2, planar.DY)
	assert.Equal(t, 8, planar.Precision)
	assert.False(t, planar.LumaSigned)
	assert.False(t, planar.ChromaSigned)
	assert.Equal(t, 6, planar.Planes[0].Width)
	assert.Equal(t, 3, planar.Planes[1].Width)
	assert.Equal(t, 2, planar.Planes[1].Height)
	assert.Equal(t, int32(100), planar.Planes[0].Data[0])
	assert.Equal(t, int32(90), planar.Planes[1].Data[0])
	assert.Equal(t, int32(200), planar.Planes[2].Data[0])
}

func TestPlanarFromYCbCrCPUConversion(t *testing.T) {
	t.Parallel()

	// Neutral mid-gray input: Y=128, Cb=Cr=128.
	src := image.NewYCbCr(image.Rect(0, 0, 2, 2), image.YCbCrSubsampleRatio444)
	for i := range src.Y {
		src.Y[i] = 128
	}
	for i := range src.Cb {
		src.Cb[i] = 128
		src.Cr[i] = 128
	}

	img, err := planarFromYCbCr(src, true)
	require.NoError(t, err)

	rgba, ok := img.Pixels.(*RGBA8)
	require.True(t, ok, "CPU conversion must yield interleaved RGBA")
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 128, int(rgba.Pix[i]), 2)
	}
}
