package decode

// Inverse color transform constants per ITU-T T.800 / BT.601.
const (
	ictRCr = 1.402
	ictGCb = 0.34413
	ictGCr = 0.71414
	ictBCb = 1.772
)

// convertPlanarToRGBA runs the inverse color transform on the CPU.
//
// Each plane's samples are normalized to [0,1] by 1/(2^precision - 1).
// Signed luma gets a +0.5 DC offset, unsigned chroma a -0.5 offset, so
// centered and offset representations meet on a common zero before the
// fixed linear transform. Chroma is nearest-sampled by the (DX,DY)
// subsampling factors.
func convertPlanarToRGBA(width, height int, p *PlanarYCbCr) *RGBA8 {
	scale := 1.0 / float64(int64(1)<<uint(p.Precision)-1)

	lumaOffset := 0.0
	if p.LumaSigned {
		lumaOffset = 0.5
	}
	chromaOffset := 0.0
	if !p.ChromaSigned {
		chromaOffset = -0.5
	}

	luma := p.Planes[0]
	cb := p.Planes[1]
	cr := p.Planes[2]

	pix := make([]uint8, width*height*4)
	for y := 0; y < height; y++ {
		cy := y / p.DY
		if cy >= cb.Height {
			cy = cb.Height - 1
		}
		for x := 0; x < width; x++ {
			cx := x / p.DX
			if cx >= cb.Width {
				cx = cb.Width - 1
			}

			yv := float64(luma.Data[y*luma.Width+x])*scale + lumaOffset
			cbv := float64(cb.Data[cy*cb.Width+cx])*scale + chromaOffset
			crv := float64(cr.Data[cy*cr.Width+cx])*scale + chromaOffset

			r := yv + ictRCr*crv
			g := yv - ictGCb*cbv - ictGCr*crv
			b := yv + ictBCb*cbv

			o := (y*width + x) * 4
			pix[o] = clamp8(r)
			pix[o+1] = clamp8(g)
			pix[o+2] = clamp8(b)
			pix[o+3] = 0xFF
		}
	}
	return &RGBA8{Pix: pix}
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xFF
	}
	return uint8(v*255 + 0.5)
}
