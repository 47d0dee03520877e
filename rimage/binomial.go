package rimage

import (
	"image"

	"go.viam.com/nftrack/utils"
)

// MinBinomialSize is the smallest width or height the 5-tap binomial kernel can filter.
const MinBinomialSize = 5

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// BinomialFilter convolves src with the separable kernel [1 4 6 4 1]/16 in each direction, replicating
// the nearest valid sample at the borders. tmp must hold at least width*height values. dst and src
// must have the same size and must not alias.
func BinomialFilter(dst, src *Image32f, tmp []float32) {
	w, h := src.width, src.height
	tmp = tmp[:w*h]

	utils.ParallelForEachRow(h, func(y int) {
		s := src.Row(y)
		t := tmp[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			t[x] = s[clampIndex(x-2, w)] +
				4*s[clampIndex(x-1, w)] +
				6*s[x] +
				4*s[clampIndex(x+1, w)] +
				s[clampIndex(x+2, w)]
		}
	})

	const norm = float32(1. / 256.)
	utils.ParallelForEachRow(h, func(y int) {
		pm2 := tmp[clampIndex(y-2, h)*w:]
		pm1 := tmp[clampIndex(y-1, h)*w:]
		p := tmp[y*w:]
		pp1 := tmp[clampIndex(y+1, h)*w:]
		pp2 := tmp[clampIndex(y+2, h)*w:]
		d := dst.Row(y)
		for x := 0; x < w; x++ {
			d[x] = (pm2[x] + 4*pm1[x] + 6*p[x] + 4*pp1[x] + pp2[x]) * norm
		}
	})
}

// Downsample2x2 fills dst with the mean of each 2x2 block of src. dst must be (src.width>>1, src.height>>1).
func Downsample2x2(dst, src *Image32f) {
	utils.ParallelForEachRow(dst.height, func(y int) {
		r0 := src.Row(2 * y)
		r1 := src.Row(2*y + 1)
		d := dst.Row(y)
		for x := range d {
			d[x] = (r0[2*x] + r0[2*x+1] + r1[2*x] + r1[2*x+1]) * 0.25
		}
	})
}

// BinomialDecimate8u filters src with the 5x5 binomial kernel and keeps every other sample, starting
// at (0, 0). dst must be (ceil(w/2), ceil(h/2)).
func BinomialDecimate8u(dst, src *image.Gray) {
	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	dw, dh := dst.Bounds().Dx(), dst.Bounds().Dy()
	// one horizontally filtered row per source row
	tmp := make([]uint16, dw*sh)
	for y := 0; y < sh; y++ {
		s := src.Pix[y*src.Stride : y*src.Stride+sw]
		t := tmp[y*dw : (y+1)*dw]
		for x := 0; x < dw; x++ {
			c := 2 * x
			t[x] = uint16(s[clampIndex(c-2, sw)]) +
				4*uint16(s[clampIndex(c-1, sw)]) +
				6*uint16(s[c]) +
				4*uint16(s[clampIndex(c+1, sw)]) +
				uint16(s[clampIndex(c+2, sw)])
		}
	}
	for y := 0; y < dh; y++ {
		c := 2 * y
		pm2 := tmp[clampIndex(c-2, sh)*dw:]
		pm1 := tmp[clampIndex(c-1, sh)*dw:]
		p := tmp[c*dw:]
		pp1 := tmp[clampIndex(c+1, sh)*dw:]
		pp2 := tmp[clampIndex(c+2, sh)*dw:]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+dw]
		for x := 0; x < dw; x++ {
			v := uint32(pm2[x]) + 4*uint32(pm1[x]) + 6*uint32(p[x]) + 4*uint32(pp1[x]) + uint32(pp2[x])
			d[x] = uint8(v >> 8)
		}
	}
}

// BoxFilterDecimate8u averages each 2x2 block of src into one pixel of dst, truncating.
// dst must be (ceil((w-1)/2), ceil((h-1)/2)).
func BoxFilterDecimate8u(dst, src *image.Gray) {
	dw, dh := dst.Bounds().Dx(), dst.Bounds().Dy()
	for y := 0; y < dh; y++ {
		r0 := src.Pix[(2*y)*src.Stride:]
		r1 := src.Pix[(2*y+1)*src.Stride:]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+dw]
		for x := 0; x < dw; x++ {
			v := uint16(r0[2*x]) + uint16(r0[2*x+1]) + uint16(r1[2*x]) + uint16(r1[2*x+1])
			d[x] = uint8(v >> 2)
		}
	}
}
