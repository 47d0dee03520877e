package rimage

import (
	"image"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/nftrack/utils"
)

// DecimationKernel is the filter a one scale pyramid uses to go from one octave to the next.
type DecimationKernel int

const (
	// BinomialDecimation filters with the 5x5 binomial kernel centered on even pixels. Level i has size
	// ceil(w/2) of level i-1, and pixel x of level i sits on pixel 2x of level i-1.
	BinomialDecimation DecimationKernel = iota
	// BoxDecimation averages 2x2 blocks. Level i has size ceil((w-1)/2) of level i-1, and pixel x of
	// level i sits between pixels 2x and 2x+1 of level i-1, which is what UpsamplePoint assumes.
	BoxDecimation
)

// Pyramid8u is a multi-resolution stack of 8-bit images with one scale per octave.
type Pyramid8u struct {
	scaleSpace
	kernel DecimationKernel
	levels []*image.Gray
}

// NewBinomialPyramid8u allocates a one scale pyramid decimated with the binomial kernel.
func NewBinomialPyramid8u(width, height, numOctaves int) (*Pyramid8u, error) {
	return newPyramid8u(width, height, numOctaves, BinomialDecimation)
}

// NewBoxFilterPyramid8u allocates a one scale pyramid decimated with a 2x2 box filter.
func NewBoxFilterPyramid8u(width, height, numOctaves int) (*Pyramid8u, error) {
	return newPyramid8u(width, height, numOctaves, BoxDecimation)
}

func newPyramid8u(width, height, numOctaves int, kernel DecimationKernel) (*Pyramid8u, error) {
	if width <= 0 || height <= 0 {
		return nil, utils.NewImageTooSmallError(width, height, 1)
	}
	if numOctaves <= 0 {
		return nil, errors.Errorf("number of octaves must be positive, got %d", numOctaves)
	}
	pyr := &Pyramid8u{
		scaleSpace: newScaleSpace(numOctaves, 1),
		kernel:     kernel,
		levels:     make([]*image.Gray, numOctaves),
	}
	w, h := width, height
	for i := 0; i < numOctaves; i++ {
		if w <= 0 || h <= 0 {
			return nil, errors.Errorf("%d octaves is too many for an image of size (%d, %d)", numOctaves, width, height)
		}
		pyr.levels[i] = image.NewGray(image.Rect(0, 0, w, h))
		switch kernel {
		case BoxDecimation:
			w = int(math.Ceil(float64(w-1) / 2))
			h = int(math.Ceil(float64(h-1) / 2))
		default:
			w = int(math.Ceil(float64(w) / 2))
			h = int(math.Ceil(float64(h) / 2))
		}
	}
	return pyr, nil
}

// Kernel returns the decimation kernel of the pyramid.
func (pyr *Pyramid8u) Kernel() DecimationKernel {
	return pyr.kernel
}

// Level returns octave i.
func (pyr *Pyramid8u) Level(i int) *image.Gray {
	return pyr.levels[i]
}

// Build copies img into level 0 and decimates it into every coarser level.
func (pyr *Pyramid8u) Build(img *image.Gray) error {
	b := img.Bounds()
	base := pyr.levels[0]
	if b.Dx() != base.Rect.Dx() || b.Dy() != base.Rect.Dy() {
		return utils.NewImageSizeMismatchError(base.Rect.Dx(), base.Rect.Dy(), b.Dx(), b.Dy())
	}
	for y := 0; y < b.Dy(); y++ {
		start := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(base.Pix[y*base.Stride:y*base.Stride+b.Dx()], img.Pix[start:start+b.Dx()])
	}
	for i := 1; i < len(pyr.levels); i++ {
		switch pyr.kernel {
		case BoxDecimation:
			BoxFilterDecimate8u(pyr.levels[i], pyr.levels[i-1])
		default:
			BinomialDecimate8u(pyr.levels[i], pyr.levels[i-1])
		}
	}
	return nil
}
