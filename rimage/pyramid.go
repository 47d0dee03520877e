package rimage

import (
	"image"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/nftrack/utils"
)

// GaussianScaleSpacePyramid is a set of images indexed by (octave, scale). Level (i, j) is level (0, 0)
// halved i times and blurred to EffectiveSigma(i, j).
type GaussianScaleSpacePyramid interface {
	NumOctaves() int
	NumScalesPerOctave() int
	// Get returns the image at (octave, scale).
	Get(octave, scale int) *Image32f
	// Images returns every level, octave major.
	Images() []*Image32f
	// ScaleFactor is k = 2^(1/(numScalesPerOctave-1)).
	ScaleFactor() float64
	EffectiveSigma(octave int, scale float64) float64
	// Locate finds the (octave, scale) level whose sigma best matches sigma.
	Locate(sigma float64) (int, int)
}

// NumOctaves returns how many times an image can be halved while both dimensions stay at or above minSize.
func NumOctaves(width, height, minSize int) int {
	numOctaves := 0
	for width >= minSize && height >= minSize {
		width >>= 1
		height >>= 1
		numOctaves++
	}
	return numOctaves
}

// scaleSpace holds the sigma bookkeeping shared by every pyramid.
type scaleSpace struct {
	numOctaves         int
	numScalesPerOctave int
	k                  float64
	oneOverLogK        float64
}

func newScaleSpace(numOctaves, numScalesPerOctave int) scaleSpace {
	ss := scaleSpace{numOctaves: numOctaves, numScalesPerOctave: numScalesPerOctave}
	if numScalesPerOctave > 1 {
		ss.k = math.Pow(2, 1/float64(numScalesPerOctave-1))
		ss.oneOverLogK = 1 / math.Log(ss.k)
	} else {
		ss.k = 2
		ss.oneOverLogK = 1 / math.Log(2)
	}
	return ss
}

func (ss *scaleSpace) NumOctaves() int {
	return ss.numOctaves
}

func (ss *scaleSpace) NumScalesPerOctave() int {
	return ss.numScalesPerOctave
}

func (ss *scaleSpace) ScaleFactor() float64 {
	return ss.k
}

func (ss *scaleSpace) EffectiveSigma(octave int, scale float64) float64 {
	return math.Pow(ss.k, scale) * float64(int(1)<<octave)
}

func (ss *scaleSpace) Locate(sigma float64) (int, int) {
	octave := int(math.Floor(math.Log2(sigma)))
	fscale := math.Log(sigma/math.Pow(2, float64(octave))) * ss.oneOverLogK
	scale := int(math.Floor(fscale + 0.5))

	// the last scale of an octave is the first scale of the next one
	if scale == ss.numScalesPerOctave-1 {
		octave++
		scale = 0
	}

	if octave < 0 {
		return 0, 0
	}
	if octave >= ss.numOctaves {
		return ss.numOctaves - 1, ss.numScalesPerOctave - 1
	}
	return octave, scale
}

// BinomialPyramid32f is a float Gaussian pyramid with three scales per octave built from repeated
// binomial filtering. Each binomial pass adds a variance of 1 pixel.
type BinomialPyramid32f struct {
	scaleSpace
	width, height int
	levels        []*Image32f
	tmp           []float32
	filtered      []*Image32f
}

// NewBinomialPyramid32f allocates a pyramid for images of the given size.
func NewBinomialPyramid32f(width, height, numOctaves int) (*BinomialPyramid32f, error) {
	const numScalesPerOctave = 3
	if width < MinBinomialSize || height < MinBinomialSize {
		return nil, utils.NewImageTooSmallError(width, height, MinBinomialSize)
	}
	if numOctaves <= 0 {
		return nil, errors.Errorf("number of octaves must be positive, got %d", numOctaves)
	}
	if (width>>(numOctaves-1)) < MinBinomialSize || (height>>(numOctaves-1)) < MinBinomialSize {
		return nil, errors.Errorf("%d octaves is too many for an image of size (%d, %d)", numOctaves, width, height)
	}

	pyr := &BinomialPyramid32f{
		scaleSpace: newScaleSpace(numOctaves, numScalesPerOctave),
		width:      width,
		height:     height,
		tmp:        make([]float32, width*height),
	}
	pyr.levels = make([]*Image32f, 0, numOctaves*numScalesPerOctave)
	pyr.filtered = make([]*Image32f, numOctaves)
	for i := 0; i < numOctaves; i++ {
		for j := 0; j < numScalesPerOctave; j++ {
			pyr.levels = append(pyr.levels, NewImage32f(width>>i, height>>i))
		}
		pyr.filtered[i] = NewImage32f(width>>i, height>>i)
	}
	return pyr, nil
}

// Width returns the width of level (0, 0).
func (pyr *BinomialPyramid32f) Width() int {
	return pyr.width
}

// Height returns the height of level (0, 0).
func (pyr *BinomialPyramid32f) Height() int {
	return pyr.height
}

// Get returns the image at (octave, scale).
func (pyr *BinomialPyramid32f) Get(octave, scale int) *Image32f {
	return pyr.levels[octave*pyr.numScalesPerOctave+scale]
}

// Images returns every level, octave major.
func (pyr *BinomialPyramid32f) Images() []*Image32f {
	return pyr.levels
}

// Build rebuilds every level from an 8-bit image. Level (0, 0) is the image after one binomial pass,
// which puts it at sigma 1.
func (pyr *BinomialPyramid32f) Build(img *image.Gray) error {
	b := img.Bounds()
	if b.Dx() != pyr.width || b.Dy() != pyr.height {
		return utils.NewImageSizeMismatchError(pyr.width, pyr.height, b.Dx(), b.Dy())
	}
	BinomialFilter(pyr.Get(0, 0), Image32fFromGray(img), pyr.tmp)
	pyr.buildFromLevel0()
	return nil
}

// BuildFromBlurred rebuilds every level from an image that has already been blurred to sigma 1.
// The image is copied into level (0, 0) as is.
func (pyr *BinomialPyramid32f) BuildFromBlurred(img *Image32f) error {
	if img.Width() != pyr.width || img.Height() != pyr.height {
		return utils.NewImageSizeMismatchError(pyr.width, pyr.height, img.Width(), img.Height())
	}
	pyr.Get(0, 0).CopyFrom(img)
	pyr.buildFromLevel0()
	return nil
}

func (pyr *BinomialPyramid32f) buildFromLevel0() {
	for i := 0; i < pyr.numOctaves; i++ {
		if i > 0 {
			Downsample2x2(pyr.Get(i, 0), pyr.Get(i-1, 2))
		}
		// sigma sqrt(2) then sigma 2, relative to the octave
		BinomialFilter(pyr.Get(i, 1), pyr.Get(i, 0), pyr.tmp)
		BinomialFilter(pyr.filtered[i], pyr.Get(i, 1), pyr.tmp)
		BinomialFilter(pyr.Get(i, 2), pyr.filtered[i], pyr.tmp)
	}
}
