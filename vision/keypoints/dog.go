package keypoints

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/nftrack/rimage"
	"go.viam.com/nftrack/utils"
)

// DoGPyramid holds the difference of every pair of adjacent scales of a Gaussian pyramid. Level i of
// octave o is scale i+1 minus scale i, so each octave has one level fewer than its source.
type DoGPyramid struct {
	numOctaves         int
	numScalesPerOctave int
	images             []*rimage.Image32f
}

// NewDoGPyramid allocates the levels needed to difference pyr.
func NewDoGPyramid(pyr rimage.GaussianScaleSpacePyramid) (*DoGPyramid, error) {
	if pyr.NumScalesPerOctave() < 2 {
		return nil, errors.Errorf("a DoG pyramid needs at least 2 scales per octave, got %d", pyr.NumScalesPerOctave())
	}
	d := &DoGPyramid{
		numOctaves:         pyr.NumOctaves(),
		numScalesPerOctave: pyr.NumScalesPerOctave() - 1,
	}
	d.images = make([]*rimage.Image32f, 0, d.numOctaves*d.numScalesPerOctave)
	for i := 0; i < d.numOctaves; i++ {
		src := pyr.Get(i, 0)
		for j := 0; j < d.numScalesPerOctave; j++ {
			d.images = append(d.images, rimage.NewImage32f(src.Width(), src.Height()))
		}
	}
	return d, nil
}

// Compute fills every level from pyr, which must have the layout the pyramid was allocated for.
func (d *DoGPyramid) Compute(pyr rimage.GaussianScaleSpacePyramid) error {
	if pyr.NumOctaves() != d.numOctaves || pyr.NumScalesPerOctave() != d.numScalesPerOctave+1 {
		return errors.Errorf("pyramid layout (%d, %d) does not match the allocated DoG layout (%d, %d)",
			pyr.NumOctaves(), pyr.NumScalesPerOctave(), d.numOctaves, d.numScalesPerOctave+1)
	}
	for i := 0; i < d.numOctaves; i++ {
		for j := 0; j < d.numScalesPerOctave; j++ {
			dst := d.Get(i, j)
			im0 := pyr.Get(i, j)
			im1 := pyr.Get(i, j+1)
			if dst.Width() != im0.Width() || dst.Height() != im0.Height() {
				return utils.NewImageSizeMismatchError(dst.Width(), dst.Height(), im0.Width(), im0.Height())
			}
			for k := range dst.Data {
				dst.Data[k] = im1.Data[k] - im0.Data[k]
			}
		}
	}
	return nil
}

// Get returns the DoG image at (octave, scale).
func (d *DoGPyramid) Get(octave, scale int) *rimage.Image32f {
	return d.images[octave*d.numScalesPerOctave+scale]
}

// Image returns level i, counting octave major.
func (d *DoGPyramid) Image(i int) *rimage.Image32f {
	return d.images[i]
}

// Size is the total number of levels.
func (d *DoGPyramid) Size() int {
	return len(d.images)
}

// NumOctaves returns the number of octaves.
func (d *DoGPyramid) NumOctaves() int {
	return d.numOctaves
}

// NumScalesPerOctave returns the number of DoG levels per octave.
func (d *DoGPyramid) NumScalesPerOctave() int {
	return d.numScalesPerOctave
}

// OctaveFromIndex returns the octave of level i, derived from its width relative to level 0.
func (d *DoGPyramid) OctaveFromIndex(i int) int {
	return int(math.Floor(math.Log2(float64(d.images[0].Width())/float64(d.images[i].Width())) + 0.5))
}

// ScaleFromIndex returns the scale of level i within its octave.
func (d *DoGPyramid) ScaleFromIndex(i int) int {
	return i % d.numScalesPerOctave
}
