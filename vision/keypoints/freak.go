package keypoints

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/nftrack/logging"
	"go.viam.com/nftrack/rimage"
	"go.viam.com/nftrack/utils"
)

const (
	// NumFREAKReceptors is the number of sampling locations: six rings of six plus the center.
	NumFREAKReceptors = 37
	// NumFREAKBits is the number of pairwise receptor comparisons.
	NumFREAKBits = NumFREAKReceptors * (NumFREAKReceptors - 1) / 2
	// NumBytesPerFeature is the storage size of a descriptor. Bits past NumFREAKBits are zero.
	NumBytesPerFeature = 96
)

// FREAKExtractor computes retina inspired binary descriptors by comparing blurred intensities sampled
// on a fixed pattern of concentric rings scaled and rotated with the point.
type FREAKExtractor struct {
	cfg    *FREAKConfig
	logger logging.Logger
}

// NewFREAKExtractor creates an extractor. A nil config uses DefaultFREAKConfig.
func NewFREAKExtractor(cfg *FREAKConfig, logger logging.Logger) (*FREAKExtractor, error) {
	if cfg == nil {
		cfg = DefaultFREAKConfig()
	}
	if err := cfg.Validate("freak"); err != nil {
		return nil, err
	}
	return &FREAKExtractor{cfg: cfg, logger: logging.OrGlobal(logger)}, nil
}

// similarity maps canonical receptor offsets into the image.
type similarity struct {
	a, b, tx, ty float64
}

func newSimilarity(x, y, angle, scale float64) similarity {
	return similarity{a: scale * math.Cos(angle), b: scale * math.Sin(angle), tx: x, ty: y}
}

func (s similarity) apply(p [2]float64) (float64, float64) {
	return s.a*p[0] - s.b*p[1] + s.tx, s.b*p[0] + s.a*p[1] + s.ty
}

// sampleReceptor samples level (octave, scale) at the level 0 location (x, y).
func (e *FREAKExtractor) sampleReceptor(pyr rimage.GaussianScaleSpacePyramid, x, y float64, octave, scale int) float64 {
	img := pyr.Get(octave, scale)
	xp, yp := rimage.DownsamplePoint(x, y, octave)
	if e.cfg.BilinearSampling {
		xp = utils.Clamp(xp, 0, float64(img.Width()-2))
		yp = utils.Clamp(yp, 0, float64(img.Height()-2))
		return img.BilinearInterpolation(xp, yp)
	}
	xp = utils.Clamp(xp, 0, float64(img.Width()-1))
	yp = utils.Clamp(yp, 0, float64(img.Height()-1))
	return float64(img.At(int(xp), int(yp)))
}

// samplePattern fills samples with the 37 receptor intensities, outermost ring first and the center last.
func (e *FREAKExtractor) samplePattern(samples *[NumFREAKReceptors]float64, pyr rimage.GaussianScaleSpacePyramid, point FeaturePoint) bool {
	if !utils.IsFinite(point.X) || !utils.IsFinite(point.Y) || !utils.IsFinite(point.Angle) || !utils.IsFinite(point.Scale) {
		return false
	}
	transformScale := math.Max(1, point.Scale*e.cfg.ExpansionFactor)
	s := newSimilarity(point.X, point.Y, point.Angle, transformScale)

	k := 0
	for ring := len(freakRings) - 1; ring >= 0; ring-- {
		octave, scale := pyr.Locate(freakRings[ring].sigma * transformScale)
		for _, p := range freakRings[ring].points {
			x, y := s.apply(p)
			if !utils.IsFinite(x) || !utils.IsFinite(y) {
				return false
			}
			samples[k] = e.sampleReceptor(pyr, x, y, octave, scale)
			k++
		}
	}
	octave, scale := pyr.Locate(freakSigmaCenter * transformScale)
	samples[k] = e.sampleReceptor(pyr, s.tx, s.ty, octave, scale)
	return true
}

// compareSamples sets bit n of desc for the n-th pair (i, j), i < j, when samples[i] < samples[j].
func compareSamples(desc []byte, samples *[NumFREAKReceptors]float64) {
	clear(desc)
	pos := 0
	for i := 0; i < NumFREAKReceptors; i++ {
		for j := i + 1; j < NumFREAKReceptors; j++ {
			if samples[i] < samples[j] {
				desc[pos>>3] |= 1 << (pos & 7)
			}
			pos++
		}
	}
}

// ExtractDescriptor writes the descriptor of point into desc, which must hold NumBytesPerFeature bytes.
// It returns false when the point cannot be sampled.
func (e *FREAKExtractor) ExtractDescriptor(pyr rimage.GaussianScaleSpacePyramid, point FeaturePoint, desc []byte) bool {
	if len(desc) < NumBytesPerFeature {
		return false
	}
	var samples [NumFREAKReceptors]float64
	if !e.samplePattern(&samples, pyr, point) {
		return false
	}
	compareSamples(desc[:NumBytesPerFeature], &samples)
	return true
}

// Extract describes every point into store, which is resized to the points that could be described.
// Points that fail are dropped and the survivors keep their relative order.
func (e *FREAKExtractor) Extract(store *BinaryFeatureStore, pyr rimage.GaussianScaleSpacePyramid, points []FeaturePoint) error {
	if store == nil || pyr == nil {
		return errors.New("FREAK extraction needs a store and a pyramid")
	}
	if store.BytesPerFeature() != NumBytesPerFeature {
		return errors.Errorf("FREAK descriptors need %d bytes per feature, store has %d", NumBytesPerFeature, store.BytesPerFeature())
	}
	store.Resize(len(points))
	n := 0
	for _, p := range points {
		if !e.ExtractDescriptor(pyr, p, store.Feature(n)) {
			continue
		}
		store.SetPoint(n, p)
		n++
	}
	if dropped := len(points) - n; dropped > 0 {
		e.logger.Debugw("dropped points during FREAK extraction", "dropped", dropped)
	}
	store.Resize(n)
	return nil
}
