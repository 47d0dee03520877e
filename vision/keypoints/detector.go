package keypoints

import (
	"github.com/pkg/errors"

	"go.viam.com/nftrack/logging"
	"go.viam.com/nftrack/rimage"
)

// DoGDetector finds scale invariant interest points as extrema of a difference of Gaussians pyramid.
// A detector keeps its DoG buffers between calls and must not be used from two goroutines at once.
type DoGDetector struct {
	cfg         *DetectorConfig
	logger      logging.Logger
	dog         *DoGPyramid
	orientation *orientationAssigner
}

// NewDoGDetector creates a detector. A nil config uses DefaultDetectorConfig.
func NewDoGDetector(cfg *DetectorConfig, logger logging.Logger) (*DoGDetector, error) {
	if cfg == nil {
		cfg = DefaultDetectorConfig()
	}
	if err := cfg.Validate("detector"); err != nil {
		return nil, err
	}
	return &DoGDetector{
		cfg:         cfg,
		logger:      logging.OrGlobal(logger),
		orientation: newOrientationAssigner(cfg),
	}, nil
}

// Config returns the detector configuration.
func (d *DoGDetector) Config() *DetectorConfig {
	return d.cfg
}

// Detect runs every stage of the detector on a built pyramid: differencing, extrema search, sub-pixel
// refinement, bucket pruning and orientation assignment.
func (d *DoGDetector) Detect(pyr rimage.GaussianScaleSpacePyramid) ([]DetectedPoint, error) {
	if pyr == nil {
		return nil, errors.New("cannot detect features on a nil pyramid")
	}
	if d.dog == nil || !d.dogMatches(pyr) {
		dog, err := NewDoGPyramid(pyr)
		if err != nil {
			return nil, err
		}
		d.dog = dog
	}
	if err := d.dog.Compute(pyr); err != nil {
		return nil, err
	}

	points := d.FindExtrema(pyr, d.dog)
	numCandidates := len(points)
	points = d.RefineSubpixel(pyr, d.dog, points)
	numRefined := len(points)
	base := pyr.Get(0, 0)
	points = d.PruneFeatures(points, base.Width(), base.Height())
	numPruned := len(points)
	points = d.AssignOrientations(pyr, points)

	d.logger.Debugw("DoG detection",
		"candidates", numCandidates,
		"refined", numRefined,
		"pruned", numPruned,
		"oriented", len(points))
	return points, nil
}

func (d *DoGDetector) dogMatches(pyr rimage.GaussianScaleSpacePyramid) bool {
	if d.dog.NumOctaves() != pyr.NumOctaves() || d.dog.NumScalesPerOctave() != pyr.NumScalesPerOctave()-1 {
		return false
	}
	base := pyr.Get(0, 0)
	return d.dog.Image(0).Width() == base.Width() && d.dog.Image(0).Height() == base.Height()
}
