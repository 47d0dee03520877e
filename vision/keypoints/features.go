package keypoints

import (
	"image"

	"github.com/pkg/errors"

	"go.viam.com/nftrack/logging"
	"go.viam.com/nftrack/rimage"
	"go.viam.com/nftrack/utils"
)

// FeatureExtractor turns gray images into FREAK feature stores. It owns a pyramid sized for the last
// image it saw and reuses it while the size does not change.
type FeatureExtractor struct {
	cfg       *FeatureExtractorConfig
	logger    logging.Logger
	detector  *DoGDetector
	extractor *FREAKExtractor
	pyramid   *rimage.BinomialPyramid32f
}

// NewFeatureExtractor creates a FeatureExtractor. A nil config uses DefaultFeatureExtractorConfig.
func NewFeatureExtractor(cfg *FeatureExtractorConfig, logger logging.Logger) (*FeatureExtractor, error) {
	if cfg == nil {
		cfg = DefaultFeatureExtractorConfig()
	}
	if err := cfg.Validate("feature_extractor"); err != nil {
		return nil, err
	}
	logger = logging.OrGlobal(logger)
	detector, err := NewDoGDetector(cfg.Detector, logger.Sublogger("dog"))
	if err != nil {
		return nil, err
	}
	extractor, err := NewFREAKExtractor(cfg.FREAK, logger.Sublogger("freak"))
	if err != nil {
		return nil, err
	}
	return &FeatureExtractor{cfg: cfg, logger: logger, detector: detector, extractor: extractor}, nil
}

// Pyramid returns the pyramid built for the last image.
func (fe *FeatureExtractor) Pyramid() *rimage.BinomialPyramid32f {
	return fe.pyramid
}

func (fe *FeatureExtractor) ensurePyramid(width, height int) error {
	if fe.pyramid != nil && fe.pyramid.Width() == width && fe.pyramid.Height() == height {
		return nil
	}
	numOctaves := rimage.NumOctaves(width, height, fe.cfg.Detector.MinCoarseSize)
	if numOctaves < 1 {
		return utils.NewImageTooSmallError(width, height, fe.cfg.Detector.MinCoarseSize)
	}
	pyr, err := rimage.NewBinomialPyramid32f(width, height, numOctaves)
	if err != nil {
		return err
	}
	fe.logger.Debugw("allocated pyramid", "width", width, "height", height, "octaves", numOctaves)
	fe.pyramid = pyr
	return nil
}

// Extract detects DoG points on img and describes them with FREAK.
func (fe *FeatureExtractor) Extract(img *image.Gray) (*BinaryFeatureStore, error) {
	if img == nil {
		return nil, errors.New("cannot extract features from a nil image")
	}
	gray := rimage.MakeGray(img)
	b := gray.Bounds()
	if err := fe.ensurePyramid(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}
	if err := fe.pyramid.Build(gray); err != nil {
		return nil, err
	}
	detected, err := fe.detector.Detect(fe.pyramid)
	if err != nil {
		return nil, errors.Wrap(err, "DoG detection failed")
	}
	points := make([]FeaturePoint, len(detected))
	for i, p := range detected {
		points[i] = p.FeaturePoint()
	}
	store := NewBinaryFeatureStore(NumBytesPerFeature)
	if err := fe.extractor.Extract(store, fe.pyramid, points); err != nil {
		return nil, err
	}
	fe.logger.Debugw("extracted features", "detected", len(detected), "described", store.Size())
	return store, nil
}

// ComputeFREAKFeatures runs the whole pipeline once on img.
func ComputeFREAKFeatures(img *image.Gray, cfg *FeatureExtractorConfig, logger logging.Logger) (*BinaryFeatureStore, error) {
	fe, err := NewFeatureExtractor(cfg, logger)
	if err != nil {
		return nil, err
	}
	return fe.Extract(img)
}
