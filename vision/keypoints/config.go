package keypoints

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	nftutils "go.viam.com/nftrack/utils"
)

// DetectorConfig contains the parameters of the DoG detector.
type DetectorConfig struct {
	NumBucketsX                    int     `json:"num_buckets_x"`
	NumBucketsY                    int     `json:"num_buckets_y"`
	FindOrientation                bool    `json:"find_orientation"`
	LaplacianThreshold             float64 `json:"laplacian_threshold"`
	EdgeThreshold                  float64 `json:"edge_threshold"`
	MaxSubpixelDistanceSqr         float64 `json:"max_subpixel_distance_sqr"`
	MaxNumFeaturePoints            int     `json:"max_num_feature_points"`
	NumOrientationBins             int     `json:"num_orientation_bins"`
	OrientationGaussianExpansion   float64 `json:"orientation_gaussian_expansion"`
	OrientationSupportExpansion    float64 `json:"orientation_support_expansion"`
	OrientationSmoothingIterations int     `json:"orientation_smoothing_iterations"`
	OrientationPeakThreshold       float64 `json:"orientation_peak_threshold"`
	MaxOrientationsPerPoint        int     `json:"max_orientations_per_point"`
	// MinCoarseSize is the smallest side allowed for the coarsest octave.
	MinCoarseSize int `json:"min_coarse_size"`
}

// DefaultDetectorConfig returns the detector defaults.
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		NumBucketsX:                    10,
		NumBucketsY:                    10,
		FindOrientation:                true,
		LaplacianThreshold:             0,
		EdgeThreshold:                  10,
		MaxSubpixelDistanceSqr:         9,
		MaxNumFeaturePoints:            5000,
		NumOrientationBins:             36,
		OrientationGaussianExpansion:   3,
		OrientationSupportExpansion:    1.5,
		OrientationSmoothingIterations: 5,
		OrientationPeakThreshold:       0.8,
		MaxOrientationsPerPoint:        36,
		MinCoarseSize:                  8,
	}
}

// Validate ensures all parts of the DetectorConfig are valid.
func (config *DetectorConfig) Validate(path string) error {
	var errs error
	if config.NumBucketsX < 1 || config.NumBucketsY < 1 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("num_buckets_x and num_buckets_y should be >= 1")))
	}
	if config.LaplacianThreshold < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("laplacian_threshold should be >= 0")))
	}
	if config.EdgeThreshold <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("edge_threshold should be > 0")))
	}
	if config.MaxSubpixelDistanceSqr <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("max_subpixel_distance_sqr should be > 0")))
	}
	if config.MaxNumFeaturePoints < config.NumBucketsX*config.NumBucketsY {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Errorf("max_num_feature_points should be at least num_buckets_x*num_buckets_y (%d)", config.NumBucketsX*config.NumBucketsY)))
	}
	if config.FindOrientation {
		if config.NumOrientationBins < 3 {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("num_orientation_bins should be >= 3")))
		}
		if config.OrientationGaussianExpansion <= 0 || config.OrientationSupportExpansion <= 0 {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path,
				errors.New("orientation_gaussian_expansion and orientation_support_expansion should be > 0")))
		}
		if config.OrientationSmoothingIterations < 0 {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("orientation_smoothing_iterations should be >= 0")))
		}
		if config.OrientationPeakThreshold < 0 || config.OrientationPeakThreshold > 1 {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("orientation_peak_threshold should be in [0, 1]")))
		}
		if config.MaxOrientationsPerPoint < 1 {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("max_orientations_per_point should be >= 1")))
		}
	}
	if config.MinCoarseSize < 5 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("min_coarse_size should be >= 5")))
	}
	return errs
}

// FREAKConfig contains the parameters of the FREAK extractor.
type FREAKConfig struct {
	ExpansionFactor  float64 `json:"expansion_factor"`
	BilinearSampling bool    `json:"bilinear_sampling"`
}

// DefaultFREAKConfig returns the extractor defaults.
func DefaultFREAKConfig() *FREAKConfig {
	return &FREAKConfig{ExpansionFactor: 7, BilinearSampling: true}
}

// Validate ensures all parts of the FREAKConfig are valid.
func (config *FREAKConfig) Validate(path string) error {
	if config.ExpansionFactor <= 0 {
		return utils.NewConfigValidationError(path, errors.New("expansion_factor should be > 0"))
	}
	return nil
}

// FeatureExtractorConfig groups the detector and descriptor parameters used to turn an image into a
// BinaryFeatureStore.
type FeatureExtractorConfig struct {
	Detector *DetectorConfig `json:"detector"`
	FREAK    *FREAKConfig    `json:"freak"`
}

// DefaultFeatureExtractorConfig returns the extraction defaults.
func DefaultFeatureExtractorConfig() *FeatureExtractorConfig {
	return &FeatureExtractorConfig{
		Detector: DefaultDetectorConfig(),
		FREAK:    DefaultFREAKConfig(),
	}
}

// Validate ensures all parts of the FeatureExtractorConfig are valid.
func (config *FeatureExtractorConfig) Validate(path string) error {
	if config.Detector == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "detector")
	}
	if config.FREAK == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "freak")
	}
	return multierr.Combine(
		config.Detector.Validate(path+".detector"),
		config.FREAK.Validate(path+".freak"),
	)
}

// LoadFeatureExtractorConfig loads a FeatureExtractorConfig from a json file. Fields missing from the
// file keep their default values.
func LoadFeatureExtractorConfig(file string) (*FeatureExtractorConfig, error) {
	config := DefaultFeatureExtractorConfig()
	if err := nftutils.LoadJSONFile(file, config); err != nil {
		return nil, err
	}
	if err := config.Validate(file); err != nil {
		return nil, err
	}
	return config, nil
}

// FREAKMatchingConfig contains the parameters of the descriptor matchers.
type FREAKMatchingConfig struct {
	// RatioThreshold accepts a best match when best/second best <= RatioThreshold.
	RatioThreshold float64 `json:"ratio_threshold"`
	// SpatialThreshold bounds the pixel distance between mutual matches. Zero disables it.
	SpatialThreshold float64 `json:"spatial_threshold"`
	// SpatialThresholdReverse is used when mapping store 2 back onto store 1. Zero means SpatialThreshold.
	SpatialThresholdReverse float64 `json:"spatial_threshold_reverse"`
}

// DefaultFREAKMatchingConfig returns the matching defaults.
func DefaultFREAKMatchingConfig() *FREAKMatchingConfig {
	return &FREAKMatchingConfig{RatioThreshold: 0.7}
}

// Validate ensures all parts of the FREAKMatchingConfig are valid.
func (config *FREAKMatchingConfig) Validate(path string) error {
	var errs error
	if config.RatioThreshold <= 0 || config.RatioThreshold > 1 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("ratio_threshold should be in (0, 1]")))
	}
	if config.SpatialThreshold < 0 || config.SpatialThresholdReverse < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("spatial thresholds should be >= 0")))
	}
	return errs
}

func (config *FREAKMatchingConfig) reverseThreshold() float64 {
	if config.SpatialThresholdReverse > 0 {
		return config.SpatialThresholdReverse
	}
	return config.SpatialThreshold
}
