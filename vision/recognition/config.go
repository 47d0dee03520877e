package recognition

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	nftutils "go.viam.com/nftrack/utils"
	"go.viam.com/nftrack/vision/keypoints"
	"go.viam.com/nftrack/vision/keypoints/index"
)

// VisualDatabaseConfig contains the parameters of a VisualDatabase.
type VisualDatabaseConfig struct {
	Detector *keypoints.DetectorConfig      `json:"detector"`
	FREAK    *keypoints.FREAKConfig         `json:"freak"`
	Matching *keypoints.FREAKMatchingConfig `json:"matching"`
	Index    *index.Config                  `json:"index"`
	// UseFeatureIndex matches through the keyframe index instead of brute force.
	UseFeatureIndex           bool    `json:"use_feature_index"`
	MinNumInliers             int     `json:"min_num_inliers"`
	HomographyInlierThreshold float64 `json:"homography_inlier_threshold"`
	RematchSpatialThreshold   float64 `json:"rematch_spatial_threshold"`
}

// DefaultVisualDatabaseConfig returns the database defaults. The detector is stricter than the
// detector default and keeps fewer points.
func DefaultVisualDatabaseConfig() *VisualDatabaseConfig {
	det := keypoints.DefaultDetectorConfig()
	det.LaplacianThreshold = 3
	det.EdgeThreshold = 4
	det.MaxNumFeaturePoints = 500
	return &VisualDatabaseConfig{
		Detector:                  det,
		FREAK:                     keypoints.DefaultFREAKConfig(),
		Matching:                  keypoints.DefaultFREAKMatchingConfig(),
		Index:                     DefaultKeyframeIndexConfig(),
		UseFeatureIndex:           true,
		MinNumInliers:             8,
		HomographyInlierThreshold: 3,
		RematchSpatialThreshold:   10,
	}
}

// Validate ensures all parts of the VisualDatabaseConfig are valid.
func (config *VisualDatabaseConfig) Validate(path string) error {
	if config.Detector == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "detector")
	}
	if config.FREAK == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "freak")
	}
	if config.Matching == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "matching")
	}
	if config.Index == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "index")
	}
	errs := multierr.Combine(
		config.Detector.Validate(path+".detector"),
		config.FREAK.Validate(path+".freak"),
		config.Matching.Validate(path+".matching"),
		config.Index.Validate(path+".index"),
	)
	if config.MinNumInliers < 1 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("min_num_inliers should be >= 1")))
	}
	if config.HomographyInlierThreshold <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("homography_inlier_threshold should be > 0")))
	}
	if config.RematchSpatialThreshold <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("rematch_spatial_threshold should be > 0")))
	}
	return errs
}

// FeatureExtractorConfig returns the extraction part of the config.
func (config *VisualDatabaseConfig) FeatureExtractorConfig() *keypoints.FeatureExtractorConfig {
	return &keypoints.FeatureExtractorConfig{Detector: config.Detector, FREAK: config.FREAK}
}

// LoadVisualDatabaseConfig loads a VisualDatabaseConfig from a json file. Fields missing from the file
// keep their default values.
func LoadVisualDatabaseConfig(file string) (*VisualDatabaseConfig, error) {
	config := DefaultVisualDatabaseConfig()
	if err := nftutils.LoadJSONFile(file, config); err != nil {
		return nil, err
	}
	if err := config.Validate(file); err != nil {
		return nil, err
	}
	return config, nil
}
