// Package recognition finds which of a set of reference images appears in a camera frame and the
// homography that maps it there.
package recognition

import (
	"image"

	"github.com/pkg/errors"

	"go.viam.com/nftrack/vision/keypoints"
	"go.viam.com/nftrack/vision/keypoints/index"
)

// Keyframe is a described image: its size, its features and, for reference images, an index over
// those features.
type Keyframe struct {
	Width  int
	Height int
	Store  *keypoints.BinaryFeatureStore
	Index  *index.BinaryHierarchicalClustering
}

// DefaultKeyframeIndexConfig returns the index parameters used for reference keyframes. Reference
// images are indexed once, so the clustering tries many more hypotheses than the index default.
func DefaultKeyframeIndexConfig() *index.Config {
	cfg := index.DefaultConfig()
	cfg.NumHypotheses = 128
	return cfg
}

// NewKeyframe describes img with fe. The keyframe has no index until BuildIndex is called.
func NewKeyframe(fe *keypoints.FeatureExtractor, img *image.Gray) (*Keyframe, error) {
	if img == nil {
		return nil, errors.New("cannot build a keyframe from a nil image")
	}
	store, err := fe.Extract(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &Keyframe{Width: b.Dx(), Height: b.Dy(), Store: store}, nil
}

// BuildIndex clusters the keyframe's descriptors. A nil config uses DefaultKeyframeIndexConfig.
func (kf *Keyframe) BuildIndex(cfg *index.Config) error {
	if kf.Store == nil {
		return errors.New("keyframe has no feature store")
	}
	if cfg == nil {
		cfg = DefaultKeyframeIndexConfig()
	}
	idx, err := index.New(cfg)
	if err != nil {
		return err
	}
	if err := idx.Build(kf.Store.Features(), kf.Store.BytesPerFeature(), kf.Store.Size()); err != nil {
		return errors.Wrap(err, "cannot build keyframe index")
	}
	kf.Index = idx
	return nil
}

// Points returns the feature points of the keyframe.
func (kf *Keyframe) Points() []keypoints.FeaturePoint {
	if kf.Store == nil {
		return nil
	}
	return kf.Store.Points()
}
