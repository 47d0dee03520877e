package keypoints

import (
	"github.com/golang/geo/r2"

	"go.viam.com/nftrack/utils"
)

// FeaturePoint is a detected point in level 0 image coordinates together with its dominant orientation
// and blur scale. Maxima is true when the DoG response was positive.
type FeaturePoint struct {
	X      float64
	Y      float64
	Angle  float64
	Scale  float64
	Maxima bool
}

// Pt returns the location of the point.
func (p FeaturePoint) Pt() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// BinaryFeatureStore holds fixed size binary descriptors and the points they describe. Feature i occupies
// bytes [i*BytesPerFeature, (i+1)*BytesPerFeature) of the flat buffer.
type BinaryFeatureStore struct {
	bytesPerFeature int
	features        []byte
	points          []FeaturePoint
}

// NewBinaryFeatureStore returns an empty store of descriptors of the given width.
func NewBinaryFeatureStore(bytesPerFeature int) *BinaryFeatureStore {
	return &BinaryFeatureStore{bytesPerFeature: bytesPerFeature}
}

// Resize grows or shrinks both the descriptor buffer and the point list to n features. Shrinking keeps
// the first n features. Growing zero fills the new entries.
func (s *BinaryFeatureStore) Resize(n int) {
	if n < 0 {
		n = 0
	}
	numBytes := n * s.bytesPerFeature
	if numBytes <= cap(s.features) {
		old := len(s.features)
		s.features = s.features[:numBytes]
		if numBytes > old {
			clear(s.features[old:])
		}
	} else {
		grown := make([]byte, numBytes)
		copy(grown, s.features)
		s.features = grown
	}
	if n <= cap(s.points) {
		old := len(s.points)
		s.points = s.points[:n]
		if n > old {
			clear(s.points[old:])
		}
	} else {
		grown := make([]FeaturePoint, n)
		copy(grown, s.points)
		s.points = grown
	}
}

// Size returns the number of features.
func (s *BinaryFeatureStore) Size() int {
	return len(s.points)
}

// BytesPerFeature returns the width of a descriptor in bytes.
func (s *BinaryFeatureStore) BytesPerFeature() int {
	return s.bytesPerFeature
}

// Feature returns the descriptor of feature i. The slice aliases the store.
func (s *BinaryFeatureStore) Feature(i int) []byte {
	return s.features[i*s.bytesPerFeature : (i+1)*s.bytesPerFeature]
}

// Point returns the point of feature i.
func (s *BinaryFeatureStore) Point(i int) FeaturePoint {
	return s.points[i]
}

// SetPoint replaces the point of feature i.
func (s *BinaryFeatureStore) SetPoint(i int, p FeaturePoint) {
	s.points[i] = p
}

// Points returns every point. The slice aliases the store.
func (s *BinaryFeatureStore) Points() []FeaturePoint {
	return s.points
}

// Features returns the flat descriptor buffer. The slice aliases the store.
func (s *BinaryFeatureStore) Features() []byte {
	return s.features
}

// Distance is the Hamming distance between feature i of s and feature j of other.
func (s *BinaryFeatureStore) Distance(i int, other *BinaryFeatureStore, j int) int {
	return utils.HammingDistance(s.Feature(i), other.Feature(j))
}
