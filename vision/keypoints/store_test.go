package keypoints

import (
	"testing"

	"go.viam.com/test"
)

func TestBinaryFeatureStore(t *testing.T) {
	s := NewBinaryFeatureStore(4)
	test.That(t, s.Size(), test.ShouldEqual, 0)
	test.That(t, s.BytesPerFeature(), test.ShouldEqual, 4)

	s.Resize(2)
	test.That(t, s.Size(), test.ShouldEqual, 2)
	test.That(t, s.Features(), test.ShouldHaveLength, 8)
	copy(s.Feature(0), []byte{0xFF, 0, 0, 0})
	copy(s.Feature(1), []byte{0x0F, 0xF0, 1, 2})
	s.SetPoint(0, FeaturePoint{X: 1, Y: 2, Maxima: true})
	s.SetPoint(1, FeaturePoint{X: 3, Y: 4})
	test.That(t, s.Point(1).Pt().X, test.ShouldEqual, 3.)
	test.That(t, s.Distance(0, s, 1), test.ShouldEqual, 4+4+1+1)
	test.That(t, s.Distance(1, s, 1), test.ShouldEqual, 0)

	s.Resize(1)
	test.That(t, s.Size(), test.ShouldEqual, 1)
	test.That(t, s.Feature(0), test.ShouldResemble, []byte{0xFF, 0, 0, 0})
	test.That(t, s.Point(0).Maxima, test.ShouldBeTrue)

	// growing again zero fills what shrinking dropped
	s.Resize(3)
	test.That(t, s.Size(), test.ShouldEqual, 3)
	test.That(t, s.Feature(0), test.ShouldResemble, []byte{0xFF, 0, 0, 0})
	test.That(t, s.Feature(1), test.ShouldResemble, []byte{0, 0, 0, 0})
	test.That(t, s.Feature(2), test.ShouldResemble, []byte{0, 0, 0, 0})
	test.That(t, s.Point(1), test.ShouldResemble, FeaturePoint{})

	s.Resize(-1)
	test.That(t, s.Size(), test.ShouldEqual, 0)
	test.That(t, s.Features(), test.ShouldBeEmpty)
	test.That(t, s.Points(), test.ShouldBeEmpty)

	other := NewBinaryFeatureStore(4)
	other.Resize(1)
	copy(other.Feature(0), []byte{0, 0, 0, 0x80})
	s.Resize(1)
	copy(s.Feature(0), []byte{0, 0, 0, 0x81})
	test.That(t, s.Distance(0, other, 0), test.ShouldEqual, 1)
}
