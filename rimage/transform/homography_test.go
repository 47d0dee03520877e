package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestNewHomography(t *testing.T) {
	_, err := NewHomography([]float64{})
	test.That(t, err, test.ShouldBeError, errors.New("input to NewHomography must have length of 9. Has length of 0"))

	vals := []float64{
		2.32700501e-01, -8.33535395e-03, -3.61894025e+01,
		-1.90671303e-03, 2.35303232e-01, 8.38582614e+00,
		-6.39101664e-05, -4.64582754e-05, 1.00000000e+00,
	}
	h, err := NewHomography(vals)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.At(0, 2), test.ShouldEqual, -3.61894025e+01)
	test.That(t, h.At(2, 1), test.ShouldEqual, -4.64582754e-05)
}

func TestHomographyApply(t *testing.T) {
	id := NewIdentityHomography()
	test.That(t, id.Apply(r2.Point{X: 3, Y: -4}), test.ShouldResemble, r2.Point{X: 3, Y: -4})

	sim := NewSimilarityHomography(2, math.Pi/2, 10, 20)
	p := sim.Apply(r2.Point{X: 1, Y: 0})
	test.That(t, p.X, test.ShouldAlmostEqual, 10.)
	test.That(t, p.Y, test.ShouldAlmostEqual, 22.)

	// the projective coordinate is divided out
	scaled := &Homography{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
	p = scaled.Apply(r2.Point{X: 5, Y: 7})
	test.That(t, p.X, test.ShouldAlmostEqual, 5.)
	test.That(t, p.Y, test.ShouldAlmostEqual, 7.)
}

func TestHomographyInverse(t *testing.T) {
	h, err := NewHomography([]float64{1.2, 0.1, 5, -0.05, 0.9, -3, 1e-4, 2e-4, 1})
	test.That(t, err, test.ShouldBeNil)
	inv, err := h.Inverse(0)
	test.That(t, err, test.ShouldBeNil)
	for _, pt := range []r2.Point{{X: 0, Y: 0}, {X: 100, Y: 30}, {X: -20, Y: 250}} {
		back := inv.Apply(h.Apply(pt))
		test.That(t, back.X, test.ShouldAlmostEqual, pt.X, 1e-6)
		test.That(t, back.Y, test.ShouldAlmostEqual, pt.Y, 1e-6)
	}

	singular := &Homography{{1, 2, 3}, {2, 4, 6}, {0, 0, 1}}
	test.That(t, singular.Determinant(), test.ShouldAlmostEqual, 0.)
	_, err = singular.Inverse(1e-5)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestQuadrilateralGeometry(t *testing.T) {
	p0 := r2.Point{X: 0, Y: 0}
	p1 := r2.Point{X: 4, Y: 0}
	p2 := r2.Point{X: 4, Y: 2}
	p3 := r2.Point{X: 0, Y: 2}
	test.That(t, LinePointSide(p0, p1, p2), test.ShouldEqual, 8.)
	test.That(t, QuadrilateralConvex(p0, p1, p2, p3), test.ShouldBeTrue)
	test.That(t, QuadrilateralConvex(p3, p2, p1, p0), test.ShouldBeTrue)
	test.That(t, SmallestTriangleArea(p0, p1, p2, p3), test.ShouldAlmostEqual, 4.)

	// a bow tie is not convex
	test.That(t, QuadrilateralConvex(p0, p2, p1, p3), test.ShouldBeFalse)
	// collapsing one corner onto another gives a zero area triangle
	test.That(t, SmallestTriangleArea(p0, p1, p1, p3), test.ShouldAlmostEqual, 0.)
}
