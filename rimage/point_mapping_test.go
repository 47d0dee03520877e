package rimage

import (
	"testing"

	"go.viam.com/test"
)

func TestPointMapping(t *testing.T) {
	x, y := UpsamplePoint(10, 20, 0)
	test.That(t, x, test.ShouldAlmostEqual, 10.)
	test.That(t, y, test.ShouldAlmostEqual, 20.)

	// pixel 0 of octave 1 covers pixels 0 and 1 of octave 0
	x, y = UpsamplePoint(0, 3, 1)
	test.That(t, x, test.ShouldAlmostEqual, 0.5)
	test.That(t, y, test.ShouldAlmostEqual, 6.5)

	x, y = UpsamplePoint(1, 1, 2)
	test.That(t, x, test.ShouldAlmostEqual, 5.5)
	test.That(t, y, test.ShouldAlmostEqual, 5.5)

	x, y, s := UpsamplePointWithScale(2, 3, 1.5, 3)
	test.That(t, x, test.ShouldAlmostEqual, 19.5)
	test.That(t, y, test.ShouldAlmostEqual, 27.5)
	test.That(t, s, test.ShouldAlmostEqual, 12.)
}

func TestPointMappingRoundTrip(t *testing.T) {
	for octave := 0; octave < 6; octave++ {
		for _, pt := range [][2]float64{{0, 0}, {1.25, 7.5}, {-3.1, 100.9}, {511.75, 12.125}} {
			ux, uy, us := UpsamplePointWithScale(pt[0], pt[1], 1.7, octave)
			dx, dy, ds := DownsamplePointWithScale(ux, uy, us, octave)
			test.That(t, dx, test.ShouldAlmostEqual, pt[0], 1e-4)
			test.That(t, dy, test.ShouldAlmostEqual, pt[1], 1e-4)
			test.That(t, ds, test.ShouldAlmostEqual, 1.7, 1e-4)
		}
	}
}
