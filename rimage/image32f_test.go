package rimage

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestBilinearInterpolation(t *testing.T) {
	img := rampImage(5, 4, func(x, y int) float32 { return float32(x + 10*y) })
	test.That(t, img.BilinearInterpolation(1.5, 2.25), test.ShouldAlmostEqual, 24.)
	test.That(t, img.BilinearInterpolation(2, 1), test.ShouldAlmostEqual, 12.)
	// exact samples on the last row and column
	test.That(t, img.BilinearInterpolation(4, 3), test.ShouldAlmostEqual, 34.)
	test.That(t, img.BilinearInterpolation(4, 1.5), test.ShouldAlmostEqual, 19.)
	test.That(t, img.NearestNeighbor(1.4, 2.6), test.ShouldAlmostEqual, 31.)
}

func TestImage32fGrayRoundTrip(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 7, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 7; x++ {
			gray.SetGray(x, y, color.Gray{Y: uint8(x*30 + y)})
		}
	}
	img := Image32fFromGray(gray)
	test.That(t, img.Width(), test.ShouldEqual, 7)
	test.That(t, img.Height(), test.ShouldEqual, 3)
	test.That(t, img.At(4, 2), test.ShouldEqual, float32(122))
	test.That(t, img.In(6, 2), test.ShouldBeTrue)
	test.That(t, img.In(7, 2), test.ShouldBeFalse)
	test.That(t, img.ToGray().Pix, test.ShouldResemble, gray.Pix)

	// sub images keep their own origin
	sub := gray.SubImage(image.Rect(2, 1, 5, 3)).(*image.Gray)
	subImg := Image32fFromGray(sub)
	test.That(t, subImg.Width(), test.ShouldEqual, 3)
	test.That(t, subImg.At(0, 0), test.ShouldEqual, float32(61))
	test.That(t, MakeGray(sub).GrayAt(0, 0).Y, test.ShouldEqual, uint8(61))
}
