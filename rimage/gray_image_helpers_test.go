package rimage

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestMakeGray(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 3))
	rgba.Set(1, 2, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	gray := MakeGray(rgba)
	test.That(t, gray.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 3))
	test.That(t, gray.GrayAt(1, 2).Y, test.ShouldEqual, uint8(255))
	test.That(t, gray.GrayAt(0, 0).Y, test.ShouldEqual, uint8(0))

	// already gray at the origin: no copy
	test.That(t, MakeGray(gray), test.ShouldEqual, gray)

	big := image.NewGray(image.Rect(0, 0, 10, 10))
	big.SetGray(5, 6, color.Gray{Y: 77})
	sub := MakeGray(big.SubImage(image.Rect(4, 4, 8, 9)))
	test.That(t, sub.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 5))
	test.That(t, sub.GrayAt(1, 2).Y, test.ShouldEqual, uint8(77))

	test.That(t, SameImgSize(sub, image.NewRGBA(image.Rect(3, 3, 7, 8))), test.ShouldBeTrue)
	test.That(t, SameImgSize(sub, gray), test.ShouldBeFalse)
}

func TestGrayImageFiles(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 6)})
		}
	}
	path := filepath.Join(t.TempDir(), "ramp.png")
	test.That(t, WriteImageToFile(path, img), test.ShouldBeNil)

	loaded, err := ReadGrayImageFromFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Bounds(), test.ShouldResemble, img.Bounds())
	test.That(t, loaded.Pix, test.ShouldResemble, img.Pix)

	_, err = ReadGrayImageFromFile(filepath.Join(t.TempDir(), "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, WriteImageToFile(filepath.Join(t.TempDir(), "ramp.unknown"), img), test.ShouldNotBeNil)

	test.That(t, ShrinkToFit(img, 0), test.ShouldEqual, img)
	test.That(t, ShrinkToFit(img, 40), test.ShouldEqual, img)
	small := ShrinkToFit(img, 10)
	test.That(t, small.Bounds().Dx(), test.ShouldEqual, 10)
	test.That(t, small.Bounds().Dy(), test.ShouldEqual, 5)
}
