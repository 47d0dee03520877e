package rimage

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// SameImgSize compares images to see if they're the same size.
func SameImgSize(g1, g2 image.Image) bool {
	if (g1.Bounds().Dx() != g2.Bounds().Dx()) || (g1.Bounds().Dy() != g2.Bounds().Dy()) {
		return false
	}
	return true
}

// MakeGray converts any image to an image.Gray whose bounds start at the origin.
func MakeGray(pic image.Image) *image.Gray {
	if g, ok := pic.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := pic.Bounds()
	result := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(result, result.Bounds(), pic, b.Min, draw.Src)
	return result
}

// ReadGrayImageFromFile decodes an image file and converts it to gray.
func ReadGrayImageFromFile(path string) (*image.Gray, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read image %q", path)
	}
	return MakeGray(img), nil
}

// WriteImageToFile encodes img to path, picking the format from the extension.
func WriteImageToFile(path string, img image.Image) error {
	return errors.Wrapf(imaging.Save(img, path), "cannot write image %q", path)
}

// ShrinkToFit downscales img so that neither side exceeds maxSize, preserving the aspect ratio.
// Images that already fit, or a non-positive maxSize, are returned unchanged.
func ShrinkToFit(img *image.Gray, maxSize int) *image.Gray {
	b := img.Bounds()
	if maxSize <= 0 || (b.Dx() <= maxSize && b.Dy() <= maxSize) {
		return img
	}
	return MakeGray(resize.Thumbnail(uint(maxSize), uint(maxSize), img, resize.Bilinear))
}
