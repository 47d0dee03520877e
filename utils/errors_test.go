package utils

import (
	"testing"

	"go.viam.com/test"
)

func TestImageErrors(t *testing.T) {
	err := NewImageSizeMismatchError(640, 480, 320, 240)
	test.That(t, err.Error(), test.ShouldEqual, "image size (320, 240) does not match the allocated size (640, 480)")

	err = NewImageTooSmallError(3, 9, 5)
	test.That(t, err.Error(), test.ShouldEqual, "image size (3, 9) is smaller than the minimum of 5x5")

	err = NewOutOfRangeError("octave", 7, 5)
	test.That(t, err.Error(), test.ShouldEqual, "octave 7 is out of range [0, 5)")
}
