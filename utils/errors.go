package utils

import (
	"github.com/pkg/errors"
)

// NewImageSizeMismatchError is used when an image does not have the dimensions a buffer was allocated for.
func NewImageSizeMismatchError(expectedWidth, expectedHeight, width, height int) error {
	return errors.Errorf("image size (%d, %d) does not match the allocated size (%d, %d)",
		width, height, expectedWidth, expectedHeight)
}

// NewImageTooSmallError is used when an image is below the minimum size an operation needs.
func NewImageTooSmallError(width, height, minSize int) error {
	return errors.Errorf("image size (%d, %d) is smaller than the minimum of %dx%d", width, height, minSize, minSize)
}

// NewOutOfRangeError is used when an index falls outside [0, size).
func NewOutOfRangeError(what string, index, size int) error {
	return errors.Errorf("%s %d is out of range [0, %d)", what, index, size)
}
