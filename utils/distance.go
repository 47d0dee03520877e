package utils

import (
	"encoding/binary"

	"github.com/steakknife/hamming"
)

// HammingDistance computes the number of differing bits between two binary codes of the same length.
// Codes are compared eight bytes at a time; trailing bytes are compared one by one.
func HammingDistance(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	distance := 0
	i := 0
	for ; i+8 <= n; i += 8 {
		distance += hamming.CountBitsUint64(binary.LittleEndian.Uint64(a[i:]) ^ binary.LittleEndian.Uint64(b[i:]))
	}
	for ; i < n; i++ {
		distance += hamming.CountBitsByte(a[i] ^ b[i])
	}
	return distance
}

// SquaredDistance returns the squared euclidean distance between (x1, y1) and (x2, y2).
func SquaredDistance(x1, y1, x2, y2 float64) float64 {
	return Square(x1-x2) + Square(y1-y2)
}
