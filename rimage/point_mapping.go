package rimage

import "math"

// UpsamplePoint maps a point detected at octave n into level 0 coordinates. Pixel centers of
// octave n sit at x*2^n + 2^(n-1) - 0.5 in level 0.
func UpsamplePoint(x, y float64, octave int) (float64, float64) {
	a := math.Pow(2, float64(octave))
	b := 0.5*a - 0.5
	return x*a + b, y*a + b
}

// DownsamplePoint is the inverse of UpsamplePoint.
func DownsamplePoint(x, y float64, octave int) (float64, float64) {
	a := 1 / math.Pow(2, float64(octave))
	b := 0.5*a - 0.5
	return x*a + b, y*a + b
}

// UpsampleScale maps a scale at octave n into level 0.
func UpsampleScale(s float64, octave int) float64 {
	return s * math.Pow(2, float64(octave))
}

// DownsampleScale maps a level 0 scale to octave n.
func DownsampleScale(s float64, octave int) float64 {
	return s / math.Pow(2, float64(octave))
}

// UpsamplePointWithScale maps both a point and its scale from octave n into level 0.
func UpsamplePointWithScale(x, y, s float64, octave int) (float64, float64, float64) {
	xp, yp := UpsamplePoint(x, y, octave)
	return xp, yp, UpsampleScale(s, octave)
}

// DownsamplePointWithScale maps both a point and its scale from level 0 to octave n.
func DownsamplePointWithScale(x, y, s float64, octave int) (float64, float64, float64) {
	xp, yp := DownsamplePoint(x, y, octave)
	return xp, yp, DownsampleScale(s, octave)
}
