// Package transform holds the planar projective transforms used to relate a reference image to a camera frame.
package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 matrix (represented as a 2D array) used to transform a plane from the perspective of a 2D
// camera to the perspective of another 2D camera. Indices are [row][column]. The last entry is not assumed
// to be 1.
type Homography [3][3]float64

// NewHomography creates a homography from a slice of 9 row major values.
func NewHomography(vals []float64) (*Homography, error) {
	if len(vals) != 9 {
		return nil, errors.Errorf("input to NewHomography must have length of 9. Has length of %d", len(vals))
	}
	var h Homography
	for i, v := range vals {
		h[i/3][i%3] = v
	}
	return &h, nil
}

// NewIdentityHomography returns the homography that maps every point to itself.
func NewIdentityHomography() *Homography {
	return &Homography{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// NewSimilarityHomography returns the homography that scales and rotates about the origin, then translates.
func NewSimilarityHomography(scale, angle, tx, ty float64) *Homography {
	c := scale * math.Cos(angle)
	s := scale * math.Sin(angle)
	return &Homography{{c, -s, tx}, {s, c, ty}, {0, 0, 1}}
}

// At returns the entry at (row, col).
func (h *Homography) At(row, col int) float64 {
	return h[row][col]
}

// Apply maps pt through the homography, dividing by the projective coordinate.
func (h *Homography) Apply(pt r2.Point) r2.Point {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	z := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	return r2.Point{X: x / z, Y: y / z}
}

// ToDense returns the homography as a gonum matrix.
func (h *Homography) ToDense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		h[0][0], h[0][1], h[0][2],
		h[1][0], h[1][1], h[1][2],
		h[2][0], h[2][1], h[2][2],
	})
}

// Determinant returns the determinant of the homography.
func (h *Homography) Determinant() float64 {
	return mat.Det(h.ToDense())
}

// Inverse returns the inverse homography. It fails if |det| <= threshold.
func (h *Homography) Inverse(threshold float64) (*Homography, error) {
	m := h.ToDense()
	if det := mat.Det(m); math.Abs(det) <= threshold {
		return nil, errors.Errorf("homography is singular (det = %g)", det)
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, errors.Wrap(err, "cannot invert homography")
	}
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r][c] = inv.At(r, c)
		}
	}
	return &out, nil
}

// LinePointSide returns the cross product (b-a) x (c-a), positive when c is to the left of a->b.
func LinePointSide(a, b, c r2.Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// QuadrilateralConvex reports whether the quadrilateral p0 p1 p2 p3 turns the same way at every corner.
func QuadrilateralConvex(p0, p1, p2, p3 r2.Point) bool {
	side := func(a, b, c r2.Point) int {
		if LinePointSide(a, b, c) > 0 {
			return 1
		}
		return -1
	}
	s := side(p0, p1, p2) + side(p1, p2, p3) + side(p2, p3, p0) + side(p3, p0, p1)
	return s == 4 || s == -4
}

// SmallestTriangleArea returns the smallest area of the four triangles formed by the corners
// of the quadrilateral p0 p1 p2 p3.
func SmallestTriangleArea(p0, p1, p2, p3 r2.Point) float64 {
	area := func(u, v r2.Point) float64 {
		return math.Abs(u.Cross(v)) * 0.5
	}
	v01 := p1.Sub(p0)
	v02 := p2.Sub(p0)
	v03 := p3.Sub(p0)
	v21 := p1.Sub(p2)
	v23 := p3.Sub(p2)
	return math.Min(math.Min(area(v01, v02), area(v02, v03)), math.Min(area(v01, v03), area(v21, v23)))
}
