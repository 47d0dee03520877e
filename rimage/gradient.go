package rimage

import (
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/nftrack/utils"
)

// Vec2D represents the gradient of an image at a point in polar form.
type Vec2D struct {
	magnitude float64
	direction float64
}

// NewVec2D creates a gradient from its magnitude and direction.
func NewVec2D(m, d float64) Vec2D {
	return Vec2D{m, d}
}

// Magnitude returns the magnitude of the gradient.
func (g Vec2D) Magnitude() float64 {
	return g.magnitude
}

// Direction returns the direction of the gradient in radians, in [0, 2π].
func (g Vec2D) Direction() float64 {
	return g.direction
}

// VectorField2D stores the polar gradient of every pixel of an image.
type VectorField2D struct {
	width  int
	height int

	data         []Vec2D
	maxMagnitude float64
}

// Width returns the width of the field.
func (vf *VectorField2D) Width() int {
	return vf.width
}

// Height returns the height of the field.
func (vf *VectorField2D) Height() int {
	return vf.height
}

// MaxMagnitude returns the largest gradient magnitude in the field.
func (vf *VectorField2D) MaxMagnitude() float64 {
	return vf.maxMagnitude
}

// Get returns the gradient at p.
func (vf *VectorField2D) Get(p image.Point) Vec2D {
	return vf.data[p.Y*vf.width+p.X]
}

// GetVec2D returns the gradient at (x, y).
func (vf *VectorField2D) GetVec2D(x, y int) Vec2D {
	return vf.data[y*vf.width+x]
}

// ComputePolarGradients computes the gradient of every pixel with central differences, falling back to
// one sided differences on the border. The direction is atan2(dy, dx)+π so it lies in [0, 2π].
func ComputePolarGradients(img *Image32f) *VectorField2D {
	w, h := img.Width(), img.Height()
	vf := &VectorField2D{width: w, height: h, data: make([]Vec2D, w*h)}
	rowMax := make([]float64, h)
	utils.ParallelForEachRow(h, func(y int) {
		pm1 := img.Row(clampIndex(y-1, h))
		p := img.Row(y)
		pp1 := img.Row(clampIndex(y+1, h))
		out := vf.data[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			dx := float64(p[clampIndex(x+1, w)] - p[clampIndex(x-1, w)])
			dy := float64(pp1[x] - pm1[x])
			mag := math.Sqrt(dx*dx + dy*dy)
			out[x] = Vec2D{magnitude: mag, direction: math.Atan2(dy, dx) + math.Pi}
			if mag > rowMax[y] {
				rowMax[y] = mag
			}
		}
	})
	for _, m := range rowMax {
		vf.maxMagnitude = math.Max(vf.maxMagnitude, m)
	}
	return vf
}

// MagnitudeField returns all the magnitudes of the gradient as a mat.Dense.
func (vf *VectorField2D) MagnitudeField() *mat.Dense {
	mag := make([]float64, 0, vf.width*vf.height)
	for _, g := range vf.data {
		mag = append(mag, g.magnitude)
	}
	return mat.NewDense(vf.height, vf.width, mag)
}

// DirectionField returns all the directions of the gradient as a mat.Dense.
func (vf *VectorField2D) DirectionField() *mat.Dense {
	dir := make([]float64, 0, vf.width*vf.height)
	for _, g := range vf.data {
		dir = append(dir, g.direction)
	}
	return mat.NewDense(vf.height, vf.width, dir)
}

// MagnitudePicture creates a picture of the gradient magnitudes scaled to the largest one.
func (vf *VectorField2D) MagnitudePicture() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, vf.width, vf.height))
	if vf.maxMagnitude == 0 {
		return img
	}
	for y := 0; y < vf.height; y++ {
		for x := 0; x < vf.width; x++ {
			val := uint8((vf.GetVec2D(x, y).Magnitude() / vf.maxMagnitude) * 255)
			img.SetGray(x, y, color.Gray{Y: val})
		}
	}
	return img
}
