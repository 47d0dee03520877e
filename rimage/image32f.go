package rimage

import (
	"image"
	"image/color"
	"math"
)

// Image32f is a single channel float image stored row major.
type Image32f struct {
	width, height int
	Data          []float32
}

// NewImage32f returns a zeroed image with the given dimensions.
func NewImage32f(width, height int) *Image32f {
	return &Image32f{
		width:  width,
		height: height,
		Data:   make([]float32, width*height),
	}
}

// Image32fFromGray converts an 8-bit gray image into a float image with the same values.
func Image32fFromGray(gray *image.Gray) *Image32f {
	b := gray.Bounds()
	out := NewImage32f(b.Dx(), b.Dy())
	for y := 0; y < out.height; y++ {
		start := gray.PixOffset(b.Min.X, b.Min.Y+y)
		src := gray.Pix[start : start+out.width]
		dst := out.Row(y)
		for x, v := range src {
			dst[x] = float32(v)
		}
	}
	return out
}

// Width returns the width of the image.
func (i *Image32f) Width() int {
	return i.width
}

// Height returns the height of the image.
func (i *Image32f) Height() int {
	return i.height
}

// Bounds returns the rectangle covering the image.
func (i *Image32f) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.width, i.height)
}

// In reports whether (x, y) is a valid pixel.
func (i *Image32f) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.width && y < i.height
}

func (i *Image32f) kxy(x, y int) int {
	return (y * i.width) + x
}

// At returns the value at (x, y).
func (i *Image32f) At(x, y int) float32 {
	return i.Data[i.kxy(x, y)]
}

// Set sets the value at (x, y).
func (i *Image32f) Set(x, y int, v float32) {
	i.Data[i.kxy(x, y)] = v
}

// Row returns the backing slice of row y.
func (i *Image32f) Row(y int) []float32 {
	start := y * i.width
	return i.Data[start : start+i.width]
}

// CopyFrom copies src into the image. Both must have the same size.
func (i *Image32f) CopyFrom(src *Image32f) {
	copy(i.Data, src.Data)
}

// BilinearInterpolation samples the image at a fractional location. The location must lie in
// [0, width-1] x [0, height-1].
func (i *Image32f) BilinearInterpolation(x, y float64) float64 {
	xp := int(math.Floor(x))
	yp := int(math.Floor(y))
	xp1 := xp + 1
	yp1 := yp + 1
	// The +1 neighbour has zero weight on the last row/column.
	if xp1 >= i.width {
		xp1 = i.width - 1
	}
	if yp1 >= i.height {
		yp1 = i.height - 1
	}

	w0 := (float64(xp+1) - x) * (float64(yp+1) - y)
	w1 := (x - float64(xp)) * (float64(yp+1) - y)
	w2 := (float64(xp+1) - x) * (y - float64(yp))
	w3 := (x - float64(xp)) * (y - float64(yp))

	p0 := i.Row(yp)
	p1 := i.Row(yp1)
	return w0*float64(p0[xp]) + w1*float64(p0[xp1]) + w2*float64(p1[xp]) + w3*float64(p1[xp1])
}

// NearestNeighbor samples the pixel closest to a fractional location.
func (i *Image32f) NearestNeighbor(x, y float64) float64 {
	return float64(i.At(int(x+0.5), int(y+0.5)))
}

// ToGray converts the image to 8-bit gray, clamping values to [0, 255].
func (i *Image32f) ToGray() *image.Gray {
	out := image.NewGray(i.Bounds())
	for y := 0; y < i.height; y++ {
		for x, v := range i.Row(y) {
			out.SetGray(x, y, color.Gray{Y: uint8(math.Max(0, math.Min(255, math.Round(float64(v)))))})
		}
	}
	return out
}
