package rimage

import (
	"image/color"
	"testing"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestDrawPolygon(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	dc := gg.NewContext(20, 20)
	DrawPolygon(dc, []r2.Point{{X: 2.5, Y: 2.5}, {X: 17.5, Y: 2.5}, {X: 17.5, Y: 17.5}, {X: 2.5, Y: 17.5}}, red, 1)

	r, g, b, a := dc.Image().At(10, 2).RGBA()
	test.That(t, []uint32{r >> 8, g >> 8, b >> 8, a >> 8}, test.ShouldResemble, []uint32{255, 0, 0, 255})
	// the closing edge is drawn too
	r, _, _, _ = dc.Image().At(2, 10).RGBA()
	test.That(t, r>>8, test.ShouldEqual, uint32(255))
	_, _, _, a = dc.Image().At(10, 10).RGBA()
	test.That(t, a, test.ShouldEqual, uint32(0))

	empty := gg.NewContext(5, 5)
	DrawPolygon(empty, []r2.Point{{X: 1, Y: 1}}, red, 1)
	_, _, _, a = empty.Image().At(1, 1).RGBA()
	test.That(t, a, test.ShouldEqual, uint32(0))
}
