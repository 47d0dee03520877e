// Package keypoints contains the detection, description and matching of natural image features:
// - DoG scale space extrema with sub-pixel refinement and orientation
// - FREAK binary descriptors
// - ratio test and mutual nearest neighbour matchers
package keypoints

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"

	"go.viam.com/nftrack/rimage"
)

var (
	maximaColor  = color.RGBA{R: 255, G: 64, B: 64, A: 255}
	minimaColor  = color.RGBA{R: 64, G: 128, B: 255, A: 255}
	matchColor   = color.RGBA{R: 0, G: 220, B: 0, A: 200}
	labelColor   = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	outlineColor = color.RGBA{R: 255, G: 160, B: 0, A: 255}
)

func drawFeaturePoints(dc *gg.Context, points []FeaturePoint, dx float64) {
	for _, p := range points {
		c := minimaColor
		if p.Maxima {
			c = maximaColor
		}
		center := p.Pt()
		center.X += dx
		rimage.DrawOrientedCircle(dc, center, 3*p.Scale, p.Angle, c, 1)
	}
}

// PlotFeaturePoints draws every point on img as a circle of radius 3*scale with a spoke along its angle,
// red for maxima and blue for minima, and saves the result as a png.
func PlotFeaturePoints(img image.Image, points []FeaturePoint, outName string) error {
	b := img.Bounds()
	dc := gg.NewContext(b.Dx(), b.Dy())
	dc.DrawImage(img, -b.Min.X, -b.Min.Y)
	drawFeaturePoints(dc, points, 0)
	rimage.DrawString(dc, fmt.Sprintf("%d features", len(points)), image.Point{X: 4, Y: 4}, labelColor, 12)
	return dc.SavePNG(outName)
}

// PlotMatches draws img1 and img2 side by side with their feature points and a line per match, and
// saves the result as a png. The img2 panel is outlined.
func PlotMatches(img1, img2 image.Image, s1, s2 *BinaryFeatureStore, matches DescriptorMatches, outName string) error {
	pts1, pts2, err := MatchedPoints(s1, s2, matches)
	if err != nil {
		return err
	}
	b1, b2 := img1.Bounds(), img2.Bounds()
	h := b1.Dy()
	if b2.Dy() > h {
		h = b2.Dy()
	}
	dc := gg.NewContext(b1.Dx()+b2.Dx(), h)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.DrawImage(img1, -b1.Min.X, -b1.Min.Y)
	dc.DrawImage(img2, b1.Dx()-b2.Min.X, -b2.Min.Y)

	offset := float64(b1.Dx())
	w2, h2 := float64(b2.Dx()), float64(b2.Dy())
	rimage.DrawPolygon(dc, []r2.Point{
		{X: offset + 0.5, Y: 0.5},
		{X: offset + w2 - 0.5, Y: 0.5},
		{X: offset + w2 - 0.5, Y: h2 - 0.5},
		{X: offset + 0.5, Y: h2 - 0.5},
	}, outlineColor, 2)
	drawFeaturePoints(dc, s1.Points(), 0)
	drawFeaturePoints(dc, s2.Points(), offset)

	dc.SetColor(matchColor)
	dc.SetLineWidth(1)
	for i := range pts1 {
		dc.DrawLine(pts1[i].X, pts1[i].Y, pts2[i].X+offset, pts2[i].Y)
		dc.Stroke()
	}
	rimage.DrawString(dc, fmt.Sprintf("%d matches", len(matches)), image.Point{X: 4, Y: 4}, labelColor, 12)
	return dc.SavePNG(outName)
}
