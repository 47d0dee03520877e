package keypoints

import (
	"go.viam.com/nftrack/rimage"
)

// DetectedPoint is a DoG extremum as it moves through the detector stages. X and Y are level 0
// coordinates. Octave and Scale name the DoG level it was found on; SpScale is the refined scale.
type DetectedPoint struct {
	X         float64
	Y         float64
	Angle     float64
	Octave    int
	Scale     int
	SpScale   float64
	Score     float64
	Sigma     float64
	EdgeScore float64
}

// FeaturePoint converts the detected point to its stored form. The scale becomes the effective sigma and
// the sign of the response becomes the polarity.
func (p DetectedPoint) FeaturePoint() FeaturePoint {
	return FeaturePoint{X: p.X, Y: p.Y, Angle: p.Angle, Scale: p.Sigma, Maxima: p.Score > 0}
}

// isExtremum reports whether value is strictly greater than every neighbour or strictly less than every
// neighbour.
func isExtremum(value float64, neighbours []float64) bool {
	greater := true
	for _, n := range neighbours {
		if !(value > n) {
			greater = false
			break
		}
	}
	if greater {
		return true
	}
	for _, n := range neighbours {
		if !(value < n) {
			return false
		}
	}
	return true
}

// neighbourScanner collects the 26 scale space neighbours of (col, row) on the middle image of a DoG
// triple into nbrs and returns the slice used.
type neighbourScanner func(nbrs []float64, col, row int) []float64

// appendBlock appends the 3x3 block of img centered at (col, row), skipping the center when skipCenter.
func appendBlock(nbrs []float64, img *rimage.Image32f, col, row int, skipCenter bool) []float64 {
	for y := row - 1; y <= row+1; y++ {
		r := img.Row(y)
		for x := col - 1; x <= col+1; x++ {
			if skipCenter && x == col && y == row {
				continue
			}
			nbrs = append(nbrs, float64(r[x]))
		}
	}
	return nbrs
}

// appendSampledBlock appends 9 bilinear samples of img on a 3x3 grid of spacing step centered at (cx, cy).
func appendSampledBlock(nbrs []float64, img *rimage.Image32f, cx, cy, step float64) []float64 {
	for dy := -1.; dy <= 1; dy++ {
		for dx := -1.; dx <= 1; dx++ {
			nbrs = append(nbrs, img.BilinearInterpolation(cx+dx*step, cy+dy*step))
		}
	}
	return nbrs
}

// scanRange is the half open pixel range of the middle image that has every neighbour available.
type scanRange struct {
	x0, x1, y0, y1 int
}

// sameSizeScanner handles three DoG images of the same resolution.
func sameSizeScanner(im0, im1, im2 *rimage.Image32f) (neighbourScanner, scanRange) {
	scan := func(nbrs []float64, col, row int) []float64 {
		nbrs = appendBlock(nbrs[:0], im0, col, row, false)
		nbrs = appendBlock(nbrs, im1, col, row, true)
		return appendBlock(nbrs, im2, col, row, false)
	}
	return scan, scanRange{1, im1.Width() - 1, 1, im1.Height() - 1}
}

// finePairScanner handles im0 and im1 at the same resolution with im2 one octave coarser. The coarse
// neighbours are sampled half a coarse pixel apart around the downsampled location.
func finePairScanner(im0, im1, im2 *rimage.Image32f) (neighbourScanner, scanRange) {
	scan := func(nbrs []float64, col, row int) []float64 {
		nbrs = appendBlock(nbrs[:0], im0, col, row, false)
		nbrs = appendBlock(nbrs, im1, col, row, true)
		dsX := float64(col)*0.5 - 0.25
		dsY := float64(row)*0.5 - 0.25
		return appendSampledBlock(nbrs, im2, dsX, dsY, 0.5)
	}
	return scan, scanRange{2, fineEnd(im2.Width()), 2, fineEnd(im2.Height())}
}

// fineEnd is the exclusive upper bound on the fine axis for which the coarse samples at +0.5 stay inside
// an axis of the given coarse length.
func fineEnd(coarse int) int {
	return int((float64(coarse-1)-0.5)*2 + 0.5)
}

// coarsePairScanner handles im0 one octave finer than im1 and im2. The fine neighbours are sampled two
// fine pixels apart around the upsampled location.
func coarsePairScanner(im0, im1, im2 *rimage.Image32f) (neighbourScanner, scanRange) {
	scan := func(nbrs []float64, col, row int) []float64 {
		nbrs = appendBlock(nbrs[:0], im1, col, row, true)
		nbrs = appendBlock(nbrs, im2, col, row, false)
		usX := float64(col*2) + 0.5
		usY := float64(row*2) + 0.5
		return appendSampledBlock(nbrs, im0, usX, usY, 2)
	}
	return scan, scanRange{1, im1.Width() - 1, 1, im1.Height() - 1}
}

// selectScanner picks the neighbour layout for a DoG triple, or returns false when the sizes do not form
// one of the supported layouts.
func selectScanner(im0, im1, im2 *rimage.Image32f) (neighbourScanner, scanRange, bool) {
	switch {
	case im0.Width() == im1.Width() && im1.Width() == im2.Width() &&
		im0.Height() == im1.Height() && im1.Height() == im2.Height():
		scan, r := sameSizeScanner(im0, im1, im2)
		return scan, r, true
	case im0.Width() == im1.Width() && im1.Width()>>1 == im2.Width() &&
		im0.Height() == im1.Height() && im1.Height()>>1 == im2.Height():
		scan, r := finePairScanner(im0, im1, im2)
		return scan, r, true
	case im0.Width()>>1 == im1.Width() && im1.Width() == im2.Width() &&
		im0.Height()>>1 == im1.Height() && im1.Height() == im2.Height():
		scan, r := coarsePairScanner(im0, im1, im2)
		return scan, r, true
	default:
		return nil, scanRange{}, false
	}
}

// FindExtrema scans every interior DoG level for scale space extrema whose response magnitude is at
// least the laplacian threshold.
func (d *DoGDetector) FindExtrema(pyr rimage.GaussianScaleSpacePyramid, dog *DoGPyramid) []DetectedPoint {
	thrSqr := d.cfg.LaplacianThreshold * d.cfg.LaplacianThreshold
	var points []DetectedPoint
	nbrs := make([]float64, 0, 26)
	for i := 1; i < dog.Size()-1; i++ {
		im0, im1, im2 := dog.Image(i-1), dog.Image(i), dog.Image(i+1)
		scan, r, ok := selectScanner(im0, im1, im2)
		if !ok {
			d.logger.Debugw("skipping DoG level with inconsistent neighbour sizes", "level", i)
			continue
		}
		octave := dog.OctaveFromIndex(i)
		scale := dog.ScaleFromIndex(i)
		for row := r.y0; row < r.y1; row++ {
			line := im1.Row(row)
			for col := r.x0; col < r.x1; col++ {
				value := float64(line[col])
				if value*value < thrSqr {
					continue
				}
				nbrs = scan(nbrs, col, row)
				if !isExtremum(value, nbrs) {
					continue
				}
				x, y := rimage.UpsamplePoint(float64(col), float64(row), octave)
				points = append(points, DetectedPoint{
					X:       x,
					Y:       y,
					Octave:  octave,
					Scale:   scale,
					SpScale: float64(scale),
					Score:   value,
					Sigma:   pyr.EffectiveSigma(octave, float64(scale)),
				})
			}
		}
	}
	return points
}
