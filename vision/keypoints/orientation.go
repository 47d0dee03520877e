package keypoints

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"go.viam.com/nftrack/rimage"
	"go.viam.com/nftrack/utils"
)

// orientationSmoothingKernel is a 3 tap binomial with sigma 1.
var orientationSmoothingKernel = [3]float64{0.274068619061197, 0.451862761877606, 0.274068619061197}

// orientationAssigner finds the dominant gradient directions around points of a Gaussian pyramid.
type orientationAssigner struct {
	numBins            int
	gaussianExpansion  float64
	supportExpansion   float64
	smoothingIters     int
	peakThreshold      float64
	maxAngles          int
	numScalesPerOctave int
	gradients          []*rimage.VectorField2D
	histogram          []float64
}

func newOrientationAssigner(cfg *DetectorConfig) *orientationAssigner {
	return &orientationAssigner{
		numBins:           cfg.NumOrientationBins,
		gaussianExpansion: cfg.OrientationGaussianExpansion,
		supportExpansion:  cfg.OrientationSupportExpansion,
		smoothingIters:    cfg.OrientationSmoothingIterations,
		peakThreshold:     cfg.OrientationPeakThreshold,
		maxAngles:         cfg.MaxOrientationsPerPoint,
		histogram:         make([]float64, cfg.NumOrientationBins),
	}
}

// computeGradients refreshes the polar gradients of every pyramid level.
func (oa *orientationAssigner) computeGradients(pyr rimage.GaussianScaleSpacePyramid) {
	oa.numScalesPerOctave = pyr.NumScalesPerOctave()
	images := pyr.Images()
	oa.gradients = oa.gradients[:0]
	for _, img := range images {
		oa.gradients = append(oa.gradients, rimage.ComputePolarGradients(img))
	}
}

// bilinearHistogramUpdate splits a vote between the two bins closest to the fractional bin fbin.
func bilinearHistogramUpdate(hist []float64, fbin, magnitude float64) {
	n := len(hist)
	bin := int(math.Floor(fbin - 0.5))
	w2 := fbin - float64(bin) - 0.5
	w1 := 1 - w2
	b1 := (bin + n) % n
	b2 := (bin + 1) % n
	hist[b1] += w1 * magnitude
	hist[b2] += w2 * magnitude
}

// smoothHistogram convolves the circular histogram with kernel in place.
func smoothHistogram(hist []float64, kernel [3]float64) {
	n := len(hist)
	first := hist[0]
	prev := hist[n-1]
	for i := 0; i < n-1; i++ {
		cur := hist[i]
		hist[i] = kernel[0]*prev + kernel[1]*cur + kernel[2]*hist[i+1]
		prev = cur
	}
	hist[n-1] = kernel[0]*prev + kernel[1]*hist[n-1] + kernel[2]*first
}

// quadraticPeak returns the abscissa of the vertex of the parabola through (-1, ym1), (0, y0), (1, yp1),
// relative to the middle sample.
func quadraticPeak(ym1, y0, yp1 float64) (float64, bool) {
	a := 0.5 * (ym1 - 2*y0 + yp1)
	if a == 0 {
		return 0, false
	}
	b := 0.5 * (yp1 - ym1)
	return -b / (2 * a), true
}

// compute returns the dominant orientations at (x, y) of level (octave, scale), where x, y and sigma are
// expressed in that octave's pixels.
func (oa *orientationAssigner) compute(octave, scale int, x, y, sigma float64) []float64 {
	g := oa.gradients[octave*oa.numScalesPerOctave+scale]
	xi := int(x + 0.5)
	yi := int(y + 0.5)
	if xi < 0 || xi >= g.Width() || yi < 0 || yi >= g.Height() {
		return nil
	}

	gwSigma := math.Max(1, oa.gaussianExpansion*sigma)
	gwScale := -1 / (2 * gwSigma * gwSigma)
	radius := oa.supportExpansion * gwSigma
	radius2 := math.Ceil(radius * radius)
	r := int(radius + 0.5)

	x0 := utils.MaxInt(0, xi-r)
	x1 := utils.MinInt(xi+r, g.Width()-1)
	y0 := utils.MaxInt(0, yi-r)
	y1 := utils.MinInt(yi+r, g.Height()-1)

	hist := oa.histogram
	clear(hist)
	nb := float64(oa.numBins)
	for yp := y0; yp <= y1; yp++ {
		dy := float64(yp) - y
		dy2 := dy * dy
		for xp := x0; xp <= x1; xp++ {
			dx := float64(xp) - x
			r2 := dx*dx + dy2
			if r2 > radius2 {
				continue
			}
			v := g.GetVec2D(xp, yp)
			w := math.Exp(r2 * gwScale)
			fbin := nb * v.Direction() / (2 * math.Pi)
			bilinearHistogramUpdate(hist, fbin, w*v.Magnitude())
		}
	}

	for i := 0; i < oa.smoothingIters; i++ {
		smoothHistogram(hist, orientationSmoothingKernel)
	}

	maxHeight := floats.Max(hist)
	if maxHeight <= 0 {
		return nil
	}

	var angles []float64
	n := oa.numBins
	for i := 0; i < n && len(angles) < oa.maxAngles; i++ {
		h0 := hist[i]
		hm1 := hist[(i-1+n)%n]
		hp1 := hist[(i+1)%n]
		if h0 > oa.peakThreshold*maxHeight && h0 > hm1 && h0 > hp1 {
			fbin := float64(i)
			if off, ok := quadraticPeak(hm1, h0, hp1); ok {
				fbin += off
			}
			angles = append(angles, utils.ModAngRad(2*math.Pi*(fbin+0.5)/nb))
		}
	}
	return angles
}

// AssignOrientations gives every point its dominant orientations, emitting one point per orientation.
// With orientation disabled every point keeps angle 0.
func (d *DoGDetector) AssignOrientations(pyr rimage.GaussianScaleSpacePyramid, points []DetectedPoint) []DetectedPoint {
	if !d.cfg.FindOrientation {
		for i := range points {
			points[i].Angle = 0
		}
		return points
	}
	d.orientation.computeGradients(pyr)

	oriented := make([]DetectedPoint, 0, len(points))
	for _, p := range points {
		x, y, s := rimage.DownsamplePointWithScale(p.X, p.Y, p.Sigma, p.Octave)
		level := pyr.Get(p.Octave, 0)
		x = utils.Clamp(x, 0, float64(level.Width()-1))
		y = utils.Clamp(y, 0, float64(level.Height()-1))
		for _, angle := range d.orientation.compute(p.Octave, p.Scale, x, y, s) {
			fp := p
			fp.Angle = angle
			oriented = append(oriented, fp)
		}
	}
	return oriented
}
