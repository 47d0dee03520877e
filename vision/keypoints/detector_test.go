package keypoints

import (
	"image"
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/nftrack/logging"
	"go.viam.com/nftrack/rimage"
)

func newTestDetector(t *testing.T, cfg *DetectorConfig) *DoGDetector {
	t.Helper()
	d, err := NewDoGDetector(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return d
}

// sameSizeDoG returns a single octave DoG pyramid over the given levels, all of the same size.
func sameSizeDoG(levels ...*rimage.Image32f) *DoGPyramid {
	return &DoGPyramid{numOctaves: 1, numScalesPerOctave: len(levels), images: levels}
}

// twoOctaveDoG returns a two octave DoG pyramid with two levels per octave. The first two levels must be
// twice the size of the last two.
func twoOctaveDoG(levels ...*rimage.Image32f) *DoGPyramid {
	return &DoGPyramid{numOctaves: 2, numScalesPerOctave: 2, images: levels}
}

// field fills a w x h image with f evaluated at every pixel.
func field(w, h int, f func(x, y float64) float64) *rimage.Image32f {
	img := rimage.NewImage32f(w, h)
	for y := 0; y < h; y++ {
		row := img.Row(y)
		for x := range row {
			row[x] = float32(f(float64(x), float64(y)))
		}
	}
	return img
}

// blob fills a w x h image with amp*exp(-((x-cx)^2/(2 sx^2) + (y-cy)^2/(2 sy^2))).
func blob(w, h int, cx, cy, sx, sy, amp float64) *rimage.Image32f {
	img := rimage.NewImage32f(w, h)
	for y := 0; y < h; y++ {
		row := img.Row(y)
		for x := range row {
			dx, dy := float64(x)-cx, float64(y)-cy
			row[x] = float32(amp * math.Exp(-(dx*dx/(2*sx*sx) + dy*dy/(2*sy*sy))))
		}
	}
	return img
}

func TestDetectorConfigValidate(t *testing.T) {
	test.That(t, DefaultDetectorConfig().Validate("detector"), test.ShouldBeNil)

	cfg := DefaultDetectorConfig()
	cfg.NumBucketsX = 0
	cfg.EdgeThreshold = 0
	cfg.MinCoarseSize = 2
	err := cfg.Validate("detector")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "edge_threshold")
	test.That(t, err.Error(), test.ShouldContainSubstring, "min_coarse_size")

	cfg = DefaultDetectorConfig()
	cfg.MaxNumFeaturePoints = 50
	test.That(t, cfg.Validate("detector"), test.ShouldNotBeNil)

	cfg = DefaultDetectorConfig()
	cfg.FindOrientation = false
	cfg.NumOrientationBins = 0
	test.That(t, cfg.Validate("detector"), test.ShouldBeNil)

	_, err = NewDoGDetector(&DetectorConfig{}, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFindExtremaStrictness(t *testing.T) {
	pyr, err := rimage.NewBinomialPyramid32f(16, 16, 1)
	test.That(t, err, test.ShouldBeNil)
	d := newTestDetector(t, nil)

	for _, sign := range []float64{1, -1} {
		spike := rimage.NewImage32f(16, 16)
		spike.Set(5, 6, float32(10*sign))
		dog := sameSizeDoG(rimage.NewImage32f(16, 16), spike, rimage.NewImage32f(16, 16))

		points := d.FindExtrema(pyr, dog)
		test.That(t, points, test.ShouldHaveLength, 1)
		p := points[0]
		test.That(t, p.X, test.ShouldAlmostEqual, 5)
		test.That(t, p.Y, test.ShouldAlmostEqual, 6)
		test.That(t, p.Octave, test.ShouldEqual, 0)
		test.That(t, p.Scale, test.ShouldEqual, 1)
		test.That(t, p.Score, test.ShouldEqual, 10*sign)
		test.That(t, p.Sigma, test.ShouldAlmostEqual, pyr.EffectiveSigma(0, 1))
		test.That(t, p.FeaturePoint().Maxima, test.ShouldEqual, sign > 0)
	}

	// a neighbour with the same value breaks strictness
	spike := rimage.NewImage32f(16, 16)
	spike.Set(5, 6, 10)
	above := rimage.NewImage32f(16, 16)
	above.Set(6, 7, 10)
	test.That(t, d.FindExtrema(pyr, sameSizeDoG(rimage.NewImage32f(16, 16), spike, above)), test.ShouldBeEmpty)

	// the laplacian threshold removes weak responses
	cfg := DefaultDetectorConfig()
	cfg.LaplacianThreshold = 11
	strict := newTestDetector(t, cfg)
	test.That(t, strict.FindExtrema(pyr, sameSizeDoG(rimage.NewImage32f(16, 16), spike, rimage.NewImage32f(16, 16))),
		test.ShouldBeEmpty)
}

func TestFindExtremaAcrossOctaves(t *testing.T) {
	pyr, err := rimage.NewBinomialPyramid32f(32, 32, 2)
	test.That(t, err, test.ShouldBeNil)
	d := newTestDetector(t, nil)

	// level 1 sees a coarser level above it, level 2 a finer level below it. The fine spike at (10, 12)
	// and the coarse peak at (5, 6) are neighbours of each other through the cross octave sampling.
	dogWith := func(fine, coarse float32) *DoGPyramid {
		spike := rimage.NewImage32f(32, 32)
		spike.Set(10, 12, fine)
		peak := rimage.NewImage32f(16, 16)
		peak.Set(5, 6, coarse)
		return twoOctaveDoG(rimage.NewImage32f(32, 32), spike, peak, rimage.NewImage32f(16, 16))
	}

	// the coarse peak samples the spike at a quarter weight and wins
	points := d.FindExtrema(pyr, dogWith(10, 20))
	test.That(t, points, test.ShouldHaveLength, 1)
	test.That(t, points[0].Octave, test.ShouldEqual, 1)
	test.That(t, points[0].Scale, test.ShouldEqual, 0)
	test.That(t, points[0].X, test.ShouldAlmostEqual, 10.5)
	test.That(t, points[0].Y, test.ShouldAlmostEqual, 12.5)
	test.That(t, points[0].Score, test.ShouldEqual, 20.)
	test.That(t, points[0].Sigma, test.ShouldAlmostEqual, pyr.EffectiveSigma(1, 0))

	// the spike samples the peak at 9/16 weight and wins
	points = d.FindExtrema(pyr, dogWith(90, 20))
	test.That(t, points, test.ShouldHaveLength, 1)
	test.That(t, points[0].Octave, test.ShouldEqual, 0)
	test.That(t, points[0].Scale, test.ShouldEqual, 1)
	test.That(t, points[0].X, test.ShouldAlmostEqual, 10)
	test.That(t, points[0].Y, test.ShouldAlmostEqual, 12)

	// neither sampled value reaches the other extremum
	test.That(t, d.FindExtrema(pyr, dogWith(30, 40)), test.ShouldHaveLength, 2)

	// a coarse value outside the sampled footprint leaves both alone
	spike := rimage.NewImage32f(32, 32)
	spike.Set(10, 12, 10)
	far := rimage.NewImage32f(16, 16)
	far.Set(8, 6, 20)
	points = d.FindExtrema(pyr, twoOctaveDoG(rimage.NewImage32f(32, 32), spike, far, rimage.NewImage32f(16, 16)))
	test.That(t, points, test.ShouldHaveLength, 2)
}

func TestIsExtremum(t *testing.T) {
	test.That(t, isExtremum(5, []float64{1, 2, 4.9}), test.ShouldBeTrue)
	test.That(t, isExtremum(-5, []float64{1, -2, -4.9}), test.ShouldBeTrue)
	test.That(t, isExtremum(5, []float64{1, 5, 2}), test.ShouldBeFalse)
	test.That(t, isExtremum(0, []float64{1, -1}), test.ShouldBeFalse)
	test.That(t, isExtremum(math.NaN(), []float64{1}), test.ShouldBeFalse)
}

func TestFineEnd(t *testing.T) {
	// the coarse samples at col*0.5-0.25+0.5 must stay below coarse-1
	for _, coarse := range []int{4, 5, 16, 33} {
		end := fineEnd(coarse)
		test.That(t, float64(end-1)*0.5+0.25, test.ShouldBeLessThanOrEqualTo, float64(coarse-1))
	}
}

func TestRefinementHessianEdgeScore(t *testing.T) {
	score, ok := RefinementHessianEdgeScore(-3, -3, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, score, test.ShouldAlmostEqual, 4)
	test.That(t, edgeScoreAccepted(score, 10), test.ShouldBeTrue)

	score, ok = RefinementHessianEdgeScore(100, 1, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, score, test.ShouldAlmostEqual, 102.01)
	test.That(t, edgeScoreAccepted(score, 10), test.ShouldBeFalse)

	_, ok = RefinementHessianEdgeScore(1, 1, 1)
	test.That(t, ok, test.ShouldBeFalse)

	// saddles have a negative determinant and are judged on magnitude
	score, ok = RefinementHessianEdgeScore(2, -1, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, score, test.ShouldAlmostEqual, -0.5)
	test.That(t, edgeScoreAccepted(score, 10), test.ShouldBeTrue)
}

func TestRefineSubpixel(t *testing.T) {
	pyr, err := rimage.NewBinomialPyramid32f(17, 17, 1)
	test.That(t, err, test.ShouldBeNil)
	d := newTestDetector(t, nil)

	candidate := func() []DetectedPoint {
		return []DetectedPoint{{X: 8, Y: 8, Octave: 0, Scale: 1, SpScale: 1, Score: 10}}
	}

	t.Run("centered blob", func(t *testing.T) {
		dog := sameSizeDoG(blob(17, 17, 8, 8, 2, 2, 5), blob(17, 17, 8, 8, 2, 2, 10), blob(17, 17, 8, 8, 2, 2, 5))
		points := d.RefineSubpixel(pyr, dog, candidate())
		test.That(t, points, test.ShouldHaveLength, 1)
		test.That(t, points[0].X, test.ShouldAlmostEqual, 8, 1e-4)
		test.That(t, points[0].Y, test.ShouldAlmostEqual, 8, 1e-4)
		test.That(t, points[0].SpScale, test.ShouldAlmostEqual, 1, 1e-4)
		test.That(t, points[0].EdgeScore, test.ShouldAlmostEqual, 4, 1e-3)
		test.That(t, points[0].Score, test.ShouldAlmostEqual, 10, 1e-4)
		test.That(t, points[0].Sigma, test.ShouldAlmostEqual, pyr.EffectiveSigma(0, 1), 1e-6)
	})

	t.Run("offset blob", func(t *testing.T) {
		dog := sameSizeDoG(blob(17, 17, 8.3, 8, 2, 2, 5), blob(17, 17, 8.3, 8, 2, 2, 10), blob(17, 17, 8.3, 8, 2, 2, 5))
		points := d.RefineSubpixel(pyr, dog, candidate())
		test.That(t, points, test.ShouldHaveLength, 1)
		test.That(t, points[0].X, test.ShouldAlmostEqual, 8.288, 0.01)
		test.That(t, points[0].Y, test.ShouldAlmostEqual, 8, 1e-4)
		test.That(t, points[0].Score, test.ShouldBeGreaterThan, 10)
	})

	t.Run("ridge", func(t *testing.T) {
		dog := sameSizeDoG(blob(17, 17, 8, 8, 30, 1.5, 5), blob(17, 17, 8, 8, 30, 1.5, 10), blob(17, 17, 8, 8, 30, 1.5, 5))
		test.That(t, d.RefineSubpixel(pyr, dog, candidate()), test.ShouldBeEmpty)
	})

	t.Run("flat", func(t *testing.T) {
		flat := rimage.NewImage32f(17, 17)
		dog := sameSizeDoG(flat, flat, flat)
		test.That(t, d.RefineSubpixel(pyr, dog, candidate()), test.ShouldBeEmpty)
	})

	t.Run("border", func(t *testing.T) {
		dog := sameSizeDoG(blob(17, 17, 8, 8, 2, 2, 5), blob(17, 17, 8, 8, 2, 2, 10), blob(17, 17, 8, 8, 2, 2, 5))
		points := []DetectedPoint{{X: 0, Y: 8, Octave: 0, Scale: 1}, {X: 8, Y: 8, Octave: 0, Scale: 0}}
		test.That(t, d.RefineSubpixel(pyr, dog, points), test.ShouldBeEmpty)
	})
}

func TestRefineSubpixelAcrossOctaves(t *testing.T) {
	pyr, err := rimage.NewBinomialPyramid32f(16, 16, 2)
	test.That(t, err, test.ShouldBeNil)
	d := newTestDetector(t, nil)

	// Both layouts see the same quadratic: Dx = 0.6, Dxx = Dyy = -2, Dxs = 1, Ds = 0 and
	// Dss = 10 - 2*9.91, so the offset is (0.6*9.82, 0, 0.6)/18.64 in pixels of the middle level.
	const (
		wantDX     = 0.6 * 9.82 / 18.64
		wantDS     = 0.6 / 18.64
		wantScore  = 9.91 + 0.6*wantDX
		flatValue  = 5.
		peakOffset = 0.3
	)
	quadratic := func(cx, cy float64) func(x, y float64) float64 {
		return func(x, y float64) float64 {
			return 10 - (x-cx-peakOffset)*(x-cx-peakOffset) - (y-cy)*(y-cy)
		}
	}
	flat := func(x, y float64) float64 { return flatValue }

	t.Run("coarser level above", func(t *testing.T) {
		// coarse pixel xc sits at 2*xc+0.5 in the fine level, where the coarse level rises by 2 per fine pixel
		coarse := field(8, 8, func(x, y float64) float64 { return flatValue + 2*(2*x+0.5-8) })
		dog := twoOctaveDoG(field(16, 16, flat), field(16, 16, quadratic(8, 8)), coarse, field(8, 8, flat))

		points := d.RefineSubpixel(pyr, dog, []DetectedPoint{{X: 8, Y: 8, Octave: 0, Scale: 1, SpScale: 1, Score: 10}})
		test.That(t, points, test.ShouldHaveLength, 1)
		p := points[0]
		test.That(t, p.X, test.ShouldAlmostEqual, 8+wantDX, 1e-4)
		test.That(t, p.Y, test.ShouldAlmostEqual, 8, 1e-4)
		test.That(t, p.SpScale, test.ShouldAlmostEqual, 1+wantDS, 1e-4)
		test.That(t, p.Score, test.ShouldAlmostEqual, wantScore, 1e-4)
		test.That(t, p.EdgeScore, test.ShouldAlmostEqual, 4, 1e-4)
		test.That(t, p.Sigma, test.ShouldAlmostEqual, pyr.EffectiveSigma(0, p.SpScale), 1e-6)
	})

	t.Run("finer level below", func(t *testing.T) {
		// fine pixel 2*xc+0.5 sits at coarse pixel xc, where the fine level falls by 1 per fine pixel
		fine := field(16, 16, func(x, y float64) float64 { return flatValue - (x - 8.5) })
		dog := twoOctaveDoG(field(16, 16, flat), fine, field(8, 8, quadratic(4, 4)), field(8, 8, flat))

		points := d.RefineSubpixel(pyr, dog, []DetectedPoint{{X: 8.5, Y: 8.5, Octave: 1, Scale: 0, Score: 10}})
		test.That(t, points, test.ShouldHaveLength, 1)
		p := points[0]
		test.That(t, p.X, test.ShouldAlmostEqual, 2*(4+wantDX)+0.5, 1e-4)
		test.That(t, p.Y, test.ShouldAlmostEqual, 8.5, 1e-4)
		test.That(t, p.SpScale, test.ShouldAlmostEqual, wantDS, 1e-4)
		test.That(t, p.Score, test.ShouldAlmostEqual, wantScore, 1e-4)
		test.That(t, p.Sigma, test.ShouldAlmostEqual, pyr.EffectiveSigma(1, p.SpScale), 1e-6)
	})

	t.Run("coarse samples leave the image", func(t *testing.T) {
		dog := twoOctaveDoG(field(16, 16, flat), field(16, 16, quadratic(1, 8)), field(8, 8, flat), field(8, 8, flat))
		points := []DetectedPoint{
			{X: 1, Y: 8, Octave: 0, Scale: 1},
			{X: 14, Y: 8, Octave: 0, Scale: 1},
		}
		test.That(t, d.RefineSubpixel(pyr, dog, points), test.ShouldBeEmpty)
	})
}

func TestPruneFeatures(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.NumBucketsX = 2
	cfg.NumBucketsY = 2
	cfg.MaxNumFeaturePoints = 8
	d := newTestDetector(t, cfg)

	points := []DetectedPoint{
		{X: 10, Y: 10, Score: 1},
		{X: 20, Y: 10, Score: -5},
		{X: 30, Y: 10, Score: 3},
		{X: 40, Y: 10, Score: 4},
		{X: 10, Y: 20, Score: 2},
		{X: 60, Y: 10, Score: 7},
		{X: 70, Y: 10, Score: -9},
		{X: 80, Y: 10, Score: 8},
		{X: 90, Y: 10, Score: 1},
		{X: 99, Y: 99, Score: 0.5},
	}
	unchanged := d.PruneFeatures(points[:8], 100, 100)
	test.That(t, unchanged, test.ShouldHaveLength, 8)

	pruned := d.PruneFeatures(points, 100, 100)
	scores := make([]float64, len(pruned))
	for i, p := range pruned {
		scores[i] = p.Score
	}
	// two per bucket, no redistribution from the empty bucket, strongest first within a bucket
	test.That(t, scores, test.ShouldResemble, []float64{-5, 4, -9, 8, 0.5})
}

func TestSmoothHistogram(t *testing.T) {
	hist := make([]float64, 8)
	hist[0] = 1
	smoothHistogram(hist, orientationSmoothingKernel)
	test.That(t, hist[0], test.ShouldAlmostEqual, orientationSmoothingKernel[1])
	test.That(t, hist[1], test.ShouldAlmostEqual, orientationSmoothingKernel[2])
	test.That(t, hist[7], test.ShouldAlmostEqual, orientationSmoothingKernel[0])
	test.That(t, hist[4], test.ShouldEqual, 0.)

	for i := 0; i < 10; i++ {
		smoothHistogram(hist, orientationSmoothingKernel)
	}
	sum := 0.
	for _, v := range hist {
		sum += v
	}
	test.That(t, sum, test.ShouldAlmostEqual, 1, 1e-9)
}

func TestBilinearHistogramUpdate(t *testing.T) {
	hist := make([]float64, 36)
	bilinearHistogramUpdate(hist, 10.5, 2)
	test.That(t, hist[10], test.ShouldAlmostEqual, 2)

	clear(hist)
	bilinearHistogramUpdate(hist, 10, 2)
	test.That(t, hist[9], test.ShouldAlmostEqual, 1)
	test.That(t, hist[10], test.ShouldAlmostEqual, 1)

	clear(hist)
	bilinearHistogramUpdate(hist, 0.2, 1)
	test.That(t, hist[35], test.ShouldAlmostEqual, 0.3)
	test.That(t, hist[0], test.ShouldAlmostEqual, 0.7)
}

func TestQuadraticPeak(t *testing.T) {
	off, ok := quadraticPeak(1, 2, 1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, off, test.ShouldAlmostEqual, 0)

	off, ok = quadraticPeak(1, 2, 2)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, off, test.ShouldAlmostEqual, 0.5)

	_, ok = quadraticPeak(1, 1, 1)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestOrientationOfRamp(t *testing.T) {
	// gradient directions are offset by π, so a ramp rising along theta votes at theta+π
	theta := -75 * math.Pi / 180
	img := rimage.NewImage32f(41, 41)
	for y := 0; y < 41; y++ {
		for x := 0; x < 41; x++ {
			img.Set(x, y, float32(200+3*(float64(x)*math.Cos(theta)+float64(y)*math.Sin(theta))))
		}
	}
	oa := newOrientationAssigner(DefaultDetectorConfig())
	oa.numScalesPerOctave = 1
	oa.gradients = []*rimage.VectorField2D{rimage.ComputePolarGradients(img)}

	angles := oa.compute(0, 0, 20, 20, 2)
	test.That(t, angles, test.ShouldHaveLength, 1)
	test.That(t, angles[0], test.ShouldAlmostEqual, theta+math.Pi, 0.01)

	flat := rimage.NewImage32f(41, 41)
	oa.gradients = []*rimage.VectorField2D{rimage.ComputePolarGradients(flat)}
	test.That(t, oa.compute(0, 0, 20, 20, 2), test.ShouldBeEmpty)
	test.That(t, oa.compute(0, 0, 100, 20, 2), test.ShouldBeEmpty)
}

func TestAssignOrientationsDisabled(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.FindOrientation = false
	d := newTestDetector(t, cfg)
	points := []DetectedPoint{{X: 3, Angle: 1}, {X: 4, Angle: 2}}
	out := d.AssignOrientations(nil, points)
	test.That(t, out, test.ShouldHaveLength, 2)
	for _, p := range out {
		test.That(t, p.Angle, test.ShouldEqual, 0.)
	}
}

func TestDetect(t *testing.T) {
	d := newTestDetector(t, nil)
	_, err := d.Detect(nil)
	test.That(t, err, test.ShouldNotBeNil)

	img := blockImage(5, 128, 96)
	pyr, err := rimage.NewBinomialPyramid32f(128, 96, rimage.NumOctaves(128, 96, 8))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pyr.Build(img), test.ShouldBeNil)

	points, err := d.Detect(pyr)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(points), test.ShouldBeGreaterThan, 0)
	for _, p := range points {
		test.That(t, p.X, test.ShouldBeBetweenOrEqual, 0, 128)
		test.That(t, p.Y, test.ShouldBeBetweenOrEqual, 0, 96)
		test.That(t, p.Angle, test.ShouldBeBetweenOrEqual, 0, 2*math.Pi)
		test.That(t, p.SpScale, test.ShouldBeBetweenOrEqual, 0, 2)
		test.That(t, p.Sigma, test.ShouldBeGreaterThan, 0)
	}

	// a second frame of another size reallocates the DoG buffers
	small, err := rimage.NewBinomialPyramid32f(64, 64, rimage.NumOctaves(64, 64, 8))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, small.Build(blockImage(6, 64, 64)), test.ShouldBeNil)
	_, err = d.Detect(small)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.dog.Image(0).Width(), test.ShouldEqual, 64)

	again, err := d.Detect(pyr)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldResemble, points)
}

// blockImage returns a w x h image of 8x8 blocks with pseudo random intensities.
func blockImage(seed, w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	state := uint32(seed*7919 + 1)
	for by := 0; by < h; by += 8 {
		for bx := 0; bx < w; bx += 8 {
			state = state*1664525 + 1013904223
			v := uint8(state >> 24)
			for y := by; y < by+8 && y < h; y++ {
				for x := bx; x < bx+8 && x < w; x++ {
					img.Pix[y*img.Stride+x] = v
				}
			}
		}
	}
	return img
}
