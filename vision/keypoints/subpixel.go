package keypoints

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/nftrack/rimage"
	"go.viam.com/nftrack/utils"
)

// singularDetThreshold rejects Hessians whose determinant is within single precision epsilon of zero.
const singularDetThreshold = 1.1920929e-07

// RefinementHessianEdgeScore returns (Dxx+Dyy)^2/(Dxx*Dyy-Dxy^2), the ratio used to reject edge like
// responses. It fails when the determinant is zero.
func RefinementHessianEdgeScore(dxx, dyy, dxy float64) (float64, bool) {
	det := dxx*dyy - dxy*dxy
	if det == 0 {
		return 0, false
	}
	return (dxx + dyy) * (dxx + dyy) / det, true
}

// edgeScoreAccepted reports whether the edge score stays under (t+1)^2/t.
func edgeScoreAccepted(score, edgeThreshold float64) bool {
	return math.Abs(score) < (edgeThreshold+1)*(edgeThreshold+1)/edgeThreshold
}

// spatialDerivatives returns the central differences of img at (x, y).
func spatialDerivatives(img *rimage.Image32f, x, y int) (dx, dy, dxx, dyy, dxy float64) {
	pm1 := img.Row(y - 1)
	p := img.Row(y)
	pp1 := img.Row(y + 1)

	dx = 0.5 * float64(p[x+1]-p[x-1])
	dy = 0.5 * float64(pp1[x]-pm1[x])
	dxx = float64(p[x-1]) - 2*float64(p[x]) + float64(p[x+1])
	dyy = float64(pm1[x]) - 2*float64(p[x]) + float64(pp1[x])
	dxy = 0.25 * (float64(pm1[x-1]+pp1[x+1]) - float64(pm1[x+1]+pp1[x-1]))
	return
}

// scaleDerivatives holds the derivatives that involve the scale axis.
type scaleDerivatives struct {
	ds, dss, dxs, dys float64
}

func sameOctaveScaleDerivatives(lap0, lap1, lap2 *rimage.Image32f, x, y int) scaleDerivatives {
	l0, l1, l2 := float64(lap0.At(x, y)), float64(lap1.At(x, y)), float64(lap2.At(x, y))
	return scaleDerivatives{
		ds:  0.5 * (l2 - l0),
		dss: l0 - 2*l1 + l2,
		dxs: 0.25 * ((float64(lap0.At(x-1, y)) - float64(lap0.At(x+1, y))) + (-float64(lap2.At(x-1, y)) + float64(lap2.At(x+1, y)))),
		dys: 0.25 * ((float64(lap0.At(x, y-1)) - float64(lap0.At(x, y+1))) + (-float64(lap2.At(x, y-1)) + float64(lap2.At(x, y+1)))),
	}
}

// coarsePairScaleDerivatives handles lap0 one octave finer than lap1 and lap2.
func coarsePairScaleDerivatives(lap0, lap1, lap2 *rimage.Image32f, x, y int) scaleDerivatives {
	x2, y2 := rimage.UpsamplePoint(float64(x), float64(y), 1)
	val := lap0.BilinearInterpolation(x2, y2)
	l1, l2 := float64(lap1.At(x, y)), float64(lap2.At(x, y))
	return scaleDerivatives{
		ds:  0.5 * (l2 - val),
		dss: val - 2*l1 + l2,
		dxs: 0.25 * ((lap0.BilinearInterpolation(x2-2, y2) + float64(lap2.At(x+1, y))) -
			(lap0.BilinearInterpolation(x2+2, y2) + float64(lap2.At(x-1, y)))),
		dys: 0.25 * ((lap0.BilinearInterpolation(x2, y2-2) + float64(lap2.At(x, y+1))) -
			(lap0.BilinearInterpolation(x2, y2+2) + float64(lap2.At(x, y-1)))),
	}
}

// finePairScaleDerivatives handles lap2 one octave coarser than lap0 and lap1.
func finePairScaleDerivatives(lap0, lap1, lap2 *rimage.Image32f, x, y int) scaleDerivatives {
	xd, yd := rimage.DownsamplePoint(float64(x), float64(y), 1)
	val := lap2.BilinearInterpolation(xd, yd)
	l0, l1 := float64(lap0.At(x, y)), float64(lap1.At(x, y))
	return scaleDerivatives{
		ds:  0.5 * (val - l0),
		dss: l0 - 2*l1 + val,
		dxs: 0.25 * ((float64(lap0.At(x-1, y)) + lap2.BilinearInterpolation(xd+0.5, yd)) -
			(float64(lap0.At(x+1, y)) + lap2.BilinearInterpolation(xd-0.5, yd))),
		dys: 0.25 * ((float64(lap0.At(x, y-1)) + lap2.BilinearInterpolation(xd, yd+0.5)) -
			(float64(lap0.At(x, y+1)) + lap2.BilinearInterpolation(xd, yd-0.5))),
	}
}

// subpixelHessian builds the 3x3 Hessian A and the right hand side b = -gradient of the DoG function at
// (x, y) of lap1. It fails when the three images do not form a supported layout or (x, y) is too close to
// the border.
func subpixelHessian(lap0, lap1, lap2 *rimage.Image32f, x, y int) (*mat.SymDense, *mat.VecDense, bool) {
	if x < 1 || y < 1 || x+1 >= lap1.Width() || y+1 >= lap1.Height() {
		return nil, nil, false
	}
	var sd scaleDerivatives
	switch {
	case lap0.Width() == lap1.Width() && lap1.Width() == lap2.Width():
		sd = sameOctaveScaleDerivatives(lap0, lap1, lap2, x, y)
	case lap0.Width() == lap1.Width() && lap1.Width()>>1 == lap2.Width():
		xd, yd := rimage.DownsamplePoint(float64(x), float64(y), 1)
		if xd-0.5 < 0 || yd-0.5 < 0 || xd+0.5 > float64(lap2.Width()-1) || yd+0.5 > float64(lap2.Height()-1) {
			return nil, nil, false
		}
		sd = finePairScaleDerivatives(lap0, lap1, lap2, x, y)
	case lap0.Width()>>1 == lap1.Width() && lap1.Width() == lap2.Width():
		x2, y2 := rimage.UpsamplePoint(float64(x), float64(y), 1)
		if x2-2 < 0 || y2-2 < 0 || x2+2 > float64(lap0.Width()-1) || y2+2 > float64(lap0.Height()-1) {
			return nil, nil, false
		}
		sd = coarsePairScaleDerivatives(lap0, lap1, lap2, x, y)
	default:
		return nil, nil, false
	}
	dx, dy, dxx, dyy, dxy := spatialDerivatives(lap1, x, y)

	a := mat.NewSymDense(3, []float64{
		dxx, dxy, sd.dxs,
		dxy, dyy, sd.dys,
		sd.dxs, sd.dys, sd.dss,
	})
	b := mat.NewVecDense(3, []float64{-dx, -dy, -sd.ds})
	return a, b, true
}

// solveSubpixelOffset solves A u = b, failing when A is singular.
func solveSubpixelOffset(a *mat.SymDense, b *mat.VecDense) (*mat.VecDense, bool) {
	if math.Abs(mat.Det(a)) <= singularDetThreshold {
		return nil, false
	}
	var u mat.VecDense
	if err := u.SolveVec(a, b); err != nil {
		return nil, false
	}
	return &u, true
}

// RefineSubpixel fits a quadratic to the DoG function around every candidate and moves it to the
// extremum of the fit. Candidates that move too far, lie on edges, fall under the laplacian threshold
// after the update or leave the image are dropped.
func (d *DoGDetector) RefineSubpixel(pyr rimage.GaussianScaleSpacePyramid, dog *DoGPyramid, points []DetectedPoint) []DetectedPoint {
	thrSqr := d.cfg.LaplacianThreshold * d.cfg.LaplacianThreshold
	width := float64(dog.Image(0).Width())
	height := float64(dog.Image(0).Height())

	refined := points[:0]
	for _, kp := range points {
		lapIndex := kp.Octave*dog.NumScalesPerOctave() + kp.Scale
		if lapIndex < 1 || lapIndex+1 >= dog.Size() {
			continue
		}
		xp, yp := rimage.DownsamplePoint(kp.X, kp.Y, kp.Octave)
		x := int(xp + 0.5)
		y := int(yp + 0.5)

		lap0, lap1, lap2 := dog.Image(lapIndex-1), dog.Image(lapIndex), dog.Image(lapIndex+1)
		a, b, ok := subpixelHessian(lap0, lap1, lap2, x, y)
		if !ok {
			continue
		}
		u, ok := solveSubpixelOffset(a, b)
		if !ok {
			continue
		}
		u0, u1, u2 := u.AtVec(0), u.AtVec(1), u.AtVec(2)
		if u0*u0+u1*u1 > d.cfg.MaxSubpixelDistanceSqr {
			continue
		}
		edgeScore, ok := RefinementHessianEdgeScore(a.At(0, 0), a.At(1, 1), a.At(0, 1))
		if !ok {
			continue
		}
		kp.EdgeScore = edgeScore
		kp.Score = float64(lap1.At(x, y)) - mat.Dot(b, u)
		kp.X, kp.Y = rimage.UpsamplePoint(xp+u0, yp+u1, kp.Octave)
		kp.SpScale = utils.Clamp(float64(kp.Scale)+u2, 0, float64(dog.NumScalesPerOctave()))

		if edgeScoreAccepted(kp.EdgeScore, d.cfg.EdgeThreshold) &&
			kp.Score*kp.Score >= thrSqr &&
			kp.X >= 0 && kp.X < width &&
			kp.Y >= 0 && kp.Y < height {
			kp.Sigma = pyr.EffectiveSigma(kp.Octave, kp.SpScale)
			refined = append(refined, kp)
		}
	}
	return refined
}
