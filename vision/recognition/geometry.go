package recognition

import (
	"github.com/golang/geo/r2"

	"go.viam.com/nftrack/rimage/transform"
	"go.viam.com/nftrack/utils"
	"go.viam.com/nftrack/vision/keypoints"
)

const (
	heuristicInverseThreshold = 1e-5
	// minTriangleAreaFraction is the smallest corner triangle allowed, as a fraction of the reference area.
	minTriangleAreaFraction = 0.0001
)

// HomographyEstimator robustly fits a homography mapping src onto dst. The test points are checked
// for a sane projection during hypothesis selection.
type HomographyEstimator interface {
	EstimateHomography(src, dst, testPoints []r2.Point) (transform.Homography, bool)
}

// SimilarityVote is the outcome of similarity voting: the votes of the winning bin, its index, and the
// matches consistent with it.
type SimilarityVote struct {
	Votes   int
	Bin     int
	Matches keypoints.DescriptorMatches
}

// SimilarityVoter votes for the similarity transform relating query and reference points through
// matches, whose Idx1 index query and Idx2 index ref.
type SimilarityVoter interface {
	Vote(query, ref []keypoints.FeaturePoint, matches keypoints.DescriptorMatches,
		queryWidth, queryHeight, refWidth, refHeight int) (SimilarityVote, bool)
}

// ReferenceCorners returns the corners of a width x height image, clockwise from the origin.
func ReferenceCorners(width, height int) []r2.Point {
	w, h := float64(width), float64(height)
	return []r2.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
}

// CheckHomographyHeuristics rejects homographies that cannot be the view of a refWidth x refHeight plane:
// the reference corners, mapped through the inverse of h, must form a convex quadrilateral whose
// smallest corner triangle is not degenerate.
func CheckHomographyHeuristics(h *transform.Homography, refWidth, refHeight int) bool {
	hinv, err := h.Inverse(heuristicInverseThreshold)
	if err != nil {
		return false
	}
	corners := ReferenceCorners(refWidth, refHeight)
	for i, c := range corners {
		corners[i] = hinv.Apply(c)
		if !utils.IsFinite(corners[i].X) || !utils.IsFinite(corners[i].Y) {
			return false
		}
	}
	tr := float64(refWidth*refHeight) * minTriangleAreaFraction
	if transform.SmallestTriangleArea(corners[0], corners[1], corners[2], corners[3]) < tr {
		return false
	}
	return transform.QuadrilateralConvex(corners[0], corners[1], corners[2], corners[3])
}

// FindInliers keeps the matches whose reference point, mapped through h, lands within threshold pixels
// of its query point. h maps reference coordinates to query coordinates.
func FindInliers(
	h *transform.Homography,
	query, ref []keypoints.FeaturePoint,
	matches keypoints.DescriptorMatches,
	threshold float64,
) keypoints.DescriptorMatches {
	thrSqr := threshold * threshold
	inliers := make(keypoints.DescriptorMatches, 0, len(matches))
	for _, m := range matches {
		p := h.Apply(ref[m.Idx2].Pt())
		q := query[m.Idx1]
		if utils.SquaredDistance(p.X, p.Y, q.X, q.Y) <= thrSqr {
			inliers = append(inliers, m)
		}
	}
	return inliers
}

// estimateHomography fits a reference to query homography to matches and checks it.
func estimateHomography(
	estimator HomographyEstimator,
	query, ref []keypoints.FeaturePoint,
	matches keypoints.DescriptorMatches,
	refWidth, refHeight int,
) (*transform.Homography, bool) {
	src := make([]r2.Point, len(matches))
	dst := make([]r2.Point, len(matches))
	for i, m := range matches {
		src[i] = ref[m.Idx2].Pt()
		dst[i] = query[m.Idx1].Pt()
	}
	h, ok := estimator.EstimateHomography(src, dst, ReferenceCorners(refWidth, refHeight))
	if !ok {
		return nil, false
	}
	if !CheckHomographyHeuristics(&h, refWidth, refHeight) {
		return nil, false
	}
	return &h, true
}
