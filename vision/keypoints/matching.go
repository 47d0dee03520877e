package keypoints

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/nftrack/logging"
	"go.viam.com/nftrack/rimage/transform"
	"go.viam.com/nftrack/utils"
	"go.viam.com/nftrack/vision/keypoints/index"
)

// DescriptorMatch contains the index of a match in the first and second set of descriptors.
type DescriptorMatch struct {
	Idx1 int
	Idx2 int
}

// DescriptorMatches is an ordered list of matches.
type DescriptorMatches []DescriptorMatch

// homographyInverseThreshold is the smallest determinant magnitude accepted when inverting a homography.
const homographyInverseThreshold = 0

// ratioCandidate tracks the best and second best distance seen for one query descriptor.
type ratioCandidate struct {
	first, second int
	bestIndex     int
}

func newRatioCandidate() ratioCandidate {
	return ratioCandidate{first: math.MaxInt, second: math.MaxInt, bestIndex: -1}
}

func (rc *ratioCandidate) update(d, j int) {
	if d < rc.first {
		rc.second = rc.first
		rc.first = d
		rc.bestIndex = j
	} else if d < rc.second {
		rc.second = d
	}
}

// accept applies the ratio test. A lone candidate is always accepted.
func (rc *ratioCandidate) accept(threshold float64) bool {
	if rc.bestIndex < 0 {
		return false
	}
	if rc.second == math.MaxInt {
		return true
	}
	return float64(rc.first)/float64(rc.second) <= threshold
}

func matchingConfigOrDefault(cfg *FREAKMatchingConfig) *FREAKMatchingConfig {
	if cfg == nil {
		return DefaultFREAKMatchingConfig()
	}
	return cfg
}

// MatchFREAKDescriptors matches every feature of s1 to its nearest feature of s2 with the same polarity,
// keeping it when the nearest distance is at most cfg.RatioThreshold times the second nearest.
func MatchFREAKDescriptors(s1, s2 *BinaryFeatureStore, cfg *FREAKMatchingConfig, logger logging.Logger) DescriptorMatches {
	cfg = matchingConfigOrDefault(cfg)
	if s1.Size() == 0 || s2.Size() == 0 {
		return DescriptorMatches{}
	}
	matches := make(DescriptorMatches, 0, s1.Size())
	for i := 0; i < s1.Size(); i++ {
		p1 := s1.Point(i)
		f1 := s1.Feature(i)
		rc := newRatioCandidate()
		for j := 0; j < s2.Size(); j++ {
			if p1.Maxima != s2.Point(j).Maxima {
				continue
			}
			rc.update(utils.HammingDistance(f1, s2.Feature(j)), j)
		}
		if rc.accept(cfg.RatioThreshold) {
			matches = append(matches, DescriptorMatch{Idx1: i, Idx2: rc.bestIndex})
		}
	}
	logging.OrGlobal(logger).Debugw("ratio matching", "features1", s1.Size(), "features2", s2.Size(), "matches", len(matches))
	return matches
}

// MatchFREAKDescriptorsIndexed is MatchFREAKDescriptors restricted to the candidates idx returns for
// each feature of s1. idx must have been built over the descriptors of s2.
func MatchFREAKDescriptorsIndexed(
	s1, s2 *BinaryFeatureStore,
	idx *index.BinaryHierarchicalClustering,
	cfg *FREAKMatchingConfig,
	logger logging.Logger,
) DescriptorMatches {
	cfg = matchingConfigOrDefault(cfg)
	if s1.Size() == 0 || s2.Size() == 0 || idx == nil {
		return DescriptorMatches{}
	}
	qc := index.NewQueryContext()
	matches := make(DescriptorMatches, 0, s1.Size())
	for i := 0; i < s1.Size(); i++ {
		p1 := s1.Point(i)
		f1 := s1.Feature(i)
		rc := newRatioCandidate()
		for _, j := range idx.QueryWithContext(qc, f1) {
			if p1.Maxima != s2.Point(j).Maxima {
				continue
			}
			rc.update(utils.HammingDistance(f1, s2.Feature(j)), j)
		}
		if rc.accept(cfg.RatioThreshold) {
			matches = append(matches, DescriptorMatch{Idx1: i, Idx2: rc.bestIndex})
		}
	}
	logging.OrGlobal(logger).Debugw("indexed ratio matching", "features1", s1.Size(), "features2", s2.Size(), "matches", len(matches))
	return matches
}

// MatchFREAKDescriptorsWithHomography is MatchFREAKDescriptors where the candidates for a feature of s1
// are limited to the features of s2 within tr pixels of its image under H. H maps s1 coordinates to s2
// coordinates.
func MatchFREAKDescriptorsWithHomography(
	s1, s2 *BinaryFeatureStore,
	h *transform.Homography,
	tr float64,
	cfg *FREAKMatchingConfig,
	logger logging.Logger,
) (DescriptorMatches, error) {
	cfg = matchingConfigOrDefault(cfg)
	if h == nil {
		return nil, errors.New("homography gated matching needs a homography")
	}
	if s1.Size() == 0 || s2.Size() == 0 {
		return DescriptorMatches{}, nil
	}
	trSqr := tr * tr
	matches := make(DescriptorMatches, 0, s1.Size())
	for i := 0; i < s1.Size(); i++ {
		p1 := s1.Point(i)
		f1 := s1.Feature(i)
		mapped := h.Apply(p1.Pt())
		rc := newRatioCandidate()
		for j := 0; j < s2.Size(); j++ {
			p2 := s2.Point(j)
			if p1.Maxima != p2.Maxima {
				continue
			}
			if squaredDistance(mapped, p2.Pt()) > trSqr {
				continue
			}
			rc.update(utils.HammingDistance(f1, s2.Feature(j)), j)
		}
		if rc.accept(cfg.RatioThreshold) {
			matches = append(matches, DescriptorMatch{Idx1: i, Idx2: rc.bestIndex})
		}
	}
	logging.OrGlobal(logger).Debugw("homography gated ratio matching", "threshold", tr, "matches", len(matches))
	return matches, nil
}

func squaredDistance(a, b r2.Point) float64 {
	return utils.SquaredDistance(a.X, a.Y, b.X, b.Y)
}

// pointGate decides whether a feature at p may be matched to a candidate at q.
type pointGate func(p, q r2.Point) bool

func openGate(_, _ r2.Point) bool {
	return true
}

func distanceGate(tr float64) pointGate {
	if tr <= 0 {
		return openGate
	}
	trSqr := tr * tr
	return func(p, q r2.Point) bool {
		return squaredDistance(p, q) <= trSqr
	}
}

// nearestUnder returns, for every feature of from, the index of its nearest feature of to with the same
// polarity that passes the gate, or -1. project maps a from point before it is gated.
func nearestUnder(from, to *BinaryFeatureStore, project func(r2.Point) r2.Point, gate pointGate) []int {
	best := make([]int, from.Size())
	for i := 0; i < from.Size(); i++ {
		pf := from.Point(i)
		ff := from.Feature(i)
		mapped := project(pf.Pt())
		bestIndex := -1
		bestDist := math.MaxInt
		for j := 0; j < to.Size(); j++ {
			pt := to.Point(j)
			if pf.Maxima != pt.Maxima {
				continue
			}
			if !gate(mapped, pt.Pt()) {
				continue
			}
			if d := utils.HammingDistance(ff, to.Feature(j)); d < bestDist {
				bestDist = d
				bestIndex = j
			}
		}
		best[i] = bestIndex
	}
	return best
}

func identity(p r2.Point) r2.Point {
	return p
}

// mutualMatches keeps the pairs that are each other's nearest neighbour, ordered by their s2 index.
func mutualMatches(forward, backward []int) DescriptorMatches {
	matches := make(DescriptorMatches, 0, len(backward))
	for j, i := range backward {
		if i >= 0 && forward[i] == j {
			matches = append(matches, DescriptorMatch{Idx1: i, Idx2: j})
		}
	}
	return matches
}

// MatchMutualFREAKDescriptors keeps the pairs whose features are each other's nearest neighbour of the
// same polarity. A positive cfg.SpatialThreshold also requires the two points to lie within that many
// pixels of each other.
func MatchMutualFREAKDescriptors(s1, s2 *BinaryFeatureStore, cfg *FREAKMatchingConfig, logger logging.Logger) DescriptorMatches {
	cfg = matchingConfigOrDefault(cfg)
	if s1.Size() == 0 || s2.Size() == 0 {
		return DescriptorMatches{}
	}
	forward := nearestUnder(s1, s2, identity, distanceGate(cfg.SpatialThreshold))
	backward := nearestUnder(s2, s1, identity, distanceGate(cfg.reverseThreshold()))
	matches := mutualMatches(forward, backward)
	logging.OrGlobal(logger).Debugw("mutual matching", "features1", s1.Size(), "features2", s2.Size(), "matches", len(matches))
	return matches
}

// MatchMutualFREAKDescriptorsWithHomography is the mutual matcher where the search from s1 to s2 maps
// points with H and keeps candidates within tr2 pixels, and the search back from s2 to s1 maps points
// with the inverse of H and keeps candidates within tr1 pixels. H maps s1 coordinates to s2 coordinates.
func MatchMutualFREAKDescriptorsWithHomography(
	s1, s2 *BinaryFeatureStore,
	h *transform.Homography,
	tr1, tr2 float64,
	logger logging.Logger,
) (DescriptorMatches, error) {
	if h == nil {
		return nil, errors.New("homography gated matching needs a homography")
	}
	hinv, err := h.Inverse(homographyInverseThreshold)
	if err != nil {
		return nil, err
	}
	if s1.Size() == 0 || s2.Size() == 0 {
		return DescriptorMatches{}, nil
	}
	trSqr1, trSqr2 := tr1*tr1, tr2*tr2
	forward := nearestUnder(s1, s2, h.Apply, func(p, q r2.Point) bool {
		return squaredDistance(p, q) <= trSqr2
	})
	backward := nearestUnder(s2, s1, hinv.Apply, func(p, q r2.Point) bool {
		return squaredDistance(p, q) <= trSqr1
	})
	matches := mutualMatches(forward, backward)
	logging.OrGlobal(logger).Debugw("homography gated mutual matching", "matches", len(matches))
	return matches, nil
}

// MatchDistances returns the Hamming distance of every match.
func MatchDistances(s1, s2 *BinaryFeatureStore, matches DescriptorMatches) []float64 {
	out := make([]float64, len(matches))
	for i, m := range matches {
		out[i] = float64(s1.Distance(m.Idx1, s2, m.Idx2))
	}
	return out
}

// MatchedPoints returns the points of both stores that take part in matches, in match order.
func MatchedPoints(s1, s2 *BinaryFeatureStore, matches DescriptorMatches) ([]FeaturePoint, []FeaturePoint, error) {
	pts1 := make([]FeaturePoint, len(matches))
	pts2 := make([]FeaturePoint, len(matches))
	for i, m := range matches {
		if m.Idx1 < 0 || m.Idx1 >= s1.Size() {
			return nil, nil, utils.NewOutOfRangeError("first store", m.Idx1, s1.Size())
		}
		if m.Idx2 < 0 || m.Idx2 >= s2.Size() {
			return nil, nil, utils.NewOutOfRangeError("second store", m.Idx2, s2.Size())
		}
		pts1[i] = s1.Point(m.Idx1)
		pts2[i] = s2.Point(m.Idx2)
	}
	return pts1, pts2, nil
}
