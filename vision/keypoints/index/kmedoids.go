package index

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/nftrack/utils"
)

// KMedoids partitions binary features around k of their own members. Each hypothesis draws k random
// centers and assigns every feature to its nearest center by Hamming distance. The hypothesis with the
// smallest total distance wins.
type KMedoids struct {
	k             int
	numHypotheses int
	rand          *Rand

	centers     []int
	assignment  []int
	hypothesis  []int
	randIndices []int
}

// NewKMedoids creates a clusterer that draws from rand.
func NewKMedoids(k, numHypotheses int, rand *Rand) *KMedoids {
	return &KMedoids{k: k, numHypotheses: numHypotheses, rand: rand, centers: make([]int, k)}
}

// K returns the number of centers.
func (km *KMedoids) K() int {
	return km.k
}

// Centers returns the positions, in the indices passed to the last Assign, of the chosen centers.
func (km *KMedoids) Centers() []int {
	return km.centers
}

func feature(features []byte, bytesPerFeature, i int) []byte {
	return features[i*bytesPerFeature : (i+1)*bytesPerFeature]
}

// Assign clusters the features named by indices. The returned slice holds, for every element of
// indices, the position in indices of its center. It aliases the clusterer and is overwritten by the
// next call.
func (km *KMedoids) Assign(features []byte, bytesPerFeature int, indices []int) ([]int, error) {
	if len(indices) < km.k {
		return nil, errors.Errorf("cannot pick %d centers from %d features", km.k, len(indices))
	}
	if km.k < 1 || km.numHypotheses < 1 {
		return nil, errors.Errorf("k (%d) and the number of hypotheses (%d) must be positive", km.k, km.numHypotheses)
	}
	n := len(indices)
	km.assignment = resizeInts(km.assignment, n)
	km.hypothesis = resizeInts(km.hypothesis, n)
	km.randIndices = resizeInts(km.randIndices, n)
	for i := range km.randIndices {
		km.randIndices[i] = i
	}

	bestDist := math.MaxInt
	for h := 0; h < km.numHypotheses; h++ {
		km.rand.ArrayShuffle(km.randIndices, km.k)
		dist := km.assignTo(km.hypothesis, features, bytesPerFeature, indices, km.randIndices[:km.k])
		if dist < bestDist {
			km.assignment, km.hypothesis = km.hypothesis, km.assignment
			copy(km.centers, km.randIndices[:km.k])
			bestDist = dist
		}
	}
	return km.assignment, nil
}

// assignTo writes the nearest center of every feature into assignment and returns the summed distance.
func (km *KMedoids) assignTo(assignment []int, features []byte, bytesPerFeature int, indices, centers []int) int {
	sum := 0
	for i, idx := range indices {
		f := feature(features, bytesPerFeature, idx)
		best := math.MaxInt
		for _, c := range centers {
			d := utils.HammingDistance(f, feature(features, bytesPerFeature, indices[c]))
			if d < best {
				assignment[i] = c
				best = d
			}
		}
		sum += best
	}
	return sum
}

func resizeInts(v []int, n int) []int {
	if cap(v) >= n {
		return v[:n]
	}
	return make([]int, n)
}
