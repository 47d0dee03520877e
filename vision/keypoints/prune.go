package keypoints

import (
	"math"
	"sort"

	"github.com/samber/lo"
)

type scoredIndex struct {
	score float64
	index int
}

// PruneFeatures limits the number of points to the configured maximum by splitting the image into a grid
// of buckets and keeping the strongest |score| points of each bucket. Every bucket gets the same quota,
// so sparse buckets do not donate their leftover share. Points come back bucket by bucket.
func (d *DoGDetector) PruneFeatures(points []DetectedPoint, width, height int) []DetectedPoint {
	maxPoints := d.cfg.MaxNumFeaturePoints
	if len(points) <= maxPoints {
		return points
	}
	nx, ny := d.cfg.NumBucketsX, d.cfg.NumBucketsY
	perBucket := maxPoints / (nx * ny)
	dx := int(math.Ceil(float64(width) / float64(nx)))
	dy := int(math.Ceil(float64(height) / float64(ny)))

	buckets := make([][]scoredIndex, nx*ny)
	for i, p := range points {
		binX := int(p.X / float64(dx))
		binY := int(p.Y / float64(dy))
		if binX < 0 || binX >= nx || binY < 0 || binY >= ny {
			continue
		}
		b := binX*ny + binY
		buckets[b] = append(buckets[b], scoredIndex{score: math.Abs(p.Score), index: i})
	}

	pruned := make([]DetectedPoint, 0, maxPoints)
	for _, bucket := range buckets {
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].score > bucket[j].score
		})
		keep := lo.Slice(bucket, 0, perBucket)
		pruned = append(pruned, lo.Map(keep, func(s scoredIndex, _ int) DetectedPoint {
			return points[s.index]
		})...)
	}
	return pruned
}
