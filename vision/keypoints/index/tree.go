// Package index implements a hierarchical k-medoids tree for approximate nearest neighbour search over
// binary descriptors under the Hamming distance.
package index

import (
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	nftutils "go.viam.com/nftrack/utils"
)

// Config contains the parameters of a BinaryHierarchicalClustering.
type Config struct {
	NumCenters         int `json:"num_centers"`
	NumHypotheses      int `json:"num_hypotheses"`
	MaxNodesToPop      int `json:"max_nodes_to_pop"`
	MinFeaturesPerNode int `json:"min_features_per_node"`
	Seed               int `json:"seed"`
}

// DefaultConfig returns the index defaults.
func DefaultConfig() *Config {
	return &Config{
		NumCenters:         8,
		NumHypotheses:      1,
		MaxNodesToPop:      8,
		MinFeaturesPerNode: 16,
		Seed:               1234,
	}
}

// Validate ensures all parts of the Config are valid.
func (config *Config) Validate(path string) error {
	var errs error
	if config.NumCenters < 2 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("num_centers should be >= 2")))
	}
	if config.NumHypotheses < 1 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("num_hypotheses should be >= 1")))
	}
	if config.MaxNodesToPop < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("max_nodes_to_pop should be >= 0")))
	}
	if config.MinFeaturesPerNode < 1 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("min_features_per_node should be >= 1")))
	}
	return errs
}

// node is an entry of the tree arena. Internal nodes hold the descriptor of their cluster center and the
// arena positions of their children. Leaves hold feature indices.
type node struct {
	center       []byte
	children     []int
	leaf         bool
	reverseIndex []int
}

// BinaryHierarchicalClustering is a tree of binary descriptor clusters. It is immutable once built, so
// any number of goroutines may query it as long as each uses its own QueryContext.
type BinaryHierarchicalClustering struct {
	cfg             *Config
	bytesPerFeature int
	numFeatures     int
	nodes           []node
	kmedoids        *KMedoids
}

// New creates an empty index. A nil config uses DefaultConfig.
func New(cfg *Config) (*BinaryHierarchicalClustering, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate("index"); err != nil {
		return nil, err
	}
	return &BinaryHierarchicalClustering{cfg: cfg}, nil
}

// Build clusters the first numFeatures descriptors of features, each bytesPerFeature wide. Any
// previous tree is discarded. Building twice from the same input yields the same tree.
func (t *BinaryHierarchicalClustering) Build(features []byte, bytesPerFeature, numFeatures int) error {
	if bytesPerFeature <= 0 {
		return errors.Errorf("bytes per feature must be positive, got %d", bytesPerFeature)
	}
	if numFeatures < 0 || len(features) < bytesPerFeature*numFeatures {
		return errors.Errorf("feature buffer of %d bytes cannot hold %d features of %d bytes",
			len(features), numFeatures, bytesPerFeature)
	}
	t.bytesPerFeature = bytesPerFeature
	t.numFeatures = numFeatures
	t.nodes = t.nodes[:0]
	t.kmedoids = NewKMedoids(t.cfg.NumCenters, t.cfg.NumHypotheses, NewRand(t.cfg.Seed))

	indices := make([]int, numFeatures)
	for i := range indices {
		indices[i] = i
	}
	root := t.newNode(nil)
	return t.build(root, features, indices)
}

func (t *BinaryHierarchicalClustering) newNode(center []byte) int {
	t.nodes = append(t.nodes, node{center: center})
	return len(t.nodes) - 1
}

func (t *BinaryHierarchicalClustering) makeLeaf(n int, indices []int) {
	t.nodes[n].leaf = true
	t.nodes[n].reverseIndex = append([]int(nil), indices...)
}

func (t *BinaryHierarchicalClustering) build(n int, features []byte, indices []int) error {
	if len(indices) <= nftutils.MaxInt(t.kmedoids.K(), t.cfg.MinFeaturesPerNode) {
		t.makeLeaf(n, indices)
		return nil
	}
	assignment, err := t.kmedoids.Assign(features, t.bytesPerFeature, indices)
	if err != nil {
		return err
	}

	// clusters are keyed by the feature index of their center
	clusters := make(map[int][]int)
	for i, a := range assignment {
		center := indices[a]
		clusters[center] = append(clusters[center], indices[i])
	}
	if len(clusters) == 1 {
		t.makeLeaf(n, indices)
		return nil
	}

	centers := make([]int, 0, len(clusters))
	for c := range clusters {
		centers = append(centers, c)
	}
	sort.Ints(centers)

	for _, c := range centers {
		center := make([]byte, t.bytesPerFeature)
		copy(center, feature(features, t.bytesPerFeature, c))
		child := t.newNode(center)
		t.nodes[n].children = append(t.nodes[n].children, child)
		if err := t.build(child, features, clusters[c]); err != nil {
			return err
		}
	}
	return nil
}

// QueryContext holds the scratch state of a query. A context may be reused across queries but not
// shared between goroutines.
type QueryContext struct {
	queue  nodeQueue
	result []int
	popped int
}

// NewQueryContext returns an empty query context.
func NewQueryContext() *QueryContext {
	return &QueryContext{}
}

func (qc *QueryContext) reset() {
	qc.queue.Reset()
	qc.result = qc.result[:0]
	qc.popped = 0
}

// Query returns the indices of candidate neighbours of f.
func (t *BinaryHierarchicalClustering) Query(f []byte) []int {
	return t.QueryWithContext(NewQueryContext(), f)
}

// QueryWithContext returns the indices of candidate neighbours of f. The search descends to the nearest
// children, treating ties as equally near, and then backtracks into the closest queued nodes until
// MaxNodesToPop nodes were popped. The returned slice aliases qc and is overwritten by its next use.
func (t *BinaryHierarchicalClustering) QueryWithContext(qc *QueryContext, f []byte) []int {
	qc.reset()
	if len(t.nodes) == 0 {
		return qc.result
	}
	t.query(qc, 0, f)
	return qc.result
}

func (t *BinaryHierarchicalClustering) query(qc *QueryContext, n int, f []byte) {
	nd := &t.nodes[n]
	if nd.leaf {
		qc.result = append(qc.result, nd.reverseIndex...)
		return
	}
	for _, c := range t.nearest(qc, nd, f) {
		t.query(qc, c, f)
	}
	if qc.popped < t.cfg.MaxNodesToPop && qc.queue.Len() > 0 {
		item := qc.queue.Pop()
		qc.popped++
		t.query(qc, item.node, f)
	}
}

// nearest returns the children of nd closest to f and queues the others.
func (t *BinaryHierarchicalClustering) nearest(qc *QueryContext, nd *node, f []byte) []int {
	dists := make([]int, len(nd.children))
	minIdx := 0
	for i, c := range nd.children {
		dists[i] = nftutils.HammingDistance(t.nodes[c].center, f)
		if dists[i] < dists[minIdx] {
			minIdx = i
		}
	}
	out := []int{nd.children[minIdx]}
	for i, c := range nd.children {
		switch {
		case i == minIdx:
		case dists[i] == dists[minIdx]:
			out = append(out, c)
		default:
			qc.queue.Insert(queueItem{node: c, distance: dists[i]})
		}
	}
	return out
}

// NumFeatures returns the number of features the index was built over.
func (t *BinaryHierarchicalClustering) NumFeatures() int {
	return t.numFeatures
}

// NumNodes returns the number of nodes, including the root.
func (t *BinaryHierarchicalClustering) NumNodes() int {
	return len(t.nodes)
}

// NumLeaves returns the number of leaves.
func (t *BinaryHierarchicalClustering) NumLeaves() int {
	leaves := 0
	for _, n := range t.nodes {
		if n.leaf {
			leaves++
		}
	}
	return leaves
}

// Depth returns the number of nodes on the longest path from the root to a leaf.
func (t *BinaryHierarchicalClustering) Depth() int {
	if len(t.nodes) == 0 {
		return 0
	}
	var depth func(n int) int
	depth = func(n int) int {
		d := 0
		for _, c := range t.nodes[n].children {
			d = nftutils.MaxInt(d, depth(c))
		}
		return d + 1
	}
	return depth(0)
}
