package recognition

import (
	"context"
	"image"
	"runtime"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"go.viam.com/nftrack/logging"
	"go.viam.com/nftrack/rimage/transform"
	"go.viam.com/nftrack/vision/keypoints"
)

var (
	// ErrNoMatch is returned by a query when no keyframe matched the frame.
	ErrNoMatch = errors.New("no keyframe matched")
	// ErrKeyframeExists is returned when adding a keyframe under an id already in use.
	ErrKeyframeExists = errors.New("keyframe id already exists")
)

// QueryResult is the best keyframe found by a query.
type QueryResult struct {
	ID int
	// Homography maps keyframe coordinates to query frame coordinates.
	Homography transform.Homography
	// Inliers index the query features in Idx1 and the keyframe features in Idx2.
	Inliers keypoints.DescriptorMatches
}

// VisualDatabase holds reference keyframes by id and finds the one seen in a query frame. It is safe
// for concurrent use.
type VisualDatabase struct {
	cfg       *VisualDatabaseConfig
	estimator HomographyEstimator
	voter     SimilarityVoter
	logger    logging.Logger

	mu        sync.RWMutex
	keyframes map[int]*Keyframe

	extractMu sync.Mutex
	extractor *keypoints.FeatureExtractor
}

// NewVisualDatabase creates an empty database. A nil config uses DefaultVisualDatabaseConfig.
func NewVisualDatabase(
	cfg *VisualDatabaseConfig,
	estimator HomographyEstimator,
	voter SimilarityVoter,
	logger logging.Logger,
) (*VisualDatabase, error) {
	if cfg == nil {
		cfg = DefaultVisualDatabaseConfig()
	}
	if err := cfg.Validate("visual_database"); err != nil {
		return nil, err
	}
	if estimator == nil {
		return nil, errors.New("visual database needs a homography estimator")
	}
	if voter == nil {
		return nil, errors.New("visual database needs a similarity voter")
	}
	logger = logging.OrGlobal(logger)
	fe, err := keypoints.NewFeatureExtractor(cfg.FeatureExtractorConfig(), logger.Sublogger("features"))
	if err != nil {
		return nil, err
	}
	return &VisualDatabase{
		cfg:       cfg,
		estimator: estimator,
		voter:     voter,
		logger:    logger,
		keyframes: make(map[int]*Keyframe),
		extractor: fe,
	}, nil
}

// Size returns the number of keyframes.
func (db *VisualDatabase) Size() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.keyframes)
}

// Keyframe returns the keyframe stored under id.
func (db *VisualDatabase) Keyframe(id int) (*Keyframe, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	kf, ok := db.keyframes[id]
	return kf, ok
}

// IDs returns the keyframe ids in ascending order.
func (db *VisualDatabase) IDs() []int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.sortedIDs()
}

func (db *VisualDatabase) sortedIDs() []int {
	ids := lo.Keys(db.keyframes)
	sort.Ints(ids)
	return ids
}

func (db *VisualDatabase) has(id int) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.keyframes[id]
	return ok
}

// extract describes img with the shared extractor.
func (db *VisualDatabase) extract(img *image.Gray) (*Keyframe, error) {
	db.extractMu.Lock()
	defer db.extractMu.Unlock()
	return NewKeyframe(db.extractor, img)
}

func (db *VisualDatabase) indexKeyframe(kf *Keyframe) error {
	if !db.cfg.UseFeatureIndex {
		return nil
	}
	return kf.BuildIndex(db.cfg.Index)
}

// AddImage describes img, indexes its features and stores it under id.
func (db *VisualDatabase) AddImage(id int, img *image.Gray) error {
	if db.has(id) {
		return errors.Wrapf(ErrKeyframeExists, "id %d", id)
	}
	kf, err := db.extract(img)
	if err != nil {
		return errors.Wrapf(err, "cannot describe image %d", id)
	}
	if err := db.indexKeyframe(kf); err != nil {
		return err
	}
	db.logger.Infow("added image", "id", id, "features", kf.Store.Size())
	return db.AddKeyframe(id, kf)
}

// AddImages adds several images at once, describing them concurrently. Nothing is added if any id is
// already in use or any image fails.
func (db *VisualDatabase) AddImages(ctx context.Context, images map[int]*image.Gray) error {
	ids := lo.Keys(images)
	sort.Ints(ids)
	for _, id := range ids {
		if db.has(id) {
			return errors.Wrapf(ErrKeyframeExists, "id %d", id)
		}
	}

	built := make([]*Keyframe, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fe, err := keypoints.NewFeatureExtractor(db.cfg.FeatureExtractorConfig(), db.logger.Sublogger("features"))
			if err != nil {
				return err
			}
			kf, err := NewKeyframe(fe, images[id])
			if err != nil {
				return errors.Wrapf(err, "cannot describe image %d", id)
			}
			if err := db.indexKeyframe(kf); err != nil {
				return err
			}
			built[i] = kf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	for _, id := range ids {
		if _, ok := db.keyframes[id]; ok {
			return errors.Wrapf(ErrKeyframeExists, "id %d", id)
		}
	}
	for i, id := range ids {
		db.keyframes[id] = built[i]
	}
	db.logger.Infow("added images", "count", len(ids))
	return nil
}

// AddKeyframe stores an already described keyframe under id.
func (db *VisualDatabase) AddKeyframe(id int, kf *Keyframe) error {
	if kf == nil || kf.Store == nil {
		return errors.New("cannot add an empty keyframe")
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.keyframes[id]; ok {
		return errors.Wrapf(ErrKeyframeExists, "id %d", id)
	}
	db.keyframes[id] = kf
	return nil
}

// Erase removes the keyframe stored under id and reports whether there was one.
func (db *VisualDatabase) Erase(id int) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.keyframes[id]; !ok {
		return false
	}
	delete(db.keyframes, id)
	return true
}

// Query describes img and matches it against every keyframe.
func (db *VisualDatabase) Query(img *image.Gray) (*QueryResult, error) {
	kf, err := db.extract(img)
	if err != nil {
		return nil, errors.Wrap(err, "cannot describe query image")
	}
	db.logger.Debugw("query features", "features", kf.Store.Size())
	return db.QueryKeyframe(kf)
}

// QueryKeyframe matches query against every keyframe, in ascending id order, and returns the one with
// the most homography inliers. It returns ErrNoMatch when no keyframe reaches MinNumInliers.
func (db *VisualDatabase) QueryKeyframe(query *Keyframe) (*QueryResult, error) {
	if query == nil || query.Store == nil {
		return nil, errors.New("cannot query with an empty keyframe")
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	var best *QueryResult
	for _, id := range db.sortedIDs() {
		h, inliers, ok := db.matchKeyframe(query, db.keyframes[id])
		if !ok {
			continue
		}
		db.logger.Debugw("keyframe candidate", "id", id, "inliers", len(inliers))
		if best == nil || len(inliers) > len(best.Inliers) {
			best = &QueryResult{ID: id, Homography: *h, Inliers: inliers}
		}
	}
	if best == nil {
		db.logger.Infow("query matched no keyframe", "keyframes", len(db.keyframes))
		return nil, ErrNoMatch
	}
	db.logger.Infow("query matched", "id", best.ID, "inliers", len(best.Inliers))
	return best, nil
}

func (db *VisualDatabase) match(query, ref *Keyframe) keypoints.DescriptorMatches {
	if db.cfg.UseFeatureIndex && ref.Index != nil {
		return keypoints.MatchFREAKDescriptorsIndexed(query.Store, ref.Store, ref.Index, db.cfg.Matching, db.logger)
	}
	return keypoints.MatchFREAKDescriptors(query.Store, ref.Store, db.cfg.Matching, db.logger)
}

// verify votes for a similarity, fits a homography to the consistent matches and returns its inliers.
func (db *VisualDatabase) verify(
	query, ref *Keyframe,
	matches keypoints.DescriptorMatches,
) (*transform.Homography, keypoints.DescriptorMatches, bool) {
	queryPts, refPts := query.Points(), ref.Points()
	vote, ok := db.voter.Vote(queryPts, refPts, matches, query.Width, query.Height, ref.Width, ref.Height)
	if !ok {
		return nil, nil, false
	}
	h, ok := estimateHomography(db.estimator, queryPts, refPts, vote.Matches, ref.Width, ref.Height)
	if !ok {
		return nil, nil, false
	}
	return h, FindInliers(h, queryPts, refPts, vote.Matches, db.cfg.HomographyInlierThreshold), true
}

// matchKeyframe runs the two-pass verification of query against ref. The second pass re-matches
// around the first homography to collect correspondences the ratio test missed.
func (db *VisualDatabase) matchKeyframe(query, ref *Keyframe) (*transform.Homography, keypoints.DescriptorMatches, bool) {
	minInliers := db.cfg.MinNumInliers
	matches := db.match(query, ref)
	if len(matches) < minInliers {
		return nil, nil, false
	}
	h, inliers, ok := db.verify(query, ref, matches)
	if !ok || len(inliers) < minInliers {
		return nil, nil, false
	}

	// the matcher maps query points into the keyframe
	hinv, err := h.Inverse(heuristicInverseThreshold)
	if err != nil {
		return nil, nil, false
	}
	matches, err = keypoints.MatchFREAKDescriptorsWithHomography(
		query.Store, ref.Store, hinv, db.cfg.RematchSpatialThreshold, db.cfg.Matching, db.logger)
	if err != nil || len(matches) < minInliers {
		return nil, nil, false
	}
	h, inliers, ok = db.verify(query, ref, matches)
	if !ok || len(inliers) < minInliers {
		return nil, nil, false
	}
	return h, inliers, true
}
