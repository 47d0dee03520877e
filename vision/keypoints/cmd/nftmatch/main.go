// Package main is a command line tool to detect FREAK features on images and match them.
package main

import (
	"image"
	"os"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/nftrack/logging"
	"go.viam.com/nftrack/rimage"
	"go.viam.com/nftrack/vision/keypoints"
	"go.viam.com/nftrack/vision/keypoints/index"
)

const (
	flagImage     = "image"
	flagQuery     = "query"
	flagReference = "reference"
	flagOut       = "out"
	flagConfig    = "config"
	flagMaxSize   = "max-size"
	flagMutual    = "mutual"
	flagIndex     = "index"
	flagDebug     = "debug"
)

var logger = logging.NewLogger("nftmatch")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	extractionFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  flagConfig,
			Usage: "load the feature extractor configuration from `FILE`",
		},
		&cli.IntFlag{
			Name:  flagMaxSize,
			Usage: "shrink images so that no side exceeds `N` pixels before detection",
		},
	}
	return &cli.App{
		Name:  "nftmatch",
		Usage: "detect and match natural features",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("nftmatch")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "detect",
				Usage: "detect the features of an image and plot them",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: flagImage, Required: true, Usage: "image `FILE`"},
					&cli.StringFlag{Name: flagOut, Value: "features.png", Usage: "plot `FILE`"},
				}, extractionFlags...),
				Action: detectAction,
			},
			{
				Name:  "match",
				Usage: "match the features of a query image against a reference image and plot the matches",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: flagQuery, Required: true, Usage: "query image `FILE`"},
					&cli.StringFlag{Name: flagReference, Required: true, Usage: "reference image `FILE`"},
					&cli.StringFlag{Name: flagOut, Value: "matches.png", Usage: "plot `FILE`"},
					&cli.BoolFlag{Name: flagMutual, Usage: "keep mutual nearest neighbours instead of applying the ratio test"},
					&cli.BoolFlag{Name: flagIndex, Usage: "search the reference features through a clustering index"},
				}, extractionFlags...),
				Action: matchAction,
			},
		},
	}
}

func extractorConfig(c *cli.Context) (*keypoints.FeatureExtractorConfig, error) {
	if path := c.String(flagConfig); path != "" {
		return keypoints.LoadFeatureExtractorConfig(path)
	}
	return keypoints.DefaultFeatureExtractorConfig(), nil
}

func loadImage(c *cli.Context, path string) (*image.Gray, error) {
	img, err := rimage.ReadGrayImageFromFile(path)
	if err != nil {
		return nil, err
	}
	return rimage.ShrinkToFit(img, c.Int(flagMaxSize)), nil
}

func detectAction(c *cli.Context) error {
	cfg, err := extractorConfig(c)
	if err != nil {
		return err
	}
	img, err := loadImage(c, c.String(flagImage))
	if err != nil {
		return err
	}
	store, err := keypoints.ComputeFREAKFeatures(img, cfg, logger)
	if err != nil {
		return err
	}
	maxima := 0
	for _, p := range store.Points() {
		if p.Maxima {
			maxima++
		}
	}
	logger.Infow("detected features", "image", c.String(flagImage), "features", store.Size(),
		"maxima", maxima, "minima", store.Size()-maxima)
	return keypoints.PlotFeaturePoints(img, store.Points(), c.String(flagOut))
}

func matchAction(c *cli.Context) error {
	cfg, err := extractorConfig(c)
	if err != nil {
		return err
	}
	fe, err := keypoints.NewFeatureExtractor(cfg, logger)
	if err != nil {
		return err
	}
	query, err := loadImage(c, c.String(flagQuery))
	if err != nil {
		return err
	}
	ref, err := loadImage(c, c.String(flagReference))
	if err != nil {
		return err
	}
	queryStore, err := fe.Extract(query)
	if err != nil {
		return errors.Wrap(err, "cannot describe query image")
	}
	refStore, err := fe.Extract(ref)
	if err != nil {
		return errors.Wrap(err, "cannot describe reference image")
	}

	var matches keypoints.DescriptorMatches
	switch {
	case c.Bool(flagMutual):
		matches = keypoints.MatchMutualFREAKDescriptors(queryStore, refStore, nil, logger)
	case c.Bool(flagIndex):
		idx, err := index.New(nil)
		if err != nil {
			return err
		}
		if err := idx.Build(refStore.Features(), refStore.BytesPerFeature(), refStore.Size()); err != nil {
			return err
		}
		logger.Debugw("built index", "nodes", idx.NumNodes(), "leaves", idx.NumLeaves(), "depth", idx.Depth())
		matches = keypoints.MatchFREAKDescriptorsIndexed(queryStore, refStore, idx, nil, logger)
	default:
		matches = keypoints.MatchFREAKDescriptors(queryStore, refStore, nil, logger)
	}

	logger.Infow("matched features", "query", queryStore.Size(), "reference", refStore.Size(), "matches", len(matches))
	if len(matches) > 0 {
		distances := keypoints.MatchDistances(queryStore, refStore, matches)
		median, err := stats.Median(distances)
		if err != nil {
			return err
		}
		mean, err := stats.Mean(distances)
		if err != nil {
			return err
		}
		logger.Infow("match distances", "median", median, "mean", mean)
	}
	return keypoints.PlotMatches(query, ref, queryStore, refStore, matches, c.String(flagOut))
}
