package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TrevorS/geoap"
	"github.com/TrevorS/geoap/internal/config"
	"github.com/TrevorS/geoap/internal/dataset"
	"github.com/TrevorS/geoap/internal/logger"
	"github.com/TrevorS/geoap/internal/metrics"
)

// run executes one clustering job: load inputs, search the preference and
// export the selected clustering.
func run(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("run_id", uuid.NewString()), zap.String("dataset", cfg.Dataset))

	layout := dataset.Layout{
		Root:             cfg.Output.Root,
		Dataset:          cfg.Dataset,
		EmbeddingMethod:  cfg.Embedding.Method,
		ClusteringMethod: cfg.Clustering.Method,
	}
	embeddingsPath := layout.EmbeddingsPath(cfg.Embedding.File)
	networkPath := layout.NetworkPath(cfg.Network.File)

	log.Info("starting",
		zap.String("embeddings", embeddingsPath),
		zap.String("network", networkPath),
		zap.String("similarity_metric", cfg.Clustering.SimilarityMetric),
		zap.Float64("distance_threshold", *cfg.Clustering.DistanceThreshold),
		zap.Float64("damping", cfg.Clustering.Damping),
		zap.Int("max_iter", cfg.Clustering.MaxIter),
		zap.Int("convergence_iter", cfg.Clustering.ConvergenceIter),
		zap.Int("desired_clusters", cfg.Search.DesiredClusters),
		zap.Int("tolerance", *cfg.Search.Tolerance),
	)

	if err := dataset.CheckInputs(embeddingsPath, networkPath); err != nil {
		return err
	}

	var (
		embeddings [][]float64
		edges      []geoap.Edge
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		embeddings, err = dataset.ReadEmbeddingsFile(embeddingsPath)
		return err
	})
	g.Go(func() error {
		var err error
		edges, err = dataset.ReadEdgeListFile(networkPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if top := dataset.MaxNode(edges); top >= len(embeddings) {
		return fmt.Errorf("%s references node %d but %s has %d embeddings: %w",
			networkPath, top, embeddingsPath, len(embeddings), geoap.ErrDimensionMismatch)
	}

	network, err := geoap.NewNetwork(len(embeddings), edges)
	if err != nil {
		return err
	}
	log.Info("inputs loaded",
		zap.Int("points", len(embeddings)),
		zap.Int("dims", len(embeddings[0])),
		zap.Int("edges", network.NumEdges()),
	)

	sim, err := geoap.NewSimilarityMatrix(embeddings, geoap.NegSquaredEuclidean{}, cfg.Clustering.Workers)
	if err != nil {
		return err
	}

	oracleCfg := geoap.DefaultOracleConfig()
	oracleCfg.AP = geoap.APConfig{
		Damping:         cfg.Clustering.Damping,
		MaxIter:         cfg.Clustering.MaxIter,
		ConvergenceIter: cfg.Clustering.ConvergenceIter,
		Seed:            cfg.Clustering.Seed,
	}
	oracleCfg.Mode = geoap.SimilarityMode(cfg.Clustering.SimilarityMetric)
	oracleCfg.DistanceThreshold = *cfg.Clustering.DistanceThreshold
	oracleCfg.Workers = cfg.Clustering.Workers
	oracleCfg.Dataset = cfg.Dataset
	oracleCfg.Logger = log

	oracle, err := geoap.NewGeometricOracle(embeddings, network, oracleCfg)
	if err != nil {
		return err
	}

	if *cfg.Clustering.SaveMask {
		maskPath := layout.MaskPath()
		if err := geoap.WriteMaskFile(maskPath, oracle.Len(), oracle.Mask()); err != nil {
			return err
		}
		log.Info("mask saved", zap.String("path", maskPath))
	}

	recorder := metrics.NewRecorder(cfg.Dataset)
	defer func() {
		if cfg.Output.MetricsFile == "" {
			return
		}
		if err := recorder.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			log.Warn("failed to write metrics", zap.Error(err))
		}
	}()

	searchCfg := geoap.SearchConfig{
		DesiredClusters:    cfg.Search.DesiredClusters,
		Tolerance:          *cfg.Search.Tolerance,
		InitialQuantile:    *cfg.Search.Quantile,
		QuantileStep:       cfg.Search.QuantileStep,
		RetryBudget:        cfg.Search.RetryBudget,
		MaxBootstrapProbes: cfg.Search.MaxBootstrapProbes,
		Logger:             log,
		Observer:           recorder,
	}
	searcher, err := geoap.NewSearcher(sim, oracle, searchCfg)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := searcher.Run(ctx)
	if err != nil {
		return err
	}

	outDir := layout.ClusteringDir()
	if err := geoap.Export(geoap.ExportConfig{
		Dir:            outDir,
		ClustersFile:   cfg.Output.ClustersFile,
		ModularityFile: cfg.Output.ModularityFile,
	}, res.Outcome); err != nil {
		return err
	}
	log.Info("clustering saved", zap.String("dir", outDir))

	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(stdout, "%s %d clusters (desired %d±%d)\n", green("✓"),
		res.Clusters, cfg.Search.DesiredClusters, *cfg.Search.Tolerance)
	fmt.Fprintf(stdout, "  Preference: %g after %d probes in %v\n",
		res.Preference, res.Probes, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(stdout, "  Modularity: %.4f\n", res.Outcome.Modularity)
	fmt.Fprintf(stdout, "  Output:     %s\n", cyan(outDir))
	return nil
}
