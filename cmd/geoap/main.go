// Command geoap clusters node embeddings with network-aware affinity
// propagation, searching for the preference that yields the requested number
// of clusters.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TrevorS/geoap"
	"github.com/TrevorS/geoap/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		red := color.New(color.FgRed, color.Bold).SprintFunc()
		if errors.Is(err, geoap.ErrNotConverged) {
			fmt.Fprintf(os.Stderr, "%s %v\n", red("Geometric AP did not converge:"),
				"increase max_iter or tune other hyperparameters")
			fmt.Fprintf(os.Stderr, "  %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geoap",
		Short: "Cluster embeddings with network-aware affinity propagation",
		Long: `geoap reads node embeddings and an interaction network, restricts each node
to exemplars within a network distance threshold, and searches the affinity
propagation preference until the number of clusters is within tolerance of
the desired count. Clusters and their network modularity are written under
<root>/data/output/<dataset>/clustering/.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("config", "", "YAML configuration file")
	f.String("dataset", "", "dataset name")
	f.String("embedding-method", "", "embedding method folder, e.g. gcn")
	f.String("embeddings", "", "embeddings file name")
	f.String("network", "", "network edge list file name")
	f.String("data-root", "", "project root holding data/output")
	f.Int("desired", 0, "desired number of clusters")
	f.Int("tolerance", 0, "allowed distance from the desired number of clusters")
	f.Float64("quantile", 0, "similarity quantile for the initial preference")
	f.Int("max-iter", 0, "maximum affinity propagation iterations")
	f.Int("convergence-iter", 0, "iterations without exemplar change that stop a run")
	f.Float64("damping", 0, "damping factor in [0.5, 1)")
	f.Float64("distance-threshold", 0, "largest network distance to an exemplar")
	f.String("similarity-metric", "", "network distance: shortest_path, weighted_path or none")
	f.Bool("save-mask", true, "write the neighbourhood mask")
	f.Int64("seed", 0, "seed for tie-breaking noise")
	f.Int("workers", 0, "similarity workers (0 = all CPUs)")
	f.String("metrics-file", "", "write Prometheus metrics to this file")
	f.String("log-env", "", "logging environment: local, dev or prod")
	f.String("log-level", "", "log level: debug, info, warn, error")

	return cmd
}

// loadConfig reads --config (or the defaults) and applies the flags the user
// set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()

	cfg := config.Default()
	if path, _ := f.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}

	setString := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	setInt := func(name string, dst *int) {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	setFloat := func(name string, dst *float64) {
		if f.Changed(name) {
			*dst, _ = f.GetFloat64(name)
		}
	}

	setString("dataset", &cfg.Dataset)
	setString("embedding-method", &cfg.Embedding.Method)
	setString("embeddings", &cfg.Embedding.File)
	setString("network", &cfg.Network.File)
	setString("data-root", &cfg.Output.Root)
	setInt("desired", &cfg.Search.DesiredClusters)
	setInt("max-iter", &cfg.Clustering.MaxIter)
	setInt("convergence-iter", &cfg.Clustering.ConvergenceIter)
	setFloat("damping", &cfg.Clustering.Damping)
	setString("similarity-metric", &cfg.Clustering.SimilarityMetric)
	setInt("workers", &cfg.Clustering.Workers)
	setString("metrics-file", &cfg.Output.MetricsFile)
	setString("log-env", &cfg.Logging.Env)
	setString("log-level", &cfg.Logging.Level)

	if f.Changed("quantile") {
		q, _ := f.GetFloat64("quantile")
		cfg.Search.Quantile = &q
	}
	if f.Changed("distance-threshold") {
		d, _ := f.GetFloat64("distance-threshold")
		cfg.Clustering.DistanceThreshold = &d
	}
	if f.Changed("tolerance") {
		tol, _ := f.GetInt("tolerance")
		cfg.Search.Tolerance = &tol
	}
	if f.Changed("save-mask") {
		save, _ := f.GetBool("save-mask")
		cfg.Clustering.SaveMask = &save
	}
	if f.Changed("seed") {
		cfg.Clustering.Seed, _ = f.GetInt64("seed")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}
