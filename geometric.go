package geoap

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// OracleConfig controls GeometricOracle.
// Start with [DefaultOracleConfig] and override the fields you need.
type OracleConfig struct {
	// AP holds the message-passing hyperparameters.
	AP APConfig

	// Mode measures network distance between points. Default: shortest_path.
	Mode SimilarityMode

	// DistanceThreshold is the largest network distance at which a point may
	// still pick another as its exemplar. Must be >= 0. Default: 2.
	DistanceThreshold float64

	// Affinity scores embedding pairs. Default: NegSquaredEuclidean.
	Affinity Affinity

	// Workers controls parallelism of the similarity computation.
	// 0 means runtime.NumCPU().
	Workers int

	// Dataset names the input in logs.
	Dataset string

	// Logger receives one line per clustering run. Default: zap.NewNop().
	Logger *zap.Logger
}

// DefaultOracleConfig returns an OracleConfig with reasonable defaults.
func DefaultOracleConfig() OracleConfig {
	return OracleConfig{
		AP:                DefaultAPConfig(),
		Mode:              ModeShortestPath,
		DistanceThreshold: 2,
		Affinity:          NegSquaredEuclidean{},
	}
}

func applyOracleDefaults(cfg *OracleConfig) {
	if cfg.AP == (APConfig{}) {
		cfg.AP = DefaultAPConfig()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeShortestPath
	}
	if cfg.Affinity == nil {
		cfg.Affinity = NegSquaredEuclidean{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
}

// GeometricOracle runs affinity propagation on embeddings, restricted so that
// every point picks its exemplar from its network neighbourhood. It
// implements Oracle.
type GeometricOracle struct {
	n       int
	sim     []float64
	mask    []bool
	network *Network
	cfg     OracleConfig
}

// NewGeometricOracle computes embedding similarities and network
// neighbourhoods once; every Evaluate call reuses them.
func NewGeometricOracle(embeddings [][]float64, network *Network, cfg OracleConfig) (*GeometricOracle, error) {
	applyOracleDefaults(&cfg)
	if err := validateAPConfig(&cfg.AP); err != nil {
		return nil, err
	}
	if cfg.DistanceThreshold < 0 || math.IsNaN(cfg.DistanceThreshold) {
		return nil, fmt.Errorf("geoap: DistanceThreshold must be >= 0, got %f", cfg.DistanceThreshold)
	}
	if network == nil {
		return nil, fmt.Errorf("geoap: network is required: %w", ErrEmptyInput)
	}

	data, dims, err := flatten(embeddings)
	if err != nil {
		return nil, err
	}
	n := len(embeddings)
	if network.Len() != n {
		return nil, fmt.Errorf("geoap: %d embeddings but network has %d nodes: %w",
			n, network.Len(), ErrDimensionMismatch)
	}

	mask, err := network.Neighborhood(cfg.Mode, cfg.DistanceThreshold)
	if err != nil {
		return nil, err
	}

	return &GeometricOracle{
		n:       n,
		sim:     ComputePairwiseSimilaritiesParallel(data, n, dims, cfg.Affinity, resolveWorkers(cfg.Workers)),
		mask:    mask,
		network: network,
		cfg:     cfg,
	}, nil
}

// Mask returns the neighbourhood mask the oracle clusters under.
// The returned slice must not be modified.
func (o *GeometricOracle) Mask() []bool { return o.mask }

// Len returns the number of points.
func (o *GeometricOracle) Len() int { return o.n }

// Evaluate runs one clustering at the given preference. A run that does not
// converge yields no exemplars and all labels Unassigned; that is not an
// error.
func (o *GeometricOracle) Evaluate(ctx context.Context, preference float64) (*Outcome, error) {
	res, err := AffinityPropagation(ctx, o.sim, o.n, preference, o.mask, o.cfg.AP)
	if err != nil {
		return nil, err
	}
	q, err := o.network.Modularity(res.Labels)
	if err != nil {
		return nil, err
	}

	o.cfg.Logger.Debug("affinity propagation finished",
		zap.String("dataset", o.cfg.Dataset),
		zap.Float64("preference", preference),
		zap.Int("iterations", res.Iterations),
		zap.Bool("converged", res.Converged),
		zap.Int("exemplars", len(res.Exemplars)),
		zap.Float64("modularity", q),
	)

	return &Outcome{
		Exemplars:  res.Exemplars,
		Labels:     res.Labels,
		Modularity: q,
	}, nil
}
