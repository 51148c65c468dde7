package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config holds a clustering run's configuration.
type Config struct {
	Dataset    string           `yaml:"dataset"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Network    NetworkConfig    `yaml:"network"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Search     SearchConfig     `yaml:"search"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// EmbeddingConfig locates the node embeddings.
type EmbeddingConfig struct {
	Method string `yaml:"method"` // folder of the embedding method, e.g. gcn
	File   string `yaml:"file"`
}

// NetworkConfig locates the network edge list.
type NetworkConfig struct {
	File string `yaml:"file"`
}

// ClusteringConfig holds affinity propagation hyperparameters.
type ClusteringConfig struct {
	Method            string   `yaml:"method"` // output folder of the clustering method
	MaxIter           int      `yaml:"max_iter"`
	ConvergenceIter   int      `yaml:"convergence_iter"`
	Damping           float64  `yaml:"damp_factor"`
	DistanceThreshold *float64 `yaml:"distance_threshold"`
	SimilarityMetric  string   `yaml:"similarity_metric"` // shortest_path, weighted_path, none
	SaveMask          *bool    `yaml:"save_mask"`
	Seed              int64    `yaml:"seed"`
	Workers           int      `yaml:"workers"` // 0 = all CPUs
}

// SearchConfig holds preference search settings.
type SearchConfig struct {
	Quantile           *float64 `yaml:"quantile"`
	DesiredClusters    int      `yaml:"desired_nb_clusters"`
	Tolerance          *int     `yaml:"tolerance_nb_clusters"`
	QuantileStep       float64  `yaml:"quantile_step"`
	RetryBudget        int      `yaml:"retry_budget"`
	MaxBootstrapProbes int      `yaml:"max_bootstrap_probes"`
}

// OutputConfig holds result locations.
type OutputConfig struct {
	Root           string `yaml:"root"` // project root holding data/output
	ClustersFile   string `yaml:"clusters_output"`
	ModularityFile string `yaml:"modularity"`
	MetricsFile    string `yaml:"metrics_file"` // Prometheus text format; empty = off
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // local, dev, prod
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Default returns a Config with every default applied.
func Default() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// Load reads configuration from a YAML file. ${VAR} references are replaced
// with environment values before parsing.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Dataset == "" {
		c.Dataset = "brc_microarray_usa"
	}
	if c.Embedding.Method == "" {
		c.Embedding.Method = "gcn"
	}
	if c.Embedding.File == "" {
		c.Embedding.File = "embeddings.txt"
	}
	if c.Network.File == "" {
		c.Network.File = "ppi.edges.tsv"
	}
	if c.Clustering.Method == "" {
		c.Clustering.Method = "geometric_ap"
	}
	if c.Clustering.MaxIter <= 0 {
		c.Clustering.MaxIter = 500
	}
	if c.Clustering.ConvergenceIter <= 0 {
		c.Clustering.ConvergenceIter = 20
	}
	if c.Clustering.Damping == 0 {
		c.Clustering.Damping = 0.9
	}
	if c.Clustering.DistanceThreshold == nil {
		c.Clustering.DistanceThreshold = ptr(2.0)
	}
	if c.Clustering.SimilarityMetric == "" {
		c.Clustering.SimilarityMetric = "shortest_path"
	}
	if c.Clustering.SaveMask == nil {
		c.Clustering.SaveMask = ptr(true)
	}
	if c.Search.Quantile == nil {
		c.Search.Quantile = ptr(0.95)
	}
	if c.Search.DesiredClusters <= 0 {
		c.Search.DesiredClusters = 500
	}
	if c.Search.Tolerance == nil {
		c.Search.Tolerance = ptr(100)
	}
	if c.Search.QuantileStep == 0 {
		c.Search.QuantileStep = 0.15
	}
	if c.Search.RetryBudget <= 0 {
		c.Search.RetryBudget = 10
	}
	if c.Search.MaxBootstrapProbes <= 0 {
		c.Search.MaxBootstrapProbes = 50
	}
	if c.Output.Root == "" {
		c.Output.Root = "."
	}
	if c.Output.ClustersFile == "" {
		c.Output.ClustersFile = "clusters.txt"
	}
	if c.Output.ModularityFile == "" {
		c.Output.ModularityFile = "modularity.txt"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "local"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Clustering.Damping < 0.5 || c.Clustering.Damping >= 1 {
		return fmt.Errorf("clustering.damp_factor must be in [0.5, 1), got %g", c.Clustering.Damping)
	}
	if *c.Clustering.DistanceThreshold < 0 {
		return fmt.Errorf("clustering.distance_threshold must be >= 0, got %g", *c.Clustering.DistanceThreshold)
	}
	switch c.Clustering.SimilarityMetric {
	case "shortest_path", "weighted_path", "none":
		// ok
	default:
		return fmt.Errorf("clustering.similarity_metric must be shortest_path, weighted_path or none, got %q",
			c.Clustering.SimilarityMetric)
	}
	if *c.Search.Quantile < 0 || *c.Search.Quantile > 1 {
		return fmt.Errorf("search.quantile must be in [0, 1], got %g", *c.Search.Quantile)
	}
	if *c.Search.Tolerance < 0 {
		return fmt.Errorf("search.tolerance_nb_clusters must be >= 0, got %d", *c.Search.Tolerance)
	}
	if c.Search.QuantileStep < 0 {
		return fmt.Errorf("search.quantile_step must be > 0, got %g", c.Search.QuantileStep)
	}
	switch c.Logging.Env {
	case "local", "dev", "prod":
		// ok
	default:
		return fmt.Errorf("logging.env must be local, dev or prod, got %q", c.Logging.Env)
	}
	return nil
}

// envVarRe matches ${VAR_NAME} patterns.
var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} references with environment variable values.
// Unset variables are replaced with empty strings.
func expandEnvVars(data []byte) []byte {
	return envVarRe.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarRe.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func ptr[T any](v T) *T { return &v }
