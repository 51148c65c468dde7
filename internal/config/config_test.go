package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, "brc_microarray_usa", c.Dataset)
	assert.Equal(t, "gcn", c.Embedding.Method)
	assert.Equal(t, "embeddings.txt", c.Embedding.File)
	assert.Equal(t, "geometric_ap", c.Clustering.Method)
	assert.Equal(t, 500, c.Clustering.MaxIter)
	assert.Equal(t, 20, c.Clustering.ConvergenceIter)
	assert.Equal(t, 0.9, c.Clustering.Damping)
	assert.Equal(t, 2.0, *c.Clustering.DistanceThreshold)
	assert.Equal(t, "shortest_path", c.Clustering.SimilarityMetric)
	assert.True(t, *c.Clustering.SaveMask)
	assert.Equal(t, 0.95, *c.Search.Quantile)
	assert.Equal(t, 500, c.Search.DesiredClusters)
	assert.Equal(t, 100, *c.Search.Tolerance)
	assert.Equal(t, 0.15, c.Search.QuantileStep)
	assert.Equal(t, 10, c.Search.RetryBudget)
	assert.Equal(t, 50, c.Search.MaxBootstrapProbes)
	assert.Equal(t, "clusters.txt", c.Output.ClustersFile)
	assert.Equal(t, "modularity.txt", c.Output.ModularityFile)
	assert.Equal(t, "local", c.Logging.Env)
	assert.NoError(t, c.Validate())
}

func TestLoad_OverridesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
dataset: toy
clustering:
  damp_factor: 0.7
  similarity_metric: weighted_path
  save_mask: false
search:
  desired_nb_clusters: 40
  tolerance_nb_clusters: 0
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "toy", c.Dataset)
	assert.Equal(t, 0.7, c.Clustering.Damping)
	assert.Equal(t, "weighted_path", c.Clustering.SimilarityMetric)
	assert.False(t, *c.Clustering.SaveMask)
	assert.Equal(t, 40, c.Search.DesiredClusters)
	assert.Equal(t, 0, *c.Search.Tolerance, "explicit zero tolerance must survive defaults")
	assert.Equal(t, 500, c.Clustering.MaxIter)
}

func TestLoad_ExplicitZerosSurviveDefaults(t *testing.T) {
	path := writeConfig(t, "search:\n  quantile: 0\nclustering:\n  distance_threshold: 0\n")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, *c.Search.Quantile)
	assert.Equal(t, 0.0, *c.Clustering.DistanceThreshold)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("GEOAP_TEST_ROOT", "/srv/project")
	path := writeConfig(t, "output:\n  root: ${GEOAP_TEST_ROOT}\n")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/project", c.Output.Root)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"damping too high", "clustering:\n  damp_factor: 1.0\n"},
		{"damping too low", "clustering:\n  damp_factor: 0.2\n"},
		{"negative threshold", "clustering:\n  distance_threshold: -1\n"},
		{"unknown metric", "clustering:\n  similarity_metric: jaccard\n"},
		{"quantile above one", "search:\n  quantile: 1.5\n"},
		{"negative tolerance", "search:\n  tolerance_nb_clusters: -3\n"},
		{"unknown env", "logging:\n  env: staging\n"},
		{"bad yaml", "search: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
