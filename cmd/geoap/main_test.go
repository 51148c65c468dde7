package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrevorS/geoap"
	"github.com/TrevorS/geoap/internal/dataset"
)

// writeToyProject lays out two well separated triangles under root.
func writeToyProject(t *testing.T, root string) {
	t.Helper()
	emb := filepath.Join(root, "data", "output", "toy", "embedding", "gcn")
	net := filepath.Join(root, "data", "output", "network")
	require.NoError(t, os.MkdirAll(emb, 0o755))
	require.NoError(t, os.MkdirAll(net, 0o755))

	embeddings := "0 0\n0.1 0\n0 0.1\n100 100\n100.1 100\n100 100.1\n"
	edges := "0\t1\n1\t2\n0\t2\n3\t4\n4\t5\n3\t5\n"
	require.NoError(t, os.WriteFile(filepath.Join(emb, "embeddings.txt"), []byte(embeddings), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(net, "ppi.edges.tsv"), []byte(edges), 0o600))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadConfig_FlagsOverrideDefaults(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--dataset", "toy",
		"--desired", "7",
		"--tolerance", "0",
		"--damping", "0.75",
		"--save-mask=false",
		"--similarity-metric", "none",
	}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "toy", cfg.Dataset)
	assert.Equal(t, 7, cfg.Search.DesiredClusters)
	assert.Equal(t, 0, *cfg.Search.Tolerance)
	assert.Equal(t, 0.75, cfg.Clustering.Damping)
	assert.False(t, *cfg.Clustering.SaveMask)
	assert.Equal(t, "none", cfg.Clustering.SimilarityMetric)
	// untouched flags keep their defaults
	assert.Equal(t, 500, cfg.Clustering.MaxIter)
	assert.Equal(t, "gcn", cfg.Embedding.Method)
}

func TestLoadConfig_ExplicitZeroFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--quantile", "0", "--distance-threshold", "0"}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 0.0, *cfg.Search.Quantile)
	assert.Equal(t, 0.0, *cfg.Clustering.DistanceThreshold)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataset: fromfile\nsearch:\n  desired_nb_clusters: 30\n"), 0o600))

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--desired", "12"}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "fromfile", cfg.Dataset)
	assert.Equal(t, 12, cfg.Search.DesiredClusters)
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--damping", "1.5"}))

	_, err := loadConfig(cmd)
	assert.Error(t, err)
}

func TestRun_MissingInput(t *testing.T) {
	_, err := execute(t, "--data-root", t.TempDir(), "--log-level", "error")
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrMissingInput)
}

func TestRun_EdgeBeyondEmbeddings(t *testing.T) {
	root := t.TempDir()
	writeToyProject(t, root)
	edges := filepath.Join(root, "data", "output", "network", "ppi.edges.tsv")
	require.NoError(t, os.WriteFile(edges, []byte("0\t1\n4\t9\n"), 0o600))

	_, err := execute(t, "--data-root", root, "--dataset", "toy", "--log-level", "error")
	require.Error(t, err)
	assert.ErrorIs(t, err, geoap.ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "references node 9")
}

func TestRun_WritesClustering(t *testing.T) {
	root := t.TempDir()
	writeToyProject(t, root)
	metricsPath := filepath.Join(root, "geoap.prom")

	out, err := execute(t,
		"--data-root", root,
		"--dataset", "toy",
		"--desired", "2",
		"--tolerance", "1",
		"--metrics-file", metricsPath,
		"--log-level", "error",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "clusters (desired 2±1)")

	dir := filepath.Join(root, "data", "output", "toy", "clustering", "geometric_ap", "gcn")
	clusters, err := os.ReadFile(filepath.Join(dir, "clusters.txt"))
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(string(clusters)), "\n") {
		assert.True(t, strings.HasPrefix(line, "Exemplar_"), line)
	}

	modularity, err := os.ReadFile(filepath.Join(dir, "modularity.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(modularity), "Modularity metric:\t"))

	_, err = os.Stat(filepath.Join(root, "data", "output", "mask", "toy", "gcn.mask.tsv"))
	assert.NoError(t, err)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "geoap_search_probes_total")
}

func TestRun_NotConverged(t *testing.T) {
	root := t.TempDir()
	writeToyProject(t, root)

	_, err := execute(t,
		"--data-root", root,
		"--dataset", "toy",
		"--desired", "100",
		"--tolerance", "0",
		"--save-mask=false",
		"--log-level", "error",
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, geoap.ErrNotConverged)
}
