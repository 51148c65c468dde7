package geoap

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOutcome() *Outcome {
	return &Outcome{
		Exemplars:  []int{1, 4},
		Labels:     []int{4, 1, 1, Unassigned, 4},
		Modularity: 0.25,
	}
}

func TestGroups(t *testing.T) {
	got := Groups(sampleOutcome())
	assert.Equal(t, []Group{
		{Exemplar: 4, Members: []int{0, 4}},
		{Exemplar: 1, Members: []int{1, 2}},
	}, got)
	assert.Nil(t, Groups(nil))
}

func TestWriteClusters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteClusters(&buf, sampleOutcome()))
	assert.Equal(t, "Exemplar_4\t0\t4\nExemplar_1\t1\t2\n", buf.String())
}

func TestWriteModularity(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteModularity(&buf, 0.25))
	assert.Equal(t, "Modularity metric:\t0.25\n", buf.String())
}

func TestWriteMask(t *testing.T) {
	var buf bytes.Buffer
	mask := []bool{
		true, true, false,
		true, true, true,
		false, true, true,
	}
	require.NoError(t, WriteMask(&buf, 3, mask))
	assert.Equal(t, "0\t0\t1\n1\t0\t1\t2\n2\t1\t2\n", buf.String())

	assert.ErrorIs(t, WriteMask(&buf, 2, mask), ErrDimensionMismatch)
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "clustering", "geometric_ap", "gcn")

	require.NoError(t, Export(ExportConfig{Dir: dir}, sampleOutcome()))

	clusters, err := os.ReadFile(filepath.Join(dir, "clusters.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Exemplar_4\t0\t4\nExemplar_1\t1\t2\n", string(clusters))

	modularity, err := os.ReadFile(filepath.Join(dir, "modularity.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Modularity metric:\t0.25\n", string(modularity))
}

func TestExport_CustomNames(t *testing.T) {
	dir := t.TempDir()
	cfg := ExportConfig{Dir: dir, ClustersFile: "c.tsv", ModularityFile: "q.tsv"}

	require.NoError(t, Export(cfg, sampleOutcome()))
	assert.FileExists(t, filepath.Join(dir, "c.tsv"))
	assert.FileExists(t, filepath.Join(dir, "q.tsv"))

	assert.ErrorIs(t, Export(cfg, nil), ErrEmptyInput)
}

func TestWriteMaskFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mask", "toy", "gcn.mask.tsv")
	require.NoError(t, WriteMaskFile(path, 1, []bool{true}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0\t0\n", string(data))
}
