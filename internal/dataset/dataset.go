// Package dataset locates and parses the files a clustering run consumes:
// node embeddings and the interaction network.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TrevorS/geoap"
)

// ErrMissingInput is returned when a required input file does not exist.
var ErrMissingInput = errors.New("dataset: input not available")

// Layout maps a dataset onto the project's data/output directory tree.
type Layout struct {
	Root             string
	Dataset          string
	EmbeddingMethod  string
	ClusteringMethod string
}

func (l Layout) output(parts ...string) string {
	return filepath.Join(append([]string{l.Root, "data", "output"}, parts...)...)
}

// EmbeddingsPath returns <root>/data/output/<dataset>/embedding/<method>/<file>.
func (l Layout) EmbeddingsPath(file string) string {
	return l.output(l.Dataset, "embedding", l.EmbeddingMethod, file)
}

// NetworkPath returns <root>/data/output/network/<file>.
func (l Layout) NetworkPath(file string) string {
	return l.output("network", file)
}

// ClusteringDir returns <root>/data/output/<dataset>/clustering/<clustering>/<method>.
func (l Layout) ClusteringDir() string {
	return l.output(l.Dataset, "clustering", l.ClusteringMethod, l.EmbeddingMethod)
}

// MaskPath returns <root>/data/output/mask/<dataset>/<method>.mask.tsv.
func (l Layout) MaskPath() string {
	return l.output("mask", l.Dataset, l.EmbeddingMethod+".mask.tsv")
}

// CheckInputs reports the first path that is missing or is a directory.
func CheckInputs(paths ...string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, ErrMissingInput)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory: %w", p, ErrMissingInput)
		}
	}
	return nil
}

// newScanner returns a line scanner that tolerates long embedding rows.
func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return sc
}

// skipLine reports whether a line carries no data: blank or a # comment.
func skipLine(line string) bool {
	line = strings.TrimSpace(line)
	return line == "" || strings.HasPrefix(line, "#")
}

// LoadEmbeddings reads one whitespace-separated vector per line.
// Blank lines and lines starting with # are skipped. All rows must have the
// same length.
func LoadEmbeddings(r io.Reader) ([][]float64, error) {
	var rows [][]float64
	sc := newScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if skipLine(line) {
			continue
		}
		fields := strings.Fields(line)
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("dataset: embeddings line %d column %d: %w", lineNo, i+1, err)
			}
			row[i] = v
		}
		if len(rows) > 0 && len(row) != len(rows[0]) {
			return nil, fmt.Errorf("dataset: embeddings line %d has %d values, want %d: %w",
				lineNo, len(row), len(rows[0]), geoap.ErrDimensionMismatch)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dataset: read embeddings: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset: no embeddings: %w", geoap.ErrEmptyInput)
	}
	return rows, nil
}

// LoadEdgeList reads one edge per line: two 0-based node indices and an
// optional weight, separated by tabs or spaces. Edges with weight 0 are
// dropped, matching a zero in a dense adjacency matrix.
func LoadEdgeList(r io.Reader) ([]geoap.Edge, error) {
	var edges []geoap.Edge
	sc := newScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if skipLine(line) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 && len(fields) != 3 {
			return nil, fmt.Errorf("dataset: edge list line %d: want 2 or 3 fields, got %d", lineNo, len(fields))
		}
		from, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("dataset: edge list line %d: %w", lineNo, err)
		}
		to, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("dataset: edge list line %d: %w", lineNo, err)
		}
		w := 1.0
		if len(fields) == 3 {
			if w, err = strconv.ParseFloat(fields[2], 64); err != nil {
				return nil, fmt.Errorf("dataset: edge list line %d: %w", lineNo, err)
			}
			if w == 0 {
				continue
			}
		}
		edges = append(edges, geoap.Edge{From: from, To: to, Weight: w})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dataset: read edge list: %w", err)
	}
	return edges, nil
}

// ReadEmbeddingsFile opens path and calls LoadEmbeddings.
func ReadEmbeddingsFile(path string) ([][]float64, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()
	return LoadEmbeddings(f)
}

// ReadEdgeListFile opens path and calls LoadEdgeList.
func ReadEdgeListFile(path string) ([]geoap.Edge, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()
	return LoadEdgeList(f)
}

// MaxNode returns the largest node index referenced by edges, or -1.
func MaxNode(edges []geoap.Edge) int {
	m := -1
	for _, e := range edges {
		m = max(m, e.From, e.To)
	}
	return m
}
