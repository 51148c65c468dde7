package geoap

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Group is one cluster: an exemplar and the points attached to it,
// including the exemplar itself.
type Group struct {
	Exemplar int
	Members  []int
}

// Groups collects points by exemplar. Groups appear in the order their first
// member appears; members are ascending. Unassigned points are left out.
func Groups(out *Outcome) []Group {
	if out == nil {
		return nil
	}
	var groups []Group
	index := make(map[int]int)
	for i, ex := range out.Labels {
		if ex == Unassigned {
			continue
		}
		idx, ok := index[ex]
		if !ok {
			idx = len(groups)
			index[ex] = idx
			groups = append(groups, Group{Exemplar: ex})
		}
		groups[idx].Members = append(groups[idx].Members, i)
	}
	return groups
}

func newTSVWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return cw
}

// WriteClusters writes one tab-separated row per group:
// "Exemplar_<index>" followed by the member indices.
func WriteClusters(w io.Writer, out *Outcome) error {
	cw := newTSVWriter(w)
	for _, g := range Groups(out) {
		row := make([]string, 0, len(g.Members)+1)
		row = append(row, "Exemplar_"+strconv.Itoa(g.Exemplar))
		for _, m := range g.Members {
			row = append(row, strconv.Itoa(m))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteModularity writes the single row "Modularity metric:\t<q>".
func WriteModularity(w io.Writer, q float64) error {
	cw := newTSVWriter(w)
	if err := cw.Write([]string{"Modularity metric:", strconv.FormatFloat(q, 'g', -1, 64)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteMask writes one row per node: the node index followed by the indices
// of every node in its neighbourhood.
func WriteMask(w io.Writer, n int, mask []bool) error {
	if len(mask) != n*n {
		return fmt.Errorf("geoap: mask has %d entries for n=%d: %w", len(mask), n, ErrDimensionMismatch)
	}
	cw := newTSVWriter(w)
	for i := 0; i < n; i++ {
		row := []string{strconv.Itoa(i)}
		for k := 0; k < n; k++ {
			if mask[i*n+k] {
				row = append(row, strconv.Itoa(k))
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportConfig names the files Export writes.
type ExportConfig struct {
	// Dir is created if missing.
	Dir string
	// ClustersFile defaults to "clusters.txt".
	ClustersFile string
	// ModularityFile defaults to "modularity.txt".
	ModularityFile string
}

// Export writes the clustering and its modularity into cfg.Dir.
func Export(cfg ExportConfig, out *Outcome) error {
	if out == nil {
		return fmt.Errorf("geoap: nothing to export: %w", ErrEmptyInput)
	}
	if cfg.ClustersFile == "" {
		cfg.ClustersFile = "clusters.txt"
	}
	if cfg.ModularityFile == "" {
		cfg.ModularityFile = "modularity.txt"
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("geoap: create output dir: %w", err)
	}
	if err := writeFile(filepath.Join(cfg.Dir, cfg.ClustersFile), func(w io.Writer) error {
		return WriteClusters(w, out)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(cfg.Dir, cfg.ModularityFile), func(w io.Writer) error {
		return WriteModularity(w, out.Modularity)
	})
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("geoap: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("geoap: close %s: %w", path, cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("geoap: write %s: %w", path, err)
	}
	return nil
}

// WriteMaskFile writes the neighbourhood mask to path.
func WriteMaskFile(path string, n int, mask []bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("geoap: create mask dir: %w", err)
	}
	return writeFile(path, func(w io.Writer) error { return WriteMask(w, n, mask) })
}
