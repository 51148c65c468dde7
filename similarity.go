package geoap

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Affinity scores how alike two points are. Larger means more similar, and a
// point is expected to be most similar to itself.
type Affinity interface {
	Similarity(a, b []float64) float64
}

// AffinityFunc adapts a plain function into an Affinity.
type AffinityFunc func(a, b []float64) float64

func (f AffinityFunc) Similarity(a, b []float64) float64 { return f(a, b) }

// NegSquaredEuclidean is the negative squared Euclidean distance, the usual
// affinity propagation input. Self-similarity is 0, the maximum.
type NegSquaredEuclidean struct{}

func (NegSquaredEuclidean) Similarity(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return -sum
}

// NegCosineDistance is cosine similarity shifted down by one, so identical
// directions score 0 and opposite directions score -2.
// For a zero vector the result is NaN (0/0).
type NegCosineDistance struct{}

func (NegCosineDistance) Similarity(a, b []float64) float64 {
	return floats.Dot(a, b)/(floats.Norm(a, 2)*floats.Norm(b, 2)) - 1
}

// ComputePairwiseSimilarities computes the full n*n similarity matrix.
// data is flat row-major with n rows and dims columns.
// Returns flat []float64 of length n*n.
func ComputePairwiseSimilarities(data []float64, n, dims int, aff Affinity) []float64 {
	result := make([]float64, n*n)

	for i := 0; i < n; i++ {
		row := data[i*dims : (i+1)*dims]
		result[i*n+i] = aff.Similarity(row, row)
		for j := i + 1; j < n; j++ {
			s := aff.Similarity(row, data[j*dims:(j+1)*dims])
			result[i*n+j] = s
			result[j*n+i] = s
		}
	}

	return result
}

// flatten copies embeddings into a row-major slice and checks that every row
// has the same dimensionality.
func flatten(embeddings [][]float64) (data []float64, dims int, err error) {
	if len(embeddings) == 0 {
		return nil, 0, ErrEmptyInput
	}
	dims = len(embeddings[0])
	data = make([]float64, len(embeddings)*dims)
	for i, row := range embeddings {
		if len(row) != dims {
			return nil, 0, fmt.Errorf("geoap: embedding %d has %d dimensions, want %d: %w",
				i, len(row), dims, ErrDimensionMismatch)
		}
		copy(data[i*dims:], row)
	}
	return data, dims, nil
}

// SimilarityMatrix is a read-only n×n matrix of pairwise similarities, kept
// alongside a sorted copy of all n² entries so that quantile queries are
// O(log n) after construction.
type SimilarityMatrix struct {
	n      int
	values []float64
	sorted []float64
}

// NewSimilarityMatrix computes pairwise similarities between embeddings.
// workers controls parallelism; 0 means one worker per CPU.
func NewSimilarityMatrix(embeddings [][]float64, aff Affinity, workers int) (*SimilarityMatrix, error) {
	data, dims, err := flatten(embeddings)
	if err != nil {
		return nil, err
	}
	if aff == nil {
		aff = NegSquaredEuclidean{}
	}
	workers = resolveWorkers(workers)
	n := len(embeddings)
	return newSimilarityMatrix(ComputePairwiseSimilaritiesParallel(data, n, dims, aff, workers), n), nil
}

// SimilarityMatrixFromValues wraps a precomputed row-major n×n slice.
// The slice is copied.
func SimilarityMatrixFromValues(values []float64, n int) (*SimilarityMatrix, error) {
	if n <= 0 {
		return nil, ErrEmptyInput
	}
	if len(values) != n*n {
		return nil, fmt.Errorf("geoap: %d similarity values for n=%d: %w", len(values), n, ErrNonSquare)
	}
	return newSimilarityMatrix(append([]float64(nil), values...), n), nil
}

func newSimilarityMatrix(values []float64, n int) *SimilarityMatrix {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return &SimilarityMatrix{n: n, values: values, sorted: sorted}
}

// Len returns the number of points.
func (m *SimilarityMatrix) Len() int { return m.n }

// At returns the similarity between points i and j.
func (m *SimilarityMatrix) At(i, j int) float64 { return m.values[i*m.n+j] }

// Max returns the largest similarity.
func (m *SimilarityMatrix) Max() float64 { return m.sorted[len(m.sorted)-1] }

// Quantile returns the q-quantile of all entries, interpolating linearly
// between the two closest ranks. q is clamped to [0, 1].
func (m *SimilarityMatrix) Quantile(q float64) float64 {
	return quantileSorted(m.sorted, q)
}

// Median returns the median of all entries.
func (m *SimilarityMatrix) Median() float64 {
	return quantileSorted(m.sorted, 0.5)
}

// MedianAbove returns the median of the entries strictly greater than t.
// ok is false when no entry exceeds t.
func (m *SimilarityMatrix) MedianAbove(t float64) (median float64, ok bool) {
	idx := sort.Search(len(m.sorted), func(i int) bool { return m.sorted[i] > t })
	if idx == len(m.sorted) {
		return 0, false
	}
	return quantileSorted(m.sorted[idx:], 0.5), true
}

// Bootstrap derives a first preference candidate from the similarity
// distribution: the median of the similarities above the q-quantile. When
// that quantile is exactly zero, or nothing lies above it, the median of all
// similarities is used instead.
func (m *SimilarityMatrix) Bootstrap(q float64) float64 {
	threshold := m.Quantile(q)
	if threshold == 0 {
		return m.Median()
	}
	if median, ok := m.MedianAbove(threshold); ok {
		return median
	}
	return m.Median()
}

// quantileSorted computes the q-quantile of an ascending slice using linear
// interpolation between closest ranks: position q*(len-1).
func quantileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	q = min(max(q, 0), 1)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
