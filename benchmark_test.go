package geoap

import (
	"context"
	"math/rand"
	"testing"
)

func generateBenchData(n, dims int) [][]float64 {
	rng := rand.New(rand.NewSource(42))
	data := make([][]float64, n)
	for i := range data {
		data[i] = make([]float64, dims)
		for j := range data[i] {
			data[i][j] = rng.Float64() * 100
		}
	}
	return data
}

func generateFlatData(n, dims int) []float64 {
	rng := rand.New(rand.NewSource(42))
	data := make([]float64, n*dims)
	for i := range data {
		data[i] = rng.Float64() * 100
	}
	return data
}

// generateRingNetwork links every node to its next two neighbours on a ring.
func generateRingNetwork(b *testing.B, n int) *Network {
	b.Helper()
	edges := make([]Edge, 0, 2*n)
	for i := 0; i < n; i++ {
		edges = append(edges, Edge{From: i, To: (i + 1) % n}, Edge{From: i, To: (i + 2) % n})
	}
	nw, err := NewNetwork(n, edges)
	if err != nil {
		b.Fatal(err)
	}
	return nw
}

// --- Pairwise Similarities ---

func benchPairwiseSimilarities(b *testing.B, n, workers int) {
	b.Helper()
	dims := 16
	data := generateFlatData(n, dims)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ComputePairwiseSimilaritiesParallel(data, n, dims, NegSquaredEuclidean{}, workers)
	}
}

func BenchmarkPairwiseSimilarities_500(b *testing.B)    { benchPairwiseSimilarities(b, 500, 1) }
func BenchmarkPairwiseSimilarities_1000(b *testing.B)   { benchPairwiseSimilarities(b, 1000, 1) }
func BenchmarkPairwiseSimilarities_1000_4(b *testing.B) { benchPairwiseSimilarities(b, 1000, 4) }

// --- Similarity Matrix ---

func BenchmarkNewSimilarityMatrix_1000(b *testing.B) {
	data := generateBenchData(1000, 16)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := NewSimilarityMatrix(data, nil, 0); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Neighborhood ---

func benchNeighborhood(b *testing.B, n int, mode SimilarityMode) {
	b.Helper()
	nw := generateRingNetwork(b, n)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := nw.Neighborhood(mode, 2); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNeighborhoodShortestPath_500(b *testing.B) {
	benchNeighborhood(b, 500, ModeShortestPath)
}
func BenchmarkNeighborhoodWeightedPath_500(b *testing.B) {
	benchNeighborhood(b, 500, ModeWeightedPath)
}

// --- Affinity Propagation ---

func benchAffinityPropagation(b *testing.B, n int, masked bool) {
	b.Helper()
	sim, err := NewSimilarityMatrix(generateBenchData(n, 2), nil, 0)
	if err != nil {
		b.Fatal(err)
	}
	var allowed []bool
	if masked {
		if allowed, err = generateRingNetwork(b, n).Neighborhood(ModeShortestPath, 4); err != nil {
			b.Fatal(err)
		}
	}
	cfg := DefaultAPConfig()
	cfg.MaxIter = 200
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := AffinityPropagation(ctx, sim.values, n, sim.Median(), allowed, cfg); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAffinityPropagation_100(b *testing.B)       { benchAffinityPropagation(b, 100, false) }
func BenchmarkAffinityPropagation_500(b *testing.B)       { benchAffinityPropagation(b, 500, false) }
func BenchmarkAffinityPropagationMasked_500(b *testing.B) { benchAffinityPropagation(b, 500, true) }
