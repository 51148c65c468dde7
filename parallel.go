package geoap

import (
	"runtime"
	"sync"
)

// resolveWorkers maps a zero or negative worker count to runtime.NumCPU().
func resolveWorkers(workers int) int {
	if workers <= 0 {
		return runtime.NumCPU()
	}
	return workers
}

// ComputePairwiseSimilaritiesParallel computes the full n×n similarity matrix
// using multiple goroutines. data is flat row-major with n rows and dims
// columns. numWorkers controls the degree of parallelism; if <= 1, it falls
// back to single-threaded ComputePairwiseSimilarities.
//
// The result is bitwise identical to ComputePairwiseSimilarities.
func ComputePairwiseSimilaritiesParallel(data []float64, n, dims int, aff Affinity, numWorkers int) []float64 {
	if numWorkers <= 1 || n <= 1 {
		return ComputePairwiseSimilarities(data, n, dims, aff)
	}

	result := make([]float64, n*n)

	// Each worker owns a contiguous range of source rows and fills (i,j) and
	// (j,i) for j >= i. Ranges never overlap, so writes need no locking.
	var wg sync.WaitGroup

	rowsPerWorker := (n + numWorkers - 1) / numWorkers

	for w := 0; w < numWorkers; w++ {
		startRow := w * rowsPerWorker
		endRow := min(startRow+rowsPerWorker, n)
		if startRow >= n {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				row := data[i*dims : (i+1)*dims]
				result[i*n+i] = aff.Similarity(row, row)
				for j := i + 1; j < n; j++ {
					s := aff.Similarity(row, data[j*dims:(j+1)*dims])
					result[i*n+j] = s
					result[j*n+i] = s
				}
			}
		}(startRow, endRow)
	}

	wg.Wait()
	return result
}
