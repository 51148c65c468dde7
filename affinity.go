package geoap

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// APConfig controls a single affinity propagation run.
type APConfig struct {
	// Damping weighs the previous message against the new one.
	// Must be in [0.5, 1). Default: 0.9.
	Damping float64

	// MaxIter caps the number of message-passing iterations.
	// Must be >= 1. Default: 500.
	MaxIter int

	// ConvergenceIter is the number of consecutive iterations with an
	// unchanged exemplar set after which the run stops.
	// Must be >= 1. Default: 20.
	ConvergenceIter int

	// Seed feeds the noise that breaks ties between equal similarities.
	// The same seed gives the same result. Default: 0.
	Seed int64
}

// DefaultAPConfig returns an APConfig with reasonable defaults.
func DefaultAPConfig() APConfig {
	return APConfig{
		Damping:         0.9,
		MaxIter:         500,
		ConvergenceIter: 20,
	}
}

func validateAPConfig(cfg *APConfig) error {
	if cfg.Damping < 0.5 || cfg.Damping >= 1 {
		return fmt.Errorf("geoap: Damping must be in [0.5, 1), got %f", cfg.Damping)
	}
	if cfg.MaxIter < 1 {
		return fmt.Errorf("geoap: MaxIter must be >= 1, got %d", cfg.MaxIter)
	}
	if cfg.ConvergenceIter < 1 {
		return fmt.Errorf("geoap: ConvergenceIter must be >= 1, got %d", cfg.ConvergenceIter)
	}
	return nil
}

// APResult is the output of AffinityPropagation.
type APResult struct {
	// Exemplars holds exemplar point indices in ascending order.
	Exemplars []int
	// Labels holds each point's exemplar index, or Unassigned.
	Labels []int
	// Iterations is the number of message-passing iterations performed.
	Iterations int
	// Converged is false when the exemplar set never stabilized; Exemplars is
	// then empty and every label is Unassigned.
	Converged bool
}

// machineEpsilon and tinyNormal match float64 epsilon and the smallest
// normal float64; together they scale the tie-breaking noise.
const (
	machineEpsilon = 2.220446049250313e-16
	tinyNormal     = 2.2250738585072014e-308
)

// AffinityPropagation clusters n points given their flat row-major n×n
// similarities. preference is placed on the diagonal. allowed, if non-nil,
// is a flat n×n mask: point i may only pick k as its exemplar when
// allowed[i*n+k] is true. Points left with no allowed exemplar are labelled
// Unassigned. sim is not modified.
func AffinityPropagation(ctx context.Context, sim []float64, n int, preference float64, allowed []bool, cfg APConfig) (*APResult, error) {
	if err := validateAPConfig(&cfg); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, ErrEmptyInput
	}
	if len(sim) != n*n {
		return nil, fmt.Errorf("geoap: %d similarity values for n=%d: %w", len(sim), n, ErrNonSquare)
	}
	if allowed != nil && len(allowed) != n*n {
		return nil, fmt.Errorf("geoap: mask has %d entries for n=%d: %w", len(allowed), n, ErrDimensionMismatch)
	}

	if n == 1 {
		return &APResult{Exemplars: []int{0}, Labels: []int{0}, Converged: true}, nil
	}

	s := prepareSimilarities(sim, n, preference, allowed, cfg.Seed)

	damping := cfg.Damping
	ci := cfg.ConvergenceIter
	a := make([]float64, n*n)
	r := make([]float64, n*n)
	history := make([]bool, n*ci)
	exemplar := make([]bool, n)

	converged := false
	it := 0
	for ; it < cfg.MaxIter; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		updateResponsibilities(a, r, s, n, damping)
		updateAvailabilities(a, r, n, damping)

		k := 0
		for i := 0; i < n; i++ {
			exemplar[i] = a[i*n+i]+r[i*n+i] > 0
			history[i*ci+it%ci] = exemplar[i]
			if exemplar[i] {
				k++
			}
		}

		if it >= ci && k > 0 && stable(history, n, ci) {
			converged = true
			break
		}
	}
	iterations := min(it+1, cfg.MaxIter)

	var centers []int
	for i, ok := range exemplar {
		if ok {
			centers = append(centers, i)
		}
	}
	if !converged || len(centers) == 0 {
		labels := make([]int, n)
		for i := range labels {
			labels[i] = Unassigned
		}
		return &APResult{Exemplars: []int{}, Labels: labels, Iterations: iterations}, nil
	}

	labels := assignExemplars(s, n, centers, allowed)
	return &APResult{
		Exemplars:  uniqueLabels(labels),
		Labels:     labels,
		Iterations: iterations,
		Converged:  true,
	}, nil
}

// prepareSimilarities copies sim, masks disallowed pairs, places the
// preference on the diagonal and adds seeded noise to break ties.
func prepareSimilarities(sim []float64, n int, preference float64, allowed []bool, seed int64) []float64 {
	s := make([]float64, n*n)
	copy(s, sim)
	if allowed != nil {
		masked := maskedSimilarity(sim, preference)
		for idx, ok := range allowed {
			if !ok && idx/n != idx%n {
				s[idx] = masked
			}
		}
	}
	for i := 0; i < n; i++ {
		s[i*n+i] = preference
	}

	rng := rand.New(rand.NewSource(seed))
	for idx := range s {
		s[idx] += (machineEpsilon*s[idx] + tinyNormal*100) * rng.NormFloat64()
	}
	return s
}

// maskedSimilarity returns a value far below every real similarity and the
// preference, so a masked pair never wins a comparison against an allowed one
// or against the point itself.
func maskedSimilarity(sim []float64, preference float64) float64 {
	lo := min(floats.Min(sim), preference, 0)
	return (lo - 1) * 1e6
}

// updateResponsibilities sets r(i,k) toward s(i,k) minus the best competing
// a(i,k')+s(i,k'), damped.
func updateResponsibilities(a, r, s []float64, n int, damping float64) {
	for i := 0; i < n; i++ {
		row := i * n
		first, second := math.Inf(-1), math.Inf(-1)
		best := 0
		for k := 0; k < n; k++ {
			v := a[row+k] + s[row+k]
			if v > first {
				second = first
				first = v
				best = k
			} else if v > second {
				second = v
			}
		}
		for k := 0; k < n; k++ {
			target := s[row+k] - first
			if k == best {
				target = s[row+k] - second
			}
			r[row+k] = damping*r[row+k] + (1-damping)*target
		}
	}
}

// updateAvailabilities sets a(i,k) toward the evidence other points send k
// for being an exemplar, damped. Off-diagonal availabilities are capped at 0.
func updateAvailabilities(a, r []float64, n int, damping float64) {
	for k := 0; k < n; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			v := r[i*n+k]
			if i == k || v > 0 {
				sum += v
			}
		}
		for i := 0; i < n; i++ {
			rp := r[i*n+k]
			if i != k && rp < 0 {
				rp = 0
			}
			t := rp - sum
			if i != k && t < 0 {
				t = 0
			}
			a[i*n+k] = damping*a[i*n+k] - (1-damping)*t
		}
	}
}

// stable reports whether every point has been consistently an exemplar, or
// consistently not one, over the last ci iterations.
func stable(history []bool, n, ci int) bool {
	for i := 0; i < n; i++ {
		count := 0
		for _, ex := range history[i*ci : (i+1)*ci] {
			if ex {
				count++
			}
		}
		if count != 0 && count != ci {
			return false
		}
	}
	return true
}

// assignExemplars attaches every point to its most similar center, refines
// each center to the member that best represents its cluster, and attaches
// again. Points whose best center is masked stay Unassigned.
//
// Refinement only considers members allowed to reach their center, and only
// moves the center to a member every one of them may reach, so the original
// center always remains a candidate.
func assignExemplars(s []float64, n int, centers []int, allowed []bool) []int {
	centers = append([]int(nil), centers...)
	c := nearestCenters(s, n, centers)

	members := make([]int, 0, n)
	for kk, ex := range centers {
		members = members[:0]
		for i := 0; i < n; i++ {
			if c[i] == kk && reachable(allowed, n, i, ex) {
				members = append(members, i)
			}
		}
		bestSum := math.Inf(-1)
		for _, j := range members {
			var sum float64
			ok := true
			for _, i := range members {
				if !reachable(allowed, n, i, j) {
					ok = false
					break
				}
				sum += s[i*n+j]
			}
			if ok && sum > bestSum {
				bestSum = sum
				centers[kk] = j
			}
		}
	}

	c = nearestCenters(s, n, centers)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		ex := centers[c[i]]
		if !reachable(allowed, n, i, ex) {
			labels[i] = Unassigned
			continue
		}
		labels[i] = ex
	}
	return labels
}

// reachable reports whether point i may pick k as its exemplar.
func reachable(allowed []bool, n, i, k int) bool {
	return allowed == nil || i == k || allowed[i*n+k]
}

// nearestCenters returns, for every point, the position in centers of its
// most similar center. Centers are always assigned to themselves.
func nearestCenters(s []float64, n int, centers []int) []int {
	c := make([]int, n)
	for i := 0; i < n; i++ {
		best := math.Inf(-1)
		for kk, ex := range centers {
			if v := s[i*n+ex]; v > best {
				best = v
				c[i] = kk
			}
		}
	}
	for kk, ex := range centers {
		c[ex] = kk
	}
	return c
}

// uniqueLabels returns the distinct assigned labels in ascending order.
func uniqueLabels(labels []int) []int {
	seen := make(map[int]bool, len(labels))
	out := make([]int, 0)
	for _, l := range labels {
		if l != Unassigned && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}
