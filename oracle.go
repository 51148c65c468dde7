package geoap

import "context"

// Unassigned is the label of a point that was not attached to any exemplar.
const Unassigned = -1

// Outcome is the result of one clustering run.
type Outcome struct {
	// Exemplars holds the point indices chosen as cluster centers, ascending.
	// Empty when the run did not converge.
	Exemplars []int

	// Labels has one entry per point: the index of the point's exemplar, or
	// Unassigned.
	Labels []int

	// Modularity scores the clustering against the network's community
	// structure.
	Modularity float64
}

// NumClusters returns the number of exemplars. A nil Outcome has none.
func (o *Outcome) NumClusters() int {
	if o == nil {
		return 0
	}
	return len(o.Exemplars)
}

// AllUnassigned reports whether the run left every point unassigned, which is
// how a non-converged run looks. An Outcome without labels is not considered
// all-unassigned.
func (o *Outcome) AllUnassigned() bool {
	if o == nil || len(o.Labels) == 0 {
		return false
	}
	for _, l := range o.Labels {
		if l != Unassigned {
			return false
		}
	}
	return true
}

// Oracle performs one clustering run for a given preference. Implementations
// must be deterministic for identical inputs so that a search can be
// reproduced.
type Oracle interface {
	Evaluate(ctx context.Context, preference float64) (*Outcome, error)
}

// OracleFunc adapts a plain function into an Oracle.
type OracleFunc func(ctx context.Context, preference float64) (*Outcome, error)

func (f OracleFunc) Evaluate(ctx context.Context, preference float64) (*Outcome, error) {
	return f(ctx, preference)
}
