package geoap

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// SimilarityMode selects how network distance between two points is measured
// when deciding whether one may be the other's exemplar.
type SimilarityMode string

const (
	// ModeShortestPath counts hops along the shortest path.
	ModeShortestPath SimilarityMode = "shortest_path"
	// ModeWeightedPath sums edge weights along the lightest path.
	ModeWeightedPath SimilarityMode = "weighted_path"
	// ModeNone applies no restriction.
	ModeNone SimilarityMode = "none"
)

// Edge is an undirected network edge between two point indices.
// A zero Weight is read as 1.
type Edge struct {
	From, To int
	Weight   float64
}

// Network is an undirected, weighted interaction network over the points
// being clustered. Node i corresponds to point i.
type Network struct {
	n     int
	edges int
	g     *simple.WeightedUndirectedGraph
}

// NewNetwork builds a network of n nodes. Self loops are ignored; a repeated
// edge keeps the last weight.
func NewNetwork(n int, edges []Edge) (*Network, error) {
	if n <= 0 {
		return nil, ErrEmptyInput
	}
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for _, e := range edges {
		if e.From < 0 || e.From >= n || e.To < 0 || e.To >= n {
			return nil, fmt.Errorf("geoap: edge %d-%d outside network of %d nodes: %w",
				e.From, e.To, n, ErrDimensionMismatch)
		}
		if e.From == e.To {
			continue
		}
		w := e.Weight
		if w == 0 {
			w = 1
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("geoap: edge %d-%d weight %g: %w", e.From, e.To, w, ErrInvalidWeight)
		}
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(e.From), simple.Node(e.To), w))
	}
	return &Network{n: n, edges: g.Edges().Len(), g: g}, nil
}

// Len returns the number of nodes.
func (nw *Network) Len() int { return nw.n }

// NumEdges returns the number of distinct undirected edges.
func (nw *Network) NumEdges() int { return nw.edges }

// Neighborhood returns a flat n×n mask where entry i*n+k is true when node k
// lies within threshold of node i under mode. Every node is within its own
// neighbourhood.
func (nw *Network) Neighborhood(mode SimilarityMode, threshold float64) ([]bool, error) {
	n := nw.n
	mask := make([]bool, n*n)

	switch mode {
	case ModeNone:
		for i := range mask {
			mask[i] = true
		}
	case ModeShortestPath:
		for i := 0; i < n; i++ {
			row := mask[i*n : (i+1)*n]
			var bf traverse.BreadthFirst
			bf.Walk(nw.g, simple.Node(i), func(v graph.Node, depth int) bool {
				if float64(depth) > threshold {
					return true
				}
				row[v.ID()] = true
				return false
			})
		}
	case ModeWeightedPath:
		for i := 0; i < n; i++ {
			sp := path.DijkstraFrom(simple.Node(i), nw.g)
			for k := 0; k < n; k++ {
				mask[i*n+k] = sp.WeightTo(int64(k)) <= threshold
			}
		}
	default:
		return nil, fmt.Errorf("geoap: %q: %w", mode, ErrUnknownMode)
	}
	return mask, nil
}

// Modularity scores labels against the network's community structure.
// Points sharing a label form a community; Unassigned points are singletons.
// A network without edges scores 0.
func (nw *Network) Modularity(labels []int) (float64, error) {
	if len(labels) != nw.n {
		return 0, fmt.Errorf("geoap: %d labels for network of %d nodes: %w",
			len(labels), nw.n, ErrDimensionMismatch)
	}
	if nw.edges == 0 {
		return 0, nil
	}

	var communities [][]graph.Node
	index := make(map[int]int)
	for i, l := range labels {
		if l == Unassigned {
			communities = append(communities, []graph.Node{simple.Node(i)})
			continue
		}
		idx, ok := index[l]
		if !ok {
			idx = len(communities)
			index[l] = idx
			communities = append(communities, nil)
		}
		communities[idx] = append(communities[idx], simple.Node(i))
	}
	return community.Q(nw.g, communities, 1), nil
}
