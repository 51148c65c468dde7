// Package geoap implements network-aware affinity propagation together with an
// adaptive search over its preference parameter.
//
// Affinity propagation picks exemplars from a set of points; the preference
// (the self-similarity placed on the diagonal) decides how many. The geometric
// variant additionally restricts every point to exemplars that lie within a
// fixed distance of it in an interaction network. Picking a preference that
// yields a given number of clusters is a search problem: the cluster count
// responds to the preference roughly monotonically, but noisily, and every
// evaluation is a full clustering run.
//
// Basic usage:
//
//	sim, err := geoap.NewSimilarityMatrix(embeddings, geoap.NegSquaredEuclidean{}, 0)
//	network, err := geoap.NewNetwork(len(embeddings), edges)
//	oracle, err := geoap.NewGeometricOracle(embeddings, network, geoap.DefaultOracleConfig())
//
//	cfg := geoap.DefaultSearchConfig()
//	cfg.DesiredClusters = 500
//	searcher, err := geoap.NewSearcher(sim, oracle, cfg)
//	result, err := searcher.Run(ctx)
//	// errors.Is(err, geoap.ErrNotConverged) when the budget runs out
//
// # Search strategy
//
// The first preference is the median of the similarities above a high
// quantile (0.95 by default). Until two probes have produced clusters, the
// quantile moves by a fixed step after every probe; these bootstrap probes do
// not consume the retry budget. After that, two counts on the same side of the
// target double or halve the preference, and two counts straddling it bisect
// between the last two proposals. Each of these probes costs one unit of
// budget.
//
// Any type with an Evaluate method can stand in for the clustering, which is
// how the search is tested against scripted responses.
package geoap
