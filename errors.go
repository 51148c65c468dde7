package geoap

import "errors"

var (
	// ErrEmptyInput is returned when there are no points, or no similarity values.
	ErrEmptyInput = errors.New("geoap: empty input")

	// ErrDimensionMismatch is returned when inputs disagree on shape: ragged
	// embeddings, a network whose size differs from the number of points, or
	// a label slice of the wrong length.
	ErrDimensionMismatch = errors.New("geoap: dimension mismatch")

	// ErrNonSquare is returned when a flat similarity slice is not n*n long.
	ErrNonSquare = errors.New("geoap: similarity matrix is not square")

	// ErrInvalidWeight is returned for negative, NaN or infinite edge weights.
	ErrInvalidWeight = errors.New("geoap: invalid edge weight")

	// ErrUnknownMode is returned for an unsupported network similarity mode.
	ErrUnknownMode = errors.New("geoap: unknown network similarity mode")

	// ErrNotConverged is returned by Searcher.Run when no preference produced
	// a cluster count within tolerance. Use errors.As with *NotConvergedError
	// for the probe trace.
	ErrNotConverged = errors.New("geoap: preference search did not converge")
)
