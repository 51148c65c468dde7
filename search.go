package geoap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Phase names the rule that produced the next preference after a probe.
type Phase string

const (
	// PhaseBootstrap moves the similarity quantile; it does not cost budget.
	PhaseBootstrap Phase = "bootstrap"
	// PhaseExpand doubles or halves the preference to find a bracket.
	PhaseExpand Phase = "expand"
	// PhaseBisect averages the two most recent preferences inside a bracket.
	PhaseBisect Phase = "bisect"
)

// SearchConfig controls the preference search.
// Start with [DefaultSearchConfig] and override the fields you need.
type SearchConfig struct {
	// DesiredClusters is the target number of clusters. Must be >= 1.
	// Default: 500.
	DesiredClusters int

	// Tolerance is how far the cluster count may be from DesiredClusters for
	// the search to stop successfully. Must be >= 0. Default: 100.
	Tolerance int

	// InitialQuantile selects the similarity quantile used for the first
	// preference. Must be in [0, 1]. Default: 0.95.
	InitialQuantile float64

	// QuantileStep is how far the quantile moves after each bootstrap probe.
	// The quantile goes down when there are too many clusters and up
	// otherwise. Must be > 0. Default: 0.15.
	QuantileStep float64

	// RetryBudget limits the probes made once two probes have produced
	// clusters. Must be >= 1. Default: 10.
	RetryBudget int

	// MaxBootstrapProbes limits the probes made before two probes have
	// produced clusters. Bootstrap probes are not charged to RetryBudget, so
	// without this bound an oracle that never produces clusters would keep
	// the search running forever. Must be >= 1. Default: 50.
	MaxBootstrapProbes int

	// Logger receives probe and termination logs. Default: zap.NewNop().
	Logger *zap.Logger

	// Observer, if non-nil, is called once per probe.
	Observer SearchObserver
}

// DefaultSearchConfig returns a SearchConfig with reasonable defaults.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		DesiredClusters:    500,
		Tolerance:          100,
		InitialQuantile:    0.95,
		QuantileStep:       0.15,
		RetryBudget:        10,
		MaxBootstrapProbes: 50,
	}
}

func applySearchDefaults(cfg *SearchConfig) {
	if cfg.QuantileStep == 0 {
		cfg.QuantileStep = 0.15
	}
	if cfg.RetryBudget == 0 {
		cfg.RetryBudget = 10
	}
	if cfg.MaxBootstrapProbes == 0 {
		cfg.MaxBootstrapProbes = 50
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
}

func validateSearchConfig(cfg *SearchConfig) error {
	if cfg.DesiredClusters < 1 {
		return fmt.Errorf("geoap: DesiredClusters must be >= 1, got %d", cfg.DesiredClusters)
	}
	if cfg.Tolerance < 0 {
		return fmt.Errorf("geoap: Tolerance must be >= 0, got %d", cfg.Tolerance)
	}
	if cfg.InitialQuantile < 0 || cfg.InitialQuantile > 1 {
		return fmt.Errorf("geoap: InitialQuantile must be in [0, 1], got %f", cfg.InitialQuantile)
	}
	if cfg.QuantileStep <= 0 {
		return fmt.Errorf("geoap: QuantileStep must be > 0, got %f", cfg.QuantileStep)
	}
	if cfg.RetryBudget < 1 {
		return fmt.Errorf("geoap: RetryBudget must be >= 1, got %d", cfg.RetryBudget)
	}
	if cfg.MaxBootstrapProbes < 1 {
		return fmt.Errorf("geoap: MaxBootstrapProbes must be >= 1, got %d", cfg.MaxBootstrapProbes)
	}
	return nil
}

// Attempt describes one probe of the oracle and the step that followed it.
type Attempt struct {
	// Probe is the 1-based probe number.
	Probe int
	// Phase is the rule that produced Next.
	Phase Phase
	// Preference is the value the oracle was called with.
	Preference float64
	// Next is the preference proposed for the following probe.
	Next float64
	// Quantile is the quantile level after the step.
	Quantile float64
	// Clusters is the number of exemplars the oracle reported.
	Clusters int
	// Degenerate is true when every label came back Unassigned.
	Degenerate bool
	// Budget is the retry budget left after the step.
	Budget int
	// Duration is the wall time of the oracle call.
	Duration time.Duration
}

// SearchObserver receives every Attempt as it happens.
type SearchObserver interface {
	ObserveAttempt(Attempt)
}

// SearchResult is the outcome of a successful search.
type SearchResult struct {
	// Outcome is the clustering from the final probe.
	Outcome *Outcome
	// Preference is the value that produced Outcome.
	Preference float64
	// Clusters is the number of clusters in Outcome.
	Clusters int
	// Probes is the number of oracle calls made.
	Probes int
	// Preferences lists every proposed preference in order, starting with the
	// bootstrap value. It is one longer than the number of probes.
	Preferences []float64
	// ClusterCounts lists the cluster counts of the probes that produced at
	// least one cluster.
	ClusterCounts []int
	// Attempts is the full probe trace.
	Attempts []Attempt
}

// NotConvergedError reports a search that ended without a usable clustering.
// It matches ErrNotConverged under errors.Is.
type NotConvergedError struct {
	Probes          int
	Clusters        int
	DesiredClusters int
	Tolerance       int
	Attempts        []Attempt
}

func (e *NotConvergedError) Error() string {
	return fmt.Sprintf("%v: %d clusters after %d probes (want %d±%d)",
		ErrNotConverged, e.Clusters, e.Probes, e.DesiredClusters, e.Tolerance)
}

func (e *NotConvergedError) Unwrap() error { return ErrNotConverged }

// Searcher looks for a preference that makes the oracle produce a cluster
// count within tolerance of the target.
type Searcher struct {
	sim    *SimilarityMatrix
	oracle Oracle
	cfg    SearchConfig
}

// NewSearcher validates cfg and returns a Searcher. sim seeds the preference
// candidates and is never handed to the oracle.
func NewSearcher(sim *SimilarityMatrix, oracle Oracle, cfg SearchConfig) (*Searcher, error) {
	if sim == nil || sim.Len() == 0 {
		return nil, fmt.Errorf("geoap: similarity matrix is required: %w", ErrEmptyInput)
	}
	if oracle == nil {
		return nil, fmt.Errorf("geoap: oracle is required")
	}
	applySearchDefaults(&cfg)
	if err := validateSearchConfig(&cfg); err != nil {
		return nil, err
	}
	return &Searcher{sim: sim, oracle: oracle, cfg: cfg}, nil
}

// Run probes the oracle until the cluster count is within tolerance or the
// budget is spent. Probes run one at a time since each result decides the
// next preference. A failed search returns a *NotConvergedError and no
// clustering.
func (s *Searcher) Run(ctx context.Context) (*SearchResult, error) {
	log := s.cfg.Logger
	st := newSearchState(s.sim, &s.cfg)

	log.Info("preference search started",
		zap.Int("desired_clusters", s.cfg.DesiredClusters),
		zap.Int("tolerance", s.cfg.Tolerance),
		zap.Float64("quantile", st.quantile),
		zap.Float64("preference", st.preference),
		zap.Int("retry_budget", st.budget),
	)

	var (
		last     *Outcome
		lastPref float64
		attempts []Attempt
	)
	for st.searching() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("geoap: search canceled after %d probes: %w", len(attempts), err)
		}
		if st.bootstrapping() && st.bootstrapProbes >= s.cfg.MaxBootstrapProbes {
			log.Warn("bootstrap probe limit reached", zap.Int("probes", st.bootstrapProbes))
			break
		}

		probe := len(attempts) + 1
		pref := st.preference
		start := time.Now()
		out, err := s.oracle.Evaluate(ctx, pref)
		if err != nil {
			return nil, fmt.Errorf("geoap: probe %d (preference %g): %w", probe, pref, err)
		}
		elapsed := time.Since(start)
		if out == nil {
			out = &Outcome{}
		}

		phase := st.step(out)
		a := Attempt{
			Probe:      probe,
			Phase:      phase,
			Preference: pref,
			Next:       st.preference,
			Quantile:   st.quantile,
			Clusters:   out.NumClusters(),
			Degenerate: out.AllUnassigned(),
			Budget:     st.budget,
			Duration:   elapsed,
		}
		attempts = append(attempts, a)
		if s.cfg.Observer != nil {
			s.cfg.Observer.ObserveAttempt(a)
		}
		log.Debug("probe finished",
			zap.Int("probe", probe),
			zap.String("phase", string(phase)),
			zap.Float64("preference", pref),
			zap.Int("clusters", a.Clusters),
			zap.Bool("degenerate", a.Degenerate),
			zap.Float64("next_preference", a.Next),
			zap.Float64("quantile", a.Quantile),
			zap.Int("budget", a.Budget),
			zap.Duration("elapsed", elapsed),
		)

		last, lastPref = out, pref
	}

	if st.clusters == 0 || !st.withinTolerance() {
		err := &NotConvergedError{
			Probes:          len(attempts),
			Clusters:        st.clusters,
			DesiredClusters: s.cfg.DesiredClusters,
			Tolerance:       s.cfg.Tolerance,
			Attempts:        attempts,
		}
		log.Warn("preference search did not converge",
			zap.Int("probes", err.Probes),
			zap.Int("clusters", err.Clusters),
			zap.Int("budget", st.budget),
		)
		return nil, err
	}

	log.Info("preference search converged",
		zap.Int("probes", len(attempts)),
		zap.Int("clusters", st.clusters),
		zap.Float64("preference", lastPref),
		zap.Float64("modularity", last.Modularity),
	)

	return &SearchResult{
		Outcome:       last,
		Preference:    lastPref,
		Clusters:      st.clusters,
		Probes:        len(attempts),
		Preferences:   st.preferences,
		ClusterCounts: st.counts,
		Attempts:      attempts,
	}, nil
}

// searchState is the mutable state of one Run.
type searchState struct {
	cfg *SearchConfig
	sim *SimilarityMatrix

	preference  float64   // next value to probe
	preferences []float64 // every proposed value, bootstrap first
	counts      []int     // cluster counts of probes that produced clusters
	quantile    float64
	budget      int
	clusters    int // count of the latest probe; 0 before the first

	bootstrapProbes int
}

func newSearchState(sim *SimilarityMatrix, cfg *SearchConfig) *searchState {
	p := sim.Bootstrap(cfg.InitialQuantile)
	return &searchState{
		cfg:         cfg,
		sim:         sim,
		preference:  p,
		preferences: []float64{p},
		quantile:    cfg.InitialQuantile,
		budget:      cfg.RetryBudget,
	}
}

func (s *searchState) withinTolerance() bool {
	d := s.cfg.DesiredClusters - s.clusters
	if d < 0 {
		d = -d
	}
	return d <= s.cfg.Tolerance
}

func (s *searchState) searching() bool {
	return !s.withinTolerance() && s.budget > 0
}

func (s *searchState) bootstrapping() bool {
	return len(s.counts) < 2
}

// step folds one oracle outcome into the state and proposes the next
// preference. The all-unassigned override of the cluster count is applied
// only after the next preference has been chosen from the raw count.
func (s *searchState) step(out *Outcome) Phase {
	clusters := out.NumClusters()
	desired := s.cfg.DesiredClusters
	if clusters > 0 {
		s.counts = append(s.counts, clusters)
	}
	prev := s.preferences[len(s.preferences)-1]

	var phase Phase
	if s.bootstrapping() {
		phase = PhaseBootstrap
		s.bootstrapProbes++
		if clusters > desired {
			s.quantile -= s.cfg.QuantileStep
		} else {
			s.quantile += s.cfg.QuantileStep
		}
		s.preference = s.quantilePreference(prev)
	} else {
		before, latest := s.counts[len(s.counts)-2], s.counts[len(s.counts)-1]
		if sameSide(before, latest, desired) {
			phase = PhaseExpand
			switch {
			case clusters > desired:
				s.preference = prev * 2
			case clusters < desired && clusters > 0:
				s.preference = prev / 2
			}
			// A probe with no clusters leaves the preference where it was.
		} else {
			phase = PhaseBisect
			s.preference = (prev + s.preferences[len(s.preferences)-2]) / 2
		}
		s.budget--
	}
	s.preferences = append(s.preferences, s.preference)

	s.clusters = clusters
	if out.AllUnassigned() {
		s.clusters = 0
	}
	return phase
}

// quantilePreference turns the current quantile level into a preference.
// Outside [0, 1] the quantile can no longer move, so the previous preference
// is scaled instead: doubled below 0, halved above 1.
func (s *searchState) quantilePreference(prev float64) float64 {
	switch {
	case s.quantile < 0:
		return prev * 2
	case s.quantile > 1:
		return prev / 2
	}
	threshold := s.sim.Quantile(s.quantile)
	if threshold == 0 {
		return prev * 2
	}
	if median, ok := s.sim.MedianAbove(threshold); ok {
		return median
	}
	return prev * 2
}

// sameSide reports whether a and b are both above or both below target.
func sameSide(a, b, target int) bool {
	return (a > target && b > target) || (a < target && b < target)
}
