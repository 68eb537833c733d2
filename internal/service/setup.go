package service

import (
	"context"

	"go.uber.org/zap"

	"knapsack-bench/internal/algorithm"
	"knapsack-bench/internal/config"
	"knapsack-bench/internal/harness"
	"knapsack-bench/internal/metrics"
	"knapsack-bench/internal/store"
)

// FromConfig wires the service with the configured backend, store and
// normalizer. The returned close func releases the store.
func FromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger, collectors *metrics.Collectors) (*OptimizerService, func() error, error) {
	backend, err := algorithm.NewExactBackend(cfg.Solver.Exact.Backend, cfg.Solver.Exact.MaxEnumerationItems)
	if err != nil {
		return nil, nil, err
	}

	opts := Options{
		Defaults: SolverOptions{
			MaxIterations: cfg.Solver.LocalSearch.MaxIterations,
			Seed:          cfg.Solver.LocalSearch.Seed,
			TimeLimit:     cfg.Solver.Exact.TimeLimit,
		},
		Backend:    backend,
		Normalizer: harness.NewNormalizer(harness.NewCanonicalizer(cfg.Harness.SolverTags), logger),
		Metrics:    collectors,
		Logger:     logger,
	}

	closeFn := func() error { return nil }
	if cfg.Store.DSN != "" {
		st, err := store.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		opts.Store = st
		closeFn = st.Close
	}

	return NewOptimizerService(opts), closeFn, nil
}
