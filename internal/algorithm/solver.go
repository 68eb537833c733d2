package algorithm

import (
	"context"

	"knapsack-bench/internal/domain"
)

const (
	GreedyName      = "greedy"
	LocalSearchName = "local_search"
	ExactName       = "exact"
)

type Solver interface {
	Name() string
	Solve(ctx context.Context, inst *domain.Instance) (Result, error)
}

// Result pairs a solution with the termination status reported for it.
type Result struct {
	Solution domain.Solution
	Status   domain.Status
}

// heuristicStatus is what a heuristic can honestly claim: it never proves
// optimality.
func heuristicStatus(sol domain.Solution) domain.Status {
	if sol.Feasible {
		return domain.StatusFeasible
	}
	return domain.StatusUnknown
}
