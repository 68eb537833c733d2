package algorithm

import (
	"context"
	"fmt"
	"sort"
	"time"

	"knapsack-bench/internal/domain"
)

// GreedySolver admits items in value/weight order while they fit. One pass,
// no backtracking.
type GreedySolver struct {
	checker domain.CapacityChecker
}

func NewGreedySolver() *GreedySolver {
	return &GreedySolver{
		checker: domain.NewExactChecker(),
	}
}

func (g *GreedySolver) Name() string { return GreedyName }

func (g *GreedySolver) Solve(_ context.Context, inst *domain.Instance) (Result, error) {
	startTime := time.Now()

	if err := inst.Validate(); err != nil {
		return Result{}, err
	}

	chosen := g.Construct(inst)
	if !g.checker.ValidateSelection(inst, chosen) {
		return Result{}, fmt.Errorf("greedy construction exceeds capacity %g", inst.Capacity())
	}
	sol := domain.NewSolution(inst, g.Name(), chosen, inst.Len(), time.Since(startTime))

	return Result{Solution: sol, Status: heuristicStatus(sol)}, nil
}

// Construct returns the greedy membership vector. Zero-weight items with
// positive value are admitted before the ratio scan; zero-weight items with
// zero value are never admitted.
func (g *GreedySolver) Construct(inst *domain.Instance) []bool {
	chosen := make([]bool, inst.Len())
	totalWeight := 0.0

	all := make([]int, inst.Len())
	for i := range all {
		all[i] = i
	}
	free, weighted := domain.SplitFreeItems(inst, all)

	for _, i := range free {
		if inst.Item(i).Value > 0 && g.checker.CanFit(inst, totalWeight, inst.Item(i)) {
			chosen[i] = true
		}
	}

	for _, i := range sortByRatio(inst, weighted) {
		item := inst.Item(i)
		if !g.checker.CanFit(inst, totalWeight, item) {
			continue
		}
		chosen[i] = true
		totalWeight += item.Weight
	}

	return chosen
}

// sortByRatio orders positive-weight item indices by value/weight descending.
// The sort is stable so equal ratios keep their original order.
func sortByRatio(inst *domain.Instance, indices []int) []int {
	sorted := make([]int, len(indices))
	copy(sorted, indices)

	sort.SliceStable(sorted, func(a, b int) bool {
		return inst.Item(sorted[a]).Ratio() > inst.Item(sorted[b]).Ratio()
	})

	return sorted
}
