package algorithm

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"knapsack-bench/internal/domain"
)

// AcceptFunc observes every accepted move: the 1-based proposal number and
// the new incumbent objective.
type AcceptFunc func(iteration int, objective float64)

// LocalSearchSolver is a strict hill climber over a double bit-flip
// neighborhood, started from the greedy construction.
type LocalSearchSolver struct {
	MaxIterations int
	Seed          int64
	OnAccept      AcceptFunc

	constructor *GreedySolver
}

func NewLocalSearchSolver(maxIterations int, seed int64) (*LocalSearchSolver, error) {
	s := &LocalSearchSolver{
		MaxIterations: maxIterations,
		Seed:          seed,
		constructor:   NewGreedySolver(),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalSearchSolver) Validate() error {
	if s.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations must be > 0 (got %d)", domain.ErrInvalidConfig, s.MaxIterations)
	}
	return nil
}

func (s *LocalSearchSolver) Name() string { return LocalSearchName }

// Solve evaluates exactly MaxIterations proposals. The generator is created
// here from Seed, so concurrent calls never share random state.
func (s *LocalSearchSolver) Solve(_ context.Context, inst *domain.Instance) (Result, error) {
	startTime := time.Now()

	if err := inst.Validate(); err != nil {
		return Result{}, err
	}
	if err := s.Validate(); err != nil {
		return Result{}, err
	}

	n := inst.Len()
	if n == 0 {
		sol := domain.EmptySolution(inst, s.Name())
		return Result{Solution: sol, Status: heuristicStatus(sol)}, nil
	}

	rng := rand.New(rand.NewSource(s.Seed))

	constructor := s.constructor
	if constructor == nil {
		constructor = NewGreedySolver()
	}

	incumbent := constructor.Construct(inst)
	bestValue, _ := inst.Weigh(incumbent)
	neighbor := make([]bool, n)

	for iter := 1; iter <= s.MaxIterations; iter++ {
		i := rng.Intn(n)
		j := rng.Intn(n)

		copy(neighbor, incumbent)
		neighbor[i] = !neighbor[i]
		if i != j {
			neighbor[j] = !neighbor[j]
		}

		value, weight := inst.Weigh(neighbor)
		if !inst.Fits(weight) || value <= bestValue {
			continue
		}

		incumbent, neighbor = neighbor, incumbent
		bestValue = value
		if s.OnAccept != nil {
			s.OnAccept(iter, bestValue)
		}
	}

	sol := domain.NewSolution(inst, s.Name(), incumbent, s.MaxIterations, time.Since(startTime))
	return Result{Solution: sol, Status: heuristicStatus(sol)}, nil
}
