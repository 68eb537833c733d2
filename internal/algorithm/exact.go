package algorithm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"knapsack-bench/internal/domain"
)

// Termination is how an exact backend stopped.
type Termination int

const (
	TerminationOptimal Termination = iota
	TerminationTimeLimit
	TerminationInfeasible
	TerminationFailed
)

func (t Termination) String() string {
	switch t {
	case TerminationOptimal:
		return "optimal"
	case TerminationTimeLimit:
		return "time_limit"
	case TerminationInfeasible:
		return "infeasible"
	default:
		return "failed"
	}
}

// BackendResult is a backend's raw answer. Chosen is indexed like the
// instance items and may be nil when the backend found nothing.
type BackendResult struct {
	Chosen      []bool
	Termination Termination
	Nodes       int
}

// ExactBackend is the seam toward a branch-and-bound or MILP engine.
// Implementations must honor timeLimit (0 means none) and ctx.
type ExactBackend interface {
	Name() string
	SolveExact(ctx context.Context, inst *domain.Instance, timeLimit time.Duration) (BackendResult, error)
}

// ExactAdapter turns any ExactBackend into a Solver and maps backend outcomes
// onto the engine's status set and error taxonomy.
type ExactAdapter struct {
	backend   ExactBackend
	timeLimit time.Duration
}

// NewExactAdapter accepts a nil backend; Solve then reports
// ErrBackendUnavailable with StatusUnknown.
func NewExactAdapter(backend ExactBackend, timeLimit time.Duration) *ExactAdapter {
	return &ExactAdapter{
		backend:   backend,
		timeLimit: timeLimit,
	}
}

func (a *ExactAdapter) Name() string { return ExactName }

// Solve always returns a usable Result, even alongside an error, so callers
// can record the attempt with StatusUnknown.
func (a *ExactAdapter) Solve(ctx context.Context, inst *domain.Instance) (Result, error) {
	startTime := time.Now()

	if err := inst.Validate(); err != nil {
		return Result{}, err
	}

	unknown := Result{Solution: domain.EmptySolution(inst, a.Name()), Status: domain.StatusUnknown}

	if a.backend == nil {
		return unknown, fmt.Errorf("%w: no backend configured", domain.ErrBackendUnavailable)
	}

	solveCtx := ctx
	cancel := func() {}
	if a.timeLimit > 0 {
		solveCtx, cancel = context.WithTimeout(ctx, a.timeLimit)
	}
	defer cancel()

	res, err := a.backend.SolveExact(solveCtx, inst, a.timeLimit)
	elapsed := time.Since(startTime)
	unknown.Solution.WallTimeSeconds = elapsed.Seconds()

	if err != nil {
		if errors.Is(err, domain.ErrBackendUnavailable) {
			return unknown, err
		}
		return unknown, fmt.Errorf("%w: %s: %v", domain.ErrBackendUnavailable, a.backend.Name(), err)
	}

	switch res.Termination {
	case TerminationInfeasible:
		return unknown, fmt.Errorf("%w: %s reported an infeasible model", domain.ErrBackendUnavailable, a.backend.Name())
	case TerminationFailed:
		return unknown, fmt.Errorf("%w: %s failed without a solution", domain.ErrBackendUnavailable, a.backend.Name())
	}

	if len(res.Chosen) != inst.Len() {
		if res.Termination == TerminationTimeLimit && res.Chosen == nil {
			return unknown, nil
		}
		return unknown, fmt.Errorf("%w: %s returned %d memberships for %d items",
			domain.ErrBackendUnavailable, a.backend.Name(), len(res.Chosen), inst.Len())
	}

	sol := domain.NewSolution(inst, a.Name(), res.Chosen, res.Nodes, elapsed)

	status := domain.StatusFeasible
	if res.Termination == TerminationOptimal {
		status = domain.StatusOptimal
	}
	if !sol.Feasible {
		status = domain.StatusUnknown
	}

	return Result{Solution: sol, Status: status}, nil
}
