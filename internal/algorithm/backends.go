package algorithm

import (
	"context"
	"fmt"
	"math/bits"
	"time"

	"knapsack-bench/internal/domain"
)

const (
	SubsetBackendName = "subset-dp"
	BnBBackendName    = "branch-and-bound"
	HybridBackendName = "hybrid"
	NoBackendName     = "none"

	DefaultMaxEnumerationItems = 22
	// MaxEnumerationItemsLimit bounds the subset tables at 2^24 states.
	MaxEnumerationItemsLimit = 24

	// deadline is polled once per this many search nodes
	pollMask = 4095
)

// NewExactBackend builds an in-process reference backend by name. "none"
// yields a nil backend, which the adapter reports as unavailable.
func NewExactBackend(name string, maxEnumerationItems int) (ExactBackend, error) {
	if maxEnumerationItems > MaxEnumerationItemsLimit {
		return nil, fmt.Errorf("%w: max enumeration items must be at most %d (got %d)",
			domain.ErrInvalidConfig, MaxEnumerationItemsLimit, maxEnumerationItems)
	}
	switch name {
	case HybridBackendName, "":
		return NewHybridBackend(maxEnumerationItems), nil
	case SubsetBackendName:
		return NewSubsetEnumerator(maxEnumerationItems), nil
	case BnBBackendName:
		return NewBranchAndBound(), nil
	case NoBackendName:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown exact backend %q", domain.ErrInvalidConfig, name)
	}
}

// candidates are the items an optimal selection could contain beyond the free
// ones: they fit alone and carry value.
func candidates(inst *domain.Instance) (free []int, weighted []int) {
	valued := make([]int, 0, inst.Len())
	for _, i := range domain.FittingIndices(inst) {
		if inst.Item(i).Value > 0 {
			valued = append(valued, i)
		}
	}
	return domain.SplitFreeItems(inst, valued)
}

// SubsetEnumerator evaluates every subset of the candidate items with a
// bitmask table. Exponential, so it refuses more than maxItems candidates.
type SubsetEnumerator struct {
	maxItems int
}

func NewSubsetEnumerator(maxItems int) *SubsetEnumerator {
	if maxItems <= 0 {
		maxItems = DefaultMaxEnumerationItems
	}
	if maxItems > MaxEnumerationItemsLimit {
		maxItems = MaxEnumerationItemsLimit
	}
	return &SubsetEnumerator{maxItems: maxItems}
}

func (e *SubsetEnumerator) Name() string { return SubsetBackendName }

func (e *SubsetEnumerator) SolveExact(ctx context.Context, inst *domain.Instance, _ time.Duration) (BackendResult, error) {
	free, weighted := candidates(inst)
	orders := make([]int, 0, len(free)+len(weighted))
	orders = append(orders, free...)
	orders = append(orders, weighted...)
	n := len(orders)

	if n > e.maxItems || n > MaxEnumerationItemsLimit {
		return BackendResult{}, fmt.Errorf("subset enumeration supports at most %d candidate items (got %d)", e.maxItems, n)
	}

	maxStates := 1 << n

	dpValue := make([]float64, maxStates)
	dpWeight := make([]float64, maxStates)
	dpValid := make([]bool, maxStates)

	dpValid[0] = true
	bestMask := 0
	nodes := 1
	termination := TerminationOptimal

	for mask := 1; mask < maxStates; mask++ {
		if mask&pollMask == 0 && ctx.Err() != nil {
			termination = TerminationTimeLimit
			break
		}

		low := bits.TrailingZeros(uint(mask))
		prev := mask &^ (1 << low)
		if !dpValid[prev] {
			continue
		}

		item := inst.Item(orders[low])
		newWeight := dpWeight[prev] + item.Weight
		if !inst.Fits(newWeight) {
			continue
		}

		dpValid[mask] = true
		dpWeight[mask] = newWeight
		dpValue[mask] = dpValue[prev] + item.Value
		nodes++

		if dpValue[mask] > dpValue[bestMask] {
			bestMask = mask
		}
	}

	return BackendResult{
		Chosen:      e.extract(inst, bestMask, orders),
		Termination: termination,
		Nodes:       nodes,
	}, nil
}

func (e *SubsetEnumerator) extract(inst *domain.Instance, mask int, orders []int) []bool {
	chosen := make([]bool, inst.Len())

	for bit, i := range orders {
		if (mask & (1 << bit)) != 0 {
			chosen[i] = true
		}
	}

	return chosen
}

// BranchAndBound is a depth-first exact search over ratio-sorted items with a
// fractional (LP relaxation) upper bound. The greedy construction seeds the
// incumbent.
type BranchAndBound struct {
	checker     domain.CapacityChecker
	constructor *GreedySolver
}

func NewBranchAndBound() *BranchAndBound {
	return &BranchAndBound{
		checker:     domain.NewTolerantChecker(),
		constructor: NewGreedySolver(),
	}
}

func (b *BranchAndBound) Name() string { return BnBBackendName }

type bbEngine struct {
	inst    *domain.Instance
	checker domain.CapacityChecker
	ctx     context.Context
	order   []int

	current   []bool
	best      []bool
	bestValue float64

	nodes   int
	stopped bool
}

func (b *BranchAndBound) SolveExact(ctx context.Context, inst *domain.Instance, _ time.Duration) (BackendResult, error) {
	free, weighted := candidates(inst)

	e := &bbEngine{
		inst:    inst,
		checker: b.checker,
		ctx:     ctx,
		order:   sortByRatio(inst, weighted),
		current: make([]bool, inst.Len()),
	}

	baseValue := 0.0
	for _, i := range free {
		e.current[i] = true
		baseValue += inst.Item(i).Value
	}

	e.best = b.constructor.Construct(inst)
	e.bestValue, _ = inst.Weigh(e.best)

	e.search(0, baseValue, 0)

	termination := TerminationOptimal
	if e.stopped {
		termination = TerminationTimeLimit
	}

	return BackendResult{
		Chosen:      e.best,
		Termination: termination,
		Nodes:       e.nodes,
	}, nil
}

func (e *bbEngine) search(pos int, value, weight float64) {
	e.nodes++
	if e.nodes&pollMask == 0 && e.ctx.Err() != nil {
		e.stopped = true
	}
	if e.stopped {
		return
	}

	if value > e.bestValue {
		e.bestValue = value
		copy(e.best, e.current)
	}

	if pos >= len(e.order) {
		return
	}

	if value+e.bound(pos, weight) <= e.bestValue+domain.Epsilon {
		return
	}

	i := e.order[pos]
	item := e.inst.Item(i)

	if e.checker.CanFit(e.inst, weight, item) {
		e.current[i] = true
		e.search(pos+1, value+item.Value, weight+item.Weight)
		e.current[i] = false
	}

	e.search(pos+1, value, weight)
}

// bound is the fractional-knapsack optimum over order[pos:] for the remaining
// capacity. It never underestimates the integral optimum.
func (e *bbEngine) bound(pos int, weight float64) float64 {
	remaining := e.inst.Capacity() + domain.Epsilon - weight
	if remaining < 0 {
		remaining = 0
	}
	total := 0.0

	for _, i := range e.order[pos:] {
		item := e.inst.Item(i)
		if item.Weight <= remaining {
			remaining -= item.Weight
			total += item.Value
			continue
		}
		total += item.Value * (remaining / item.Weight)
		break
	}

	return total
}

// HybridBackend enumerates small candidate sets and branches on larger ones.
type HybridBackend struct {
	enumerator          *SubsetEnumerator
	branchAndBound      *BranchAndBound
	maxEnumerationItems int
}

func NewHybridBackend(maxEnumerationItems int) *HybridBackend {
	if maxEnumerationItems <= 0 {
		maxEnumerationItems = DefaultMaxEnumerationItems
	}
	if maxEnumerationItems > MaxEnumerationItemsLimit {
		maxEnumerationItems = MaxEnumerationItemsLimit
	}
	return &HybridBackend{
		enumerator:          NewSubsetEnumerator(maxEnumerationItems),
		branchAndBound:      NewBranchAndBound(),
		maxEnumerationItems: maxEnumerationItems,
	}
}

func (h *HybridBackend) Name() string { return HybridBackendName }

func (h *HybridBackend) SolveExact(ctx context.Context, inst *domain.Instance, timeLimit time.Duration) (BackendResult, error) {
	free, weighted := candidates(inst)
	if len(free)+len(weighted) <= h.maxEnumerationItems {
		return h.enumerator.SolveExact(ctx, inst, timeLimit)
	}
	return h.branchAndBound.SolveExact(ctx, inst, timeLimit)
}
