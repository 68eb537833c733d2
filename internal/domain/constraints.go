package domain

type CapacityChecker interface {
	CanFit(inst *Instance, currentWeight float64, item Item) bool
	ValidateSelection(inst *Instance, chosen []bool) bool
}

// ExactChecker admits an item only when the running total stays at or under
// capacity with no tolerance. Constructive solvers use it.
type ExactChecker struct{}

func NewExactChecker() CapacityChecker {
	return &ExactChecker{}
}

func (c *ExactChecker) CanFit(inst *Instance, currentWeight float64, item Item) bool {
	return currentWeight+item.Weight <= inst.Capacity()
}

func (c *ExactChecker) ValidateSelection(inst *Instance, chosen []bool) bool {
	_, weight := inst.Weigh(chosen)
	return weight <= inst.Capacity()
}

// TolerantChecker applies the engine-wide Epsilon. Feasibility of finished
// solutions and local-search neighbors is judged with it.
type TolerantChecker struct{}

func NewTolerantChecker() CapacityChecker {
	return &TolerantChecker{}
}

func (c *TolerantChecker) CanFit(inst *Instance, currentWeight float64, item Item) bool {
	return inst.Fits(currentWeight + item.Weight)
}

func (c *TolerantChecker) ValidateSelection(inst *Instance, chosen []bool) bool {
	_, weight := inst.Weigh(chosen)
	return inst.Fits(weight)
}

// FittingIndices returns the indices of items that fit in an empty knapsack,
// in original order. Items heavier than capacity can never be selected.
func FittingIndices(inst *Instance) []int {
	fitting := make([]int, 0, inst.Len())

	for i := 0; i < inst.Len(); i++ {
		if inst.Item(i).Weight > inst.Capacity() {
			continue
		}
		fitting = append(fitting, i)
	}

	return fitting
}

// SplitFreeItems separates zero-weight items from the rest.
func SplitFreeItems(inst *Instance, indices []int) (free []int, weighted []int) {
	free = make([]int, 0)
	weighted = make([]int, 0, len(indices))

	for _, i := range indices {
		if inst.Item(i).Weight == 0 {
			free = append(free, i)
		} else {
			weighted = append(weighted, i)
		}
	}

	return
}
