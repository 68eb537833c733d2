package domain

import (
	"fmt"
	"math"
	"time"
)

// Epsilon is the tolerance used for every floating comparison in the engine.
const Epsilon = 1e-9

type Item struct {
	ID     string  `json:"id"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// Ratio returns value/weight. Callers must special-case Weight == 0.
func (it Item) Ratio() float64 {
	return it.Value / it.Weight
}

// Instance is immutable once built; solvers share it read-only.
type Instance struct {
	id       string
	items    []Item
	capacity float64
}

func NewInstance(id string, items []Item, capacity float64) (*Instance, error) {
	owned := make([]Item, len(items))
	copy(owned, items)

	inst := &Instance{id: id, items: owned, capacity: capacity}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

func (inst *Instance) Validate() error {
	if inst == nil {
		return &InstanceError{Index: -1, Reason: "instance is nil"}
	}
	if math.IsNaN(inst.capacity) || math.IsInf(inst.capacity, 0) {
		return &InstanceError{InstanceID: inst.id, Index: -1, Reason: "capacity must be finite"}
	}
	if inst.capacity < 0 {
		return &InstanceError{InstanceID: inst.id, Index: -1, Reason: fmt.Sprintf("capacity must be >= 0 (got %g)", inst.capacity)}
	}

	seenIDs := make(map[string]bool, len(inst.items))
	for i, item := range inst.items {
		if item.ID == "" {
			return &InstanceError{InstanceID: inst.id, Index: i, Reason: "item id is required"}
		}
		if seenIDs[item.ID] {
			return &InstanceError{InstanceID: inst.id, Index: i, Reason: fmt.Sprintf("duplicate item id %q", item.ID)}
		}
		seenIDs[item.ID] = true

		if !isFinite(item.Value) || !isFinite(item.Weight) {
			return &InstanceError{InstanceID: inst.id, Index: i, Reason: "value and weight must be finite"}
		}
		if item.Weight < 0 {
			return &InstanceError{InstanceID: inst.id, Index: i, Reason: fmt.Sprintf("weight must be >= 0 (got %g)", item.Weight)}
		}
		if item.Value < 0 {
			return &InstanceError{InstanceID: inst.id, Index: i, Reason: fmt.Sprintf("value must be >= 0 (got %g)", item.Value)}
		}
	}
	return nil
}

func (inst *Instance) ID() string        { return inst.id }
func (inst *Instance) Capacity() float64 { return inst.capacity }
func (inst *Instance) Len() int          { return len(inst.items) }
func (inst *Instance) Item(i int) Item   { return inst.items[i] }

// Items returns a copy of the item sequence in original order.
func (inst *Instance) Items() []Item {
	out := make([]Item, len(inst.items))
	copy(out, inst.items)
	return out
}

// Weigh sums value and weight over the chosen indices.
func (inst *Instance) Weigh(chosen []bool) (value, weight float64) {
	for i, in := range chosen {
		if in {
			value += inst.items[i].Value
			weight += inst.items[i].Weight
		}
	}
	return value, weight
}

func (inst *Instance) Fits(weight float64) bool {
	return weight <= inst.capacity+Epsilon
}

type Solution struct {
	InstanceID      string   `json:"instance_id"`
	SolverName      string   `json:"solver_name"`
	Selection       []string `json:"selection"`
	ObjectiveValue  float64  `json:"objective_value"`
	TotalWeight     float64  `json:"total_weight"`
	Feasible        bool     `json:"feasible"`
	Iterations      int      `json:"iterations"`
	WallTimeSeconds float64  `json:"wall_time_seconds"`
}

// NewSolution derives every metric from chosen so the stored totals can never
// disagree with the selection.
func NewSolution(inst *Instance, solverName string, chosen []bool, iterations int, wall time.Duration) Solution {
	selection := make([]string, 0)
	for i, in := range chosen {
		if in {
			selection = append(selection, inst.items[i].ID)
		}
	}
	value, weight := inst.Weigh(chosen)

	return Solution{
		InstanceID:      inst.id,
		SolverName:      solverName,
		Selection:       selection,
		ObjectiveValue:  value,
		TotalWeight:     weight,
		Feasible:        inst.Fits(weight),
		Iterations:      iterations,
		WallTimeSeconds: wall.Seconds(),
	}
}

func EmptySolution(inst *Instance, solverName string) Solution {
	return NewSolution(inst, solverName, make([]bool, inst.Len()), 0, 0)
}

// Verify recomputes the derived metrics from Selection and reports any mismatch.
func (s Solution) Verify(inst *Instance) error {
	index := make(map[string]int, inst.Len())
	for i, item := range inst.items {
		index[item.ID] = i
	}

	chosen := make([]bool, inst.Len())
	for _, id := range s.Selection {
		i, ok := index[id]
		if !ok {
			return fmt.Errorf("selection references unknown item %q", id)
		}
		if chosen[i] {
			return fmt.Errorf("selection lists item %q twice", id)
		}
		chosen[i] = true
	}

	value, weight := inst.Weigh(chosen)
	if math.Abs(value-s.ObjectiveValue) > Epsilon {
		return fmt.Errorf("objective %g disagrees with selection value %g", s.ObjectiveValue, value)
	}
	if math.Abs(weight-s.TotalWeight) > Epsilon {
		return fmt.Errorf("total weight %g disagrees with selection weight %g", s.TotalWeight, weight)
	}
	if s.Feasible != inst.Fits(weight) {
		return fmt.Errorf("feasible flag %v disagrees with weight %g and capacity %g", s.Feasible, weight, inst.capacity)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
