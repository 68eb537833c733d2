package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Status orders run outcomes; lower is better.
type Status int

const (
	StatusOptimal Status = iota
	StatusFeasible
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "Optimal"
	case StatusFeasible:
		return "Feasible"
	default:
		return "Unknown"
	}
}

func (s Status) Rank() int {
	if s < StatusOptimal || s > StatusUnknown {
		return int(StatusUnknown)
	}
	return int(s)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = StatusUnknown
		return nil
	}
	*s = ParseStatus(raw)
	return nil
}

// ParseStatus maps producer status strings onto the closed status set.
// Unrecognized strings, including backend failures such as "Infeasible" or
// "Not Solved", become StatusUnknown.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "optimal", "opt":
		return StatusOptimal
	case "feasible", "success", "time_limit", "timelimit":
		return StatusFeasible
	default:
		return StatusUnknown
	}
}

// RunRecord is the canonical, post-normalization record of one solve attempt.
// Absent numeric fields are nil.
type RunRecord struct {
	InstanceID     string   `json:"instance_id"`
	RawInstanceID  string   `json:"raw_instance_id,omitempty"`
	SolverName     string   `json:"solver_name"`
	Status         Status   `json:"status"`
	Objective      *float64 `json:"objective"`
	RuntimeSeconds *float64 `json:"runtime_seconds"`
	SelectedCount  *int     `json:"selected_count"`
	TotalWeight    *float64 `json:"total_weight"`
	Provenance     string   `json:"provenance"`
}

// RunPayload is the persisted form a solve writes. Metrics sit one level down,
// which is one of the shapes the normalizer accepts.
type RunPayload struct {
	InstanceID   string     `json:"instance_id"`
	Solver       string     `json:"solver"`
	RunID        string     `json:"run_id"`
	TimestampUTC string     `json:"timestamp_utc"`
	Capacity     float64    `json:"capacity"`
	NItems       int        `json:"n_items"`
	Metrics      RunMetrics `json:"metrics"`
}

// RunMetrics leaves solution-derived fields nil when the solve produced no
// solution worth reporting.
type RunMetrics struct {
	Status         string   `json:"status"`
	ObjectiveValue *float64 `json:"objective_value"`
	RuntimeSeconds float64  `json:"runtime_seconds"`
	SelectedItems  []string `json:"selected_items"`
	SelectedCount  *int     `json:"selected_count"`
	TotalWeight    *float64 `json:"total_weight"`
	Feasible       bool     `json:"feasible"`
	Iterations     int      `json:"iterations"`
}

// TimestampLayout is the compact UTC stamp used in run locators.
const TimestampLayout = "20060102T150405Z"

func NewRunPayload(inst *Instance, sol Solution, status Status, runID string, at time.Time) RunPayload {
	objective := sol.ObjectiveValue
	weight := sol.TotalWeight
	count := len(sol.Selection)

	return RunPayload{
		InstanceID:   inst.ID(),
		Solver:       sol.SolverName,
		RunID:        runID,
		TimestampUTC: at.UTC().Format(TimestampLayout),
		Capacity:     inst.Capacity(),
		NItems:       inst.Len(),
		Metrics: RunMetrics{
			Status:         status.String(),
			ObjectiveValue: &objective,
			RuntimeSeconds: sol.WallTimeSeconds,
			SelectedItems:  sol.Selection,
			SelectedCount:  &count,
			TotalWeight:    &weight,
			Feasible:       sol.Feasible,
			Iterations:     sol.Iterations,
		},
	}
}

// WithoutSolution drops the solution-derived metrics, keeping status and
// runtime. Used when a backend could not produce an answer.
func (p RunPayload) WithoutSolution() RunPayload {
	p.Metrics.ObjectiveValue = nil
	p.Metrics.SelectedItems = nil
	p.Metrics.SelectedCount = nil
	p.Metrics.TotalWeight = nil
	p.Metrics.Feasible = false
	return p
}

// Locator builds the conventional storage name
// <timestamp>_<instance>_<solver>.json for a payload.
func (p RunPayload) Locator() string {
	return p.TimestampUTC + "_" + p.InstanceID + "_" + p.Solver + ".json"
}
