package harness

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"knapsack-bench/internal/domain"
)

// Measure is a number or the explicit "unavailable" sentinel. It marshals to
// null when unavailable, never to zero and never omitted.
type Measure struct {
	value     float64
	available bool
}

func Available(v float64) Measure { return Measure{value: v, available: true} }

func Unavailable() Measure { return Measure{} }

func (m Measure) Value() (float64, bool) { return m.value, m.available }

func (m Measure) IsAvailable() bool { return m.available }

func (m Measure) String() string {
	if !m.available {
		return "unavailable"
	}
	return strconv.FormatFloat(m.value, 'f', 6, 64)
}

func (m Measure) MarshalJSON() ([]byte, error) {
	if !m.available {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// difference is a - b when both operands are present.
func difference(a, b *float64) Measure {
	if a == nil || b == nil {
		return Unavailable()
	}
	return Available(*a - *b)
}

type ComparisonRow struct {
	InstanceID     string            `json:"instance_id"`
	Challenger     *domain.RunRecord `json:"challenger"`
	Baseline       *domain.RunRecord `json:"baseline"`
	DeltaObjective Measure           `json:"delta_objective"`
	DeltaRuntime   Measure           `json:"delta_runtime"`
}

// Compare joins the best challenger and baseline records over the union of
// instance ids. Rows are sorted by instance id.
func Compare(challenger, baseline map[string]domain.RunRecord) []ComparisonRow {
	ids := make(map[string]bool, len(challenger)+len(baseline))
	for id := range challenger {
		ids[id] = true
	}
	for id := range baseline {
		ids[id] = true
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	rows := make([]ComparisonRow, 0, len(sorted))
	for _, id := range sorted {
		row := ComparisonRow{
			InstanceID:     id,
			DeltaObjective: Unavailable(),
			DeltaRuntime:   Unavailable(),
		}
		if rec, ok := challenger[id]; ok {
			row.Challenger = &rec
		}
		if rec, ok := baseline[id]; ok {
			row.Baseline = &rec
		}
		if row.Challenger != nil && row.Baseline != nil {
			row.DeltaObjective = difference(row.Challenger.Objective, row.Baseline.Objective)
			row.DeltaRuntime = difference(row.Challenger.RuntimeSeconds, row.Baseline.RuntimeSeconds)
		}
		rows = append(rows, row)
	}

	return rows
}

type Report struct {
	Challenger string          `json:"challenger"`
	Baseline   string          `json:"baseline"`
	Rows       []ComparisonRow `json:"rows"`
	Summary    Summary         `json:"summary"`
}

// BuildReport selects the best run per instance on each side independently
// and compares them. It fails only when both sides are empty.
func BuildReport(challengerName, baselineName string, challenger, baseline []domain.RunRecord) (Report, error) {
	if len(challenger) == 0 && len(baseline) == 0 {
		return Report{}, fmt.Errorf("%w: no run records for %q or %q", domain.ErrEmptyInput, challengerName, baselineName)
	}

	rows := Compare(SelectBest(challenger), SelectBest(baseline))

	return Report{
		Challenger: challengerName,
		Baseline:   baselineName,
		Rows:       rows,
		Summary:    Summarize(rows),
	}, nil
}

// Summary aggregates a report over the rows where both sides are present.
type Summary struct {
	Instances             int     `json:"instances"`
	Paired                int     `json:"paired"`
	ChallengerOnly        int     `json:"challenger_only"`
	BaselineOnly          int     `json:"baseline_only"`
	Wins                  int     `json:"wins"`
	Ties                  int     `json:"ties"`
	Losses                int     `json:"losses"`
	MeanDeltaObjective    Measure `json:"mean_delta_objective"`
	MeanChallengerRuntime Measure `json:"mean_challenger_runtime"`
	MeanBaselineRuntime   Measure `json:"mean_baseline_runtime"`
	Speedup               Measure `json:"speedup"`
}

func Summarize(rows []ComparisonRow) Summary {
	s := Summary{Instances: len(rows)}

	var deltas, challengerTimes, baselineTimes []float64

	for _, row := range rows {
		switch {
		case row.Challenger != nil && row.Baseline != nil:
			s.Paired++
		case row.Challenger != nil:
			s.ChallengerOnly++
		default:
			s.BaselineOnly++
		}

		if d, ok := row.DeltaObjective.Value(); ok {
			deltas = append(deltas, d)
			switch {
			case d > domain.Epsilon:
				s.Wins++
			case d < -domain.Epsilon:
				s.Losses++
			default:
				s.Ties++
			}
		}
		if row.DeltaRuntime.IsAvailable() {
			challengerTimes = append(challengerTimes, *row.Challenger.RuntimeSeconds)
			baselineTimes = append(baselineTimes, *row.Baseline.RuntimeSeconds)
		}
	}

	s.MeanDeltaObjective = mean(deltas)
	s.MeanChallengerRuntime = mean(challengerTimes)
	s.MeanBaselineRuntime = mean(baselineTimes)

	c, cok := s.MeanChallengerRuntime.Value()
	b, bok := s.MeanBaselineRuntime.Value()
	if cok && bok && c > 0 {
		s.Speedup = Available(b / c)
	}

	return s
}

func mean(values []float64) Measure {
	if len(values) == 0 {
		return Unavailable()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return Unavailable()
	}
	return Available(m)
}
