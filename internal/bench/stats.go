package bench

import (
	"math"
	"sort"

	"knapsack-bench/internal/domain"
)

type FloatStats struct {
	N    int
	Best float64
	Mean float64
	Std  float64
}

// CalcFloatStats uses the sample standard deviation. Best is the maximum
// when higherIsBetter, otherwise the minimum.
func CalcFloatStats(values []float64, higherIsBetter bool) FloatStats {
	s := FloatStats{N: len(values)}
	if s.N == 0 {
		return s
	}

	best := values[0]
	sum := 0.0
	for _, v := range values {
		if (higherIsBetter && v > best) || (!higherIsBetter && v < best) {
			best = v
		}
		sum += v
	}
	mean := sum / float64(s.N)

	variance := 0.0
	if s.N >= 2 {
		for _, v := range values {
			d := v - mean
			variance += d * d
		}
		variance /= float64(s.N - 1)
	}

	s.Best = best
	s.Mean = mean
	s.Std = math.Sqrt(variance)
	return s
}

// SolverStats aggregates the payloads of one solver across instances and runs.
// Payloads without an objective count towards Runs and Unknown only.
type SolverStats struct {
	Solver    string
	Runs      int
	Unknown   int
	Objective FloatStats
	RuntimeS  FloatStats
}

func CalcSolverStats(payloads []domain.RunPayload) []SolverStats {
	type acc struct {
		runs, unknown       int
		objectives, runtime []float64
	}
	bySolver := make(map[string]*acc)

	for _, p := range payloads {
		a, ok := bySolver[p.Solver]
		if !ok {
			a = &acc{}
			bySolver[p.Solver] = a
		}
		a.runs++
		a.runtime = append(a.runtime, p.Metrics.RuntimeSeconds)
		if p.Metrics.ObjectiveValue == nil {
			a.unknown++
			continue
		}
		a.objectives = append(a.objectives, *p.Metrics.ObjectiveValue)
	}

	names := make([]string, 0, len(bySolver))
	for name := range bySolver {
		names = append(names, name)
	}
	sort.Strings(names)

	stats := make([]SolverStats, 0, len(names))
	for _, name := range names {
		a := bySolver[name]
		stats = append(stats, SolverStats{
			Solver:    name,
			Runs:      a.runs,
			Unknown:   a.unknown,
			Objective: CalcFloatStats(a.objectives, true),
			RuntimeS:  CalcFloatStats(a.runtime, false),
		})
	}
	return stats
}
