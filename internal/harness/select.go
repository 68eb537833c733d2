package harness

import (
	"math"
	"strings"

	"knapsack-bench/internal/domain"
)

// SelectBest keeps one representative per canonical instance id. Records are
// ranked by status (Optimal < Feasible < Unknown), then by runtime with a
// missing runtime ranked last. On a full tie the first record seen wins.
func SelectBest(records []domain.RunRecord) map[string]domain.RunRecord {
	best := make(map[string]domain.RunRecord)

	for _, rec := range records {
		current, exists := best[rec.InstanceID]
		if !exists || Better(rec, current) {
			best[rec.InstanceID] = rec
		}
	}

	return best
}

// Better reports whether a ranks strictly ahead of b.
func Better(a, b domain.RunRecord) bool {
	if a.Status.Rank() != b.Status.Rank() {
		return a.Status.Rank() < b.Status.Rank()
	}
	return runtimeKey(a) < runtimeKey(b)
}

func runtimeKey(rec domain.RunRecord) float64 {
	if rec.RuntimeSeconds == nil {
		return math.Inf(1)
	}
	return *rec.RuntimeSeconds
}

// FilterBySolver keeps records whose solver name matches, ignoring case, in
// input order.
func FilterBySolver(records []domain.RunRecord, solver string) []domain.RunRecord {
	filtered := make([]domain.RunRecord, 0)

	for _, rec := range records {
		if strings.EqualFold(rec.SolverName, solver) {
			filtered = append(filtered, rec)
		}
	}

	return filtered
}
