package bench

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knapsack-bench/internal/algorithm"
	"knapsack-bench/internal/domain"
	"knapsack-bench/internal/harness"
	"knapsack-bench/internal/service"
	"knapsack-bench/internal/store"
)

func benchInstances(t *testing.T) []*domain.Instance {
	t.Helper()
	out := make([]*domain.Instance, 0, 3)
	for k := 1; k <= 3; k++ {
		items := make([]domain.Item, 8)
		for i := range items {
			items[i] = domain.Item{
				ID:     fmt.Sprintf("i%d", i),
				Value:  float64((i*7+k*3)%11 + 1),
				Weight: float64((i*5+k)%9 + 1),
			}
		}
		inst, err := domain.NewInstance(fmt.Sprintf("bench_%d", k), items, 15)
		require.NoError(t, err)
		out = append(out, inst)
	}
	return out
}

func newRunner(t *testing.T, backend algorithm.ExactBackend, st service.RunStore) Runner {
	t.Helper()
	svc := service.NewOptimizerService(service.Options{
		Defaults: service.SolverOptions{MaxIterations: 500, Seed: 1},
		Backend:  backend,
		Store:    st,
	})
	return Runner{
		Service:  svc,
		Solvers:  []string{algorithm.GreedyName, algorithm.LocalSearchName, algorithm.ExactName},
		Runs:     2,
		BaseSeed: 100,
		Workers:  3,
	}
}

func TestRunnerProducesEveryPayloadInOrder(t *testing.T) {
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer st.Close()

	r := newRunner(t, algorithm.NewHybridBackend(0), st)
	instances := benchInstances(t)

	res, err := r.Run(context.Background(), instances)
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Payloads, 3*3*2)

	k := 0
	for _, inst := range instances {
		for _, solver := range r.Solvers {
			for run := 0; run < r.Runs; run++ {
				assert.Equal(t, inst.ID(), res.Payloads[k].InstanceID)
				assert.Equal(t, solver, res.Payloads[k].Solver)
				k++
			}
		}
	}

	stored, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, len(res.Payloads))

	report, err := r.Report(res, algorithm.LocalSearchName, algorithm.ExactName)
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)
	assert.Equal(t, 3, report.Summary.Paired)
	assert.Equal(t, 0, report.Summary.Wins)

	for _, row := range report.Rows {
		assert.Equal(t, domain.StatusOptimal, row.Baseline.Status)
		d, ok := row.DeltaObjective.Value()
		require.True(t, ok)
		assert.LessOrEqual(t, d, domain.Epsilon)
	}
}

func TestRunnerIsDeterministicPerSeed(t *testing.T) {
	r := newRunner(t, algorithm.NewHybridBackend(0), nil)
	r.Solvers = []string{algorithm.LocalSearchName}
	r.Runs = 3

	a, err := r.Run(context.Background(), benchInstances(t))
	require.NoError(t, err)
	b, err := r.Run(context.Background(), benchInstances(t))
	require.NoError(t, err)

	require.Equal(t, len(a.Payloads), len(b.Payloads))
	for i := range a.Payloads {
		assert.Equal(t, a.Payloads[i].Metrics.SelectedItems, b.Payloads[i].Metrics.SelectedItems)
	}
}

func TestRunnerWithoutBackendRecordsUnknown(t *testing.T) {
	r := newRunner(t, nil, nil)
	r.Solvers = []string{algorithm.GreedyName, algorithm.ExactName}
	r.Runs = 1

	res, err := r.Run(context.Background(), benchInstances(t))
	require.NoError(t, err)
	assert.Empty(t, res.Failures)

	report, err := r.Report(res, algorithm.GreedyName, algorithm.ExactName)
	require.NoError(t, err)
	for _, row := range report.Rows {
		require.NotNil(t, row.Baseline)
		assert.Equal(t, domain.StatusUnknown, row.Baseline.Status)
		assert.False(t, row.DeltaObjective.IsAvailable())
	}

	stats := CalcSolverStats(res.Payloads)
	require.Len(t, stats, 2)
	assert.Equal(t, algorithm.ExactName, stats[0].Solver)
	assert.Equal(t, 3, stats[0].Unknown)
	assert.Equal(t, 0, stats[0].Objective.N)
	assert.Equal(t, algorithm.GreedyName, stats[1].Solver)
	assert.Equal(t, 3, stats[1].Objective.N)
}

func TestRunnerValidation(t *testing.T) {
	r := newRunner(t, nil, nil)
	ctx := context.Background()

	_, err := r.Run(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	bad := r
	bad.Workers = 0
	_, err = bad.Run(ctx, benchInstances(t))
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	bad = r
	bad.Solvers = []string{"simplex"}
	_, err = bad.Run(ctx, benchInstances(t))
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	bad = r
	bad.Runs = 0
	_, err = bad.Run(ctx, benchInstances(t))
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestRunnerCancelled(t *testing.T) {
	r := newRunner(t, algorithm.NewHybridBackend(0), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, benchInstances(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteCSV(t *testing.T) {
	obj, rt := 10.0, 2.0
	report := harness.Report{
		Rows: harness.Compare(
			map[string]domain.RunRecord{
				"a": {InstanceID: "a", Status: domain.StatusFeasible, Objective: &obj, RuntimeSeconds: &rt},
			},
			map[string]domain.RunRecord{
				"a": {InstanceID: "a", Status: domain.StatusOptimal, Objective: &obj, RuntimeSeconds: &rt},
				"b": {InstanceID: "b", Status: domain.StatusUnknown},
			},
		),
	}

	path := filepath.Join(t.TempDir(), "out", "rows.csv")
	require.NoError(t, WriteCSV(path, report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, rowHeader, lines[0])
	assert.Equal(t, []string{"a", "Feasible", "10.000000", "2.000000", "Optimal", "10.000000", "2.000000", "0.000000", "0.000000"}, lines[1])
	assert.Equal(t, []string{"b", "unavailable", "unavailable", "unavailable", "Unknown", "unavailable", "unavailable", "unavailable", "unavailable"}, lines[2])
}

func TestCalcFloatStats(t *testing.T) {
	s := CalcFloatStats([]float64{2, 4, 4, 4, 5, 5, 7, 9}, true)
	assert.Equal(t, 8, s.N)
	assert.Equal(t, 9.0, s.Best)
	assert.Equal(t, 5.0, s.Mean)
	assert.InDelta(t, 2.138, s.Std, 1e-3)

	low := CalcFloatStats([]float64{3, 1, 2}, false)
	assert.Equal(t, 1.0, low.Best)

	assert.Equal(t, FloatStats{}, CalcFloatStats(nil, true))
}

type closeFailer struct {
	bytes.Buffer
	closeErr error
}

func (c *closeFailer) Close() error { return c.closeErr }

func TestWriteAndCloseReportsCloseError(t *testing.T) {
	diskFull := errors.New("disk full")

	out := &closeFailer{closeErr: diskFull}
	err := writeAndClose(out, nil)
	assert.ErrorIs(t, err, diskFull)
	assert.NotZero(t, out.Len())

	ok := &closeFailer{}
	assert.NoError(t, writeAndClose(ok, nil))
}

func TestRunnerPerRunTimeout(t *testing.T) {
	items := make([]domain.Item, 14)
	for i := range items {
		items[i] = domain.Item{ID: fmt.Sprintf("x%d", i), Value: float64(i + 1), Weight: 1}
	}
	inst, err := domain.NewInstance("deadline", items, 5)
	require.NoError(t, err)

	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer st.Close()

	r := newRunner(t, algorithm.NewSubsetEnumerator(algorithm.DefaultMaxEnumerationItems), st)
	r.Solvers = []string{algorithm.ExactName}
	r.Runs = 1

	res, err := r.Run(context.Background(), []*domain.Instance{inst})
	require.NoError(t, err)
	require.Len(t, res.Payloads, 1)
	assert.Equal(t, "Optimal", res.Payloads[0].Metrics.Status)

	r.PerRunTimeout = time.Nanosecond
	res, err = r.Run(context.Background(), []*domain.Instance{inst})
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Payloads, 1)
	assert.Equal(t, "Feasible", res.Payloads[0].Metrics.Status)

	stored, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}
