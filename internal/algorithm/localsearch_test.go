package algorithm

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knapsack-bench/internal/domain"
)

func TestNewLocalSearchSolverRejectsNonPositiveIterations(t *testing.T) {
	for _, n := range []int{0, -5} {
		s, err := NewLocalSearchSolver(n, 1)
		assert.Nil(t, s)
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	}

	s := &LocalSearchSolver{MaxIterations: 0}
	_, err := s.Solve(context.Background(), mustInstance(t, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestLocalSearchIsDeterministic(t *testing.T) {
	inst := randomInstance(t, rand.New(rand.NewSource(99)), 40)

	run := func(seed int64) domain.Solution {
		s, err := NewLocalSearchSolver(2000, seed)
		require.NoError(t, err)
		res, err := s.Solve(context.Background(), inst)
		require.NoError(t, err)
		return res.Solution
	}

	first := run(123)
	second := run(123)
	assert.Equal(t, first.Selection, second.Selection)
	assert.Equal(t, first.ObjectiveValue, second.ObjectiveValue)
}

func TestLocalSearchAcceptsOnlyImprovements(t *testing.T) {
	inst := randomInstance(t, rand.New(rand.NewSource(5)), 30)

	greedy, err := NewGreedySolver().Solve(context.Background(), inst)
	require.NoError(t, err)

	var iterations []int
	var objectives []float64

	s, err := NewLocalSearchSolver(3000, 42)
	require.NoError(t, err)
	s.OnAccept = func(iteration int, objective float64) {
		iterations = append(iterations, iteration)
		objectives = append(objectives, objective)
	}

	res, err := s.Solve(context.Background(), inst)
	require.NoError(t, err)

	prev := greedy.Solution.ObjectiveValue
	for k, obj := range objectives {
		assert.Greater(t, obj, prev, "accepted move %d must improve", k)
		prev = obj
		if k > 0 {
			assert.Greater(t, iterations[k], iterations[k-1])
		}
		assert.LessOrEqual(t, iterations[k], 3000)
	}

	assert.Equal(t, prev, res.Solution.ObjectiveValue)
	assert.True(t, res.Solution.Feasible)
	assert.Equal(t, 3000, res.Solution.Iterations)
}

func TestLocalSearchEmptyInstance(t *testing.T) {
	s, err := NewLocalSearchSolver(100, 1)
	require.NoError(t, err)

	res, err := s.Solve(context.Background(), mustInstance(t, 5))
	require.NoError(t, err)

	assert.Empty(t, res.Solution.Selection)
	assert.Equal(t, 0, res.Solution.Iterations)
	assert.Equal(t, domain.StatusFeasible, res.Status)
}

func TestLocalSearchConcurrentSolvesAgree(t *testing.T) {
	inst := randomInstance(t, rand.New(rand.NewSource(11)), 25)
	s, err := NewLocalSearchSolver(1500, 77)
	require.NoError(t, err)

	want, err := s.Solve(context.Background(), inst)
	require.NoError(t, err)

	results := make(chan domain.Solution, 4)
	for i := 0; i < 4; i++ {
		go func() {
			res, _ := s.Solve(context.Background(), inst)
			results <- res.Solution
		}()
	}
	for i := 0; i < 4; i++ {
		got := <-results
		assert.Equal(t, want.Solution.Selection, got.Selection)
	}
}
