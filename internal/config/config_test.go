package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knapsack-bench/internal/algorithm"
	"knapsack-bench/internal/domain"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1024*1024, cfg.Server.BodyLimitBytes)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "file:runs.db", cfg.Store.DSN)
	assert.Equal(t, 6000, cfg.Solver.LocalSearch.MaxIterations)
	assert.Equal(t, int64(123), cfg.Solver.LocalSearch.Seed)
	assert.Equal(t, algorithm.HybridBackendName, cfg.Solver.Exact.Backend)
	assert.Equal(t, 30*time.Second, cfg.Solver.Exact.TimeLimit)
	assert.Equal(t, algorithm.DefaultMaxEnumerationItems, cfg.Solver.Exact.MaxEnumerationItems)
	assert.Equal(t, []string{"pulp", "solver", "baseline"}, cfg.Harness.SolverTags)
	assert.Equal(t, 4, cfg.Bench.Workers)
	assert.Equal(t, []string{"greedy", "local_search", "exact"}, cfg.Bench.Solvers)
	assert.Equal(t, "local_search", cfg.Bench.Challenger)
	assert.Equal(t, "exact", cfg.Bench.Baseline)
	assert.Zero(t, cfg.Bench.PerRunTimeout)
}

func TestLoadWithoutFlagSet(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knapbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
solver:
  local_search:
    max_iterations: 100
    seed: 7
  exact:
    backend: branch-and-bound
log:
  level: debug
`), 0o644))

	t.Setenv("KNAPBENCH_SOLVER_LOCAL_SEARCH_SEED", "99")
	t.Setenv("KNAPBENCH_LOG_LEVEL", "warn")

	cfg, err := Load(newFlags(t, "--config", path, "--log-level", "error", "--time-limit", "2s"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Solver.LocalSearch.MaxIterations)
	assert.Equal(t, int64(99), cfg.Solver.LocalSearch.Seed)
	assert.Equal(t, algorithm.BnBBackendName, cfg.Solver.Exact.Backend)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 2*time.Second, cfg.Solver.Exact.TimeLimit)
}

func TestLoadUnchangedFlagsDoNotOverride(t *testing.T) {
	t.Setenv("KNAPBENCH_SERVER_PORT", "9100")

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	bad := *cfg
	bad.Server.Port = 0
	bad.Solver.LocalSearch.MaxIterations = 0
	bad.Bench.Workers = -1
	bad.Solver.Exact.Backend = "cplex"

	err = bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "max_iterations")
	assert.Contains(t, err.Error(), "bench.workers")
	assert.Contains(t, err.Error(), "cplex")
}

func TestLoadRejectsOversizedEnumerationLimit(t *testing.T) {
	t.Setenv("KNAPBENCH_SOLVER_EXACT_MAX_ENUMERATION_ITEMS", "64")

	_, err := Load(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "solver.exact.max_enumeration_items")

	t.Setenv("KNAPBENCH_SOLVER_EXACT_MAX_ENUMERATION_ITEMS", "24")
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, algorithm.MaxEnumerationItemsLimit, cfg.Solver.Exact.MaxEnumerationItems)
}

func TestLoadPerRunTimeoutFlag(t *testing.T) {
	cfg, err := Load(newFlags(t, "--per-run-timeout", "250ms"))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Bench.PerRunTimeout)

	_, err = Load(newFlags(t, "--per-run-timeout", "-1s"))
	assert.Error(t, err)
}
