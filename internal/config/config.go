package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"knapsack-bench/internal/algorithm"
	"knapsack-bench/internal/domain"
	"knapsack-bench/internal/harness"
)

// EnvPrefix namespaces environment overrides, e.g. KNAPBENCH_SERVER_PORT.
const EnvPrefix = "KNAPBENCH"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Store   StoreConfig   `mapstructure:"store"`
	Solver  SolverConfig  `mapstructure:"solver"`
	Harness HarnessConfig `mapstructure:"harness"`
	Bench   BenchConfig   `mapstructure:"bench"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	BodyLimitBytes int           `mapstructure:"body_limit_bytes"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type StoreConfig struct {
	// DSN for the SQLite run store; empty disables persistence.
	DSN string `mapstructure:"dsn"`
}

type SolverConfig struct {
	LocalSearch LocalSearchConfig `mapstructure:"local_search"`
	Exact       ExactConfig       `mapstructure:"exact"`
}

type LocalSearchConfig struct {
	MaxIterations int   `mapstructure:"max_iterations"`
	Seed          int64 `mapstructure:"seed"`
}

type ExactConfig struct {
	Backend             string        `mapstructure:"backend"`
	TimeLimit           time.Duration `mapstructure:"time_limit"`
	MaxEnumerationItems int           `mapstructure:"max_enumeration_items"`
}

type HarnessConfig struct {
	SolverTags []string `mapstructure:"solver_tags"`
}

type BenchConfig struct {
	Workers       int           `mapstructure:"workers"`
	Runs          int           `mapstructure:"runs"`
	Solvers       []string      `mapstructure:"solvers"`
	Challenger    string        `mapstructure:"challenger"`
	Baseline      string        `mapstructure:"baseline"`
	PerRunTimeout time.Duration `mapstructure:"per_run_timeout"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.body_limit_bytes", 1*1024*1024)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("store.dsn", "file:runs.db")

	v.SetDefault("solver.local_search.max_iterations", 6000)
	v.SetDefault("solver.local_search.seed", 123)
	v.SetDefault("solver.exact.backend", algorithm.HybridBackendName)
	v.SetDefault("solver.exact.time_limit", 30*time.Second)
	v.SetDefault("solver.exact.max_enumeration_items", algorithm.DefaultMaxEnumerationItems)

	v.SetDefault("harness.solver_tags", harness.DefaultSolverTags)

	v.SetDefault("bench.workers", 4)
	v.SetDefault("bench.runs", 1)
	v.SetDefault("bench.solvers", []string{algorithm.GreedyName, algorithm.LocalSearchName, algorithm.ExactName})
	v.SetDefault("bench.challenger", algorithm.LocalSearchName)
	v.SetDefault("bench.baseline", algorithm.ExactName)
	v.SetDefault("bench.per_run_timeout", time.Duration(0))
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"port":            "server.port",
	"log-level":       "log.level",
	"log-development": "log.development",
	"store-dsn":       "store.dsn",
	"max-iterations":  "solver.local_search.max_iterations",
	"seed":            "solver.local_search.seed",
	"exact-backend":   "solver.exact.backend",
	"time-limit":      "solver.exact.time_limit",
	"workers":         "bench.workers",
	"runs":            "bench.runs",
	"solvers":         "bench.solvers",
	"challenger":      "bench.challenger",
	"baseline":        "bench.baseline",
	"per-run-timeout": "bench.per_run_timeout",
}

// RegisterFlags adds the shared flags to fs. Flag defaults are informational;
// only flags the user actually sets override the other layers.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.Int("port", 8080, "HTTP listen port")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.Bool("log-development", false, "human-readable development logging")
	fs.String("store-dsn", "file:runs.db", "SQLite DSN for the run store; empty disables persistence")
	fs.Int("max-iterations", 6000, "local search proposals per solve")
	fs.Int64("seed", 123, "local search seed")
	fs.String("exact-backend", algorithm.HybridBackendName, "exact backend: hybrid, subset-dp, branch-and-bound, none")
	fs.Duration("time-limit", 30*time.Second, "exact solver time limit; 0 disables")
	fs.Int("workers", 4, "parallel bench workers")
	fs.Int("runs", 1, "bench repetitions per instance and solver")
	fs.StringSlice("solvers", []string{algorithm.GreedyName, algorithm.LocalSearchName, algorithm.ExactName}, "solvers to run in the bench")
	fs.String("challenger", algorithm.LocalSearchName, "challenger solver for the report")
	fs.String("baseline", algorithm.ExactName, "baseline solver for the report")
	fs.Duration("per-run-timeout", 0, "wall-clock budget per bench solve; 0 disables")
}

// Load layers defaults, an optional config file, KNAPBENCH_* environment
// variables and explicitly set flags, in increasing precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			flag := fs.Lookup(name)
			if flag == nil || !flag.Changed {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}

		if flag := fs.Lookup("config"); flag != nil && flag.Value.String() != "" {
			v.SetConfigFile(flag.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", flag.Value.String(), err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port))
	}
	if c.Server.BodyLimitBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.body_limit_bytes must be positive (got %d)", c.Server.BodyLimitBytes))
	}
	if c.Solver.LocalSearch.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("solver.local_search.max_iterations must be positive (got %d)", c.Solver.LocalSearch.MaxIterations))
	}
	if c.Solver.Exact.TimeLimit < 0 {
		errs = append(errs, fmt.Errorf("solver.exact.time_limit must be >= 0 (got %s)", c.Solver.Exact.TimeLimit))
	}
	if c.Bench.Workers <= 0 {
		errs = append(errs, fmt.Errorf("bench.workers must be positive (got %d)", c.Bench.Workers))
	}
	if c.Bench.PerRunTimeout < 0 {
		errs = append(errs, fmt.Errorf("bench.per_run_timeout must be >= 0 (got %s)", c.Bench.PerRunTimeout))
	}
	if c.Bench.Runs <= 0 {
		errs = append(errs, fmt.Errorf("bench.runs must be positive (got %d)", c.Bench.Runs))
	}
	maxItems := c.Solver.Exact.MaxEnumerationItems
	if maxItems < 0 || maxItems > algorithm.MaxEnumerationItemsLimit {
		errs = append(errs, fmt.Errorf("%w: solver.exact.max_enumeration_items must be in 0..%d (got %d)",
			domain.ErrInvalidConfig, algorithm.MaxEnumerationItemsLimit, maxItems))
		maxItems = 0
	}
	if _, err := algorithm.NewExactBackend(c.Solver.Exact.Backend, maxItems); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
