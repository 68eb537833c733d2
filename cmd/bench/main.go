package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"knapsack-bench/internal/bench"
	"knapsack-bench/internal/config"
	"knapsack-bench/internal/domain"
	"knapsack-bench/internal/harness"
	"knapsack-bench/internal/logging"
	"knapsack-bench/internal/metrics"
	"knapsack-bench/internal/service"
	"knapsack-bench/internal/store"
)

func main() {
	fs := pflag.NewFlagSet("knapsack-bench", pflag.ExitOnError)
	config.RegisterFlags(fs)
	var (
		csvPath       = fs.String("csv", "", "write comparison rows to this CSV file")
		outDir        = fs.String("out-dir", "", "also write every run payload as JSON into this directory")
		challengerDir = fs.String("challenger-dir", "", "compare existing challenger payloads from this directory instead of solving")
		baselineDir   = fs.String("baseline-dir", "", "compare existing baseline payloads from this directory instead of solving")
	)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: knapsack-bench [flags] instance.json|instance.yaml ...\n")
		fmt.Fprintf(os.Stderr, "       knapsack-bench [flags] --challenger-dir DIR --baseline-dir DIR\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, closeStore, err := service.FromConfig(ctx, cfg, log, metrics.New())
	if err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		os.Exit(2)
	}
	defer closeStore()

	var report harness.Report
	if *challengerDir != "" || *baselineDir != "" {
		report, err = compareDirs(svc, log, cfg, *challengerDir, *baselineDir)
	} else {
		report, err = runInstances(ctx, svc, log, cfg, fs.Args(), *outDir)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "bench:", err)
		if errors.Is(err, domain.ErrInvalidConfig) || errors.Is(err, domain.ErrEmptyInput) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	if *csvPath != "" {
		if err := bench.WriteCSV(*csvPath, report); err != nil {
			fmt.Fprintln(os.Stderr, "write csv:", err)
			os.Exit(1)
		}
		log.Info("comparison rows written", zap.String("path", *csvPath), zap.Int("rows", len(report.Rows)))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintln(os.Stderr, "encode report:", err)
		os.Exit(1)
	}
}

func runInstances(ctx context.Context, svc *service.OptimizerService, log *zap.Logger, cfg *config.Config, paths []string, outDir string) (harness.Report, error) {
	instances := make([]*domain.Instance, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("skipping instance file", zap.String("path", path), zap.Error(err))
			continue
		}
		inst, err := domain.DecodeInstance(path, data)
		if err != nil {
			log.Warn("skipping instance file", zap.String("path", path), zap.Error(err))
			continue
		}
		instances = append(instances, inst)
	}

	runner := bench.Runner{
		Service:       svc,
		Solvers:       cfg.Bench.Solvers,
		Runs:          cfg.Bench.Runs,
		BaseSeed:      cfg.Solver.LocalSearch.Seed,
		Workers:       cfg.Bench.Workers,
		PerRunTimeout: cfg.Bench.PerRunTimeout,
		Logger:        log,
	}

	res, err := runner.Run(ctx, instances)
	if err != nil {
		return harness.Report{}, err
	}

	if outDir != "" {
		for _, p := range res.Payloads {
			if _, err := store.WritePayload(outDir, p); err != nil {
				return harness.Report{}, fmt.Errorf("write payload %s: %w", p.RunID, err)
			}
		}
	}

	for _, s := range bench.CalcSolverStats(res.Payloads) {
		log.Info("solver summary",
			zap.String("solver", s.Solver),
			zap.Int("runs", s.Runs),
			zap.Int("unknown", s.Unknown),
			zap.Float64("objective_best", s.Objective.Best),
			zap.Float64("objective_mean", s.Objective.Mean),
			zap.Float64("runtime_mean_s", s.RuntimeS.Mean),
			zap.Float64("runtime_std_s", s.RuntimeS.Std))
	}

	return runner.Report(res, cfg.Bench.Challenger, cfg.Bench.Baseline)
}

func compareDirs(svc *service.OptimizerService, log *zap.Logger, cfg *config.Config, challengerDir, baselineDir string) (harness.Report, error) {
	load := func(dir string) []harness.RawRecord {
		if dir == "" {
			return nil
		}
		raws, errs := store.LoadDir(dir)
		for _, err := range errs {
			log.Warn("skipping run record file", zap.Error(err))
		}
		return raws
	}

	return svc.BuildReport(cfg.Bench.Challenger, cfg.Bench.Baseline, load(challengerDir), load(baselineDir))
}
