package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"knapsack-bench/internal/domain"
	"knapsack-bench/internal/harness"
	"knapsack-bench/internal/service"
)

type Runner struct {
	Service       *service.OptimizerService
	Solvers       []string
	Runs          int
	BaseSeed      int64
	Workers       int
	PerRunTimeout time.Duration // 0 = no timeout
	Logger        *zap.Logger
}

// Failure is one solve that produced no run payload. Failures never stop
// the rest of the batch.
type Failure struct {
	InstanceID string
	Solver     string
	Run        int
	Err        error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s/%s run %d: %v", f.InstanceID, f.Solver, f.Run, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

type Result struct {
	Payloads []domain.RunPayload
	Failures []Failure
}

type task struct {
	inst   *domain.Instance
	solver string
	run    int
}

type outcome struct {
	payload *domain.RunPayload
	failure *Failure
}

func (r Runner) validate(instances []*domain.Instance) error {
	if r.Service == nil {
		return fmt.Errorf("%w: bench runner has no service", domain.ErrInvalidConfig)
	}
	if r.Runs <= 0 {
		return fmt.Errorf("%w: runs must be positive (got %d)", domain.ErrInvalidConfig, r.Runs)
	}
	if r.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive (got %d)", domain.ErrInvalidConfig, r.Workers)
	}
	if len(r.Solvers) == 0 {
		return fmt.Errorf("%w: no solvers selected", domain.ErrInvalidConfig)
	}
	for _, name := range r.Solvers {
		if _, err := r.Service.SelectSolver(name, r.Service.Defaults()); err != nil {
			return err
		}
	}
	if len(instances) == 0 {
		return fmt.Errorf("%w: no instances to run", domain.ErrEmptyInput)
	}
	return nil
}

// Run solves every instance with every solver Runs times on a bounded pool.
// Run i of a solver uses seed BaseSeed+i. Payloads come back in task order
// regardless of completion order.
func (r Runner) Run(ctx context.Context, instances []*domain.Instance) (Result, error) {
	if err := r.validate(instances); err != nil {
		return Result{}, err
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tasks := make([]task, 0, len(instances)*len(r.Solvers)*r.Runs)
	for _, inst := range instances {
		for _, name := range r.Solvers {
			for i := 0; i < r.Runs; i++ {
				tasks = append(tasks, task{inst: inst, solver: name, run: i})
			}
		}
	}

	outcomes := make([]outcome, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Workers)

	for idx := range tasks {
		t := tasks[idx]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			payload, err := r.runOne(gctx, t)
			if err != nil {
				outcomes[idx].failure = &Failure{InstanceID: t.inst.ID(), Solver: t.solver, Run: t.run, Err: err}
				logger.Warn("bench run failed",
					zap.String("instance", t.inst.ID()),
					zap.String("solver", t.solver),
					zap.Int("run", t.run),
					zap.Error(err))
				return nil
			}
			outcomes[idx].payload = &payload
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Payloads: make([]domain.RunPayload, 0, len(tasks))}
	for _, o := range outcomes {
		switch {
		case o.payload != nil:
			res.Payloads = append(res.Payloads, *o.payload)
		case o.failure != nil:
			res.Failures = append(res.Failures, *o.failure)
		}
	}

	logger.Info("bench finished",
		zap.Int("instances", len(instances)),
		zap.Strings("solvers", r.Solvers),
		zap.Int("payloads", len(res.Payloads)),
		zap.Int("failures", len(res.Failures)))

	return res, nil
}

func (r Runner) runOne(ctx context.Context, t task) (domain.RunPayload, error) {
	opts := r.Service.Defaults()
	opts.Seed = r.BaseSeed + int64(t.run)

	solver, err := r.Service.SelectSolver(t.solver, opts)
	if err != nil {
		return domain.RunPayload{}, err
	}

	runCtx := ctx
	cancel := func() {}
	if r.PerRunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.PerRunTimeout)
	}
	defer cancel()

	resp, err := r.Service.SolveInstance(runCtx, t.inst, solver)
	if err != nil {
		return domain.RunPayload{}, err
	}
	return resp.Payload, nil
}

// Report compares the payloads of two solvers from one bench result.
func (r Runner) Report(res Result, challenger, baseline string) (harness.Report, error) {
	if r.Service == nil {
		return harness.Report{}, errors.New("bench runner has no service")
	}

	challengerRaws, err := rawRecords(res.Payloads, challenger)
	if err != nil {
		return harness.Report{}, err
	}
	baselineRaws, err := rawRecords(res.Payloads, baseline)
	if err != nil {
		return harness.Report{}, err
	}

	return r.Service.BuildReport(challenger, baseline, challengerRaws, baselineRaws)
}

func rawRecords(payloads []domain.RunPayload, solver string) ([]harness.RawRecord, error) {
	raws := make([]harness.RawRecord, 0)
	for _, p := range payloads {
		if p.Solver != solver {
			continue
		}
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode run payload %s: %w", p.RunID, err)
		}
		raws = append(raws, harness.RawRecord{Locator: p.Locator(), Data: data})
	}
	return raws, nil
}
