package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"knapsack-bench/internal/algorithm"
	"knapsack-bench/internal/domain"
	"knapsack-bench/internal/harness"
	"knapsack-bench/internal/metrics"
)

// AutoSolver picks the configured default solver.
const AutoSolver = "auto"

// RunStore is the persistence the service needs; *store.Store satisfies it.
type RunStore interface {
	PutPayload(ctx context.Context, p domain.RunPayload) (string, error)
	List(ctx context.Context) ([]harness.RawRecord, error)
	ListBySolver(ctx context.Context, solver string) ([]harness.RawRecord, error)
}

type SolverOptions struct {
	MaxIterations int
	Seed          int64
	TimeLimit     time.Duration
}

type Options struct {
	Defaults   SolverOptions
	Backend    algorithm.ExactBackend
	Store      RunStore
	Normalizer *harness.Normalizer
	Metrics    *metrics.Collectors
	Logger     *zap.Logger
	Now        func() time.Time
}

type OptimizerService struct {
	defaults   SolverOptions
	backend    algorithm.ExactBackend
	store      RunStore
	normalizer *harness.Normalizer
	metrics    *metrics.Collectors
	logger     *zap.Logger
	now        func() time.Time
}

func NewOptimizerService(opts Options) *OptimizerService {
	s := &OptimizerService{
		defaults:   opts.Defaults,
		backend:    opts.Backend,
		store:      opts.Store,
		normalizer: opts.Normalizer,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.normalizer == nil {
		s.normalizer = harness.NewNormalizer(nil, s.logger)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *OptimizerService) Defaults() SolverOptions { return s.defaults }

// SelectSolver builds a fresh solver per call so concurrent solves never
// share random state.
func (s *OptimizerService) SelectSolver(name string, opts SolverOptions) (algorithm.Solver, error) {
	switch solverKey(name) {
	case "", AutoSolver, algorithm.LocalSearchName:
		return algorithm.NewLocalSearchSolver(opts.MaxIterations, opts.Seed)
	case algorithm.GreedyName:
		return algorithm.NewGreedySolver(), nil
	case algorithm.ExactName:
		return algorithm.NewExactAdapter(s.backend, opts.TimeLimit), nil
	default:
		return nil, fmt.Errorf("%w: unknown solver %q", domain.ErrInvalidConfig, name)
	}
}

func (s *OptimizerService) optionsFor(req *domain.SolveRequest) SolverOptions {
	opts := s.defaults
	if req.MaxIterations > 0 {
		opts.MaxIterations = req.MaxIterations
	}
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}
	if limit := req.TimeLimit(); limit > 0 {
		opts.TimeLimit = limit
	}
	return opts
}

func (s *OptimizerService) Solve(ctx context.Context, req domain.SolveRequest) (*domain.SolveResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	inst, err := req.Instance.ToDomain("instance")
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	solver, err := s.SelectSolver(req.Solver, s.optionsFor(&req))
	if err != nil {
		return nil, err
	}

	return s.SolveInstance(ctx, inst, solver)
}

// SolveInstance runs solver on inst, persists the run payload and records
// metrics. An unavailable exact backend is not a failure: the attempt is
// stored with status Unknown and the cause is returned as a warning.
func (s *OptimizerService) SolveInstance(ctx context.Context, inst *domain.Instance, solver algorithm.Solver) (*domain.SolveResponse, error) {
	s.preprocess(inst)

	s.logger.Debug("solving instance",
		zap.String("instance", inst.ID()),
		zap.String("solver", solver.Name()),
		zap.Int("items", inst.Len()))

	res, solveErr := solver.Solve(ctx, inst)
	if solveErr != nil && !errors.Is(solveErr, domain.ErrBackendUnavailable) {
		return nil, solveErr
	}

	runID := uuid.NewString()
	payload := domain.NewRunPayload(inst, res.Solution, res.Status, runID, s.now())
	if res.Status == domain.StatusUnknown {
		payload = payload.WithoutSolution()
	}

	resp := &domain.SolveResponse{
		RunID:    runID,
		Status:   res.Status,
		Solution: res.Solution,
		Payload:  payload,
	}

	if solveErr != nil {
		resp.Warning = solveErr.Error()
		s.metrics.BackendUnavailable()
		s.logger.Warn("exact backend unavailable",
			zap.String("instance", inst.ID()),
			zap.Error(solveErr))
	}

	if s.store != nil {
		// a solve cut short by its deadline is still a run worth recording
		if _, err := s.store.PutPayload(context.WithoutCancel(ctx), payload); err != nil {
			return nil, fmt.Errorf("persist run %s: %w", runID, err)
		}
		resp.Stored = true
	}

	s.metrics.ObserveSolve(solver.Name(), res.Status, res.Solution)

	s.logger.Info("solve finished",
		zap.String("instance", inst.ID()),
		zap.String("solver", solver.Name()),
		zap.String("status", res.Status.String()),
		zap.Float64("objective", res.Solution.ObjectiveValue),
		zap.Int("selected", len(res.Solution.Selection)),
		zap.Float64("runtime_s", res.Solution.WallTimeSeconds))

	return resp, nil
}

// preprocess only reports on the item mix; solvers see the full instance.
func (s *OptimizerService) preprocess(inst *domain.Instance) {
	fitting := domain.FittingIndices(inst)
	if excluded := inst.Len() - len(fitting); excluded > 0 {
		s.logger.Debug("items heavier than capacity",
			zap.String("instance", inst.ID()),
			zap.Int("count", excluded))
	}

	free, weighted := domain.SplitFreeItems(inst, fitting)
	if len(free) > 0 && len(weighted) > 0 {
		s.logger.Debug("mixed zero-weight and weighted items",
			zap.String("instance", inst.ID()),
			zap.Int("zero_weight", len(free)),
			zap.Int("weighted", len(weighted)))
	}
}

// Compare builds a report from records supplied inline.
func (s *OptimizerService) Compare(_ context.Context, req domain.CompareRequest) (harness.Report, error) {
	return s.BuildReport(
		nameOr(req.ChallengerName, string(harness.FamilyChallenger)),
		nameOr(req.BaselineName, string(harness.FamilyBaseline)),
		toRaw(req.Challenger),
		toRaw(req.Baseline),
	)
}

// Report compares the stored runs of two solvers.
func (s *OptimizerService) Report(ctx context.Context, challenger, baseline string) (harness.Report, error) {
	challenger, baseline = solverKey(challenger), solverKey(baseline)
	if challenger == "" || baseline == "" {
		return harness.Report{}, fmt.Errorf("%w: challenger and baseline solvers are required", domain.ErrInvalidConfig)
	}
	if s.store == nil {
		return harness.Report{}, fmt.Errorf("%w: run store is disabled", domain.ErrEmptyInput)
	}

	challengerRaws, err := s.store.ListBySolver(ctx, challenger)
	if err != nil {
		return harness.Report{}, err
	}
	baselineRaws, err := s.store.ListBySolver(ctx, baseline)
	if err != nil {
		return harness.Report{}, err
	}

	return s.BuildReport(challenger, baseline, challengerRaws, baselineRaws)
}

// BuildReport normalizes both sides, skipping unparseable records, and
// compares their best runs.
func (s *OptimizerService) BuildReport(challengerName, baselineName string, challenger, baseline []harness.RawRecord) (harness.Report, error) {
	challengerRecs, skippedC := s.normalizer.NormalizeBatch(challenger, harness.FamilyChallenger)
	baselineRecs, skippedB := s.normalizer.NormalizeBatch(baseline, harness.FamilyBaseline)
	s.metrics.RecordsSkipped(len(skippedC) + len(skippedB))

	report, err := harness.BuildReport(challengerName, baselineName, challengerRecs, baselineRecs)
	if err != nil {
		return harness.Report{}, err
	}

	s.logger.Info("comparison built",
		zap.String("challenger", challengerName),
		zap.String("baseline", baselineName),
		zap.Int("instances", report.Summary.Instances),
		zap.Int("paired", report.Summary.Paired),
		zap.Int("skipped", len(skippedC)+len(skippedB)))

	return report, nil
}

// Runs lists every stored run in canonical form.
// Runs lists every stored run, optionally only those of one solver.
func (s *OptimizerService) Runs(ctx context.Context, solver string) ([]domain.RunRecord, error) {
	if s.store == nil {
		return []domain.RunRecord{}, nil
	}

	raws, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	records, skipped := s.normalizer.NormalizeBatch(raws, harness.FamilyChallenger)
	s.metrics.RecordsSkipped(len(skipped))
	if solver = solverKey(solver); solver != "" {
		records = harness.FilterBySolver(records, solver)
	}
	return records, nil
}

// solverKey is the stored form of a solver family name.
func solverKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *OptimizerService) HealthCheck() map[string]interface{} {
	backend := algorithm.NoBackendName
	if s.backend != nil {
		backend = s.backend.Name()
	}
	return map[string]interface{}{
		"status":        "healthy",
		"service":       "knapsack-bench",
		"exact_backend": backend,
		"store":         s.store != nil,
	}
}

// toRaw keeps the supplied locator as is; a record with neither a locator
// nor an instance field has no identity and is skipped by the normalizer.
func toRaw(inputs []domain.RecordInput) []harness.RawRecord {
	raws := make([]harness.RawRecord, 0, len(inputs))
	for _, in := range inputs {
		raws = append(raws, harness.RawRecord{Locator: in.Locator, Data: in.Record})
	}
	return raws
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
