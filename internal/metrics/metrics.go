package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"knapsack-bench/internal/domain"
)

const namespace = "knapbench"

// Collectors owns a private registry so tests and multiple services never
// collide on the global one. All methods are safe on a nil receiver.
type Collectors struct {
	Registry *prometheus.Registry

	solves             *prometheus.CounterVec
	solveDuration      *prometheus.HistogramVec
	objective          *prometheus.GaugeVec
	recordsSkipped     prometheus.Counter
	backendUnavailable prometheus.Counter
}

func New() *Collectors {
	c := &Collectors{
		Registry: prometheus.NewRegistry(),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solves_total",
			Help:      "Solve invocations by solver and reported status.",
		}, []string{"solver", "status"}),
		solveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Wall time of solve invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"solver"}),
		objective: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_objective_value",
			Help:      "Objective value of the most recent solve per solver.",
		}, []string{"solver"}),
		recordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Run records skipped during normalization because they could not be parsed.",
		}),
		backendUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exact_backend_unavailable_total",
			Help:      "Exact solves that ended without a usable backend answer.",
		}),
	}

	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.solves,
		c.solveDuration,
		c.objective,
		c.recordsSkipped,
		c.backendUnavailable,
	)
	return c
}

func (c *Collectors) ObserveSolve(solver string, status domain.Status, sol domain.Solution) {
	if c == nil {
		return
	}
	c.solves.WithLabelValues(solver, status.String()).Inc()
	c.solveDuration.WithLabelValues(solver).Observe(sol.WallTimeSeconds)
	if status != domain.StatusUnknown {
		c.objective.WithLabelValues(solver).Set(sol.ObjectiveValue)
	}
}

func (c *Collectors) RecordsSkipped(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.recordsSkipped.Add(float64(n))
}

func (c *Collectors) BackendUnavailable() {
	if c == nil {
		return
	}
	c.backendUnavailable.Inc()
}
