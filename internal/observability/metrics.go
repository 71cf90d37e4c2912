package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup outcomes recorded on fdtd_setups_total.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeAborted = "aborted"
)

// SetupCollector bundles Prometheus metrics for FDTD setups and solver runs.
type SetupCollector struct {
	gatherer prometheus.Gatherer

	Setups        *prometheus.CounterVec
	SetupDuration *prometheus.HistogramVec
	SolverRun     *prometheus.HistogramVec
	Placements    *prometheus.GaugeVec
	EstimatedCost prometheus.Gauge
}

// NewSetupCollector registers setup metrics against reg, or the default
// registry when reg is nil. Registering twice on one registry returns
// collectors sharing the same series.
func NewSetupCollector(reg prometheus.Registerer) (*SetupCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &SetupCollector{gatherer: prometheus.DefaultGatherer}
	if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	}

	var err error
	if c.Setups, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fdtd_setups_total",
		Help: "Total number of FDTD setups, labeled by solver and outcome.",
	}, []string{"solver", "outcome"})); err != nil {
		return nil, err
	}
	if c.SetupDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fdtd_setup_duration_seconds",
		Help:    "Wall time of a setup invocation in seconds, solver run included.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600, 3600},
	}, []string{"solver"})); err != nil {
		return nil, err
	}
	if c.SolverRun, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fdtd_solver_run_seconds",
		Help:    "Wall time spent inside the solver back-end run.",
		Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600, 7200},
	}, []string{"solver"})); err != nil {
		return nil, err
	}
	if c.Placements, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fdtd_placements",
		Help: "Number of placements in the last built plan, labeled by role.",
	}, []string{"role"})); err != nil {
		return nil, err
	}
	if c.EstimatedCost, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fdtd_estimated_cost_credits",
		Help: "Estimated cloud cost of the last prepared simulation.",
	})); err != nil {
		return nil, err
	}
	return c, nil
}

// ObserveSetup records the outcome and duration of one setup.
func (c *SetupCollector) ObserveSetup(solver, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	if c.Setups != nil {
		c.Setups.WithLabelValues(solver, outcome).Inc()
	}
	if c.SetupDuration != nil {
		c.SetupDuration.WithLabelValues(solver).Observe(d.Seconds())
	}
}

// ObserveSolverRun records the time spent in a back-end run.
func (c *SetupCollector) ObserveSolverRun(solver string, d time.Duration) {
	if c == nil || c.SolverRun == nil {
		return
	}
	c.SolverRun.WithLabelValues(solver).Observe(d.Seconds())
}

// SetPlacementCounts publishes the number of sources and monitors of a plan.
func (c *SetupCollector) SetPlacementCounts(sources, monitors int) {
	if c == nil || c.Placements == nil {
		return
	}
	c.Placements.WithLabelValues("source").Set(float64(sources))
	c.Placements.WithLabelValues("monitor").Set(float64(monitors))
}

// SetEstimatedCost publishes a cloud cost estimate.
func (c *SetupCollector) SetEstimatedCost(credits float64) {
	if c == nil || c.EstimatedCost == nil {
		return
	}
	c.EstimatedCost.Set(credits)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SetupCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// register adds c to reg, returning the already registered collector of
// the same type when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
		return c, fmt.Errorf("register collector: incompatible existing collector: %w", err)
	}
	return c, fmt.Errorf("register collector: %w", err)
}
