package fdtd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/fdtd-bridge/core"
	"github.com/signalsfoundry/fdtd-bridge/internal/audit"
	"github.com/signalsfoundry/fdtd-bridge/internal/config"
	"github.com/signalsfoundry/fdtd-bridge/internal/layout"
	"github.com/signalsfoundry/fdtd-bridge/internal/logging"
	"github.com/signalsfoundry/fdtd-bridge/internal/observability"
	"github.com/signalsfoundry/fdtd-bridge/model"
	"github.com/signalsfoundry/fdtd-bridge/pdk"
)

// ErrNoBackend is returned when no back-end serves the requested solver.
var ErrNoBackend = errors.New("fdtd: no back-end for solver")

// Result summarises one invocation.
type Result struct {
	RunID        string
	Solver       config.Solver
	Plan         *Plan
	ParamsPath   string
	ArtifactPath string
	ResultsPath  string
	Results      map[string]any
	// Aborted is set when the user declined to overwrite an existing
	// artifact. It is not an error.
	Aborted  bool
	Duration time.Duration
}

// Runner validates parameters, builds the plan, writes the audit file and
// dispatches to a back-end.
type Runner struct {
	backends map[config.Solver]Backend
	log      logging.Logger
	metrics  MetricsRecorder
	confirm  ConfirmFunc
	now      func() time.Time
	tracer   trace.Tracer
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the base logger.
func WithLogger(l logging.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithConfirm sets the overwrite confirmation. The default refuses.
func WithConfirm(c ConfirmFunc) RunnerOption {
	return func(r *Runner) {
		if c != nil {
			r.confirm = c
		}
	}
}

// WithClock replaces the wall clock used for durations.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithTracer replaces the tracer from the global provider.
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// NewRunner registers the given back-ends by solver name.
func NewRunner(backends []Backend, opts ...RunnerOption) *Runner {
	r := &Runner{
		backends: make(map[config.Solver]Backend, len(backends)),
		log:      logging.Noop(),
		confirm:  NeverConfirm,
		now:      time.Now,
		tracer:   observability.Tracer(),
	}
	for _, b := range backends {
		r.backends[b.Name()] = b
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one setup for solver. Validation and port errors return
// before any file is written.
func (r *Runner) Run(ctx context.Context, solver config.Solver, params config.Params) (res *Result, err error) {
	start := r.now()
	ctx, log := logging.WithRunLogger(ctx, r.log)
	log = log.With(logging.String("solver", string(solver)), logging.String("file_name", params.FileName))
	ctx = logging.ContextWithLogger(ctx, log)

	ctx, span := r.tracer.Start(ctx, "fdtd.run", trace.WithAttributes(
		attribute.String("solver", string(solver)),
		attribute.String("run_id", logging.RunIDFromContext(ctx)),
	))
	outcome := observability.OutcomeError
	defer func() {
		span.SetAttributes(attribute.String("outcome", outcome))
		observability.EndSpan(span, err)
		elapsed := r.now().Sub(start)
		if res != nil {
			res.Duration = elapsed
		}
		if err != nil {
			log.Error(ctx, "setup failed", logging.Err(err))
		}
		if r.metrics != nil {
			r.metrics.ObserveSetup(string(solver), outcome, elapsed)
		}
	}()

	backend, ok := r.backends[solver]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoBackend, solver)
	}
	if err := params.Validate(solver); err != nil {
		return nil, err
	}
	if err := params.CheckFiles(solver); err != nil {
		return nil, err
	}
	if params.FlagRunSimulation {
		if err := backend.CheckRun(params); err != nil {
			return nil, fmt.Errorf("%s run: %w", solver, err)
		}
	}

	plan, dev, err := r.plan(ctx, log, solver, params)
	if err != nil {
		return nil, err
	}

	res = &Result{
		RunID:        logging.RunIDFromContext(ctx),
		Solver:       solver,
		Plan:         plan,
		ParamsPath:   params.ParamsPath(),
		ArtifactPath: backend.ArtifactPath(params),
	}

	if err := audit.Write(res.ParamsPath, params); err != nil {
		return nil, fmt.Errorf("write parameters: %w", err)
	}
	log.Info(ctx, "parameters written", logging.String("path", res.ParamsPath))

	if params.PredefinedGDS != "" {
		copied, err := layout.CopyTo(dev, params.FileName+".gds")
		if err != nil {
			return nil, err
		}
		plan.GDSPath = copied.Path
		log.Info(ctx, "layout copied", logging.String("from", dev.Path), logging.String("to", copied.Path))
	}

	if params.FlagRunSimulation {
		if _, statErr := os.Stat(res.ArtifactPath); statErr == nil {
			log.Warn(ctx, "simulation file already exists", logging.String("path", res.ArtifactPath))
			proceed, err := r.confirm(ctx, res.ArtifactPath)
			if err != nil {
				return nil, fmt.Errorf("confirm overwrite: %w", err)
			}
			if !proceed {
				log.Info(ctx, "stopping at user request")
				res.Aborted = true
				outcome = observability.OutcomeAborted
				return res, nil
			}
		}
	}

	if err := r.traced(ctx, "solver.prepare", func(ctx context.Context) error {
		return backend.Prepare(ctx, plan, params)
	}); err != nil {
		return nil, fmt.Errorf("%s prepare: %w", solver, err)
	}
	log.Info(ctx, "simulation prepared", logging.String("artifact", res.ArtifactPath))

	if params.FlagRunSimulation {
		runStart := r.now()
		var results map[string]any
		if err := r.traced(ctx, "solver.run", func(ctx context.Context) error {
			var err error
			results, err = backend.Run(ctx, plan, params)
			return err
		}); err != nil {
			return nil, fmt.Errorf("%s run: %w", solver, err)
		}
		took := r.now().Sub(runStart)
		if r.metrics != nil {
			r.metrics.ObserveSolverRun(string(solver), took)
		}
		if results == nil {
			results = make(map[string]any)
		}
		results["time(s)"] = int(took.Seconds())

		res.Results = results
		res.ResultsPath = params.ResultsPath()
		if err := audit.Write(res.ResultsPath, results); err != nil {
			return nil, fmt.Errorf("write results: %w", err)
		}
		log.Info(ctx, "simulation finished",
			logging.Int("seconds", int(took.Seconds())),
			logging.String("results", res.ResultsPath),
		)
	}

	outcome = observability.OutcomeOK
	return res, nil
}

func (r *Runner) plan(ctx context.Context, log logging.Logger, solver config.Solver, params config.Params) (_ *Plan, _ *layout.Device, err error) {
	ctx, span := r.tracer.Start(ctx, "fdtd.plan")
	defer func() { observability.EndSpan(span, err) }()

	stack, err := pdk.LoadStack(params.StackFile)
	if err != nil {
		return nil, nil, err
	}
	dev, err := layout.Load(params.SourceGDS())
	if err != nil {
		return nil, nil, err
	}
	for name := range dev.Ports {
		if name != core.PrimaryPort && !core.IsNumberedPort(name) {
			log.Debug(ctx, "port ignored for placement", logging.String("port", name))
		}
	}

	plan, err := BuildPlan(params, solver, dev, stack)
	if err != nil {
		return nil, nil, err
	}
	for _, key := range plan.Skipped {
		log.Warn(ctx, "layer not in stack; skipped",
			logging.String("layer", stack.LayerName(key)),
			logging.Any("key", key),
		)
	}
	if params.FlagBoolean {
		log.Warn(ctx, "flag_boolean set; boolean layer operations are not applied")
	}

	sources, monitors := 0, 0
	for _, p := range plan.Placements {
		if p.Role == model.RoleSource {
			sources++
		} else {
			monitors++
		}
	}
	if r.metrics != nil {
		r.metrics.SetPlacementCounts(sources, monitors)
	}
	span.SetAttributes(
		attribute.Int("placements", len(plan.Placements)),
		attribute.Int("structures", len(plan.Structures)),
		attribute.Float64("run_time_s", plan.RunTime),
	)
	log.Info(ctx, "plan built",
		logging.String("device", plan.DeviceName),
		logging.Int("sources", sources),
		logging.Int("monitors", monitors),
		logging.Int("structures", len(plan.Structures)),
		logging.Any("region", plan.Region),
	)
	return plan, dev, nil
}

func (r *Runner) traced(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	ctx, span := r.tracer.Start(ctx, name)
	defer func() { observability.EndSpan(span, err) }()
	return fn(ctx)
}
