package fdtd

import (
	"context"
	"time"

	"github.com/signalsfoundry/fdtd-bridge/internal/config"
)

// Backend builds and runs a plan on one solver.
type Backend interface {
	// Name is the solver this back-end serves.
	Name() config.Solver
	// ArtifactPath is the file a run would overwrite.
	ArtifactPath(params config.Params) string
	// CheckRun reports why params cannot be run, before anything is written.
	CheckRun(params config.Params) error
	// Prepare builds the solver-side simulation without running it.
	Prepare(ctx context.Context, plan *Plan, params config.Params) error
	// Run executes a prepared simulation and returns its extracted results.
	Run(ctx context.Context, plan *Plan, params config.Params) (map[string]any, error)
}

// MetricsRecorder receives setup metrics. *observability.SetupCollector
// satisfies it.
type MetricsRecorder interface {
	ObserveSetup(solver, outcome string, d time.Duration)
	ObserveSolverRun(solver string, d time.Duration)
	SetPlacementCounts(sources, monitors int)
}
