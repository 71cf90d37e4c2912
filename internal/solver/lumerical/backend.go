package lumerical

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/signalsfoundry/fdtd-bridge/internal/config"
	"github.com/signalsfoundry/fdtd-bridge/internal/fdtd"
	"github.com/signalsfoundry/fdtd-bridge/internal/logging"
)

// ErrNoSolverPath is returned when a run is requested without solver_path.
var ErrNoSolverPath = errors.New("lumerical: solver_path is not set")

// CommandRunner executes the solver binary and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Backend writes Lumerical scripts and, when solver_path is set, executes
// them.
type Backend struct {
	log  logging.Logger
	exec CommandRunner
}

// Option customises a Backend.
type Option func(*Backend)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.log = l
		}
	}
}

// WithCommandRunner replaces process execution.
func WithCommandRunner(r CommandRunner) Option {
	return func(b *Backend) {
		if r != nil {
			b.exec = r
		}
	}
}

// New returns a Lumerical back-end.
func New(opts ...Option) *Backend {
	b := &Backend{log: logging.Noop(), exec: ExecRunner}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ fdtd.Backend = (*Backend)(nil)

// Name implements fdtd.Backend.
func (b *Backend) Name() config.Solver { return config.Lumerical }

// logger prefers the run logger carried by ctx.
func (b *Backend) logger(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, b.log)
}

// ArtifactPath is the saved project file.
func (b *Backend) ArtifactPath(p config.Params) string { return p.FileName + "_FDTD.fsp" }

// SetupScriptPath is where the setup script is written.
func SetupScriptPath(p config.Params) string { return p.FileName + "_setup.lsf" }

// RunScriptPath is where the run script is written.
func RunScriptPath(p config.Params) string { return p.FileName + "_run.lsf" }

// ExportPath is where the run script saves raw results.
func ExportPath(p config.Params) string { return p.FileName + "_lumerical.json" }

// CheckRun implements fdtd.Backend. Runs need a solver binary.
func (b *Backend) CheckRun(p config.Params) error {
	if p.SolverPath == "" {
		return ErrNoSolverPath
	}
	return nil
}

// Prepare writes the setup script and executes it when a solver binary is
// configured.
func (b *Backend) Prepare(ctx context.Context, plan *fdtd.Plan, params config.Params) error {
	media, err := LoadMedia(params)
	if err != nil {
		return err
	}
	artifact, err := filepath.Abs(b.ArtifactPath(params))
	if err != nil {
		return err
	}
	script := BuildSetup(plan, params, media, artifact)
	path := SetupScriptPath(params)
	if err := writeScript(path, script); err != nil {
		return err
	}
	b.logger(ctx).Info(ctx, "setup script written",
		logging.String("path", path),
		logging.Int("statements", len(script.Calls())),
	)

	if params.SolverPath == "" {
		b.logger(ctx).Info(ctx, "solver_path not set; project not built")
		return nil
	}
	return b.execute(ctx, params.SolverPath, path)
}

// Run executes the saved project and returns per-port results keyed
// "<port> T" and "<port> T_net".
func (b *Backend) Run(ctx context.Context, plan *fdtd.Plan, params config.Params) (map[string]any, error) {
	if err := b.CheckRun(params); err != nil {
		return nil, err
	}
	artifact, err := filepath.Abs(b.ArtifactPath(params))
	if err != nil {
		return nil, err
	}
	export, err := filepath.Abs(ExportPath(params))
	if err != nil {
		return nil, err
	}
	path := RunScriptPath(params)
	if err := writeScript(path, BuildRun(plan, artifact, export)); err != nil {
		return nil, err
	}
	if err := b.execute(ctx, params.SolverPath, path); err != nil {
		return nil, err
	}
	return readExport(export, numberedPorts(plan))
}

func (b *Backend) execute(ctx context.Context, solver, script string) error {
	abs, err := filepath.Abs(script)
	if err != nil {
		return err
	}
	b.logger(ctx).Info(ctx, "running solver", logging.String("binary", solver), logging.String("script", abs))
	out, err := b.exec(ctx, solver, "-nw", "-run", abs, "-exit")
	if err != nil {
		b.logger(ctx).Error(ctx, "solver failed", logging.String("output", string(out)))
		return fmt.Errorf("%s %s: %w", filepath.Base(solver), filepath.Base(script), err)
	}
	b.logger(ctx).Debug(ctx, "solver output", logging.String("output", string(out)))
	return nil
}

func writeScript(path string, s *Script) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	if _, err := s.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write script %s: %w", path, err)
	}
	return f.Close()
}

// readExport maps the exported variables back to result keys.
func readExport(path string, ports []string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	out := make(map[string]any, 2*len(ports))
	for _, port := range ports {
		t, e := resultVars(port)
		if v, ok := raw[t]; ok {
			out[port+" T"] = v
		}
		exp, ok := raw[e].(map[string]any)
		if !ok {
			continue
		}
		out[port+" T_net"] = map[string]any{
			"lambda": exp["lambda"],
			"T_net":  exp["T_net"],
		}
	}
	return out, nil
}
