package tidy3d

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/signalsfoundry/fdtd-bridge/internal/config"
	"github.com/signalsfoundry/fdtd-bridge/internal/fdtd"
	"github.com/signalsfoundry/fdtd-bridge/internal/logging"
)

// DefaultPollInterval is how often Run checks task status.
const DefaultPollInterval = 5 * time.Second

// CostRecorder receives the estimated task cost.
// *observability.SetupCollector satisfies it.
type CostRecorder interface {
	SetEstimatedCost(credits float64)
}

// Backend writes simulation documents and drives the cloud task API.
type Backend struct {
	log      logging.Logger
	apiKey   string
	hook     func(c *Client)
	cost     CostRecorder
	interval time.Duration

	mu    sync.Mutex
	tasks map[string]string // file_name -> task id
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

// WithAPIKey sets the credentials. Without a key Prepare only writes the
// simulation document.
func WithAPIKey(key string) Option {
	return func(b *Backend) { b.apiKey = key }
}

// WithCostRecorder publishes estimated costs.
func WithCostRecorder(r CostRecorder) Option {
	return func(b *Backend) { b.cost = r }
}

// WithPollInterval sets the status polling period.
func WithPollInterval(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithClientHook adjusts every Client the back-end creates, for example to
// swap its HTTP transport.
func WithClientHook(fn func(c *Client)) Option {
	return func(b *Backend) { b.hook = fn }
}

// New returns a tidy3d back-end.
func New(opts ...Option) *Backend {
	b := &Backend{
		log:      logging.Noop(),
		interval: DefaultPollInterval,
		tasks:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ fdtd.Backend = (*Backend)(nil)

// Name implements fdtd.Backend.
func (b *Backend) Name() config.Solver { return config.Tidy3D }

// logger prefers the run logger carried by ctx.
func (b *Backend) logger(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, b.log)
}

// ArtifactPath is the downloaded monitor data.
func (b *Backend) ArtifactPath(p config.Params) string { return p.FileName + "_results.hdf5" }

// SimulationPath is where the simulation document is written.
func SimulationPath(p config.Params) string { return p.FileName + "_sim.json" }

func (b *Backend) client(p config.Params) *Client {
	c := NewClient(p.APIURL, b.apiKey)
	if b.hook != nil {
		b.hook(c)
	}
	return c
}

// TaskID returns the task created for file_name by Prepare.
func (b *Backend) TaskID(fileName string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.tasks[fileName]
	return id, ok
}

// Prepare writes the simulation document and, with credentials, uploads it
// as a draft task and logs its estimated cost.
func (b *Backend) Prepare(ctx context.Context, plan *fdtd.Plan, params config.Params) error {
	sim, err := b.writeSimulation(plan, params)
	if err != nil {
		return err
	}
	b.logger(ctx).Info(ctx, "simulation written",
		logging.String("path", SimulationPath(params)),
		logging.Int("structures", len(sim.Structures)),
		logging.Int("monitors", len(sim.Monitors)),
	)

	if b.apiKey == "" {
		b.logger(ctx).Info(ctx, APIKeyEnv+" not set; task not created")
		return nil
	}
	_, err = b.createTask(ctx, params, sim)
	return err
}

func (b *Backend) writeSimulation(plan *fdtd.Plan, params config.Params) (*Simulation, error) {
	media, err := LoadMedia(params)
	if err != nil {
		return nil, err
	}
	sim, err := BuildSimulation(plan, params, media)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(sim, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode simulation: %w", err)
	}
	path := SimulationPath(params)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write simulation: %w", err)
	}
	return sim, nil
}

func (b *Backend) createTask(ctx context.Context, params config.Params, sim *Simulation) (string, error) {
	c := b.client(params)
	task, err := c.CreateTask(ctx, params.TaskName, sim)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	b.tasks[params.FileName] = task.TaskID
	b.mu.Unlock()

	cost, err := c.EstimateCost(ctx, task.TaskID)
	if err != nil {
		b.logger(ctx).Warn(ctx, "cost estimate unavailable", logging.String("task_id", task.TaskID), logging.Err(err))
		return task.TaskID, nil
	}
	b.logger(ctx).Info(ctx, "task created",
		logging.String("task_id", task.TaskID),
		logging.String("task_name", params.TaskName),
		logging.Float64("estimated_cost", cost),
	)
	if b.cost != nil {
		b.cost.SetEstimatedCost(cost)
	}
	return task.TaskID, nil
}

// CheckRun implements fdtd.Backend. Runs need an API key.
func (b *Backend) CheckRun(config.Params) error {
	if b.apiKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// Run submits the prepared task, waits for it and downloads the monitor
// data to ArtifactPath.
func (b *Backend) Run(ctx context.Context, plan *fdtd.Plan, params config.Params) (map[string]any, error) {
	if err := b.CheckRun(params); err != nil {
		return nil, err
	}
	id, ok := b.TaskID(params.FileName)
	if !ok {
		sim, err := b.writeSimulation(plan, params)
		if err != nil {
			return nil, err
		}
		if id, err = b.createTask(ctx, params, sim); err != nil {
			return nil, err
		}
	}

	c := b.client(params)
	if err := c.Submit(ctx, id); err != nil {
		return nil, err
	}
	b.logger(ctx).Info(ctx, "task submitted", logging.String("task_id", id))

	task, err := c.Wait(ctx, id, b.interval)
	if err != nil {
		return nil, err
	}
	artifact := b.ArtifactPath(params)
	if err := c.Download(ctx, id, ResultsFile, artifact); err != nil {
		return nil, err
	}
	b.logger(ctx).Info(ctx, "results downloaded", logging.String("task_id", id), logging.String("path", artifact))

	results := map[string]any{
		"task_id":      id,
		"task_name":    params.TaskName,
		"status":       task.Status,
		"results_file": artifact,
	}
	if task.RealCost > 0 {
		results["real_cost"] = task.RealCost
	}
	return results, nil
}
