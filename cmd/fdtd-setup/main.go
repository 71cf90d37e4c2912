package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/markkurossi/tabulate"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/fdtd-bridge/internal/config"
	"github.com/signalsfoundry/fdtd-bridge/internal/fdtd"
	"github.com/signalsfoundry/fdtd-bridge/internal/logging"
	"github.com/signalsfoundry/fdtd-bridge/internal/observability"
	"github.com/signalsfoundry/fdtd-bridge/internal/solver/lumerical"
	"github.com/signalsfoundry/fdtd-bridge/internal/solver/tidy3d"
)

// Config is the parsed command line.
type Config struct {
	Solver      string
	ConfigPath  string
	Assignments []string
	Run         bool
	Yes         bool
	MetricsAddr string
	EnvFile     string
	APIKey      string
}

type assignments []string

func (a *assignments) String() string { return strings.Join(*a, ",") }

func (a *assignments) Set(v string) error {
	*a = append(*a, v)
	return nil
}

func parseFlags(args []string, errOut io.Writer) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("fdtd-setup", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&cfg.Solver, "solver", string(config.Lumerical), "solver back-end: lumerical or tidy3d")
	fs.StringVar(&cfg.ConfigPath, "config", "", "parameter file (.json, .yaml or .toml) overlaid on the defaults")
	fs.Var((*assignments)(&cfg.Assignments), "set", "override one parameter as key=value (repeatable)")
	fs.BoolVar(&cfg.Run, "run", false, "run the solver after setup (same as -set flag_run_simulation=true)")
	fs.BoolVar(&cfg.Yes, "yes", false, "overwrite existing simulation files without asking")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics while the setup runs")
	fs.StringVar(&cfg.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return cfg, nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.EnvFile != "" {
		// A missing .env is normal.
		_ = godotenv.Load(cfg.EnvFile)
	}
	cfg.APIKey = os.Getenv(tidy3d.APIKeyEnv)

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}

	confirm := fdtd.PromptConfirm(os.Stdin, os.Stderr)
	if cfg.Yes {
		confirm = fdtd.AlwaysConfirm
	}
	code := 0
	if err := run(ctx, cfg, log, nil, confirm, os.Stdout); err != nil {
		code = 1
	}
	// Flush spans from failed runs before exiting.
	observability.ShutdownWithTimeout(context.Background(), shutdown, log)
	stop()
	os.Exit(code)
}

// buildParams layers the config file and -set overrides on the solver
// defaults.
func buildParams(solver config.Solver, cfg Config, now time.Time) (config.Params, error) {
	params := config.Defaults(solver, now)
	if cfg.ConfigPath != "" {
		overrides, err := config.LoadOverrides(cfg.ConfigPath)
		if err != nil {
			return config.Params{}, err
		}
		if err := params.Apply(overrides); err != nil {
			return config.Params{}, fmt.Errorf("%s: %w", cfg.ConfigPath, err)
		}
	}
	overrides, err := config.ParseAssignments(cfg.Assignments)
	if err != nil {
		return config.Params{}, err
	}
	if err := params.Apply(overrides); err != nil {
		return config.Params{}, err
	}
	if cfg.Run {
		params.FlagRunSimulation = true
	}
	return params, nil
}

func run(ctx context.Context, cfg Config, log logging.Logger, reg prometheus.Registerer, confirm fdtd.ConfirmFunc, out io.Writer) error {
	solver, err := config.ParseSolver(cfg.Solver)
	if err != nil {
		log.Error(ctx, "invalid solver", logging.Err(err))
		return err
	}
	params, err := buildParams(solver, cfg, time.Now())
	if err != nil {
		log.Error(ctx, "invalid configuration", logging.Err(err))
		return err
	}

	collector, err := observability.NewSetupCollector(reg)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		return err
	}
	if srv := serveMetrics(cfg.MetricsAddr, collector, log); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	backends := []fdtd.Backend{
		lumerical.New(lumerical.WithLogger(log)),
		tidy3d.New(
			tidy3d.WithLogger(log),
			tidy3d.WithAPIKey(cfg.APIKey),
			tidy3d.WithCostRecorder(collector),
		),
	}
	runner := fdtd.NewRunner(backends,
		fdtd.WithLogger(log),
		fdtd.WithMetricsRecorder(collector),
		fdtd.WithConfirm(confirm),
	)

	res, err := runner.Run(ctx, solver, params)
	if err != nil {
		return err
	}
	printSummary(out, res)
	return nil
}

func printSummary(w io.Writer, res *fdtd.Result) {
	plan := res.Plan
	r := plan.Region
	fmt.Fprintf(w, "run %s  solver %s  device %s\n", res.RunID, res.Solver, plan.DeviceName)
	fmt.Fprintf(w, "region x [%g, %g]  y [%g, %g]  z [%g, %g]  run time %.4g s\n",
		r.XMin, r.XMax, r.YMin, r.YMax, r.ZMin, r.ZMax, plan.RunTime)

	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Role").SetAlign(tabulate.ML)
	tab.Header("Port").SetAlign(tabulate.ML)
	tab.Header("Center").SetAlign(tabulate.MR)
	tab.Header("Size").SetAlign(tabulate.MR)
	tab.Header("Axis").SetAlign(tabulate.ML)
	tab.Header("Dir").SetAlign(tabulate.ML)
	for _, pl := range plan.Placements {
		row := tab.Row()
		row.Column(string(pl.Role))
		row.Column(pl.PortName)
		row.Column(fmt.Sprintf("(%g, %g, %g)", pl.Center.X, pl.Center.Y, pl.Center.Z))
		row.Column(fmt.Sprintf("(%g, %g, %g)", pl.Size.X, pl.Size.Y, pl.Size.Z))
		row.Column(string(pl.Axis))
		row.Column(string(pl.Direction))
	}
	tab.Print(w)

	fmt.Fprintf(w, "parameters: %s\n", res.ParamsPath)
	switch {
	case res.Aborted:
		fmt.Fprintln(w, "Stopping...")
	case res.ResultsPath != "":
		fmt.Fprintf(w, "results: %s\n", res.ResultsPath)
	default:
		fmt.Fprintf(w, "prepared: %s\n", res.ArtifactPath)
	}
}

func serveMetrics(addr string, collector *observability.SetupCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
