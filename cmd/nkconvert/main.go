package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/signalsfoundry/fdtd-bridge/internal/logging"
	"github.com/signalsfoundry/fdtd-bridge/internal/materials"
)

// Config is the parsed command line.
type Config struct {
	Input  string
	Output string
	Plot   string
	Title  string

	WavelengthKey string
	IndexKey      string
	ExtinctionKey string
}

func parseFlags(args []string, errOut io.Writer) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("nkconvert", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&cfg.Input, "in", "", "comma-separated n/k table with a header row")
	fs.StringVar(&cfg.Output, "out", "", "JSON output (default: input with .json extension)")
	fs.StringVar(&cfg.Plot, "plot", "", "optional PNG of n and k against wavelength")
	fs.StringVar(&cfg.Title, "title", "", "plot title (default: output file stem)")
	fs.StringVar(&cfg.WavelengthKey, "wavelength-key", materials.WavelengthKey, "wavelength column")
	fs.StringVar(&cfg.IndexKey, "n-key", materials.IndexKey, "refractive index column")
	fs.StringVar(&cfg.ExtinctionKey, "k-key", materials.ExtinctionKey, "extinction coefficient column")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Input == "" && fs.NArg() == 1 {
		cfg.Input = fs.Arg(0)
	}
	if cfg.Input == "" {
		return Config{}, errors.New("no input table given (-in)")
	}
	if cfg.Output == "" {
		cfg.Output = strings.TrimSuffix(cfg.Input, filepath.Ext(cfg.Input)) + ".json"
	}
	if cfg.Title == "" {
		cfg.Title = strings.TrimSuffix(filepath.Base(cfg.Output), filepath.Ext(cfg.Output))
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
	log := logging.NewFromEnv()
	if err := run(context.Background(), cfg, log); err != nil {
		log.Error(context.Background(), "conversion failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, log logging.Logger) error {
	in, err := os.Open(cfg.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	if dir := filepath.Dir(cfg.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	out, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	if err := materials.ConvertCSV(in, out); err != nil {
		out.Close()
		return fmt.Errorf("%s: %w", cfg.Input, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	nk, err := materials.ReadNK(cfg.Output, cfg.WavelengthKey, cfg.IndexKey, cfg.ExtinctionKey)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Output, err)
	}
	log.Info(ctx, "table converted",
		logging.String("in", cfg.Input),
		logging.String("out", cfg.Output),
		logging.Int("rows", nk.Len()),
	)

	if cfg.Plot == "" {
		return nil
	}
	if err := materials.PlotNK(nk, cfg.Title, cfg.Plot); err != nil {
		return err
	}
	log.Info(ctx, "plot written", logging.String("path", cfg.Plot))
	return nil
}
