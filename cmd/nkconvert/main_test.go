package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalsfoundry/fdtd-bridge/internal/logging"
	"github.com/signalsfoundry/fdtd-bridge/internal/materials"
)

const table = "wavelength(m),Re(index),Im(index)\n1.50e-6,1.444,0\n1.55e-6,1.443,0\n1.60e-6,1.442,0.001\n"

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags([]string{"data/SiO2.csv"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.Output != "data/SiO2.json" {
		t.Fatalf("output = %q", cfg.Output)
	}
	if cfg.Title != "SiO2" {
		t.Fatalf("title = %q", cfg.Title)
	}
	if cfg.WavelengthKey != materials.WavelengthKey {
		t.Fatalf("wavelength key = %q", cfg.WavelengthKey)
	}

	if _, err := parseFlags(nil, io.Discard); err == nil {
		t.Fatalf("expected error without input")
	}
}

func TestRunConvertsAndPlots(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "SiO2.csv")
	if err := os.WriteFile(in, []byte(table), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	cfg, err := parseFlags([]string{"-in", in, "-plot", filepath.Join(dir, "plots", "SiO2.png")}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "plots"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := run(context.Background(), cfg, logging.Noop()); err != nil {
		t.Fatalf("run: %v", err)
	}

	nk, err := materials.ReadNK(cfg.Output, materials.WavelengthKey, materials.IndexKey, materials.ExtinctionKey)
	if err != nil {
		t.Fatalf("ReadNK: %v", err)
	}
	if nk.Len() != 3 || nk.K[2] != 0.001 {
		t.Fatalf("unexpected table %+v", nk)
	}
	if info, err := os.Stat(cfg.Plot); err != nil || info.Size() == 0 {
		t.Fatalf("plot not written: %v", err)
	}
}

func TestRunRejectsMissingColumns(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(in, []byte("lambda,n\n1.5,1.4\n"), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	cfg, err := parseFlags([]string{"-in", in}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	err = run(context.Background(), cfg, logging.Noop())
	if !errors.Is(err, materials.ErrEmptyTable) {
		t.Fatalf("expected ErrEmptyTable, got %v", err)
	}
}
