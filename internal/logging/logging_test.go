package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEnsureRunIDIsStable(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" {
		t.Fatalf("expected a run id")
	}
	if len(id) != 36 {
		t.Fatalf("run id %q is not a uuid", id)
	}
	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id {
		t.Fatalf("EnsureRunID replaced existing id: %q != %q", id2, id)
	}
	if RunIDFromContext(ctx2) != id {
		t.Fatalf("RunIDFromContext = %q, want %q", RunIDFromContext(ctx2), id)
	}
}

func TestWithRunLoggerAnnotatesEntries(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx, log := WithRunLogger(context.Background(), base)
	log.Info(ctx, "region built", Float64("x_min", -1), Err(errors.New("boom")))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry: %v (%q)", err, buf.String())
	}
	if entry["run_id"] != RunIDFromContext(ctx) {
		t.Fatalf("run_id = %v, want %q", entry["run_id"], RunIDFromContext(ctx))
	}
	if entry["x_min"] != -1.0 {
		t.Fatalf("x_min = %v", entry["x_min"])
	}
	if entry["msg"] != "region built" {
		t.Fatalf("msg = %v", entry["msg"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "dropped")
	log.Warn(context.Background(), "kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info entry leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn entry missing: %q", out)
	}
}

func TestFromContext(t *testing.T) {
	fallback := Noop()
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback on empty context")
	}
	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("nil fallback should become Noop")
	}
	if FromContext(ContextWithLogger(context.Background(), nil), nil) == nil {
		t.Fatalf("nil logger should be stored as Noop")
	}

	var buf bytes.Buffer
	ctx, _ := WithRunLogger(context.Background(), New(Config{Format: "json", Output: &buf}))
	FromContext(ctx, Noop()).Info(ctx, "solver started")
	if !strings.Contains(buf.String(), RunIDFromContext(ctx)) {
		t.Fatalf("context logger lost the run id: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"": "INFO", "DEBUG": "DEBUG", " warning ": "WARN", "error": "ERROR", "verbose": "INFO"}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
