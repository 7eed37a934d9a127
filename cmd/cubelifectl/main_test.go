package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cubelife/internal/platform"
	api "cubelife/pkg/cubelife"
)

const testConfig = `evolution:
  initial_population: 4
  initial_blocks: 2
  variants_per_configuration: 2
  configurations_per_generation: 2
  seed: 5
run:
  workers: 2
  snapshot_every: 2
  tournament_size: 2
simulator:
  duration: 1
storage:
  kind: sqlite
logging:
  level: error
`

func writeTestConfig(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cubelife.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	common := []string{
		"--config", path,
		"--db-path", filepath.Join(dir, "cubelife.db"),
		"--artifacts-dir", filepath.Join(dir, "runs"),
	}
	return dir, common
}

func TestRunResumeAndInspectCommands(t *testing.T) {
	dir, common := writeTestConfig(t)
	ctx := context.Background()

	out, err := captureStdout(func() error {
		return run(ctx, append([]string{"run", "--run-id", "run-cli", "--gens", "4"}, common...))
	})
	if err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !strings.Contains(out, "run_id=run-cli") || strings.Count(out, "evaluation=") != 4 {
		t.Fatalf("unexpected run output:\n%s", out)
	}

	out, err = captureStdout(func() error {
		return run(ctx, append([]string{"resume", "--latest", "--gens", "2", "--json"}, common...))
	})
	if err != nil {
		t.Fatalf("resume command: %v", err)
	}
	var summary api.RunSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode resume json: %v\n%s", err, out)
	}
	if summary.RunID != "run-cli" || len(summary.BestByGeneration) != 6 {
		t.Fatalf("unexpected resume summary: %+v", summary)
	}

	snapshot := platform.SnapshotPath(filepath.Join(dir, "runs"), "run-cli", 6)
	out, err = captureStdout(func() error {
		return run(ctx, []string{"inspect", snapshot})
	})
	if err != nil {
		t.Fatalf("inspect command: %v", err)
	}
	if !strings.Contains(out, "run_id=run-cli") || !strings.Contains(out, "size=") {
		t.Fatalf("unexpected inspect output:\n%s", out)
	}
}

func TestRunsLineageTournamentAndExportCommands(t *testing.T) {
	dir, common := writeTestConfig(t)
	ctx := context.Background()
	if _, err := captureStdout(func() error {
		return run(ctx, append([]string{"run", "--run-id", "run-x", "--gens", "3", "--mode", "jump"}, common...))
	}); err != nil {
		t.Fatalf("run command: %v", err)
	}

	out, err := captureStdout(func() error {
		return run(ctx, append([]string{"runs"}, common...))
	})
	if err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(out, "run_id=run-x") || !strings.Contains(out, "mode=") {
		t.Fatalf("unexpected runs output:\n%s", out)
	}

	out, err = captureStdout(func() error {
		return run(ctx, append([]string{"lineage", "--run-id", "run-x"}, common...))
	})
	if err != nil {
		t.Fatalf("lineage command: %v", err)
	}
	if !strings.Contains(out, "gen=") {
		t.Fatalf("unexpected lineage output:\n%s", out)
	}

	out, err = captureStdout(func() error {
		return run(ctx, append([]string{"tournament", "--run-id", "run-x"}, common...))
	})
	if err != nil {
		t.Fatalf("tournament command: %v", err)
	}
	if !strings.Contains(out, "1st entrant") || !strings.Contains(out, "winner=") {
		t.Fatalf("unexpected tournament output:\n%s", out)
	}

	csvPath := filepath.Join(dir, "out", "diagnostics.csv")
	out, err = captureStdout(func() error {
		return run(ctx, append([]string{"export-csv", "--run-id", "run-x", "--out", csvPath}, common...))
	})
	if err != nil {
		t.Fatalf("export-csv command: %v", err)
	}
	if !strings.Contains(out, "rows=3") {
		t.Fatalf("unexpected export-csv output:\n%s", out)
	}
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !strings.HasPrefix(string(data), "generation,") {
		t.Fatalf("unexpected csv header:\n%s", data)
	}

	if _, err := captureStdout(func() error {
		return run(ctx, append([]string{"export", "--latest", "--out", filepath.Join(dir, "exports")}, common...))
	}); err != nil {
		t.Fatalf("export command: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "exports", "run-x", "summary.json")); err != nil {
		t.Fatalf("expected exported summary: %v", err)
	}
}

func TestCommandValidation(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing command", args: nil, want: "missing command"},
		{name: "unknown command", args: []string{"fly"}, want: "unknown command"},
		{name: "resume without run", args: []string{"resume"}, want: "requires --run-id or --latest"},
		{name: "lineage with both", args: []string{"lineage", "--run-id", "a", "--latest"}, want: "not both"},
		{name: "inspect without path", args: []string{"inspect"}, want: "requires --path"},
		{name: "runs limit", args: []string{"runs", "--limit", "0"}, want: "limit must be > 0"},
		{name: "negative gens", args: []string{"run", "--gens", "-1"}, want: "must be >= 0"},
		{name: "bad log level", args: []string{"runs", "--log-level", "loud"}, want: "logging"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := run(ctx, tc.args)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got=%v", tc.want, err)
			}
		})
	}
}

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		_ = r.Close()
		return "", err
	}
	_ = r.Close()
	return buf.String(), runErr
}
