package stats

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cubelife/internal/model"
)

func TestDiagnosticsCSVAppendsAcrossReopen(t *testing.T) {
	runDir := filepath.Join(t.TempDir(), "run-1")

	w, err := OpenDiagnosticsCSV(runDir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.Append(model.GenerationDiagnostics{Generation: 1, Outcome: "progress", BestFitness: 2}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	w, err = OpenDiagnosticsCSV(runDir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := w.Append(model.GenerationDiagnostics{Generation: 2, Outcome: "dead_end", BestFitness: 1.5}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(runDir, diagnosticsCSVFile))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if n := strings.Count(string(data), "generation,outcome"); n != 1 {
		t.Fatalf("expected exactly one header, got=%d:\n%s", n, data)
	}

	rows, ok, err := ReadDiagnosticsCSV(runDir)
	if err != nil || !ok {
		t.Fatalf("read diagnostics: ok=%t err=%v", ok, err)
	}
	if len(rows) != 2 || rows[1].Outcome != "dead_end" || rows[1].BestFitness != 1.5 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestWriteDiagnosticsCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDiagnosticsCSV(&buf, nil); err != nil || buf.Len() != 0 {
		t.Fatalf("expected nothing written for no rows, err=%v len=%d", err, buf.Len())
	}
	rows := []model.GenerationDiagnostics{{Generation: 3, Mode: "jump", SpeciesCount: 4}}
	if err := WriteDiagnosticsCSV(&buf, rows); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "3,,jump,") {
		t.Fatalf("unexpected csv: %q", buf.String())
	}
}

func TestReadDiagnosticsCSVMissing(t *testing.T) {
	if _, ok, err := ReadDiagnosticsCSV(t.TempDir()); ok || err != nil {
		t.Fatalf("expected missing csv, ok=%t err=%v", ok, err)
	}
	var nilWriter *DiagnosticsCSV
	if err := nilWriter.Append(model.GenerationDiagnostics{}); err != nil {
		t.Fatalf("nil writer append: %v", err)
	}
}
