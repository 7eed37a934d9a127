package stats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"cubelife/internal/model"
)

const diagnosticsCSVFile = "diagnostics.csv"

// DiagnosticsCSV appends one row per generation, writing the header only
// for the first row of an empty file.
type DiagnosticsCSV struct {
	file          *os.File
	headerWritten bool
}

func OpenDiagnosticsCSV(runDir string) (*DiagnosticsCSV, error) {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(runDir, diagnosticsCSVFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", diagnosticsCSVFile, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &DiagnosticsCSV{file: f, headerWritten: info.Size() > 0}, nil
}

func (w *DiagnosticsCSV) Append(d model.GenerationDiagnostics) error {
	if w == nil {
		return nil
	}
	records := []model.GenerationDiagnostics{d}
	if !w.headerWritten {
		if err := gocsv.Marshal(records, w.file); err != nil {
			return fmt.Errorf("writing diagnostics: %w", err)
		}
		w.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, w.file); err != nil {
		return fmt.Errorf("writing diagnostics: %w", err)
	}
	return nil
}

func (w *DiagnosticsCSV) Close() error {
	if w == nil || w.file == nil {
		return nil
	}
	return w.file.Close()
}

func WriteDiagnosticsCSV(out io.Writer, diagnostics []model.GenerationDiagnostics) error {
	if len(diagnostics) == 0 {
		return nil
	}
	return gocsv.Marshal(diagnostics, out)
}

func ReadDiagnosticsCSV(runDir string) ([]model.GenerationDiagnostics, bool, error) {
	f, err := os.Open(filepath.Join(runDir, diagnosticsCSVFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var diagnostics []model.GenerationDiagnostics
	if err := gocsv.Unmarshal(f, &diagnostics); err != nil {
		return nil, false, err
	}
	return diagnostics, true, nil
}
