package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"cubelife/internal/model"
)

type RunConfig struct {
	RunID         string                  `json:"run_id"`
	CreatedAtUTC  string                  `json:"created_at_utc"`
	Simulator     string                  `json:"simulator"`
	Generations   int                     `json:"generations"`
	Workers       int                     `json:"workers"`
	SnapshotEvery int                     `json:"snapshot_every"`
	StoreKind     string                  `json:"store_kind"`
	Settings      model.EvolutionSettings `json:"settings"`
}

type LineageEntry struct {
	NodeID     int     `json:"node_id"`
	Generation int     `json:"generation"`
	Name       string  `json:"name"`
	ParentName string  `json:"parent_name,omitempty"`
	Genome     string  `json:"genome"`
	Fitness    float64 `json:"fitness"`
	Mode       string  `json:"mode"`
	Status     string  `json:"status"`
}

type RunSummary struct {
	RunID           string               `json:"run_id"`
	Generation      int                  `json:"generation"`
	Mode            string               `json:"mode"`
	Champion        string               `json:"champion"`
	ChampionGenome  string               `json:"champion_genome"`
	ChampionFitness float64              `json:"champion_fitness"`
	AllTimeChampion string               `json:"all_time_champion,omitempty"`
	AllTimeFitness  float64              `json:"all_time_fitness,omitempty"`
	Counters        model.CountersRecord `json:"counters"`
	Lineage         []LineageEntry       `json:"lineage"`
}

type RunArtifacts struct {
	Config      RunConfig                     `json:"config"`
	Summary     RunSummary                    `json:"summary"`
	Diagnostics []model.GenerationDiagnostics `json:"generation_diagnostics"`
}

func NewRunID() string {
	return "run-" + uuid.NewString()
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), artifacts.Summary); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "lineage.json"), artifacts.Summary.Lineage); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "generation_diagnostics.json"), artifacts.Diagnostics); err != nil {
		return "", err
	}
	return runDir, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, "config.json"), cfg)
}

func ReadRunSummary(baseDir, runID string) (RunSummary, bool, error) {
	var summary RunSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, "summary.json"), &summary)
	return summary, ok, err
}

// ExportRunArtifacts copies a run directory's artifacts to outDir/runID.
// Missing optional files are skipped.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	required := []string{"config.json", "summary.json"}
	for _, file := range required {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	optional := []string{"lineage.json", "generation_diagnostics.json", diagnosticsCSVFile}
	for _, file := range optional {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
