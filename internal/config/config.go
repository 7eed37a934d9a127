package config

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cubelife/internal/evo"
	"cubelife/internal/model"
	"cubelife/internal/storage"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Evolution model.EvolutionSettings `yaml:"evolution"`
	Run       RunConfig               `yaml:"run"`
	Simulator SimulatorConfig         `yaml:"simulator"`
	Storage   StorageConfig           `yaml:"storage"`
	Logging   LoggingConfig           `yaml:"logging"`
}

type RunConfig struct {
	Generations    int `yaml:"generations"`
	Workers        int `yaml:"workers"`
	SnapshotEvery  int `yaml:"snapshot_every"` // 0 disables snapshot files
	TournamentSize int `yaml:"tournament_size"`
}

type SimulatorConfig struct {
	Duration float64 `yaml:"duration"` // simulated seconds per creature
	Step     float64 `yaml:"step"`
	TileSize float64 `yaml:"tile_size"`
}

type StorageConfig struct {
	Kind         string `yaml:"kind"` // memory or sqlite
	SQLitePath   string `yaml:"sqlite_path"`
	ArtifactsDir string `yaml:"artifacts_dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Load reads the embedded defaults and overlays the file at path, if any.
// Only keys present in the file replace defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the embedded configuration.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("embedded defaults are invalid: %v", err))
	}
	return cfg
}

func (c *Config) Validate() error {
	if err := evo.ValidateSettings(c.Evolution); err != nil {
		return fmt.Errorf("evolution: %w", err)
	}
	if c.Run.Generations < 0 {
		return fmt.Errorf("run: generations must be >= 0")
	}
	if c.Run.Workers <= 0 {
		return fmt.Errorf("run: workers must be > 0")
	}
	if c.Run.SnapshotEvery < 0 {
		return fmt.Errorf("run: snapshot_every must be >= 0")
	}
	if c.Run.TournamentSize < 0 {
		return fmt.Errorf("run: tournament_size must be >= 0")
	}
	if c.Simulator.Duration <= 0 || c.Simulator.Step <= 0 || c.Simulator.TileSize <= 0 {
		return fmt.Errorf("simulator: duration, step and tile_size must be > 0")
	}
	if c.Simulator.Step > c.Simulator.Duration {
		return fmt.Errorf("simulator: step %.3f exceeds duration %.3f", c.Simulator.Step, c.Simulator.Duration)
	}
	switch c.Storage.Kind {
	case storage.KindMemory:
	case storage.KindSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage: sqlite_path is required for sqlite")
		}
	default:
		return fmt.Errorf("storage: %w %q", storage.ErrUnsupportedStore, c.Storage.Kind)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging: unsupported format %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) Settings() evo.Settings {
	return c.Evolution
}

func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return 0, fmt.Errorf("logging: %w", err)
	}
	return level, nil
}

// NewLogger builds the structured logger described by l. An invalid level
// falls back to info.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WriteYAML saves the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
