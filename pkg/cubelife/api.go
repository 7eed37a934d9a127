package cubelife

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"cubelife/internal/config"
	"cubelife/internal/evo"
	"cubelife/internal/genotype"
	"cubelife/internal/model"
	"cubelife/internal/platform"
	"cubelife/internal/scape"
	"cubelife/internal/stats"
	"cubelife/internal/storage"
)

const defaultExportsDir = "exports"

// Options configure a Client. Empty fields fall back to the configuration
// file at ConfigPath, then to the embedded defaults.
type Options struct {
	ConfigPath   string
	Config       *config.Config
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
	Registerer   prometheus.Registerer
	// Simulator replaces the kinematic scape built from the configuration.
	Simulator scape.Simulator
}

type Client struct {
	cfg     *config.Config
	store   storage.Store
	sim     scape.Simulator
	logger  *slog.Logger
	metrics *platform.Metrics

	exportsDir  string
	initialized bool
}

type RunRequest struct {
	RunID         string
	Generations   int
	Workers       int
	SnapshotEvery int
	Population    int
	FitnessMode   string
	Seed          uint32
	AllowChaining bool
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	Generation       int
	Champion         string
	ChampionGenome   string
	ChampionFitness  float64
	AllTimeChampion  string
	BestByGeneration []float64
	Outcomes         []string
}

type ResumeRequest struct {
	RunID       string
	Latest      bool
	Generations int
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID           string
	CreatedAtUTC    string
	UpdatedAtUTC    string
	Generation      int
	Champion        string
	ChampionFitness float64
	Mode            string
}

type LineageRequest struct {
	RunID  string
	Latest bool
	NodeID int // negative selects the current branch
}

type TournamentRequest struct {
	RunID  string
	Latest bool
	Size   int
}

type TournamentSummary struct {
	RunID          string
	Winner         string
	NodeID         int
	Fitness        float64
	Mode           string
	Scores         []float64
	NextGeneration int
}

type InspectSummary struct {
	Path            string
	SizeBytes       int64
	Header          storage.SnapshotHeader
	PopulationSize  int
	HistoryLength   int
	TreeNodes       int
	DedupeSize      int
	AllTimeChampion string
	Counters        model.CountersRecord
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type ExportCSVRequest struct {
	RunID  string
	Latest bool
	Path   string
}

type ExportCSVSummary struct {
	RunID       string
	Path        string
	Generations int
}

func New(opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.StoreKind != "" {
		cfg.Storage.Kind = opts.StoreKind
	}
	if opts.DBPath != "" {
		cfg.Storage.SQLitePath = opts.DBPath
	}
	if opts.ArtifactsDir != "" {
		cfg.Storage.ArtifactsDir = opts.ArtifactsDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = cfg.Logging.NewLogger(os.Stderr)
	}
	sim := opts.Simulator
	if sim == nil {
		sim = scape.KinematicScape{
			Duration: cfg.Simulator.Duration,
			Step:     cfg.Simulator.Step,
			TileSize: cfg.Simulator.TileSize,
		}
	}
	metrics, err := platform.NewMetrics(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	store, err := storage.NewStore(cfg.Storage.Kind, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:        cfg,
		store:      store,
		sim:        sim,
		logger:     logger,
		metrics:    metrics,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Config() *config.Config {
	return c.cfg
}

func (c *Client) Metrics() *platform.Metrics {
	return c.metrics
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	settings := c.cfg.Settings()
	if req.Population > 0 {
		settings.InitialPopulation = req.Population
	}
	if req.FitnessMode != "" {
		settings.FitnessMode = req.FitnessMode
	}
	if req.Seed != 0 {
		settings.Seed = req.Seed
	}
	if req.AllowChaining {
		settings.AllowChaining = true
	}
	if err := evo.ValidateSettings(settings); err != nil {
		return RunSummary{}, err
	}

	runner, err := c.runner(ctx, req.Generations, req.Workers, req.SnapshotEvery)
	if err != nil {
		return RunSummary{}, err
	}
	result, err := runner.Start(ctx, req.RunID, settings)
	if err != nil {
		return RunSummary{}, err
	}
	return summarizeRun(result), nil
}

// Resume continues a stored run for req.Generations more generations.
func (c *Client) Resume(ctx context.Context, req ResumeRequest) (RunSummary, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return RunSummary{}, err
	}
	runner, err := c.runner(ctx, req.Generations, 0, 0)
	if err != nil {
		return RunSummary{}, err
	}
	result, err := runner.Resume(ctx, runID)
	if err != nil {
		return RunSummary{}, err
	}
	return summarizeRun(result), nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}

	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunItem{
			RunID:           run.RunID,
			CreatedAtUTC:    run.CreatedAtUTC,
			UpdatedAtUTC:    run.UpdatedAtUTC,
			Generation:      run.Generation,
			Champion:        run.Champion,
			ChampionFitness: run.ChampionFitness,
			Mode:            run.Mode,
		})
	}
	return out, nil
}

func (c *Client) Lineage(ctx context.Context, req LineageRequest) ([]stats.LineageEntry, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	runner, err := c.runner(ctx, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return runner.Lineage(ctx, runID, req.NodeID)
}

func (c *Client) Tournament(ctx context.Context, req TournamentRequest) (TournamentSummary, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return TournamentSummary{}, err
	}
	if req.Size <= 0 {
		req.Size = c.cfg.Run.TournamentSize
	}
	runner, err := c.runner(ctx, 0, 0, 0)
	if err != nil {
		return TournamentSummary{}, err
	}
	result, err := runner.Tournament(ctx, runID, req.Size)
	if err != nil {
		return TournamentSummary{}, err
	}
	return TournamentSummary{
		RunID:          runID,
		Winner:         result.Winner,
		NodeID:         result.NodeID,
		Fitness:        result.Fitness,
		Mode:           string(result.Mode),
		Scores:         result.Scores,
		NextGeneration: result.NextGeneration,
	}, nil
}

// Inspect reads a snapshot file without touching the store.
func (c *Client) Inspect(_ context.Context, path string) (InspectSummary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return InspectSummary{}, err
	}
	snap, err := storage.ReadSnapshot(path)
	if err != nil {
		return InspectSummary{}, err
	}
	summary := InspectSummary{
		Path:           filepath.Clean(path),
		SizeBytes:      info.Size(),
		Header:         snap.Header,
		PopulationSize: len(snap.State.Population),
		HistoryLength:  len(snap.State.History),
		TreeNodes:      len(snap.State.Tree),
		DedupeSize:     len(snap.State.Dedupe),
		Counters:       snap.State.Counters,
	}
	if snap.State.AllTimeChampion != nil {
		summary.AllTimeChampion = snap.State.AllTimeChampion.Name
	}
	return summary, nil
}

// Export copies the artifacts of a run into req.OutDir.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	exportedDir, err := stats.ExportRunArtifacts(c.cfg.Storage.ArtifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// ExportCSV writes the stored generation diagnostics of a run as CSV.
func (c *Client) ExportCSV(ctx context.Context, req ExportCSVRequest) (ExportCSVSummary, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportCSVSummary{}, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return ExportCSVSummary{}, err
	}
	if !ok {
		return ExportCSVSummary{}, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Path == "" {
		req.Path = filepath.Join(c.exportsDir, runID+".csv")
	}
	if err := os.MkdirAll(filepath.Dir(req.Path), 0o755); err != nil {
		return ExportCSVSummary{}, err
	}
	f, err := os.Create(req.Path)
	if err != nil {
		return ExportCSVSummary{}, err
	}
	if err := stats.WriteDiagnosticsCSV(f, diagnostics); err != nil {
		_ = f.Close()
		return ExportCSVSummary{}, err
	}
	if err := f.Close(); err != nil {
		return ExportCSVSummary{}, err
	}
	return ExportCSVSummary{RunID: runID, Path: filepath.Clean(req.Path), Generations: len(diagnostics)}, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) runner(ctx context.Context, generations, workers, snapshotEvery int) (*platform.Runner, error) {
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	if generations <= 0 {
		generations = c.cfg.Run.Generations
	}
	if workers <= 0 {
		workers = c.cfg.Run.Workers
	}
	if snapshotEvery <= 0 {
		snapshotEvery = c.cfg.Run.SnapshotEvery
	}
	return platform.NewRunner(platform.RunnerConfig{
		Store:     c.store,
		Simulator: c.sim,
		Logger:    c.logger,
		Metrics:   c.metrics,
		Options: platform.Options{
			Generations:   generations,
			Workers:       workers,
			SnapshotEvery: snapshotEvery,
			ArtifactsDir:  c.cfg.Storage.ArtifactsDir,
			StoreKind:     c.cfg.Storage.Kind,
		},
	})
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if err := c.ensureStore(ctx); err != nil {
		return "", err
	}
	if runID != "" {
		return runID, nil
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].RunID, nil
}

func summarizeRun(result platform.RunResult) RunSummary {
	summary := RunSummary{
		RunID:           result.RunID,
		ArtifactsDir:    result.RunDir,
		Generation:      result.Generation,
		AllTimeChampion: result.AllTimeChampion.Name,
	}
	if result.HasChampion {
		summary.Champion = result.Champion.Name
		summary.ChampionFitness = result.Champion.Fitness
		summary.ChampionGenome = genotype.Encode(result.Champion.Genome)
	}
	for _, d := range result.Diagnostics {
		summary.BestByGeneration = append(summary.BestByGeneration, d.BestFitness)
	}
	for _, out := range result.Outcomes {
		summary.Outcomes = append(summary.Outcomes, string(out.Kind))
	}
	return summary
}
