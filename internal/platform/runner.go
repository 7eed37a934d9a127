package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc/pool"

	"cubelife/internal/evo"
	"cubelife/internal/genotype"
	"cubelife/internal/model"
	"cubelife/internal/scape"
	"cubelife/internal/stats"
	"cubelife/internal/storage"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrRunExists   = errors.New("run already exists")
)

type Options struct {
	Generations   int
	Workers       int
	SnapshotEvery int // 0 disables snapshot files
	ArtifactsDir  string
	StoreKind     string
}

type RunnerConfig struct {
	Store      storage.Store
	Simulator  scape.Simulator
	Logger     *slog.Logger
	Registerer prometheus.Registerer

	// Metrics, when set, is used instead of registering new collectors.
	Metrics *Metrics
	Options Options
	Now     func() time.Time
}

// Runner drives an evolution manager: it simulates each population on a
// bounded worker pool, hands the metrics back in population order and
// persists the manager state after every generation.
type Runner struct {
	store   storage.Store
	sim     scape.Simulator
	logger  *slog.Logger
	metrics *Metrics
	opts    Options
	now     func() time.Time
}

type RunResult struct {
	RunID           string
	RunDir          string
	Generation      int
	Champion        model.Creature
	HasChampion     bool
	AllTimeChampion model.Creature
	Outcomes        []evo.Outcome
	Diagnostics     []model.GenerationDiagnostics
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Simulator == nil {
		return nil, fmt.Errorf("simulator is required")
	}
	if cfg.Options.Generations < 0 {
		return nil, fmt.Errorf("generations must be >= 0")
	}
	if cfg.Options.Workers <= 0 {
		cfg.Options.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	metrics := cfg.Metrics
	if metrics == nil {
		var err error
		metrics, err = NewMetrics(cfg.Registerer)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return &Runner{
		store:   cfg.Store,
		sim:     cfg.Simulator,
		logger:  cfg.Logger,
		metrics: metrics,
		opts:    cfg.Options,
		now:     cfg.Now,
	}, nil
}

func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// Start creates a new run. An empty runID gets a generated one.
func (r *Runner) Start(ctx context.Context, runID string, settings evo.Settings) (RunResult, error) {
	if runID == "" {
		runID = stats.NewRunID()
	}
	if _, ok, err := r.store.GetRun(ctx, runID); err != nil {
		return RunResult{}, err
	} else if ok {
		return RunResult{}, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}

	m, err := evo.NewManager(evo.ManagerConfig{Settings: settings, Logger: r.logger.With("run_id", runID)})
	if err != nil {
		return RunResult{}, err
	}
	if err := m.Initialize(); err != nil {
		return RunResult{}, err
	}

	created := r.timestamp()
	if err := r.store.SaveRun(ctx, model.RunRecord{RunID: runID, CreatedAtUTC: created, UpdatedAtUTC: created, Mode: settings.FitnessMode}); err != nil {
		return RunResult{}, err
	}
	if r.opts.ArtifactsDir != "" {
		cfg := stats.RunConfig{
			RunID:         runID,
			CreatedAtUTC:  created,
			Simulator:     r.sim.Name(),
			Generations:   r.opts.Generations,
			Workers:       r.opts.Workers,
			SnapshotEvery: r.opts.SnapshotEvery,
			StoreKind:     r.opts.StoreKind,
			Settings:      settings,
		}
		if err := stats.WriteRunConfig(r.opts.ArtifactsDir, runID, cfg); err != nil {
			return RunResult{}, err
		}
	}
	r.logger.Info("run_started", "run_id", runID, "simulator", r.sim.Name(), "generations", r.opts.Generations)
	return r.drive(ctx, runID, m, nil)
}

// Resume continues a stored run for another Options.Generations generations.
func (r *Runner) Resume(ctx context.Context, runID string) (RunResult, error) {
	m, err := r.Load(ctx, runID)
	if err != nil {
		return RunResult{}, err
	}
	previous, _, err := r.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return RunResult{}, err
	}
	r.logger.Info("run_resumed", "run_id", runID, "generation", m.Generation(), "generations", r.opts.Generations)
	return r.drive(ctx, runID, m, previous)
}

// Load rebuilds the manager of a stored run.
func (r *Runner) Load(ctx context.Context, runID string) (*evo.Manager, error) {
	doc, ok, err := r.store.GetState(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	m, err := evo.Import(doc, r.logger.With("run_id", runID))
	if err != nil {
		return nil, fmt.Errorf("import run %s: %w", runID, err)
	}
	return m, nil
}

// Tournament re-evaluates up to size historical champions of a stored run
// and restarts the run from the winner.
func (r *Runner) Tournament(ctx context.Context, runID string, size int) (evo.TournamentResult, error) {
	m, err := r.Load(ctx, runID)
	if err != nil {
		return evo.TournamentResult{}, err
	}
	entrants, err := m.StartTournament(size)
	if err != nil {
		return evo.TournamentResult{}, err
	}
	metrics, err := r.Simulate(ctx, entrants)
	if err != nil {
		return evo.TournamentResult{}, err
	}
	result, err := m.FinishTournament(metrics)
	if err != nil {
		return evo.TournamentResult{}, err
	}
	if err := r.persist(ctx, runID, m, nil, 0); err != nil {
		return evo.TournamentResult{}, err
	}
	r.logger.Info("tournament_finished", "run_id", runID, "winner", result.Winner, "fitness", result.Fitness, "next_generation", result.NextGeneration)
	return result, nil
}

// Lineage returns the ancestry of node id in a stored run, root first. A
// negative id selects the current branch.
func (r *Runner) Lineage(ctx context.Context, runID string, id int) ([]stats.LineageEntry, error) {
	m, err := r.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	if id < 0 {
		id = m.BranchNodeID()
	}
	return lineageOf(m, id)
}

// Simulate evaluates every creature on the worker pool and returns metrics
// in population order. The first failure cancels the rest.
func (r *Runner) Simulate(ctx context.Context, pop []model.Creature) ([]model.Metrics, error) {
	results := make([]model.Metrics, len(pop))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(r.opts.Workers)
	for i := range pop {
		i, c := i, pop[i]
		p.Go(func(ctx context.Context) error {
			start := time.Now()
			m, _, err := r.sim.Simulate(ctx, c)
			r.metrics.SimulationSeconds.Observe(time.Since(start).Seconds())
			if err != nil {
				r.metrics.SimulationFailures.Inc()
				return fmt.Errorf("simulate %s: %w", c.Name, err)
			}
			r.metrics.Simulations.Inc()
			results[i] = m
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) drive(ctx context.Context, runID string, m *evo.Manager, diagnostics []model.GenerationDiagnostics) (RunResult, error) {
	result := RunResult{RunID: runID, Diagnostics: diagnostics}
	var csv *stats.DiagnosticsCSV
	if r.opts.ArtifactsDir != "" {
		result.RunDir = filepath.Join(r.opts.ArtifactsDir, runID)
		w, err := stats.OpenDiagnosticsCSV(result.RunDir)
		if err != nil {
			return result, err
		}
		csv = w
		defer csv.Close()
	}

	for i := 0; i < r.opts.Generations; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		metrics, err := r.Simulate(ctx, m.Population())
		if err != nil {
			return result, fmt.Errorf("generation %d: %w", m.Generation(), err)
		}
		out, err := m.Evaluate(metrics)
		if err != nil && !errors.Is(err, evo.ErrBacktrackExhausted) {
			return result, fmt.Errorf("generation %d: %w", m.Generation(), err)
		}

		d := diagnose(m, out)
		result.Outcomes = append(result.Outcomes, out)
		result.Diagnostics = append(result.Diagnostics, d)
		r.metrics.observeGeneration(out, d)
		if err := csv.Append(d); err != nil {
			return result, err
		}

		seq := 0
		if r.opts.SnapshotEvery > 0 && r.opts.ArtifactsDir != "" && len(result.Diagnostics)%r.opts.SnapshotEvery == 0 {
			seq = len(result.Diagnostics)
		}
		if err := r.persist(ctx, runID, m, result.Diagnostics, seq); err != nil {
			return result, err
		}
	}

	result.Generation = m.Generation()
	result.Champion, result.HasChampion = m.Champion()
	result.AllTimeChampion, _ = m.AllTimeChampion()
	if r.opts.ArtifactsDir != "" {
		if err := r.writeArtifacts(ctx, runID, m, result.Diagnostics); err != nil {
			return result, err
		}
	}
	r.logger.Info("run_finished", "run_id", runID, "generation", result.Generation, "champion", result.Champion.Name, "fitness", result.Champion.Fitness)
	return result, nil
}

// persist saves the manager state, diagnostics and run index entry. A
// positive seq also writes a snapshot file numbered by evaluation count.
func (r *Runner) persist(ctx context.Context, runID string, m *evo.Manager, diagnostics []model.GenerationDiagnostics, seq int) error {
	doc := m.Export()
	if err := r.store.SaveState(ctx, runID, doc); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if diagnostics != nil {
		if err := r.store.SaveGenerationDiagnostics(ctx, runID, diagnostics); err != nil {
			return fmt.Errorf("save diagnostics: %w", err)
		}
	}
	run := model.RunRecord{RunID: runID, UpdatedAtUTC: r.timestamp(), Generation: doc.Generation, Mode: doc.ActiveMode}
	if doc.Champion != nil {
		run.Champion = doc.Champion.Name
		run.ChampionFitness = doc.Champion.Fitness
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if seq <= 0 {
		return nil
	}
	path := SnapshotPath(r.opts.ArtifactsDir, runID, seq)
	if err := storage.WriteSnapshot(path, storage.Snapshot{Header: storage.HeaderFor(runID, doc), State: doc}); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	r.logger.Debug("snapshot_written", "run_id", runID, "path", path)
	return nil
}

func (r *Runner) writeArtifacts(ctx context.Context, runID string, m *evo.Manager, diagnostics []model.GenerationDiagnostics) error {
	cfg, ok, err := stats.ReadRunConfig(r.opts.ArtifactsDir, runID)
	if err != nil {
		return err
	}
	if !ok {
		run, _, err := r.store.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		cfg = stats.RunConfig{RunID: runID, CreatedAtUTC: run.CreatedAtUTC, Simulator: r.sim.Name(), StoreKind: r.opts.StoreKind, Settings: m.Settings()}
	}
	cfg.Generations = len(diagnostics)
	cfg.Workers = r.opts.Workers
	cfg.SnapshotEvery = r.opts.SnapshotEvery

	_, err = stats.WriteRunArtifacts(r.opts.ArtifactsDir, stats.RunArtifacts{
		Config:      cfg,
		Summary:     summarize(runID, m),
		Diagnostics: diagnostics,
	})
	return err
}

func (r *Runner) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}

// SnapshotPath names the snapshot taken after the seq-th evaluated
// generation of a run. Backtracking repeats generation numbers, so files are
// numbered by evaluation count.
func SnapshotPath(artifactsDir, runID string, seq int) string {
	return filepath.Join(artifactsDir, runID, "snapshots", fmt.Sprintf("eval-%05d.zst", seq))
}

func counters(m *evo.Manager) model.CountersRecord {
	return model.CountersRecord(m.Counters())
}

func diagnose(m *evo.Manager, out evo.Outcome) model.GenerationDiagnostics {
	evaluated := make([]model.Creature, len(out.Ranked))
	for i, ranked := range out.Ranked {
		evaluated[i] = ranked.Creature
		evaluated[i].Fitness = ranked.Fitness
	}
	sample := stats.GenerationSample{
		Generation: out.Generation,
		Outcome:    string(out.Kind),
		Mode:       string(out.Mode),
		Target:     out.Target,
		Evaluated:  evaluated,
		Counters:   counters(m),
	}
	if champion, ok := m.Champion(); ok {
		sample.Champion = champion
	}
	return stats.Diagnose(sample)
}

func summarize(runID string, m *evo.Manager) stats.RunSummary {
	summary := stats.RunSummary{
		RunID:      runID,
		Generation: m.Generation(),
		Mode:       string(m.ActiveMode()),
		Counters:   counters(m),
	}
	if champion, ok := m.Champion(); ok {
		summary.Champion = champion.Name
		summary.ChampionGenome = genotype.Encode(champion.Genome)
		summary.ChampionFitness = champion.Fitness
	}
	if best, ok := m.AllTimeChampion(); ok {
		summary.AllTimeChampion = best.Name
		summary.AllTimeFitness = best.Fitness
	}
	if id := m.BranchNodeID(); id >= 0 {
		if lineage, err := lineageOf(m, id); err == nil {
			summary.Lineage = lineage
		}
	}
	return summary
}

func lineageOf(m *evo.Manager, id int) ([]stats.LineageEntry, error) {
	chain, err := m.Ancestry(id)
	if err != nil {
		return nil, err
	}
	out := make([]stats.LineageEntry, len(chain))
	for i, node := range chain {
		out[i] = stats.LineageEntry{
			NodeID:     node.ID,
			Generation: node.Generation,
			Name:       node.Creature.Name,
			ParentName: node.Creature.ParentName,
			Genome:     genotype.Encode(node.Creature.Genome),
			Fitness:    node.Fitness,
			Mode:       string(node.Mode),
			Status:     string(node.Status),
		}
	}
	return out, nil
}
