package evo

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"cubelife/internal/fitness"
	"cubelife/internal/genotype"
	"cubelife/internal/model"
	"cubelife/internal/rng"
)

var (
	// ErrBacktrackExhausted is returned together with a valid Outcome when no
	// untried alternative is left anywhere in history. Evolution continues
	// from the unchanged champion.
	ErrBacktrackExhausted     = errors.New("backtrack exhausted")
	ErrMetricsMismatch        = errors.New("metrics do not match population")
	ErrNotInitialized         = errors.New("manager not initialized")
	ErrAlreadyInitialized     = errors.New("manager already initialized")
	ErrTournamentPending      = errors.New("tournament pending")
	ErrNoTournamentPending    = errors.New("no tournament pending")
	ErrNoTournamentCandidates = errors.New("no tournament candidates")
	ErrUnknownNode            = errors.New("unknown tree node")
)

// Settings is the configuration surface read at the start of each
// generation.
type Settings = model.EvolutionSettings

const maxBlocksPerGeneration = 4

func DefaultSettings() Settings {
	return Settings{
		InitialPopulation:           12,
		InitialBlocks:               3,
		VariantsPerConfiguration:    3,
		ConfigurationsPerGeneration: 4,
		BlocksPerGeneration:         1,
		FitnessMode:                 string(fitness.ModeDistance),
		Seed:                        1,
	}
}

func ValidateSettings(s Settings) error {
	if s.InitialPopulation <= 0 {
		return fmt.Errorf("initial population must be > 0")
	}
	if s.InitialBlocks <= 0 {
		return fmt.Errorf("initial blocks must be > 0")
	}
	if s.VariantsPerConfiguration <= 0 {
		return fmt.Errorf("variants per configuration must be > 0")
	}
	if s.ConfigurationsPerGeneration <= 0 {
		return fmt.Errorf("configurations per generation must be > 0")
	}
	if s.BlocksPerGeneration < 1 || s.BlocksPerGeneration > maxBlocksPerGeneration {
		return fmt.Errorf("blocks per generation must be in [1, %d]", maxBlocksPerGeneration)
	}
	if s.MaxBlocks < 0 {
		return fmt.Errorf("max blocks must be >= 0")
	}
	if s.MaxBlocks > 0 && s.InitialBlocks > s.MaxBlocks {
		return fmt.Errorf("initial blocks %d exceed max blocks %d", s.InitialBlocks, s.MaxBlocks)
	}
	if _, err := fitness.ParseMode(s.FitnessMode); err != nil {
		return err
	}
	return nil
}

// Target is the raw performance a generation has to beat, with the mode it
// was obtained under.
type Target struct {
	Metrics model.Metrics
	Mode    fitness.Mode
}

// Ranked is one population member after evaluation.
type Ranked struct {
	Creature model.Creature
	Fitness  float64
	NodeID   int
}

// HistoryEntry is one completed generation.
type HistoryEntry struct {
	Generation      int
	Ranked          []Ranked
	Tried           map[int]bool
	ChampionMetrics model.Metrics
	Mode            fitness.Mode
}

func cloneEntry(e HistoryEntry) HistoryEntry {
	out := e
	out.Ranked = cloneRanked(e.Ranked)
	out.Tried = make(map[int]bool, len(e.Tried))
	for k, v := range e.Tried {
		out.Tried[k] = v
	}
	out.ChampionMetrics = genotype.CloneMetrics(e.ChampionMetrics)
	return out
}

func cloneRanked(in []Ranked) []Ranked {
	out := make([]Ranked, len(in))
	for i, r := range in {
		out[i] = Ranked{Creature: genotype.CloneCreature(r.Creature), Fitness: r.Fitness, NodeID: r.NodeID}
	}
	return out
}

type Counters struct {
	DeadEnds         int
	Backtracks       int
	CompletedLines   int
	ChampionDefenses int
	Exhaustions      int
}

type OutcomeKind string

const (
	OutcomeProgress     OutcomeKind = "progress"
	OutcomeDeadEnd      OutcomeKind = "dead_end"
	OutcomeLineComplete OutcomeKind = "line_complete"
)

// Outcome reports what one Evaluate call decided.
type Outcome struct {
	Generation     int
	Kind           OutcomeKind
	Mode           fitness.Mode
	Champion       string
	BestFitness    float64
	Target         float64
	HasTarget      bool
	Ranked         []Ranked
	Backtracked    bool
	BacktrackTo    int
	BacktrackRank  int
	BaseName       string
	Exhausted      bool
	NextGeneration int
	PopulationSize int
}

func (o Outcome) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", o.Generation),
		slog.String("kind", string(o.Kind)),
		slog.String("mode", string(o.Mode)),
		slog.String("champion", o.Champion),
		slog.Float64("best", o.BestFitness),
		slog.Float64("target", o.Target),
		slog.Bool("backtracked", o.Backtracked),
		slog.Bool("exhausted", o.Exhausted),
		slog.Int("next_generation", o.NextGeneration),
	)
}

type ManagerConfig struct {
	Settings Settings
	Logger   *slog.Logger
}

// Manager owns one evolution: population, champion, history, evolution
// tree and dedupe set. It performs no I/O and is not safe for concurrent
// use; creatures leave it only as clones.
type Manager struct {
	settings Settings
	logger   *slog.Logger
	rng      *rng.LCG
	picker   *fitness.Picker

	activeMode fitness.Mode
	generation int
	population []model.Creature

	champion *model.Creature
	allTime  *model.Creature
	parent   *model.Creature
	target   *Target

	history        []HistoryEntry
	tree           *Tree
	branchNodeID   int
	championNodeID int
	pending        []int
	dedupe         map[string]struct{}
	counters       Counters
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := ValidateSettings(cfg.Settings); err != nil {
		return nil, err
	}
	mode, _ := fitness.ParseMode(cfg.Settings.FitnessMode)
	cfg.Settings.FitnessMode = string(mode)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		settings:       cfg.Settings,
		logger:         logger,
		rng:            rng.New(cfg.Settings.Seed),
		picker:         fitness.NewPicker(mode, ""),
		generation:     1,
		tree:           NewTree(),
		branchNodeID:   model.NoParent,
		championNodeID: model.NoParent,
		dedupe:         make(map[string]struct{}),
	}, nil
}

// Initialize grows generation 1 from fresh seeds.
func (m *Manager) Initialize() error {
	if len(m.population) > 0 || len(m.history) > 0 || m.tree.Len() > 0 {
		return ErrAlreadyInitialized
	}
	pop := make([]model.Creature, 0, m.settings.InitialPopulation)
	attempts := m.settings.InitialPopulation * 4
	for len(pop) < m.settings.InitialPopulation && attempts > 0 {
		attempts--
		seed := m.rng.Uint32()
		c, err := genotype.BuildFromSeed(seed, m.settings.InitialBlocks)
		if err != nil && !errors.Is(err, genotype.ErrConstructionExhausted) {
			return fmt.Errorf("build seed %08x: %w", seed, err)
		}
		if !m.admit(c) {
			continue
		}
		pop = append(pop, c)
	}
	if len(pop) == 0 {
		return fmt.Errorf("could not build an initial population")
	}
	m.beginGeneration(pop)
	m.logger.Info("population_initialized", "generation", m.generation, "size", len(pop), "mode", string(m.activeMode))
	return nil
}

func (m *Manager) beginGeneration(pop []model.Creature) {
	for i := range pop {
		pop[i].ResetFitness()
	}
	m.population = pop
	m.activeMode = m.picker.Next(m.rng)
}

// Evaluate scores the current population with metrics supplied in
// population order, decides progress or dead end and prepares the next
// population. On exhaustion it returns a valid Outcome together with
// ErrBacktrackExhausted.
func (m *Manager) Evaluate(metrics []model.Metrics) (Outcome, error) {
	if len(m.population) == 0 {
		return Outcome{}, ErrNotInitialized
	}
	if len(m.pending) > 0 {
		return Outcome{}, ErrTournamentPending
	}
	if len(metrics) != len(m.population) {
		return Outcome{}, fmt.Errorf("%w: got=%d want=%d", ErrMetricsMismatch, len(metrics), len(m.population))
	}

	ranked, err := m.rank(metrics)
	if err != nil {
		return Outcome{}, err
	}
	evaluated := m.generation
	mode := m.activeMode
	best := ranked[0]

	out := Outcome{
		Generation:  evaluated,
		Mode:        mode,
		BestFitness: best.Fitness,
	}
	progress := true
	if m.target != nil && mode.HasTarget() {
		target, err := fitness.Score(mode, m.target.Metrics)
		if err != nil {
			return Outcome{}, err
		}
		out.Target = target
		out.HasTarget = true
		progress = best.Fitness > target
	}

	if progress {
		out.Kind = OutcomeProgress
		m.crown(ranked, mode)
		out.Ranked = cloneRanked(ranked)
		out.Champion = m.champion.Name
		if err := m.advance(); err != nil {
			out.Kind = OutcomeLineComplete
			m.counters.CompletedLines++
			_ = m.tree.SetStatus(ranked[0].NodeID, StatusComplete)
			m.logger.Info("line_complete", "generation", evaluated, "champion", m.champion.Name, "reason", err.Error())
		}
	} else {
		out.Kind = OutcomeDeadEnd
		m.counters.DeadEnds++
		for i := range ranked {
			status := StatusEliminated
			if i == 0 {
				status = StatusDeadEnd
			}
			ranked[i].NodeID = m.tree.Add(evaluated, m.branchNodeID, ranked[i].Creature, ranked[i].Fitness, mode, status)
		}
		out.Ranked = cloneRanked(ranked)
		if m.champion != nil {
			out.Champion = m.champion.Name
		}
	}

	var walkErr error
	if out.Kind != OutcomeProgress {
		step := m.backtrack()
		out.Backtracked = step.found
		out.BacktrackTo = step.generation
		out.BacktrackRank = step.rank
		out.BaseName = step.base
		if !step.found {
			out.Exhausted = true
			walkErr = ErrBacktrackExhausted
		}
	} else if m.parent != nil {
		out.BaseName = m.parent.Name
	}
	out.NextGeneration = m.generation
	out.PopulationSize = len(m.population)

	m.logger.Info("generation_evaluated", "outcome", out)
	return out, walkErr
}

// rank records metrics on every member, scores them under the active mode
// and sorts descending. Ties keep population order.
func (m *Manager) rank(metrics []model.Metrics) ([]Ranked, error) {
	for i := range m.population {
		m.population[i].ResetFitness()
		m.population[i].Record(metrics[i])
	}
	recorded := make([]model.Metrics, len(m.population))
	for i, c := range m.population {
		recorded[i] = c.Metrics
	}
	scores, err := fitness.ScorePopulation(m.activeMode, recorded)
	if err != nil {
		return nil, err
	}
	ranked := make([]Ranked, len(m.population))
	for i := range m.population {
		m.population[i].Fitness = scores[i]
		ranked[i] = Ranked{
			Creature: genotype.CloneCreature(m.population[i]),
			Fitness:  scores[i],
			NodeID:   model.NoParent,
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})
	return ranked, nil
}

// crown records a progressing generation: tree nodes, champion, target and
// history entry.
func (m *Manager) crown(ranked []Ranked, mode fitness.Mode) {
	for i := range ranked {
		status := StatusCompetitor
		if i == 0 {
			status = StatusChampion
		}
		ranked[i].NodeID = m.tree.Add(m.generation, m.branchNodeID, ranked[i].Creature, ranked[i].Fitness, mode, status)
	}
	top := genotype.CloneCreature(ranked[0].Creature)
	if top.DefendingChampion {
		m.counters.ChampionDefenses++
	}
	top.DefendingChampion = false
	m.champion = &top
	m.target = &Target{Metrics: genotype.CloneMetrics(top.Metrics), Mode: mode}
	m.updateAllTime(mode)

	m.history = append(m.history, HistoryEntry{
		Generation:      m.generation,
		Ranked:          cloneRanked(ranked),
		Tried:           map[int]bool{0: true},
		ChampionMetrics: genotype.CloneMetrics(top.Metrics),
		Mode:            mode,
	})
	m.branchNodeID = ranked[0].NodeID
	m.championNodeID = ranked[0].NodeID
	m.generation++
}

// advance grows the next population from the new champion, or reports why
// the line cannot continue.
func (m *Manager) advance() error {
	if m.atCap(*m.champion) {
		return fmt.Errorf("%w: %d blocks", genotype.ErrBlockCapReached, m.champion.BlockCount())
	}
	pop, err := m.grow(*m.champion)
	if err != nil {
		return err
	}
	parent := genotype.CloneCreature(*m.champion)
	m.parent = &parent
	m.beginGeneration(pop)
	return nil
}

func (m *Manager) atCap(c model.Creature) bool {
	return m.settings.MaxBlocks > 0 && c.BlockCount() >= m.settings.MaxBlocks
}

// updateAllTime replaces the all-time champion when the current champion
// beats it under the current mode. Outcast scores are population relative,
// so they never displace an existing all-time champion.
func (m *Manager) updateAllTime(mode fitness.Mode) {
	if m.champion == nil {
		return
	}
	replace := m.allTime == nil
	if !replace && !mode.PopulationRelative() {
		previous, err := fitness.Score(mode, m.allTime.Metrics)
		replace = err == nil && m.champion.Fitness > previous
	}
	if replace {
		c := genotype.CloneCreature(*m.champion)
		m.allTime = &c
	}
}

func (m *Manager) Generation() int {
	return m.generation
}

func (m *Manager) ActiveMode() fitness.Mode {
	return m.activeMode
}

func (m *Manager) Settings() Settings {
	return m.settings
}

// SetSettings replaces the configuration. It takes effect when the next
// population is grown; the fitness mode takes effect at the next generation.
func (m *Manager) SetSettings(s Settings) error {
	if err := ValidateSettings(s); err != nil {
		return err
	}
	mode, _ := fitness.ParseMode(s.FitnessMode)
	s.FitnessMode = string(mode)
	m.settings = s
	m.picker.SetConfigured(mode)
	return nil
}

// Population returns clones of the creatures awaiting evaluation.
func (m *Manager) Population() []model.Creature {
	return genotype.ClonePopulation(m.population)
}

func (m *Manager) Champion() (model.Creature, bool) {
	return cloneOptional(m.champion)
}

func (m *Manager) AllTimeChampion() (model.Creature, bool) {
	return cloneOptional(m.allTime)
}

// Parent returns the creature the current population grew from.
func (m *Manager) Parent() (model.Creature, bool) {
	return cloneOptional(m.parent)
}

func cloneOptional(c *model.Creature) (model.Creature, bool) {
	if c == nil {
		return model.Creature{}, false
	}
	return genotype.CloneCreature(*c), true
}

func (m *Manager) Target() (Target, bool) {
	if m.target == nil {
		return Target{}, false
	}
	return Target{Metrics: genotype.CloneMetrics(m.target.Metrics), Mode: m.target.Mode}, true
}

func (m *Manager) Counters() Counters {
	return m.counters
}

func (m *Manager) History() []HistoryEntry {
	out := make([]HistoryEntry, len(m.history))
	for i, e := range m.history {
		out[i] = cloneEntry(e)
	}
	return out
}

// TreeNodes returns copies of every evolution tree node.
func (m *Manager) TreeNodes() []TreeNode {
	return m.tree.Nodes()
}

func (m *Manager) Node(id int) (TreeNode, bool) {
	return m.tree.Node(id)
}

// Champions lists every node that ever led a line.
func (m *Manager) Champions() []TreeNode {
	return m.tree.Champions()
}

// BranchNodeID is the tree node new rankings attach under.
func (m *Manager) BranchNodeID() int {
	return m.branchNodeID
}

// ChampionNodeID is the tree node of the live champion, or model.NoParent.
func (m *Manager) ChampionNodeID() int {
	return m.championNodeID
}

func (m *Manager) DedupeSize() int {
	return len(m.dedupe)
}
