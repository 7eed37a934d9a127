package model

import (
	"errors"
	"fmt"
)

// CurrentStateVersion is the only state document version this build reads.
const CurrentStateVersion = 1

var ErrInvalidSaveVersion = errors.New("invalid save version")

func CheckStateVersion(version int) error {
	if version != CurrentStateVersion {
		return fmt.Errorf("%w: got=%d want=%d", ErrInvalidSaveVersion, version, CurrentStateVersion)
	}
	return nil
}

// EvolutionSettings is the configuration surface read at generation start.
type EvolutionSettings struct {
	InitialPopulation           int    `json:"initial_population" yaml:"initial_population"`
	InitialBlocks               int    `json:"initial_blocks" yaml:"initial_blocks"`
	VariantsPerConfiguration    int    `json:"variants_per_configuration" yaml:"variants_per_configuration"`
	ConfigurationsPerGeneration int    `json:"configurations_per_generation" yaml:"configurations_per_generation"`
	BlocksPerGeneration         int    `json:"blocks_per_generation" yaml:"blocks_per_generation"`
	RandomizeBlockCount         bool   `json:"randomize_block_count" yaml:"randomize_block_count"`
	MaxBlocks                   int    `json:"max_blocks" yaml:"max_blocks"`
	AllowChaining               bool   `json:"allow_chaining" yaml:"allow_chaining"`
	FitnessMode                 string `json:"fitness_mode" yaml:"fitness_mode"`
	Seed                        uint32 `json:"seed" yaml:"seed"`
}

// CreatureRecord persists a creature by genome only; bodies and joints are
// rebuilt on load.
type CreatureRecord struct {
	Name              string  `json:"name"`
	Genome            string  `json:"genome"`
	ParentName        string  `json:"parent_name,omitempty"`
	DefendingChampion bool    `json:"defending_champion,omitempty"`
	Metrics           Metrics `json:"metrics"`
	Fitness           float64 `json:"fitness"`
}

type TargetRecord struct {
	Metrics Metrics `json:"metrics"`
	Mode    string  `json:"mode"`
}

type RankedRecord struct {
	Creature CreatureRecord `json:"creature"`
	Fitness  float64        `json:"fitness"`
	NodeID   int            `json:"node_id"`
}

type HistoryRecord struct {
	Generation      int            `json:"generation"`
	Ranked          []RankedRecord `json:"ranked"`
	TriedRanks      []int          `json:"tried_ranks"`
	ChampionMetrics Metrics        `json:"champion_metrics"`
	Mode            string         `json:"mode"`
}

type TreeNodeRecord struct {
	ID          int            `json:"id"`
	Generation  int            `json:"generation"`
	Fitness     float64        `json:"fitness"`
	Metrics     Metrics        `json:"metrics"`
	Mode        string         `json:"mode"`
	ParentID    int            `json:"parent_id"`
	Status      string         `json:"status"`
	Children    []int          `json:"children"`
	SpeciesID   string         `json:"species_id"`
	Fingerprint string         `json:"fingerprint"`
	Creature    CreatureRecord `json:"creature"`
}

type CountersRecord struct {
	DeadEnds         int `json:"dead_ends"`
	Backtracks       int `json:"backtracks"`
	CompletedLines   int `json:"completed_lines"`
	ChampionDefenses int `json:"champion_defenses"`
	Exhaustions      int `json:"exhaustions"`
}

// StateDocument is the complete exported state of one evolution manager.
type StateDocument struct {
	Version           int               `json:"version"`
	Generation        int               `json:"generation"`
	RNGState          uint32            `json:"rng_state"`
	ActiveMode        string            `json:"active_mode"`
	LastMode          string            `json:"last_mode,omitempty"`
	Champion          *CreatureRecord   `json:"champion,omitempty"`
	AllTimeChampion   *CreatureRecord   `json:"all_time_champion,omitempty"`
	Parent            *CreatureRecord   `json:"parent,omitempty"`
	Target            *TargetRecord     `json:"target,omitempty"`
	Population        []CreatureRecord  `json:"population"`
	Settings          EvolutionSettings `json:"settings"`
	History           []HistoryRecord   `json:"history"`
	Tree              []TreeNodeRecord  `json:"tree"`
	BranchNodeID      int               `json:"branch_node_id"`
	ChampionNodeID    int               `json:"champion_node_id"`
	PendingTournament []int             `json:"pending_tournament,omitempty"`
	Dedupe            []string          `json:"dedupe"`
	Counters          CountersRecord    `json:"counters"`
}

// GenerationDiagnostics summarizes one evaluated generation.
type GenerationDiagnostics struct {
	Generation        int     `json:"generation" csv:"generation"`
	Outcome           string  `json:"outcome" csv:"outcome"`
	Mode              string  `json:"mode" csv:"mode"`
	Champion          string  `json:"champion" csv:"champion"`
	BestFitness       float64 `json:"best_fitness" csv:"best_fitness"`
	MeanFitness       float64 `json:"mean_fitness" csv:"mean_fitness"`
	MinFitness        float64 `json:"min_fitness" csv:"min_fitness"`
	StdDevFitness     float64 `json:"stddev_fitness" csv:"stddev_fitness"`
	Target            float64 `json:"target" csv:"target"`
	PopulationSize    int     `json:"population_size" csv:"population_size"`
	SpeciesCount      int     `json:"species_count" csv:"species_count"`
	FingerprintCount  int     `json:"fingerprint_count" csv:"fingerprint_count"`
	MeanEditDistance  float64 `json:"mean_edit_distance" csv:"mean_edit_distance"`
	ChampionBlocks    int     `json:"champion_blocks" csv:"champion_blocks"`
	Backtracks        int     `json:"backtracks" csv:"backtracks"`
	DeadEnds          int     `json:"dead_ends" csv:"dead_ends"`
	BacktrackExhausts int     `json:"backtrack_exhausts" csv:"backtrack_exhausts"`
}

// RunRecord indexes one stored run.
type RunRecord struct {
	RunID           string  `json:"run_id"`
	CreatedAtUTC    string  `json:"created_at_utc"`
	UpdatedAtUTC    string  `json:"updated_at_utc"`
	Generation      int     `json:"generation"`
	Champion        string  `json:"champion"`
	ChampionFitness float64 `json:"champion_fitness"`
	Mode            string  `json:"mode"`
}
