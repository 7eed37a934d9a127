package stats

import (
	"github.com/xrash/smetrics"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"cubelife/internal/genotype"
	"cubelife/internal/model"
)

// GenerationSample is everything needed to summarize one evaluated
// generation. Evaluated creatures carry their fitness.
type GenerationSample struct {
	Generation int
	Outcome    string
	Mode       string
	Champion   model.Creature
	Target     float64
	Evaluated  []model.Creature
	Counters   model.CountersRecord
}

func Diagnose(s GenerationSample) model.GenerationDiagnostics {
	d := model.GenerationDiagnostics{
		Generation:        s.Generation,
		Outcome:           s.Outcome,
		Mode:              s.Mode,
		Champion:          s.Champion.Name,
		Target:            s.Target,
		PopulationSize:    len(s.Evaluated),
		ChampionBlocks:    s.Champion.BlockCount(),
		Backtracks:        s.Counters.Backtracks,
		DeadEnds:          s.Counters.DeadEnds,
		BacktrackExhausts: s.Counters.Exhaustions,
	}
	if len(s.Evaluated) == 0 {
		return d
	}

	scores := make([]float64, len(s.Evaluated))
	genomes := make([]model.Genome, len(s.Evaluated))
	for i, c := range s.Evaluated {
		scores[i] = c.Fitness
		genomes[i] = c.Genome
	}
	d.BestFitness = floats.Max(scores)
	d.MinFitness = floats.Min(scores)
	d.MeanFitness = stat.Mean(scores, nil)
	if len(scores) > 1 {
		d.StdDevFitness = stat.StdDev(scores, nil)
	}
	d.SpeciesCount = SpeciesCount(genomes)
	d.FingerprintCount = FingerprintCount(genomes)
	if s.Champion.Genome.Len() > 0 {
		d.MeanEditDistance = MeanEditDistance(s.Champion.Genome, genomes)
	}
	return d
}

func SpeciesCount(genomes []model.Genome) int {
	seen := make(map[string]struct{}, len(genomes))
	for _, g := range genomes {
		seen[genotype.SpeciesID(g)] = struct{}{}
	}
	return len(seen)
}

func FingerprintCount(genomes []model.Genome) int {
	seen := make(map[string]struct{}, len(genomes))
	for _, g := range genomes {
		seen[genotype.BehavioralFingerprint(g)] = struct{}{}
	}
	return len(seen)
}

// GenomeDistance is the edit distance between two encoded genomes, with
// substitutions costing two so that a changed character weighs the same as
// a delete plus an insert.
func GenomeDistance(a, b model.Genome) int {
	return smetrics.WagnerFischer(genotype.Encode(a), genotype.Encode(b), 1, 1, 2)
}

func MeanEditDistance(reference model.Genome, genomes []model.Genome) float64 {
	if len(genomes) == 0 {
		return 0
	}
	distances := make([]float64, len(genomes))
	for i, g := range genomes {
		distances[i] = float64(GenomeDistance(reference, g))
	}
	return stat.Mean(distances, nil)
}
