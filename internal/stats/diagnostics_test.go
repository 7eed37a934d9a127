package stats

import (
	"errors"
	"math"
	"testing"

	"cubelife/internal/genotype"
	"cubelife/internal/model"
)

func creature(t *testing.T, seed uint32, blocks int, fitness float64) model.Creature {
	t.Helper()
	c, err := genotype.BuildFromSeed(seed, blocks)
	if err != nil && !errors.Is(err, genotype.ErrConstructionExhausted) {
		t.Fatalf("build: %v", err)
	}
	c.Fitness = fitness
	return c
}

func TestDiagnoseSummarizesGeneration(t *testing.T) {
	champion := creature(t, 11, 4, 3)
	evaluated := []model.Creature{champion, creature(t, 12, 4, 2), creature(t, 13, 5, 1)}
	d := Diagnose(GenerationSample{
		Generation: 4,
		Outcome:    "progress",
		Mode:       "distance",
		Champion:   champion,
		Target:     2.5,
		Evaluated:  evaluated,
		Counters:   model.CountersRecord{Backtracks: 2, DeadEnds: 3, Exhaustions: 1},
	})

	if d.BestFitness != 3 || d.MinFitness != 1 || d.MeanFitness != 2 {
		t.Fatalf("unexpected fitness summary: %+v", d)
	}
	if math.Abs(d.StdDevFitness-1) > 1e-12 {
		t.Fatalf("expected sample stddev 1, got=%f", d.StdDevFitness)
	}
	if d.PopulationSize != 3 || d.ChampionBlocks != champion.BlockCount() || d.Champion != champion.Name {
		t.Fatalf("unexpected population fields: %+v", d)
	}
	if d.Backtracks != 2 || d.DeadEnds != 3 || d.BacktrackExhausts != 1 {
		t.Fatalf("unexpected counters: %+v", d)
	}
	if d.FingerprintCount < 1 || d.FingerprintCount > 3 || d.SpeciesCount < 1 || d.SpeciesCount > d.FingerprintCount {
		t.Fatalf("unexpected diversity counts: species=%d fingerprints=%d", d.SpeciesCount, d.FingerprintCount)
	}
	if d.MeanEditDistance <= 0 {
		t.Fatalf("expected positive edit distance, got=%f", d.MeanEditDistance)
	}
}

func TestDiagnoseEmptyGeneration(t *testing.T) {
	d := Diagnose(GenerationSample{Generation: 1, Outcome: "dead_end"})
	if d.PopulationSize != 0 || d.BestFitness != 0 || d.StdDevFitness != 0 || d.MeanEditDistance != 0 {
		t.Fatalf("unexpected diagnostics: %+v", d)
	}
}

func TestGenomeDistance(t *testing.T) {
	a := creature(t, 21, 3, 0).Genome
	if GenomeDistance(a, a) != 0 {
		t.Fatal("identical genomes must have zero distance")
	}
	b := genotype.CloneGenome(a)
	b.Blocks[1].ColorSeed ^= 0x0f
	// one hex digit of the colour seed differs: a substitution costs two
	if got := GenomeDistance(a, b); got != 2 {
		t.Fatalf("expected distance 2, got=%d", got)
	}
	if got := MeanEditDistance(a, []model.Genome{a, b}); got != 1 {
		t.Fatalf("expected mean distance 1, got=%f", got)
	}
}

func TestDiversityCountsIgnoreColour(t *testing.T) {
	a := creature(t, 31, 3, 0).Genome
	b := genotype.CloneGenome(a)
	b.Blocks[2].ColorSeed++
	if FingerprintCount([]model.Genome{a, b}) != 1 || SpeciesCount([]model.Genome{a, b}) != 1 {
		t.Fatal("colour-only differences must not count as new shapes")
	}
}
