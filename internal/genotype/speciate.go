package genotype

import (
	"sort"

	"cubelife/internal/model"
)

// SpeciateByBodyPlan groups genomes by species id (block connectivity).
func SpeciateByBodyPlan(genomes []model.Genome) map[string][]model.Genome {
	species := make(map[string][]model.Genome, len(genomes))
	for _, genome := range genomes {
		key := SpeciesID(genome)
		species[key] = append(species[key], CloneGenome(genome))
	}
	return species
}

// AssignToSpecies appends one genome into its species bucket and returns the
// selected species key.
func AssignToSpecies(genome model.Genome, species map[string][]model.Genome) (string, map[string][]model.Genome) {
	if species == nil {
		species = map[string][]model.Genome{}
	}
	key := SpeciesID(genome)
	species[key] = append(species[key], CloneGenome(genome))
	return key, species
}

// SpeciesKeys returns the keys of a species map in sorted order.
func SpeciesKeys(species map[string][]model.Genome) []string {
	keys := make([]string, 0, len(species))
	for k := range species {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
