package evo

import (
	"errors"
	"fmt"

	"cubelife/internal/genotype"
	"cubelife/internal/model"
)

const (
	resampleRetries = 3
	mutateRetries   = 3
	mutateStep      = 24
)

// admit checks c against the dedupe set and records it when new.
func (m *Manager) admit(c model.Creature) bool {
	key := genotype.BehavioralFingerprint(c.Genome)
	if _, ok := m.dedupe[key]; ok {
		return false
	}
	m.dedupe[key] = struct{}{}
	return true
}

// grow builds the population descended from base: one unmutated defending
// clone followed by up to ConfigurationsPerGeneration sampled attachment
// points times VariantsPerConfiguration variants each.
func (m *Manager) grow(base model.Creature) ([]model.Creature, error) {
	if m.atCap(base) {
		return nil, fmt.Errorf("%w: %d blocks", genotype.ErrBlockCapReached, base.BlockCount())
	}
	points, err := genotype.AttachmentPoints(base.Genome)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, genotype.ErrNoAttachmentPoints
	}

	defending := genotype.CloneCreature(base)
	defending.DefendingChampion = true
	defending.ParentName = base.Name
	defending.ResetFitness()

	shuffled := append([]genotype.AttachmentPoint(nil), points...)
	m.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	configurations := m.settings.ConfigurationsPerGeneration
	if configurations > len(shuffled) {
		configurations = len(shuffled)
	}

	pop := []model.Creature{defending}
	discarded := 0
	for i := 0; i < configurations; i++ {
		for v := 0; v < m.settings.VariantsPerConfiguration; v++ {
			c, ok := m.variant(base, shuffled[i], shuffled)
			if !ok {
				discarded++
				continue
			}
			pop = append(pop, c)
		}
	}
	if discarded > 0 {
		m.logger.Debug("variants_discarded", "base", base.Name, "discarded", discarded, "size", len(pop))
	}
	return pop, nil
}

// variant produces one admitted descendant of base starting at first. A
// duplicate is regenerated from a different attachment sample, then by
// mutating its variation genes, and discarded only when both fail.
func (m *Manager) variant(base model.Creature, first genotype.AttachmentPoint, points []genotype.AttachmentPoint) (model.Creature, bool) {
	var last model.Genome
	for attempt := 0; attempt <= resampleRetries; attempt++ {
		start := first
		if attempt > 0 {
			start = points[m.rng.Intn(len(points))]
		}
		genome, ok := m.extend(base.Genome, start, points)
		if !ok {
			continue
		}
		last = genome
		if c, ok := m.realize(genome, base.Name); ok {
			return c, true
		}
	}
	if last.Len() == 0 {
		return model.Creature{}, false
	}
	for attempt := 0; attempt < mutateRetries; attempt++ {
		last = genotype.Mutate(last, m.rng, mutateStep)
		if c, ok := m.realize(last, base.Name); ok {
			return c, true
		}
	}
	return model.Creature{}, false
}

func (m *Manager) extend(parent model.Genome, start genotype.AttachmentPoint, points []genotype.AttachmentPoint) (model.Genome, bool) {
	count := m.settings.BlocksPerGeneration
	if m.settings.RandomizeBlockCount {
		count = m.rng.Between(1, m.settings.BlocksPerGeneration)
	}
	ordered := make([]genotype.AttachmentPoint, 0, len(points)+1)
	ordered = append(ordered, start)
	ordered = append(ordered, points...)
	genome, added, err := genotype.AddBlocks(parent, ordered, count, m.settings.AllowChaining, m.settings.MaxBlocks, m.rng)
	if err != nil || added == 0 {
		return model.Genome{}, false
	}
	return genome, true
}

func (m *Manager) realize(genome model.Genome, parentName string) (model.Creature, bool) {
	c, err := genotype.GrowFromGenome(genome)
	if err != nil {
		if !errors.Is(err, genotype.ErrMalformedGenome) {
			m.logger.Warn("variant_rejected", "error", err)
		}
		return model.Creature{}, false
	}
	if !m.admit(c) {
		return model.Creature{}, false
	}
	c.ParentName = parentName
	return c, true
}
