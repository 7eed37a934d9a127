package evo

import (
	"cubelife/internal/genotype"
	"cubelife/internal/model"
)

type backtrackStep struct {
	found      bool
	generation int
	rank       int
	base       string
}

// backtrack searches history newest first for the best-ranked untried
// creature that is neither a defending clone nor at the block cap. The target
// is restored from the generation backtracked to, so the new line still has to
// beat that generation's champion. When nothing is left the champion regrows
// unchanged and the search reports exhaustion.
func (m *Manager) backtrack() backtrackStep {
	m.counters.Backtracks++
	source := m.branchNodeID

	for hi := len(m.history) - 1; hi >= 0; hi-- {
		entry := &m.history[hi]
		rank, ok := m.candidate(entry)
		if !ok {
			continue
		}
		entry.Tried[rank] = true
		chosen := entry.Ranked[rank]

		pop, err := m.grow(chosen.Creature)
		if err != nil {
			m.logger.Debug("backtrack_candidate_failed", "generation", entry.Generation, "rank", rank, "error", err)
			continue
		}

		m.history = m.history[:hi+1]
		m.target = &Target{
			Metrics: genotype.CloneMetrics(entry.ChampionMetrics),
			Mode:    entry.Mode,
		}
		m.generation = entry.Generation + 1
		if node, ok := m.tree.Node(source); ok && node.Status == StatusChampion {
			_ = m.tree.SetStatus(source, StatusBacktrackSource)
		}
		_ = m.tree.SetStatus(chosen.NodeID, StatusBranchParent)
		m.branchNodeID = chosen.NodeID

		base := genotype.CloneCreature(chosen.Creature)
		m.parent = &base
		m.beginGeneration(pop)

		m.logger.Warn("backtrack",
			"to_generation", entry.Generation,
			"rank", rank,
			"base", base.Name,
			"next_generation", m.generation,
		)
		return backtrackStep{found: true, generation: entry.Generation, rank: rank, base: base.Name}
	}

	m.counters.Exhaustions++
	m.regrowChampion()
	base := ""
	if m.parent != nil {
		base = m.parent.Name
	}
	m.logger.Warn("backtrack_exhausted",
		"generation", m.generation,
		"exhaustions", m.counters.Exhaustions,
		"population", len(m.population),
	)
	return backtrackStep{found: false, base: base}
}

// candidate returns the best-ranked usable untried rank of entry. Skipped
// ranks stay untried.
func (m *Manager) candidate(entry *HistoryEntry) (int, bool) {
	for rank, r := range entry.Ranked {
		if entry.Tried[rank] {
			continue
		}
		if r.Creature.DefendingChampion || m.atCap(r.Creature) {
			continue
		}
		return rank, true
	}
	return 0, false
}

// regrowChampion rebuilds the population from the unchanged champion and
// attaches the next ranking under the champion's node. When the champion
// cannot grow the population is just its defending clone.
func (m *Manager) regrowChampion() {
	if m.champion == nil {
		return
	}
	pop, err := m.grow(*m.champion)
	if err != nil {
		defending := genotype.CloneCreature(*m.champion)
		defending.DefendingChampion = true
		defending.ParentName = m.champion.Name
		pop = []model.Creature{defending}
	}
	parent := genotype.CloneCreature(*m.champion)
	m.parent = &parent
	if m.tree.valid(m.championNodeID) {
		m.branchNodeID = m.championNodeID
	}
	m.beginGeneration(pop)
}
