package evo

import (
	"fmt"

	"cubelife/internal/genotype"
	"cubelife/internal/model"
)

// Ancestry returns the tree nodes from the root of node id's line down to
// the node itself.
func (m *Manager) Ancestry(id int) ([]TreeNode, error) {
	chain, err := m.tree.Ancestors(id)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Lineage returns the creatures of Ancestry(id), ready for replay.
func (m *Manager) Lineage(id int) ([]model.Creature, error) {
	chain, err := m.Ancestry(id)
	if err != nil {
		return nil, err
	}
	out := make([]model.Creature, len(chain))
	for i, node := range chain {
		out[i] = node.Creature
	}
	return out, nil
}

// Reroot restarts live evolution from a historical node: it becomes the
// champion, its metrics the target, and the next generation is its own + 1.
func (m *Manager) Reroot(id int) error {
	if len(m.pending) > 0 {
		return ErrTournamentPending
	}
	node, ok := m.tree.Node(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	if err := m.restart(node, node.Metrics); err != nil {
		return err
	}
	m.logger.Info("rerooted", "node", id, "champion", node.Creature.Name, "generation", m.generation)
	return nil
}

// restart makes node the live champion with the given target metrics and
// regrows from it.
func (m *Manager) restart(node TreeNode, target model.Metrics) error {
	champion := genotype.CloneCreature(node.Creature)
	champion.DefendingChampion = false
	pop, err := m.grow(champion)
	if err != nil {
		return fmt.Errorf("regrow from node %d: %w", node.ID, err)
	}

	m.champion = &champion
	parent := genotype.CloneCreature(champion)
	m.parent = &parent
	m.target = &Target{Metrics: genotype.CloneMetrics(target), Mode: node.Mode}
	m.truncateHistory(node.Generation)
	m.generation = node.Generation + 1
	m.branchNodeID = node.ID
	m.championNodeID = node.ID
	if node.Status == StatusCompetitor || node.Status == StatusEliminated {
		_ = m.tree.SetStatus(node.ID, StatusBranchParent)
	}
	m.beginGeneration(pop)
	return nil
}

func (m *Manager) truncateHistory(generation int) {
	keep := 0
	for keep < len(m.history) && m.history[keep].Generation <= generation {
		keep++
	}
	m.history = m.history[:keep]
}
