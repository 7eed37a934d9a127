package evo

import (
	"fmt"
	"sort"

	"cubelife/internal/fitness"
	"cubelife/internal/genotype"
	"cubelife/internal/model"
)

// TournamentResult reports the winner of a tournament.
type TournamentResult struct {
	Winner         string
	NodeID         int
	Fitness        float64
	Mode           fitness.Mode
	Scores         []float64
	NodeIDs        []int
	NextGeneration int
}

// TournamentCandidates returns up to n historical line leaders, newest
// generation first, then by fitness.
func (m *Manager) TournamentCandidates(n int) []TreeNode {
	nodes := m.tree.Champions()
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Generation != nodes[j].Generation {
			return nodes[i].Generation > nodes[j].Generation
		}
		return nodes[i].Fitness > nodes[j].Fitness
	})
	if n > 0 && len(nodes) > n {
		nodes = nodes[:n]
	}
	return nodes
}

// StartTournament replaces the population with up to n historical champions
// for a re-evaluation under the active mode. The returned clones are in the
// order FinishTournament expects metrics.
func (m *Manager) StartTournament(n int) ([]model.Creature, error) {
	if len(m.pending) > 0 {
		return nil, ErrTournamentPending
	}
	candidates := m.TournamentCandidates(n)
	if len(candidates) == 0 {
		return nil, ErrNoTournamentCandidates
	}
	pop := make([]model.Creature, len(candidates))
	ids := make([]int, len(candidates))
	for i, node := range candidates {
		c := genotype.CloneCreature(node.Creature)
		c.DefendingChampion = false
		c.ResetFitness()
		pop[i] = c
		ids[i] = node.ID
	}
	m.population = pop
	m.pending = ids
	m.logger.Info("tournament_started", "entrants", len(ids), "mode", string(m.activeMode))
	return genotype.ClonePopulation(pop), nil
}

// FinishTournament scores the entrants and crowns the best one.
func (m *Manager) FinishTournament(metrics []model.Metrics) (TournamentResult, error) {
	if len(m.pending) == 0 {
		return TournamentResult{}, ErrNoTournamentPending
	}
	if len(metrics) != len(m.pending) {
		return TournamentResult{}, fmt.Errorf("%w: got=%d want=%d", ErrMetricsMismatch, len(metrics), len(m.pending))
	}
	recorded := make([]model.Metrics, len(metrics))
	for i := range m.population {
		m.population[i].ResetFitness()
		m.population[i].Record(metrics[i])
		recorded[i] = m.population[i].Metrics
	}
	mode := m.activeMode
	scores, err := fitness.ScorePopulation(mode, recorded)
	if err != nil {
		return TournamentResult{}, err
	}
	best := 0
	for i := range scores {
		if scores[i] > scores[best] {
			best = i
		}
	}

	node, ok := m.tree.Node(m.pending[best])
	if !ok {
		return TournamentResult{}, fmt.Errorf("%w: %d", ErrUnknownNode, m.pending[best])
	}
	node.Creature = genotype.CloneCreature(m.population[best])
	node.Creature.Fitness = scores[best]
	node.Mode = mode
	ids := append([]int(nil), m.pending...)
	m.pending = nil
	if err := m.restart(node, recorded[best]); err != nil {
		m.regrowChampion()
		return TournamentResult{}, err
	}
	m.updateAllTime(mode)

	result := TournamentResult{
		Winner:         node.Creature.Name,
		NodeID:         node.ID,
		Fitness:        scores[best],
		Mode:           mode,
		Scores:         scores,
		NodeIDs:        ids,
		NextGeneration: m.generation,
	}
	m.logger.Info("tournament_finished", "winner", result.Winner, "node", result.NodeID, "fitness", result.Fitness)
	return result, nil
}

// TournamentPending reports whether entrants await FinishTournament.
func (m *Manager) TournamentPending() bool {
	return len(m.pending) > 0
}
