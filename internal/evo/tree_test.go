package evo

import (
	"errors"
	"testing"

	"cubelife/internal/fitness"
	"cubelife/internal/genotype"
	"cubelife/internal/model"
)

func TestTreeAncestorsAndChampions(t *testing.T) {
	tree := NewTree()
	c, _ := genotype.BuildFromSeed(1, 2)
	root := tree.Add(1, model.NoParent, c, 10, fitness.ModeDistance, StatusChampion)
	other := tree.Add(1, model.NoParent, c, 5, fitness.ModeDistance, StatusCompetitor)
	child := tree.Add(2, root, c, 12, fitness.ModeDistance, StatusChampion)
	leaf := tree.Add(3, child, c, 11, fitness.ModeDistance, StatusDeadEnd)

	chain, err := tree.Ancestors(leaf)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(chain) != 3 || chain[0].ID != leaf || chain[1].ID != child || chain[2].ID != root {
		t.Fatalf("unexpected chain: %+v", chain)
	}
	if node, _ := tree.Node(root); len(node.Children) != 1 || node.Children[0] != child {
		t.Fatalf("unexpected children: %v", node.Children)
	}
	if roots := tree.Roots(); len(roots) != 2 || roots[1] != other {
		t.Fatalf("unexpected roots: %v", roots)
	}

	champions := tree.Champions()
	if len(champions) != 2 {
		t.Fatalf("expected 2 champions, got=%d", len(champions))
	}
	if err := tree.SetStatus(child, StatusBacktrackSource); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if len(tree.Champions()) != 2 {
		t.Fatal("backtrack sources remain line leaders")
	}
	if _, err := tree.Ancestors(99); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got=%v", err)
	}
	if err := tree.SetStatus(-1, StatusComplete); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got=%v", err)
	}
}

func TestTreeNodesAreCopies(t *testing.T) {
	tree := NewTree()
	c, _ := genotype.BuildFromSeed(2, 3)
	id := tree.Add(1, model.NoParent, c, 1, fitness.ModeJump, StatusChampion)
	node, _ := tree.Node(id)
	node.Creature.Genome.Blocks[0].Variation++
	node.Children = append(node.Children, 42)

	again, _ := tree.Node(id)
	if again.Creature.Genome.Blocks[0].Variation != c.Genome.Blocks[0].Variation || len(again.Children) != 0 {
		t.Fatal("tree node shared with caller")
	}
	if again.SpeciesID != genotype.SpeciesID(c.Genome) || again.Fingerprint != genotype.BehavioralFingerprint(c.Genome) {
		t.Fatal("expected fingerprints recorded on the node")
	}
}

func TestLineageAndReroot(t *testing.T) {
	m := newTestManager(t, smallSettings())
	pop := m.Population()
	mustEvaluate(t, m, distanceScores(len(pop), func(i int) float64 { return float64(10 - i) }))
	pop = m.Population()
	mustEvaluate(t, m, distanceScores(len(pop), func(i int) float64 {
		if i == 1 {
			return 20
		}
		return 1
	}))

	branch := m.BranchNodeID()
	lineage, err := m.Lineage(branch)
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if len(lineage) != 2 {
		t.Fatalf("expected two-step lineage, got=%d", len(lineage))
	}
	if lineage[1].ParentName != lineage[0].Name {
		t.Fatalf("lineage out of order: %s -> %s", lineage[0].Name, lineage[1].ParentName)
	}
	ancestry, err := m.Ancestry(branch)
	if err != nil {
		t.Fatalf("ancestry: %v", err)
	}
	if len(ancestry) != 2 || ancestry[0].ParentID != model.NoParent || ancestry[1].ID != branch || ancestry[1].ParentID != ancestry[0].ID {
		t.Fatalf("unexpected ancestry: %+v", ancestry)
	}
	if _, err := m.Ancestry(99); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got=%v", err)
	}

	// re-root at the runner-up of generation 1
	if err := m.Reroot(1); err != nil {
		t.Fatalf("reroot: %v", err)
	}
	node, _ := m.Node(1)
	if m.Generation() != 2 || m.BranchNodeID() != 1 {
		t.Fatalf("unexpected state after reroot: generation=%d branch=%d", m.Generation(), m.BranchNodeID())
	}
	champion, _ := m.Champion()
	if champion.Name != node.Creature.Name {
		t.Fatalf("expected %s as champion, got=%s", node.Creature.Name, champion.Name)
	}
	if target, _ := m.Target(); target.Metrics.Distance != node.Metrics.Distance {
		t.Fatalf("expected target from node metrics, got=%+v", target)
	}
	if len(m.History()) != 1 {
		t.Fatalf("expected history truncated to generation 1, got=%d", len(m.History()))
	}
	if node.Status != StatusBranchParent {
		t.Fatalf("expected re-rooted competitor marked branch parent, got=%s", node.Status)
	}
	if err := m.Reroot(999); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got=%v", err)
	}
}

func TestTournamentCrownsBestHistoricalChampion(t *testing.T) {
	m := newTestManager(t, smallSettings())
	for gen := 1; gen <= 3; gen++ {
		pop := m.Population()
		score := float64(gen * 10)
		mustEvaluate(t, m, distanceScores(len(pop), func(i int) float64 {
			if i == len(pop)-1 {
				return score
			}
			return 0
		}))
	}

	entrants, err := m.StartTournament(2)
	if err != nil {
		t.Fatalf("start tournament: %v", err)
	}
	if len(entrants) != 2 {
		t.Fatalf("expected 2 entrants, got=%d", len(entrants))
	}
	candidates := m.TournamentCandidates(2)
	if candidates[0].Generation != 3 || candidates[1].Generation != 2 {
		t.Fatalf("expected newest champions first, got gens %d,%d", candidates[0].Generation, candidates[1].Generation)
	}
	if _, err := m.Evaluate(distanceScores(2, func(int) float64 { return 1 })); !errors.Is(err, ErrTournamentPending) {
		t.Fatalf("expected ErrTournamentPending, got=%v", err)
	}

	result, err := m.FinishTournament(distanceScores(2, func(i int) float64 { return float64(10 * (i + 1)) }))
	if err != nil {
		t.Fatalf("finish tournament: %v", err)
	}
	if result.Winner != entrants[1].Name || result.NodeID != candidates[1].ID {
		t.Fatalf("expected %s to win, got=%s", entrants[1].Name, result.Winner)
	}
	if m.Generation() != candidates[1].Generation+1 || result.NextGeneration != m.Generation() {
		t.Fatalf("expected generation %d, got=%d", candidates[1].Generation+1, m.Generation())
	}
	if target, _ := m.Target(); target.Metrics.Distance != 10 {
		t.Fatalf("expected target from tournament metrics, got=%+v", target)
	}
	if m.TournamentPending() {
		t.Fatal("tournament must be cleared")
	}
	if _, err := m.FinishTournament(nil); !errors.Is(err, ErrNoTournamentPending) {
		t.Fatalf("expected ErrNoTournamentPending, got=%v", err)
	}
}

func TestTournamentWithoutChampions(t *testing.T) {
	m := newTestManager(t, smallSettings())
	if _, err := m.StartTournament(3); !errors.Is(err, ErrNoTournamentCandidates) {
		t.Fatalf("expected ErrNoTournamentCandidates, got=%v", err)
	}
}
