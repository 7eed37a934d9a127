package evo

import (
	"fmt"

	"cubelife/internal/fitness"
	"cubelife/internal/genotype"
	"cubelife/internal/model"
)

type NodeStatus string

const (
	StatusChampion        NodeStatus = "champion"
	StatusCompetitor      NodeStatus = "competitor"
	StatusDeadEnd         NodeStatus = "dead_end"
	StatusEliminated      NodeStatus = "eliminated"
	StatusBacktrackSource NodeStatus = "backtrack_source"
	StatusBranchParent    NodeStatus = "branch_parent"
	StatusComplete        NodeStatus = "complete"
)

func parseNodeStatus(s string) (NodeStatus, error) {
	switch NodeStatus(s) {
	case StatusChampion, StatusCompetitor, StatusDeadEnd, StatusEliminated,
		StatusBacktrackSource, StatusBranchParent, StatusComplete:
		return NodeStatus(s), nil
	default:
		return "", fmt.Errorf("unknown node status: %s", s)
	}
}

// TreeNode is one ranked creature in the evolution tree.
type TreeNode struct {
	ID          int
	Generation  int
	Fitness     float64
	Metrics     model.Metrics
	Mode        fitness.Mode
	ParentID    int
	Status      NodeStatus
	Children    []int
	SpeciesID   string
	Fingerprint string
	Creature    model.Creature
}

func cloneNode(n TreeNode) TreeNode {
	out := n
	out.Metrics = genotype.CloneMetrics(n.Metrics)
	out.Children = append([]int(nil), n.Children...)
	out.Creature = genotype.CloneCreature(n.Creature)
	return out
}

// Tree is an append-only arena of every creature ever ranked. Parent and
// children are node ids; roots have ParentID model.NoParent.
type Tree struct {
	nodes []TreeNode
}

func NewTree() *Tree {
	return &Tree{}
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

// Add appends a node under parentID and returns its id.
func (t *Tree) Add(generation, parentID int, c model.Creature, score float64, mode fitness.Mode, status NodeStatus) int {
	id := len(t.nodes)
	if parentID != model.NoParent && !t.valid(parentID) {
		parentID = model.NoParent
	}
	t.nodes = append(t.nodes, TreeNode{
		ID:          id,
		Generation:  generation,
		Fitness:     score,
		Metrics:     genotype.CloneMetrics(c.Metrics),
		Mode:        mode,
		ParentID:    parentID,
		Status:      status,
		SpeciesID:   genotype.SpeciesID(c.Genome),
		Fingerprint: genotype.BehavioralFingerprint(c.Genome),
		Creature:    genotype.CloneCreature(c),
	})
	if parentID != model.NoParent {
		t.nodes[parentID].Children = append(t.nodes[parentID].Children, id)
	}
	return id
}

func (t *Tree) valid(id int) bool {
	return id >= 0 && id < len(t.nodes)
}

// Node returns a copy of node id.
func (t *Tree) Node(id int) (TreeNode, bool) {
	if !t.valid(id) {
		return TreeNode{}, false
	}
	return cloneNode(t.nodes[id]), true
}

func (t *Tree) SetStatus(id int, status NodeStatus) error {
	if !t.valid(id) {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	t.nodes[id].Status = status
	return nil
}

// Ancestors returns the chain from id back to its root, id first.
func (t *Tree) Ancestors(id int) ([]TreeNode, error) {
	if !t.valid(id) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	chain := make([]TreeNode, 0, 8)
	for cur := id; cur != model.NoParent; cur = t.nodes[cur].ParentID {
		chain = append(chain, cloneNode(t.nodes[cur]))
		if len(chain) > len(t.nodes) {
			return nil, fmt.Errorf("cycle in evolution tree at node %d", cur)
		}
	}
	return chain, nil
}

// Champions returns every node that ever led a line: crowned champions,
// backtrack sources and completed lines.
func (t *Tree) Champions() []TreeNode {
	out := make([]TreeNode, 0)
	for _, n := range t.nodes {
		switch n.Status {
		case StatusChampion, StatusBacktrackSource, StatusComplete:
			out = append(out, cloneNode(n))
		}
	}
	return out
}

func (t *Tree) Nodes() []TreeNode {
	out := make([]TreeNode, len(t.nodes))
	for i, n := range t.nodes {
		out[i] = cloneNode(n)
	}
	return out
}

// Roots returns the ids of nodes without a parent.
func (t *Tree) Roots() []int {
	out := make([]int, 0)
	for _, n := range t.nodes {
		if n.ParentID == model.NoParent {
			out = append(out, n.ID)
		}
	}
	return out
}
