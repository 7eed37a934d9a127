package genotype

import "cubelife/internal/model"

func CloneGenome(g model.Genome) model.Genome {
	out := g
	out.Blocks = append([]model.BlockGene(nil), g.Blocks...)
	return out
}

func CloneJoint(j model.Joint) model.Joint {
	out := j
	out.Program = append([]model.Action(nil), j.Program...)
	if j.Influences != nil {
		out.Influences = make(map[string]float64, len(j.Influences))
		for k, v := range j.Influences {
			out.Influences[k] = v
		}
	}
	return out
}

func CloneMetrics(m model.Metrics) model.Metrics {
	out := m
	out.VisitedTiles = append([]string(nil), m.VisitedTiles...)
	return out
}

// CloneCreature returns a fully independent copy. Population slots, tree
// nodes and the simulator each hold their own clone.
func CloneCreature(c model.Creature) model.Creature {
	out := c
	out.Genome = CloneGenome(c.Genome)
	out.Blocks = append([]model.Block(nil), c.Blocks...)
	if c.Joints != nil {
		out.Joints = make([]model.Joint, len(c.Joints))
		for i, j := range c.Joints {
			out.Joints[i] = CloneJoint(j)
		}
	}
	out.Metrics = CloneMetrics(c.Metrics)
	return out
}

func ClonePopulation(pop []model.Creature) []model.Creature {
	out := make([]model.Creature, len(pop))
	for i, c := range pop {
		out[i] = CloneCreature(c)
	}
	return out
}
