package genotype

import (
	"sort"

	"cubelife/internal/model"
	"cubelife/internal/rng"
)

// Effect is what a sensor reading changes about the running action.
type Effect string

const (
	EffectSpeed        Effect = "speed"
	EffectDirection    Effect = "direction"
	EffectActionWeight Effect = "action_weight"
)

var influenceEffects = map[model.InfluenceChannel]Effect{
	model.InfluenceLight:     EffectSpeed,
	model.InfluenceContact:   EffectDirection,
	model.InfluenceHeight:    EffectActionWeight,
	model.InfluenceVelocity:  EffectSpeed,
	model.InfluenceProximity: EffectDirection,
	model.InfluenceRhythm:    EffectActionWeight,
}

// EffectOf looks up the effect type of a channel.
func EffectOf(ch model.InfluenceChannel) (Effect, bool) {
	effect, ok := influenceEffects[ch]
	return effect, ok
}

const (
	minProgramActions = 2
	maxProgramActions = 5
	minDuration       = 0.4
	maxDuration       = 2.4
	minSpeed          = 0.5
	maxSpeed          = 3.0
	minInfluence      = 0.1
	minModDuration    = 0.05
	reverseThreshold  = 0.5
)

// BuildJoint derives the joint of block index from the genome. Everything
// random comes from subseed, the block's DeriveSubseed value, and the set of
// influence channels is taken from blocks 0..index only.
func BuildJoint(g model.Genome, index int, subseed uint32) model.Joint {
	gene := g.Blocks[index]
	r := rng.New(subseed)

	program := make([]model.Action, r.Between(minProgramActions, maxProgramActions))
	for i := range program {
		program[i] = model.Action{
			Duration:  r.Range(minDuration, maxDuration),
			Speed:     r.Range(minSpeed, maxSpeed),
			Direction: r.Sign(),
		}
	}

	influences := make(map[string]float64)
	for _, ch := range prefixChannels(g, index) {
		influences[ch.String()] = influenceWeight(r)
	}

	return model.Joint{
		BlockID:    index,
		ParentID:   gene.ParentID,
		Axis:       gene.Face.Axis(),
		Program:    program,
		Influences: influences,
	}
}

// prefixChannels lists, in enum order, the channels of blocks 0..index.
func prefixChannels(g model.Genome, index int) []model.InfluenceChannel {
	present := make(map[model.InfluenceChannel]bool)
	for _, gene := range g.Blocks[:index+1] {
		if ch := model.InfluenceForCode(gene.SpecialCode); ch != model.InfluenceNone {
			present[ch] = true
		}
	}
	out := make([]model.InfluenceChannel, 0, len(present))
	for _, ch := range model.InfluenceChannels {
		if present[ch] {
			out = append(out, ch)
		}
	}
	return out
}

// influenceWeight returns a value in (-1, -0.1) ∪ (0.1, 1).
func influenceWeight(r *rng.LCG) float64 {
	magnitude := minInfluence + (1-minInfluence)*r.OpenFloat64()
	if r.Intn(2) == 0 {
		return -magnitude
	}
	return magnitude
}

// Modulate applies the joint's influence weights to one action given sensor
// readings in [0, 1]. Channels are applied in name order so the result does
// not depend on map iteration.
func Modulate(j model.Joint, action model.Action, readings map[model.InfluenceChannel]float64) model.Action {
	names := make([]string, 0, len(j.Influences))
	for name := range j.Influences {
		names = append(names, name)
	}
	sort.Strings(names)

	out := action
	for _, name := range names {
		ch, err := model.ParseInfluenceChannel(name)
		if err != nil {
			continue
		}
		effect, ok := EffectOf(ch)
		if !ok {
			continue
		}
		signal := j.Influences[name] * readings[ch]
		switch effect {
		case EffectSpeed:
			out.Speed *= 1 + signal
			if out.Speed < 0 {
				out.Speed = 0
			}
		case EffectDirection:
			if signal < -reverseThreshold {
				out.Direction = -out.Direction
			}
		case EffectActionWeight:
			out.Duration *= 1 + signal
			if out.Duration < minModDuration {
				out.Duration = minModDuration
			}
		}
	}
	return out
}

// ProgramEqual reports whether two joints run identical programs with
// identical influence weights.
func ProgramEqual(a, b model.Joint) bool {
	if a.BlockID != b.BlockID || a.ParentID != b.ParentID || a.Axis != b.Axis {
		return false
	}
	if len(a.Program) != len(b.Program) || len(a.Influences) != len(b.Influences) {
		return false
	}
	for i := range a.Program {
		if a.Program[i] != b.Program[i] {
			return false
		}
	}
	for name, w := range a.Influences {
		if other, ok := b.Influences[name]; !ok || other != w {
			return false
		}
	}
	return true
}
