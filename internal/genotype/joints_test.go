package genotype

import (
	"math"
	"testing"

	"cubelife/internal/model"
	"cubelife/internal/rng"
)

func TestJointProgramsStayInRange(t *testing.T) {
	for seed := uint32(0); seed < 30; seed++ {
		c := mustBuild(t, seed*40503, 12)
		for _, j := range c.Joints {
			if len(j.Program) < minProgramActions || len(j.Program) > maxProgramActions {
				t.Fatalf("program length %d out of range", len(j.Program))
			}
			for _, a := range j.Program {
				if a.Duration < minDuration || a.Duration >= maxDuration {
					t.Fatalf("duration out of range: %f", a.Duration)
				}
				if a.Speed < minSpeed || a.Speed >= maxSpeed {
					t.Fatalf("speed out of range: %f", a.Speed)
				}
				if a.Direction < -1 || a.Direction > 1 {
					t.Fatalf("direction out of range: %d", a.Direction)
				}
			}
			for name, w := range j.Influences {
				if math.Abs(w) <= 0.1 || math.Abs(w) >= 1 {
					t.Fatalf("influence %s weight %f outside (-1,1) minus [-0.1,0.1]", name, w)
				}
			}
		}
	}
}

func TestJointInfluencesFollowPrefixChannels(t *testing.T) {
	genome := model.Genome{Seed: 1, Blocks: []model.BlockGene{
		{BlockID: 0, ParentID: model.NoParent, SpecialCode: 194},
		{BlockID: 1, ParentID: 0, Face: model.FacePosX, SpecialCode: 10},
		{BlockID: 2, ParentID: 1, Face: model.FacePosX, SpecialCode: 192},
	}}
	c, err := GrowFromGenome(genome)
	if err != nil {
		t.Fatalf("grow: %v", err)
	}
	if c.Blocks[0].Influence != model.InfluenceHeight {
		t.Fatalf("expected root to feed height, got=%s", c.Blocks[0].Influence)
	}
	first := c.Joints[0].Influences
	if len(first) != 1 {
		t.Fatalf("expected only height on joint 1, got=%v", first)
	}
	if _, ok := first["height"]; !ok {
		t.Fatalf("expected height weight on joint 1, got=%v", first)
	}
	second := c.Joints[1].Influences
	if len(second) != 2 {
		t.Fatalf("expected height and light on joint 2, got=%v", second)
	}
	if _, ok := second["light"]; !ok {
		t.Fatalf("expected light weight on joint 2, got=%v", second)
	}
}

func TestJointsArePrefixStableAcrossGrowth(t *testing.T) {
	parent := mustBuild(t, 2024, 5)
	points, err := AttachmentPoints(parent.Genome)
	if err != nil {
		t.Fatalf("attachment points: %v", err)
	}
	extended, added, err := AddBlocks(parent.Genome, points, 3, true, 0, rng.New(77))
	if err != nil || added == 0 {
		t.Fatalf("add blocks: added=%d err=%v", added, err)
	}
	child, err := GrowFromGenome(extended)
	if err != nil {
		t.Fatalf("grow child: %v", err)
	}
	for i := range parent.Joints {
		if !ProgramEqual(parent.Joints[i], child.Joints[i]) {
			t.Fatalf("joint %d changed when the body grew", i)
		}
	}
	if child.Name == parent.Name {
		t.Fatal("expected the newest block to rename the child")
	}
}

func TestEffectTableCoversEveryChannel(t *testing.T) {
	for _, ch := range model.InfluenceChannels {
		if _, ok := EffectOf(ch); !ok {
			t.Fatalf("channel %s has no effect", ch)
		}
	}
	if _, ok := EffectOf(model.InfluenceNone); ok {
		t.Fatal("none must not have an effect")
	}
}

func TestModulateAppliesEffects(t *testing.T) {
	joint := model.Joint{Influences: map[string]float64{
		"light":   0.5,
		"contact": -0.8,
		"rhythm":  -0.5,
	}}
	action := model.Action{Duration: 1, Speed: 2, Direction: 1}
	readings := map[model.InfluenceChannel]float64{
		model.InfluenceLight:   1,
		model.InfluenceContact: 1,
		model.InfluenceRhythm:  1,
	}
	got := Modulate(joint, action, readings)
	if got.Speed != 3 {
		t.Fatalf("expected light to scale speed to 3, got=%f", got.Speed)
	}
	if got.Direction != -1 {
		t.Fatalf("expected contact to reverse direction, got=%d", got.Direction)
	}
	if got.Duration != 0.5 {
		t.Fatalf("expected rhythm to halve duration, got=%f", got.Duration)
	}

	idle := Modulate(joint, action, nil)
	if idle != action {
		t.Fatalf("expected no change without readings, got=%+v", idle)
	}
}
