package scape

import (
	"context"
	"fmt"
	"math"

	"cubelife/internal/genotype"
	"cubelife/internal/model"
)

const (
	defaultDuration = 20.0
	defaultStep     = 0.05
	defaultTileSize = 2.0
	gravity         = 9.8
	traction        = 0.5
	liftFactor      = 0.3
	cancelCheck     = 64
)

// KinematicScape is a deterministic stand-in for a physics engine. Every
// joint follows its cyclic program, modulated by sensor readings, and the
// tangential velocity of blocks touching the ground moves the body. It is
// not a physical model; it only gives evolution a reproducible signal.
type KinematicScape struct {
	Duration float64
	Step     float64
	TileSize float64
}

func (KinematicScape) Name() string {
	return "kinematic"
}

func (s KinematicScape) withDefaults() KinematicScape {
	if s.Duration <= 0 {
		s.Duration = defaultDuration
	}
	if s.Step <= 0 {
		s.Step = defaultStep
	}
	if s.TileSize <= 0 {
		s.TileSize = defaultTileSize
	}
	return s
}

type jointState struct {
	joint   model.Joint
	lever   model.Vec3
	action  int
	elapsed float64
	angle   float64
}

func axisVector(a model.Axis) model.Vec3 {
	switch a {
	case model.AxisX:
		return model.Vec3{X: 1}
	case model.AxisY:
		return model.Vec3{Y: 1}
	default:
		return model.Vec3{Z: 1}
	}
}

func cross(a, b model.Vec3) model.Vec3 {
	return model.Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func (s KinematicScape) Simulate(ctx context.Context, c model.Creature) (model.Metrics, Trace, error) {
	s = s.withDefaults()
	if len(c.Blocks) == 0 {
		return model.Metrics{}, nil, fmt.Errorf("creature %s has no blocks", c.Name)
	}

	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, b := range c.Blocks {
		minY = math.Min(minY, b.Position.Y)
		maxY = math.Max(maxY, b.Position.Y)
	}
	bodyHeight := maxY - minY + model.UnitSize

	joints := make([]jointState, 0, len(c.Joints))
	for _, j := range c.Joints {
		if len(j.Program) == 0 || j.BlockID < 0 || j.BlockID >= len(c.Blocks) {
			continue
		}
		joints = append(joints, jointState{joint: j, lever: c.Blocks[j.BlockID].Position})
	}

	var (
		x, y, z    float64
		vy         float64
		metrics    model.Metrics
		speed      float64
		steps      = int(math.Ceil(s.Duration / s.Step))
		lastTile   = ""
		tileVisits = 0
		seen       = make(map[string]bool)
	)
	record := func() {
		tile := fmt.Sprintf("%d:%d", int(math.Floor(x/s.TileSize)), int(math.Floor(z/s.TileSize)))
		if tile == lastTile {
			return
		}
		lastTile = tile
		tileVisits++
		if !seen[tile] {
			seen[tile] = true
			metrics.VisitedTiles = append(metrics.VisitedTiles, tile)
		}
	}
	record()

	for step := 0; step < steps; step++ {
		if step%cancelCheck == 0 {
			if err := ctx.Err(); err != nil {
				return model.Metrics{}, nil, err
			}
		}
		t := float64(step) * s.Step
		grounded := y <= 0
		readings := map[model.InfluenceChannel]float64{
			model.InfluenceLight:     0.5 + 0.5*math.Sin(t*0.5),
			model.InfluenceContact:   boolReading(grounded),
			model.InfluenceHeight:    clamp01(y / bodyHeight),
			model.InfluenceVelocity:  clamp01(speed / 3),
			model.InfluenceProximity: clamp01(1 / (1 + math.Hypot(x, z))),
			model.InfluenceRhythm:    t - math.Floor(t),
		}

		var push model.Vec3
		lift := 0.0
		contacts := 0
		for i := range joints {
			js := &joints[i]
			action := genotype.Modulate(js.joint, js.joint.Program[js.action], readings)
			omega := float64(action.Direction) * action.Speed
			js.angle += omega * s.Step
			js.elapsed += s.Step
			if js.elapsed >= action.Duration {
				js.elapsed = 0
				js.action = (js.action + 1) % len(js.joint.Program)
			}

			tangential := cross(axisVector(js.joint.Axis).Scale(omega), js.lever)
			if js.lever.Y <= minY {
				push = push.Add(model.Vec3{X: tangential.X, Z: tangential.Z})
				contacts++
			}
			if tangential.Y > 0 {
				lift += tangential.Y
			}
		}

		if grounded && contacts > 0 {
			push = push.Scale(traction / float64(len(c.Blocks)))
			x += push.X * s.Step
			z += push.Z * s.Step
			speed = math.Hypot(push.X, push.Z)
			vy += liftFactor * lift / float64(len(c.Blocks))
		} else {
			speed *= 0.98
		}
		vy -= gravity * s.Step
		y += vy * s.Step
		if y < 0 {
			y = 0
			vy = 0
		}

		metrics.Distance = math.Max(metrics.Distance, math.Hypot(x, z))
		metrics.JumpHeight = math.Max(metrics.JumpHeight, y)
		metrics.Height = math.Max(metrics.Height, y+bodyHeight)
		record()
	}

	trace := Trace{
		"steps":       steps,
		"final_x":     x,
		"final_z":     z,
		"tile_visits": tileVisits,
	}
	return metrics, trace, nil
}

func boolReading(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
