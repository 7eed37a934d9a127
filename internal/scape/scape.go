package scape

import (
	"context"

	"cubelife/internal/model"
)

type Trace map[string]any

// Simulator embodies a creature and reports its raw performance. It must
// not modify the genome.
type Simulator interface {
	Name() string
	Simulate(ctx context.Context, c model.Creature) (model.Metrics, Trace, error)
}

// SimulatorFunc adapts a function to Simulator.
type SimulatorFunc func(ctx context.Context, c model.Creature) (model.Metrics, error)

func (f SimulatorFunc) Name() string {
	return "func"
}

func (f SimulatorFunc) Simulate(ctx context.Context, c model.Creature) (model.Metrics, Trace, error) {
	m, err := f(ctx, c)
	return m, nil, err
}
