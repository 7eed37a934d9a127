// Package fitness turns raw simulator metrics into a scalar score. Every
// caller that displays or compares fitness goes through ScorePopulation so
// the formulas exist in exactly one place.
package fitness

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"cubelife/internal/model"
)

type Mode string

const (
	ModeDistance   Mode = "distance"
	ModeEfficiency Mode = "efficiency"
	ModeJump       Mode = "jump"
	ModeArea       Mode = "area"
	ModeSpartan    Mode = "spartan"
	ModeOutcast    Mode = "outcast"
	// ModeRandom is a configuration value only; Picker resolves it to a
	// concrete mode each generation.
	ModeRandom Mode = "random"
)

// ConcreteModes lists the scoreable modes in a stable order.
var ConcreteModes = []Mode{
	ModeDistance,
	ModeEfficiency,
	ModeJump,
	ModeArea,
	ModeOutcast,
	ModeSpartan,
}

// OutcastEpsilon floors each population maximum before normalizing.
const OutcastEpsilon = 1e-9

func ParseMode(name string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(name)))
	if mode == ModeRandom {
		return mode, nil
	}
	for _, m := range ConcreteModes {
		if m == mode {
			return mode, nil
		}
	}
	return "", fmt.Errorf("unknown fitness mode: %s", name)
}

// PopulationRelative reports whether a mode needs the whole population.
func (m Mode) PopulationRelative() bool {
	return m == ModeOutcast
}

// HasTarget reports whether progress under m is judged against the previous
// champion.
func (m Mode) HasTarget() bool {
	return m != ModeOutcast
}

// Score evaluates one of the pure modes.
func Score(mode Mode, m model.Metrics) (float64, error) {
	d := m.Distance
	h := m.Height
	j := m.JumpHeight
	tiles := float64(m.TileCount())

	switch mode {
	case ModeDistance:
		return 2*d + 0.5*h, nil
	case ModeEfficiency:
		if tiles <= 0 {
			return 0, nil
		}
		return (d/tiles)*100 + 0.2*h, nil
	case ModeJump:
		return 10*j + 0.1*d, nil
	case ModeArea:
		return tiles + 0.05*d, nil
	case ModeSpartan:
		return d + 2*h + 0.2*tiles + 3*j, nil
	case ModeOutcast:
		return 0, fmt.Errorf("%s fitness needs the population", mode)
	default:
		return 0, fmt.Errorf("unknown fitness mode: %s", mode)
	}
}

// ScorePopulation scores every metrics entry under mode, in input order.
func ScorePopulation(mode Mode, metrics []model.Metrics) ([]float64, error) {
	if mode == ModeOutcast {
		return outcast(metrics), nil
	}
	out := make([]float64, len(metrics))
	for i, m := range metrics {
		score, err := Score(mode, m)
		if err != nil {
			return nil, err
		}
		out[i] = score
	}
	return out, nil
}

// outcast scores each creature by how far its normalized metrics sit from the
// population means.
func outcast(metrics []model.Metrics) []float64 {
	out := make([]float64, len(metrics))
	if len(metrics) == 0 {
		return out
	}
	columns := make([][]float64, 4)
	for c := range columns {
		columns[c] = make([]float64, len(metrics))
	}
	for i, m := range metrics {
		columns[0][i] = m.Distance
		columns[1][i] = m.Height
		columns[2][i] = float64(m.TileCount())
		columns[3][i] = m.JumpHeight
	}

	for _, col := range columns {
		max := math.Max(floats.Max(col), OutcastEpsilon)
		floats.Scale(1/max, col)
		mean := stat.Mean(col, nil)
		for i, v := range col {
			out[i] += math.Abs(v - mean)
		}
	}
	floats.Scale(100, out)
	return out
}
