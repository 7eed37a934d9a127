// Package rng provides the seeded linear-congruential generator every
// procedural decision routes through. Identical seeds always replay the same
// stream, on every platform.
package rng

const (
	multiplier = 1664525
	increment  = 1013904223
	span       = 1 << 32
)

// LCG is a 32-bit linear-congruential generator. The zero value is a valid
// generator seeded with 0. It is not safe for concurrent use.
type LCG struct {
	state uint32
}

func New(seed uint32) *LCG {
	return &LCG{state: seed}
}

// State returns the current internal state so a stream can be resumed with New.
func (g *LCG) State() uint32 {
	return g.state
}

func (g *LCG) Uint32() uint32 {
	g.state = g.state*multiplier + increment
	return g.state
}

// Float64 returns a value in [0, 1).
func (g *LCG) Float64() float64 {
	return float64(g.Uint32()) / span
}

// OpenFloat64 returns a value in the open interval (0, 1).
func (g *LCG) OpenFloat64() float64 {
	return (float64(g.Uint32()) + 1) / (span + 1)
}

// Intn returns a value in [0, n). It panics if n <= 0.
func (g *LCG) Intn(n int) int {
	if n <= 0 {
		panic("rng: invalid argument to Intn")
	}
	return int(g.Float64() * float64(n))
}

// Between returns an int in [lo, hi]. Bounds are swapped when reversed.
func (g *LCG) Between(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + g.Intn(hi-lo+1)
}

// Range returns a float in [lo, hi).
func (g *LCG) Range(lo, hi float64) float64 {
	return lo + g.Float64()*(hi-lo)
}

// Byte returns a value in [0, 255].
func (g *LCG) Byte() uint8 {
	return uint8(g.Intn(256))
}

// Sign returns -1, 0 or 1 with equal probability.
func (g *LCG) Sign() int {
	return g.Intn(3) - 1
}

// Shuffle pseudo-randomizes the order of n elements (Fisher-Yates).
func (g *LCG) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, g.Intn(i+1))
	}
}

// Ensure returns g, or a generator seeded with 0 when g is nil.
func Ensure(g *LCG) *LCG {
	if g == nil {
		return New(0)
	}
	return g
}
