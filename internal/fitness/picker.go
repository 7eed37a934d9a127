package fitness

import "cubelife/internal/rng"

// Picker resolves the configured mode to the mode used for one generation.
// In random mode it never returns the same mode twice in a row.
type Picker struct {
	configured Mode
	last       Mode
}

func NewPicker(configured Mode, last Mode) *Picker {
	return &Picker{configured: configured, last: last}
}

func (p *Picker) Configured() Mode {
	return p.configured
}

// Last returns the mode returned by the previous Next call.
func (p *Picker) Last() Mode {
	return p.last
}

func (p *Picker) SetConfigured(mode Mode) {
	p.configured = mode
}

func (p *Picker) Next(r *rng.LCG) Mode {
	if p.configured != ModeRandom {
		p.last = p.configured
		return p.last
	}
	r = rng.Ensure(r)
	candidates := make([]Mode, 0, len(ConcreteModes))
	for _, m := range ConcreteModes {
		if m != p.last {
			candidates = append(candidates, m)
		}
	}
	p.last = candidates[r.Intn(len(candidates))]
	return p.last
}
