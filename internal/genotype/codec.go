package genotype

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cubelife/internal/model"
)

var ErrMalformedGenome = errors.New("malformed genome")

const (
	seedWidth  = 8
	tokenWidth = 13
	rootParent = 0xffff
	separator  = "-"
	foldWidth  = 8
)

// Encode renders a genome as its root seed in fixed-width hex followed by one
// dash-separated token per block gene:
//
//	PPPP F VV CC MM XX
//
// parent (ffff for the root), face, variation, color, material, special code.
func Encode(g model.Genome) string {
	var sb strings.Builder
	sb.Grow(seedWidth + len(g.Blocks)*(tokenWidth+1))
	fmt.Fprintf(&sb, "%08x", g.Seed)
	for _, gene := range g.Blocks {
		sb.WriteString(separator)
		sb.WriteString(encodeGene(gene))
	}
	return sb.String()
}

func encodeGene(gene model.BlockGene) string {
	parent := uint16(rootParent)
	if gene.ParentID != model.NoParent {
		parent = uint16(gene.ParentID)
	}
	return fmt.Sprintf("%04x%x%02x%02x%02x%02x",
		parent,
		uint8(gene.Face),
		gene.Variation,
		gene.ColorSeed,
		gene.MaterialSeed,
		gene.SpecialCode,
	)
}

// Decode parses a genome string. Any malformed token is an error wrapping
// ErrMalformedGenome; nothing is defaulted.
func Decode(s string) (model.Genome, error) {
	parts := strings.Split(s, separator)
	if len(parts[0]) != seedWidth || !isLowerHex(parts[0]) {
		return model.Genome{}, fmt.Errorf("%w: bad root seed %q", ErrMalformedGenome, parts[0])
	}
	seed, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return model.Genome{}, fmt.Errorf("%w: root seed: %v", ErrMalformedGenome, err)
	}

	genome := model.Genome{Seed: uint32(seed), Blocks: make([]model.BlockGene, 0, len(parts)-1)}
	for i, token := range parts[1:] {
		gene, err := decodeGene(i, token)
		if err != nil {
			return model.Genome{}, err
		}
		genome.Blocks = append(genome.Blocks, gene)
	}
	return genome, nil
}

func decodeGene(index int, token string) (model.BlockGene, error) {
	if len(token) != tokenWidth || !isLowerHex(token) {
		return model.BlockGene{}, fmt.Errorf("%w: token %d %q", ErrMalformedGenome, index, token)
	}
	field := func(lo, hi int) uint64 {
		v, _ := strconv.ParseUint(token[lo:hi], 16, 32)
		return v
	}

	gene := model.BlockGene{
		BlockID:      index,
		Face:         model.Face(field(4, 5)),
		Variation:    uint8(field(5, 7)),
		ColorSeed:    uint8(field(7, 9)),
		MaterialSeed: uint8(field(9, 11)),
		SpecialCode:  uint8(field(11, 13)),
	}
	parent := int(field(0, 4))
	switch {
	case index == 0 && parent != rootParent:
		return model.BlockGene{}, fmt.Errorf("%w: root token has parent %04x", ErrMalformedGenome, parent)
	case index == 0:
		gene.ParentID = model.NoParent
	case parent >= index:
		return model.BlockGene{}, fmt.Errorf("%w: token %d parent %d is not an earlier block", ErrMalformedGenome, index, parent)
	default:
		gene.ParentID = parent
	}
	if !gene.Face.Valid() {
		return model.BlockGene{}, fmt.Errorf("%w: token %d face %d", ErrMalformedGenome, index, gene.Face)
	}
	return gene, nil
}

// Validate checks the structural invariants Encode relies on.
func Validate(g model.Genome) error {
	if len(g.Blocks) == 0 {
		return fmt.Errorf("%w: genome has no blocks", ErrMalformedGenome)
	}
	for i, gene := range g.Blocks {
		if gene.BlockID != i {
			return fmt.Errorf("%w: block %d has id %d", ErrMalformedGenome, i, gene.BlockID)
		}
		if i == 0 {
			if gene.ParentID != model.NoParent {
				return fmt.Errorf("%w: root block has parent %d", ErrMalformedGenome, gene.ParentID)
			}
			continue
		}
		if gene.ParentID < 0 || gene.ParentID >= i {
			return fmt.Errorf("%w: block %d parent %d", ErrMalformedGenome, i, gene.ParentID)
		}
		if !gene.Face.Valid() {
			return fmt.Errorf("%w: block %d face %d", ErrMalformedGenome, i, gene.Face)
		}
	}
	return nil
}

// DeriveSubseed folds the hex digits of the root seed and every token up to
// and including blockIndex into one 32-bit value with XOR. Genomes sharing a
// prefix through block K share sub-seeds 0..K.
func DeriveSubseed(g model.Genome, blockIndex int) (uint32, error) {
	if blockIndex < 0 || blockIndex >= len(g.Blocks) {
		return 0, fmt.Errorf("block index %d out of range [0,%d)", blockIndex, len(g.Blocks))
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%08x", g.Seed))
	for _, gene := range g.Blocks[:blockIndex+1] {
		sb.WriteString(separator)
		sb.WriteString(encodeGene(gene))
	}
	return foldHex(sb.String()), nil
}

// Subseeds returns DeriveSubseed for every block of g.
func Subseeds(g model.Genome) []uint32 {
	encoded := Encode(g)
	out := make([]uint32, len(g.Blocks))
	for i := range g.Blocks {
		end := seedWidth + (i+1)*(tokenWidth+len(separator))
		out[i] = foldHex(encoded[:end])
	}
	return out
}

func foldHex(s string) uint32 {
	digits := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if isHexDigit(s[i]) {
			digits = append(digits, s[i])
		}
	}
	var acc uint32
	for i := 0; i < len(digits); i += foldWidth {
		end := i + foldWidth
		if end > len(digits) {
			end = len(digits)
		}
		v, _ := strconv.ParseUint(string(digits[i:end]), 16, 32)
		acc ^= uint32(v)
	}
	return acc
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
