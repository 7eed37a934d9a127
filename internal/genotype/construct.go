package genotype

import (
	"errors"
	"fmt"
	"math"

	"cubelife/internal/model"
	"cubelife/internal/rng"
)

var (
	// ErrConstructionExhausted accompanies a valid but smaller creature when
	// the attempt budget ran out before every requested block was placed.
	ErrConstructionExhausted = errors.New("construction exhausted")
	// ErrNoAttachmentPoints means no new block could be placed at all.
	ErrNoAttachmentPoints = errors.New("no attachment points")
	ErrBlockCapReached    = errors.New("block cap reached")
)

const (
	OverlapTolerance    = 0.05
	attemptsPerBlock    = 40
	globalAttemptFactor = 25
	defaultMutateStep   = 12
)

// AttachmentPoint is a free face on an existing block.
type AttachmentPoint struct {
	BlockID int        `json:"block_id"`
	Face    model.Face `json:"face"`
}

// Overlaps is the axis-aligned proximity test between two block centers.
func Overlaps(a, b model.Vec3) bool {
	limit := model.UnitSize - OverlapTolerance
	return math.Abs(a.X-b.X) < limit &&
		math.Abs(a.Y-b.Y) < limit &&
		math.Abs(a.Z-b.Z) < limit
}

// body tracks placement while a genome grows.
type body struct {
	positions []model.Vec3
	masks     []model.FaceMask
}

func newBody() *body {
	return &body{
		positions: []model.Vec3{{}},
		masks:     []model.FaceMask{0},
	}
}

func (b *body) size() int {
	return len(b.positions)
}

func (b *body) candidate(p AttachmentPoint) model.Vec3 {
	return b.positions[p.BlockID].Add(p.Face.Offset())
}

func (b *body) overlaps(pos model.Vec3) bool {
	for _, existing := range b.positions {
		if Overlaps(existing, pos) {
			return true
		}
	}
	return false
}

func (b *body) canAttach(p AttachmentPoint) bool {
	if p.BlockID < 0 || p.BlockID >= b.size() || !p.Face.Valid() {
		return false
	}
	if b.masks[p.BlockID].Occupied(p.Face) {
		return false
	}
	return !b.overlaps(b.candidate(p))
}

// attach places a block on p, marking both sides of the connection.
func (b *body) attach(p AttachmentPoint) int {
	id := b.size()
	b.positions = append(b.positions, b.candidate(p))
	b.masks[p.BlockID] = b.masks[p.BlockID].With(p.Face)
	b.masks = append(b.masks, model.FaceMask(0).With(p.Face.Opposite()))
	return id
}

func (b *body) freePoints() []AttachmentPoint {
	out := make([]AttachmentPoint, 0)
	for id := range b.positions {
		for _, face := range b.masks[id].FreeFaces() {
			p := AttachmentPoint{BlockID: id, Face: face}
			if b.canAttach(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// replay grows the body described by g, rejecting any gene that reuses an
// occupied face or overlaps an existing block.
func replay(g model.Genome) (*body, error) {
	if err := Validate(g); err != nil {
		return nil, err
	}
	b := newBody()
	for _, gene := range g.Blocks[1:] {
		p := AttachmentPoint{BlockID: gene.ParentID, Face: gene.Face}
		if !b.canAttach(p) {
			return nil, fmt.Errorf("%w: block %d cannot attach to %d on %s", ErrMalformedGenome, gene.BlockID, p.BlockID, p.Face)
		}
		b.attach(p)
	}
	return b, nil
}

func sampleGene(r *rng.LCG, id int, parent AttachmentPoint) model.BlockGene {
	return model.BlockGene{
		BlockID:      id,
		ParentID:     parent.BlockID,
		Face:         parent.Face,
		Variation:    r.Byte(),
		ColorSeed:    r.Byte(),
		MaterialSeed: r.Byte(),
		SpecialCode:  r.Byte(),
	}
}

// BuildFromSeed grows a fresh creature of up to targetBlocks blocks. When the
// attempt budget runs out it returns the smaller creature together with
// ErrConstructionExhausted.
func BuildFromSeed(seed uint32, targetBlocks int) (model.Creature, error) {
	if targetBlocks < 1 {
		targetBlocks = 1
	}
	r := rng.New(seed)
	root := sampleGene(r, 0, AttachmentPoint{BlockID: model.NoParent})
	genome := model.Genome{Seed: seed, Blocks: []model.BlockGene{root}}

	b := newBody()
	budget := targetBlocks * globalAttemptFactor
	attempts := 0
	exhausted := false
	for len(genome.Blocks) < targetBlocks && !exhausted {
		placed := false
		for try := 0; try < attemptsPerBlock; try++ {
			if attempts >= budget {
				break
			}
			attempts++
			parent := r.Intn(b.size())
			free := b.masks[parent].FreeFaces()
			if len(free) == 0 {
				continue
			}
			p := AttachmentPoint{BlockID: parent, Face: free[r.Intn(len(free))]}
			if b.overlaps(b.candidate(p)) {
				continue
			}
			id := b.attach(p)
			genome.Blocks = append(genome.Blocks, sampleGene(r, id, p))
			placed = true
			break
		}
		if !placed {
			exhausted = true
		}
	}

	creature, err := GrowFromGenome(genome)
	if err != nil {
		return model.Creature{}, err
	}
	if exhausted {
		return creature, fmt.Errorf("%w: placed %d of %d blocks", ErrConstructionExhausted, len(genome.Blocks), targetBlocks)
	}
	return creature, nil
}

// GrowFromGenome realizes a creature by replaying the exact genes of g.
// Blocks, joints and the name are all derived from the genome.
func GrowFromGenome(g model.Genome) (model.Creature, error) {
	b, err := replay(g)
	if err != nil {
		return model.Creature{}, err
	}
	genome := CloneGenome(g)
	subseeds := Subseeds(genome)

	blocks := make([]model.Block, len(genome.Blocks))
	for i, gene := range genome.Blocks {
		blocks[i] = model.Block{
			ID:        i,
			Size:      model.UnitSize,
			Position:  b.positions[i],
			Color:     ColorFor(gene.ColorSeed),
			Material:  MaterialFor(gene.MaterialSeed),
			FaceMask:  b.masks[i],
			Influence: model.InfluenceForCode(gene.SpecialCode),
		}
	}
	joints := make([]model.Joint, 0, len(genome.Blocks)-1)
	for i := 1; i < len(genome.Blocks); i++ {
		joints = append(joints, BuildJoint(genome, i, subseeds[i]))
	}

	return model.Creature{
		Name:   NameFor(subseeds[len(subseeds)-1]),
		Genome: genome,
		Blocks: blocks,
		Joints: joints,
	}, nil
}

// DecodeCreature decodes a genome string and realizes it.
func DecodeCreature(s string) (model.Creature, error) {
	g, err := Decode(s)
	if err != nil {
		return model.Creature{}, err
	}
	return GrowFromGenome(g)
}

// Mutate returns a copy of g whose variation fields took one bounded random
// walk step each. Structural fields are untouched, so the copy always grows
// into the same body.
func Mutate(g model.Genome, r *rng.LCG, step int) model.Genome {
	r = rng.Ensure(r)
	if step <= 0 {
		step = defaultMutateStep
	}
	out := CloneGenome(g)
	for i := range out.Blocks {
		v := int(out.Blocks[i].Variation) + r.Between(-step, step)
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		out.Blocks[i].Variation = uint8(v)
	}
	return out
}

// AttachmentPoints lists every free face of g whose neighbour cell is empty.
func AttachmentPoints(g model.Genome) ([]AttachmentPoint, error) {
	b, err := replay(g)
	if err != nil {
		return nil, err
	}
	return b.freePoints(), nil
}

// AddBlocks appends up to count new genes to a copy of parent. The first block
// goes on the first usable entry of points; later blocks sample points at
// random or, with allowChaining, may extend the block placed just before.
// maxBlocks > 0 caps the total size. It returns the extended genome and the
// number of blocks added.
func AddBlocks(parent model.Genome, points []AttachmentPoint, count int, allowChaining bool, maxBlocks int, r *rng.LCG) (model.Genome, int, error) {
	r = rng.Ensure(r)
	b, err := replay(parent)
	if err != nil {
		return model.Genome{}, 0, err
	}
	out := CloneGenome(parent)
	if maxBlocks > 0 && len(out.Blocks) >= maxBlocks {
		return out, 0, fmt.Errorf("%w: %d blocks", ErrBlockCapReached, len(out.Blocks))
	}

	added := make([]int, 0, count)
	for n := 0; n < count; n++ {
		if maxBlocks > 0 && len(out.Blocks) >= maxBlocks {
			break
		}
		p, ok := nextAttachment(b, points, added, allowChaining, r)
		if !ok {
			break
		}
		id := b.attach(p)
		out.Blocks = append(out.Blocks, sampleGene(r, id, p))
		added = append(added, id)
	}
	if len(added) == 0 {
		return out, 0, ErrNoAttachmentPoints
	}
	return out, len(added), nil
}

func nextAttachment(b *body, points []AttachmentPoint, added []int, allowChaining bool, r *rng.LCG) (AttachmentPoint, bool) {
	if len(added) == 0 {
		for _, p := range points {
			if b.canAttach(p) {
				return p, true
			}
		}
		return AttachmentPoint{}, false
	}
	if !allowChaining && len(points) == 0 {
		return AttachmentPoint{}, false
	}
	for try := 0; try < attemptsPerBlock; try++ {
		var p AttachmentPoint
		if allowChaining && (len(points) == 0 || r.Intn(2) == 0) {
			last := added[len(added)-1]
			free := b.masks[last].FreeFaces()
			if len(free) == 0 {
				continue
			}
			p = AttachmentPoint{BlockID: last, Face: free[r.Intn(len(free))]}
		} else {
			p = points[r.Intn(len(points))]
		}
		if b.canAttach(p) {
			return p, true
		}
	}
	return AttachmentPoint{}, false
}
