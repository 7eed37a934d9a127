package genotype

import (
	"errors"
	"testing"

	"cubelife/internal/model"
	"cubelife/internal/rng"
)

func mustBuild(t *testing.T, seed uint32, blocks int) model.Creature {
	t.Helper()
	c, err := BuildFromSeed(seed, blocks)
	if err != nil && !errors.Is(err, ErrConstructionExhausted) {
		t.Fatalf("build seed %d: %v", seed, err)
	}
	return c
}

func TestBuildFromSeedIsDeterministic(t *testing.T) {
	for _, seed := range []uint32{0, 1, 42, 0xfeedface} {
		a := mustBuild(t, seed, 10)
		b := mustBuild(t, seed, 10)
		if Encode(a.Genome) != Encode(b.Genome) {
			t.Fatalf("seed %d produced different genomes", seed)
		}
		if a.Name != b.Name {
			t.Fatalf("seed %d produced different names: %s != %s", seed, a.Name, b.Name)
		}
		if len(a.Joints) != len(b.Joints) {
			t.Fatalf("seed %d produced different joint counts", seed)
		}
		for i := range a.Joints {
			if !ProgramEqual(a.Joints[i], b.Joints[i]) {
				t.Fatalf("seed %d joint %d differs", seed, i)
			}
		}
	}
}

func TestBuildFromSeedShape(t *testing.T) {
	c := mustBuild(t, 7, 6)
	if c.BlockCount() < 1 || c.BlockCount() > 6 {
		t.Fatalf("unexpected block count: %d", c.BlockCount())
	}
	if len(c.Joints) != c.BlockCount()-1 {
		t.Fatalf("expected one joint per non-root block, got=%d blocks=%d", len(c.Joints), c.BlockCount())
	}
	if c.Genome.Seed != 7 {
		t.Fatalf("expected root seed 7, got=%d", c.Genome.Seed)
	}
	for i, j := range c.Joints {
		gene := c.Genome.Blocks[i+1]
		if j.BlockID != gene.BlockID || j.ParentID != gene.ParentID {
			t.Fatalf("joint %d not aligned with gene: %+v", i, j)
		}
		if j.Axis != gene.Face.Axis() {
			t.Fatalf("joint %d axis=%s want=%s", i, j.Axis, gene.Face.Axis())
		}
	}

	single := mustBuild(t, 7, 0)
	if single.BlockCount() != 1 || len(single.Joints) != 0 {
		t.Fatalf("expected a lone root block, got blocks=%d joints=%d", single.BlockCount(), len(single.Joints))
	}
}

func TestBuiltCreaturesNeverOverlap(t *testing.T) {
	for seed := uint32(0); seed < 40; seed++ {
		c := mustBuild(t, seed*2654435761, 16)
		for i := 0; i < len(c.Blocks); i++ {
			for j := i + 1; j < len(c.Blocks); j++ {
				if Overlaps(c.Blocks[i].Position, c.Blocks[j].Position) {
					t.Fatalf("seed %d: blocks %d and %d overlap at %+v / %+v", seed, i, j, c.Blocks[i].Position, c.Blocks[j].Position)
				}
			}
		}
	}
}

func TestOverlapsTolerance(t *testing.T) {
	if Overlaps(model.Vec3{}, model.Vec3{X: 1}) {
		t.Fatal("face neighbours must not overlap")
	}
	if !Overlaps(model.Vec3{}, model.Vec3{X: 0.5, Y: 0.2}) {
		t.Fatal("expected close centers to overlap")
	}
	if Overlaps(model.Vec3{}, model.Vec3{X: 0.2, Y: 0.2, Z: 0.96}) {
		t.Fatal("one separated axis is enough to avoid overlap")
	}
}

func TestGrowFromGenomeReplaysBody(t *testing.T) {
	c := mustBuild(t, 1234, 8)
	grown, err := GrowFromGenome(c.Genome)
	if err != nil {
		t.Fatalf("grow: %v", err)
	}
	if grown.Name != c.Name || len(grown.Blocks) != len(c.Blocks) {
		t.Fatalf("replay mismatch: %s/%d vs %s/%d", grown.Name, len(grown.Blocks), c.Name, len(c.Blocks))
	}
	for i := range c.Blocks {
		if grown.Blocks[i] != c.Blocks[i] {
			t.Fatalf("block %d differs: %+v vs %+v", i, grown.Blocks[i], c.Blocks[i])
		}
	}
	for i := range c.Joints {
		if !ProgramEqual(grown.Joints[i], c.Joints[i]) {
			t.Fatalf("joint %d differs after replay", i)
		}
	}
}

func TestGrowFromGenomeRejectsReusedFace(t *testing.T) {
	genome := model.Genome{Blocks: []model.BlockGene{
		{BlockID: 0, ParentID: model.NoParent},
		{BlockID: 1, ParentID: 0, Face: model.FacePosX},
		{BlockID: 2, ParentID: 0, Face: model.FacePosX},
	}}
	if _, err := GrowFromGenome(genome); !errors.Is(err, ErrMalformedGenome) {
		t.Fatalf("expected ErrMalformedGenome, got=%v", err)
	}
}

func TestGrowFromGenomeRejectsOverlap(t *testing.T) {
	// 0 -> +x -> +y lands on the same cell as 0 -> +y -> +x.
	genome := model.Genome{Blocks: []model.BlockGene{
		{BlockID: 0, ParentID: model.NoParent},
		{BlockID: 1, ParentID: 0, Face: model.FacePosX},
		{BlockID: 2, ParentID: 1, Face: model.FacePosY},
		{BlockID: 3, ParentID: 0, Face: model.FacePosY},
		{BlockID: 4, ParentID: 3, Face: model.FacePosX},
	}}
	if _, err := GrowFromGenome(genome); !errors.Is(err, ErrMalformedGenome) {
		t.Fatalf("expected ErrMalformedGenome, got=%v", err)
	}
	if _, err := GrowFromGenome(model.Genome{Blocks: genome.Blocks[:4]}); err != nil {
		t.Fatalf("expected valid prefix, got=%v", err)
	}
}

func TestFaceMasksMarkBothSides(t *testing.T) {
	genome := model.Genome{Blocks: []model.BlockGene{
		{BlockID: 0, ParentID: model.NoParent},
		{BlockID: 1, ParentID: 0, Face: model.FaceNegZ},
	}}
	c, err := GrowFromGenome(genome)
	if err != nil {
		t.Fatalf("grow: %v", err)
	}
	if !c.Blocks[0].FaceMask.Occupied(model.FaceNegZ) {
		t.Fatal("expected parent face marked")
	}
	if !c.Blocks[1].FaceMask.Occupied(model.FacePosZ) {
		t.Fatal("expected child face marked")
	}
	if c.Blocks[1].Position != (model.Vec3{Z: -1}) {
		t.Fatalf("unexpected child position: %+v", c.Blocks[1].Position)
	}
}

func TestMutatePreservesStructure(t *testing.T) {
	c := mustBuild(t, 99, 10)
	before := Encode(c.Genome)
	mutated := Mutate(c.Genome, rng.New(5), 40)
	if SpeciesID(mutated) != SpeciesID(c.Genome) {
		t.Fatal("mutation changed body plan")
	}
	changed := false
	for i, gene := range mutated.Blocks {
		orig := c.Genome.Blocks[i]
		if gene.ParentID != orig.ParentID || gene.Face != orig.Face || gene.BlockID != orig.BlockID {
			t.Fatalf("gene %d structural fields changed", i)
		}
		if gene.ColorSeed != orig.ColorSeed || gene.MaterialSeed != orig.MaterialSeed || gene.SpecialCode != orig.SpecialCode {
			t.Fatalf("gene %d non-variation fields changed", i)
		}
		if gene.Variation != orig.Variation {
			changed = true
		}
	}
	if !changed {
		t.Fatal("expected at least one variation to move")
	}
	if _, err := GrowFromGenome(mutated); err != nil {
		t.Fatalf("mutated genome must still grow: %v", err)
	}
	if Encode(c.Genome) != before {
		t.Fatal("mutate modified its input")
	}
}

func TestAttachmentPointsOnSingleBlock(t *testing.T) {
	genome := model.Genome{Blocks: []model.BlockGene{{BlockID: 0, ParentID: model.NoParent}}}
	points, err := AttachmentPoints(genome)
	if err != nil {
		t.Fatalf("attachment points: %v", err)
	}
	if len(points) != model.FaceCount {
		t.Fatalf("expected %d points, got=%d", model.FaceCount, len(points))
	}
}

func TestAddBlocksRespectsCap(t *testing.T) {
	root := model.Genome{Seed: 3, Blocks: []model.BlockGene{{BlockID: 0, ParentID: model.NoParent}}}
	points, _ := AttachmentPoints(root)

	grown, added, err := AddBlocks(root, points, 4, false, 3, rng.New(1))
	if err != nil {
		t.Fatalf("add blocks: %v", err)
	}
	if added != 2 || grown.Len() != 3 {
		t.Fatalf("expected cap at 3 blocks, added=%d len=%d", added, grown.Len())
	}
	if root.Len() != 1 {
		t.Fatal("AddBlocks modified its parent")
	}

	_, _, err = AddBlocks(grown, points, 1, false, 3, rng.New(1))
	if !errors.Is(err, ErrBlockCapReached) {
		t.Fatalf("expected ErrBlockCapReached, got=%v", err)
	}
}

func TestAddBlocksChaining(t *testing.T) {
	root := model.Genome{Blocks: []model.BlockGene{{BlockID: 0, ParentID: model.NoParent}}}
	points := []AttachmentPoint{{BlockID: 0, Face: model.FacePosX}}

	chained, added, err := AddBlocks(root, points, 3, true, 0, rng.New(11))
	if err != nil {
		t.Fatalf("chained add: %v", err)
	}
	if added != 3 {
		t.Fatalf("expected 3 chained blocks, got=%d", added)
	}
	for i, want := range []int{0, 1, 2} {
		if got := chained.Blocks[i+1].ParentID; got != want {
			t.Fatalf("block %d parent=%d want=%d", i+1, got, want)
		}
	}

	flat, added, err := AddBlocks(root, points, 3, false, 0, rng.New(11))
	if err != nil {
		t.Fatalf("flat add: %v", err)
	}
	if added != 1 || flat.Len() != 2 {
		t.Fatalf("expected one block without chaining, added=%d len=%d", added, flat.Len())
	}
}

func TestAddBlocksWithoutPoints(t *testing.T) {
	root := model.Genome{Blocks: []model.BlockGene{{BlockID: 0, ParentID: model.NoParent}}}
	if _, _, err := AddBlocks(root, nil, 2, true, 0, rng.New(1)); !errors.Is(err, ErrNoAttachmentPoints) {
		t.Fatalf("expected ErrNoAttachmentPoints, got=%v", err)
	}
}
