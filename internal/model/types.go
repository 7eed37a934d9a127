package model

// NoParent marks the root block gene, whose parent id is unused.
const NoParent = -1

// UnitSize is the edge length of every block.
const UnitSize = 1.0

// BlockGene is the heritable record of one block.
type BlockGene struct {
	BlockID      int   `json:"block_id"`
	ParentID     int   `json:"parent_id"`
	Face         Face  `json:"face"`
	Variation    uint8 `json:"variation"`
	ColorSeed    uint8 `json:"color_seed"`
	MaterialSeed uint8 `json:"material_seed"`
	SpecialCode  uint8 `json:"special_code"`
}

// Genome is a root seed plus block genes in construction order.
type Genome struct {
	Seed   uint32      `json:"seed"`
	Blocks []BlockGene `json:"blocks"`
}

func (g Genome) Len() int {
	return len(g.Blocks)
}

type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

type Material struct {
	Name      string  `json:"name"`
	Roughness float64 `json:"roughness"`
	Metalness float64 `json:"metalness"`
}

// Block is the phenotype of one BlockGene.
type Block struct {
	ID        int              `json:"id"`
	Size      float64          `json:"size"`
	Position  Vec3             `json:"position"`
	Color     Color            `json:"color"`
	Material  Material         `json:"material"`
	FaceMask  FaceMask         `json:"face_mask"`
	Influence InfluenceChannel `json:"influence"`
}

// Action is one step of a joint's cyclic motion program.
type Action struct {
	Duration  float64 `json:"duration"`
	Speed     float64 `json:"speed"`
	Direction int     `json:"direction"`
}

// Joint connects a non-root block to its parent.
type Joint struct {
	BlockID    int                `json:"block_id"`
	ParentID   int                `json:"parent_id"`
	Axis       Axis               `json:"axis"`
	Program    []Action           `json:"program"`
	Influences map[string]float64 `json:"influences"`
	Angle      float64            `json:"angle"`
}

// Metrics are the raw performance numbers reported by the simulator.
type Metrics struct {
	Distance     float64  `json:"distance"`
	Height       float64  `json:"height"`
	JumpHeight   float64  `json:"jump_height"`
	VisitedTiles []string `json:"visited_tiles"`
}

func (m Metrics) TileCount() int {
	return len(m.VisitedTiles)
}

// Creature is a genome with its realized body and evaluation state.
type Creature struct {
	Name              string  `json:"name"`
	Genome            Genome  `json:"genome"`
	Blocks            []Block `json:"blocks"`
	Joints            []Joint `json:"joints"`
	ParentName        string  `json:"parent_name,omitempty"`
	DefendingChampion bool    `json:"defending_champion,omitempty"`
	Metrics           Metrics `json:"metrics"`
	Fitness           float64 `json:"fitness"`
}

func (c Creature) BlockCount() int {
	return len(c.Blocks)
}

// ResetFitness clears the evaluation fields ahead of a new round.
func (c *Creature) ResetFitness() {
	c.Metrics = Metrics{}
	c.Fitness = 0
}

// Record folds simulator metrics into the running maxima and appends tiles
// not seen before, preserving first-visit order.
func (c *Creature) Record(m Metrics) {
	if m.Distance > c.Metrics.Distance {
		c.Metrics.Distance = m.Distance
	}
	if m.Height > c.Metrics.Height {
		c.Metrics.Height = m.Height
	}
	if m.JumpHeight > c.Metrics.JumpHeight {
		c.Metrics.JumpHeight = m.JumpHeight
	}
	seen := make(map[string]struct{}, len(c.Metrics.VisitedTiles))
	for _, tile := range c.Metrics.VisitedTiles {
		seen[tile] = struct{}{}
	}
	for _, tile := range m.VisitedTiles {
		if _, ok := seen[tile]; ok {
			continue
		}
		seen[tile] = struct{}{}
		c.Metrics.VisitedTiles = append(c.Metrics.VisitedTiles, tile)
	}
}
