package genotype

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"cubelife/internal/model"
)

type BodySummary struct {
	TotalBlocks           int            `json:"total_blocks"`
	TotalJoints           int            `json:"total_joints"`
	MaxDepth              int            `json:"max_depth"`
	AxisDistribution      map[string]int `json:"axis_distribution"`
	InfluenceDistribution map[string]int `json:"influence_distribution"`
}

type GenomeSignature struct {
	Fingerprint string      `json:"fingerprint"`
	SpeciesID   string      `json:"species_id"`
	Summary     BodySummary `json:"summary"`
}

// BehavioralFingerprint hashes every gene field that affects behavior. The
// color seed is cosmetic and the root seed only names the lineage, so two
// genomes differing only in those fields collide.
func BehavioralFingerprint(g model.Genome) string {
	parts := make([]string, 0, len(g.Blocks))
	for _, gene := range g.Blocks {
		parts = append(parts, fmt.Sprintf("%d:%d:%d:%d:%d:%d",
			gene.BlockID,
			gene.ParentID,
			gene.Face,
			gene.Variation,
			gene.MaterialSeed,
			gene.SpecialCode,
		))
	}
	return digest(parts)
}

// SpeciesID hashes block connectivity only: which parent and which face.
func SpeciesID(g model.Genome) string {
	parts := make([]string, 0, len(g.Blocks))
	for _, gene := range g.Blocks {
		parts = append(parts, fmt.Sprintf("%d@%d", gene.ParentID, gene.Face))
	}
	return "sp:" + digest(parts)
}

func digest(parts []string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:8])
}

func ComputeGenomeSignature(g model.Genome) GenomeSignature {
	axes := make(map[string]int)
	influences := make(map[string]int)
	depth := make([]int, len(g.Blocks))
	maxDepth := 0
	for i, gene := range g.Blocks {
		if ch := model.InfluenceForCode(gene.SpecialCode); ch != model.InfluenceNone {
			influences[ch.String()]++
		}
		if i == 0 || gene.ParentID < 0 || gene.ParentID >= i {
			continue
		}
		axes[string(gene.Face.Axis())]++
		depth[i] = depth[gene.ParentID] + 1
		if depth[i] > maxDepth {
			maxDepth = depth[i]
		}
	}
	joints := len(g.Blocks) - 1
	if joints < 0 {
		joints = 0
	}
	return GenomeSignature{
		Fingerprint: BehavioralFingerprint(g),
		SpeciesID:   SpeciesID(g),
		Summary: BodySummary{
			TotalBlocks:           len(g.Blocks),
			TotalJoints:           joints,
			MaxDepth:              maxDepth,
			AxisDistribution:      axes,
			InfluenceDistribution: influences,
		},
	}
}

// String renders the summary in a stable key order for logs and reports.
func (s BodySummary) String() string {
	parts := []string{
		fmt.Sprintf("b=%d", s.TotalBlocks),
		fmt.Sprintf("j=%d", s.TotalJoints),
		fmt.Sprintf("d=%d", s.MaxDepth),
	}
	appendDist := func(prefix string, m map[string]int) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s:%s=%d", prefix, k, m[k]))
		}
	}
	appendDist("ax", s.AxisDistribution)
	appendDist("in", s.InfluenceDistribution)
	return strings.Join(parts, " ")
}
