package evo

import (
	"fmt"
	"log/slog"
	"sort"

	"cubelife/internal/fitness"
	"cubelife/internal/genotype"
	"cubelife/internal/model"
	"cubelife/internal/rng"
)

// Export captures the complete manager state. Creatures are stored by genome
// string and metrics; bodies and joints are never written.
func (m *Manager) Export() model.StateDocument {
	doc := model.StateDocument{
		Version:           model.CurrentStateVersion,
		Generation:        m.generation,
		RNGState:          m.rng.State(),
		ActiveMode:        string(m.activeMode),
		LastMode:          string(m.picker.Last()),
		Champion:          optionalRecord(m.champion),
		AllTimeChampion:   optionalRecord(m.allTime),
		Parent:            optionalRecord(m.parent),
		Population:        make([]model.CreatureRecord, len(m.population)),
		Settings:          m.settings,
		History:           make([]model.HistoryRecord, len(m.history)),
		Tree:              make([]model.TreeNodeRecord, m.tree.Len()),
		BranchNodeID:      m.branchNodeID,
		ChampionNodeID:    m.championNodeID,
		PendingTournament: append([]int(nil), m.pending...),
		Dedupe:            make([]string, 0, len(m.dedupe)),
		Counters: model.CountersRecord{
			DeadEnds:         m.counters.DeadEnds,
			Backtracks:       m.counters.Backtracks,
			CompletedLines:   m.counters.CompletedLines,
			ChampionDefenses: m.counters.ChampionDefenses,
			Exhaustions:      m.counters.Exhaustions,
		},
	}
	if m.target != nil {
		doc.Target = &model.TargetRecord{Metrics: genotype.CloneMetrics(m.target.Metrics), Mode: string(m.target.Mode)}
	}
	for i, c := range m.population {
		doc.Population[i] = creatureRecord(c)
	}
	for i, e := range m.history {
		rec := model.HistoryRecord{
			Generation:      e.Generation,
			Ranked:          make([]model.RankedRecord, len(e.Ranked)),
			TriedRanks:      make([]int, 0, len(e.Tried)),
			ChampionMetrics: genotype.CloneMetrics(e.ChampionMetrics),
			Mode:            string(e.Mode),
		}
		for j, r := range e.Ranked {
			rec.Ranked[j] = model.RankedRecord{Creature: creatureRecord(r.Creature), Fitness: r.Fitness, NodeID: r.NodeID}
		}
		for rank, tried := range e.Tried {
			if tried {
				rec.TriedRanks = append(rec.TriedRanks, rank)
			}
		}
		sort.Ints(rec.TriedRanks)
		doc.History[i] = rec
	}
	for i, n := range m.tree.nodes {
		doc.Tree[i] = model.TreeNodeRecord{
			ID:          n.ID,
			Generation:  n.Generation,
			Fitness:     n.Fitness,
			Metrics:     genotype.CloneMetrics(n.Metrics),
			Mode:        string(n.Mode),
			ParentID:    n.ParentID,
			Status:      string(n.Status),
			Children:    append([]int{}, n.Children...),
			SpeciesID:   n.SpeciesID,
			Fingerprint: n.Fingerprint,
			Creature:    creatureRecord(n.Creature),
		}
	}
	for key := range m.dedupe {
		doc.Dedupe = append(doc.Dedupe, key)
	}
	sort.Strings(doc.Dedupe)
	return doc
}

func creatureRecord(c model.Creature) model.CreatureRecord {
	return model.CreatureRecord{
		Name:              c.Name,
		Genome:            genotype.Encode(c.Genome),
		ParentName:        c.ParentName,
		DefendingChampion: c.DefendingChampion,
		Metrics:           genotype.CloneMetrics(c.Metrics),
		Fitness:           c.Fitness,
	}
}

func optionalRecord(c *model.Creature) *model.CreatureRecord {
	if c == nil {
		return nil
	}
	rec := creatureRecord(*c)
	return &rec
}

// restoreCreature decodes the genome and rebuilds body and joints from it.
// Only evaluation and lineage fields are taken from the record.
func restoreCreature(rec model.CreatureRecord) (model.Creature, error) {
	c, err := genotype.DecodeCreature(rec.Genome)
	if err != nil {
		return model.Creature{}, fmt.Errorf("creature %s: %w", rec.Name, err)
	}
	c.ParentName = rec.ParentName
	c.DefendingChampion = rec.DefendingChampion
	c.Metrics = genotype.CloneMetrics(rec.Metrics)
	c.Fitness = rec.Fitness
	return c, nil
}

func restoreOptional(rec *model.CreatureRecord) (*model.Creature, error) {
	if rec == nil {
		return nil, nil
	}
	c, err := restoreCreature(*rec)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func parseStoredMode(name string) (fitness.Mode, error) {
	if name == "" {
		return "", nil
	}
	mode, err := fitness.ParseMode(name)
	if err != nil {
		return "", err
	}
	return mode, nil
}

// Import rebuilds a manager from an exported document. Unknown versions are
// rejected with model.ErrInvalidSaveVersion.
func Import(doc model.StateDocument, logger *slog.Logger) (*Manager, error) {
	if err := model.CheckStateVersion(doc.Version); err != nil {
		return nil, err
	}
	m, err := NewManager(ManagerConfig{Settings: doc.Settings, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if doc.Generation < 1 {
		return nil, fmt.Errorf("generation must be >= 1, got=%d", doc.Generation)
	}
	m.generation = doc.Generation
	m.rng = rng.New(doc.RNGState)

	active, err := parseStoredMode(doc.ActiveMode)
	if err != nil {
		return nil, fmt.Errorf("active mode: %w", err)
	}
	last, err := parseStoredMode(doc.LastMode)
	if err != nil {
		return nil, fmt.Errorf("last mode: %w", err)
	}
	m.activeMode = active
	m.picker = fitness.NewPicker(fitness.Mode(m.settings.FitnessMode), last)

	if m.champion, err = restoreOptional(doc.Champion); err != nil {
		return nil, fmt.Errorf("champion: %w", err)
	}
	if m.allTime, err = restoreOptional(doc.AllTimeChampion); err != nil {
		return nil, fmt.Errorf("all-time champion: %w", err)
	}
	if m.parent, err = restoreOptional(doc.Parent); err != nil {
		return nil, fmt.Errorf("parent: %w", err)
	}
	if doc.Target != nil {
		mode, err := parseStoredMode(doc.Target.Mode)
		if err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}
		m.target = &Target{Metrics: genotype.CloneMetrics(doc.Target.Metrics), Mode: mode}
	}

	m.population = make([]model.Creature, len(doc.Population))
	for i, rec := range doc.Population {
		if m.population[i], err = restoreCreature(rec); err != nil {
			return nil, fmt.Errorf("population[%d]: %w", i, err)
		}
	}

	m.history = make([]HistoryEntry, len(doc.History))
	for i, rec := range doc.History {
		mode, err := parseStoredMode(rec.Mode)
		if err != nil {
			return nil, fmt.Errorf("history[%d]: %w", i, err)
		}
		entry := HistoryEntry{
			Generation:      rec.Generation,
			Ranked:          make([]Ranked, len(rec.Ranked)),
			Tried:           make(map[int]bool, len(rec.TriedRanks)),
			ChampionMetrics: genotype.CloneMetrics(rec.ChampionMetrics),
			Mode:            mode,
		}
		for j, r := range rec.Ranked {
			c, err := restoreCreature(r.Creature)
			if err != nil {
				return nil, fmt.Errorf("history[%d].ranked[%d]: %w", i, j, err)
			}
			entry.Ranked[j] = Ranked{Creature: c, Fitness: r.Fitness, NodeID: r.NodeID}
		}
		for _, rank := range rec.TriedRanks {
			if rank < 0 || rank >= len(entry.Ranked) {
				return nil, fmt.Errorf("history[%d]: tried rank %d out of range", i, rank)
			}
			entry.Tried[rank] = true
		}
		m.history[i] = entry
	}

	m.tree = NewTree()
	for i, rec := range doc.Tree {
		if rec.ID != i {
			return nil, fmt.Errorf("tree[%d]: id %d out of order", i, rec.ID)
		}
		if rec.ParentID != model.NoParent && (rec.ParentID < 0 || rec.ParentID >= i) {
			return nil, fmt.Errorf("tree[%d]: parent %d is not an earlier node", i, rec.ParentID)
		}
		status, err := parseNodeStatus(rec.Status)
		if err != nil {
			return nil, fmt.Errorf("tree[%d]: %w", i, err)
		}
		mode, err := parseStoredMode(rec.Mode)
		if err != nil {
			return nil, fmt.Errorf("tree[%d]: %w", i, err)
		}
		c, err := restoreCreature(rec.Creature)
		if err != nil {
			return nil, fmt.Errorf("tree[%d]: %w", i, err)
		}
		id := m.tree.Add(rec.Generation, rec.ParentID, c, rec.Fitness, mode, status)
		m.tree.nodes[id].Metrics = genotype.CloneMetrics(rec.Metrics)
	}
	m.branchNodeID = doc.BranchNodeID
	if m.branchNodeID != model.NoParent && !m.tree.valid(m.branchNodeID) {
		return nil, fmt.Errorf("branch node %d not in tree", m.branchNodeID)
	}
	m.championNodeID = doc.ChampionNodeID
	if m.championNodeID != model.NoParent && !m.tree.valid(m.championNodeID) {
		return nil, fmt.Errorf("champion node %d not in tree", m.championNodeID)
	}
	for _, id := range doc.PendingTournament {
		if !m.tree.valid(id) {
			return nil, fmt.Errorf("pending tournament node %d not in tree", id)
		}
	}
	if len(doc.PendingTournament) > 0 && len(doc.PendingTournament) != len(m.population) {
		return nil, fmt.Errorf("pending tournament has %d entrants for %d creatures", len(doc.PendingTournament), len(m.population))
	}
	m.pending = append([]int(nil), doc.PendingTournament...)

	for _, key := range doc.Dedupe {
		m.dedupe[key] = struct{}{}
	}
	m.counters = Counters{
		DeadEnds:         doc.Counters.DeadEnds,
		Backtracks:       doc.Counters.Backtracks,
		CompletedLines:   doc.Counters.CompletedLines,
		ChampionDefenses: doc.Counters.ChampionDefenses,
		Exhaustions:      doc.Counters.Exhaustions,
	}
	if len(m.population) > 0 && m.activeMode == "" {
		m.activeMode = m.picker.Next(m.rng)
	}
	return m, nil
}
