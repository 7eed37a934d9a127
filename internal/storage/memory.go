package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"cubelife/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

// MemoryStore keeps state documents encoded so callers never share slices
// with the stored copy.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	states      map[string][]byte
	diagnostics map[string][]model.GenerationDiagnostics
	runs        map[string]model.RunRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.states = make(map[string][]byte)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	s.runs = make(map[string]model.RunRecord)
	return nil
}

func (s *MemoryStore) SaveState(_ context.Context, runID string, doc model.StateDocument) error {
	payload, err := EncodeState(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.states[runID] = payload
	return nil
}

func (s *MemoryStore) GetState(_ context.Context, runID string) (model.StateDocument, bool, error) {
	s.mu.RLock()
	payload, ok := s.states[runID]
	s.mu.RUnlock()

	if !ok {
		return model.StateDocument{}, false, nil
	}
	doc, err := DecodeState(payload)
	if err != nil {
		return model.StateDocument{}, false, err
	}
	return doc, true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	s.diagnostics[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	return copied, true, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if existing, ok := s.runs[run.RunID]; ok && run.CreatedAtUTC == "" {
		run.CreatedAtUTC = existing.CreatedAtUTC
	}
	s.runs[run.RunID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	return run, ok, nil
}

// ListRuns returns runs most recently updated first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, runID)
	delete(s.diagnostics, runID)
	delete(s.runs, runID)
	return nil
}

func sortRuns(runs []model.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].UpdatedAtUTC != runs[j].UpdatedAtUTC {
			return runs[i].UpdatedAtUTC > runs[j].UpdatedAtUTC
		}
		return runs[i].RunID < runs[j].RunID
	})
}
