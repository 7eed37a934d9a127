package storage

import (
	"context"

	"cubelife/internal/model"
)

// Store persists evolution runs: the exported manager state, per-generation
// diagnostics and a small index of known runs.
type Store interface {
	Init(ctx context.Context) error
	SaveState(ctx context.Context, runID string, doc model.StateDocument) error
	GetState(ctx context.Context, runID string) (model.StateDocument, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, runID string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	DeleteRun(ctx context.Context, runID string) error
}
