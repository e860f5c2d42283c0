package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/crewscontrol/internal/orchestrator"
	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

// HistoryReader reads recorded runs.
type HistoryReader interface {
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, project string, limit int) ([]models.RunRecord, error)
	ListUnits(ctx context.Context, runID string) ([]models.UnitRecord, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// HistoryStore is the full run history backend.
type HistoryStore interface {
	io.Closer
	Migrator
	orchestrator.Recorder
	HistoryReader
	PurgeOldRuns(ctx context.Context, olderThan time.Duration) (int64, error)
	MarkInterrupted(ctx context.Context, startedBefore time.Time) (int64, error)
}

// Compile-time verification that DB implements all interfaces.
var (
	_ HistoryStore          = (*DB)(nil)
	_ orchestrator.Recorder = (*DB)(nil)
	_ HistoryReader         = (*DB)(nil)
)
