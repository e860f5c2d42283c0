package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenAndMigrate(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "history.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	var version int
	if err := db.queryRow(context.Background(), "SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}
}

func newRun(id, project string, started time.Time) *models.RunRecord {
	return &models.RunRecord{
		ID:          id,
		Project:     project,
		Inputs:      map[string]string{"repo": "acme/api"},
		Order:       []string{"research", "fetch", "parse"},
		IgnoreCache: true,
		Status:      models.RunRunning,
		StartedAt:   started,
	}
}

func TestRunLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	started := time.Now().Add(-time.Minute)

	if err := db.RunStarted(ctx, newRun("r1", "demo", started)); err != nil {
		t.Fatalf("RunStarted: %v", err)
	}

	passed := false
	units := []*models.UnitRecord{
		{RunID: "r1", Unit: "research", Status: "succeeded", Stored: true, Attempts: 1, OutputPath: "output/acme-research.md", Duration: 1500 * time.Millisecond, FinishedAt: started.Add(time.Second)},
		{RunID: "r1", Unit: "fetch", Status: "succeeded", CacheHit: true, FinishedAt: started.Add(2 * time.Second)},
		{RunID: "r1", Unit: "parse", Status: "rate_limited", Attempts: 5, ValidationPath: "validations/acme_api.result", Passed: &passed, FinishedAt: started.Add(3 * time.Second)},
	}
	for _, u := range units {
		if err := db.UnitFinished(ctx, u); err != nil {
			t.Fatalf("UnitFinished(%s): %v", u.Unit, err)
		}
	}
	if err := db.RunFinished(ctx, "r1", models.RunFailed, "boom"); err != nil {
		t.Fatalf("RunFinished: %v", err)
	}

	run, err := db.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != models.RunFailed || run.Error != "boom" {
		t.Errorf("unexpected status %q/%q", run.Status, run.Error)
	}
	if run.FinishedAt == nil {
		t.Error("finished_at not set")
	}
	if run.Inputs["repo"] != "acme/api" || len(run.Order) != 3 || !run.IgnoreCache || run.ExitOnError {
		t.Errorf("run fields lost: %+v", run)
	}
	if !run.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", run.StartedAt, started)
	}

	got, err := db.ListUnits(ctx, "r1")
	if err != nil {
		t.Fatalf("ListUnits: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 units, got %d", len(got))
	}
	if got[0].Unit != "research" || got[0].Duration != 1500*time.Millisecond || !got[0].Stored {
		t.Errorf("research record wrong: %+v", got[0])
	}
	if !got[1].CacheHit || got[1].Passed != nil {
		t.Errorf("fetch record wrong: %+v", got[1])
	}
	if got[2].Passed == nil || *got[2].Passed || got[2].Attempts != 5 {
		t.Errorf("parse record wrong: %+v", got[2])
	}
}

func TestRunFinished_Unknown(t *testing.T) {
	db := setupTestDB(t)
	err := db.RunFinished(context.Background(), "nope", models.RunSucceeded, "")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestGetRun_Unknown(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.GetRun(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, r := range []struct{ id, project string }{{"a", "demo"}, {"b", "other"}, {"c", "demo"}} {
		if err := db.RunStarted(ctx, newRun(r.id, r.project, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		project string
		limit   int
		want    []string
	}{
		{"all newest first", "", 0, []string{"c", "b", "a"}},
		{"by project", "demo", 0, []string{"c", "a"}},
		{"limited", "", 2, []string{"c", "b"}},
		{"unknown project", "ghost", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := db.ListRuns(ctx, tt.project, tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			var ids []string
			for _, r := range runs {
				ids = append(ids, r.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("got %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", ids, tt.want)
				}
			}
		})
	}
}

func TestPurgeOldRuns_CascadesUnits(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.RunStarted(ctx, newRun("old", "demo", time.Now().Add(-48*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := db.RunStarted(ctx, newRun("new", "demo", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := db.UnitFinished(ctx, &models.UnitRecord{RunID: "old", Unit: "x", Status: "succeeded", FinishedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	n, err := db.PurgeOldRuns(ctx, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("purged %d runs, want 1", n)
	}
	units, err := db.ListUnits(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 0 {
		t.Errorf("unit results of purged run remain: %v", units)
	}
	if _, err := db.GetRun(ctx, "new"); err != nil {
		t.Errorf("recent run purged: %v", err)
	}
}

func TestMarkInterrupted(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	if err := db.RunStarted(ctx, newRun("stale", "demo", now.Add(-2*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := db.RunStarted(ctx, newRun("live", "demo", now)); err != nil {
		t.Fatal(err)
	}

	n, err := db.MarkInterrupted(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("marked %d runs, want 1", n)
	}

	stale, _ := db.GetRun(ctx, "stale")
	if stale.Status != models.RunFailed || stale.Error != "interrupted" {
		t.Errorf("stale run not failed: %+v", stale)
	}
	live, _ := db.GetRun(ctx, "live")
	if live.Status != models.RunRunning {
		t.Errorf("live run changed: %+v", live)
	}
}
