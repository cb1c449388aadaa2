package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/serialpong/internal/config"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreOpenClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "runs.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	// Check that the file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestStoreRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	cfg := config.DefaultPipelineConfig()
	start := time.UnixMilli(1_700_000_000_000)

	run, err := store.StartRun(cfg, start)
	if err != nil {
		t.Fatalf("StartRun() failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("StartRun() returned an empty ID")
	}

	got, err := store.RunByID(run.ID)
	if err != nil {
		t.Fatalf("RunByID() failed: %v", err)
	}
	if got == nil {
		t.Fatal("RunByID() returned nil for a started run")
	}
	if got.EndReason != EndRunning || !got.EndedAt.IsZero() {
		t.Errorf("Started run: reason %q ended %v, want running and zero", got.EndReason, got.EndedAt)
	}
	if got.Width != cfg.Screen.Width || got.Tick != cfg.Simulation.Tick || got.Sink != cfg.Sink.Kind {
		t.Errorf("Started run = %+v, does not match config", got)
	}

	counters := RunCounters{Produced: 12, Rendered: 10, Skipped: 1, Leftover: 2, Retries: 4}
	if err := store.FinishRun(run.ID, start.Add(6*time.Second), counters, nil); err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}

	got, _ = store.RunByID(run.ID)
	if got.EndReason != EndStopped || got.Error != "" {
		t.Errorf("Finished run: reason %q error %q, want stopped", got.EndReason, got.Error)
	}
	if got.Produced != 12 || got.Rendered != 10 || got.Skipped != 1 || got.Leftover != 2 || got.Retries != 4 {
		t.Errorf("Finished run counters = %+v", got)
	}
	if !got.StartedAt.Equal(start) || got.EndedAt.Sub(got.StartedAt) != 6*time.Second {
		t.Errorf("Finished run times: %v to %v", got.StartedAt, got.EndedAt)
	}
}

func TestStoreFailedRun(t *testing.T) {
	store := openTestStore(t)
	run, err := store.StartRun(config.DefaultPipelineConfig(), time.Now())
	if err != nil {
		t.Fatalf("StartRun() failed: %v", err)
	}

	if err := store.FinishRun(run.ID, time.Now(), RunCounters{}, errors.New("sink gone")); err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}
	got, _ := store.RunByID(run.ID)
	if got.EndReason != EndFailed || got.Error != "sink gone" {
		t.Errorf("Failed run: reason %q error %q", got.EndReason, got.Error)
	}

	if err := store.FinishRun("missing", time.Now(), RunCounters{}, nil); err == nil {
		t.Error("FinishRun() on an unknown run should fail")
	}
}

func TestStoreRunByIDMissing(t *testing.T) {
	store := openTestStore(t)
	got, err := store.RunByID("nope")
	if err != nil {
		t.Fatalf("RunByID() failed: %v", err)
	}
	if got != nil {
		t.Errorf("RunByID() = %+v, want nil", got)
	}
}

func TestStoreRecentRuns(t *testing.T) {
	store := openTestStore(t)
	cfg := config.DefaultPipelineConfig()
	base := time.Now()

	var ids []string
	for i := range 5 {
		run, err := store.StartRun(cfg, base.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("StartRun() failed: %v", err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := store.RecentRuns(3)
	if err != nil {
		t.Fatalf("RecentRuns() failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	// Newest first
	if runs[0].ID != ids[4] || runs[2].ID != ids[2] {
		t.Errorf("RecentRuns() order = %s, %s, %s", runs[0].ID, runs[1].ID, runs[2].ID)
	}

	if err := store.ClearRuns(); err != nil {
		t.Fatalf("ClearRuns() failed: %v", err)
	}
	runs, _ = store.RecentRuns(0)
	if len(runs) != 0 {
		t.Errorf("Expected no runs after clear, got %d", len(runs))
	}
}

func TestStoreDiagnostics(t *testing.T) {
	store := openTestStore(t)
	run, err := store.StartRun(config.DefaultPipelineConfig(), time.Now())
	if err != nil {
		t.Fatalf("StartRun() failed: %v", err)
	}

	at := time.UnixMilli(1_700_000_000_500)
	if _, err := store.RecordDiagnostic(run.ID, "simulation", "warning", "frame allocation exhausted", at); err != nil {
		t.Fatalf("RecordDiagnostic() failed: %v", err)
	}
	if _, err := store.RecordDiagnostic(run.ID, "simulation", "fatal", "gave up", at); err != nil {
		t.Fatalf("RecordDiagnostic() failed: %v", err)
	}

	entries, err := store.Diagnostics(run.ID)
	if err != nil {
		t.Fatalf("Diagnostics() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 diagnostics, got %d", len(entries))
	}
	if entries[0].Severity != "warning" || entries[1].Message != "gave up" {
		t.Errorf("Diagnostics() = %+v", entries)
	}
	if !entries[0].At.Equal(at) {
		t.Errorf("Diagnostic time = %v, want %v", entries[0].At, at)
	}
}
