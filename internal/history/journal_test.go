package history

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/neuroforge/trainlink/internal/testutil/testlog"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalRunLifecycle(t *testing.T) {
	testlog.Start(t)
	j := openTestJournal(t)

	if err := j.StartRun("run_1", "mdl_1", "mnist", 3); err != nil {
		t.Fatalf("start: %v", err)
	}
	for epoch := 1; epoch <= 3; epoch++ {
		if err := j.RecordProgress("run_1", epoch, 1.0/float64(epoch), 0.3*float64(epoch)); err != nil {
			t.Fatalf("progress %d: %v", epoch, err)
		}
	}
	if err := j.FinishRun("run_1", "completed", 0.33, 0.9, 1.5); err != nil {
		t.Fatalf("finish: %v", err)
	}

	rec, err := j.GetRun("run_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != "completed" || rec.FinalLoss != 0.33 || rec.FinalAccuracy != 0.9 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.FinishedAt.IsZero() {
		t.Fatal("finished_at not set")
	}

	progress, err := j.RunProgress("run_1")
	if err != nil {
		t.Fatalf("run progress: %v", err)
	}
	if len(progress) != 3 {
		t.Fatalf("progress rows got=%d want=3", len(progress))
	}
	if progress[0].Epoch != 1 || progress[2].Epoch != 3 {
		t.Fatalf("progress order wrong: %+v", progress)
	}
}

func TestJournalMissingRun(t *testing.T) {
	testlog.Start(t)
	j := openTestJournal(t)

	if _, err := j.GetRun("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := j.FinishRun("nope", "completed", 0, 0, 0); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("finish missing run: %v", err)
	}
}

func TestJournalRecentRunsOrder(t *testing.T) {
	testlog.Start(t)
	j := openTestJournal(t)

	for _, id := range []string{"run_a", "run_b", "run_c"} {
		if err := j.StartRun(id, "mdl_1", "mnist", 1); err != nil {
			t.Fatalf("start %s: %v", id, err)
		}
	}
	runs, err := j.RecentRuns(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("limit not applied, got %d rows", len(runs))
	}
}
