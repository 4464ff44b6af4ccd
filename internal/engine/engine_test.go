package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pydex/internal/config"
	"pydex/internal/logging"
)

func setupTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()

	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ProjectRoot = root

	eng, err := New(root, Options{
		Config: cfg,
		Logger: logging.NewLogger(logging.Config{Format: logging.JSONFormat, Level: logging.ErrorLevel}),
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() {
		_ = eng.Close()
	})
	return eng, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestRefreshIndexInitial(t *testing.T) {
	eng, root := setupTestEngine(t)
	writeFile(t, root, "a.py", "def helper():\n    pass\n")
	writeFile(t, root, "b.py", "import a\n\ndef run():\n    a.helper()\n")

	stats, err := eng.RefreshIndex(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if stats.RunID == "" {
		t.Error("expected a run ID")
	}
	if stats.FilesScanned != 2 || stats.FilesIndexed != 2 || stats.FilesSkipped != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.SymbolsTotal != 2 {
		t.Errorf("SymbolsTotal = %d, want 2", stats.SymbolsTotal)
	}
	if stats.EdgesTotal == 0 {
		t.Error("expected at least one derived edge")
	}
}

func TestRefreshIndexSkipsUnchanged(t *testing.T) {
	eng, root := setupTestEngine(t)
	writeFile(t, root, "a.py", "def helper():\n    pass\n")
	writeFile(t, root, "b.py", "import a\n")

	if _, err := eng.RefreshIndex(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	stats, err := eng.RefreshIndex(context.Background())
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if stats.FilesIndexed != 0 || stats.FilesSkipped != 2 {
		t.Errorf("idempotent refresh stats = %+v", stats)
	}
}

func TestRefreshIndexReindexesModified(t *testing.T) {
	eng, root := setupTestEngine(t)
	writeFile(t, root, "a.py", "def helper():\n    pass\n")
	writeFile(t, root, "b.py", "import a\n")

	if _, err := eng.RefreshIndex(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	// Ensure the rewrite lands on a different mtime even on coarse clocks.
	time.Sleep(10 * time.Millisecond)
	writeFile(t, root, "b.py", "import a\n\ndef extra():\n    pass\n")

	stats, err := eng.RefreshIndex(context.Background())
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if stats.FilesIndexed != 1 || stats.FilesSkipped != 1 {
		t.Errorf("stats after single-file edit = %+v", stats)
	}
}

func TestRefreshIndexDeletionPropagates(t *testing.T) {
	eng, root := setupTestEngine(t)
	writeFile(t, root, "a.py", "def helper():\n    pass\n")
	writeFile(t, root, "b.py", "import a\n")

	if _, err := eng.RefreshIndex(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "a.py")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	stats, err := eng.RefreshIndex(context.Background())
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if stats.FilesDeleted != 1 {
		t.Errorf("FilesDeleted = %d, want 1", stats.FilesDeleted)
	}
	if stats.EdgesTotal != 0 {
		t.Errorf("EdgesTotal = %d, want 0 after target deletion", stats.EdgesTotal)
	}

	counts, err := eng.Store().Counts()
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Files != 1 {
		t.Errorf("Files = %d, want 1", counts.Files)
	}
}

func TestRefreshIndexParseErrorRetried(t *testing.T) {
	eng, root := setupTestEngine(t)
	writeFile(t, root, "broken.py", "def broken(:\n")

	stats, err := eng.RefreshIndex(context.Background())
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if stats.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", stats.ParseErrors)
	}

	// Unchanged on disk but degraded: must be retried, not skipped.
	stats, err = eng.RefreshIndex(context.Background())
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if stats.FilesIndexed != 1 || stats.FilesSkipped != 0 {
		t.Errorf("degraded file should be reparsed, stats = %+v", stats)
	}

	// Fixing the file clears the error and its facts appear.
	time.Sleep(10 * time.Millisecond)
	writeFile(t, root, "broken.py", "def broken():\n    pass\n")
	stats, err = eng.RefreshIndex(context.Background())
	if err != nil {
		t.Fatalf("third refresh: %v", err)
	}
	if stats.ParseErrors != 0 || stats.SymbolsTotal != 1 {
		t.Errorf("stats after fix = %+v", stats)
	}
}

func TestImpactForFilesEndToEnd(t *testing.T) {
	eng, root := setupTestEngine(t)
	writeFile(t, root, "core.py", "def helper():\n    pass\n")
	writeFile(t, root, "service.py", "import core\n\ndef run():\n    core.helper()\n")
	writeFile(t, root, "api.py", "import service\n")

	if _, err := eng.RefreshIndex(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	report, err := eng.ImpactForFiles([]string{"core.py"}, 0)
	if err != nil {
		t.Fatalf("impact: %v", err)
	}

	if report.MaxDepth != config.DefaultConfig().Impact.MaxDepth {
		t.Errorf("MaxDepth = %d, want configured default", report.MaxDepth)
	}
	byPath := make(map[string]int)
	for _, e := range report.Impacted {
		byPath[e.FilePath] = e.Distance
	}
	if byPath["core.py"] != 0 || byPath["service.py"] != 1 || byPath["api.py"] != 2 {
		t.Errorf("distances = %v", byPath)
	}
	if report.DirectCount != 1 || report.TransitiveCount != 1 {
		t.Errorf("counts = %d/%d", report.DirectCount, report.TransitiveCount)
	}
}

func TestImpactForFilesMixedEdgeKinds(t *testing.T) {
	eng, root := setupTestEngine(t)
	writeFile(t, root, "a.py", "import b\n")
	writeFile(t, root, "b.py", "def foo():\n    return 1\n")
	writeFile(t, root, "c.py", "from b import foo\n\ndef bar():\n    return foo()\n")

	stats, err := eng.RefreshIndex(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if stats.FilesScanned != 3 || stats.SymbolsTotal < 2 || stats.EdgesTotal < 2 {
		t.Errorf("stats = %+v", stats)
	}

	report, err := eng.ImpactForFiles([]string{"b.py"}, 0)
	if err != nil {
		t.Fatalf("impact: %v", err)
	}

	byPath := make(map[string]int)
	for _, e := range report.Impacted {
		byPath[e.FilePath] = e.Distance
	}
	if byPath["b.py"] != 0 {
		t.Errorf("b.py distance = %d, want 0", byPath["b.py"])
	}
	// a.py reaches b.py by import, c.py by call; both are direct.
	if byPath["a.py"] != 1 || byPath["c.py"] != 1 {
		t.Errorf("distances = %v, want a.py and c.py both at 1", byPath)
	}
	if report.DirectCount < 2 {
		t.Errorf("DirectCount = %d, want >= 2", report.DirectCount)
	}
}

func TestImpactForFilesDeletedTargetDropsEdges(t *testing.T) {
	eng, root := setupTestEngine(t)
	writeFile(t, root, "core.py", "def helper():\n    pass\n")
	writeFile(t, root, "service.py", "import core\n")

	if _, err := eng.RefreshIndex(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "core.py")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := eng.RefreshIndex(context.Background()); err != nil {
		t.Fatalf("refresh after delete: %v", err)
	}

	// The deleted file is no longer indexed, so it cannot seed a query.
	report, err := eng.ImpactForFiles([]string{"core.py"}, 0)
	if err != nil {
		t.Fatalf("impact: %v", err)
	}
	if len(report.ChangedFiles) != 0 || len(report.Impacted) != 0 {
		t.Errorf("report for deleted file = %+v", report)
	}
}

func TestStats(t *testing.T) {
	eng, root := setupTestEngine(t)
	writeFile(t, root, "a.py", "def one():\n    pass\n\ndef two():\n    pass\n")

	if _, err := eng.RefreshIndex(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	stats, err := eng.IndexStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Counts.Files != 1 || stats.Counts.Symbols != 2 {
		t.Errorf("counts = %+v", stats.Counts)
	}
	if stats.DatabasePath == "" {
		t.Error("expected database path")
	}
}
