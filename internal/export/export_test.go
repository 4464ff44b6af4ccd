package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"pydex/internal/logging"
	"pydex/internal/storage"
)

func setupPopulatedStore(t *testing.T) *storage.Store {
	t.Helper()

	logger := logging.NewLogger(logging.Config{Format: logging.JSONFormat, Level: logging.ErrorLevel})
	db, err := storage.Open(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	store := storage.NewStore(db, logger)
	for _, path := range []string{"a.py", "b.py"} {
		err := store.UpsertFile(storage.FileMeta{
			Path:        path,
			ContentHash: "hash-" + path,
			Mtime:       time.Now().UnixNano(),
			IndexedAt:   time.Now(),
		})
		if err != nil {
			t.Fatalf("upsert %s: %v", path, err)
		}
	}
	err = store.ReplaceFileFacts("a.py",
		[]storage.Symbol{{FilePath: "a.py", Name: "helper", QualifiedName: "helper", Kind: "function", StartLine: 1, EndLine: 2, Signature: "def helper()"}},
		nil, nil)
	if err != nil {
		t.Fatalf("replace facts: %v", err)
	}
	err = store.ReplaceEdges([]storage.Edge{
		{SrcFile: "b.py", DstFile: "a.py", EdgeType: storage.EdgeTypeImport, Weight: 1.0},
	})
	if err != nil {
		t.Fatalf("replace edges: %v", err)
	}
	return store
}

func TestBuildSnapshot(t *testing.T) {
	store := setupPopulatedStore(t)

	snap, err := Build(store, "/project")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if snap.Counts.Files != 2 || snap.Counts.Symbols != 1 || snap.Counts.Edges != 1 {
		t.Errorf("counts = %+v", snap.Counts)
	}
	if len(snap.Files) != 2 || snap.Files[0].Path != "a.py" || snap.Files[1].Path != "b.py" {
		t.Errorf("files not sorted by path: %+v", snap.Files)
	}
	if len(snap.Symbols) != 1 || snap.Symbols[0].QualifiedName != "helper" {
		t.Errorf("symbols = %+v", snap.Symbols)
	}
	if len(snap.Edges) != 1 || snap.Edges[0].Src != "b.py" {
		t.Errorf("edges = %+v", snap.Edges)
	}
	if snap.GeneratedAt == "" {
		t.Error("expected a generation timestamp")
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	store := setupPopulatedStore(t)
	snap, err := Build(store, "/project")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, snap, FormatJSON, false); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got Snapshot
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got.Counts.Files != 2 || len(got.Edges) != 1 {
		t.Errorf("round trip lost data: %+v", got)
	}
}

func TestWriteYAML(t *testing.T) {
	store := setupPopulatedStore(t)
	snap, err := Build(store, "/project")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, snap, FormatYAML, false); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got Snapshot
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if len(got.Files) != 2 {
		t.Errorf("round trip lost files: %+v", got.Files)
	}
	if !strings.Contains(buf.String(), "qualifiedName: helper") {
		t.Error("expected symbol fields in YAML output")
	}
}

func TestWriteCompressed(t *testing.T) {
	store := setupPopulatedStore(t)
	snap, err := Build(store, "/project")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, snap, FormatJSON, true); err != nil {
		t.Fatalf("write: %v", err)
	}

	zr, err := zstd.NewReader(&buf)
	if err != nil {
		t.Fatalf("output is not a zstd stream: %v", err)
	}
	defer zr.Close()

	var got Snapshot
	if err := json.NewDecoder(zr).Decode(&got); err != nil {
		t.Fatalf("decompressed output is not valid JSON: %v", err)
	}
	if got.Counts.Edges != 1 {
		t.Errorf("round trip lost edges: %+v", got.Counts)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, &Snapshot{}, "xml", false); err == nil {
		t.Fatal("expected an error for an unsupported format")
	}
}
