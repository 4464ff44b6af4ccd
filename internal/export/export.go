// Package export serializes a full index snapshot for external tools.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"pydex/internal/storage"
)

// Supported output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FileEntry is one indexed file in a snapshot
type FileEntry struct {
	Path        string `json:"path" yaml:"path"`
	ContentHash string `json:"contentHash" yaml:"contentHash"`
	IndexedAt   string `json:"indexedAt" yaml:"indexedAt"`
	ParseError  string `json:"parseError,omitempty" yaml:"parseError,omitempty"`
}

// SymbolEntry is one extracted definition in a snapshot
type SymbolEntry struct {
	FilePath      string `json:"filePath" yaml:"filePath"`
	QualifiedName string `json:"qualifiedName" yaml:"qualifiedName"`
	Kind          string `json:"kind" yaml:"kind"`
	StartLine     int    `json:"startLine" yaml:"startLine"`
	EndLine       int    `json:"endLine" yaml:"endLine"`
	Signature     string `json:"signature,omitempty" yaml:"signature,omitempty"`
}

// EdgeEntry is one derived dependency edge in a snapshot
type EdgeEntry struct {
	Src    string  `json:"src" yaml:"src"`
	Dst    string  `json:"dst" yaml:"dst"`
	Type   string  `json:"type" yaml:"type"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Snapshot is a complete, self-contained view of the index
type Snapshot struct {
	GeneratedAt string         `json:"generatedAt" yaml:"generatedAt"`
	ProjectRoot string         `json:"projectRoot" yaml:"projectRoot"`
	Counts      storage.Counts `json:"counts" yaml:"counts"`
	Files       []FileEntry    `json:"files" yaml:"files"`
	Symbols     []SymbolEntry  `json:"symbols" yaml:"symbols"`
	Edges       []EdgeEntry    `json:"edges" yaml:"edges"`
}

// Build assembles a snapshot from the committed index state
func Build(store *storage.Store, projectRoot string) (*Snapshot, error) {
	counts, err := store.Counts()
	if err != nil {
		return nil, err
	}
	meta, err := store.GetFileMetadata()
	if err != nil {
		return nil, err
	}
	symbols, err := store.ListSymbols()
	if err != nil {
		return nil, err
	}
	edges, err := store.ListEdges()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		ProjectRoot: projectRoot,
		Counts:      counts,
		Files:       make([]FileEntry, 0, len(meta)),
		Symbols:     make([]SymbolEntry, 0, len(symbols)),
		Edges:       make([]EdgeEntry, 0, len(edges)),
	}

	for _, m := range meta {
		snap.Files = append(snap.Files, FileEntry{
			Path:        m.Path,
			ContentHash: m.ContentHash,
			IndexedAt:   m.IndexedAt.UTC().Format(time.RFC3339),
			ParseError:  m.ParseError,
		})
	}
	sort.Slice(snap.Files, func(i, j int) bool {
		return snap.Files[i].Path < snap.Files[j].Path
	})

	for _, s := range symbols {
		snap.Symbols = append(snap.Symbols, SymbolEntry{
			FilePath:      s.FilePath,
			QualifiedName: s.QualifiedName,
			Kind:          s.Kind,
			StartLine:     s.StartLine,
			EndLine:       s.EndLine,
			Signature:     s.Signature,
		})
	}

	for _, e := range edges {
		snap.Edges = append(snap.Edges, EdgeEntry{
			Src:    e.SrcFile,
			Dst:    e.DstFile,
			Type:   e.EdgeType,
			Weight: e.Weight,
		})
	}

	return snap, nil
}

// Write serializes the snapshot in the given format, optionally zstd
// compressed.
func Write(w io.Writer, snap *Snapshot, format string, compress bool) error {
	if compress {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create compressor: %w", err)
		}
		if err := encode(zw, snap, format); err != nil {
			zw.Close() //nolint:errcheck // Best effort cleanup
			return err
		}
		return zw.Close()
	}
	return encode(w, snap, format)
}

func encode(w io.Writer, snap *Snapshot, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(snap); err != nil {
			enc.Close() //nolint:errcheck // Best effort cleanup
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}
